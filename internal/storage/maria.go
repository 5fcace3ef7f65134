package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
	_ "github.com/go-sql-driver/mysql"
)

// MariaSnapshotRepo хранит снимки в таблице MariaDB/MySQL.
// Таблица создаётся автоматически; запись идёт через
// INSERT ... ON DUPLICATE KEY UPDATE.
type MariaSnapshotRepo struct {
	db *sql.DB
}

// NewMariaSnapshotRepo подключается к базе по DSN
// (user:pass@tcp(host:port)/dbname) и создаёт таблицу при необходимости.
func NewMariaSnapshotRepo(dsn string) (*MariaSnapshotRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("подключение к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("проверка соединения с MariaDB: %w", err)
	}

	repo := &MariaSnapshotRepo{db: db}
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Info("💾 MariaDB хранилище снимков подключено")
	return repo, nil
}

func (r *MariaSnapshotRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS snapshots (
			name       VARCHAR(255) PRIMARY KEY,
			entities   INT          NOT NULL DEFAULT 0,
			data       MEDIUMBLOB   NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("создание таблицы snapshots: %w", err)
	}
	return nil
}

// Save сохраняет снимок с перезаписью существующего.
func (r *MariaSnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
	if name == "" {
		return fmt.Errorf("пустое имя снимка")
	}
	if snap == nil {
		return fmt.Errorf("пустой снимок")
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("сериализация снимка %q: %w", name, err)
	}

	query := `
		INSERT INTO snapshots (name, entities, data)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			entities = VALUES(entities),
			data = VALUES(data),
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, name, len(snap.Entities), raw); err != nil {
		return fmt.Errorf("сохранение снимка %q: %w", name, err)
	}
	return nil
}

// Load загружает снимок по имени.
func (r *MariaSnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("загрузка снимка %q: %w", name, err)
	}

	var snap world.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет снимок.
func (r *MariaSnapshotRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("удаление снимка %q: %w", name, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}

// List возвращает метаданные всех снимков.
func (r *MariaSnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, entities, updated_at, LENGTH(data) FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("листинг снимков: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Entities, &info.CreatedAt, &info.SizeBytes); err != nil {
			return nil, fmt.Errorf("чтение строки листинга: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("итерация листинга: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close закрывает пул соединений.
func (r *MariaSnapshotRepo) Close() error {
	return r.db.Close()
}
