package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
)

// ErrSnapshotNotFound возвращается Delete для несуществующего снимка.
// Load миссы не считаются ошибкой и сообщаются через (nil, false, nil).
var ErrSnapshotNotFound = errors.New("снимок не найден")

// SnapshotInfo — метаданные сохранённого снимка для листинга.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Entities  int       `json:"entities"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int64     `json:"sizeBytes,omitempty"`
}

// SnapshotRepo определяет интерфейс хранилища снимков мира.
// Реализации: память (fallback и тесты), файлы, BadgerDB, Redis,
// MariaDB, MongoDB.
type SnapshotRepo interface {
	// Save сохраняет снимок под именем; существующий перезаписывается.
	Save(ctx context.Context, name string, snap *world.Snapshot) error

	// Load загружает снимок. Отсутствие снимка — не ошибка: (nil, false, nil).
	Load(ctx context.Context, name string) (*world.Snapshot, bool, error)

	// Delete удаляет снимок. Для несуществующего возвращает ErrSnapshotNotFound.
	Delete(ctx context.Context, name string) error

	// List возвращает метаданные всех сохранённых снимков.
	List(ctx context.Context) ([]SnapshotInfo, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// NewSnapshotRepo создаёт репозиторий по конфигурации.
// Неизвестный backend — ошибка; отсутствие DSN для сетевых backend'ов
// деградирует в память с предупреждением, чтобы локальная разработка
// не требовала поднятой БД.
func NewSnapshotRepo(cfg *config.StorageConfig) (SnapshotRepo, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemorySnapshotRepo(), nil

	case "file":
		path := cfg.Path
		if path == "" {
			path = "data/snapshots"
		}
		return NewFileSnapshotRepo(path)

	case "badger":
		path := cfg.Path
		if path == "" {
			path = "data/badger"
		}
		return NewBadgerSnapshotRepo(path)

	case "redis":
		if cfg.RedisDSN == "" {
			logging.Warn("⚠️ Redis DSN не задан, снимки будут храниться в памяти")
			return NewMemorySnapshotRepo(), nil
		}
		return NewRedisSnapshotRepo(&RedisConfig{Addr: cfg.RedisDSN})

	case "maria":
		if cfg.MariaDSN == "" {
			logging.Warn("⚠️ MariaDB DSN не задан, снимки будут храниться в памяти")
			return NewMemorySnapshotRepo(), nil
		}
		return NewMariaSnapshotRepo(cfg.MariaDSN)

	case "mongo":
		if cfg.MongoURI == "" {
			logging.Warn("⚠️ MongoDB URI не задан, снимки будут храниться в памяти")
			return NewMemorySnapshotRepo(), nil
		}
		return NewMongoSnapshotRepo(&MongoConfig{URI: cfg.MongoURI})

	default:
		return nil, fmt.Errorf("неизвестный backend хранилища: %q", cfg.Backend)
	}
}
