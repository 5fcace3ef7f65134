package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "snapshot:"

// BadgerSnapshotRepo хранит снимки во встраиваемой BadgerDB.
// Ключи — snapshot:<name>, значения — JSON снимка. Подходит для
// односерверного развёртывания без внешней БД, но с персистентностью.
type BadgerSnapshotRepo struct {
	db *badger.DB
}

// NewBadgerSnapshotRepo открывает (или создаёт) базу в указанной директории.
func NewBadgerSnapshotRepo(path string) (*BadgerSnapshotRepo, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("открытие BadgerDB %s: %w", path, err)
	}

	logging.Info("💾 BadgerDB хранилище снимков: %s", path)
	return &BadgerSnapshotRepo{db: db}, nil
}

func badgerKey(name string) []byte {
	return []byte(badgerKeyPrefix + name)
}

// Save сохраняет снимок одной транзакцией.
func (r *BadgerSnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
	if name == "" {
		return fmt.Errorf("пустое имя снимка")
	}
	if snap == nil {
		return fmt.Errorf("пустой снимок")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("сериализация снимка %q: %w", name, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(name), raw)
	})
	if err != nil {
		return fmt.Errorf("запись снимка %q в BadgerDB: %w", name, err)
	}
	return nil
}

// Load загружает снимок по имени.
func (r *BadgerSnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	var raw []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(name))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("чтение снимка %q из BadgerDB: %w", name, err)
	}

	var snap world.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет снимок.
func (r *BadgerSnapshotRepo) Delete(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(name)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("удаление снимка %q из BadgerDB: %w", name, err)
	}
	return nil
}

// List итерирует префикс snapshot: и собирает метаданные.
func (r *BadgerSnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var infos []SnapshotInfo
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), badgerKeyPrefix)

			info := SnapshotInfo{Name: name, SizeBytes: item.ValueSize()}
			err := item.Value(func(raw []byte) error {
				var snap world.Snapshot
				if err := json.Unmarshal(raw, &snap); err == nil {
					info.Entities = len(snap.Entities)
					info.CreatedAt = snap.CreatedAt
				}
				return nil
			})
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("листинг снимков BadgerDB: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close закрывает базу.
func (r *BadgerSnapshotRepo) Close() error {
	return r.db.Close()
}
