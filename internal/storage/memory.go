package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/ecs-world/internal/world"
)

// MemorySnapshotRepo хранит снимки в памяти.
// Используется как fallback, когда внешнее хранилище недоступно,
// и для CI/локальной разработки без БД.
// ВНИМАНИЕ: данные теряются при перезапуске процесса!
type MemorySnapshotRepo struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	raw     []byte
	savedAt time.Time
}

// NewMemorySnapshotRepo создаёт пустой репозиторий снимков в памяти.
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		data: make(map[string]memoryEntry),
	}
}

// Save сохраняет снимок под именем. Снимок сериализуется в JSON,
// чтобы вызывающий код не делил память с хранилищем.
func (r *MemorySnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
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

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = memoryEntry{raw: raw, savedAt: time.Now()}
	return nil
}

// Load загружает снимок по имени.
func (r *MemorySnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	entry, ok := r.data[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	var snap world.Snapshot
	if err := json.Unmarshal(entry.raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет снимок.
func (r *MemorySnapshotRepo) Delete(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[name]; !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	delete(r.data, name)
	return nil
}

// List возвращает метаданные снимков, отсортированные по имени.
func (r *MemorySnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]SnapshotInfo, 0, len(r.data))
	for name, entry := range r.data {
		var snap world.Snapshot
		entities := 0
		if err := json.Unmarshal(entry.raw, &snap); err == nil {
			entities = len(snap.Entities)
		}
		infos = append(infos, SnapshotInfo{
			Name:      name,
			Entities:  entities,
			CreatedAt: entry.savedAt,
			SizeBytes: int64(len(entry.raw)),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close для памяти — no-op.
func (r *MemorySnapshotRepo) Close() error {
	return nil
}

// Count возвращает число сохранённых снимков (для тестов).
func (r *MemorySnapshotRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Clear удаляет все снимки (для тестов).
func (r *MemorySnapshotRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[string]memoryEntry)
}
