package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/klauspost/compress/zstd"
)

const snapshotFileExt = ".json.zst"

// FileSnapshotRepo хранит каждый снимок отдельным zstd-сжатым JSON файлом
// в базовой директории. Запись атомарна: данные пишутся во временный файл
// и переименовываются, чтобы падение процесса не оставило полузаписанный
// снимок. Прочитанные снимки кешируются в памяти до инвалидации записью.
type FileSnapshotRepo struct {
	baseDir string
	mu      sync.RWMutex
	cache   map[string][]byte // name -> несжатый JSON

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFileSnapshotRepo создаёт репозиторий в указанной директории.
func NewFileSnapshotRepo(baseDir string) (*FileSnapshotRepo, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("создание директории снимков %s: %w", baseDir, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("инициализация zstd-кодера: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("инициализация zstd-декодера: %w", err)
	}

	logging.Info("💾 Файловое хранилище снимков: %s", baseDir)
	return &FileSnapshotRepo{
		baseDir: baseDir,
		cache:   make(map[string][]byte),
		enc:     enc,
		dec:     dec,
	}, nil
}

func (r *FileSnapshotRepo) path(name string) string {
	return filepath.Join(r.baseDir, name+snapshotFileExt)
}

// Save сжимает снимок и атомарно записывает его на диск.
func (r *FileSnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
	if name == "" {
		return fmt.Errorf("пустое имя снимка")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("недопустимое имя снимка: %q", name)
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
	compressed := r.enc.EncodeAll(raw, nil)

	final := r.path(name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("запись снимка %q: %w", name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("переименование снимка %q: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = raw
	r.mu.Unlock()
	return nil
}

// Load читает снимок из кеша или с диска.
func (r *FileSnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	raw, cached := r.cache[name]
	r.mu.RUnlock()

	if !cached {
		compressed, err := os.ReadFile(r.path(name))
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("чтение снимка %q: %w", name, err)
		}

		raw, err = r.dec.DecodeAll(compressed, nil)
		if err != nil {
			return nil, false, fmt.Errorf("распаковка снимка %q: %w", name, err)
		}

		r.mu.Lock()
		r.cache[name] = raw
		r.mu.Unlock()
	}

	var snap world.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет файл снимка и запись в кеше.
func (r *FileSnapshotRepo) Delete(ctx context.Context, name string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := os.Remove(r.path(name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("удаление снимка %q: %w", name, err)
	}

	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()
	return nil
}

// List сканирует базовую директорию и возвращает метаданные снимков.
func (r *FileSnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("чтение директории снимков: %w", err)
	}

	var infos []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotFileExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), snapshotFileExt)

		info := SnapshotInfo{Name: name}
		if fi, err := entry.Info(); err == nil {
			info.CreatedAt = fi.ModTime()
			info.SizeBytes = fi.Size()
		}
		if snap, ok, err := r.Load(ctx, name); err == nil && ok {
			info.Entities = len(snap.Entities)
			info.CreatedAt = snap.CreatedAt
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close освобождает zstd-кодеки.
func (r *FileSnapshotRepo) Close() error {
	r.enc.Close()
	r.dec.Close()
	return nil
}
