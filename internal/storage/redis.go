package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Addr         string // Адрес Redis сервера
	Password     string // Пароль (пустой если не требуется)
	DB           int    // Номер базы данных
	KeyPrefix    string // Префикс для ключей
	BatchFlushMs int    // Интервал сброса write-behind буфера в миллисекундах
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		KeyPrefix:    "worldsim:snap:",
		BatchFlushMs: 200,
	}
}

// RedisSnapshotRepo хранит снимки в Redis: значение на ключ
// <prefix><name> плюс индексное множество имён для листинга.
// Запись идёт через write-behind буфер: Save кладёт снимок в буфер,
// фоновая горутина периодически сбрасывает его пайплайном. Автосохранение
// каждые несколько секунд не блокирует кадр на сетевом I/O.
type RedisSnapshotRepo struct {
	client    *redis.Client
	keyPrefix string
	indexKey  string

	batchMu     sync.Mutex
	batchBuffer map[string][]byte
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// NewRedisSnapshotRepo подключается к Redis и запускает write-behind цикл.
func NewRedisSnapshotRepo(cfg *RedisConfig) (*RedisSnapshotRepo, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "worldsim:snap:"
	}
	if cfg.BatchFlushMs <= 0 {
		cfg.BatchFlushMs = 200
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("подключение к Redis %s: %w", cfg.Addr, err)
	}

	repo := &RedisSnapshotRepo{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		indexKey:    cfg.KeyPrefix + "index",
		batchBuffer: make(map[string][]byte),
		batchTicker: time.NewTicker(time.Duration(cfg.BatchFlushMs) * time.Millisecond),
		shutdown:    make(chan struct{}),
	}

	repo.wg.Add(1)
	go repo.batchFlusher()

	logging.Info("🔴 Redis хранилище снимков: %s", cfg.Addr)
	return repo, nil
}

func (r *RedisSnapshotRepo) key(name string) string {
	return r.keyPrefix + name
}

// Save кладёт снимок в write-behind буфер; сброс выполнит фоновая горутина.
func (r *RedisSnapshotRepo) Save(ctx context.Context, name string, snap *world.Snapshot) error {
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

	r.batchMu.Lock()
	r.batchBuffer[name] = raw
	r.batchMu.Unlock()
	return nil
}

// Load читает снимок: сперва из несброшенного буфера, затем из Redis.
func (r *RedisSnapshotRepo) Load(ctx context.Context, name string) (*world.Snapshot, bool, error) {
	r.batchMu.Lock()
	raw, buffered := r.batchBuffer[name]
	r.batchMu.Unlock()

	if !buffered {
		data, err := r.client.Get(ctx, r.key(name)).Result()
		if err == redis.Nil {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("чтение снимка %q из Redis: %w", name, err)
		}
		raw = []byte(data)
	}

	var snap world.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("десериализация снимка %q: %w", name, err)
	}
	return &snap, true, nil
}

// Delete удаляет снимок из буфера, Redis и индекса.
func (r *RedisSnapshotRepo) Delete(ctx context.Context, name string) error {
	r.batchMu.Lock()
	_, buffered := r.batchBuffer[name]
	delete(r.batchBuffer, name)
	r.batchMu.Unlock()

	removed, err := r.client.Del(ctx, r.key(name)).Result()
	if err != nil {
		return fmt.Errorf("удаление снимка %q из Redis: %w", name, err)
	}
	r.client.SRem(ctx, r.indexKey, name)

	if removed == 0 && !buffered {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}

// List возвращает метаданные снимков из индексного множества
// (плюс ещё не сброшенный буфер).
func (r *RedisSnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	names, err := r.client.SMembers(ctx, r.indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("чтение индекса снимков: %w", err)
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	r.batchMu.Lock()
	for n := range r.batchBuffer {
		seen[n] = struct{}{}
	}
	r.batchMu.Unlock()

	infos := make([]SnapshotInfo, 0, len(seen))
	for name := range seen {
		snap, ok, err := r.Load(ctx, name)
		if err != nil || !ok {
			continue
		}
		infos = append(infos, SnapshotInfo{
			Name:      name,
			Entities:  len(snap.Entities),
			CreatedAt: snap.CreatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Close останавливает write-behind цикл, сбрасывает остаток буфера
// и закрывает соединение.
func (r *RedisSnapshotRepo) Close() error {
	close(r.shutdown)
	r.wg.Wait()
	r.batchTicker.Stop()

	r.batchMu.Lock()
	batch := r.batchBuffer
	r.batchBuffer = make(map[string][]byte)
	r.batchMu.Unlock()
	if err := r.flushBatch(batch); err != nil {
		logging.Error("❌ Сброс буфера снимков при закрытии: %v", err)
	}

	return r.client.Close()
}

// batchFlusher периодически сбрасывает write-behind буфер.
func (r *RedisSnapshotRepo) batchFlusher() {
	defer r.wg.Done()

	for {
		select {
		case <-r.shutdown:
			return
		case <-r.batchTicker.C:
			r.batchMu.Lock()
			if len(r.batchBuffer) == 0 {
				r.batchMu.Unlock()
				continue
			}
			batch := r.batchBuffer
			r.batchBuffer = make(map[string][]byte)
			r.batchMu.Unlock()

			if err := r.flushBatch(batch); err != nil {
				logging.Error("❌ Сброс буфера снимков: %v", err)
			}
		}
	}
}

// flushBatch записывает буфер одним пайплайном и обновляет индекс.
func (r *RedisSnapshotRepo) flushBatch(batch map[string][]byte) error {
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := r.client.Pipeline()
	for name, raw := range batch {
		pipe.Set(ctx, r.key(name), raw, 0)
		pipe.SAdd(ctx, r.indexKey, name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("выполнение пайплайна: %w", err)
	}
	return nil
}
