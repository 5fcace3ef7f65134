package storage

import (
	"context"
	"testing"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeSnapshot собирает маленький снимок мира для тестов хранилищ.
func makeSnapshot(t *testing.T) *world.Snapshot {
	t.Helper()

	w, err := world.New(config.Default())
	require.NoError(t, err)

	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 10, Y: 20, Width: 32, Height: 48}).
		AddComponent(&component.TypeInfo{Name: "player"}).
		AddTag("player")

	snap, err := w.Serialize()
	require.NoError(t, err)
	return snap
}

func TestNewSnapshotRepo_BackendSelection(t *testing.T) {
	repo, err := NewSnapshotRepo(&config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	defer repo.Close()
	_, ok := repo.(*MemorySnapshotRepo)
	assert.True(t, ok)
}

func TestNewSnapshotRepo_DefaultsToMemory(t *testing.T) {
	repo, err := NewSnapshotRepo(&config.StorageConfig{})
	require.NoError(t, err)
	defer repo.Close()
	_, ok := repo.(*MemorySnapshotRepo)
	assert.True(t, ok, "Пустой backend означает хранение в памяти")
}

func TestNewSnapshotRepo_MissingDSNFallsBackToMemory(t *testing.T) {
	// Сетевые backend'ы без DSN деградируют в память, а не падают
	for _, backend := range []string{"redis", "maria", "mongo"} {
		repo, err := NewSnapshotRepo(&config.StorageConfig{Backend: backend})
		require.NoError(t, err, "Backend %s без DSN не должен быть ошибкой", backend)
		_, ok := repo.(*MemorySnapshotRepo)
		assert.True(t, ok, "Backend %s без DSN должен деградировать в память", backend)
		repo.Close()
	}
}

func TestNewSnapshotRepo_UnknownBackend(t *testing.T) {
	_, err := NewSnapshotRepo(&config.StorageConfig{Backend: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestMemoryRepo_SaveLoadRoundTrip(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	ctx := context.Background()
	snap := makeSnapshot(t)

	require.NoError(t, repo.Save(ctx, "test", snap))

	loaded, ok, err := repo.Load(ctx, "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.NextEntityID, loaded.NextEntityID)
	require.Len(t, loaded.Entities, 1)
	assert.Equal(t, snap.Entities[0].ID, loaded.Entities[0].ID)
	assert.Equal(t, []string{"player"}, loaded.Entities[0].Tags)
}

func TestMemoryRepo_LoadMissIsNotError(t *testing.T) {
	repo := NewMemorySnapshotRepo()

	snap, ok, err := repo.Load(context.Background(), "nope")
	assert.NoError(t, err, "Отсутствие снимка — не ошибка")
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestMemoryRepo_DeleteMissing(t *testing.T) {
	repo := NewMemorySnapshotRepo()

	err := repo.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestMemoryRepo_SaveValidation(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	ctx := context.Background()

	assert.Error(t, repo.Save(ctx, "", makeSnapshot(t)), "Пустое имя — ошибка")
	assert.Error(t, repo.Save(ctx, "x", nil), "Nil снимок — ошибка")
}

func TestMemoryRepo_CancelledContext(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, repo.Save(ctx, "x", makeSnapshot(t)))
	_, _, err := repo.Load(ctx, "x")
	assert.Error(t, err)
}

func TestMemoryRepo_List(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	ctx := context.Background()
	snap := makeSnapshot(t)

	require.NoError(t, repo.Save(ctx, "beta", snap))
	require.NoError(t, repo.Save(ctx, "alpha", snap))

	infos, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name, "Листинг отсортирован по имени")
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, 1, infos[0].Entities)
	assert.NotZero(t, infos[0].SizeBytes)
}

func TestMemoryRepo_OverwriteAndClear(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	ctx := context.Background()
	snap := makeSnapshot(t)

	require.NoError(t, repo.Save(ctx, "a", snap))
	require.NoError(t, repo.Save(ctx, "a", snap))
	assert.Equal(t, 1, repo.Count(), "Перезапись не плодит записи")

	repo.Clear()
	assert.Equal(t, 0, repo.Count())
}

func TestMemoryRepo_LoadedSnapshotIsIsolated(t *testing.T) {
	// Мутация загруженного снимка не должна трогать хранилище
	repo := NewMemorySnapshotRepo()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "iso", makeSnapshot(t)))

	first, _, err := repo.Load(ctx, "iso")
	require.NoError(t, err)
	first.Entities[0].Tags = []string{"mutated"}

	second, _, err := repo.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, []string{"player"}, second.Entities[0].Tags,
		"Хранилище не должно делить память с вызывающим кодом")
}
