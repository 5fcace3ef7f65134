package world

import (
	"testing"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/physics"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BadGridConfig(t *testing.T) {
	cfg := config.Default()
	cfg.World.CellSize = 0

	_, err := New(cfg)
	assert.Error(t, err, "Ошибка конфигурации сетки фатальна при создании мира")
}

func TestWorld_UpdateDrainsFrameEvents(t *testing.T) {
	// События, эмитированные системами в кадре, доставляются
	// в конце того же Update
	w := newTestWorld(t)

	spawnBody(w, 0, 0, 32, 48, "player", []string{"ground"})
	b := w.CreateEntity()
	b.AddComponent(&component.Transform{X: 0, Y: 40, Width: 100, Height: 20}).
		AddComponent(&component.Collider{Layer: "ground", IsSolid: true})

	delivered := 0
	w.On(EventCollision, func(ev eventbus.Event) { delivered++ })

	w.Update(1.0 / 60)
	assert.Equal(t, 1, delivered, "Событие кадра доставляется в конце того же Update")
}

func TestWorld_CleanupRemovesFromGrid(t *testing.T) {
	w := newTestWorld(t)

	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 100, Y: 100, Width: 10, Height: 10})

	w.Update(1.0 / 60) // Индексирует сущность в сетке
	require.NotEmpty(t, w.EntitiesInRadius(105, 105, 50))

	e.Destroy()
	w.Update(1.0 / 60) // Cleanup снимает сущность с сетки

	assert.Empty(t, w.EntitiesInRadius(105, 105, 50), "Уничтоженная сущность исчезает из запросов")
	assert.Equal(t, 0, w.Entities().Count())
}

func TestWorld_SpatialQueriesRefreshGrid(t *testing.T) {
	// Запросы видят актуальные позиции без прогона кадра
	w := newTestWorld(t)

	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 100, Y: 100, Width: 10, Height: 10})

	found := w.EntitiesInRadius(105, 105, 20)
	require.Len(t, found, 1, "Запрос сам переиндексирует сетку")

	tr, _ := e.Transform()
	tr.X = 500

	assert.Empty(t, w.EntitiesInRadius(105, 105, 20), "Старая позиция не должна находиться")
	assert.Len(t, w.EntitiesInRadius(505, 105, 20), 1, "Новая позиция видна немедленно")
}

func TestWorld_RemovedTransformLeavesGrid(t *testing.T) {
	// Активная сущность, потерявшая transform, не должна находиться
	// запросами по последней проиндексированной позиции
	w := newTestWorld(t)

	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 100, Y: 100, Width: 10, Height: 10})

	require.Len(t, w.EntitiesInRadius(105, 105, 20), 1, "До удаления компонента сущность индексируется")

	e.RemoveComponent(component.KindTransform)

	assert.Empty(t, w.EntitiesInRadius(105, 105, 20), "Сущность без transform исчезает из радиусных запросов")
	assert.Empty(t, w.EntitiesInRect(0, 0, 4096, 2048), "И из прямоугольных запросов по всему миру")
}

func TestWorld_RemovedTransformStopsCollisions(t *testing.T) {
	// Снятая с индекса сущность перестаёт порождать пары широкой фазы
	w := newTestWorld(t)

	spawnBody(w, 0, 0, 32, 48, "player", []string{"ground"})
	platform := w.CreateEntity()
	platform.AddComponent(&component.Transform{X: 0, Y: 40, Width: 100, Height: 20}).
		AddComponent(&component.Collider{Layer: "ground", IsSolid: true})

	delivered := 0
	w.On(EventCollision, func(ev eventbus.Event) { delivered++ })

	w.Update(1.0 / 60)
	require.Equal(t, 1, delivered, "До удаления transform пара сталкивается")

	platform.RemoveComponent(component.KindTransform)
	w.Update(1.0 / 60)
	assert.Equal(t, 1, delivered, "Платформа без transform не участвует в широкой фазе")
}

func TestWorld_EntitiesInRect(t *testing.T) {
	w := newTestWorld(t)

	inside := w.CreateEntity()
	inside.AddComponent(&component.Transform{X: 10, Y: 10, Width: 10, Height: 10})

	outside := w.CreateEntity()
	outside.AddComponent(&component.Transform{X: 500, Y: 500, Width: 10, Height: 10})

	found := w.EntitiesInRect(0, 0, 100, 100)
	require.Len(t, found, 1)
	assert.Equal(t, inside.ID, found[0].ID)
}

func TestWorld_DestroyEntityImmediate(t *testing.T) {
	w := newTestWorld(t)

	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 10, Y: 10, Width: 5, Height: 5})
	w.EntitiesInRadius(10, 10, 50) // Индексация

	require.True(t, w.DestroyEntity(e.ID))
	assert.False(t, w.DestroyEntity(e.ID), "Повторное уничтожение возвращает false")

	_, ok := w.GetEntity(e.ID)
	assert.False(t, ok)
	assert.Empty(t, w.EntitiesInRadius(10, 10, 50))
}

func TestWorld_PoolPassthrough(t *testing.T) {
	w := newTestWorld(t)
	w.CreatePool("crates", "crate", func(e *entity.Entity) {
		e.AddComponent(&component.Transform{Width: 16, Height: 16})
	}, 2)

	e := w.SpawnFromPool("crates")
	require.NotNil(t, e)
	assert.True(t, e.HasTag("crate"))

	w.ReturnToPool(e)
	reused := w.SpawnFromPool("crates")
	require.NotNil(t, reused)
}

func TestWorld_SpawnDuringCollisionHook(t *testing.T) {
	// Спавн из хука коллизий не должен блокировать кадр
	w := newTestWorld(t)
	registerCrateTemplate(t, w)

	a := spawnBody(w, 0, 0, 32, 48, "player", []string{"ground"})
	b := w.CreateEntity()
	b.AddComponent(&component.Transform{X: 0, Y: 40, Width: 100, Height: 20}).
		AddComponent(&component.Collider{Layer: "ground", IsSolid: true})

	var spawnErr error
	a.OnCollision(func(self, other *entity.Entity, c physics.Contact) {
		_, spawnErr = w.SpawnFromTemplate("crate", nil)
	})

	assert.NotPanics(t, func() { w.Update(1.0 / 60) })
	assert.NoError(t, spawnErr, "Спавн по шаблону из хука должен работать")
}

func TestWorld_StatsShape(t *testing.T) {
	w := newTestWorld(t)
	registerCrateTemplate(t, w)
	spawnBody(w, 0, 0, 32, 48, "player", []string{"ground"})
	w.Update(1.0 / 60)

	stats := w.Stats()
	assert.Equal(t, uint64(1), stats["frames"])
	assert.Equal(t, 1, stats["templates"])
	assert.Contains(t, stats, "active_entities")
	assert.Contains(t, stats, "collision_pairs_checked")
	assert.Contains(t, stats, "grid_cells")

	busStats, ok := stats["events"].(eventbus.Stats)
	require.True(t, ok)
	assert.NotZero(t, busStats.Published, "Создание сущностей эмитит события")
}
