package entity

import (
	"testing"

	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityManager_CreateEntityAssignsMonotonicIDs(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())

	e1 := em.CreateEntity()
	e2 := em.CreateEntity()

	assert.Less(t, e1.ID, e2.ID, "ID должны монотонно расти")
	assert.Equal(t, 2, em.Count())
}

func TestEntityManager_AddEntityBumpsNextID(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())

	restored := NewEntity(100, nil)
	em.AddEntity(restored)

	e := em.CreateEntity()
	assert.Equal(t, EntityID(101), e.ID, "Счётчик должен сдвинуться за максимальный занятый ID")
}

func TestEntityManager_TagIndexStaysInSync(t *testing.T) {
	// Тест: индекс тегов обновляется синхронно с мутациями сущности
	em := NewEntityManager(eventbus.NewBus())

	e := em.CreateEntity()
	e.AddTag("enemy")

	require.Len(t, em.EntitiesWithTag("enemy"), 1, "Индекс должен видеть тег сразу после AddTag")

	e.RemoveTag("enemy")
	assert.Empty(t, em.EntitiesWithTag("enemy"), "Индекс должен забыть тег сразу после RemoveTag")
}

func TestEntityManager_EntitiesWith(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())

	both := em.CreateEntity()
	both.AddComponent(&component.Transform{}).AddComponent(&component.Physics{})

	onlyTransform := em.CreateEntity()
	onlyTransform.AddComponent(&component.Transform{})

	inactive := em.CreateEntity()
	inactive.AddComponent(&component.Transform{}).AddComponent(&component.Physics{})
	inactive.Deactivate()

	matched := em.EntitiesWith(component.KindTransform, component.KindPhysics)
	require.Len(t, matched, 1, "AND-семантика: только активные сущности со всеми компонентами")
	assert.Equal(t, both.ID, matched[0].ID)
}

func TestEntityManager_CleanupRemovesInactive(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())

	alive := em.CreateEntity()
	dead := em.CreateEntity()
	dead.AddComponent(&component.Transform{})
	dead.Destroy()

	removed := em.Cleanup()

	require.Equal(t, []EntityID{dead.ID}, removed, "Cleanup должен вернуть ID удалённых сущностей")
	assert.Equal(t, 1, em.Count())
	_, ok := em.GetEntity(alive.ID)
	assert.True(t, ok, "Активная сущность должна пережить Cleanup")
}

func TestEntityManager_PoolRoundTrip(t *testing.T) {
	// Свойство: возврат в пул и повторный spawn дают чистую активную сущность
	// с единственным тегом пула
	em := NewEntityManager(eventbus.NewBus())
	em.CreatePool("crates", "crate", nil, 0)

	e := em.SpawnFromPool("crates")
	require.NotNil(t, e)
	e.AddComponent(&component.Transform{X: 50}).AddTag("falling")

	em.ReturnToPool(e)
	assert.False(t, e.Active(), "Возвращённая сущность деактивирована")
	assert.Equal(t, 1, em.PooledCount())

	reused := em.SpawnFromPool("crates")
	require.NotNil(t, reused)

	assert.Equal(t, e.ID, reused.ID, "Пул должен переиспользовать экземпляр")
	assert.True(t, reused.Active(), "Выданная из пула сущность активна")
	assert.Empty(t, reused.ComponentKinds(), "Компоненты должны быть сброшены")
	assert.Equal(t, []string{"crate"}, reused.Tags(), "Единственный тег — тег пула")
}

func TestEntityManager_PoolPrewarm(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())
	em.CreatePool("crates", "crate", func(e *Entity) {
		e.AddComponent(&component.Transform{Width: 16, Height: 16})
	}, 3)

	assert.Equal(t, 3, em.PooledCount(), "Пул должен быть прогрет")
	assert.Equal(t, 0, em.Count(), "Прогретые сущности не находятся в живом списке")

	e := em.SpawnFromPool("crates")
	require.NotNil(t, e)
	assert.Equal(t, 2, em.PooledCount())
	assert.Equal(t, 1, em.Count(), "Выданная сущность регистрируется в живом списке")
}

func TestEntityManager_ReturnToPoolWithoutMatchingTag(t *testing.T) {
	// Сущность без тега пула просто деактивируется и удаляется в Cleanup
	em := NewEntityManager(eventbus.NewBus())
	em.CreatePool("crates", "crate", nil, 0)

	e := em.CreateEntity()
	em.ReturnToPool(e)

	assert.False(t, e.Active())
	assert.Equal(t, 0, em.PooledCount(), "Сущность без тега пула не попадает во freelist")

	removed := em.Cleanup()
	assert.Equal(t, []EntityID{e.ID}, removed)
}

func TestEntityManager_SpawnFromUnknownPool(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())
	assert.Nil(t, em.SpawnFromPool("nope"), "Незарегистрированный пул возвращает nil")
}

func TestEntityManager_DestroyEntityEmitsAndRemoves(t *testing.T) {
	bus := eventbus.NewBus()
	em := NewEntityManager(bus)

	destroyed := 0
	bus.On(EventDestroyed, func(ev eventbus.Event) { destroyed++ })

	e := em.CreateEntity()
	e.AddTag("enemy")

	require.True(t, em.DestroyEntity(e.ID))
	bus.Process()

	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 0, em.Count())
	assert.Empty(t, em.EntitiesWithTag("enemy"), "Тег-индекс должен быть очищен")
	assert.False(t, em.DestroyEntity(e.ID), "Повторное уничтожение возвращает false")
}

func TestEntityManager_StableIterationOrder(t *testing.T) {
	em := NewEntityManager(eventbus.NewBus())
	for i := 0; i < 5; i++ {
		em.CreateEntity().AddComponent(&component.Transform{})
	}

	list := em.EntitiesWith(component.KindTransform)
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID, "Итерация должна идти в порядке возрастания ID")
	}
}
