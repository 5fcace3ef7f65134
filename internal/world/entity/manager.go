package entity

import (
	"sort"
	"sync"

	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/world/component"
)

// EventRemoved эмитится менеджером при удалении сущности из живого набора.
const EventRemoved = "entity:removed"

// pool — именованный freelist деактивированных сущностей для повторного
// использования. Возврат в пул определяется тегом.
type pool struct {
	name    string
	tag     string
	factory func(*Entity) // Наполняет новую сущность; nil — пустая.
	free    []*Entity
}

// EntityManager владеет набором сущностей мира: живой список, тег-индекс,
// пулы и генерация идентификаторов. Мутации списка из хуков систем безопасны:
// системы итерируют по снимкам, а удаление откладывается до Cleanup.
type EntityManager struct {
	bus      *eventbus.Bus
	entities map[EntityID]*Entity
	tagIndex map[string]map[EntityID]*Entity
	pools    map[string]*pool
	nextID   EntityID
	mu       sync.RWMutex
}

// NewEntityManager создаёт пустой менеджер, привязанный к шине событий мира.
func NewEntityManager(bus *eventbus.Bus) *EntityManager {
	return &EntityManager{
		bus:      bus,
		entities: make(map[EntityID]*Entity),
		tagIndex: make(map[string]map[EntityID]*Entity),
		pools:    make(map[string]*pool),
		nextID:   1,
	}
}

// CreateEntity создаёт сущность со следующим свободным ID и регистрирует её.
func (em *EntityManager) CreateEntity() *Entity {
	em.mu.Lock()
	id := em.nextID
	em.nextID++
	em.mu.Unlock()

	e := NewEntity(id, em.bus)
	em.adopt(e)
	return e
}

// AddEntity регистрирует уже созданную сущность (используется при
// восстановлении из снапшота, когда ID выбирается внешним кодом).
// Счётчик ID сдвигается за максимальный занятый.
func (em *EntityManager) AddEntity(e *Entity) {
	em.adopt(e)

	em.mu.Lock()
	if e.ID >= em.nextID {
		em.nextID = e.ID + 1
	}
	em.mu.Unlock()
}

// adopt добавляет сущность в живой список и индексирует её текущие теги.
func (em *EntityManager) adopt(e *Entity) {
	e.bus = em.bus
	e.indexer = em

	em.mu.Lock()
	em.entities[e.ID] = e
	for tag := range e.tags {
		em.indexTag(e, tag)
	}
	em.mu.Unlock()
}

// indexTag добавляет сущность в индекс тега. Вызывается под em.mu.
func (em *EntityManager) indexTag(e *Entity, tag string) {
	bucket, ok := em.tagIndex[tag]
	if !ok {
		bucket = make(map[EntityID]*Entity)
		em.tagIndex[tag] = bucket
	}
	bucket[e.ID] = e
}

// tagAdded реализует tagIndexer.
func (em *EntityManager) tagAdded(e *Entity, tag string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.indexTag(e, tag)
}

// tagRemoved реализует tagIndexer.
func (em *EntityManager) tagRemoved(e *Entity, tag string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if bucket, ok := em.tagIndex[tag]; ok {
		delete(bucket, e.ID)
		if len(bucket) == 0 {
			delete(em.tagIndex, tag)
		}
	}
}

// GetEntity возвращает сущность по ID.
func (em *EntityManager) GetEntity(id EntityID) (*Entity, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	e, ok := em.entities[id]
	return e, ok
}

// EntitiesWithTag возвращает активные сущности с указанным тегом
// в стабильном порядке ID.
func (em *EntityManager) EntitiesWithTag(tag string) []*Entity {
	em.mu.RLock()
	defer em.mu.RUnlock()

	bucket := em.tagIndex[tag]
	result := make([]*Entity, 0, len(bucket))
	for _, e := range bucket {
		if e.active {
			result = append(result, e)
		}
	}
	sortByID(result)
	return result
}

// EntitiesWith возвращает активные сущности, несущие ВСЕ перечисленные
// компоненты (AND-семантика), в стабильном порядке ID.
func (em *EntityManager) EntitiesWith(kinds ...component.Kind) []*Entity {
	em.mu.RLock()
	defer em.mu.RUnlock()

	var result []*Entity
	for _, e := range em.entities {
		if e.active && e.HasComponents(kinds...) {
			result = append(result, e)
		}
	}
	sortByID(result)
	return result
}

// All возвращает снимок всех зарегистрированных сущностей в порядке ID.
func (em *EntityManager) All() []*Entity {
	em.mu.RLock()
	defer em.mu.RUnlock()

	result := make([]*Entity, 0, len(em.entities))
	for _, e := range em.entities {
		result = append(result, e)
	}
	sortByID(result)
	return result
}

// CreatePool регистрирует пул с прогревом size деактивированных сущностей.
// tag определяет принадлежность пулу при возврате; пустой tag — имя пула.
func (em *EntityManager) CreatePool(name, tag string, factory func(*Entity), size int) {
	if tag == "" {
		tag = name
	}

	p := &pool{name: name, tag: tag, factory: factory}

	for i := 0; i < size; i++ {
		e := em.CreateEntity()
		e.AddTag(tag)
		if factory != nil {
			factory(e)
		}
		e.Deactivate()
		p.free = append(p.free, e)
		em.remove(e.ID)
	}

	em.mu.Lock()
	em.pools[name] = p
	em.mu.Unlock()
}

// SpawnFromPool достаёт сущность из freelist (Reset + тег пула + регистрация)
// или создаёт новую с тегом пула, если freelist пуст.
// Возвращает nil для незарегистрированного пула.
func (em *EntityManager) SpawnFromPool(name string) *Entity {
	em.mu.Lock()
	p, ok := em.pools[name]
	if !ok {
		em.mu.Unlock()
		return nil
	}

	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		em.mu.Unlock()

		e.Reset()
		em.adopt(e)
		e.AddTag(p.tag)
		return e
	}
	em.mu.Unlock()

	e := em.CreateEntity()
	e.AddTag(p.tag)
	if p.factory != nil {
		p.factory(e)
	}
	return e
}

// ReturnToPool деактивирует сущность и помещает её во freelist первого пула
// (в отсортированном порядке имён), чей тег она несёт. Сущность без
// подходящего тега просто деактивируется и будет удалена в Cleanup.
func (em *EntityManager) ReturnToPool(e *Entity) {
	e.Deactivate()

	em.mu.Lock()
	names := make([]string, 0, len(em.pools))
	for name := range em.pools {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := em.pools[name]
		if _, tagged := e.tags[p.tag]; tagged {
			p.free = append(p.free, e)
			em.mu.Unlock()
			em.remove(e.ID)
			return
		}
	}
	em.mu.Unlock()
}

// DestroyEntity эмитит entity:destroyed и немедленно удаляет сущность
// из живого списка, тег-индекса и freelist'ов.
func (em *EntityManager) DestroyEntity(id EntityID) bool {
	em.mu.RLock()
	e, ok := em.entities[id]
	em.mu.RUnlock()
	if !ok {
		return false
	}

	e.Destroy()
	em.remove(id)

	em.mu.Lock()
	for _, p := range em.pools {
		for i, pe := range p.free {
			if pe.ID == id {
				p.free = append(p.free[:i], p.free[i+1:]...)
				break
			}
		}
	}
	em.mu.Unlock()
	return true
}

// remove исключает сущность из живого списка и тег-индекса с событием
// entity:removed. Сущность остаётся пригодной для повторного использования пулом.
func (em *EntityManager) remove(id EntityID) {
	em.mu.Lock()
	e, ok := em.entities[id]
	if !ok {
		em.mu.Unlock()
		return
	}
	delete(em.entities, id)
	for tag := range e.tags {
		if bucket, exists := em.tagIndex[tag]; exists {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(em.tagIndex, tag)
			}
		}
	}
	em.mu.Unlock()

	if em.bus != nil {
		em.bus.Emit(EventRemoved, map[string]interface{}{"entityId": id})
	}
}

// Cleanup удаляет из живого списка все неактивные сущности.
// Вызывается один раз за кадр после систем, поэтому «деактивирован сейчас,
// но ещё виден запросам в этом же кадре» не возникает.
// Возвращает ID удалённых сущностей, чтобы мир снял их с пространственной сетки.
func (em *EntityManager) Cleanup() []EntityID {
	em.mu.RLock()
	var stale []EntityID
	for id, e := range em.entities {
		if !e.active {
			stale = append(stale, id)
		}
	}
	em.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	for _, id := range stale {
		em.remove(id)
	}
	return stale
}

// Count возвращает количество зарегистрированных сущностей.
func (em *EntityManager) Count() int {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return len(em.entities)
}

// NextID возвращает следующий свободный идентификатор (для снапшотов).
func (em *EntityManager) NextID() EntityID {
	em.mu.RLock()
	defer em.mu.RUnlock()
	return em.nextID
}

// SetNextID выставляет счётчик идентификаторов (восстановление из снапшота).
func (em *EntityManager) SetNextID(id EntityID) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.nextID = id
}

// PooledCount возвращает суммарный размер freelist'ов всех пулов.
func (em *EntityManager) PooledCount() int {
	em.mu.RLock()
	defer em.mu.RUnlock()

	total := 0
	for _, p := range em.pools {
		total += len(p.free)
	}
	return total
}

// Stats возвращает статистику по сущностям для API и метрик.
func (em *EntityManager) Stats() map[string]interface{} {
	em.mu.RLock()
	defer em.mu.RUnlock()

	activeCount := 0
	typeStats := make(map[string]int)
	for _, e := range em.entities {
		if e.active {
			activeCount++
			typeStats[e.TypeName()]++
		}
	}

	pooled := 0
	for _, p := range em.pools {
		pooled += len(p.free)
	}

	return map[string]interface{}{
		"total_entities":  len(em.entities),
		"active_entities": activeCount,
		"entity_types":    typeStats,
		"pooled_entities": pooled,
		"tags_indexed":    len(em.tagIndex),
		"next_entity_id":  uint64(em.nextID),
	}
}

func sortByID(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}
