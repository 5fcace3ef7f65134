package entity

import (
	"sort"

	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/physics"
	"github.com/annel0/ecs-world/internal/world/component"
)

// EntityID — уникальный идентификатор сущности в пределах одного мира.
type EntityID uint64

// Имена событий жизненного цикла сущности.
const (
	EventComponentAdded   = "entity:component_added"
	EventComponentRemoved = "entity:component_removed"
	EventTagAdded         = "entity:tag_added"
	EventTagRemoved       = "entity:tag_removed"
	EventActivated        = "entity:activated"
	EventDeactivated      = "entity:deactivated"
	EventReset            = "entity:reset"
	EventDestroyed        = "entity:destroyed"
)

// CollisionHandler — синхронный хук узкой фазы. Вызывается системой коллизий
// для обоих участников пары: первому передаётся вычисленный контакт,
// второму — его перевёрнутая копия.
type CollisionHandler func(self, other *Entity, contact physics.Contact)

// tagIndexer получает уведомления о смене тегов для поддержания индекса.
// Реализуется менеджером; вызывается синхронно, чтобы индекс не отставал
// от состояния сущности внутри кадра.
type tagIndexer interface {
	tagAdded(e *Entity, tag string)
	tagRemoved(e *Entity, tag string)
}

// Entity представляет один игровой объект: идентификатор, набор компонентов
// по типам и множество тегов. Поведение задаётся составом компонентов и
// хуком коллизий, а не иерархией типов.
type Entity struct {
	ID EntityID

	components map[component.Kind]component.Component
	tags       map[string]struct{}
	active     bool

	bus         *eventbus.Bus // nil для отсоединённой сущности: события не эмитятся.
	indexer     tagIndexer
	onCollision CollisionHandler
}

// NewEntity создаёт активную сущность без компонентов и тегов.
// bus может быть nil — тогда события жизненного цикла не эмитятся.
func NewEntity(id EntityID, bus *eventbus.Bus) *Entity {
	return &Entity{
		ID:         id,
		components: make(map[component.Kind]component.Component),
		tags:       make(map[string]struct{}),
		active:     true,
		bus:        bus,
	}
}

func (e *Entity) emit(eventType string, payload map[string]interface{}) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(eventType, payload)
}

// AddComponent сохраняет копию компонента (значение вызывающего кода никогда
// не алиасится) и возвращает сущность для цепочек вызовов. Существующий
// компонент того же типа перезаписывается.
func (e *Entity) AddComponent(c component.Component) *Entity {
	kind := c.Kind()
	old := e.components[kind]
	e.components[kind] = c.Clone()

	e.emit(EventComponentAdded, map[string]interface{}{
		"entityId": e.ID,
		"kind":     string(kind),
		"old":      old,
		"new":      e.components[kind],
	})
	return e
}

// GetComponent возвращает компонент по типу или (nil, false).
func (e *Entity) GetComponent(kind component.Kind) (component.Component, bool) {
	c, ok := e.components[kind]
	return c, ok
}

// HasComponent проверяет наличие компонента.
func (e *Entity) HasComponent(kind component.Kind) bool {
	_, ok := e.components[kind]
	return ok
}

// HasComponents проверяет наличие всех перечисленных компонентов (AND-семантика).
func (e *Entity) HasComponents(kinds ...component.Kind) bool {
	for _, k := range kinds {
		if _, ok := e.components[k]; !ok {
			return false
		}
	}
	return true
}

// RemoveComponent удаляет компонент. Отсутствующий тип — безопасный no-op
// без события.
func (e *Entity) RemoveComponent(kind component.Kind) {
	old, ok := e.components[kind]
	if !ok {
		return
	}
	delete(e.components, kind)

	e.emit(EventComponentRemoved, map[string]interface{}{
		"entityId": e.ID,
		"kind":     string(kind),
		"old":      old,
	})
}

// Transform возвращает компонент transform для мутации на месте.
func (e *Entity) Transform() (*component.Transform, bool) {
	c, ok := e.components[component.KindTransform]
	if !ok {
		return nil, false
	}
	return c.(*component.Transform), true
}

// Physics возвращает компонент physics для мутации на месте.
func (e *Entity) Physics() (*component.Physics, bool) {
	c, ok := e.components[component.KindPhysics]
	if !ok {
		return nil, false
	}
	return c.(*component.Physics), true
}

// Collider возвращает компонент collider.
func (e *Entity) Collider() (*component.Collider, bool) {
	c, ok := e.components[component.KindCollider]
	if !ok {
		return nil, false
	}
	return c.(*component.Collider), true
}

// TypeInfo возвращает компонент классификации типа.
func (e *Entity) TypeInfo() (*component.TypeInfo, bool) {
	c, ok := e.components[component.KindTypeInfo]
	if !ok {
		return nil, false
	}
	return c.(*component.TypeInfo), true
}

// TypeName возвращает имя игрового типа или "unknown".
func (e *Entity) TypeName() string {
	if ti, ok := e.TypeInfo(); ok {
		return ti.Name
	}
	return "unknown"
}

// ComponentKinds возвращает отсортированный список типов компонентов сущности.
func (e *Entity) ComponentKinds() []component.Kind {
	kinds := make([]component.Kind, 0, len(e.components))
	for k := range e.components {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// AddTag добавляет тег. Повторное добавление — no-op без события.
func (e *Entity) AddTag(tag string) *Entity {
	if _, exists := e.tags[tag]; exists {
		return e
	}
	e.tags[tag] = struct{}{}
	if e.indexer != nil {
		e.indexer.tagAdded(e, tag)
	}

	e.emit(EventTagAdded, map[string]interface{}{
		"entityId": e.ID,
		"tag":      tag,
	})
	return e
}

// HasTag проверяет наличие тега.
func (e *Entity) HasTag(tag string) bool {
	_, ok := e.tags[tag]
	return ok
}

// RemoveTag удаляет тег. Отсутствующий тег — безопасный no-op без события.
func (e *Entity) RemoveTag(tag string) {
	if _, exists := e.tags[tag]; !exists {
		return
	}
	delete(e.tags, tag)
	if e.indexer != nil {
		e.indexer.tagRemoved(e, tag)
	}

	e.emit(EventTagRemoved, map[string]interface{}{
		"entityId": e.ID,
		"tag":      tag,
	})
}

// Tags возвращает отсортированный список тегов.
func (e *Entity) Tags() []string {
	tags := make([]string, 0, len(e.tags))
	for t := range e.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Active сообщает, участвует ли сущность в проходах систем.
func (e *Entity) Active() bool {
	return e.active
}

// Activate включает сущность. Идемпотентно: событие эмитится только
// при фактической смене состояния.
func (e *Entity) Activate() {
	if e.active {
		return
	}
	e.active = true
	e.emit(EventActivated, map[string]interface{}{"entityId": e.ID})
}

// Deactivate выключает сущность. Идемпотентно.
func (e *Entity) Deactivate() {
	if !e.active {
		return
	}
	e.active = false
	e.emit(EventDeactivated, map[string]interface{}{"entityId": e.ID})
}

// Reset очищает компоненты и теги, реактивирует сущность и эмитит
// entity:reset со снимком состояния до очистки. Используется пулом
// при повторном использовании.
func (e *Entity) Reset() {
	oldKinds := e.ComponentKinds()
	oldTags := e.Tags()

	for _, tag := range oldTags {
		if e.indexer != nil {
			e.indexer.tagRemoved(e, tag)
		}
	}

	e.components = make(map[component.Kind]component.Component)
	e.tags = make(map[string]struct{})
	e.active = true
	e.onCollision = nil

	e.emit(EventReset, map[string]interface{}{
		"entityId": e.ID,
		"kinds":    oldKinds,
		"tags":     oldTags,
	})
}

// Destroy деактивирует сущность и эмитит entity:destroyed.
// Фактическое удаление из менеджера происходит в конце кадра (Cleanup).
func (e *Entity) Destroy() {
	e.Deactivate()
	e.emit(EventDestroyed, map[string]interface{}{
		"entityId": e.ID,
		"type":     e.TypeName(),
	})
}

// SetCollisionHandler устанавливает синхронный хук коллизий.
func (e *Entity) SetCollisionHandler(h CollisionHandler) {
	e.onCollision = h
}

// OnCollision — удобный синоним SetCollisionHandler для декларативного
// стиля настройки сущности.
func (e *Entity) OnCollision(h CollisionHandler) *Entity {
	e.onCollision = h
	return e
}

// CollisionHandler возвращает установленный хук или nil.
func (e *Entity) CollisionHandler() CollisionHandler {
	return e.onCollision
}
