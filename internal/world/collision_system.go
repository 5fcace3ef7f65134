package world

import (
	"fmt"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/physics"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
)

// Имена событий столкновений. К generic-событию добавляются
// квалифицированные варианты по игровым типам участников.
const (
	EventCollision = "collision"

	collisionSystemName = "collision"
	collisionPriority   = 10
)

// CollisionSystem — широкая и узкая фазы обнаружения столкновений.
// Работает до физики: выставленный здесь IsGrounded переживает кадр
// до сброса интегратором, и следующая система видит актуальную опору.
//
// Система не разрешает пересечения позиционно — это ответственность
// хуков onCollision конкретных сущностей.
type CollisionSystem struct {
	pairsChecked uint64
	pairsHit     uint64
}

// NewCollisionSystem создаёт систему коллизий.
func NewCollisionSystem() *CollisionSystem {
	return &CollisionSystem{}
}

func (cs *CollisionSystem) Name() string  { return collisionSystemName }
func (cs *CollisionSystem) Priority() int { return collisionPriority }

func (cs *CollisionSystem) RequiredComponents() []component.Kind {
	return []component.Kind{component.KindTransform, component.KindCollider}
}

// PairsChecked возвращает накопленное число проверенных пар (для метрик).
func (cs *CollisionSystem) PairsChecked() uint64 { return cs.pairsChecked }

// PairsHit возвращает накопленное число подтверждённых столкновений.
func (cs *CollisionSystem) PairsHit() uint64 { return cs.pairsHit }

// Update прогоняет один кадр обнаружения столкновений:
// обновление сетки -> кандидаты -> фильтр слоёв -> узкая фаза ->
// grounding -> события -> синхронные хуки.
func (cs *CollisionSystem) Update(w *World, dt float64) {
	w.refreshGrid()

	for _, pair := range w.grid.PotentialPairs() {
		a, okA := w.entities.GetEntity(pair.A)
		b, okB := w.entities.GetEntity(pair.B)
		if !okA || !okB || !a.Active() || !b.Active() {
			continue
		}

		colA, okA := a.Collider()
		colB, okB := b.Collider()
		if !okA || !okB {
			continue
		}

		// Однонаправленной осведомлённости достаточно
		if !colA.CanCollideWith(colB.Layer) && !colB.CanCollideWith(colA.Layer) {
			continue
		}

		boxA, okA := colliderBox(a)
		boxB, okB := colliderBox(b)
		if !okA || !okB {
			continue
		}

		cs.pairsChecked++
		contact, hit := physics.Intersect(boxA, boxB)
		if !hit {
			continue
		}
		cs.pairsHit++

		cs.ground(a, colB, contact)
		cs.ground(b, colA, contact.Flip())

		cs.emitCollision(w, a, b, contact)

		if h := a.CollisionHandler(); h != nil {
			invokeHook(h, a, b, contact)
		}
		if h := b.CollisionHandler(); h != nil {
			invokeHook(h, b, a, contact.Flip())
		}
	}
}

// colliderBox строит AABB узкой фазы: позиция transform с оффсетом коллайдера,
// размеры коллайдера либо transform при нулевых.
func colliderBox(e *entity.Entity) (physics.Box, bool) {
	tr, ok := e.Transform()
	if !ok {
		return physics.Box{}, false
	}
	col, ok := e.Collider()
	if !ok {
		return physics.Box{}, false
	}

	w, h := col.Width, col.Height
	if w == 0 {
		w = tr.Width
	}
	if h == 0 {
		h = tr.Height
	}
	return physics.NewBox(tr.X+col.OffsetX, tr.Y+col.OffsetY, w, h), true
}

// ground выставляет опору сущности при контакте сверху с твёрдым коллайдером.
// Сброс флага делает физическая система в конце своего шага.
func (cs *CollisionSystem) ground(e *entity.Entity, other *component.Collider, contact physics.Contact) {
	if !contact.FromAbove || !other.IsSolid {
		return
	}
	if ph, ok := e.Physics(); ok {
		ph.IsGrounded = true
	}
}

// emitCollision эмитит generic-событие и квалифицированные варианты
// по игровым типам участников.
func (cs *CollisionSystem) emitCollision(w *World, a, b *entity.Entity, contact physics.Contact) {
	payload := map[string]interface{}{
		"entityA":     a.ID,
		"entityB":     b.ID,
		"typeA":       a.TypeName(),
		"typeB":       b.TypeName(),
		"normal":      contact.Normal,
		"penetration": contact.Penetration,
		"fromAbove":   contact.FromAbove,
	}

	w.bus.Emit(EventCollision, payload)
	w.bus.Emit(fmt.Sprintf("%s:%s", EventCollision, a.TypeName()), payload)
	w.bus.Emit(fmt.Sprintf("%s:%s:%s", EventCollision, a.TypeName(), b.TypeName()), payload)
}

// invokeHook вызывает хук коллизий с изоляцией паник: упавший хук
// не валит кадр, как и упавший слушатель шины.
func invokeHook(h entity.CollisionHandler, self, other *entity.Entity, contact physics.Contact) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("💥 Паника в хуке коллизий сущности %d: %v", self.ID, r)
		}
	}()
	h(self, other, contact)
}
