package world

import (
	"math"

	"github.com/annel0/ecs-world/internal/world/component"
)

const (
	physicsSystemName = "physics"
	physicsPriority   = 20

	// Скорости ниже порога схлопываются в ноль, чтобы экспоненциальное
	// затухание трения не оставляло вечный дрейф.
	velocityEpsilon = 0.01
)

// PhysicsSystem — интегратор движения. Работает после системы коллизий:
// читает IsGrounded, выставленный в этом же кадре, и сбрасывает его
// в конце шага — опора заново подтверждается следующим кадром.
type PhysicsSystem struct{}

// NewPhysicsSystem создаёт систему физики.
func NewPhysicsSystem() *PhysicsSystem {
	return &PhysicsSystem{}
}

func (ps *PhysicsSystem) Name() string  { return physicsSystemName }
func (ps *PhysicsSystem) Priority() int { return physicsPriority }

func (ps *PhysicsSystem) RequiredComponents() []component.Kind {
	return []component.Kind{component.KindTransform, component.KindPhysics}
}

// Update выполняет шаг интегратора для всех подходящих сущностей:
// гравитация -> трение/сопротивление воздуха -> интегрирование ->
// сброс опоры -> демпфирование.
func (ps *PhysicsSystem) Update(w *World, dt float64) {
	for _, e := range w.entities.EntitiesWith(ps.RequiredComponents()...) {
		tr, okT := e.Transform()
		ph, okP := e.Physics()
		if !okT || !okP {
			continue
		}

		if ph.AffectedByGravity {
			ph.VelocityY += ph.Gravity * dt
			if ph.MaxFallSpeed > 0 && ph.VelocityY > ph.MaxFallSpeed {
				ph.VelocityY = ph.MaxFallSpeed
			}
		}

		if ph.IsGrounded {
			ph.VelocityX = decay(ph.VelocityX, ph.Friction, dt)
		} else {
			ph.VelocityX = decay(ph.VelocityX, ph.AirResistance, dt)
		}

		tr.X += ph.VelocityX * dt
		tr.Y += ph.VelocityY * dt

		// Опора заново подтверждается системой коллизий следующего кадра
		ph.IsGrounded = false

		if ph.Dampening != 0 && ph.Dampening != 1 {
			ph.VelocityX *= ph.Dampening
			ph.VelocityY *= ph.Dampening
		}
	}
}

// decay экспоненциально гасит скорость с коэффициентом k и схлопывает
// остаточный дрейф в ноль. k == 0 оставляет скорость без изменений.
func decay(v, k, dt float64) float64 {
	if k <= 0 {
		return v
	}
	if k >= 1 {
		return 0
	}
	v *= math.Pow(1-k, dt)
	if math.Abs(v) < velocityEpsilon {
		return 0
	}
	return v
}
