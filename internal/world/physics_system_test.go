package world

import (
	"testing"

	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnMover(w *World, ph *component.Physics) *entity.Entity {
	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 100, Y: 100, Width: 10, Height: 10}).
		AddComponent(ph)
	return e
}

func TestPhysicsSystem_GravityIntegration(t *testing.T) {
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{Gravity: 1000, AffectedByGravity: true})

	w.Update(0.1)

	ph, _ := e.Physics()
	tr, _ := e.Transform()
	assert.InDelta(t, 100.0, ph.VelocityY, 1e-9, "vy += g*dt")
	assert.InDelta(t, 110.0, tr.Y, 1e-9, "y += vy*dt")
}

func TestPhysicsSystem_MaxFallSpeedClamp(t *testing.T) {
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{
		Gravity:           1000,
		AffectedByGravity: true,
		MaxFallSpeed:      50,
	})

	w.Update(0.1)

	ph, _ := e.Physics()
	assert.InDelta(t, 50.0, ph.VelocityY, 1e-9, "Скорость падения ограничена MaxFallSpeed")
}

func TestPhysicsSystem_RisingNotClamped(t *testing.T) {
	// Ограничение действует только на падение, не на подъём
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{
		VelocityY:         -500,
		Gravity:           100,
		AffectedByGravity: true,
		MaxFallSpeed:      50,
	})

	w.Update(0.1)

	ph, _ := e.Physics()
	assert.InDelta(t, -490.0, ph.VelocityY, 1e-9, "Отрицательная (вверх) скорость не ограничивается")
}

func TestPhysicsSystem_AirResistanceDecaysHorizontal(t *testing.T) {
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{VelocityX: 100, AirResistance: 0.5})

	w.Update(1.0)

	ph, _ := e.Physics()
	assert.InDelta(t, 50.0, ph.VelocityX, 1e-6, "За секунду скорость гаснет в (1-k) раз")
}

func TestPhysicsSystem_EpsilonSnapToZero(t *testing.T) {
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{VelocityX: 0.015, AirResistance: 0.5})

	w.Update(1.0)

	ph, _ := e.Physics()
	assert.Equal(t, 0.0, ph.VelocityX, "Остаточный дрейф схлопывается в ноль")
}

func TestPhysicsSystem_GroundedResetEachFrame(t *testing.T) {
	// Опора сбрасывается в конце шага и заново подтверждается
	// системой коллизий следующего кадра
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{IsGrounded: true})

	w.Update(1.0 / 60)

	ph, _ := e.Physics()
	assert.False(t, ph.IsGrounded, "IsGrounded должен сбрасываться каждый кадр")
}

func TestPhysicsSystem_Dampening(t *testing.T) {
	w := newTestWorld(t)
	e := spawnMover(w, &component.Physics{VelocityX: 100, VelocityY: 100, Dampening: 0.5})

	w.Update(1.0)

	ph, _ := e.Physics()
	assert.InDelta(t, 50.0, ph.VelocityX, 1e-9)
	assert.InDelta(t, 50.0, ph.VelocityY, 1e-9)
}

func TestPhysicsSystem_SkipsEntitiesWithoutPhysics(t *testing.T) {
	w := newTestWorld(t)
	e := w.CreateEntity()
	e.AddComponent(&component.Transform{X: 5, Y: 5, Width: 1, Height: 1})

	require.NotPanics(t, func() { w.Update(1.0) })

	tr, _ := e.Transform()
	assert.Equal(t, 5.0, tr.X, "Сущность без physics не двигается")
}

func TestPhysicsSystem_FrictionWhenGrounded(t *testing.T) {
	// Трение опоры сильнее сопротивления воздуха: на земле
	// используется Friction, в воздухе — AirResistance
	w := newTestWorld(t)

	grounded := spawnMover(w, &component.Physics{
		VelocityX:  100,
		Friction:   0.75,
		IsGrounded: true,
	})
	airborne := spawnMover(w, &component.Physics{
		VelocityX:     100,
		Friction:      0.75,
		AirResistance: 0.25,
	})

	w.Update(1.0)

	phG, _ := grounded.Physics()
	phA, _ := airborne.Physics()
	assert.InDelta(t, 25.0, phG.VelocityX, 1e-6, "На земле действует Friction")
	assert.InDelta(t, 75.0, phA.VelocityX, 1e-6, "В воздухе действует AirResistance")
}
