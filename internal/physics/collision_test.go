package physics

import (
	"testing"

	"github.com/annel0/ecs-world/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersect_PlayerLandsOnPlatform(t *testing.T) {
	// Сценарий: игрок (0,0,32,48) перекрывает платформу (0,40,100,20) сверху на 8px
	player := NewBox(0, 0, 32, 48)
	platform := NewBox(0, 40, 100, 20)

	c, ok := Intersect(player, platform)
	require.True(t, ok, "Прямоугольники должны пересекаться")

	assert.Equal(t, vec.Vec2{X: 0, Y: -1}, c.Normal, "Нормаль должна указывать вверх")
	assert.True(t, c.FromAbove, "Контакт сверху должен давать FromAbove")
	assert.InDelta(t, -8.0, c.Penetration.Y, 1e-9, "Вертикальное проникновение должно быть -8")
	assert.InDelta(t, 0.0, c.Penetration.X, 1e-9)
}

func TestIntersect_NoOverlap(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(20, 20, 10, 10)

	_, ok := Intersect(a, b)
	assert.False(t, ok, "Непересекающиеся прямоугольники не дают контакта")
}

func TestIntersect_TouchingEdgesIsNotOverlap(t *testing.T) {
	// Тест: касание рёбрами (px == 0) не считается пересечением
	a := NewBox(0, 0, 10, 10)
	b := NewBox(10, 0, 10, 10)

	_, ok := Intersect(a, b)
	assert.False(t, ok, "Касание без проникновения не является пересечением")
}

func TestIntersect_NormalAxisSelection(t *testing.T) {
	// Таблица: ось нормали выбирается по минимальному проникновению,
	// знак — по положению центров
	cases := []struct {
		name   string
		a, b   Box
		normal vec.Vec2
	}{
		{
			name:   "горизонтальный контакт справа",
			a:      NewBox(28, 0, 32, 32),
			b:      NewBox(0, 0, 32, 32),
			normal: vec.Vec2{X: 1, Y: 0},
		},
		{
			name:   "горизонтальный контакт слева",
			a:      NewBox(-28, 0, 32, 32),
			b:      NewBox(0, 0, 32, 32),
			normal: vec.Vec2{X: -1, Y: 0},
		},
		{
			name:   "вертикальный контакт снизу",
			a:      NewBox(0, 28, 32, 32),
			b:      NewBox(0, 0, 32, 32),
			normal: vec.Vec2{X: 0, Y: 1},
		},
		{
			name: "равные проникновения решаются в пользу вертикали",
			// Центры смещены одинаково по обеим осям: px == py
			a:      NewBox(16, 16, 32, 32),
			b:      NewBox(0, 0, 32, 32),
			normal: vec.Vec2{X: 0, Y: 1},
		},
		{
			name: "полное совпадение даёт детерминированную нормаль",
			// dx == dy == 0: sign(0) == +1, ось — вертикаль
			a:      NewBox(0, 0, 32, 32),
			b:      NewBox(0, 0, 32, 32),
			normal: vec.Vec2{X: 0, Y: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, ok := Intersect(tc.a, tc.b)
			require.True(t, ok, "Пересечение должно быть обнаружено")
			assert.Equal(t, tc.normal, c.Normal)
		})
	}
}

func TestContact_Flip(t *testing.T) {
	// Свойство: на вертикальном контакте ровно одна сторона видит FromAbove
	player := NewBox(0, 0, 32, 48)
	platform := NewBox(0, 40, 100, 20)

	c, ok := Intersect(player, platform)
	require.True(t, ok)

	f := c.Flip()
	assert.Equal(t, c.Normal.Neg(), f.Normal, "Нормаль должна поменять знак")
	assert.Equal(t, c.Penetration.Neg(), f.Penetration, "Проникновение должно поменять знак")
	assert.True(t, c.FromAbove != f.FromAbove, "Ровно одна сторона вертикального контакта видит FromAbove")

	// Flip обратен сам себе
	back := f.Flip()
	assert.Equal(t, c.Normal, back.Normal)
	assert.Equal(t, c.Penetration, back.Penetration)
}

func TestBox_CenterAndContains(t *testing.T) {
	b := NewBox(10, 20, 30, 40)

	assert.Equal(t, vec.Vec2{X: 25, Y: 40}, b.Center())
	assert.True(t, b.Contains(vec.Vec2{X: 10, Y: 20}), "Левый верхний угол включён")
	assert.False(t, b.Contains(vec.Vec2{X: 40, Y: 60}), "Правый нижний угол исключён")
}

func TestIntersect_ContactPointCorner(t *testing.T) {
	// Тест: точка контакта — угол первого прямоугольника, ближайший к центру второго
	a := NewBox(28, 10, 32, 32) // A справа и ниже B
	b := NewBox(0, 0, 32, 32)

	c, ok := Intersect(a, b)
	require.True(t, ok)

	// dx > 0, dy > 0: ближайший угол — левый верхний угол A
	assert.Equal(t, vec.Vec2{X: 28, Y: 10}, c.Point)
}
