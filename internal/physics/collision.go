package physics

import (
	"math"

	"github.com/annel0/ecs-world/internal/vec"
)

// Box представляет AABB с позицией левого верхнего угла.
type Box struct {
	X, Y float64 // Левый верхний угол.
	W, H float64
}

// NewBox создаёт AABB по левому верхнему углу и размерам.
func NewBox(x, y, w, h float64) Box {
	return Box{X: x, Y: y, W: w, H: h}
}

// Center возвращает центр прямоугольника.
func (b Box) Center() vec.Vec2 {
	return vec.Vec2{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Contains проверяет, находится ли точка внутри прямоугольника.
func (b Box) Contains(p vec.Vec2) bool {
	return p.X >= b.X && p.X < b.X+b.W &&
		p.Y >= b.Y && p.Y < b.Y+b.H
}

// Overlaps проверяет пересечение двух AABB без вычисления контакта.
func (b Box) Overlaps(other Box) bool {
	return b.X < other.X+other.W && b.X+b.W > other.X &&
		b.Y < other.Y+other.H && b.Y+b.H > other.Y
}

// Contact описывает результат узкой фазы для пары пересекающихся AABB.
// Normal направлена от контакта в сторону первого прямоугольника и выбрана
// по оси минимального проникновения.
type Contact struct {
	Normal      vec.Vec2 // Единичный осевой вектор.
	Penetration vec.Vec2 // Знаковая глубина по осям: (px*nx, py*ny).
	Point       vec.Vec2 // Детерминированный угол контакта.
	FromAbove   bool     // Normal.Y < 0: первый прямоугольник коснулся сверху.
}

// sign возвращает знак числа; ноль трактуется как +1,
// чтобы нормаль при точном совпадении центров была детерминированной.
func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// Intersect выполняет узкую фазу для пары AABB.
// Возвращает контакт с точки зрения a и true при пересечении.
//
// Глубины: px = (wA+wB)/2 - |dx|, py = (hA+hB)/2 - |dy|, где dx, dy —
// расстояние между центрами. Ось нормали — ось минимального проникновения;
// при точном равенстве px == py выбирается вертикаль.
func Intersect(a, b Box) (Contact, bool) {
	ca := a.Center()
	cb := b.Center()

	dx := ca.X - cb.X
	dy := ca.Y - cb.Y

	px := (a.W+b.W)/2 - math.Abs(dx)
	py := (a.H+b.H)/2 - math.Abs(dy)

	if px <= 0 || py <= 0 {
		return Contact{}, false
	}

	var normal vec.Vec2
	if px < py {
		normal = vec.Vec2{X: sign(dx), Y: 0}
	} else {
		normal = vec.Vec2{X: 0, Y: sign(dy)}
	}

	// Угол a, ближайший к центру b: выбирается знаком dx/dy.
	point := vec.Vec2{X: a.X + a.W, Y: a.Y + a.H}
	if dx > 0 {
		point.X = a.X
	}
	if dy > 0 {
		point.Y = a.Y
	}

	return Contact{
		Normal:      normal,
		Penetration: vec.Vec2{X: px * normal.X, Y: py * normal.Y},
		Point:       point,
		FromAbove:   normal.Y < 0,
	}, true
}

// Flip возвращает контакт с точки зрения второго участника пары:
// нормаль и проникновение меняют знак, FromAbove пересчитывается
// от перевёрнутой нормали. На строго вертикальном контакте ровно
// одна из сторон видит FromAbove == true.
func (c Contact) Flip() Contact {
	flipped := c
	flipped.Normal = c.Normal.Neg()
	flipped.Penetration = c.Penetration.Neg()
	flipped.FromAbove = flipped.Normal.Y < 0
	return flipped
}
