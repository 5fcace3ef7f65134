package component

import "github.com/annel0/ecs-world/internal/vec"

// Transform хранит позицию и размер сущности.
// X, Y — левый верхний угол прямоугольника сущности в мировых координатах.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
}

// Kind возвращает тип компонента
func (t *Transform) Kind() Kind { return KindTransform }

// Clone возвращает копию компонента
func (t *Transform) Clone() Component {
	c := *t
	return &c
}

// Center возвращает центр прямоугольника сущности
func (t *Transform) Center() vec.Vec2 {
	return vec.Vec2{X: t.X + t.Width/2, Y: t.Y + t.Height/2}
}
