package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise — детерминированный генератор шума Перлина для процедурного
// размещения сущностей (высоты платформ, разброс декораций).
// Экземпляр на сид: без глобального состояния, два мира с разными
// сидами не мешают друг другу.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор с сидом. Параметры сглаживания, частоты
// и числа октав подобраны под плавный рельеф уровня.
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // сглаживание
	beta := 2.0   // частота
	n := int32(3) // октавы
	return &Noise{p: perlin.NewPerlin(alpha, beta, n, seed)}
}

// At2D возвращает значение шума в точке, нормированное в [0, 1].
func (n *Noise) At2D(x, y float64) float64 {
	return (n.p.Noise2D(x, y) + 1.0) / 2.0
}

// At1D возвращает одномерный шум в [0, 1] (профиль высот вдоль оси X).
func (n *Noise) At1D(x float64) float64 {
	return (n.p.Noise1D(x) + 1.0) / 2.0
}
