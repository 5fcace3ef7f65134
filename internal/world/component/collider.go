package component

// Collider описывает участие сущности в проверках столкновений.
// Width/Height равные нулю означают «использовать размеры transform».
// Проверка слоёв однонаправленная: пара проверяется, если ХОТЯ БЫ ОДНА
// сторона указала слой другой в CollidesWith. Это сознательное решение:
// триггер может видеть твёрдый слой без встречной осведомлённости.
type Collider struct {
	Layer        string   `json:"layer"`
	CollidesWith []string `json:"collidesWith,omitempty"`
	Width        float64  `json:"width,omitempty"`
	Height       float64  `json:"height,omitempty"`
	OffsetX      float64  `json:"offsetX,omitempty"`
	OffsetY      float64  `json:"offsetY,omitempty"`
	IsSolid      bool     `json:"isSolid"`
	IsTrigger    bool     `json:"isTrigger,omitempty"`
}

// Kind возвращает тип компонента
func (c *Collider) Kind() Kind { return KindCollider }

// Clone возвращает копию компонента (срез слоёв копируется отдельно)
func (c *Collider) Clone() Component {
	cp := *c
	if c.CollidesWith != nil {
		cp.CollidesWith = append([]string(nil), c.CollidesWith...)
	}
	return &cp
}

// CanCollideWith проверяет, указан ли слой в списке CollidesWith
func (c *Collider) CanCollideWith(layer string) bool {
	for _, l := range c.CollidesWith {
		if l == layer {
			return true
		}
	}
	return false
}
