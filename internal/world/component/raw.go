package component

import "encoding/json"

// Raw хранит компонент незарегистрированного типа как непрозрачный JSON.
// Позволяет снапшотам со сторонними компонентами переживать цикл
// сериализация → десериализация → сериализация без потерь.
type Raw struct {
	RawKind Kind            `json:"-"`
	Data    json.RawMessage `json:"-"`
}

// Kind возвращает исходный тип компонента
func (r *Raw) Kind() Kind { return r.RawKind }

// Clone возвращает копию компонента
func (r *Raw) Clone() Component {
	return &Raw{
		RawKind: r.RawKind,
		Data:    append(json.RawMessage(nil), r.Data...),
	}
}
