package component

// TypeInfo классифицирует сущность по имени игрового типа ("player", "platform").
// Используется для квалифицированных событий коллизий collision:<typeA>:<typeB>.
type TypeInfo struct {
	Name string `json:"name"`
}

// Kind возвращает тип компонента
func (t *TypeInfo) Kind() Kind { return KindTypeInfo }

// Clone возвращает копию компонента
func (t *TypeInfo) Clone() Component {
	c := *t
	return &c
}
