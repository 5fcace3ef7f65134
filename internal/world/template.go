package world

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
)

// Template описывает заготовку сущности: компоненты по типам и теги
// по умолчанию. Компоненты хранятся в JSON, чтобы шаблон был независим
// от конкретных Go-типов и переживал сериализацию мира.
type Template struct {
	Name       string                             `json:"name"`
	Components map[component.Kind]json.RawMessage `json:"components"`
	Tags       []string                           `json:"tags,omitempty"`
}

// NewTemplate строит шаблон из готовых компонентов.
func NewTemplate(name string, tags []string, components ...component.Component) (*Template, error) {
	t := &Template{
		Name:       name,
		Components: make(map[component.Kind]json.RawMessage, len(components)),
		Tags:       append([]string(nil), tags...),
	}
	for _, c := range components {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("сериализация компонента %s шаблона %s: %w", c.Kind(), name, err)
		}
		t.Components[c.Kind()] = data
	}
	return t, nil
}

// RegisterTemplate регистрирует шаблон под именем. Повторная регистрация
// перезаписывает предыдущий шаблон.
func (w *World) RegisterTemplate(name string, t *Template) {
	w.tmplMu.Lock()
	defer w.tmplMu.Unlock()
	t.Name = name
	w.templates[name] = t
}

// Template возвращает зарегистрированный шаблон.
func (w *World) Template(name string) (*Template, bool) {
	w.tmplMu.RLock()
	defer w.tmplMu.RUnlock()
	t, ok := w.templates[name]
	return t, ok
}

// TemplateNames возвращает имена зарегистрированных шаблонов.
func (w *World) TemplateNames() []string {
	w.tmplMu.RLock()
	defer w.tmplMu.RUnlock()
	names := make([]string, 0, len(w.templates))
	for name := range w.templates {
		names = append(names, name)
	}
	return names
}

// SpawnFromTemplate создаёт сущность по шаблону. overrides — JSON-объекты
// по типам компонентов, глубоко сливаемые поверх шаблонных значений.
// Переопределение типа, отсутствующего в шаблоне, игнорируется.
func (w *World) SpawnFromTemplate(name string, overrides map[component.Kind]json.RawMessage) (*entity.Entity, error) {
	w.tmplMu.RLock()
	t, ok := w.templates[name]
	w.tmplMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("шаблон %q не зарегистрирован", name)
	}

	e := w.entities.CreateEntity()

	for kind, base := range t.Components {
		data := base
		if over, exists := overrides[kind]; exists {
			merged, err := mergeJSON(base, over)
			if err != nil {
				return nil, fmt.Errorf("слияние переопределений %s шаблона %s: %w", kind, name, err)
			}
			data = merged
		}

		c, err := component.Decode(kind, data)
		if err != nil {
			return nil, fmt.Errorf("декодирование компонента %s шаблона %s: %w", kind, name, err)
		}
		e.AddComponent(c)
	}

	for _, tag := range t.Tags {
		e.AddTag(tag)
	}
	return e, nil
}

// mergeJSON выполняет глубокое слияние двух JSON-объектов:
// поля override рекурсивно накладываются на base.
func mergeJSON(base, override json.RawMessage) (json.RawMessage, error) {
	var dst, src map[string]interface{}
	if err := json.Unmarshal(base, &dst); err != nil {
		return nil, fmt.Errorf("базовый объект: %w", err)
	}
	if err := json.Unmarshal(override, &src); err != nil {
		return nil, fmt.Errorf("переопределение: %w", err)
	}
	deepMerge(dst, src)
	return json.Marshal(dst)
}

// deepMerge рекурсивно накладывает src на dst; вложенные объекты
// сливаются, остальные значения перезаписываются.
func deepMerge(dst, src map[string]interface{}) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}
