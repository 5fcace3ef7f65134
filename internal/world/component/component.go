package component

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Kind идентифицирует тип компонента ("transform", "physics", "collider"...)
type Kind string

// Базовые типы компонентов ядра.
const (
	KindTransform Kind = "transform"
	KindPhysics   Kind = "physics"
	KindCollider  Kind = "collider"
	KindTypeInfo  Kind = "type"
)

// Component представляет именованную запись данных, принадлежащую одной сущности.
// Компоненты добавляются и удаляются динамически — это механизм смены состояний.
type Component interface {
	// Kind возвращает тип компонента
	Kind() Kind

	// Clone возвращает глубокую копию компонента.
	// Сущность хранит только копии — значение вызывающего кода никогда не алиасится.
	Clone() Component
}

// factory создаёт пустой компонент для десериализации
type factory func() Component

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]factory)
)

// Register регистрирует фабрику компонента для типа.
// Повторная регистрация того же типа — ошибка конфигурации.
func Register(kind Kind, f factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[kind]; exists {
		return fmt.Errorf("тип компонента %q уже зарегистрирован", kind)
	}
	registry[kind] = f
	return nil
}

// mustRegister регистрирует встроенные типы на этапе инициализации пакета
func mustRegister(kind Kind, f factory) {
	if err := Register(kind, f); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister(KindTransform, func() Component { return &Transform{} })
	mustRegister(KindPhysics, func() Component { return &Physics{} })
	mustRegister(KindCollider, func() Component { return &Collider{} })
	mustRegister(KindTypeInfo, func() Component { return &TypeInfo{} })
}

// Known возвращает отсортированный список зарегистрированных типов
func Known() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Decode восстанавливает компонент из JSON по его типу.
// Незарегистрированный тип не является ошибкой: данные сохраняются
// как Raw и переживают повторную сериализацию без потерь.
func Decode(kind Kind, data []byte) (Component, error) {
	registryMu.RLock()
	f, known := registry[kind]
	registryMu.RUnlock()

	if !known {
		raw := &Raw{RawKind: kind, Data: append(json.RawMessage(nil), data...)}
		return raw, nil
	}

	c := f()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("десериализация компонента %q: %w", kind, err)
	}
	return c, nil
}

// Encode сериализует компонент в JSON для снапшота
func Encode(c Component) ([]byte, error) {
	if raw, ok := c.(*Raw); ok {
		return append([]byte(nil), raw.Data...), nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("сериализация компонента %q: %w", c.Kind(), err)
	}
	return data, nil
}
