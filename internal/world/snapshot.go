package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
)

// EntitySnapshot — сериализованное состояние одной сущности.
type EntitySnapshot struct {
	ID         entity.EntityID                    `json:"id"`
	Tags       []string                           `json:"tags,omitempty"`
	Components map[component.Kind]json.RawMessage `json:"components"`
}

// Snapshot — полное сериализованное состояние мира: активные сущности,
// счётчик идентификаторов и реестр шаблонов. Формат — JSON: неизвестные
// типы компонентов переживают цикл сериализации как Raw.
type Snapshot struct {
	Version      int                  `json:"version"`
	CreatedAt    time.Time            `json:"createdAt"`
	NextEntityID entity.EntityID      `json:"nextEntityId"`
	Entities     []EntitySnapshot     `json:"entities"`
	Templates    map[string]*Template `json:"templates,omitempty"`
}

// snapshotVersion инкрементируется при несовместимых изменениях формата.
const snapshotVersion = 1

// Serialize создаёт снимок мира. Сериализуются только активные сущности:
// деактивированные и пул-freelist'ы — переходное состояние кадра,
// не подлежащее сохранению.
func (w *World) Serialize() (*Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := &Snapshot{
		Version:      snapshotVersion,
		CreatedAt:    time.Now().UTC(),
		NextEntityID: w.entities.NextID(),
		Templates:    make(map[string]*Template),
	}
	w.tmplMu.RLock()
	for name, t := range w.templates {
		snap.Templates[name] = t
	}
	w.tmplMu.RUnlock()

	for _, e := range w.entities.All() {
		if !e.Active() {
			continue
		}

		es := EntitySnapshot{
			ID:         e.ID,
			Tags:       e.Tags(),
			Components: make(map[component.Kind]json.RawMessage),
		}
		for _, kind := range e.ComponentKinds() {
			c, _ := e.GetComponent(kind)
			data, err := component.Encode(c)
			if err != nil {
				return nil, fmt.Errorf("сущность %d: %w", e.ID, err)
			}
			es.Components[kind] = data
		}
		snap.Entities = append(snap.Entities, es)
	}

	sort.Slice(snap.Entities, func(i, j int) bool {
		return snap.Entities[i].ID < snap.Entities[j].ID
	})

	logging.Debug("📸 Снимок мира: %d сущностей, nextID=%d", len(snap.Entities), snap.NextEntityID)
	return snap, nil
}

// Deserialize восстанавливает мир из снимка в СВЕЖИЙ экземпляр с той же
// конфигурацией. Восстановление в новый мир, а не в существующий, снимает
// вопрос повторного использования ID: счётчик берётся из снимка, живых
// сущностей с конфликтующими ID не существует.
func Deserialize(cfg *config.Config, snap *Snapshot) (*World, error) {
	if snap == nil {
		return nil, fmt.Errorf("пустой снимок")
	}

	w, err := New(cfg)
	if err != nil {
		return nil, fmt.Errorf("создание мира для восстановления: %w", err)
	}

	for name, t := range snap.Templates {
		w.RegisterTemplate(name, t)
	}

	for _, es := range snap.Entities {
		e := entity.NewEntity(es.ID, nil)
		for kind, data := range es.Components {
			c, err := component.Decode(kind, data)
			if err != nil {
				return nil, fmt.Errorf("сущность %d: %w", es.ID, err)
			}
			e.AddComponent(c)
		}
		for _, tag := range es.Tags {
			e.AddTag(tag)
		}
		w.entities.AddEntity(e)
	}

	w.entities.SetNextID(snap.NextEntityID)

	logging.Info("📥 Мир восстановлен из снимка: %d сущностей, nextID=%d",
		len(snap.Entities), snap.NextEntityID)
	return w, nil
}
