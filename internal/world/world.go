package world

import (
	"fmt"
	"sync"
	"time"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
)

// World — фасад симуляции: владеет шиной событий, менеджером сущностей,
// пространственной сеткой и системами. Шаг симуляции однопоточный;
// грубый RWMutex на фасаде позволяет наблюдателям (REST API, экспортёр
// метрик) читать состояние между кадрами.
type World struct {
	cfg       *config.Config
	bus       *eventbus.Bus
	entities  *entity.EntityManager
	grid      *SpatialGrid
	systems   *SystemManager
	collision *CollisionSystem
	templates map[string]*Template

	frames        uint64
	lastFrameTime time.Duration

	mu sync.RWMutex
	// Шаблоны под отдельным замком: SpawnFromTemplate разрешён из хуков,
	// которые выполняются, пока кадр держит mu.
	tmplMu sync.RWMutex
}

// New создаёт мир по конфигурации. Ошибки конфигурации сетки фатальны
// на этапе конструирования. Регистрирует системы коллизий и физики.
func New(cfg *config.Config) (*World, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	grid, err := NewSpatialGrid(
		cfg.World.MinX, cfg.World.MinY,
		cfg.World.MaxX, cfg.World.MaxY,
		cfg.World.CellSize,
	)
	if err != nil {
		return nil, fmt.Errorf("создание пространственной сетки: %w", err)
	}

	bus := eventbus.NewBus()
	w := &World{
		cfg:       cfg,
		bus:       bus,
		entities:  entity.NewEntityManager(bus),
		grid:      grid,
		systems:   NewSystemManager(),
		collision: NewCollisionSystem(),
		templates: make(map[string]*Template),
	}

	w.systems.Add(w.collision)
	w.systems.Add(NewPhysicsSystem())

	logging.Info("🌍 Мир создан: границы (%.0f,%.0f)-(%.0f,%.0f), ячейка %.0f",
		cfg.World.MinX, cfg.World.MinY, cfg.World.MaxX, cfg.World.MaxY, cfg.World.CellSize)
	return w, nil
}

// Update выполняет один кадр симуляции: системы по приоритетам,
// очистка неактивных сущностей, доставка событий кадра.
func (w *World) Update(dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastFrameTime = w.systems.Update(w, dt)

	for _, id := range w.entities.Cleanup() {
		w.grid.Remove(id)
	}

	w.bus.Process()
	w.frames++
}

// Draw передаёт цель отрисовки системам с графическим выводом.
// Ядро таких систем не регистрирует.
func (w *World) Draw(target DrawTarget) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	w.systems.Draw(w, target)
}

// AddSystem регистрирует пользовательскую систему.
func (w *World) AddSystem(s System) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.systems.Add(s)
}

// refreshGrid переиндексирует сетку по текущим центрам сущностей
// с transform. Вызывается системой коллизий и пространственными
// запросами перед чтением. Сущности, потерявшие transform, снимаются
// с индекса: последняя проиндексированная позиция не должна переживать
// компонент, который её задавал.
func (w *World) refreshGrid() {
	indexed := make(map[entity.EntityID]struct{})
	for _, e := range w.entities.EntitiesWith(component.KindTransform) {
		if tr, ok := e.Transform(); ok {
			c := tr.Center()
			w.grid.Update(e.ID, c.X, c.Y)
			indexed[e.ID] = struct{}{}
		}
	}

	for _, id := range w.grid.Tracked() {
		if _, ok := indexed[id]; !ok {
			w.grid.Remove(id)
		}
	}
}

// CreateEntity создаёт и регистрирует новую сущность.
func (w *World) CreateEntity() *entity.Entity {
	return w.entities.CreateEntity()
}

// GetEntity возвращает сущность по ID.
func (w *World) GetEntity(id entity.EntityID) (*entity.Entity, bool) {
	return w.entities.GetEntity(id)
}

// DestroyEntity уничтожает сущность немедленно и снимает её с сетки.
func (w *World) DestroyEntity(id entity.EntityID) bool {
	if !w.entities.DestroyEntity(id) {
		return false
	}
	w.grid.Remove(id)
	return true
}

// CreatePool регистрирует пул сущностей (passthrough к менеджеру).
func (w *World) CreatePool(name, tag string, factory func(*entity.Entity), size int) {
	w.entities.CreatePool(name, tag, factory, size)
}

// SpawnFromPool достаёт сущность из пула.
func (w *World) SpawnFromPool(name string) *entity.Entity {
	return w.entities.SpawnFromPool(name)
}

// ReturnToPool возвращает сущность в её пул.
func (w *World) ReturnToPool(e *entity.Entity) {
	w.entities.ReturnToPool(e)
}

// EntitiesWithTag возвращает активные сущности с тегом.
func (w *World) EntitiesWithTag(tag string) []*entity.Entity {
	return w.entities.EntitiesWithTag(tag)
}

// EntitiesWith возвращает активные сущности со всеми перечисленными компонентами.
func (w *World) EntitiesWith(kinds ...component.Kind) []*entity.Entity {
	return w.entities.EntitiesWith(kinds...)
}

// EntitiesInRadius возвращает активные сущности, чьи центры лежат в радиусе r
// от точки. Сетка переиндексируется по актуальным transform перед запросом.
func (w *World) EntitiesInRadius(x, y, r float64) []*entity.Entity {
	w.refreshGrid()
	return w.resolve(w.grid.QueryRadius(x, y, r))
}

// EntitiesInRect возвращает активные сущности с центрами внутри прямоугольника.
func (w *World) EntitiesInRect(minX, minY, maxX, maxY float64) []*entity.Entity {
	w.refreshGrid()
	return w.resolve(w.grid.QueryRect(minX, minY, maxX, maxY))
}

// resolve превращает ID из сетки в живые активные сущности.
func (w *World) resolve(ids []entity.EntityID) []*entity.Entity {
	result := make([]*entity.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := w.entities.GetEntity(id); ok && e.Active() {
			result = append(result, e)
		}
	}
	return result
}

// On подписывает слушателя на тип события.
func (w *World) On(eventType string, fn eventbus.Handler) eventbus.Handle {
	return w.bus.On(eventType, fn)
}

// OnAll подписывает слушателя на все события.
func (w *World) OnAll(fn eventbus.Handler) eventbus.Handle {
	return w.bus.OnAll(fn)
}

// Off отписывает слушателя.
func (w *World) Off(h eventbus.Handle) bool {
	return w.bus.Off(h)
}

// Emit ставит событие в очередь текущего кадра.
func (w *World) Emit(eventType string, payload map[string]interface{}) {
	w.bus.Emit(eventType, payload)
}

// Bus возвращает шину событий мира (для моста и экспортёра метрик).
func (w *World) Bus() *eventbus.Bus {
	return w.bus
}

// Entities возвращает менеджер сущностей.
func (w *World) Entities() *entity.EntityManager {
	return w.entities
}

// Config возвращает конфигурацию мира.
func (w *World) Config() *config.Config {
	return w.cfg
}

// Frames возвращает число завершённых кадров.
func (w *World) Frames() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.frames
}

// Stats возвращает счётчики мира для API и экспортёра метрик.
func (w *World) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := w.entities.Stats()
	gridStats := w.grid.Stats()

	stats["frames"] = w.frames
	stats["last_frame_us"] = w.lastFrameTime.Microseconds()
	stats["collision_pairs_checked"] = w.collision.PairsChecked()
	stats["collision_pairs_hit"] = w.collision.PairsHit()
	stats["grid_cells"] = gridStats.Cells
	stats["grid_entities"] = gridStats.Entities
	stats["grid_max_per_cell"] = gridStats.MaxPerCell
	w.tmplMu.RLock()
	stats["templates"] = len(w.templates)
	w.tmplMu.RUnlock()
	stats["events"] = w.bus.Stats()
	return stats
}
