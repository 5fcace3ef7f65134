package world

import (
	"sort"
	"time"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/world/component"
)

// System — единица логики симуляции, прогоняемая миром каждый кадр.
// Приоритет определяет порядок запуска: меньший приоритет раньше.
// RequiredComponents объявляет компоненты, по которым мир выбирает
// сущности для системы.
type System interface {
	Name() string
	Priority() int
	RequiredComponents() []component.Kind
	Update(w *World, dt float64)
}

// DrawTarget — абстрактная поверхность отрисовки. Ядро не рендерит само;
// интерфейс оставлен для систем с графическим выводом.
type DrawTarget interface{}

// DrawableSystem — опциональная способность системы рисовать.
type DrawableSystem interface {
	System
	Draw(w *World, target DrawTarget)
}

// SystemManager хранит системы в порядке возрастания приоритета
// и прогоняет их за один кадр. Регистрация пересортировывает список,
// поэтому Add безопасен и после старта симуляции.
type SystemManager struct {
	systems []System
}

// NewSystemManager создаёт пустой менеджер систем.
func NewSystemManager() *SystemManager {
	return &SystemManager{}
}

// Add регистрирует систему и восстанавливает порядок приоритетов.
// При равных приоритетах сохраняется порядок регистрации.
func (sm *SystemManager) Add(s System) {
	sm.systems = append(sm.systems, s)
	sort.SliceStable(sm.systems, func(i, j int) bool {
		return sm.systems[i].Priority() < sm.systems[j].Priority()
	})
	logging.Debug("⚙️ Система %s зарегистрирована (приоритет %d)", s.Name(), s.Priority())
}

// Remove удаляет систему по имени. Возвращает true, если система была найдена.
func (sm *SystemManager) Remove(name string) bool {
	for i, s := range sm.systems {
		if s.Name() == name {
			sm.systems = append(sm.systems[:i], sm.systems[i+1:]...)
			return true
		}
	}
	return false
}

// Get возвращает систему по имени.
func (sm *SystemManager) Get(name string) (System, bool) {
	for _, s := range sm.systems {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Systems возвращает снимок списка систем в порядке запуска.
func (sm *SystemManager) Systems() []System {
	out := make([]System, len(sm.systems))
	copy(out, sm.systems)
	return out
}

// Update прогоняет все системы в порядке возрастания приоритета.
// Возвращает длительность прохода для метрик кадра.
func (sm *SystemManager) Update(w *World, dt float64) time.Duration {
	start := time.Now()
	for _, s := range sm.systems {
		s.Update(w, dt)
	}
	return time.Since(start)
}

// Draw передаёт цель отрисовки системам, умеющим рисовать.
func (sm *SystemManager) Draw(w *World, target DrawTarget) {
	for _, s := range sm.systems {
		if ds, ok := s.(DrawableSystem); ok {
			ds.Draw(w, target)
		}
	}
}
