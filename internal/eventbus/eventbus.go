package eventbus

import (
	"sync"
	"time"

	"github.com/annel0/ecs-world/internal/logging"
)

// Event представляет одно событие в очереди шины.
type Event struct {
	Seq       uint64                 // Монотонный порядковый номер внутри шины.
	Type      string                 // Тип события ("collision", "entity:destroyed"…).
	Timestamp time.Time              // Время постановки в очередь.
	Payload   map[string]interface{} // Непрозрачные данные, формат определяют эмиттер и слушатель.
}

// Handler потребляет события.
type Handler func(ev Event)

// Handle возвращается при подписке; позволяет отписаться через Off.
type Handle struct {
	id uint64
}

// Stats агрегированные метрики шины.
type Stats struct {
	Published uint64 // Поставлено в очередь за всё время.
	Consumed  uint64 // Доставлено слушателям (по событиям, не по вызовам).
	Dropped   uint64 // Отброшено через Clear.
	InFlight  int    // Текущая глубина очереди.
}

type listener struct {
	id      uint64
	handler Handler
}

// Bus — шина событий с отложенной доставкой.
// Emit только ставит событие в очередь; доставка происходит в Process,
// который вызывается один раз за кадр после всех систем. События,
// эмитированные слушателями во время Process, откладываются до следующего
// вызова — это исключает рекурсию внутри кадра и фиксирует порядок
// «запрос → мутация → уведомление».
//
// Экземпляры изолированы: каждый мир держит собственную шину.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]listener // Тип события -> слушатели в порядке подписки.
	all       []listener            // OnAll-слушатели, вызываются после типовых.
	queue     []Event
	nextID    uint64
	nextSeq   uint64
	stats     Stats
}

// NewBus создаёт пустую шину событий.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[string][]listener),
	}
}

// On подписывает обработчик на события указанного типа.
// Слушатели одного типа вызываются в порядке подписки.
func (b *Bus) On(eventType string, h Handler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[eventType] = append(b.listeners[eventType], listener{id: b.nextID, handler: h})
	return Handle{id: b.nextID}
}

// OnAll подписывает обработчик на все типы событий.
// Для каждого события OnAll-слушатели вызываются после типовых.
func (b *Bus) OnAll(h Handler) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.all = append(b.all, listener{id: b.nextID, handler: h})
	return Handle{id: b.nextID}
}

// Off отписывает обработчик. Возвращает false, если подписка не найдена.
func (b *Bus) Off(h Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, ls := range b.listeners {
		for i, l := range ls {
			if l.id == h.id {
				b.listeners[eventType] = append(ls[:i:i], ls[i+1:]...)
				return true
			}
		}
	}
	for i, l := range b.all {
		if l.id == h.id {
			b.all = append(b.all[:i:i], b.all[i+1:]...)
			return true
		}
	}
	return false
}

// Emit ставит событие в очередь. Доставка никогда не происходит синхронно.
func (b *Bus) Emit(eventType string, payload map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	b.queue = append(b.queue, Event{
		Seq:       b.nextSeq,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
	b.stats.Published++
}

// Process доставляет события, поставленные в очередь ДО вызова.
// События, эмитированные слушателями во время доставки, попадают
// в новую очередь и ждут следующего Process.
func (b *Bus) Process() {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, ev := range batch {
		b.mu.Lock()
		typed := append([]listener(nil), b.listeners[ev.Type]...)
		all := append([]listener(nil), b.all...)
		b.mu.Unlock()

		for _, l := range typed {
			b.dispatch(l, ev)
		}
		for _, l := range all {
			b.dispatch(l, ev)
		}

		b.mu.Lock()
		b.stats.Consumed++
		b.mu.Unlock()
	}
}

// dispatch вызывает обработчик, изолируя панику: сбойный слушатель
// не должен блокировать доставку остальным.
func (b *Bus) dispatch(l listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Паника в слушателе события %s: %v", ev.Type, r)
		}
	}()
	l.handler(ev)
}

// Clear отбрасывает все события из очереди (учитываются как Dropped).
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Dropped += uint64(len(b.queue))
	b.queue = nil
}

// Pending возвращает текущую глубину очереди.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Stats возвращает снимок метрик шины.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.InFlight = len(b.queue)
	return s
}
