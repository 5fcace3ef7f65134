package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitIsDeferred(t *testing.T) {
	// Тест: Emit никогда не вызывает слушателя синхронно
	bus := NewBus()

	delivered := 0
	bus.On("ping", func(ev Event) { delivered++ })

	bus.Emit("ping", nil)
	assert.Equal(t, 0, delivered, "Доставка не должна происходить при Emit")

	bus.Process()
	assert.Equal(t, 1, delivered, "Process должен доставить событие ровно один раз")

	bus.Process()
	assert.Equal(t, 1, delivered, "Повторный Process не должен доставлять событие снова")
}

func TestBus_SubscriptionOrder(t *testing.T) {
	// Тест: слушатели одного типа вызываются в порядке подписки,
	// OnAll — после типовых
	bus := NewBus()

	var order []string
	bus.On("t", func(ev Event) { order = append(order, "L1") })
	bus.On("t", func(ev Event) { order = append(order, "L2") })
	bus.OnAll(func(ev Event) { order = append(order, "ALL") })

	bus.Emit("t", nil)
	bus.Process()

	assert.Equal(t, []string{"L1", "L2", "ALL"}, order, "Порядок доставки должен соответствовать порядку подписки")
}

func TestBus_EmitOrderPreserved(t *testing.T) {
	// Тест: события доставляются в порядке постановки в очередь
	bus := NewBus()

	var seen []string
	bus.OnAll(func(ev Event) { seen = append(seen, ev.Type) })

	bus.Emit("a", nil)
	bus.Emit("b", nil)
	bus.Emit("c", nil)
	bus.Process()

	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestBus_EmitDuringProcessIsDeferred(t *testing.T) {
	// Тест: события, эмитированные слушателем во время Process,
	// откладываются до следующего вызова
	bus := NewBus()

	cascades := 0
	bus.On("first", func(ev Event) {
		bus.Emit("second", nil)
	})
	bus.On("second", func(ev Event) { cascades++ })

	bus.Emit("first", nil)
	bus.Process()
	assert.Equal(t, 0, cascades, "Каскадное событие не должно доставляться в том же проходе")
	assert.Equal(t, 1, bus.Pending(), "Каскадное событие должно остаться в очереди")

	bus.Process()
	assert.Equal(t, 1, cascades, "Каскадное событие доставляется следующим проходом")
}

func TestBus_Off(t *testing.T) {
	bus := NewBus()

	calls := 0
	h := bus.On("t", func(ev Event) { calls++ })

	require.True(t, bus.Off(h), "Off должен найти активную подписку")
	assert.False(t, bus.Off(h), "Повторный Off должен вернуть false")

	bus.Emit("t", nil)
	bus.Process()
	assert.Equal(t, 0, calls, "Отписанный слушатель не должен вызываться")
}

func TestBus_PanicIsolation(t *testing.T) {
	// Тест: паника в одном слушателе не блокирует доставку другим
	bus := NewBus()

	survived := false
	bus.On("t", func(ev Event) { panic("boom") })
	bus.On("t", func(ev Event) { survived = true })

	bus.Emit("t", nil)
	assert.NotPanics(t, func() { bus.Process() }, "Паника слушателя не должна выходить из Process")
	assert.True(t, survived, "Второй слушатель должен получить событие несмотря на панику первого")
}

func TestBus_Stats(t *testing.T) {
	bus := NewBus()
	bus.On("t", func(ev Event) {})

	bus.Emit("t", nil)
	bus.Emit("t", nil)

	s := bus.Stats()
	assert.Equal(t, uint64(2), s.Published)
	assert.Equal(t, 2, s.InFlight)

	bus.Process()
	bus.Emit("t", nil)
	bus.Clear()

	s = bus.Stats()
	assert.Equal(t, uint64(2), s.Consumed, "Consumed считает доставленные события")
	assert.Equal(t, uint64(1), s.Dropped, "Clear учитывает отброшенные события")
	assert.Equal(t, 0, s.InFlight)
}

func TestBus_MonotonicSequence(t *testing.T) {
	bus := NewBus()

	var seqs []uint64
	bus.OnAll(func(ev Event) { seqs = append(seqs, ev.Seq) })

	bus.Emit("a", nil)
	bus.Emit("b", nil)
	bus.Process()

	require.Len(t, seqs, 2)
	assert.Less(t, seqs[0], seqs[1], "Порядковые номера должны монотонно расти")
}

func TestBus_IsolatedInstances(t *testing.T) {
	// Тест: шины изолированы, событие одной не видно в другой
	b1 := NewBus()
	b2 := NewBus()

	got := 0
	b2.On("t", func(ev Event) { got++ })

	b1.Emit("t", nil)
	b1.Process()
	b2.Process()

	assert.Equal(t, 0, got, "Событие не должно пересекать границы экземпляров шины")
}
