package eventbus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
)

// Envelope — контейнер события для внешних потребителей (JetStream).
// Поля фиксированы для версиирования и трассировки.
type Envelope struct {
	ID        string                 `json:"id"`        // Глобально уникальный идентификатор (UUID).
	Timestamp time.Time              `json:"timestamp"` // Время создания события (UTC).
	Source    string                 `json:"source"`    // Имя сервиса-источника.
	EventType string                 `json:"event_type"`
	Version   int                    `json:"version"` // Схема полезной нагрузки.
	Payload   map[string]interface{} `json:"payload"`
}

// JetStreamBridge ретранслирует события внутренней шины в NATS JetStream.
// Подписывается через OnAll и публикует в subject world.events.<type> через
// буферизованный канал; при переполнении события отбрасываются с учётом в Dropped.
type JetStreamBridge struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	stream    string
	source    string
	handle    Handle
	bus       *Bus
	out       chan Envelope
	done      chan struct{}
	published uint64
	dropped   uint64
}

// NewJetStreamBridge подключается к NATS, гарантирует наличие стрима
// и начинает ретрансляцию всех событий шины.
// url: nats://127.0.0.1:4222, stream: "WORLD_EVENTS".
func NewJetStreamBridge(bus *Bus, url, stream, source string) (*JetStreamBridge, error) {
	if stream == "" {
		stream = "WORLD_EVENTS"
	}
	if source == "" {
		source = "worldsim"
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Drain()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure stream exists (subjects: world.events.>)
	_, err = js.StreamInfo(stream)
	if err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{"world.events.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Drain()
			return nil, fmt.Errorf("add stream: %w", err)
		}
	}

	b := &JetStreamBridge{
		nc:     nc,
		js:     js,
		stream: stream,
		source: source,
		bus:    bus,
		out:    make(chan Envelope, 1024),
		done:   make(chan struct{}),
	}

	b.handle = bus.OnAll(func(ev Event) {
		env := Envelope{
			ID:        uuid.NewString(),
			Timestamp: ev.Timestamp.UTC(),
			Source:    source,
			EventType: ev.Type,
			Version:   1,
			Payload:   ev.Payload,
		}
		select {
		case b.out <- env:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	})

	go b.publishLoop()

	logging.Info("🌉 JetStream bridge: стрим %s, subject world.events.>", stream)
	return b, nil
}

// publishLoop сериализует конверты и публикует их в JetStream.
func (b *JetStreamBridge) publishLoop() {
	defer close(b.done)

	for env := range b.out {
		subj := fmt.Sprintf("world.events.%s", env.EventType)
		data, err := json.Marshal(env)
		if err != nil {
			atomic.AddUint64(&b.dropped, 1)
			continue
		}
		if _, err := b.js.Publish(subj, data); err != nil {
			atomic.AddUint64(&b.dropped, 1)
			logging.Warn("JetStream publish %s: %v", subj, err)
			continue
		}
		atomic.AddUint64(&b.published, 1)
	}
}

// Stats возвращает счётчики моста в терминах Stats шины.
func (b *JetStreamBridge) Stats() Stats {
	return Stats{
		Published: atomic.LoadUint64(&b.published),
		Dropped:   atomic.LoadUint64(&b.dropped),
		InFlight:  len(b.out),
	}
}

// Close отписывается от шины, дожидается публикации буфера и закрывает соединение.
func (b *JetStreamBridge) Close() error {
	b.bus.Off(b.handle)
	close(b.out)
	<-b.done
	return b.nc.Drain()
}
