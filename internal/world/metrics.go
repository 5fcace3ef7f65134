package world

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorldMetricsExporter публикует счётчики мира в Prometheus.
// Снимает World.Stats() по тикеру; HTTP-эндпоинт не поднимает —
// он общий с экспортёром шины (promhttp обслуживает глобальный регистр).
type WorldMetricsExporter struct {
	world *World
	quit  chan struct{}
	done  chan struct{}

	entitiesTotal  prometheus.Gauge
	entitiesActive prometheus.Gauge
	entitiesPooled prometheus.Gauge
	frames         prometheus.Counter
	frameDuration  prometheus.Gauge
	pairsChecked   prometheus.Counter
	pairsHit       prometheus.Counter
	gridCells      prometheus.Gauge
	gridMaxPerCell prometheus.Gauge
}

// NewWorldMetricsExporter создаёт экспортёр и регистрирует метрики
// в глобальном регистре Prometheus.
func NewWorldMetricsExporter(w *World) *WorldMetricsExporter {
	me := &WorldMetricsExporter{
		world: w,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		entitiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "entities_total",
			Help:      "Зарегистрированных сущностей.",
		}),
		entitiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "entities_active",
			Help:      "Активных сущностей.",
		}),
		entitiesPooled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "entities_pooled",
			Help:      "Сущностей в freelist'ах пулов.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "frames_total",
			Help:      "Завершённых кадров симуляции.",
		}),
		frameDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "frame_duration_microseconds",
			Help:      "Длительность прохода систем последнего кадра.",
		}),
		pairsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "collision_pairs_checked_total",
			Help:      "Пар, прошедших узкую фазу.",
		}),
		pairsHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "collision_pairs_hit_total",
			Help:      "Подтверждённых столкновений.",
		}),
		gridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "grid_cells_occupied",
			Help:      "Непустых ячеек пространственной сетки.",
		}),
		gridMaxPerCell: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "grid_max_entities_per_cell",
			Help:      "Максимальная занятость ячейки сетки.",
		}),
	}

	prometheus.MustRegister(
		me.entitiesTotal, me.entitiesActive, me.entitiesPooled,
		me.frames, me.frameDuration,
		me.pairsChecked, me.pairsHit,
		me.gridCells, me.gridMaxPerCell,
	)
	return me
}

// Start запускает цикл обновления метрик.
func (m *WorldMetricsExporter) Start() {
	go m.loop()
}

// Stop останавливает обновление метрик.
func (m *WorldMetricsExporter) Stop() {
	close(m.quit)
	<-m.done
}

func (m *WorldMetricsExporter) loop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer close(m.done)

	// Counter принимает только приращения, поэтому храним прошлые значения.
	var prevFrames, prevChecked, prevHit uint64

	for {
		select {
		case <-ticker.C:
			stats := m.world.Stats()

			if v, ok := stats["total_entities"].(int); ok {
				m.entitiesTotal.Set(float64(v))
			}
			if v, ok := stats["active_entities"].(int); ok {
				m.entitiesActive.Set(float64(v))
			}
			if v, ok := stats["pooled_entities"].(int); ok {
				m.entitiesPooled.Set(float64(v))
			}
			if v, ok := stats["last_frame_us"].(int64); ok {
				m.frameDuration.Set(float64(v))
			}
			if v, ok := stats["grid_cells"].(int); ok {
				m.gridCells.Set(float64(v))
			}
			if v, ok := stats["grid_max_per_cell"].(int); ok {
				m.gridMaxPerCell.Set(float64(v))
			}

			if v, ok := stats["frames"].(uint64); ok && v > prevFrames {
				m.frames.Add(float64(v - prevFrames))
				prevFrames = v
			}
			if v, ok := stats["collision_pairs_checked"].(uint64); ok && v > prevChecked {
				m.pairsChecked.Add(float64(v - prevChecked))
				prevChecked = v
			}
			if v, ok := stats["collision_pairs_hit"].(uint64); ok && v > prevHit {
				m.pairsHit.Add(float64(v - prevHit))
				prevHit = v
			}
		case <-m.quit:
			return
		}
	}
}
