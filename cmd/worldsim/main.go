package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/ecs-world/internal/api"
	"github.com/annel0/ecs-world/internal/auth"
	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/eventbus"
	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/observability"
	"github.com/annel0/ecs-world/internal/storage"
	"github.com/annel0/ecs-world/internal/util"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или WORLDSIM_CONFIG)")
	seed := flag.Int64("seed", 42, "сид генерации демо-сцены")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitDefaultLogger("worldsim"); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logging.CloseDefaultLogger()

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetDefaultConsoleLevel(level)
	} else {
		logging.Warn("⚠️ %v, используется INFO", err)
	}

	if err := run(cfg, *seed); err != nil {
		logging.Error("💥 Фатальная ошибка: %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config, seed int64) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Телеметрия (опционально) ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, &cfg.Telemetry)
		if err != nil {
			logging.Warn("⚠️ Телеметрия недоступна: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logging.Warn("⚠️ Остановка телеметрии: %v", err)
				}
			}()
		}
	}

	// === Хранилище снимков ===
	repo, err := storage.NewSnapshotRepo(&cfg.Storage)
	if err != nil {
		return fmt.Errorf("хранилище снимков: %w", err)
	}
	defer repo.Close()

	// === Мир: автосейв или свежая сцена ===
	w, err := buildWorld(ctx, cfg, repo, seed)
	if err != nil {
		return err
	}

	// === NATS JetStream мост (опционально) ===
	var bridge *eventbus.JetStreamBridge
	if url := cfg.EventBus.GetURL(); url != "" {
		bridge, err = eventbus.NewJetStreamBridge(w.Bus(), url, cfg.EventBus.Stream, "worldsim")
		if err != nil {
			logging.Warn("⚠️ NATS недоступен, события останутся локальными: %v", err)
			bridge = nil
		}
	}

	// На уровне debug каждое событие шины дублируется в лог.
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil && level <= logging.DEBUG {
		eventbus.StartLoggingListener(w.Bus())
	}

	// === Prometheus ===
	busMetrics := eventbus.NewMetricsExporter(w.Bus())
	busMetrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	defer busMetrics.Stop()

	worldMetrics := world.NewWorldMetricsExporter(w)
	worldMetrics.Start()
	defer worldMetrics.Stop()

	// === REST API ===
	adminUser, adminPass := cfg.Server.AdminUser, cfg.Server.AdminPass
	if adminUser == "" || adminPass == "" {
		adminUser, adminPass = "admin", "admin"
		logging.Warn("⚠️ Учётные данные администратора не заданы, используются значения по умолчанию")
	}
	userRepo, err := auth.NewMemoryUserRepo(adminUser, adminPass)
	if err != nil {
		return fmt.Errorf("репозиторий пользователей: %w", err)
	}
	tokens, err := auth.NewTokenService(cfg.Server.GetJWTSecret(), 0)
	if err != nil {
		return fmt.Errorf("сервис токенов: %w", err)
	}

	restServer := api.NewRestServer(api.Config{
		Port:     fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:    w,
		Repo:     repo,
		UserRepo: userRepo,
		Tokens:   tokens,
	})
	restServer.Start()

	// === Цикл симуляции с фиксированным шагом ===
	tickRate := cfg.Simulation.GetTickRate()
	dt := 1.0 / float64(tickRate)
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	var autosave <-chan time.Time
	if cfg.Simulation.AutosaveSeconds > 0 {
		at := time.NewTicker(time.Duration(cfg.Simulation.AutosaveSeconds) * time.Second)
		defer at.Stop()
		autosave = at.C
	}

	// Отдельный лог-файл симуляционного цикла.
	simLog := logging.GetComponentLogger("simulation")
	simLog.Info("⚙️ Симуляция запущена: %d тиков/с, REST :%d, метрики :%d",
		tickRate, cfg.Server.GetRESTPort(), cfg.Server.GetMetricsPort())

	for {
		select {
		case <-ticker.C:
			w.Update(dt)

		case <-autosave:
			saveSnapshot(w, repo, cfg.Simulation.AutosaveSnapshot)

		case <-ctx.Done():
			simLog.Info("🔴 Получен сигнал завершения")

			saveSnapshot(w, repo, cfg.Simulation.AutosaveSnapshot)

			if bridge != nil {
				if err := bridge.Close(); err != nil {
					logging.Warn("⚠️ Закрытие NATS моста: %v", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := restServer.Stop(shutdownCtx); err != nil {
				logging.Warn("⚠️ Остановка REST сервера: %v", err)
			}

			simLog.Info("🔴 Симуляция остановлена на кадре %d", w.Frames())
			return nil
		}
	}
}

// buildWorld восстанавливает мир из автосейва или создаёт свежую сцену.
// Шаблоны и пулы регистрируются в обоих случаях: пулы не сериализуются,
// а перерегистрация шаблона идемпотентна.
func buildWorld(ctx context.Context, cfg *config.Config, repo storage.SnapshotRepo, seed int64) (*world.World, error) {
	var w *world.World

	snap, found, err := repo.Load(ctx, cfg.Simulation.AutosaveSnapshot)
	if err != nil {
		logging.Warn("⚠️ Чтение автосейва: %v", err)
	}
	if found {
		w, err = world.Deserialize(cfg, snap)
		if err != nil {
			return nil, fmt.Errorf("восстановление автосейва: %w", err)
		}
		logging.Info("📥 Продолжаем с автосейва %q (%d сущностей)",
			cfg.Simulation.AutosaveSnapshot, len(snap.Entities))
	} else {
		w, err = world.New(cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := registerTemplates(w, cfg); err != nil {
		return nil, err
	}
	registerCratePool(w, cfg)

	if !found {
		seedScene(w, cfg, seed)
	}
	return w, nil
}

// registerTemplates описывает три типа сущностей демо-сцены.
func registerTemplates(w *world.World, cfg *config.Config) error {
	platform, err := world.NewTemplate("platform", []string{"platform"},
		&component.Transform{Width: 128, Height: 16},
		&component.Collider{Layer: "ground", IsSolid: true},
		&component.TypeInfo{Name: "platform"},
	)
	if err != nil {
		return err
	}

	player, err := world.NewTemplate("player", []string{"player"},
		&component.Transform{Width: 32, Height: 48},
		&component.Physics{
			Gravity:           cfg.World.Gravity,
			AffectedByGravity: true,
			Friction:          0.8,
			AirResistance:     0.05,
			MaxFallSpeed:      600,
		},
		&component.Collider{Layer: "player", CollidesWith: []string{"ground", "crate"}, IsSolid: true},
		&component.TypeInfo{Name: "player"},
	)
	if err != nil {
		return err
	}

	crate, err := world.NewTemplate("crate", []string{"crate"},
		&component.Transform{Width: 24, Height: 24},
		&component.Physics{
			Gravity:           cfg.World.Gravity,
			AffectedByGravity: true,
			Friction:          0.6,
			MaxFallSpeed:      600,
		},
		&component.Collider{Layer: "crate", CollidesWith: []string{"ground"}, IsSolid: true},
		&component.TypeInfo{Name: "crate"},
	)
	if err != nil {
		return err
	}

	w.RegisterTemplate("platform", platform)
	w.RegisterTemplate("player", player)
	w.RegisterTemplate("crate", crate)
	return nil
}

// registerCratePool прогревает пул ящиков для переиспользования.
// Reset при повторном спавне очищает компоненты, поэтому экипировка
// повторяется после каждого SpawnFromPool.
func registerCratePool(w *world.World, cfg *config.Config) {
	w.CreatePool("crates", "crate", func(e *entity.Entity) {
		equipCrate(e, cfg)
	}, 8)
}

// equipCrate наделяет сущность компонентами ящика.
func equipCrate(e *entity.Entity, cfg *config.Config) {
	e.AddComponent(&component.Transform{Width: 24, Height: 24}).
		AddComponent(&component.Physics{
			Gravity:           cfg.World.Gravity,
			AffectedByGravity: true,
			Friction:          0.6,
			MaxFallSpeed:      600,
		}).
		AddComponent(&component.Collider{Layer: "crate", CollidesWith: []string{"ground"}, IsSolid: true}).
		AddComponent(&component.TypeInfo{Name: "crate"})
}

// transformOverride формирует переопределение позиции для SpawnFromTemplate.
func transformOverride(x, y float64) map[component.Kind]json.RawMessage {
	data, _ := json.Marshal(map[string]float64{"x": x, "y": y})
	return map[component.Kind]json.RawMessage{component.KindTransform: data}
}

// saveSnapshot сериализует мир и сохраняет его под именем автосейва.
func saveSnapshot(w *world.World, repo storage.SnapshotRepo, name string) {
	if name == "" {
		name = "autosave"
	}

	snap, err := w.Serialize()
	if err != nil {
		logging.Error("❌ Сериализация мира: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Save(ctx, name, snap); err != nil {
		logging.Error("❌ Сохранение снимка %q: %v", name, err)
		return
	}
	logging.Info("💾 Автосейв %q: %d сущностей", name, len(snap.Entities))
}

// seedScene строит стартовую сцену: полоса платформ по шуму Перлина,
// игрок над первой платформой и несколько ящиков из пула.
func seedScene(w *world.World, cfg *config.Config, seed int64) {
	noise := util.NewNoise(seed)

	const platformWidth = 128.0
	worldHeight := cfg.World.MaxY - cfg.World.MinY

	// Платформы занимают нижнюю половину мира; высота каждой берётся
	// из одномерного шума вдоль оси X.
	count := 0
	for x := cfg.World.MinX; x+platformWidth <= cfg.World.MaxX; x += platformWidth {
		h := noise.At1D(x * 0.002)
		y := cfg.World.MinY + worldHeight*(0.5+0.4*h)

		if _, err := w.SpawnFromTemplate("platform", transformOverride(x, y)); err != nil {
			logging.Error("❌ Спавн платформы: %v", err)
			return
		}
		count++
	}

	// Игрок над первой платформой.
	firstY := cfg.World.MinY + worldHeight*(0.5+0.4*noise.At1D(cfg.World.MinX*0.002))
	if _, err := w.SpawnFromTemplate("player", transformOverride(cfg.World.MinX+48, firstY-96)); err != nil {
		logging.Error("❌ Спавн игрока: %v", err)
		return
	}

	// Несколько ящиков из пула, разбросанных двумерным шумом.
	for i := 0; i < 5; i++ {
		crate := w.SpawnFromPool("crates")
		equipCrate(crate, cfg)
		if tr, ok := crate.Transform(); ok {
			tr.X = cfg.World.MinX + noise.At2D(float64(i)*0.7, 0.3)*(cfg.World.MaxX-cfg.World.MinX-64)
			tr.Y = cfg.World.MinY + worldHeight*0.25
		}
	}

	logging.Info("🌍 Демо-сцена: %d платформ, игрок, 5 ящиков (сид %d)", count, seed)
}
