package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.

type Config struct {
	World      WorldConfig      `yaml:"world"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	EventBus   EventBusConfig   `yaml:"eventbus"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// WorldConfig задаёт границы мира и параметры пространственной сетки.
type WorldConfig struct {
	MinX     float64 `yaml:"min_x"`
	MinY     float64 `yaml:"min_y"`
	MaxX     float64 `yaml:"max_x"`
	MaxY     float64 `yaml:"max_y"`
	// CellSize должен быть не меньше габарита самой крупной сущности:
	// индекс широкой фазы хранит только центры, и пара с центрами
	// в разных ячейках не проверяется узкой фазой.
	CellSize float64 `yaml:"cell_size"`
	Gravity  float64 `yaml:"gravity"`
}

// SimulationConfig задаёт параметры цикла симуляции.
type SimulationConfig struct {
	TickRate         int    `yaml:"tick_rate"`
	AutosaveSeconds  int    `yaml:"autosave_seconds"`
	AutosaveSnapshot string `yaml:"autosave_snapshot"`
}

type ServerConfig struct {
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"`
	AdminUser   string `yaml:"admin_user"`
	AdminPass   string `yaml:"admin_pass"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

// StorageConfig выбирает backend снапшотов и его параметры подключения.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // memory|file|badger|redis|maria|mongo
	Path     string `yaml:"path"`    // для file и badger
	RedisDSN string `yaml:"redis_dsn"`
	MariaDSN string `yaml:"maria_dsn"`
	MongoURI string `yaml:"mongo_uri"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "WORLDSIM_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "WORLDSIM_METRICS_PORT", 2112)
}

// GetJWTSecret возвращает секрет подписи токенов: config -> env -> default
func (s *ServerConfig) GetJWTSecret() string {
	if s.JWTSecret != "" {
		return s.JWTSecret
	}
	if env := os.Getenv("WORLDSIM_JWT_SECRET"); env != "" {
		return env
	}
	return "worldsim-dev-secret"
}

// GetURL возвращает адрес NATS: config -> env -> default
func (e *EventBusConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if env := os.Getenv("WORLDSIM_NATS_URL"); env != "" {
		return env
	}
	return ""
}

// GetTickRate возвращает частоту тиков, минимум 1
func (s *SimulationConfig) GetTickRate() int {
	if s.TickRate > 0 {
		return s.TickRate
	}
	return 60
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Default возвращает конфигурацию по умолчанию (библиотечный путь и тесты).
func Default() *Config {
	return &Config{
		World: WorldConfig{
			MinX:     0,
			MinY:     0,
			MaxX:     4096,
			MaxY:     2048,
			CellSize: 128,
			Gravity:  980,
		},
		Simulation: SimulationConfig{
			TickRate:         60,
			AutosaveSeconds:  0,
			AutosaveSnapshot: "autosave",
		},
		Storage: StorageConfig{Backend: "memory"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV WORLDSIM_CONFIG или возвращает дефолты.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("WORLDSIM_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	return cfg, nil
}
