package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/ecs-world/internal/config"
	"github.com/annel0/ecs-world/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// serviceName — имя сервиса в атрибутах ресурса трейсов.
const serviceName = "worldsim"

// InitTelemetry настраивает OTLP HTTP экспортер по конфигурации телеметрии
// и устанавливает глобальный TracerProvider. Пустой endpoint оставляет
// стандартный адрес коллектора (localhost:4318); заданный используется
// без TLS. Возвращает функцию shutdown, которую нужно вызвать при
// завершении приложения.
func InitTelemetry(ctx context.Context, cfg *config.TelemetryConfig) (func(context.Context) error, error) {
	var opts []otlptracehttp.Option
	endpoint := "localhost:4318"
	if cfg != nil && cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
		opts = append(opts,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание OTLP экспортера: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("описание ресурса трейсов: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	logging.Info("📡 OpenTelemetry инициализирован (OTLP → %s, service=%s)", endpoint, serviceName)

	shutdown := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}
	return shutdown, nil
}
