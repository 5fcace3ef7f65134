package middleware

import (
	"time"

	"github.com/annel0/ecs-world/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет строку
// завершения с методом, маршрутом, статусом и задержкой. Уровень строки
// зависит от статуса: 5xx — error, 4xx — warn, остальное — info.
// Высокочастотные служебные маршруты из skip-списка не логируются.
type RequestLogger struct {
	skip map[string]struct{}
}

// NewRequestLogger создаёт логгер запросов. skipPaths — маршруты,
// которые не попадают в лог; без аргументов пропускаются /metrics
// и /health.
func NewRequestLogger(skipPaths ...string) *RequestLogger {
	if len(skipPaths) == 0 {
		skipPaths = []string{"/metrics", "/health"}
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &RequestLogger{skip: skip}
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := requestTraceID(c)
		c.Set("trace_id", traceID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, skipped := rl.skip[path]; skipped {
			return
		}

		status := c.Writer.Status()
		const line = "[HTTP] %s %s %d %s ip=%s trace=%s"
		args := []interface{}{c.Request.Method, path, status, time.Since(start), c.ClientIP(), traceID}
		switch {
		case status >= 500:
			logging.Error(line, args...)
		case status >= 400:
			logging.Warn(line, args...)
		default:
			logging.Info(line, args...)
		}
	}
}

// requestTraceID берёт идентификатор из активного OpenTelemetry спана,
// либо генерирует собственный, когда телеметрия выключена.
func requestTraceID(c *gin.Context) string {
	span := trace.SpanFromContext(c.Request.Context())
	if sc := span.SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}
