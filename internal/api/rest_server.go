package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/ecs-world/internal/auth"
	"github.com/annel0/ecs-world/internal/logging"
	"github.com/annel0/ecs-world/internal/middleware"
	"github.com/annel0/ecs-world/internal/storage"
	"github.com/annel0/ecs-world/internal/world"
	"github.com/annel0/ecs-world/internal/world/component"
	"github.com/annel0/ecs-world/internal/world/entity"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer — HTTP-интерфейс инспекции и управления миром: статистика,
// сущности, спавн по шаблонам, снимки. Мутирующие эндпоинты защищены JWT.
type RestServer struct {
	router   *gin.Engine
	world    *world.World
	repo     storage.SnapshotRepo
	userRepo auth.UserRepository
	tokens   *auth.TokenService
	port     string
	metrics  *ServerMetrics
	srv      *http.Server
}

// Config содержит зависимости REST сервера.
type Config struct {
	Port     string               // адрес вида ":8088"
	World    *world.World         // мир для инспекции
	Repo     storage.SnapshotRepo // хранилище снимков
	UserRepo auth.UserRepository  // аккаунты API
	Tokens   *auth.TokenService   // подпись и проверка JWT
}

// NewRestServer собирает сервер с observability-middleware и маршрутами.
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger().Handler())
	router.Use(otelgin.Middleware("rest_api"))

	promMw := middleware.NewPrometheusMiddleware("rest_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	router.Use(corsMiddleware())

	server := &RestServer{
		router:   router,
		world:    cfg.World,
		repo:     cfg.Repo,
		userRepo: cfg.UserRepo,
		tokens:   cfg.Tokens,
		port:     cfg.Port,
		metrics:  NewServerMetrics(),
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API.
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/metrics-info", rs.handleMetricsInfo)

	api := rs.router.Group("/api")

	api.POST("/auth/login", rs.handleLogin)

	// Чтение доступно без токена
	api.GET("/world/stats", rs.handleWorldStats)
	api.GET("/world/entities", rs.handleListEntities)
	api.GET("/world/entities/:id", rs.handleGetEntity)
	api.GET("/snapshots", rs.handleListSnapshots)

	// Мутации — только с токеном
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.POST("/world/entities", rs.handleSpawnEntity)
		protected.DELETE("/world/entities/:id", rs.handleDestroyEntity)
		protected.POST("/snapshots/:name", rs.handleSaveSnapshot)
		protected.POST("/snapshots/:name/restore", rs.handleRestoreSnapshot)
		// Удаление снимков — только администраторам
		protected.DELETE("/snapshots/:name", rs.adminMiddleware(), rs.handleDeleteSnapshot)
	}
}

// GenericResponse — общий конверт ответов API.
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest — запрос на вход.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse — ответ на вход.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	UserID  uint64 `json:"user_id,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// SpawnRequest — запрос на спавн сущности по шаблону.
type SpawnRequest struct {
	Template  string                             `json:"template" binding:"required"`
	Overrides map[component.Kind]json.RawMessage `json:"overrides,omitempty"`
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": rs.metrics.GetUptime(),
		"frames": rs.world.Frames(),
	})
}

// handleMetricsInfo возвращает runtime-метрики процесса (gopsutil).
func (rs *RestServer) handleMetricsInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: map[string]interface{}{
			"uptime":         rs.metrics.GetUptime(),
			"memory_mb":      fmt.Sprintf("%.2f", memoryMB),
			"cpu_percent":    fmt.Sprintf("%.2f", cpuPercent),
			"memory_details": rs.metrics.GetDetailedMemoryStats(),
			"server_time":    time.Now().Unix(),
		},
	})
}

func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	user, err := rs.userRepo.ValidateCredentials(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, LoginResponse{Success: false, Message: "Неверное имя пользователя или пароль"})
		return
	}

	token, err := rs.tokens.Mint(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{Success: false, Message: "Ошибка генерации токена"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
	})
}

func (rs *RestServer) handleWorldStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: rs.world.Stats()})
}

// entityView — представление сущности в ответах API.
type entityView struct {
	ID         entity.EntityID        `json:"id"`
	Type       string                 `json:"type"`
	Tags       []string               `json:"tags"`
	Active     bool                   `json:"active"`
	Components map[string]interface{} `json:"components,omitempty"`
}

func viewOf(e *entity.Entity, withComponents bool) entityView {
	view := entityView{
		ID:     e.ID,
		Type:   e.TypeName(),
		Tags:   e.Tags(),
		Active: e.Active(),
	}
	if withComponents {
		view.Components = make(map[string]interface{})
		for _, kind := range e.ComponentKinds() {
			if c, ok := e.GetComponent(kind); ok {
				view.Components[string(kind)] = c
			}
		}
	}
	return view
}

// handleListEntities возвращает сущности с фильтрами ?tag= и ?kind=.
func (rs *RestServer) handleListEntities(c *gin.Context) {
	var entities []*entity.Entity
	switch {
	case c.Query("tag") != "":
		entities = rs.world.EntitiesWithTag(c.Query("tag"))
	case c.Query("kind") != "":
		entities = rs.world.EntitiesWith(component.Kind(c.Query("kind")))
	default:
		entities = rs.world.Entities().All()
	}

	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, viewOf(e, false))
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: views})
}

func (rs *RestServer) handleGetEntity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID сущности"})
		return
	}

	e, ok := rs.world.GetEntity(entity.EntityID(id))
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сущность не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: viewOf(e, true)})
}

func (rs *RestServer) handleSpawnEntity(c *gin.Context) {
	var req SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	e, err := rs.world.SpawnFromTemplate(req.Template, req.Overrides)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{Success: true, Data: viewOf(e, true)})
}

func (rs *RestServer) handleDestroyEntity(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID сущности"})
		return
	}

	if !rs.world.DestroyEntity(entity.EntityID(id)) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Сущность не найдена"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сущность уничтожена"})
}

func (rs *RestServer) handleSaveSnapshot(c *gin.Context) {
	name := c.Param("name")

	snap, err := rs.world.Serialize()
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if err := rs.repo.Save(c.Request.Context(), name, snap); err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data:    map[string]interface{}{"name": name, "entities": len(snap.Entities)},
	})
}

// handleRestoreSnapshot загружает снимок и возвращает его содержимое.
// Горячая подмена работающего мира не поддерживается: восстановление
// строит свежий мир, что уместно при старте процесса, а не посреди
// кадрового цикла.
func (rs *RestServer) handleRestoreSnapshot(c *gin.Context) {
	name := c.Param("name")

	snap, ok, err := rs.repo.Load(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Снимок не найден"})
		return
	}

	restored, err := world.Deserialize(rs.world.Config(), snap)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Снимок проверен и пригоден к восстановлению",
		Data: map[string]interface{}{
			"name":         name,
			"entities":     len(snap.Entities),
			"nextEntityId": uint64(snap.NextEntityID),
			"restored":     restored.Entities().Count(),
		},
	})
}

func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	infos, err := rs.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: infos})
}

func (rs *RestServer) handleDeleteSnapshot(c *gin.Context) {
	name := c.Param("name")

	err := rs.repo.Delete(c.Request.Context(), name)
	if err == nil {
		c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Снимок удалён"})
		return
	}
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Снимок не найден"})
		return
	}
	c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
}

// Start запускает HTTP-сервер (неблокирующий).
func (rs *RestServer) Start() {
	rs.srv = &http.Server{Addr: rs.port, Handler: rs.router}
	go func() {
		logging.Info("🌐 REST API слушает %s", rs.port)
		if err := rs.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка REST сервера: %v", err)
		}
	}()
}

// Stop корректно останавливает HTTP-сервер.
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.srv == nil {
		return nil
	}
	return rs.srv.Shutdown(ctx)
}

// Router возвращает gin-роутер (для httptest).
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}
