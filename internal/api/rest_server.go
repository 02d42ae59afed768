package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/codxp/xptracker/internal/ledger"
	"github.com/codxp/xptracker/internal/logging"
	"github.com/codxp/xptracker/internal/middleware"
	"github.com/codxp/xptracker/internal/service"
)

// RestServer представляет REST API сервер трекера токенов
type RestServer struct {
	router   *gin.Engine
	accounts *service.AccountService
	port     string
	metrics  *ServerMetrics
	promMw   *middleware.PrometheusMiddleware
	httpSrv  *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                  // порт для запуска сервера, например ":8088"
	Accounts *service.AccountService // фасад аккаунтов и леджера
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("xptracker_api"))

	promMw := middleware.NewPrometheusMiddleware("xptracker")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:   router,
		accounts: config.Accounts,
		port:     config.Port,
		metrics:  NewServerMetrics(),
		promMw:   promMw,
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Аутентификация (без bearer-токена)
	rs.router.POST("/register", rs.handleRegister)
	rs.router.POST("/login", rs.handleLogin)

	// Защищенные эндпоинты (требуют bearer-токен)
	protected := rs.router.Group("/")
	protected.Use(rs.authMiddleware())
	{
		protected.POST("/password", rs.handleChangePassword)
		protected.GET("/tokens", rs.handleGetTokens)
		protected.PUT("/tokens", rs.handlePutTokens)
		protected.GET("/totals", rs.handleGetTotals)
		protected.GET("/profile", rs.handleGetProfile)
		protected.PUT("/profile", rs.handlePutProfile)
		protected.GET("/stats", rs.handleStats)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// credentialsRequest представляет тело запросов /register и /login
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse возвращает выписанный сессионный токен
type tokenResponse struct {
	Token string `json:"token"`
}

// changePasswordRequest представляет тело запроса /password
type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// profileRequest представляет тело запроса PUT /profile
type profileRequest struct {
	CodUsername string `json:"cod_username"`
	Prestige    string `json:"prestige"`
	Level       int    `json:"level"`
}

// handleRegister обрабатывает регистрацию нового аккаунта
func (rs *RestServer) handleRegister(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	err := rs.accounts.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	case err != nil:
		rs.serverError(c, "register", err)
		return
	}

	// Фронтенд логинится сразу после регистрации — выдаём токен здесь же.
	token, err := rs.accounts.IssueToken(req.Username)
	if err != nil {
		rs.serverError(c, "register", err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse{Token: token})
}

// handleLogin обрабатывает вход по паролю
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	token, err := rs.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrUnauthorized) {
		// Не различаем "нет пользователя" и "неверный пароль"
		rs.promMw.IncAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err != nil {
		rs.serverError(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// handleChangePassword меняет пароль после проверки старого
func (rs *RestServer) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old and new passwords are required"})
		return
	}

	err := rs.accounts.ChangePassword(c.Request.Context(), currentUsername(c), req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	case errors.Is(err, service.ErrUnauthorized):
		rs.promMw.IncAuthFailure()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old and new passwords are required"})
		return
	case err != nil:
		rs.serverError(c, "change password", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetTokens возвращает полный леджер токенов пользователя
func (rs *RestServer) handleGetTokens(c *gin.Context) {
	l, err := rs.accounts.ReadLedger(c.Request.Context(), currentUsername(c))
	if err != nil {
		rs.serverError(c, "read ledger", err)
		return
	}
	c.JSON(http.StatusOK, l.ToSlices())
}

// handlePutTokens полностью заменяет леджер токенов пользователя
func (rs *RestServer) handlePutTokens(c *gin.Context) {
	var raw map[string][]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	// Лояльный разбор: числовые строки приводятся к числам, мусор и
	// отрицательные значения превращаются в 0, неизвестные категории
	// отбрасываются, недостающие обнуляются.
	if err := rs.accounts.WriteLedger(c.Request.Context(), currentUsername(c), ledger.FromSlices(ledger.CoerceSlices(raw))); err != nil {
		rs.serverError(c, "write ledger", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleGetTotals возвращает производные итоги по категориям и общий итог
func (rs *RestServer) handleGetTotals(c *gin.Context) {
	l, err := rs.accounts.ReadLedger(c.Request.Context(), currentUsername(c))
	if err != nil {
		rs.serverError(c, "read ledger", err)
		return
	}

	report := rs.accounts.Totals(l)
	out := make(map[string]ledger.CategoryTotal, 4)
	for _, cat := range ledger.Categories() {
		out[cat.Key()] = report.PerCategory[cat]
	}
	out["grand"] = report.Grand
	c.JSON(http.StatusOK, out)
}

// handleGetProfile возвращает профиль пользователя
func (rs *RestServer) handleGetProfile(c *gin.Context) {
	profile, err := rs.accounts.GetProfile(c.Request.Context(), currentUsername(c))
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		rs.serverError(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handlePutProfile обновляет профиль пользователя
func (rs *RestServer) handlePutProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	err := rs.accounts.UpdateProfile(c.Request.Context(), currentUsername(c), req.CodUsername, req.Prestige, req.Level)
	if err != nil {
		rs.serverError(c, "update profile", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleStats возвращает uptime, память и CPU процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	cpuUsage, err := rs.metrics.GetCPUUsage()
	if err != nil {
		logging.Warn("stats: cpu usage unavailable: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   rs.metrics.GetMemoryUsage(),
		"cpu_percent": cpuUsage,
	})
}

// handleHealth возвращает статус сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// serverError логирует сбой хранилища и отвечает единым 500
func (rs *RestServer) serverError(c *gin.Context, op string, err error) {
	logging.Error("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// Router возвращает gin.Engine (для httptest)
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpSrv = &http.Server{
		Addr:         rs.port,
		Handler:      rs.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("REST server error: %v", err)
		}
	}()

	logging.Info("REST API server started on %s", rs.port)
	return nil
}

// Stop останавливает HTTP сервер с graceful shutdown
func (rs *RestServer) Stop() error {
	if rs.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown REST server: %w", err)
	}
	return nil
}
