package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/audit"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/notify"
	"github.com/lalith-99/herdstream/internal/realtime"
	"github.com/lalith-99/herdstream/internal/repository"
	"github.com/lalith-99/herdstream/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Store     *repository.Store
	Realtime  *realtime.Handler
	Emitter   *notify.Emitter
	Recorder  *audit.Recorder
	Images    storage.ImageStore                // optional
	DB        Pinger                            // optional
	WSLimiter *middleware.ConnectionRateLimiter // optional
	JWTSecret string
	TokenTTL  time.Duration
	Version   string
	Logger    *zap.Logger
}

// NewRouter builds the HTTP surface. Middleware in use runs before every
// route.
func NewRouter(d Deps, use ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(use...)
	r.Use(gin.Recovery())

	health := NewHealthHandler(d.DB, d.Version, d.Logger)
	r.GET("/health", health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The token travels in the query string on WebSocket routes, so they
	// authenticate during the handshake instead of through AuthMiddleware.
	ws := r.Group("/ws")
	if d.WSLimiter != nil {
		ws.Use(middleware.RateLimit(d.WSLimiter))
	}
	d.Realtime.RegisterRoutes(ws)

	authH := NewAuthHandler(d.Store.Users, d.JWTSecret, d.TokenTTL, d.Logger)
	public := r.Group("/api/auth")
	public.POST("/register", authH.Register)
	public.POST("/login", authH.Login)

	v1 := r.Group("/api")
	v1.Use(middleware.AuthMiddleware(d.JWTSecret, d.Store.Users, d.Logger))
	admin := middleware.RequireAdmin()

	users := NewUserHandler(d.Store.Users, d.Logger)
	v1.GET("/users/me", users.GetMe)
	v1.GET("/users", admin, users.List)
	v1.GET("/users/:id", admin, users.Get)
	v1.PUT("/users/:id", admin, users.Update)
	v1.DELETE("/users/:id", admin, users.Delete)

	animals := NewAnimalHandler(d.Store.Animals, d.Images, d.Recorder, d.Emitter, d.Logger)
	v1.GET("/animales", animals.List)
	v1.GET("/animales/:id", animals.Get)
	v1.POST("/animales", admin, animals.Create)
	v1.PUT("/animales/:id", admin, animals.Update)
	v1.DELETE("/animales/:id", admin, animals.Delete)
	v1.POST("/animales/:id/imagen", animals.UploadImage)
	v1.DELETE("/animales/:id/imagen", admin, animals.DeleteImage)

	incidents := NewIncidentHandler(d.Store.Incidents, d.Store.Animals, d.Emitter, d.Logger)
	v1.GET("/incidencias", incidents.List)
	v1.POST("/incidencias", incidents.Create)
	v1.GET("/incidencias/:id", incidents.Get)
	v1.PUT("/incidencias/:id", incidents.Update)
	v1.DELETE("/incidencias/:id", incidents.Delete)

	treatments := NewTreatmentHandler(d.Store.Treatments, d.Store.Animals, d.Emitter, d.Logger)
	v1.GET("/tratamientos", treatments.List)
	v1.POST("/tratamientos", admin, treatments.Create)
	v1.GET("/tratamientos/:id", treatments.Get)
	v1.PUT("/tratamientos/:id", treatments.Update)
	v1.DELETE("/tratamientos/:id", treatments.Delete)

	events := NewEventHandler(d.Store.Events, d.Store.Animals, d.Emitter, d.Logger)
	v1.GET("/eventos", events.List)
	v1.POST("/eventos", events.Create)
	v1.GET("/eventos/:id", events.Get)
	v1.PUT("/eventos/:id", events.Update)
	v1.DELETE("/eventos/:id", events.Delete)

	groups := NewGroupHandler(d.Store.Groups, d.Logger)
	v1.GET("/grupos", groups.List)
	v1.POST("/grupos", groups.Create)
	v1.GET("/grupos/:id", groups.Get)
	v1.PUT("/grupos/:id", groups.Update)
	v1.DELETE("/grupos/:id", groups.Delete)

	notifications := NewNotificationHandler(d.Store.Notifications, d.Store.Users, d.Emitter, d.Logger)
	v1.GET("/notificaciones", notifications.List)
	v1.POST("/notificaciones", admin, notifications.Create)
	v1.POST("/notificaciones/broadcast", admin, notifications.Broadcast)
	v1.PATCH("/notificaciones/:id/read", notifications.MarkRead)

	logs := NewAuditLogHandler(d.Store.AuditLogs, d.Logger)
	v1.GET("/logs", admin, logs.List)

	return r
}
