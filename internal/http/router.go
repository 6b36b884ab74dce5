package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck verifica dependencias críticas (base de datos) para /healthz.
type HealthCheck func(ctx context.Context) error

// Handlers agrupa los handlers que monta el router.
type Handlers struct {
	Users     *UserHandler
	Watchlist *WatchlistHandler
	Catalog   *CatalogHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	metrics *Metrics,
	auth *AuthMiddleware,
	h Handlers,
	health HealthCheck,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	if metrics != nil {
		r.Use(metrics.Middleware())
		r.GET("/metrics", metrics.Handler())
	}
	r.GET("/healthz", healthHandler(health))

	api := r.Group("")
	api.Use(jsonContentTypeMiddleware(), errorMiddleware(logger))

	users := api.Group("/auth")
	users.POST("/register", h.Users.Register)
	users.POST("/login", h.Users.Login)
	users.GET("/me", auth.RequireAuth(), h.Users.Me)
	users.POST("/verify-account", h.Users.VerifyAccount)
	users.PUT("/forgot-password", h.Users.ForgotPassword)
	users.PUT("/reset-password", h.Users.ResetPassword)
	users.PUT("/update-password", auth.RequireAuth(), h.Users.UpdatePassword)
	users.PUT("/update-profile-pic", auth.RequireAuth(), h.Users.UpdateProfilePic)
	users.POST("/get-user", h.Users.GetUser)

	watchlist := api.Group("/watchlist")
	watchlist.POST("/search", auth.RequireAuth(), h.Watchlist.Search)
	watchlist.POST("", auth.RequireAuth(), h.Watchlist.Add)
	watchlist.GET("", auth.RequireAuth(), h.Watchlist.List)
	watchlist.POST("/by-user", h.Watchlist.ListByUser)
	watchlist.GET("/stats", auth.RequireAuth(), h.Watchlist.Stats)
	watchlist.DELETE("/:id", auth.RequireAuth(), h.Watchlist.Delete)
	watchlist.PUT("/:id", auth.RequireAuth(), h.Watchlist.Update)
	watchlist.GET("/:id/details", auth.OptionalAuth(), h.Watchlist.Details)
	watchlist.GET("/:id/reviews", h.Watchlist.Reviews)

	catalog := api.Group("/catalog")
	catalog.GET("/top/:page/:type/:limit", h.Catalog.Top)
	catalog.GET("/season/:year/:season/:limit", h.Catalog.Seasonal)

	r.NoRoute(jsonContentTypeMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})

	return r
}

func healthHandler(check HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
