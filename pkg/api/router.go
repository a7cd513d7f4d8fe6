package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/urmzd/homai-hub/pkg/api/handlers"
	"github.com/urmzd/homai-hub/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

// Router holds the Gin engine and dependencies
type Router struct {
	engine  *gin.Engine
	hub     handlers.Hub
	store   handlers.Store
	metrics *metrics.Registry
}

// NewRouter creates a new API router. A nil store disables the profile and
// settings endpoints; a nil metrics registry disables /metrics.
func NewRouter(hub handlers.Hub, store handlers.Store, m *metrics.Registry) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:  engine,
		hub:     hub,
		store:   store,
		metrics: m,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.hub)
	r.engine.GET("/health", healthHandler.Health)

	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		discoveryHandler := handlers.NewDiscoveryHandler(r.hub)
		v1.POST("/discovery", discoveryHandler.Discover)
		v1.POST("/discovery/permit-join", discoveryHandler.PermitJoin)
		v1.GET("/events", discoveryHandler.Events)

		devicesHandler := handlers.NewDevicesHandler(r.hub)
		controlHandler := handlers.NewControlHandler(r.hub)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.GET("/:id", devicesHandler.GetDevice)
			devices.PATCH("/:id", devicesHandler.UpdateDevice)
			devices.POST("/:id/commands", controlHandler.SendCommand)
		}

		if r.store != nil {
			settingsHandler := handlers.NewSettingsHandler(r.store)
			v1.GET("/settings", settingsHandler.GetSettings)
			v1.PATCH("/settings", settingsHandler.UpdateSettings)
			v1.GET("/profiles", settingsHandler.ListProfiles)
			v1.POST("/profiles", settingsHandler.CreateProfile)
			v1.POST("/profiles/:id/activate", settingsHandler.ActivateProfile)
		}
	}
}

// Handler exposes the engine for embedding and tests.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run serves addr until ctx is cancelled, then drains in-flight requests.
func (r *Router) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Stopping API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
