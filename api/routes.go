package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailingest/api/handlers"
	"github.com/customeros/mailingest/api/middleware"
	"github.com/customeros/mailingest/internal/repository"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/services"
)

const AppSource = "mailingest"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	apiHandlers := handlers.InitHandlers(repos, s.Runner, s.Publisher())
	registerRoutes(r, apiHandlers, apikey)
}

func registerRoutes(r *gin.Engine, apiHandlers *handlers.APIHandlers, apikey string) {
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// Health check (no custom context needed)
	r.GET("/health", handlers.HealthCheck)

	internal := r.Group("/internal")
	internal.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	}))
	internal.Use(middleware.CustomContextMiddleware(AppSource))
	internal.Use(middleware.TracingMiddleware())
	{
		accounts := internal.Group("/accounts")
		{
			accounts.POST("/:id/ingest", apiHandlers.Ingestion.Trigger())
			accounts.GET("/:id/runs", apiHandlers.Ingestion.Runs())
		}
	}
}
