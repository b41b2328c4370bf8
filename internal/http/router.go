package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fieldvisit/backend/internal/config"
	"github.com/fieldvisit/backend/internal/db"
	"github.com/fieldvisit/backend/internal/geocode"
	"github.com/fieldvisit/backend/internal/http/handlers"
	"github.com/fieldvisit/backend/internal/http/middleware"
	"github.com/fieldvisit/backend/internal/service"

	_ "github.com/fieldvisit/backend/docs"
)

func Router(cfg config.Config, store *db.Store, assembler *service.Assembler, optimizer service.Optimizer, geocoder geocode.Geocoder, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:          store,
		Assembler:      assembler,
		Optimizer:      optimizer,
		Geocoder:       geocoder,
		Validator:      validator.New(),
		Logger:         logger,
		AdminKey:       cfg.AdminKey,
		CountryDefault: cfg.CountryDefault,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/stores", h.StoresList)
		api.GET("/advisors", h.AdvisorsList)
		api.GET("/advisors/:id/route", h.RouteForAdvisor)
		api.POST("/advisors/:id/route/optimize", h.OptimizeRoute)
		api.POST("/visits/start", h.VisitStart)
		api.POST("/visits/:id/complete", h.VisitComplete)
		api.POST("/visits/:id/skip", h.VisitSkip)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/import", h.Import)
		admin.POST("/templates", h.TemplateUpsert)
		admin.POST("/stores/regeocode", h.RegeocodeStores)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
