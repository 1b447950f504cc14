package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/quantaops/l1-backend/internal/config"
	"github.com/quantaops/l1-backend/internal/db"
	"github.com/quantaops/l1-backend/internal/entity"
	"github.com/quantaops/l1-backend/internal/http/handlers"
	"github.com/quantaops/l1-backend/internal/http/middleware"
	"github.com/quantaops/l1-backend/internal/service"

	_ "github.com/quantaops/l1-backend/docs"
)

func Router(cfg config.Config, store *db.Store, processor *service.Processor, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
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
		Store:     store,
		Processor: processor,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/health", h.Health)
	r.POST("/seed-data", h.SeedData)
	r.POST("/process-emails", h.ProcessEmails)

	// One create/list/detail triple per entity, straight off the registry.
	for _, e := range entity.Registry {
		r.POST("/"+e.Path, h.Create(e))
		r.GET("/"+e.Path, h.List(e))
		r.GET("/"+e.Path+"/:key", h.Detail(e))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
