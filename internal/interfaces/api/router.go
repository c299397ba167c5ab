package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FreePeak/nl2sql-mcp-server/internal/logger"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dialect"
)

var registerOnce sync.Once

// registerValidators adds the dialect and result_format tags to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("Unexpected gin validator engine, custom validations disabled")
			return
		}
		_ = v.RegisterValidation("dialect", func(fl validator.FieldLevel) bool {
			_, err := dialect.Parse(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("result_format", func(fl validator.FieldLevel) bool {
			_, err := dbtools.ParseFormat(fl.Field().String())
			return err == nil
		})
	})
}

// NewRouter builds the HTTP API.
func NewRouter(h *Handler) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery(), TraceMiddleware(), LoggerMiddleware())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		sql := v1.Group("/sql")
		sql.POST("/generate", h.Generate)
		sql.POST("/execute", h.Execute)
	}
	return router
}
