package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/meridian-backend/internal/handlers"
)

type RouterConfig struct {
	PipelineHandler     *handlers.PipelineHandler
	ReputationHandler   *handlers.ReputationHandler
	UndercurrentHandler *handlers.UndercurrentHandler
	AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/pipeline/run", cfg.PipelineHandler.Run)
		api.POST("/reputation/evaluate", cfg.ReputationHandler.Evaluate)
		api.GET("/undercurrents/access", cfg.UndercurrentHandler.Access)
		api.POST("/undercurrents/next", cfg.UndercurrentHandler.Next)
		api.POST("/undercurrents/:id/response", cfg.UndercurrentHandler.SubmitResponse)
	}

	return router
}
