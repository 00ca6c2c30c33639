package httpserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig carries everything the router needs to assemble routes.
type RouterConfig struct {
	Handlers     *Handlers
	SignKey      []byte
	Log          *zap.Logger
	AllowOrigins []string
	Dev          bool
}

// NewRouter assembles the gin engine with middleware and all API routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(Recovery(cfg.Log), RequestLogger(cfg.Log))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", cfg.Handlers.Health)

	api := router.Group("/api")
	{
		api.POST("/register", cfg.Handlers.Register)
		api.POST("/login", cfg.Handlers.Login)
	}

	protected := api.Group("/")
	protected.Use(RequireAuth(cfg.SignKey))
	{
		protected.POST("/drafts", cfg.Handlers.CreateDraft)
		protected.GET("/drafts/:id", cfg.Handlers.GetDraft)
		protected.PUT("/drafts/:id", cfg.Handlers.UpdateDraft)
		protected.POST("/drafts/:id/commit", cfg.Handlers.CommitDraft)
		protected.POST("/drafts/:id/publish", cfg.Handlers.PublishDraft)
		protected.GET("/lessons/:id", cfg.Handlers.GetLesson)
	}

	return router
}
