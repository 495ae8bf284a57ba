package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"walknav/backend/internal/handler"
	"walknav/backend/internal/middleware"
	"walknav/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	walkHandler *handler.WalkHandler,
	corsOrigins []string,
	logger *slog.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestLogger(logger), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.Auth(authService), authHandler.Me)

	walk := api.Group("/walk")
	walk.Use(middleware.Auth(authService))
	walk.GET("/profile", walkHandler.GetProfile)
	walk.PUT("/settings", walkHandler.UpdateSettings)
	walk.GET("/speed", walkHandler.GetSpeed)
	walk.POST("/estimate", walkHandler.Estimate)
	walk.POST("/arrivals", walkHandler.RecordArrival)
	walk.POST("/arrivals/preview", walkHandler.PreviewArrival)
	walk.GET("/history", walkHandler.GetHistory)
	walk.GET("/stats", walkHandler.GetStats)
	walk.GET("/favorites", walkHandler.ListFavorites)
	walk.POST("/favorites", walkHandler.AddFavorite)
	walk.DELETE("/favorites/:id", walkHandler.RemoveFavorite)

	return engine
}
