// Package api exposes the application's operations over a localhost HTTP
// surface for the desktop shell. No auth: the surface never leaves the
// machine.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(requestLogger())
	r.Use(gin.Recovery())

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/feeds", handler.ListFeeds)
	r.POST("/feeds", handler.CreateFeed)
	r.PATCH("/feeds/:id", handler.UpdateFeed)
	r.DELETE("/feeds/:id", handler.DeleteFeed)
	r.POST("/feeds/refresh", handler.RefreshFeeds)

	r.GET("/articles", handler.ListArticles)
	r.GET("/articles/:id", handler.GetArticle)
	r.PATCH("/articles/:id", handler.UpdateArticle)

	r.GET("/categories", handler.ListCategories)
	r.POST("/categories", handler.CreateCategory)
	r.DELETE("/categories/:title", handler.DeleteCategory)

	r.POST("/import", handler.ImportOPML)
	r.GET("/export", handler.ExportOPML)
	r.POST("/sync", handler.RunSync)

	r.GET("/health", handler.GetHealth)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
