package app

import (
	"ichat_backend/docs"
	"ichat_backend/internal/config"
	"ichat_backend/internal/middleware"
	"ichat_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要登录的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerRelationshipRoutes(authGroup, c)
		a.registerChatRoutes(authGroup, c)
	}
}

func (a *App) registerRelationshipRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/users/search", c.relationship.SearchUsers)

	connections := group.Group("/connections")
	{
		connections.POST("", c.relationship.RequestConnection)
		connections.GET("", c.relationship.ListConnections)
		connections.GET("/pending", c.relationship.ListPending)
		connections.GET("/outgoing", c.relationship.ListOutgoing)
		connections.PUT("/:id/accept", c.relationship.AcceptConnection)
	}
}

func (a *App) registerChatRoutes(group *gin.RouterGroup, c *controllers) {
	conversations := group.Group("/conversations")
	{
		conversations.GET("", c.chat.ListConversations)
		conversations.POST("/direct", c.chat.StartDirect)
		conversations.GET("/:id", c.chat.GetConversation)
		conversations.GET("/:id/messages", c.chat.ListMessages)
		conversations.POST("/:id/messages", c.chat.PostMessage)
	}

	group.DELETE("/messages/:id", c.chat.DeleteMessage)

	groups := group.Group("/groups")
	{
		groups.POST("", c.chat.CreateGroup)
		groups.GET("/:id/available-members", c.chat.AvailableMembers)
		groups.POST("/:id/members", c.chat.AddMembers)
		groups.DELETE("/:id/members/:userId", c.chat.RemoveMember)
	}
}
