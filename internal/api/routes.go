package api

import "github.com/gin-gonic/gin"

type Handlers struct {
	Conversations *ConversationHandler
	Contacts      *ContactHandler
	Projects      *ProjectHandler
	WhatsApp      *WhatsAppHandler
	Users         *UserHandler
}

// RegisterPublic mounts the routes that must be reachable without credentials.
func RegisterPublic(r *gin.RouterGroup, h Handlers) {
	r.POST("/auth/login", h.Users.Login)
	r.POST("/auth/refresh", h.Users.Refresh)
	r.POST("/users", h.Users.Create)
}

// Register mounts the operator API on r. Authentication is applied by the caller.
func Register(r *gin.RouterGroup, h Handlers) {
	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.Conversations.GetConversations)
		conversations.POST("/invite", h.Conversations.Invite)
		conversations.POST("/password-reset", h.Conversations.PasswordReset)
		conversations.GET("/:id/messages", h.Conversations.GetMessages)
		conversations.POST("/:id/messages", h.Conversations.SendText)
		conversations.POST("/:id/media", h.Conversations.SendMedia)
	}

	contacts := r.Group("/contacts")
	{
		contacts.GET("", h.Contacts.GetContacts)
		contacts.PATCH("/:id/custom-name", h.Contacts.UpdateCustomName)
	}

	projects := r.Group("/projects")
	{
		projects.POST("", h.Projects.Create)
		projects.GET("", h.Projects.List)
		projects.GET("/:id", h.Projects.Get)
		projects.PUT("/:id", h.Projects.Update)
		projects.DELETE("/:id", h.Projects.Delete)
		projects.POST("/:id/api-key/generate", h.Projects.GenerateAPIKey)
		projects.DELETE("/:id/api-key", h.Projects.RevokeAPIKey)
	}

	users := r.Group("/users")
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
		users.PUT("/:id", h.Users.Update)
		users.DELETE("/:id", h.Users.Delete)
	}
	r.POST("/auth/logout", h.Users.Logout)

	r.GET("/whatsapp/templates", h.WhatsApp.GetTemplates)
}
