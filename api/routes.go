package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers all API endpoints on the router.
func SetupRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := api.Group("/collections/users")
	users.POST("/records", h.Register)
	users.POST("/auth-with-password", h.AuthWithPassword)
	users.POST("/request-password-reset", h.RequestPasswordReset)
	users.POST("/confirm-password-reset", h.ConfirmPasswordReset)

	api.POST("/auth/logout", h.Logout)

	api.GET("/oauth/authorize", h.OAuthAuthorize)
	api.GET("/oauth/callback", h.OAuthCallback)

	todos := api.Group("/collections/todos")
	todos.GET("/records", h.OptionalAuth(), h.ListTodos)
	todos.POST("/records", h.RequireAuth(), h.CreateTodo)
	todos.PATCH("/records/:id", h.RequireAuth(), h.UpdateTodo)
	todos.DELETE("/records/:id", h.RequireAuth(), h.DeleteTodo)

	api.GET("/realtime", h.Realtime)
}
