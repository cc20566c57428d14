package handlers

import (
	"net/http"

	"github.com/go-partnergate/partnergate/internal/middleware"
	"github.com/go-partnergate/partnergate/internal/store"

	"github.com/gin-gonic/gin"
)

// ResourceHandler serves the protected partner endpoints sitting behind
// bearer-token validation.
type ResourceHandler struct {
	store *store.Store
}

func NewResourceHandler(s *store.Store) *ResourceHandler {
	return &ResourceHandler{store: s}
}

// MyInfo returns a small identity object for the authenticated resource
// owner. Requires the "read" scope; wired behind middleware.RequireToken.
func (h *ResourceHandler) MyInfo(c *gin.Context) {
	req, ok := middleware.OAuthRequest(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	// client_credentials tokens reach here without a user
	if req.User == nil {
		c.JSON(http.StatusForbidden, gin.H{
			"error":             "access_denied",
			"error_description": "No resource owner is associated with this token.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  req.User.ID,
		"username": req.User.Username,
	})
}

// Healthz reports liveness of the process and its database.
func (h *ResourceHandler) Healthz(c *gin.Context) {
	if err := h.store.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
