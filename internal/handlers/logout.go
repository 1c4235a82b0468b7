package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/services"
)

func (h *AuthHandler) Logout(c *gin.Context) {
	var req services.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Successfully logged out", nil)
}
