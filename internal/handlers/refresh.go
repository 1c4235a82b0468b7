package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/services"
)

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed successfully", result)
}
