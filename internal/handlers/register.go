package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/models"
	"taskify/backend/internal/services"
)

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	req.Email = models.NormalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", newAuthResponse(result))
}
