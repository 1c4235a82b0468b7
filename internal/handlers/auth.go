package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/models"
	"taskify/backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

type UserResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func newAuthResponse(result *services.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		TokenType:    result.Tokens.TokenType,
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         newUserResponse(result.User),
	}
}

func newUserResponse(u *models.User) UserResponse {
	resp := UserResponse{ID: u.ID, Email: u.Email}
	if u.Username != nil {
		resp.Username = *u.Username
	}
	return resp
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	req.Email = models.NormalizeEmail(req.Email)

	result, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", newAuthResponse(result))
}

func (h *AuthHandler) Greet(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	greeting, err := h.authService.Greet(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, greeting, gin.H{"greeting": greeting})
}

func (h *AuthHandler) DeleteMe(c *gin.Context) {
	user, ok := requester(c)
	if !ok {
		return
	}

	if err := h.authService.DeleteAccount(c.Request.Context(), user); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
