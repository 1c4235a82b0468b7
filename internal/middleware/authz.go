package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/models"
	"taskify/backend/internal/services"
)

const currentUserKey = "current_user"

// Identity resolves a bearer access token to a stored user.
type Identity interface {
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

// Authenticate requires a valid Bearer access token and stores the
// requester in the context for CurrentUser.
func Authenticate(identity Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortJSON(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortJSON(c, http.StatusUnauthorized, "Authorization header must use Bearer token")
			return
		}

		user, err := identity.CurrentUser(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				c.Header("WWW-Authenticate", "Bearer")
				abortJSON(c, http.StatusUnauthorized, services.Detail(err))
				return
			}
			_ = c.Error(err)
			abortJSON(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		SetCurrentUser(c, user.Identity())
		c.Next()
	}
}

// CurrentUser returns the requester set by Authenticate.
func CurrentUser(c *gin.Context) (models.CurrentUser, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.CurrentUser{}, false
	}
	user, ok := v.(models.CurrentUser)
	return user, ok
}

// SetCurrentUser records the requester for CurrentUser and the access log.
func SetCurrentUser(c *gin.Context, user models.CurrentUser) {
	c.Set(currentUserKey, user)
	c.Set("user_id", user.ID)
}

func abortJSON(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"status_code": status,
		"detail":      detail,
		"data":        nil,
	})
}
