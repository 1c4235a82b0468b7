package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskify/backend/internal/services"
	"taskify/backend/internal/validation"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	StatusCode int               `json:"status_code"`
	Detail     string            `json:"detail"`
	Data       interface{}       `json:"data"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, detail string, data interface{}) {
	c.JSON(status, Response{StatusCode: status, Detail: detail, Data: data})
}

// writeError maps service error kinds to status codes. Unknown errors are
// logged via c.Error and reported as 500 without their text.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	}

	detail := services.Detail(err)
	var se *services.Error
	if !errors.As(err, &se) {
		detail = "Internal server error"
	}
	if status == http.StatusInternalServerError || se != nil && se.Cause != nil {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, Response{
		StatusCode: status,
		Detail:     detail,
		Errors:     services.FieldErrors(err),
	})
}

// writeBindError reports undecodable bodies as 400 and failed binding
// rules as 422.
func writeBindError(c *gin.Context, err error) {
	if validation.IsMalformed(err) {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			StatusCode: http.StatusBadRequest,
			Detail:     "Invalid request body",
			Errors:     validation.ToDetails(err),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{
		StatusCode: http.StatusUnprocessableEntity,
		Detail:     "Validation failed",
		Errors:     validation.ToDetails(err),
	})
}
