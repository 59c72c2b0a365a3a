package httpapi

import (
	"net/http"

	"equb_tracker/internal/app"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch app.Kind(err) {
	case "Validation":
		return http.StatusBadRequest
	case "NotFound":
		return http.StatusNotFound
	case "AlreadySettled", "Conflict":
		return http.StatusConflict
	case "InsufficientFunds":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError writes err with the status of its kind and a message safe to show the user.
func ServiceError(c *gin.Context, err error, fallback string) {
	Error(c, statusFor(err), app.UserMessage(err, fallback))
}
