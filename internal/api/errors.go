package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

func respondWithError(c *gin.Context, statusCode int, errorCode, message string, details any) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

func respondWithBadRequest(c *gin.Context, message string, details any) {
	respondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

func respondWithInternalError(c *gin.Context, message string, err error) {
	var details any
	if err != nil {
		details = err.Error()
	}
	respondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
