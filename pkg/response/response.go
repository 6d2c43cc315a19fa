package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every endpoint returns. CorrelationID echoes
// the request's correlation id so responses can be matched against events.
type APIResponse[T any] struct {
	Status        int         `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
	CorrelationID string      `json:"correlation_id"`
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	Data          T           `json:"data,omitempty"`
	Error         interface{} `json:"error,omitempty"`
}

func Success[T any](ctx *gin.Context, status int, data T, message string) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := APIResponse[T]{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		CorrelationID: ctx.GetString("correlation_id"),
		Success:       true,
		Message:       message,
		Data:          data,
	}
	ctx.JSON(status, resp)
	return resp
}

func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := APIResponse[T]{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		CorrelationID: ctx.GetString("correlation_id"),
		Success:       false,
		Message:       message,
		Error:         err,
	}
	ctx.JSON(status, resp)
	return resp
}
