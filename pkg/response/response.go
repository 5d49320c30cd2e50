package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/referral-tree/pkg/apperror"
)

type APIResponse[T any] struct {
	Status    int         `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      T           `json:"data,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
	Error     interface{} `json:"error,omitempty"`
}

// ErrorBody is the error payload for failures coming from the core.
type ErrorBody struct {
	Kind    apperror.Kind     `json:"kind"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Success writes a success envelope and returns it.
func Success[T any](ctx *gin.Context, status int, data T, message string, meta interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	resp := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
	}
	ctx.JSON(status, resp)
	return resp
}

// Error writes an error envelope and returns it. It does not abort the chain.
func Error[T any](ctx *gin.Context, status int, message string, err interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	resp := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     err,
	}
	ctx.JSON(status, resp)
	return resp
}

// Fail renders err with the status and code of its apperror kind. Internal
// causes are attached to the gin context, not the body.
func Fail(ctx *gin.Context, err error) {
	e := apperror.As(err)
	if e.Cause != nil {
		_ = ctx.Error(e.Cause)
	}
	message := e.Message
	if e.Kind == apperror.KindInternal {
		message = "internal error"
	}
	Error[any](ctx, e.HTTPStatus(), message, ErrorBody{Kind: e.Kind, Code: e.Code})
}

// Invalid renders a binding or validation failure.
func Invalid(ctx *gin.Context, details map[string]string) {
	Error[any](ctx, http.StatusBadRequest, "invalid payload", ErrorBody{
		Kind:    apperror.KindValidation,
		Code:    "invalid_payload",
		Details: details,
	})
}
