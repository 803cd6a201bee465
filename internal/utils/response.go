// internal/utils/response.go
package utils

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorBody is the one error envelope every endpoint returns. Successful
// responses are the bare resource DTOs with no wrapper.
type ErrorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// RespondError converts err into the error envelope and aborts the request.
// Unknown error types become INTERNAL with a generic message so internals
// never leak. Server errors log the cause and stack; client errors log a
// warning only.
func RespondError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewAppError(ErrInternal, "An unexpected error occurred. Please try again later.", err)
	}

	status := appErr.StatusCode()
	requestID := GetRequestID(c)

	entry := logrus.WithFields(logrus.Fields{
		"error_code": appErr.Code,
		"request_id": requestID,
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
	})
	if status >= http.StatusInternalServerError {
		entry.WithFields(logrus.Fields{
			"internal": appErr.Internal,
			"stack":    string(appErr.Stack),
		}).Error(appErr.Message)
	} else {
		entry.WithField("internal", appErr.Internal).Warn(appErr.Message)
	}

	c.AbortWithStatusJSON(status, ErrorBody{
		ErrorCode: string(appErr.Code),
		Message:   appErr.Message,
		RequestID: requestID,
	})
}

const requestIDKey = "request_id"

func SetRequestID(c *gin.Context, id string) {
	c.Set(requestIDKey, id)
}

func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(requestIDKey); exists {
		if idStr, ok := id.(string); ok {
			return idStr
		}
	}
	return ""
}

type requestIDCtxKey struct{}

// WithRequestID stores the request id on a plain context so services below
// the HTTP layer can tag events and logs with it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}
