package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/utils"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusCode 将变更错误映射为 HTTP 状态码
func StatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	var inputErr *utils.ValidationError

	switch {
	case errors.Is(err, change.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, change.ErrInvalidRequest),
		errors.As(err, &validationErrs),
		errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.Is(err, change.ErrInvalidStateTransition),
		errors.Is(err, change.ErrNotApproved),
		errors.Is(err, change.ErrNoRollbackPlan),
		errors.Is(err, change.ErrNoPendingApproval),
		errors.Is(err, change.ErrApprovalAlreadyPending),
		errors.Is(err, change.ErrNoOpenDeployment):
		return http.StatusConflict
	case errors.Is(err, change.ErrPersistenceFailure),
		errors.Is(err, change.ErrExternalServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError 统一处理服务层错误,由 ErrorHandlerMiddleware 写响应
func handleServiceError(ctx *gin.Context, err error, operation string) {
	_ = ctx.Error(WrapError(err, StatusCode(err), "failed to "+operation))
}
