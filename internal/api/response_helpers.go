// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charaverse/charachat/internal/errors"
)

// APIResponse 统一响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError 错误响应体
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondSuccess 成功响应
func respondSuccess(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// respondCreated 创建成功响应
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// respondError 按错误分类映射HTTP状态与错误代码
func respondError(c *gin.Context, err error, fallbackCode string) {
	status := http.StatusInternalServerError
	code := fallbackCode
	if code == "" {
		code = ErrorInternalError
	}

	switch {
	case apperrors.IsValidationError(err):
		status = http.StatusBadRequest
		code = ErrorBadRequest
	case apperrors.IsNotFoundError(err):
		status = http.StatusNotFound
		code = ErrorNotFound
	case apperrors.IsConflictError(err):
		status = http.StatusConflict
		code = ErrorTurnInFlight
	case apperrors.IsConfigurationError(err):
		status = http.StatusBadRequest
		code = ErrorAPIKeyMissing
	case apperrors.IsTransportError(err), apperrors.IsProtocolError(err):
		status = http.StatusBadGateway
		code = ErrorModelCallFailed
	case code == ErrorBadRequest:
		// 请求体绑定失败等非AppError的客户端错误
		status = http.StatusBadRequest
	}

	c.JSON(status, &APIResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: err.Error()},
		Timestamp: time.Now(),
	})
}
