// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeConflict   ErrorType = "conflict"

	// 模型调用错误类型
	ErrorTypeConfiguration ErrorType = "configuration_error" // 凭据缺失，未发起网络请求
	ErrorTypeTransport     ErrorType = "transport_error"     // 请求未能完成
	ErrorTypeProtocol      ErrorType = "protocol_error"      // 非成功HTTP状态
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewConfigurationError 创建配置错误（如API密钥缺失）
func NewConfigurationError(message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, message, nil)
}

// NewTransportError 创建传输层错误
func NewTransportError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTransport, message, originalError)
}

// NewProtocolError 创建协议错误，携带状态码与响应摘录
func NewProtocolError(statusCode int, bodyExcerpt string) *AppError {
	return NewAppError(ErrorTypeProtocol, fmt.Sprintf("HTTP %d：%s", statusCode, bodyExcerpt), nil)
}

func isType(err error, t ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == t
	}
	return false
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool { return isType(err, ErrorTypeConflict) }

// IsConfigurationError 检查是否为配置错误
func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsTransportError 检查是否为传输层错误
func IsTransportError(err error) bool { return isType(err, ErrorTypeTransport) }

// IsProtocolError 检查是否为协议错误
func IsProtocolError(err error) bool { return isType(err, ErrorTypeProtocol) }
