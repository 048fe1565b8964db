// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 角色相关错误
	ErrorCharacterNotFound = "CHARACTER_NOT_FOUND"
	ErrorCharacterInvalid  = "CHARACTER_INVALID"

	// 按键相关错误
	ErrorActionNotFound = "ACTION_NOT_FOUND"
	ErrorActionInvalid  = "ACTION_INVALID"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorTurnInFlight    = "TURN_IN_FLIGHT"

	// 模型调用相关错误
	ErrorAPIKeyMissing    = "API_KEY_MISSING"
	ErrorModelCallFailed  = "MODEL_CALL_FAILED"
	ErrorSummarizeFailed  = "SUMMARIZE_FAILED"
	ErrorLLMConfigInvalid = "LLM_CONFIG_INVALID"

	// 导出相关错误
	ErrorExportFailed = "EXPORT_FAILED"
)
