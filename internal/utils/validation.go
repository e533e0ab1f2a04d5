package utils

import (
	"regexp"
	"strings"
)

var changeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// 长度限制
const (
	MaxIDLength    = 64
	MaxTitleLength = 255
	MaxActorLength = 128
)

// ValidateTitle 验证变更标题
func ValidateTitle(title string) error {
	// 1. 检查是否为空或仅包含空白字符
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ErrEmptyName
	}

	// 2. 检查长度
	if len(trimmed) > MaxTitleLength {
		return ErrNameTooLong
	}

	// 3. 拦截 HTML/脚本注入
	if containsAny(trimmed, markupPatterns) {
		return ErrDangerousChars
	}

	return nil
}

// ValidateChangeID 验证变更 ID 格式
func ValidateChangeID(id string) error {
	// 1. 检查是否为空
	if id == "" {
		return ErrEmptyID
	}

	// 2. 检查长度
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}

	// 3. 检查格式（只允许字母、数字、连字符、下划线）
	if !changeIDPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}

	return nil
}

// ValidateActor 验证操作人(请求人、审批人、部署人等)
func ValidateActor(actor string) error {
	trimmed := strings.TrimSpace(actor)
	if trimmed == "" {
		return ErrEmptyString
	}
	if len(trimmed) > MaxActorLength {
		return ErrStringTooLong
	}
	// 操作人只是标识,额外拦截 SQL 片段
	if containsAny(trimmed, markupPatterns) || containsAny(trimmed, sqlPatterns) {
		return ErrDangerousChars
	}
	return nil
}

// 标题允许出现 SQL 关键字,只拦截可执行的标记
var markupPatterns = []string{
	"<script",
	"</script>",
	"javascript:",
	"onerror=",
	"onload=",
	"<iframe",
	"<img",
	"<svg",
}

var sqlPatterns = []string{
	"';",
	"'; --",
	"drop table",
	"delete from",
	"insert into",
	"union select",
}

func containsAny(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// 错误定义
var (
	ErrEmptyName       = &ValidationError{Code: "EMPTY_NAME", Message: "title cannot be empty"}
	ErrNameTooLong     = &ValidationError{Code: "NAME_TOO_LONG", Message: "title exceeds maximum length"}
	ErrDangerousChars  = &ValidationError{Code: "DANGEROUS_CHARS", Message: "value contains dangerous characters"}
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyString     = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
