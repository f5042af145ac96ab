package domain

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
)

// 验证常量
const (
	MaxNameLength     = 64   // 昵称最大长度
	MaxEmailLength    = 254  // RFC 5322 邮箱地址最大长度
	MaxHomePageLength = 256  // 主页 URL 最大长度
	MaxTextLength     = 4096 // 正文最大长度（净化后）
)

// 昵称验证（字母和数字）
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidationError 表示用户可修正的字段级验证错误。
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 实现 error 接口。
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError 创建字段验证错误。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateName 验证昵称：非空、长度受限、仅字母数字。
func ValidateName(name string) *ValidationError {
	if name == "" {
		return NewValidationError("name", "昵称不能为空")
	}
	if len(name) > MaxNameLength {
		return NewValidationError("name", fmt.Sprintf("昵称不能超过 %d 个字符", MaxNameLength))
	}
	if !nameRegex.MatchString(name) {
		return NewValidationError("name", "昵称只能包含字母和数字")
	}
	return nil
}

// ValidateEmail 验证邮箱格式和长度。
func ValidateEmail(email string) *ValidationError {
	if email == "" {
		return NewValidationError("email", "邮箱不能为空")
	}
	if len(email) > MaxEmailLength {
		return NewValidationError("email", fmt.Sprintf("邮箱不能超过 %d 个字符", MaxEmailLength))
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewValidationError("email", "邮箱格式无效")
	}
	return nil
}

// ValidateHomePage 验证可选的主页 URL（必须是 http/https 绝对地址）。
func ValidateHomePage(homePage string) *ValidationError {
	if homePage == "" {
		return nil
	}
	if len(homePage) > MaxHomePageLength {
		return NewValidationError("homePage", fmt.Sprintf("主页地址不能超过 %d 个字符", MaxHomePageLength))
	}
	u, err := url.Parse(homePage)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return NewValidationError("homePage", "主页地址必须是合法的 http/https URL")
	}
	return nil
}

// ValidateText 验证正文长度（在净化之后调用）。
func ValidateText(text string) *ValidationError {
	if strings.TrimSpace(text) == "" {
		return NewValidationError("text", "评论内容不能为空")
	}
	if len(text) > MaxTextLength {
		return NewValidationError("text", fmt.Sprintf("评论内容不能超过 %d 个字符", MaxTextLength))
	}
	return nil
}

// NormalizeEmail 邮箱归一化（唯一性比较按小写进行）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
