package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingCredential  = errors.New("missing api key")
	ErrCredentialRejected = errors.New("api key rejected by vendor")
	ErrEmptyPrompt        = errors.New("empty prompt")
)

// ConfigurationError 配置错误，发生在任何网络调用之前
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "llm configuration error: " + e.Msg
}

// VendorError 供应商调用失败：缺失或被拒的凭证、网络错误、非 2xx 响应
type VendorError struct {
	Vendor Vendor
	// StatusCode 为 0 表示未拿到 HTTP 响应
	StatusCode int
	Err        error
}

func (e *VendorError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s vendor error (status %d): %v", e.Vendor, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s vendor error: %v", e.Vendor, e.Err)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// Retryable 传输错误、429 与 5xx 可重试
func (e *VendorError) Retryable() bool {
	if errors.Is(e.Err, ErrMissingCredential) || errors.Is(e.Err, ErrEmptyPrompt) || errors.Is(e.Err, ErrCredentialRejected) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// statusError 按 HTTP 状态码构造 VendorError
func statusError(vendor Vendor, status int, detail string) *VendorError {
	err := fmt.Errorf("unexpected status %d: %s", status, detail)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		err = fmt.Errorf("%w: %s", ErrCredentialRejected, detail)
	}
	return &VendorError{Vendor: vendor, StatusCode: status, Err: err}
}
