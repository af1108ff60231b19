// Package llm 提供统一的 LLM 供应商网关
// 供应商集合是封闭的：新增供应商需要在 New 中补充分支
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Vendor 供应商标签
type Vendor string

const (
	VendorOpenAI Vendor = "openai"
	VendorGemini Vendor = "gemini"
)

// Vendors 返回全部受支持的供应商
func Vendors() []Vendor {
	return []Vendor{VendorOpenAI, VendorGemini}
}

// ParseVendor 解析供应商标签，未知标签返回 ConfigurationError
func ParseVendor(s string) (Vendor, error) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VendorOpenAI, VendorGemini:
		return v, nil
	default:
		return "", &ConfigurationError{Msg: fmt.Sprintf("unknown vendor tag %q", s)}
	}
}

// Request 单次问答请求，APIKey 随请求传入
type Request struct {
	Prompt string
	APIKey string
	// Model 为空时使用供应商默认模型
	Model string
}

// Adapter 供应商适配器
// 成功时返回生成文本，供应商未生成文本时返回空串
type Adapter interface {
	Vendor() Vendor
	Ask(ctx context.Context, req Request) (string, error)
	sealed()
}

// Options 适配器构造参数
type Options struct {
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	Temperature  float64
	HTTPClient   *http.Client
}

// New 按标签构造适配器，未知标签在任何网络调用之前失败
func New(tag Vendor, opts Options) (Adapter, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	switch tag {
	case VendorOpenAI:
		return newOpenAIAdapter(opts), nil
	case VendorGemini:
		return newGeminiAdapter(opts), nil
	default:
		return nil, &ConfigurationError{Msg: fmt.Sprintf("unknown vendor tag %q", tag)}
	}
}

// validate 调用前的公共校验
func validate(vendor Vendor, req Request) error {
	if strings.TrimSpace(req.APIKey) == "" {
		return &VendorError{Vendor: vendor, Err: ErrMissingCredential}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return &VendorError{Vendor: vendor, Err: ErrEmptyPrompt}
	}
	return nil
}
