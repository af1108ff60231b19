package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/workflow/port"
)

const defaultCallTimeout = 60 * time.Second

// Route 一次调用的路由结果
type Route struct {
	Vendor Vendor
	Model  string
	APIKey string
}

// Gateway 根据配置为每个供应商构造带限速、重试与观测的适配器
type Gateway struct {
	cfg      *config.LLMConfig
	adapters map[Vendor]Adapter
	timeouts map[Vendor]time.Duration
}

// NewGateway 创建 LLM 网关，配置中的未知供应商标签在此处失败
func NewGateway(cfg *config.LLMConfig) (*Gateway, error) {
	return NewGatewayWithClient(cfg, &http.Client{})
}

// NewGatewayWithClient 使用指定的 HTTP 客户端创建网关
func NewGatewayWithClient(cfg *config.LLMConfig, httpClient *http.Client) (*Gateway, error) {
	g := &Gateway{
		cfg:      cfg,
		adapters: make(map[Vendor]Adapter, len(cfg.Providers)),
		timeouts: make(map[Vendor]time.Duration, len(cfg.Providers)),
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vendor, err := ParseVendor(name)
		if err != nil {
			return nil, err
		}
		p := cfg.Providers[name]

		adapter, err := New(vendor, Options{
			BaseURL:      p.BaseURL,
			DefaultModel: p.Model,
			MaxTokens:    p.MaxTokens,
			Temperature:  p.Temperature,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, err
		}

		// 限速在最外层，重试不会绕过令牌桶
		adapter = Instrumented(adapter)
		adapter = Retrying(adapter, p.MaxRetries)
		adapter = Throttled(adapter, p.RequestsPerSecond, p.Burst)

		g.adapters[vendor] = adapter
		g.timeouts[vendor] = p.Timeout
	}

	if cfg.DefaultProvider != "" {
		if _, err := ParseVendor(cfg.DefaultProvider); err != nil {
			return nil, err
		}
	}
	for tool, name := range cfg.ToolProviders {
		if _, err := ParseVendor(name); err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool, err)
		}
	}

	return g, nil
}

// Resolve 解析工具应使用的供应商、模型与凭证
// 优先工具级覆盖，其次默认供应商
func (g *Gateway) Resolve(tool string) (Route, error) {
	name := strings.TrimSpace(g.cfg.ToolProviders[tool])
	if name == "" {
		name = strings.TrimSpace(g.cfg.DefaultProvider)
	}
	if name == "" {
		return Route{}, &ConfigurationError{Msg: "llm provider not specified"}
	}

	vendor, err := ParseVendor(name)
	if err != nil {
		return Route{}, err
	}
	p, ok := g.cfg.Providers[name]
	if !ok {
		return Route{}, &ConfigurationError{Msg: fmt.Sprintf("llm provider %q not configured", name)}
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return Route{}, &ConfigurationError{Msg: fmt.Sprintf("llm provider %q has no api key", name)}
	}

	return Route{Vendor: vendor, Model: p.Model, APIKey: p.APIKey}, nil
}

// Ask 按路由发起调用，每次调用受供应商超时约束
func (g *Gateway) Ask(ctx context.Context, route Route, prompt string) (string, error) {
	adapter, ok := g.adapters[route.Vendor]
	if !ok {
		return "", &ConfigurationError{Msg: fmt.Sprintf("llm provider %q not configured", route.Vendor)}
	}

	timeout := g.timeouts[route.Vendor]
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return adapter.Ask(ctx, Request{Prompt: prompt, APIKey: route.APIKey, Model: route.Model})
}

// Generate 为工具解析路由并发起调用
func (g *Gateway) Generate(ctx context.Context, tool, prompt string) (*port.Generation, error) {
	route, err := g.Resolve(tool)
	if err != nil {
		return nil, err
	}
	text, err := g.Ask(ctx, route, prompt)
	if err != nil {
		return nil, err
	}
	return &port.Generation{Text: text, Vendor: string(route.Vendor), Model: route.Model}, nil
}

var _ port.TextGenerator = (*Gateway)(nil)
