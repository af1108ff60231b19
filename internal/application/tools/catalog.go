package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"toolkitforseo-api/internal/workflow/model"
)

// ErrUnknownTool 工具未注册
var ErrUnknownTool = errors.New("tool not found")

// InputError 工具输入缺少必填字段
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}

type runFunc func(ctx context.Context, r *Runner, subscriberID, tool string, vars map[string]any) (*model.ToolOutput, error)

// Tool 工具注册信息
type Tool struct {
	Name     string
	Required []string
	Defaults map[string]string
	run      runFunc
}

func bind[T any]() runFunc {
	return func(ctx context.Context, r *Runner, subscriberID, tool string, vars map[string]any) (*model.ToolOutput, error) {
		return Run[T](ctx, r, subscriberID, tool, vars)
	}
}

// Catalog 工具名到运行函数的映射
type Catalog struct {
	runner *Runner
	tools  map[string]Tool
}

// NewCatalog 注册全部工具
func NewCatalog(runner *Runner) *Catalog {
	c := &Catalog{runner: runner, tools: make(map[string]Tool)}
	c.register(Tool{
		Name:     model.ToolGrammarChecker,
		Required: []string{"text"},
		run:      bind[model.GrammarResult](),
	})
	c.register(Tool{
		Name:     model.ToolParaphrasingTool,
		Required: []string{"text"},
		Defaults: map[string]string{"tone": "neutral"},
		run:      bind[model.ParaphraseResult](),
	})
	c.register(Tool{
		Name:     model.ToolTextSummarizer,
		Required: []string{"text"},
		Defaults: map[string]string{"length": "medium"},
		run:      bind[model.SummaryResult](),
	})
	c.register(Tool{
		Name:     model.ToolContentRewriter,
		Required: []string{"text"},
		Defaults: map[string]string{"style": "professional"},
		run:      bind[model.RewriteResult](),
	})
	return c
}

func (c *Catalog) register(t Tool) {
	c.tools[t.Name] = t
}

// Lookup 查询工具
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Names 已注册工具名，按字母序
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run 校验输入、补齐默认值后执行工具
func (c *Catalog) Run(ctx context.Context, subscriberID, name string, input map[string]string) (*model.ToolOutput, error) {
	t, ok := c.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	vars := make(map[string]any, len(input)+len(t.Defaults))
	for k, v := range t.Defaults {
		vars[k] = v
	}
	for k, v := range input {
		if v = strings.TrimSpace(v); v != "" {
			vars[k] = v
		}
	}
	for _, field := range t.Required {
		if _, ok := vars[field]; !ok {
			return nil, &InputError{Field: field}
		}
	}

	return t.run(ctx, c.runner, subscriberID, name, vars)
}
