package prompt

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptGrammarCheckerV1   PromptID = "grammar-checker_v1"
	PromptParaphrasingToolV1 PromptID = "paraphrasing-tool_v1"
	PromptTextSummarizerV1   PromptID = "text-summarizer_v1"
	PromptContentRewriterV1  PromptID = "content-rewriter_v1"
)

// ForTool 返回工具当前使用的模板版本
func ForTool(tool string) PromptID {
	return PromptID(tool + "_v1")
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	text, err := readEmbeddedText("templates/" + string(id) + ".txt")
	if err != nil {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}

	tpl := einoprompt.FromMessages(schema.FString, schema.UserMessage(text))
	r.cache[id] = tpl
	return tpl, nil
}

// Render 渲染模板并拼接为单条提示词，供只接受纯文本的供应商使用
func (r *Registry) Render(ctx context.Context, id PromptID, vars map[string]any) (string, error) {
	tpl, err := r.ChatTemplate(id)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", id, err)
	}

	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
