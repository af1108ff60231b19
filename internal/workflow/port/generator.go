package port

import "context"

// Generation 一次文本生成的结果
type Generation struct {
	Text   string
	Vendor string
	Model  string
}

// TextGenerator 定义工作流层对 LLM 网关的最小依赖（port）。
type TextGenerator interface {
	Generate(ctx context.Context, tool, prompt string) (*Generation, error)
}
