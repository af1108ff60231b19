package llm

import (
	"context"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
)

const defaultOpenAIModel = "gpt-4o-mini"

// openAIAdapter 通过 Eino 的 OpenAI ChatModel 调用 Chat Completions
// API Key 随请求变化，因此每次调用构造一个 ChatModel
type openAIAdapter struct {
	opts Options
}

func newOpenAIAdapter(opts Options) *openAIAdapter {
	if opts.DefaultModel == "" {
		opts.DefaultModel = defaultOpenAIModel
	}
	return &openAIAdapter{opts: opts}
}

func (a *openAIAdapter) Vendor() Vendor { return VendorOpenAI }

func (a *openAIAdapter) sealed() {}

func (a *openAIAdapter) Ask(ctx context.Context, req Request) (string, error) {
	if err := validate(VendorOpenAI, req); err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = a.opts.DefaultModel
	}

	// 记录最后一次响应状态码，用于区分凭证被拒与其他失败
	client, recorder := recordedClient(a.opts.HTTPClient)

	cfg := &openai.ChatModelConfig{
		APIKey:     req.APIKey,
		BaseURL:    a.opts.BaseURL,
		Model:      model,
		HTTPClient: client,
	}
	if a.opts.MaxTokens > 0 {
		cfg.MaxTokens = &a.opts.MaxTokens
	}
	if a.opts.Temperature > 0 {
		t := float32(a.opts.Temperature)
		cfg.Temperature = &t
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return "", &ConfigurationError{Msg: "failed to create openai chat model: " + err.Error()}
	}

	msg, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(req.Prompt)})
	if err != nil {
		return generateError(VendorOpenAI, recorder, err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
