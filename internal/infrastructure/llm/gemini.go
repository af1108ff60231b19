package llm

import (
	"context"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-1.5-flash"

// geminiAdapter 通过 Eino 的 Gemini ChatModel 调用 generateContent
// 与 OpenAI 一样，每次调用用请求里的 key 构造 genai client
type geminiAdapter struct {
	opts Options
}

func newGeminiAdapter(opts Options) *geminiAdapter {
	if opts.DefaultModel == "" {
		opts.DefaultModel = defaultGeminiModel
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &geminiAdapter{opts: opts}
}

func (a *geminiAdapter) Vendor() Vendor { return VendorGemini }

func (a *geminiAdapter) sealed() {}

func (a *geminiAdapter) Ask(ctx context.Context, req Request) (string, error) {
	if err := validate(VendorGemini, req); err != nil {
		return "", err
	}

	model := req.Model
	if model == "" {
		model = a.opts.DefaultModel
	}

	client, recorder := recordedClient(a.opts.HTTPClient)

	clientCfg := &genai.ClientConfig{
		APIKey:     req.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: client,
	}
	if a.opts.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: a.opts.BaseURL + "/"}
	}
	genaiClient, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return "", &ConfigurationError{Msg: "failed to create gemini client: " + err.Error()}
	}

	cfg := &gemini.Config{
		Client: genaiClient,
		Model:  model,
	}
	if a.opts.MaxTokens > 0 {
		cfg.MaxTokens = &a.opts.MaxTokens
	}
	if a.opts.Temperature > 0 {
		t := float32(a.opts.Temperature)
		cfg.Temperature = &t
	}

	chatModel, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		return "", &ConfigurationError{Msg: "failed to create gemini chat model: " + err.Error()}
	}

	// 被安全策略拦截或没有候选时返回空串
	msg, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(req.Prompt)})
	if err != nil {
		return generateError(VendorGemini, recorder, err)
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
