package eino

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"toolkitforseo-api/pkg/metrics"
)

// newChatModelCallbackHandler 记录模型返回的 token 用量
// 调用次数与耗时由网关中间件统计，这里只补充供应商回传的用量
func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			recordTokenUsage(ctx, output)
			return ctx
		},
	}
}

func recordTokenUsage(ctx context.Context, output *model.CallbackOutput) {
	if output == nil || output.TokenUsage == nil {
		return
	}
	modelName := modelNameFromOutput(output)
	usage := output.TokenUsage

	metrics.LLMTokensUsed.WithLabelValues(modelName, "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(modelName, "completion").Add(float64(usage.CompletionTokens))

	// span 由网关中间件创建
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("llm.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.completion_tokens", usage.CompletionTokens),
	)
}

// modelNameFromOutput 从输出配置中提取模型名称
func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
