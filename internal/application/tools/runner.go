// Package tools 编排一次计费工具调用：占用额度、渲染提示词、调用模型、解析结果、结算
package tools

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/workflow/model"
	"toolkitforseo-api/internal/workflow/node"
	"toolkitforseo-api/internal/workflow/port"
	"toolkitforseo-api/internal/workflow/prompt"
	"toolkitforseo-api/pkg/logger"
	"toolkitforseo-api/pkg/metrics"
	"toolkitforseo-api/pkg/tracer"
)

const replyExcerptRunes = 200

// CreditMeter 运行器依赖的计量能力
type CreditMeter interface {
	Reserve(ctx context.Context, subscriberID, tool string) (*credit.Reservation, error)
	Settle(ctx context.Context, res *credit.Reservation, success bool) (credit.RecordInput, error)
}

// PromptRenderer 运行器依赖的提示词渲染能力
type PromptRenderer interface {
	Render(ctx context.Context, id prompt.PromptID, vars map[string]any) (string, error)
}

// Runner 工具运行器
type Runner struct {
	meter     CreditMeter
	prompts   PromptRenderer
	generator port.TextGenerator
	retry     credit.RetryQueue
	now       func() time.Time
}

// NewRunner 创建运行器，retry 可为 nil
func NewRunner(meter CreditMeter, prompts PromptRenderer, generator port.TextGenerator, retry credit.RetryQueue) *Runner {
	return &Runner{
		meter:     meter,
		prompts:   prompts,
		generator: generator,
		retry:     retry,
		now:       time.Now,
	}
}

// Run 执行工具并把模型输出解码为 T。
// 模型或解析失败时以失败结算后返回原始错误；成功后的结算失败只记录日志并进入重试队列。
func Run[T any](ctx context.Context, r *Runner, subscriberID, tool string, vars map[string]any) (out *model.ToolOutput, err error) {
	ctx = logger.WithContext(ctx, logger.ToolKey, tool)
	ctx, span := tracer.Start(ctx, "tools.Run")
	span.SetAttributes(attribute.String("tool.name", tool))
	defer func() { tracer.End(span, err) }()

	res, err := r.meter.Reserve(ctx, subscriberID, tool)
	if err != nil {
		metrics.ToolRunTotal.WithLabelValues(tool, "denied").Inc()
		return nil, err
	}

	start := r.now()
	text, err := r.prompts.Render(ctx, prompt.ForTool(tool), vars)
	if err != nil {
		r.fail(ctx, res, "render", err)
		return nil, err
	}

	gen, err := r.generator.Generate(ctx, tool, text)
	if err != nil {
		r.fail(ctx, res, "vendor", err)
		return nil, err
	}

	result, err := node.Decode[T](gen.Text)
	if err != nil {
		logger.Warn(ctx, "model reply could not be parsed",
			"vendor", gen.Vendor,
			"reply_excerpt", node.TruncateByRunes(gen.Text, replyExcerptRunes),
			"error", err.Error(),
		)
		r.fail(ctx, res, "parse", err)
		return nil, err
	}

	r.settle(ctx, res, true)
	metrics.ToolRunTotal.WithLabelValues(tool, "success").Inc()
	span.SetAttributes(attribute.String("llm.vendor", gen.Vendor))

	return &model.ToolOutput{
		Result: result,
		Run: model.ToolRun{
			Tool:        tool,
			Vendor:      gen.Vendor,
			Model:       gen.Model,
			CreditsUsed: res.Credits,
			Success:     true,
			StartedAt:   start,
			Duration:    r.now().Sub(start),
		},
	}, nil
}

func (r *Runner) fail(ctx context.Context, res *credit.Reservation, stage string, cause error) {
	metrics.ToolRunTotal.WithLabelValues(res.Tool, stage+"_error").Inc()
	logger.Error(ctx, "tool run failed", cause,
		"stage", stage,
		"subscriber_id", res.SubscriberID,
	)
	r.settle(ctx, res, false)
}

// settle 结算不受请求取消影响，失败时交给重试队列
func (r *Runner) settle(ctx context.Context, res *credit.Reservation, success bool) {
	ctx = context.WithoutCancel(ctx)

	in, err := r.meter.Settle(ctx, res, success)
	if err == nil {
		return
	}
	logger.Error(ctx, "failed to record usage, scheduling retry", err,
		"record_id", in.ID,
		"subscriber_id", res.SubscriberID,
		"success", success,
	)
	if r.retry == nil {
		return
	}
	if qErr := r.retry.EnqueueUsage(ctx, in); qErr != nil {
		metrics.UsageRecordFailures.WithLabelValues("enqueue").Inc()
		logger.Error(ctx, "failed to enqueue usage record", qErr,
			"record_id", in.ID,
			"subscriber_id", res.SubscriberID,
		)
	}
}
