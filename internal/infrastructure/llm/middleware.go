package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"toolkitforseo-api/pkg/metrics"
	"toolkitforseo-api/pkg/tracer"
)

// throttled 出站限速，等待令牌期间响应 ctx 取消
type throttled struct {
	next    Adapter
	limiter *rate.Limiter
}

// Throttled 为适配器加上令牌桶限速
func Throttled(next Adapter, rps float64, burst int) Adapter {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *throttled) Vendor() Vendor { return t.next.Vendor() }

func (t *throttled) sealed() {}

func (t *throttled) Ask(ctx context.Context, req Request) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &VendorError{Vendor: t.next.Vendor(), Err: err}
	}
	return t.next.Ask(ctx, req)
}

// retrying 对可重试的供应商错误做指数退避重试
type retrying struct {
	next       Adapter
	maxRetries int
	initial    time.Duration
}

// Retrying 为适配器加上重试，maxRetries 为 0 时原样返回
func Retrying(next Adapter, maxRetries int) Adapter {
	if maxRetries <= 0 {
		return next
	}
	return &retrying{next: next, maxRetries: maxRetries, initial: 500 * time.Millisecond}
}

func (r *retrying) Vendor() Vendor { return r.next.Vendor() }

func (r *retrying) sealed() {}

func (r *retrying) Ask(ctx context.Context, req Request) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial

	return backoff.Retry(ctx, func() (string, error) {
		text, err := r.next.Ask(ctx, req)
		if err == nil {
			return text, nil
		}
		var vErr *VendorError
		if errors.As(err, &vErr) && vErr.Retryable() {
			return "", err
		}
		return "", backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.maxRetries+1)),
	)
}

// instrumented 记录调用指标与追踪
type instrumented struct {
	next Adapter
}

// Instrumented 为适配器加上 Prometheus 指标与 OTel Span
func Instrumented(next Adapter) Adapter {
	return &instrumented{next: next}
}

func (i *instrumented) Vendor() Vendor { return i.next.Vendor() }

func (i *instrumented) sealed() {}

func (i *instrumented) Ask(ctx context.Context, req Request) (text string, err error) {
	vendor := string(i.next.Vendor())
	model := req.Model
	if model == "" {
		model = "default"
	}

	ctx, span := tracer.Start(ctx, "llm.Ask", trace.WithAttributes(
		attribute.String("llm.vendor", vendor),
		attribute.String("llm.model", model),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.LLMCallTotal.WithLabelValues(vendor, model, status).Inc()
		metrics.LLMCallDuration.WithLabelValues(vendor, model).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("llm.response_chars", len(text)))
		tracer.End(span, err)
	}()

	return i.next.Ask(ctx, req)
}
