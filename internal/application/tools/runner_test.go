package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/workflow/model"
	"toolkitforseo-api/internal/workflow/node"
	"toolkitforseo-api/internal/workflow/port"
	"toolkitforseo-api/internal/workflow/prompt"
)

type settleCall struct {
	res     *credit.Reservation
	success bool
}

type fakeMeter struct {
	mu         sync.Mutex
	reserveErr error
	settleErr  error
	settles    []settleCall
}

func (m *fakeMeter) Reserve(_ context.Context, subscriberID, tool string) (*credit.Reservation, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	return &credit.Reservation{ID: "res-1", SubscriberID: subscriberID, Tool: tool, Category: "writing", Credits: 5, Limit: 100}, nil
}

func (m *fakeMeter) Settle(_ context.Context, res *credit.Reservation, success bool) (credit.RecordInput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settles = append(m.settles, settleCall{res: res, success: success})
	credits := res.Credits
	return credit.RecordInput{ID: res.ID, SubscriberID: res.SubscriberID, ToolName: res.Tool, CreditsUsed: &credits, Success: &success}, m.settleErr
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, tool, p string) (*port.Generation, error) {
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return nil, g.err
	}
	return &port.Generation{Text: g.reply, Vendor: "openai", Model: "gpt-4o-mini"}, nil
}

type fakeQueue struct {
	enqueued []credit.RecordInput
	err      error
}

func (q *fakeQueue) EnqueueUsage(_ context.Context, in credit.RecordInput) error {
	q.enqueued = append(q.enqueued, in)
	return q.err
}

const grammarReply = "Sure!\n```json\n{\"corrected_text\":\"They're going to the store.\",\"errors\":[{\"original\":\"Their\",\"correction\":\"They're\",\"explanation\":\"contraction\",\"type\":\"grammar\"}],\"score\":72}\n```"

func newTestCatalog(meter *fakeMeter, gen *fakeGenerator, queue *fakeQueue) *Catalog {
	var retry credit.RetryQueue
	if queue != nil {
		retry = queue
	}
	return NewCatalog(NewRunner(meter, prompt.NewRegistry(), gen, retry))
}

func TestCatalog_RunSuccess(t *testing.T) {
	meter := &fakeMeter{}
	gen := &fakeGenerator{reply: grammarReply}
	c := newTestCatalog(meter, gen, &fakeQueue{})

	out, err := c.Run(context.Background(), "sub_1", model.ToolGrammarChecker, map[string]string{"text": "Their going to the store."})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	res, ok := out.Result.(model.GrammarResult)
	if !ok {
		t.Fatalf("result type = %T", out.Result)
	}
	if res.CorrectedText != "They're going to the store." || res.Score != 72 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if out.Run.Vendor != "openai" || out.Run.CreditsUsed != 5 || !out.Run.Success {
		t.Fatalf("run = %+v", out.Run)
	}
	if len(meter.settles) != 1 || !meter.settles[0].success {
		t.Fatalf("settles = %+v", meter.settles)
	}
	if !strings.Contains(gen.prompts[0], "Their going to the store.") {
		t.Fatalf("prompt = %q", gen.prompts[0])
	}
}

func TestCatalog_VendorFailureSettlesAsFailure(t *testing.T) {
	meter := &fakeMeter{}
	vendorErr := errors.New("connection refused")
	c := newTestCatalog(meter, &fakeGenerator{err: vendorErr}, nil)

	_, err := c.Run(context.Background(), "sub_1", model.ToolTextSummarizer, map[string]string{"text": "long text"})
	if !errors.Is(err, vendorErr) {
		t.Fatalf("err = %v", err)
	}
	if len(meter.settles) != 1 || meter.settles[0].success {
		t.Fatalf("settles = %+v, want one failed settle", meter.settles)
	}
}

func TestCatalog_ParseFailureSettlesAsFailure(t *testing.T) {
	for name, reply := range map[string]string{
		"no block":        "I could not produce JSON, sorry.",
		"schema mismatch": "```json\n{\"summary\":\"\"}\n```",
	} {
		t.Run(name, func(t *testing.T) {
			meter := &fakeMeter{}
			c := newTestCatalog(meter, &fakeGenerator{reply: reply}, nil)

			_, err := c.Run(context.Background(), "sub_1", model.ToolTextSummarizer, map[string]string{"text": "x"})
			if !node.IsParseError(err) {
				t.Fatalf("err = %v, want ParseError", err)
			}
			if len(meter.settles) != 1 || meter.settles[0].success {
				t.Fatalf("settles = %+v", meter.settles)
			}
		})
	}
}

func TestCatalog_DeniedReservationSkipsVendor(t *testing.T) {
	denied := &credit.InsufficientCreditsError{Decision: &credit.Decision{Remaining: 2, Required: 5, Category: "writing"}}
	meter := &fakeMeter{reserveErr: denied}
	gen := &fakeGenerator{reply: grammarReply}
	c := newTestCatalog(meter, gen, nil)

	_, err := c.Run(context.Background(), "sub_1", model.ToolGrammarChecker, map[string]string{"text": "x"})
	var insufficient *credit.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v", err)
	}
	if len(gen.prompts) != 0 || len(meter.settles) != 0 {
		t.Fatal("denied reservation must not call the vendor or settle")
	}
}

func TestCatalog_SettleFailureAfterSuccessIsQueued(t *testing.T) {
	meter := &fakeMeter{settleErr: errors.New("insert failed")}
	queue := &fakeQueue{}
	c := newTestCatalog(meter, &fakeGenerator{reply: grammarReply}, queue)

	out, err := c.Run(context.Background(), "sub_1", model.ToolGrammarChecker, map[string]string{"text": "x"})
	if err != nil {
		t.Fatalf("Run should swallow settle failures, got %v", err)
	}
	if out == nil {
		t.Fatal("expected result")
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0].ID != "res-1" || !*queue.enqueued[0].Success {
		t.Fatalf("enqueued = %+v", queue.enqueued)
	}

	queue.err = errors.New("redis down")
	if _, err := c.Run(context.Background(), "sub_1", model.ToolGrammarChecker, map[string]string{"text": "x"}); err != nil {
		t.Fatalf("enqueue failure must not fail the request, got %v", err)
	}
}

func TestCatalog_InputHandling(t *testing.T) {
	gen := &fakeGenerator{reply: "```json\n{\"paraphrased\":\"p\"}\n```"}
	c := newTestCatalog(&fakeMeter{}, gen, nil)

	var inputErr *InputError
	if _, err := c.Run(context.Background(), "sub_1", model.ToolParaphrasingTool, map[string]string{"text": "   "}); !errors.As(err, &inputErr) || inputErr.Field != "text" {
		t.Fatalf("err = %v, want InputError(text)", err)
	}
	if _, err := c.Run(context.Background(), "sub_1", "keyword-stuffer", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}

	if _, err := c.Run(context.Background(), "sub_1", model.ToolParaphrasingTool, map[string]string{"text": "hello"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(gen.prompts[0], "in a neutral tone") {
		t.Fatalf("default tone not applied: %q", gen.prompts[0])
	}
}

func TestCatalog_Names(t *testing.T) {
	c := newTestCatalog(&fakeMeter{}, &fakeGenerator{}, nil)
	got := strings.Join(c.Names(), ",")
	if got != "content-rewriter,grammar-checker,paraphrasing-tool,text-summarizer" {
		t.Fatalf("names = %s", got)
	}
}
