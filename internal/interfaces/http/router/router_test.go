package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/application/tools"
	"toolkitforseo-api/internal/config"
	"toolkitforseo-api/internal/domain/entity"
	"toolkitforseo-api/internal/domain/repository"
	"toolkitforseo-api/internal/interfaces/http/handler"
	"toolkitforseo-api/internal/workflow/port"
	"toolkitforseo-api/internal/workflow/prompt"
	"toolkitforseo-api/pkg/utils"
)

const testSecret = "test-secret"

type stubMeter struct {
	reserveErr error
	settled    []bool
	decision   *credit.Decision
	summary    *credit.CreditSummary
	summaryErr error
}

func (m *stubMeter) Reserve(_ context.Context, sub, tool string) (*credit.Reservation, error) {
	if m.reserveErr != nil {
		return nil, m.reserveErr
	}
	return &credit.Reservation{ID: "res-1", SubscriberID: sub, Tool: tool, Category: "writing", Credits: 5}, nil
}

func (m *stubMeter) Settle(_ context.Context, res *credit.Reservation, success bool) (credit.RecordInput, error) {
	m.settled = append(m.settled, success)
	return credit.RecordInput{ID: res.ID}, nil
}

func (m *stubMeter) Authorize(_ context.Context, _, tool string, credits *int64) (*credit.Decision, error) {
	if tool == "unknown" {
		return nil, credit.ErrUnknownTool
	}
	d := *m.decision
	if credits != nil {
		d.Required = *credits
	}
	return &d, nil
}

func (m *stubMeter) Summary(context.Context, string) (*credit.CreditSummary, error) {
	return m.summary, m.summaryErr
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) Generate(context.Context, string, string) (*port.Generation, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &port.Generation{Text: g.reply, Vendor: "gemini", Model: "gemini-1.5-flash"}, nil
}

type stubUsage struct {
	repository.UsageRecordRepository
	records []*entity.UsageRecord
	gotPage repository.Pagination
}

func (u *stubUsage) ListBySubscriber(_ context.Context, _ string, p repository.Pagination) (*repository.PagedResult[*entity.UsageRecord], error) {
	u.gotPage = p
	return repository.NewPagedResult(u.records, int64(len(u.records)), p), nil
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, window time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, nil
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

type env struct {
	engine  *gin.Engine
	meter   *stubMeter
	gen     *stubGenerator
	usage   *stubUsage
	limiter *stubLimiter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.JWT.Secret = testSecret
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMinute = 10
	cfg.Server.HTTP.MaxBodyBytes = 1 << 10

	meter := &stubMeter{
		decision: &credit.Decision{Allowed: true, Remaining: 95, Required: 5, Limit: 100, Used: 5, Category: "writing"},
		summary:  &credit.CreditSummary{SubscriberID: "sub_1", Plan: "pro"},
	}
	gen := &stubGenerator{reply: "```json\n{\"summary\":\"short\",\"key_points\":[\"a\"],\"word_count\":1}\n```"}
	usage := &stubUsage{}
	limiter := &stubLimiter{allow: true}

	catalog := tools.NewCatalog(tools.NewRunner(meter, prompt.NewRegistry(), gen, nil))
	health := handler.NewHealthHandler("v-test", nil, nil)
	r := New(cfg, Handlers{
		Health: health,
		Tools:  handler.NewToolHandler(catalog),
		Credit: handler.NewCreditHandler(meter, usage),
	}, limiter, func(sub, endpoint string) string { return sub + "|" + endpoint })

	return &env{engine: r.Engine(), meter: meter, gen: gen, usage: usage, limiter: limiter}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := utils.NewJWTManager(testSecret, "").GenerateToken(sub, "dev@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (e *env) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+token(t, "sub_1"))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	if body.TraceID == "" {
		t.Errorf("error body has no trace_id: %s", w.Body.String())
	}
	return body.Error
}

func TestToolRoute_Success(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/v1/tools/text-summarizer", `{"text":"a long article","length":"short"}`, true)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["summary"] != "short" {
		t.Fatalf("body = %s", w.Body.String())
	}
	if w.Header().Get("X-Credits-Used") != "5" {
		t.Fatalf("X-Credits-Used = %q", w.Header().Get("X-Credits-Used"))
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
	if len(e.limiter.keys) != 1 || e.limiter.keys[0] != "sub_1|/v1/tools/:tool" {
		t.Fatalf("rate limit keys = %v", e.limiter.keys)
	}
}

func TestToolRoute_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		path       string
		body       string
		setup      func(e *env)
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing text",
			path:       "/v1/tools/grammar-checker",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required field: text",
		},
		{
			name:       "invalid option",
			path:       "/v1/tools/text-summarizer",
			body:       `{"text":"x","length":"epic"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid value for field: length",
		},
		{
			name:       "malformed body",
			path:       "/v1/tools/grammar-checker",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request",
		},
		{
			name:       "unknown tool",
			path:       "/v1/tools/keyword-stuffer",
			body:       `{"text":"x"}`,
			wantStatus: http.StatusNotFound,
			wantError:  "tool not found",
		},
		{
			name: "insufficient credits",
			path: "/v1/tools/grammar-checker",
			body: `{"text":"x"}`,
			setup: func(e *env) {
				e.meter.reserveErr = &credit.InsufficientCreditsError{Decision: &credit.Decision{Remaining: 3, Required: 5, Category: "writing"}}
			},
			wantStatus: http.StatusPaymentRequired,
			wantError:  "Insufficient credits. You have 3 credits remaining for writing, but this tool requires 5.",
		},
		{
			name:       "no subscription",
			path:       "/v1/tools/grammar-checker",
			body:       `{"text":"x"}`,
			setup:      func(e *env) { e.meter.reserveErr = credit.ErrNoActiveSubscription },
			wantStatus: http.StatusPaymentRequired,
			wantError:  "No active subscription",
		},
		{
			name:       "vendor network error",
			path:       "/v1/tools/text-summarizer",
			body:       `{"text":"x"}`,
			setup:      func(e *env) { e.gen.err = errors.New("dial tcp: connection refused") },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
		{
			name:       "no fenced block",
			path:       "/v1/tools/text-summarizer",
			body:       `{"text":"x"}`,
			setup:      func(e *env) { e.gen.reply = "Here is your summary: short." },
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := newEnv(t)
			if c.setup != nil {
				c.setup(e)
			}
			w := e.do(t, http.MethodPost, c.path, c.body, true)
			if w.Code != c.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, c.wantStatus, w.Body.String())
			}
			if got := errorBody(t, w); got != c.wantError {
				t.Fatalf("error = %q, want %q", got, c.wantError)
			}
		})
	}
}

func TestToolRoute_VendorFailureRecordsFailure(t *testing.T) {
	e := newEnv(t)
	e.gen.err = errors.New("timeout")
	e.do(t, http.MethodPost, "/v1/tools/text-summarizer", `{"text":"x"}`, true)

	if len(e.meter.settled) != 1 || e.meter.settled[0] {
		t.Fatalf("settled = %v, want a single failed settle", e.meter.settled)
	}
}

func TestAuth(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/credits", "", false)
	if w.Code != http.StatusUnauthorized || errorBody(t, w) != "Unauthorized" {
		t.Fatalf("no header: %d %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}

	expired, _ := utils.NewJWTManager(testSecret, "").GenerateToken("sub_1", "", -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || errorBody(t, w) != "Token expired" {
		t.Fatalf("expired token: %d %s", w.Code, w.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t)
	e.limiter.allow = false
	w := e.do(t, http.MethodGet, "/v1/credits", "", true)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreditRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/credits", "", true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"plan":"pro"`) {
		t.Fatalf("summary: %d %s", w.Code, w.Body.String())
	}

	e.meter.summaryErr = credit.ErrNoActiveSubscription
	w = e.do(t, http.MethodGet, "/v1/credits", "", true)
	if w.Code != http.StatusNotFound || errorBody(t, w) != "No active subscription" {
		t.Fatalf("summary without subscription: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/v1/credits/check?tool=grammar-checker&credits=7", "", true)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"required":7`) {
		t.Fatalf("check: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/v1/credits/check", "", true)
	if w.Code != http.StatusBadRequest || errorBody(t, w) != "Missing required field: tool" {
		t.Fatalf("check without tool: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/v1/credits/check?tool=unknown", "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("check unknown tool: %d %s", w.Code, w.Body.String())
	}
}

func TestUsageRoute(t *testing.T) {
	e := newEnv(t)
	e.usage.records = []*entity.UsageRecord{
		{ID: "r2", ToolName: "grammar-checker", ToolCategory: "writing", CreditsUsed: 5, Success: true},
		{ID: "r1", ToolName: "text-summarizer", ToolCategory: "writing", CreditsUsed: 3, Success: false},
	}

	w := e.do(t, http.MethodGet, "/v1/usage?page=2&page_size=500", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if e.usage.gotPage.Page != 2 || e.usage.gotPage.PageSize != 100 {
		t.Fatalf("pagination = %+v", e.usage.gotPage)
	}
	var resp struct {
		Data []map[string]any `json:"data"`
		Meta map[string]any   `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[0]["id"] != "r2" || resp.Meta["total"] != float64(2) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestHealthRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/health", "", false)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "v-test") {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/ready", "", false)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready without clients: %d", w.Code)
	}
}

func TestReadyChecksDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := handler.NewHealthHandlerWithChecks("v", map[string]handler.HealthChecker{
		"postgres": stubChecker{},
		"redis":    stubChecker{err: errors.New("connection refused")},
	})
	engine := gin.New()
	engine.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("ready: %d %s", w.Code, w.Body.String())
	}

	h = handler.NewHealthHandlerWithChecks("v", map[string]handler.HealthChecker{
		"postgres": stubChecker{},
		"redis":    stubChecker{},
	})
	engine = gin.New()
	engine.GET("/ready", h.Ready)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready: %d %s", w.Code, w.Body.String())
	}
}

func TestBodyLimit(t *testing.T) {
	e := newEnv(t)
	big := `{"text":"` + strings.Repeat("a", 2048) + `"}`
	w := e.do(t, http.MethodPost, "/v1/tools/grammar-checker", big, true)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestBodyLimit_WithoutContentLength(t *testing.T) {
	e := newEnv(t)
	big := `{"text":"` + strings.Repeat("a", 2048) + `"}`
	// MultiReader 让请求没有 Content-Length，超限只能在读取时发现
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/grammar-checker", io.MultiReader(strings.NewReader(big)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, "sub_1"))
	if req.ContentLength != -1 {
		t.Fatalf("ContentLength = %d, want unknown", req.ContentLength)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if msg := errorBody(t, w); msg != "Request body too large" {
		t.Fatalf("error = %q", msg)
	}
	if len(e.meter.settled) != 0 {
		t.Fatalf("settled = %v, want no tool run", e.meter.settled)
	}
}
