package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"toolkitforseo-api/internal/config"
)

// failingTransport 任何网络访问都判定测试失败
type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected network call")
	return nil, errors.New("network disabled")
}

func noNetworkClient(t *testing.T) *http.Client {
	return &http.Client{Transport: failingTransport{t: t}}
}

func TestNew_UnknownTagFailsBeforeNetwork(t *testing.T) {
	_, err := New(Vendor("claude"), Options{HTTPClient: noNetworkClient(t)})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestParseVendor(t *testing.T) {
	for _, in := range []string{"openai", "OpenAI", " gemini "} {
		if _, err := ParseVendor(in); err != nil {
			t.Errorf("ParseVendor(%q) = %v", in, err)
		}
	}
	var cfgErr *ConfigurationError
	if _, err := ParseVendor("mistral"); !errors.As(err, &cfgErr) {
		t.Errorf("ParseVendor(mistral) err = %v, want ConfigurationError", err)
	}
}

func TestAdapters_MissingKeyAndEmptyPromptNeverCallNetwork(t *testing.T) {
	for _, tag := range Vendors() {
		adapter, err := New(tag, Options{HTTPClient: noNetworkClient(t)})
		if err != nil {
			t.Fatalf("New(%s): %v", tag, err)
		}

		_, err = adapter.Ask(context.Background(), Request{Prompt: "hi"})
		var vErr *VendorError
		if !errors.As(err, &vErr) || !errors.Is(err, ErrMissingCredential) {
			t.Errorf("%s missing key: err = %v", tag, err)
		}

		_, err = adapter.Ask(context.Background(), Request{Prompt: "  ", APIKey: "k"})
		if !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("%s empty prompt: err = %v", tag, err)
		}
	}
}

// geminiBody 只解出断言需要的请求字段
type geminiBody struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
}

func geminiServer(t *testing.T, status int, body string, seen *geminiBody) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-test:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "gm-key" {
			t.Errorf("api key header = %q", got)
		}
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiAdapter_Ask(t *testing.T) {
	var seen geminiBody
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"hello there"}],"role":"model"}}]}`, &seen)

	adapter, _ := New(VendorGemini, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	text, err := adapter.Ask(context.Background(), Request{Prompt: "say hi", APIKey: "gm-key", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("text = %q", text)
	}
	if len(seen.Contents) != 1 || seen.Contents[0].Parts[0].Text != "say hi" {
		t.Fatalf("request body = %+v", seen)
	}
}

func TestGeminiAdapter_EmptyResponseYieldsEmptyString(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"candidates":[]}`, nil)
	adapter, _ := New(VendorGemini, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	text, err := adapter.Ask(context.Background(), Request{Prompt: "x", APIKey: "gm-key", Model: "gemini-test"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestGeminiAdapter_StatusErrors(t *testing.T) {
	cases := []struct {
		status       int
		wantRejected bool
		wantRetry    bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusBadRequest, false, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, true},
	}
	for _, c := range cases {
		srv := geminiServer(t, c.status, `{"error":{"message":"nope"}}`, nil)
		adapter, _ := New(VendorGemini, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

		_, err := adapter.Ask(context.Background(), Request{Prompt: "x", APIKey: "gm-key", Model: "gemini-test"})
		var vErr *VendorError
		if !errors.As(err, &vErr) {
			t.Fatalf("status %d: err = %v, want VendorError", c.status, err)
		}
		if vErr.StatusCode != c.status {
			t.Errorf("status %d: StatusCode = %d", c.status, vErr.StatusCode)
		}
		if got := errors.Is(err, ErrCredentialRejected); got != c.wantRejected {
			t.Errorf("status %d: rejected = %v", c.status, got)
		}
		if got := vErr.Retryable(); got != c.wantRetry {
			t.Errorf("status %d: retryable = %v", c.status, got)
		}
		if !strings.Contains(err.Error(), "nope") {
			t.Errorf("status %d: error %q lacks vendor message", c.status, err)
		}
	}
}

func TestGeminiAdapter_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	adapter, _ := New(VendorGemini, Options{BaseURL: url})
	_, err := adapter.Ask(context.Background(), Request{Prompt: "x", APIKey: "gm-key"})
	var vErr *VendorError
	if !errors.As(err, &vErr) || vErr.StatusCode != 0 || !vErr.Retryable() {
		t.Fatalf("err = %v, want retryable transport VendorError", err)
	}
}

func openAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func chatCompletion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
	return string(b)
}

func TestOpenAIAdapter_Ask(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, chatCompletion("```json\n{\"ok\":true}\n```"))
	adapter, _ := New(VendorOpenAI, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	text, err := adapter.Ask(context.Background(), Request{Prompt: "hi", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if text != "```json\n{\"ok\":true}\n```" {
		t.Fatalf("text = %q", text)
	}
}

func TestOpenAIAdapter_EmptyContent(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, chatCompletion(""))
	adapter, _ := New(VendorOpenAI, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	text, err := adapter.Ask(context.Background(), Request{Prompt: "hi", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestOpenAIAdapter_EmptyChoices(t *testing.T) {
	srv := openAIServer(t, http.StatusOK,
		`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[]}`)
	adapter, _ := New(VendorOpenAI, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	text, err := adapter.Ask(context.Background(), Request{Prompt: "hi", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestGenerateError(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		err       error
		wantEmpty bool
		wantCode  int
	}{
		{"transport failure", 0, errors.New("dial tcp: connection refused"), false, 0},
		{"openai empty choices", 200, errors.New("received empty choices from OpenAI API response"), true, 0},
		{"gemini empty result", 200, errors.New("gemini result is empty"), true, 0},
		{"malformed success body", 200, errors.New("invalid character 'x'"), false, 200},
		{"server error", 502, errors.New("bad gateway"), false, 502},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := &statusRecorder{status: c.status}
			text, err := generateError(VendorOpenAI, rec, c.err)
			if c.wantEmpty {
				if err != nil || text != "" {
					t.Fatalf("generateError = %q, %v, want empty reply", text, err)
				}
				return
			}
			var vErr *VendorError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want VendorError", err)
			}
			if vErr.StatusCode != c.wantCode {
				t.Fatalf("StatusCode = %d, want %d", vErr.StatusCode, c.wantCode)
			}
		})
	}
}

func TestGenerateError_DetailIsRuneSafe(t *testing.T) {
	detail := strings.Repeat("错", maxErrorDetailRunes+10)
	_, err := generateError(VendorGemini, &statusRecorder{status: 500}, errors.New(detail))
	if err == nil {
		t.Fatal("expected error")
	}
	if !utf8.ValidString(err.Error()) {
		t.Fatalf("error message is not valid UTF-8")
	}
	if strings.Count(err.Error(), "错") != maxErrorDetailRunes {
		t.Fatalf("detail runes = %d, want %d", strings.Count(err.Error(), "错"), maxErrorDetailRunes)
	}
}

func TestOpenAIAdapter_RejectedKey(t *testing.T) {
	srv := openAIServer(t, http.StatusUnauthorized,
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	adapter, _ := New(VendorOpenAI, Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := adapter.Ask(context.Background(), Request{Prompt: "hi", APIKey: "sk-test"})
	var vErr *VendorError
	if !errors.As(err, &vErr) || vErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want VendorError with 401", err)
	}
	if !errors.Is(err, ErrCredentialRejected) {
		t.Fatalf("err = %v, want ErrCredentialRejected", err)
	}
}

// scriptedAdapter 按顺序返回预设错误
type scriptedAdapter struct {
	calls int32
	errs  []error
}

func (s *scriptedAdapter) Vendor() Vendor { return VendorGemini }
func (s *scriptedAdapter) sealed()        {}
func (s *scriptedAdapter) Ask(context.Context, Request) (string, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return "", s.errs[n]
	}
	return "done", nil
}

func TestRetrying(t *testing.T) {
	transient := &VendorError{Vendor: VendorGemini, StatusCode: 503, Err: errors.New("unavailable")}
	rejected := statusError(VendorGemini, 401, "bad key")

	t.Run("retries transient failures", func(t *testing.T) {
		inner := &scriptedAdapter{errs: []error{transient, transient}}
		r := &retrying{next: inner, maxRetries: 2, initial: time.Millisecond}
		text, err := r.Ask(context.Background(), Request{})
		if err != nil || text != "done" {
			t.Fatalf("Ask = %q, %v", text, err)
		}
		if inner.calls != 3 {
			t.Fatalf("calls = %d, want 3", inner.calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		inner := &scriptedAdapter{errs: []error{transient, transient, transient}}
		r := &retrying{next: inner, maxRetries: 1, initial: time.Millisecond}
		if _, err := r.Ask(context.Background(), Request{}); !errors.Is(err, transient) {
			t.Fatalf("err = %v, want transient error", err)
		}
		if inner.calls != 2 {
			t.Fatalf("calls = %d, want 2", inner.calls)
		}
	})

	t.Run("does not retry rejected credentials", func(t *testing.T) {
		inner := &scriptedAdapter{errs: []error{rejected}}
		r := &retrying{next: inner, maxRetries: 3, initial: time.Millisecond}
		if _, err := r.Ask(context.Background(), Request{}); !errors.Is(err, ErrCredentialRejected) {
			t.Fatalf("err = %v", err)
		}
		if inner.calls != 1 {
			t.Fatalf("calls = %d, want 1", inner.calls)
		}
	})

	t.Run("zero retries is a passthrough", func(t *testing.T) {
		inner := &scriptedAdapter{}
		if got := Retrying(inner, 0); got != Adapter(inner) {
			t.Fatal("Retrying with 0 retries should return the inner adapter")
		}
	})
}

func TestThrottled_HonoursContext(t *testing.T) {
	inner := &scriptedAdapter{}
	a := Throttled(inner, 0.001, 1)

	if _, err := a.Ask(context.Background(), Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Ask(ctx, Request{})
	var vErr *VendorError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want VendorError", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestGateway(t *testing.T) {
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"summary"}]}}]}`, nil)

	cfg := &config.LLMConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {Model: "gpt-4o-mini"},
			"gemini": {APIKey: "gm-key", BaseURL: srv.URL, Model: "gemini-test", Timeout: time.Second},
		},
		ToolProviders: map[string]string{"text-summarizer": "gemini"},
	}
	gw, err := NewGatewayWithClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	route, err := gw.Resolve("text-summarizer")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if route.Vendor != VendorGemini || route.Model != "gemini-test" {
		t.Fatalf("route = %+v", route)
	}
	text, err := gw.Ask(context.Background(), route, "summarize this")
	if err != nil || text != "summary" {
		t.Fatalf("Ask = %q, %v", text, err)
	}

	// 默认供应商没有配置 key
	var cfgErr *ConfigurationError
	if _, err := gw.Resolve("grammar-checker"); !errors.As(err, &cfgErr) {
		t.Fatalf("Resolve without key: err = %v, want ConfigurationError", err)
	}
}

func TestNewGateway_RejectsUnknownProvider(t *testing.T) {
	cfg := &config.LLMConfig{
		Providers: map[string]config.ProviderConfig{"claude": {APIKey: "x"}},
	}
	var cfgErr *ConfigurationError
	if _, err := NewGateway(cfg); !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
}

func TestGateway_Generate(t *testing.T) {
	srv := geminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"parts":[{"text":"fixed"}]}}]}`, nil)
	cfg := &config.LLMConfig{
		DefaultProvider: "gemini",
		Providers: map[string]config.ProviderConfig{
			"gemini": {APIKey: "gm-key", BaseURL: srv.URL, Model: "gemini-test"},
		},
	}
	gw, err := NewGatewayWithClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	gen, err := gw.Generate(context.Background(), "grammar-checker", "fix it")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Text != "fixed" || gen.Vendor != "gemini" || gen.Model != "gemini-test" {
		t.Fatalf("generation = %+v", gen)
	}
}
