package llm

import (
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"
)

// 错误详情写入日志前的长度上限
const maxErrorDetailRunes = 512

// statusRecorder 记录经过的最后一个 HTTP 状态码
// ChatModel 只返回 error，状态码需要在传输层拿到
type statusRecorder struct {
	next   http.RoundTripper
	mu     sync.Mutex
	status int
}

func (r *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	next := r.next
	if next == nil {
		next = http.DefaultTransport
	}
	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.status = resp.StatusCode
	r.mu.Unlock()
	return resp, nil
}

func (r *statusRecorder) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// recordedClient 复制 base 并挂上 statusRecorder
func recordedClient(base *http.Client) (*http.Client, *statusRecorder) {
	recorder := &statusRecorder{next: base.Transport}
	client := *base
	client.Transport = recorder
	return &client, recorder
}

// generateError 把 ChatModel.Generate 的错误归类
// 2xx 响应里没有任何候选结果视为空回复，返回 ("", nil)
func generateError(vendor Vendor, recorder *statusRecorder, err error) (string, error) {
	status := recorder.Status()
	switch {
	case status == 0:
		return "", &VendorError{Vendor: vendor, Err: err}
	case status < 200 || status > 299:
		return "", statusError(vendor, status, truncateRunes(err.Error(), maxErrorDetailRunes))
	case isEmptyReply(err):
		return "", nil
	default:
		return "", &VendorError{Vendor: vendor, StatusCode: status, Err: err}
	}
}

// isEmptyReply 匹配 eino-ext 在没有 choices/candidates 时返回的错误
func isEmptyReply(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "empty choices") ||
		strings.Contains(msg, "empty candidates") ||
		strings.Contains(msg, "result is empty")
}

// truncateRunes 按字符截断，不会切开多字节字符
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
