package node

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"toolkitforseo-api/internal/workflow/model"
)

func fence(body string) string {
	return "Here is the result:\n```json\n" + body + "\n```\nThanks."
}

func TestExtractFencedJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", fence(`{"a":1}`), `{"a":1}`},
		{"uppercase tag with spaces", "```JSON  \n[1,2]\n```", `[1,2]`},
		{"first block wins", "```json\n{\"n\":1}\n```\n```json\n{\"n\":2}\n```", `{"n":1}`},
		{"crlf", "```json\r\n{\"x\":true}\r\n```", `{"x":true}`},
		{"inline", "result: ```json {\"a\":1}``` done", `{"a":1}`},
		{"closing fence on last line", "```json\n{\"a\":1}```", `{"a":1}`},
		{"backticks inside string", "```json\n{\"t\":\"use ```go fmt```\"}\n```", "{\"t\":\"use ```go fmt```\"}"},
		{"indented closing fence", "```json\n{\"a\":1}\n  ```", `{"a":1}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ExtractFencedJSON(c.in)
			if err != nil {
				t.Fatalf("ExtractFencedJSON: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestExtractFencedJSON_NoBlock(t *testing.T) {
	for _, in := range []string{"", `{"a":1}`, "```\n{\"a\":1}\n```", "```yaml\na: 1\n```"} {
		_, err := ExtractFencedJSON(in)
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Reason != ReasonNoBlock {
			t.Errorf("ExtractFencedJSON(%q) err = %v, want no_block", in, err)
		}
	}
}

func TestParseFencedJSON_RoundTrip(t *testing.T) {
	values := []any{
		map[string]any{"text": "héllo \"world\"", "n": 12345678901234567, "f": 0.1, "ok": true, "nil": nil},
		[]any{1, "two", []any{3.5}, map[string]any{}},
		"just a string",
		map[string]any{"corrected_text": "Use ```go fmt``` before commit"},
		[]any{"```json\n{}\n```", "``` ```"},
		42,
		false,
	}
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		got, err := ParseFencedJSON(fence(string(b)))
		if err != nil {
			t.Fatalf("ParseFencedJSON(%s): %v", b, err)
		}
		back, err := json.Marshal(got)
		if err != nil {
			t.Fatalf("re-marshal: %v", err)
		}
		var want, have any
		_ = json.Unmarshal(b, &want)
		_ = json.Unmarshal(back, &have)
		if !reflect.DeepEqual(want, have) {
			t.Errorf("round trip mismatch: %s vs %s", b, back)
		}
	}
}

func TestParseFencedJSON_KeepsLargeIntegers(t *testing.T) {
	got, err := ParseFencedJSON(fence(`{"id":12345678901234567}`))
	if err != nil {
		t.Fatalf("ParseFencedJSON: %v", err)
	}
	n := got.(map[string]any)["id"].(json.Number)
	if n.String() != "12345678901234567" {
		t.Fatalf("id = %s", n)
	}
}

func TestParseFencedJSON_InvalidJSON(t *testing.T) {
	for _, body := range []string{`{"a":`, `{"a":1} trailing`, `{'a':1}`, ``} {
		got, err := ParseFencedJSON(fence(body))
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Reason != ReasonInvalidJSON {
			t.Errorf("body %q: err = %v, want invalid_json", body, err)
		}
		if got != nil {
			t.Errorf("body %q: got partial value %v", body, got)
		}
	}
}

func TestDecode(t *testing.T) {
	text := fence(`{"summary":"short","key_points":["a","b"],"word_count":2,"extra":"ignored"}`)
	res, err := Decode[model.SummaryResult](text)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res.Summary != "short" || len(res.KeyPoints) != 2 || res.WordCount != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	cases := map[string]string{
		"missing required": `{"key_points":[]}`,
		"wrong type":       `{"summary":"x","word_count":"many"}`,
		"out of range":     `{"summary":"x","word_count":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode[model.SummaryResult](fence(body))
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Reason != ReasonSchemaMismatch {
				t.Fatalf("err = %v, want schema_mismatch", err)
			}
		})
	}
}

func TestDecode_NestedValidation(t *testing.T) {
	_, err := Decode[model.GrammarResult](fence(`{"corrected_text":"ok","errors":[{"correction":"x"}],"score":90}`))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Reason != ReasonSchemaMismatch {
		t.Fatalf("err = %v, want schema_mismatch", err)
	}
}

func TestDecode_PropagatesExtractionFailures(t *testing.T) {
	if _, err := Decode[model.RewriteResult]("no code block here"); !IsParseError(err) {
		t.Fatalf("err = %v, want ParseError", err)
	}
	_, err := Decode[model.RewriteResult](fence(`{"rewritten":`))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Reason != ReasonInvalidJSON {
		t.Fatalf("err = %v, want invalid_json", err)
	}
}

func TestTruncateByRunes(t *testing.T) {
	if got := TruncateByRunes("héllo", 2); got != "hé..." {
		t.Fatalf("got %q", got)
	}
	if got := TruncateByRunes("abc", 5); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := TruncateByRunes("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}
