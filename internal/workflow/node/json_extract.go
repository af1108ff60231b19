package node

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 解析失败原因
const (
	ReasonNoBlock        = "no_block"
	ReasonInvalidJSON    = "invalid_json"
	ReasonSchemaMismatch = "schema_mismatch"
)

// 只取第一个 ```json 代码块，标签不区分大小写
var openFencePattern = regexp.MustCompile("(?i)```json[ \\t]*")

// JSON 字符串里不会出现裸换行，行首的 ``` 才是块结束
var lineCloseFencePattern = regexp.MustCompile("\\r?\\n[ \\t]*```")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseError 模型输出无法解析为预期结构
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse model output: " + e.Reason
	}
	return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractFencedJSON 返回第一个 json 代码块的内容
func ExtractFencedJSON(text string) (string, error) {
	loc := openFencePattern.FindStringIndex(text)
	if loc == nil {
		return "", &ParseError{Reason: ReasonNoBlock}
	}
	rest := text[loc[1]:]

	if strings.HasPrefix(rest, "\n") || strings.HasPrefix(rest, "\r\n") {
		if c := lineCloseFencePattern.FindStringIndex(rest); c != nil {
			return strings.TrimSpace(rest[:c[0]]), nil
		}
	}

	// 单行写法 ```json {...}```，或结束标记没有换行
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", &ParseError{Reason: ReasonNoBlock}
	}
	return strings.TrimSpace(rest[:end]), nil
}

// ParseFencedJSON 提取并解析代码块，数字保留为 json.Number
func ParseFencedJSON(text string) (any, error) {
	raw, err := ExtractFencedJSON(text)
	if err != nil {
		return nil, err
	}
	var v any
	if err := decodeSingle(raw, &v); err != nil {
		return nil, &ParseError{Reason: ReasonInvalidJSON, Err: err}
	}
	return v, nil
}

// Decode 提取代码块并解码为 T，结构体会再做 validate 标签校验。
// 语法错误归为 invalid_json，类型不符或校验失败归为 schema_mismatch。
func Decode[T any](text string) (T, error) {
	var out T

	raw, err := ExtractFencedJSON(text)
	if err != nil {
		return out, err
	}

	var msg json.RawMessage
	if err := decodeSingle(raw, &msg); err != nil {
		return out, &ParseError{Reason: ReasonInvalidJSON, Err: err}
	}
	if err := json.Unmarshal(msg, &out); err != nil {
		return out, &ParseError{Reason: ReasonSchemaMismatch, Err: err}
	}

	if isStruct(out) {
		if err := validate.Struct(out); err != nil {
			return out, &ParseError{Reason: ReasonSchemaMismatch, Err: err}
		}
	}
	return out, nil
}

// IsParseError 判断是否为解析失败
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func decodeSingle(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t != nil && t.Kind() == reflect.Struct
}
