package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/goccy/go-json"
)

// ResultStatus represents the status of a tool execution
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusPartial ResultStatus = "partial" // 部分成功，例如 URL 返回非 200
)

var statusPrefix = map[ResultStatus]string{
	StatusError:   "[ERROR] ",
	StatusPartial: "[PARTIAL] ",
}

// Metadata describes what a knowledge tool touched
type Metadata struct {
	Source     string `json:"source,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	MatchCount int    `json:"match_count,omitempty"`
	Total      int    `json:"total,omitempty"`

	URL        string `json:"url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Duration   int64  `json:"duration_ms,omitempty"`
}

// attrs renders the non-zero fields as key=value pairs in a fixed order
func (md *Metadata) attrs() []string {
	var out []string
	add := func(ok bool, format string, v any) {
		if ok {
			out = append(out, fmt.Sprintf(format, v))
		}
	}
	add(md.Source != "", "source=%q", md.Source)
	add(md.ChunkCount > 0, "chunks=%d", md.ChunkCount)
	add(md.MatchCount > 0, "matches=%d", md.MatchCount)
	add(md.Total > 0, "total=%d", md.Total)
	add(md.URL != "", "url=%s", md.URL)
	add(md.StatusCode > 0, "status=%d", md.StatusCode)
	add(md.Duration > 0, "duration=%dms", md.Duration)
	return out
}

// ToolResult is what a knowledge tool hands back to the model
type ToolResult struct {
	Status   ResultStatus `json:"status"`
	Content  string       `json:"content"`
	Metadata *Metadata    `json:"metadata,omitempty"`
}

// String renders the result for the model: a status prefix, the content
// and a single self-closing metadata tag
func (r *ToolResult) String() string {
	s := statusPrefix[r.Status] + r.Content
	if r.Metadata == nil {
		return s
	}
	if attrs := r.Metadata.attrs(); len(attrs) > 0 {
		s += "\n\n<metadata " + strings.Join(attrs, " ") + " />"
	}
	return s
}

// JSON is used for debug logging of results
func (r *ToolResult) JSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}

func result(status ResultStatus, content string, md *Metadata) (string, error) {
	return (&ToolResult{Status: status, Content: content, Metadata: md}).String(), nil
}

// Success formats a successful result
func Success(content string, md *Metadata) (string, error) {
	return result(StatusSuccess, content, md)
}

// Error formats a failure the model can read; tools never return Go errors
// for bad input
func Error(content string) (string, error) {
	return result(StatusError, content, nil)
}

// Partial formats a result that only partly succeeded
func Partial(content string, md *Metadata) (string, error) {
	return result(StatusPartial, content, md)
}

// toolErrorText strips eino's invocation prefix ("... err=") from err.
// Interrupts are not tool failures and report false.
func toolErrorText(err error) (string, bool) {
	msg := err.Error()
	if strings.Contains(msg, "interrupt signal") {
		return "", false
	}
	if _, after, ok := strings.Cut(msg, "err="); ok {
		msg = strings.TrimSpace(after)
	}
	return msg, true
}

// ErrorHandler 工具错误中间件：把调用错误转换为 [ERROR] 结果，
// 让模型看到失败原因而不是中断整个 Agent
func ErrorHandler() compose.ToolMiddleware {
	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
				output, err := next(ctx, in)
				if err == nil {
					return output, nil
				}
				msg, ok := toolErrorText(err)
				if !ok {
					return nil, err
				}
				res, _ := Error(msg)
				return &compose.ToolOutput{Result: res}, nil
			}
		},
	}
}
