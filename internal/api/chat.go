package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/openbridge-ai/geminibridge/internal/adapter"
	"github.com/openbridge-ai/geminibridge/internal/logging"
	"github.com/openbridge-ai/geminibridge/internal/translator"
	"github.com/openbridge-ai/geminibridge/internal/upstream"
)

// chatCompletions handles POST /v1/chat/completions. The OpenAI request is
// translated to the cloud-code envelope and driven through one turn; adapter
// events are rendered as chat.completion.chunk frames (streaming) or folded
// into a single chat.completion document.
func (s *Server) chatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("failed to read request body", "invalid_request_error"))
		return
	}
	model := gjson.GetBytes(body, "model").String()
	if model == "" {
		c.JSON(http.StatusBadRequest, apiError("model is required", "invalid_request_error"))
		return
	}

	geminiBody := translator.ToGeminiRequest(model, body)
	completionID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	if gjson.GetBytes(body, "stream").Bool() {
		s.streamCompletion(c, model, completionID, created, geminiBody)
		return
	}
	s.bufferedCompletion(c, model, completionID, created, geminiBody)
}

func (s *Server) streamCompletion(c *gin.Context, model, completionID string, created int64, geminiBody []byte) {
	ctx := c.Request.Context()

	base := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{},"finish_reason":null}]}`
	base, _ = sjson.Set(base, "id", completionID)
	base, _ = sjson.Set(base, "created", created)
	base, _ = sjson.Set(base, "model", model)

	headerSent := false
	writeChunk := func(chunk string) {
		if !headerSent {
			headerSent = true
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
		}
		_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", chunk)
		c.Writer.Flush()
	}

	emit := func(event adapter.Event) {
		chunk := base
		switch event.Type {
		case adapter.EventThinking, adapter.EventText:
			chunk, _ = sjson.Set(chunk, "choices.0.delta.role", "assistant")
			chunk, _ = sjson.Set(chunk, "choices.0.delta.content", event.Content)
		case adapter.EventToolCalls:
			chunk, _ = sjson.Set(chunk, "choices.0.delta.role", "assistant")
			chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls", `[]`)
			for i, call := range event.ToolCalls {
				encoded, err := json.Marshal(call)
				if err != nil {
					continue
				}
				item, _ := sjson.Set(string(encoded), "index", i)
				chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls.-1", item)
			}
		}
		writeChunk(chunk)
	}

	summary, err := s.upstream.Generate(ctx, geminiBody, true, emit)
	if err != nil {
		if !headerSent {
			status, message := errorStatus(err)
			c.JSON(status, apiError(message, "upstream_error"))
			return
		}
		logging.WithRequestLog(ctx).Errorf("stream aborted: %v", err)
		return
	}

	final := base
	final, _ = sjson.Set(final, "choices.0.finish_reason", summary.FinishReason)
	final, _ = sjson.Set(final, "usage.prompt_tokens", summary.Usage.PromptTokens)
	final, _ = sjson.Set(final, "usage.completion_tokens", summary.Usage.CompletionTokens)
	final, _ = sjson.Set(final, "usage.total_tokens", summary.Usage.TotalTokens)
	writeChunk(final)
	_, _ = fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func (s *Server) bufferedCompletion(c *gin.Context, model, completionID string, created int64, geminiBody []byte) {
	ctx := c.Request.Context()

	var content strings.Builder
	var toolCalls []adapter.ToolCall
	emit := func(event adapter.Event) {
		switch event.Type {
		case adapter.EventThinking, adapter.EventText:
			content.WriteString(event.Content)
		case adapter.EventToolCalls:
			toolCalls = append(toolCalls, event.ToolCalls...)
		}
	}

	summary, err := s.upstream.Generate(ctx, geminiBody, false, emit)
	if err != nil {
		status, message := errorStatus(err)
		c.JSON(status, apiError(message, "upstream_error"))
		return
	}

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":null},"finish_reason":null}]}`
	out, _ = sjson.Set(out, "id", completionID)
	out, _ = sjson.Set(out, "created", created)
	out, _ = sjson.Set(out, "model", model)
	if content.Len() > 0 {
		out, _ = sjson.Set(out, "choices.0.message.content", content.String())
	}
	if len(toolCalls) > 0 {
		encoded, errMarshal := json.Marshal(toolCalls)
		if errMarshal == nil {
			out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", string(encoded))
		}
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason", summary.FinishReason)
	out, _ = sjson.Set(out, "usage.prompt_tokens", summary.Usage.PromptTokens)
	out, _ = sjson.Set(out, "usage.completion_tokens", summary.Usage.CompletionTokens)
	out, _ = sjson.Set(out, "usage.total_tokens", summary.Usage.TotalTokens)
	c.Data(http.StatusOK, "application/json", []byte(out))
}

// errorStatus maps the upstream error taxonomy onto HTTP responses.
func errorStatus(err error) (int, string) {
	var permErr *upstream.PermissionError
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, upstream.ErrAuthUnavailable):
		return http.StatusServiceUnavailable, "no usable upstream credential"
	case errors.As(err, &permErr):
		return http.StatusForbidden, permErr.Body
	case errors.As(err, &statusErr):
		return statusErr.Code, statusErr.Body
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
