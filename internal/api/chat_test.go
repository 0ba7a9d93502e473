package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/openbridge-ai/geminibridge/internal/adapter"
	"github.com/openbridge-ai/geminibridge/internal/config"
	"github.com/openbridge-ai/geminibridge/internal/upstream"
)

// fakeGenerator replays a scripted event sequence and summary.
type fakeGenerator struct {
	events  []adapter.Event
	summary adapter.Summary
	err     error
	models  string
	gotBody []byte
}

func (f *fakeGenerator) Generate(_ context.Context, body []byte, _ bool, emit adapter.EmitFunc) (adapter.Summary, error) {
	f.gotBody = body
	if f.err != nil {
		return adapter.Summary{}, f.err
	}
	for _, event := range f.events {
		emit(event)
	}
	return f.summary, nil
}

func (f *fakeGenerator) ListModels(_ context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.models), nil
}

func newTestServer(fake *fakeGenerator, keys ...string) *Server {
	return NewServer(&config.Config{Port: 0, APIKeys: keys}, fake)
}

func doRequest(t *testing.T, server *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestChatCompletionsNonStreaming(t *testing.T) {
	fake := &fakeGenerator{
		events: []adapter.Event{
			{Type: adapter.EventThinking, Content: adapter.ThinkingOpenMarker},
			{Type: adapter.EventThinking, Content: "mulling"},
			{Type: adapter.EventThinking, Content: adapter.ThinkingCloseMarker},
			{Type: adapter.EventText, Content: "the answer"},
		},
		summary: adapter.Summary{
			FinishReason: adapter.FinishStop,
			Usage:        adapter.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		},
	}
	server := newTestServer(fake)

	recorder := doRequest(t, server, http.MethodPost, "/v1/chat/completions",
		`{"model":"gemini-3-pro","messages":[{"role":"user","content":"hi"}]}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}

	out := gjson.ParseBytes(recorder.Body.Bytes())
	if got := out.Get("object").String(); got != "chat.completion" {
		t.Errorf("object = %q", got)
	}
	content := out.Get("choices.0.message.content").String()
	if !strings.Contains(content, "mulling") || !strings.Contains(content, "the answer") {
		t.Errorf("content = %q", content)
	}
	if got := out.Get("choices.0.finish_reason").String(); got != "stop" {
		t.Errorf("finish_reason = %q", got)
	}
	if got := out.Get("usage.total_tokens").Int(); got != 8 {
		t.Errorf("total_tokens = %d", got)
	}
	// The upstream body must be the translated cloud-code envelope.
	if !gjson.GetBytes(fake.gotBody, "request.contents").Exists() {
		t.Errorf("upstream body = %s, want cloud-code envelope", fake.gotBody)
	}
}

func TestChatCompletionsToolCalls(t *testing.T) {
	fake := &fakeGenerator{
		events: []adapter.Event{
			{Type: adapter.EventToolCalls, ToolCalls: []adapter.ToolCall{{
				ID:       "call-1",
				Type:     "function",
				Function: adapter.FunctionCall{Name: "list_dir", Arguments: `{"path":"."}`},
			}}},
		},
		summary: adapter.Summary{FinishReason: adapter.FinishToolCalls},
	}
	server := newTestServer(fake)

	recorder := doRequest(t, server, http.MethodPost, "/v1/chat/completions",
		`{"model":"gemini-3-pro","messages":[{"role":"user","content":"ls"}]}`, nil)
	out := gjson.ParseBytes(recorder.Body.Bytes())
	call := out.Get("choices.0.message.tool_calls.0")
	if call.Get("function.name").String() != "list_dir" || call.Get("id").String() != "call-1" {
		t.Errorf("tool call = %s", call.Raw)
	}
	if got := out.Get("choices.0.finish_reason").String(); got != "tool_calls" {
		t.Errorf("finish_reason = %q", got)
	}
}

func TestChatCompletionsStreaming(t *testing.T) {
	fake := &fakeGenerator{
		events: []adapter.Event{
			{Type: adapter.EventText, Content: "hel"},
			{Type: adapter.EventText, Content: "lo"},
		},
		summary: adapter.Summary{
			FinishReason: adapter.FinishStop,
			Usage:        adapter.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3},
		},
	}
	server := newTestServer(fake)

	recorder := doRequest(t, server, http.MethodPost, "/v1/chat/completions",
		`{"model":"gemini-3-pro","stream":true,"messages":[{"role":"user","content":"hi"}]}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	var chunks []gjson.Result
	sawDone := false
	for _, line := range strings.Split(recorder.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			continue
		}
		chunks = append(chunks, gjson.Parse(payload))
	}
	if !sawDone {
		t.Error("missing [DONE] sentinel")
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 2 deltas + final", len(chunks))
	}
	if got := chunks[0].Get("choices.0.delta.content").String(); got != "hel" {
		t.Errorf("first delta = %q", got)
	}
	final := chunks[len(chunks)-1]
	if got := final.Get("choices.0.finish_reason").String(); got != "stop" {
		t.Errorf("final finish_reason = %q", got)
	}
	if got := final.Get("usage.total_tokens").Int(); got != 3 {
		t.Errorf("final usage = %s", final.Get("usage").Raw)
	}
}

func TestChatCompletionsErrorMapping(t *testing.T) {
	fake := &fakeGenerator{err: &upstream.PermissionError{Body: "blocked"}}
	server := newTestServer(fake)
	recorder := doRequest(t, server, http.MethodPost, "/v1/chat/completions",
		`{"model":"m","messages":[]}`, nil)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "blocked") {
		t.Errorf("body = %s, want upstream error text", recorder.Body.String())
	}

	fake = &fakeGenerator{err: upstream.ErrAuthUnavailable}
	server = newTestServer(fake)
	recorder = doRequest(t, server, http.MethodPost, "/v1/chat/completions",
		`{"model":"m","messages":[]}`, nil)
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", recorder.Code)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	fake := &fakeGenerator{models: `{"models":{}}`}
	server := newTestServer(fake, "sk-local")

	recorder := doRequest(t, server, http.MethodGet, "/v1/models", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", recorder.Code)
	}

	recorder = doRequest(t, server, http.MethodGet, "/v1/models", "", map[string]string{"Authorization": "Bearer sk-local"})
	if recorder.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", recorder.Code)
	}

	// Health stays open.
	recorder = doRequest(t, server, http.MethodGet, "/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Errorf("health status = %d", recorder.Code)
	}
}
