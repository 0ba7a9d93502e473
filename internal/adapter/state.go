// Package adapter reconstructs a coherent assistant turn from the chunked
// response stream of the Gemini cloud-code API and re-emits it as a sequence
// of normalized events (text, thinking segments, batched tool calls). The same
// per-fragment processing core serves both the SSE streaming path and the
// buffered non-streaming path, so both produce identical final semantics.
package adapter

import "strings"

// EventType tags the variants of the adapter's output event union.
type EventType string

const (
	// EventThinking carries reasoning text, including the fixed open/close
	// bracket markers that delimit a thinking segment.
	EventThinking EventType = "thinking"

	// EventText carries regular answer text.
	EventText EventType = "text"

	// EventToolCalls carries the complete batch of tool calls for the turn.
	EventToolCalls EventType = "tool_calls"
)

// Event is one normalized output unit observed by the caller. Ordering is
// significant: events mirror upstream arrival order, except that a pending
// thinking close bracket is always flushed before a tool_calls emission.
type Event struct {
	Type      EventType  `json:"type"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// EmitFunc receives events synchronously and in order. It must return before
// the next event is produced; the adapter never buffers past it.
type EmitFunc func(Event)

// ToolCall is a finalized function call discovered during the turn.
// Immutable once constructed; the ID is unique within a turn.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token counts in the downstream protocol's shape.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Summary is the immutable result of a completed turn.
type Summary struct {
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// TurnState is the mutable state of one in-flight request/response cycle.
// It is owned by exactly one turn and must not be shared across goroutines.
type TurnState struct {
	thinkingOpen     bool
	toolCalls        []ToolCall
	finishReason     string
	promptTokens     int
	completionTokens int
	fullContent      strings.Builder
}

// NewTurnState returns a fresh state for a single turn.
func NewTurnState() *TurnState {
	return &TurnState{}
}

// LatchFinishReason stores a mapped finish reason with first-wins semantics:
// the first terminal signal of the turn sticks, later ones are ignored.
func (s *TurnState) LatchFinishReason(reason string) {
	if s.finishReason == "" {
		s.finishReason = reason
	}
}

// FinishReason returns the latched finish reason, or "" if none was observed.
func (s *TurnState) FinishReason() string { return s.finishReason }

// RecordPromptTokens overwrites the prompt token count. Last write wins:
// later fragments carrying official counts supersede earlier estimates.
func (s *TurnState) RecordPromptTokens(n int) { s.promptTokens = n }

// RecordCompletionTokens overwrites the completion token count, last write wins.
func (s *TurnState) RecordCompletionTokens(n int) { s.completionTokens = n }

// PendingToolCalls reports whether accumulated tool calls are still awaiting
// a terminal fragment to be emitted.
func (s *TurnState) PendingToolCalls() bool { return len(s.toolCalls) > 0 }

// Finalize applies the end-of-turn defaults and returns the turn summary.
// If no terminal signal was ever observed the finish reason defaults to
// tool_calls when calls are still accumulated, stop otherwise. If upstream
// never reported a completion token count, it is backfilled from the
// concatenated answer text via the heuristic estimator.
func (s *TurnState) Finalize() Summary {
	if s.finishReason == "" {
		if len(s.toolCalls) > 0 {
			s.finishReason = FinishToolCalls
		} else {
			s.finishReason = FinishStop
		}
	}
	if s.completionTokens == 0 && s.fullContent.Len() > 0 {
		s.completionTokens = EstimateTokens(s.fullContent.String())
	}
	return Summary{
		FinishReason: s.finishReason,
		Usage: Usage{
			PromptTokens:     s.promptTokens,
			CompletionTokens: s.completionTokens,
			TotalTokens:      s.promptTokens + s.completionTokens,
		},
	}
}
