package adapter

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

// toolCallIDCounter provides a process-wide unique counter for generated
// tool call identifiers.
var toolCallIDCounter uint64

// accumulateToolCall appends one finalized ToolCall for a functionCall part,
// in arrival order. Each part is a complete call; the upstream contract never
// fragments a single call across parts. When the part carries no vendor id,
// one is generated from the function name, a nanosecond timestamp and the
// process-wide counter, which cannot collide with vendor ids in the same turn.
func (s *TurnState) accumulateToolCall(fn gjson.Result) {
	name := fn.Get("name").String()
	id := fn.Get("id").String()
	if id == "" {
		id = fmt.Sprintf("%s-%d-%d", name, time.Now().UnixNano(), atomic.AddUint64(&toolCallIDCounter, 1))
	}
	args := "{}"
	if argsResult := fn.Get("args"); argsResult.Exists() {
		args = argsResult.Raw
	}
	s.toolCalls = append(s.toolCalls, ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      name,
			Arguments: args,
		},
	})
}

// takeToolCalls returns the accumulated batch and clears the accumulator.
func (s *TurnState) takeToolCalls() []ToolCall {
	calls := s.toolCalls
	s.toolCalls = nil
	return calls
}
