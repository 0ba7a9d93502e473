package adapter

import "github.com/tidwall/gjson"

// Fixed bracket markers delimiting a thinking segment on the caller's text
// channel. The downstream protocol has no native reasoning field, so thinking
// text is surfaced inline between these markers.
const (
	ThinkingOpenMarker  = "<thinking>\n\n"
	ThinkingCloseMarker = "\n\n</thinking>\n\n"
)

// ProcessChunk applies one decoded response fragment to the turn state and
// emits zero or more events. Ordering inside a fragment is load-bearing:
//
//  1. A finishReason on the fragment latches the mapped finish reason
//     (first fragment wins).
//  2. usageMetadata counts overwrite the state per field, last write wins.
//  3. Parts dispatch in arrival order: thinking parts open a bracketed
//     thinking segment, text parts close it and append to the answer,
//     functionCall parts accumulate silently.
//  4. When the fragment is terminal and calls were accumulated anywhere in
//     the turn, any open thinking segment is closed and the whole batch is
//     emitted as a single tool_calls event. Tool calls are never streamed
//     per-call; they surface only once the model has finished deciding.
func ProcessChunk(fragment gjson.Result, state *TurnState, emit EmitFunc) {
	terminal := false
	if finishResult := fragment.Get("candidates.0.finishReason"); finishResult.Exists() && finishResult.String() != "" {
		terminal = true
		state.LatchFinishReason(MapFinishReason(finishResult.String()))
	}

	if usageResult := fragment.Get("usageMetadata"); usageResult.Exists() {
		if promptResult := usageResult.Get("promptTokenCount"); promptResult.Exists() {
			state.RecordPromptTokens(int(promptResult.Int()))
		}
		if candidatesResult := usageResult.Get("candidatesTokenCount"); candidatesResult.Exists() {
			state.RecordCompletionTokens(int(candidatesResult.Int()))
		}
	}

	fragment.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("thought").Bool():
			if !state.thinkingOpen {
				state.thinkingOpen = true
				emit(Event{Type: EventThinking, Content: ThinkingOpenMarker})
			}
			emit(Event{Type: EventThinking, Content: part.Get("text").String()})
		case part.Get("functionCall").Exists():
			state.accumulateToolCall(part.Get("functionCall"))
		case part.Get("text").Exists():
			if state.thinkingOpen {
				state.thinkingOpen = false
				emit(Event{Type: EventThinking, Content: ThinkingCloseMarker})
			}
			text := part.Get("text").String()
			state.fullContent.WriteString(text)
			emit(Event{Type: EventText, Content: text})
		}
		return true
	})

	if terminal && len(state.toolCalls) > 0 {
		if state.thinkingOpen {
			state.thinkingOpen = false
			emit(Event{Type: EventThinking, Content: ThinkingCloseMarker})
		}
		emit(Event{Type: EventToolCalls, ToolCalls: state.takeToolCalls()})
	}
}
