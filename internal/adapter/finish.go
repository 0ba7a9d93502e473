package adapter

// Finish reasons in the downstream chat-completions vocabulary.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
	FinishToolCalls     = "tool_calls"
)

// MapFinishReason maps an upstream candidate finishReason code to the
// downstream enum. Unknown or empty codes degrade to stop rather than
// erroring, since the upstream vocabulary grows over time.
func MapFinishReason(code string) string {
	switch code {
	case "STOP":
		return FinishStop
	case "MAX_TOKENS":
		return FinishLength
	case "SAFETY", "RECITATION":
		return FinishContentFilter
	case "OTHER", "FINISH_REASON_UNSPECIFIED":
		return FinishStop
	default:
		return FinishStop
	}
}
