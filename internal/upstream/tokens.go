package upstream

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tiktoken-go/tokenizer"

	"github.com/openbridge-ai/geminibridge/internal/adapter"
)

// estimatePromptTokens computes the provisional prompt token count from the
// serialized request body before the upstream call. The tokenizer is the
// primary counter; any tokenizer failure is recoverable and falls back to the
// character-class heuristic, which cannot fail. Authoritative usageMetadata
// counts observed later overwrite this value.
func estimatePromptTokens(body []byte) int {
	segments := make([]string, 0, 16)
	collectTextFields(gjson.ParseBytes(body), &segments)
	joined := strings.Join(segments, "\n")
	if joined == "" {
		return 0
	}

	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err == nil {
		if ids, _, errCount := enc.Encode(joined); errCount == nil {
			return len(ids)
		}
	}
	return adapter.EstimateTokens(joined)
}

// collectTextFields gathers every "text" leaf of a Gemini-shaped request body
// so the count reflects prompt content rather than JSON framing.
func collectTextFields(node gjson.Result, segments *[]string) {
	if node.IsObject() {
		node.ForEach(func(key, value gjson.Result) bool {
			if key.String() == "text" && value.Type == gjson.String && value.String() != "" {
				*segments = append(*segments, value.String())
				return true
			}
			collectTextFields(value, segments)
			return true
		})
		return
	}
	if node.IsArray() {
		node.ForEach(func(_, value gjson.Result) bool {
			collectTextFields(value, segments)
			return true
		})
	}
}
