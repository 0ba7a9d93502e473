// Package translator converts OpenAI Chat Completions requests into the
// Gemini cloud-code request envelope using gjson/sjson only.
package translator

import (
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ToGeminiRequest converts an OpenAI chat request (raw JSON) into a complete
// cloud-code request body: `{"model":..., "request":{contents, ...}}`.
// Messages map to systemInstruction and contents, assistant tool_calls to
// functionCall parts, tool results to functionResponse parts, and tool
// declarations to functionDeclarations.
func ToGeminiRequest(modelName string, rawJSON []byte) []byte {
	out := []byte(`{"model":"","request":{"contents":[]}}`)
	out, _ = sjson.SetBytes(out, "model", modelName)
	out, _ = sjson.SetBytes(out, "request.model", modelName)

	// Generation parameters.
	if temp := gjson.GetBytes(rawJSON, "temperature"); temp.Exists() && temp.Type == gjson.Number {
		out, _ = sjson.SetBytes(out, "request.generationConfig.temperature", temp.Num)
	}
	if topP := gjson.GetBytes(rawJSON, "top_p"); topP.Exists() && topP.Type == gjson.Number {
		out, _ = sjson.SetBytes(out, "request.generationConfig.topP", topP.Num)
	}
	maxTokens := gjson.GetBytes(rawJSON, "max_completion_tokens")
	if !maxTokens.Exists() {
		maxTokens = gjson.GetBytes(rawJSON, "max_tokens")
	}
	if maxTokens.Exists() && maxTokens.Type == gjson.Number {
		out, _ = sjson.SetBytes(out, "request.generationConfig.maxOutputTokens", maxTokens.Int())
	}
	if stop := gjson.GetBytes(rawJSON, "stop"); stop.Exists() {
		if stop.IsArray() {
			var stops []string
			stop.ForEach(func(_, value gjson.Result) bool {
				stops = append(stops, value.String())
				return true
			})
			out, _ = sjson.SetBytes(out, "request.generationConfig.stopSequences", stops)
		} else if stop.Type == gjson.String {
			out, _ = sjson.SetBytes(out, "request.generationConfig.stopSequences", []string{stop.String()})
		}
	}

	// First pass: map assistant tool call ids to function names so tool
	// results can be attributed.
	toolCallNames := map[string]string{}
	messages := gjson.GetBytes(rawJSON, "messages")
	messages.ForEach(func(_, message gjson.Result) bool {
		if message.Get("role").String() != "assistant" {
			return true
		}
		message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
			id := toolCall.Get("id").String()
			name := toolCall.Get("function.name").String()
			if id != "" && name != "" {
				toolCallNames[id] = name
			}
			return true
		})
		return true
	})

	systemPartIndex := 0
	messages.ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		content := message.Get("content")

		switch role {
		case "system", "developer":
			out, _ = sjson.SetBytes(out, "request.systemInstruction.role", "user")
			for _, text := range contentTexts(content) {
				out, _ = sjson.SetBytes(out, "request.systemInstruction.parts."+strconv.Itoa(systemPartIndex)+".text", text)
				systemPartIndex++
			}
		case "user":
			node := `{"role":"user","parts":[]}`
			for _, text := range contentTexts(content) {
				part, _ := sjson.Set(`{"text":""}`, "text", text)
				node, _ = sjson.SetRaw(node, "parts.-1", part)
			}
			out, _ = sjson.SetRawBytes(out, "request.contents.-1", []byte(node))
		case "assistant":
			node := `{"role":"model","parts":[]}`
			for _, text := range contentTexts(content) {
				part, _ := sjson.Set(`{"text":""}`, "text", text)
				node, _ = sjson.SetRaw(node, "parts.-1", part)
			}
			message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
				part := `{"functionCall":{"name":"","args":{}}}`
				part, _ = sjson.Set(part, "functionCall.name", toolCall.Get("function.name").String())
				part, _ = sjson.Set(part, "functionCall.id", toolCall.Get("id").String())
				if args := toolCall.Get("function.arguments"); args.Exists() && gjson.Valid(args.String()) {
					part, _ = sjson.SetRaw(part, "functionCall.args", args.String())
				}
				node, _ = sjson.SetRaw(node, "parts.-1", part)
				return true
			})
			if gjson.Get(node, "parts.#").Int() > 0 {
				out, _ = sjson.SetRawBytes(out, "request.contents.-1", []byte(node))
			}
		case "tool":
			name := toolCallNames[message.Get("tool_call_id").String()]
			part := `{"functionResponse":{"name":"","response":{}}}`
			part, _ = sjson.Set(part, "functionResponse.name", name)
			part, _ = sjson.Set(part, "functionResponse.id", message.Get("tool_call_id").String())
			part, _ = sjson.Set(part, "functionResponse.response.result", content.String())
			node, _ := sjson.SetRaw(`{"role":"user","parts":[]}`, "parts.-1", part)
			out, _ = sjson.SetRawBytes(out, "request.contents.-1", []byte(node))
		}
		return true
	})

	// tools -> functionDeclarations
	tools := gjson.GetBytes(rawJSON, "tools")
	if tools.IsArray() && len(tools.Array()) > 0 {
		declarations := `[]`
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			decl := `{"name":"","description":""}`
			decl, _ = sjson.Set(decl, "name", tool.Get("function.name").String())
			decl, _ = sjson.Set(decl, "description", tool.Get("function.description").String())
			if params := tool.Get("function.parameters"); params.Exists() {
				decl, _ = sjson.SetRaw(decl, "parameters", params.Raw)
			}
			declarations, _ = sjson.SetRaw(declarations, "-1", decl)
			return true
		})
		out, _ = sjson.SetRawBytes(out, "request.tools.0.functionDeclarations", []byte(declarations))
	}

	return out
}

// contentTexts flattens an OpenAI message content (string or typed part
// array) into its text pieces.
func contentTexts(content gjson.Result) []string {
	if content.Type == gjson.String {
		if content.String() == "" {
			return nil
		}
		return []string{content.String()}
	}
	var texts []string
	if content.IsArray() {
		content.ForEach(func(_, item gjson.Result) bool {
			if item.Get("type").String() == "text" {
				if text := item.Get("text").String(); text != "" {
					texts = append(texts, text)
				}
			}
			return true
		})
	}
	return texts
}
