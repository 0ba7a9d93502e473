package translator

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestToGeminiRequestBasicMessages(t *testing.T) {
	in := []byte(`{
		"model":"gemini-3-pro",
		"temperature":0.7,
		"max_tokens":512,
		"messages":[
			{"role":"system","content":"be terse"},
			{"role":"user","content":"hello"},
			{"role":"assistant","content":"hi, how can I help?"},
			{"role":"user","content":[{"type":"text","text":"part one"},{"type":"text","text":"part two"}]}
		]
	}`)

	out := gjson.ParseBytes(ToGeminiRequest("gemini-3-pro", in))
	if got := out.Get("model").String(); got != "gemini-3-pro" {
		t.Errorf("model = %q", got)
	}
	if got := out.Get("request.systemInstruction.parts.0.text").String(); got != "be terse" {
		t.Errorf("system instruction = %q", got)
	}
	if got := out.Get("request.generationConfig.temperature").Float(); got != 0.7 {
		t.Errorf("temperature = %v", got)
	}
	if got := out.Get("request.generationConfig.maxOutputTokens").Int(); got != 512 {
		t.Errorf("maxOutputTokens = %d", got)
	}
	contents := out.Get("request.contents")
	if contents.Get("#").Int() != 3 {
		t.Fatalf("contents = %s", contents.Raw)
	}
	if got := contents.Get("0.role").String(); got != "user" {
		t.Errorf("contents[0].role = %q", got)
	}
	if got := contents.Get("1.role").String(); got != "model" {
		t.Errorf("contents[1].role = %q", got)
	}
	if got := contents.Get("2.parts.#").Int(); got != 2 {
		t.Errorf("typed content parts = %d, want 2", got)
	}
}

func TestToGeminiRequestToolRoundTrip(t *testing.T) {
	in := []byte(`{
		"model":"gemini-3-pro",
		"messages":[
			{"role":"user","content":"list the files"},
			{"role":"assistant","tool_calls":[{"id":"call_1","type":"function","function":{"name":"list_dir","arguments":"{\"path\":\".\"}"}}]},
			{"role":"tool","tool_call_id":"call_1","content":"a.go b.go"}
		],
		"tools":[{"type":"function","function":{"name":"list_dir","description":"List a directory","parameters":{"type":"object","properties":{"path":{"type":"string"}}}}}]
	}`)

	out := gjson.ParseBytes(ToGeminiRequest("gemini-3-pro", in))

	call := out.Get("request.contents.1.parts.0.functionCall")
	if call.Get("name").String() != "list_dir" {
		t.Errorf("functionCall = %s", call.Raw)
	}
	if call.Get("args.path").String() != "." {
		t.Errorf("args not decoded from JSON string: %s", call.Raw)
	}

	response := out.Get("request.contents.2.parts.0.functionResponse")
	if response.Get("name").String() != "list_dir" {
		t.Errorf("functionResponse name = %q, want attribution via tool_call_id", response.Get("name").String())
	}
	if response.Get("response.result").String() != "a.go b.go" {
		t.Errorf("functionResponse = %s", response.Raw)
	}

	decl := out.Get("request.tools.0.functionDeclarations.0")
	if decl.Get("name").String() != "list_dir" || !decl.Get("parameters.properties.path").Exists() {
		t.Errorf("declaration = %s", decl.Raw)
	}
}

func TestToGeminiRequestStopSequences(t *testing.T) {
	out := gjson.ParseBytes(ToGeminiRequest("m", []byte(`{"model":"m","stop":"END","messages":[{"role":"user","content":"x"}]}`)))
	if got := out.Get("request.generationConfig.stopSequences.0").String(); got != "END" {
		t.Errorf("stopSequences = %q", got)
	}
}
