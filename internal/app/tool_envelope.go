package app

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// ToolCall is one tool invocation issued by the voice assistant mid-call.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]string
}

// ToolResult echoes the invocation id so the platform can correlate replies.
type ToolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

// ParseToolCall extracts a ToolCall from any of the envelope shapes the voice
// platform has sent over time:
//
//	{"toolCall": {"id": "...", "function": {"name": "...", "arguments": {...}}}}
//	{"id": "...", "function": {"name": "...", "parameters": {...}}}
//	{"id": "...", "name": "...", "arguments": "{\"query\":\"...\"}"}
//
// Arguments may be an object or a JSON-encoded string. Anything unreadable
// yields an empty argument map rather than an error.
func ParseToolCall(raw []byte) ToolCall {
	root := gjson.ParseBytes(raw)
	if tc := root.Get("toolCall"); tc.IsObject() {
		root = tc
	}
	fn := root.Get("function")

	name := fn.Get("name").String()
	if name == "" {
		name = root.Get("name").String()
	}

	return ToolCall{
		ID:        root.Get("id").String(),
		Name:      strings.TrimSpace(name),
		Arguments: parseArguments(fn.Get("arguments"), fn.Get("parameters"), root.Get("arguments"), root.Get("parameters")),
	}
}

// parseArguments uses the first candidate that decodes to a JSON object.
func parseArguments(candidates ...gjson.Result) map[string]string {
	for _, c := range candidates {
		if c.Type == gjson.String {
			if !gjson.Valid(c.Str) {
				continue
			}
			c = gjson.Parse(c.Str)
		}
		if !c.IsObject() {
			continue
		}
		args := make(map[string]string)
		c.ForEach(func(key, value gjson.Result) bool {
			args[key.String()] = argumentString(value)
			return true
		})
		return args
	}
	return map[string]string{}
}

func argumentString(v gjson.Result) string {
	if v.IsObject() || v.IsArray() {
		return v.Raw
	}
	return strings.TrimSpace(cast.ToString(v.Value()))
}
