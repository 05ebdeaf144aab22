package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Role identifies the speaker of a Message in the unified wire format.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind discriminates the variant carried by a ContentPart.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentToolCall    ContentKind = "tool_call"
	ContentToolResult  ContentKind = "tool_result"
	ContentThinking    ContentKind = "thinking"
	ContentRedThinking ContentKind = "redacted_thinking"
)

// ContentPart is one normalized content item. Exactly one of the pointer
// fields is populated, selected by Kind — this mirrors how each provider
// adapter discriminates content blocks (OpenAI tool_calls, Anthropic content
// blocks, Gemini parts) without committing to any one provider's shape.
type ContentPart struct {
	Kind ContentKind `json:"kind"`

	Text string `json:"text,omitempty"`

	ToolCall   *ToolCallData `json:"tool_call,omitempty"`
	ToolResult *ToolResult   `json:"tool_result,omitempty"`
	Thinking   *ThinkingPart `json:"thinking,omitempty"`
}

type ThinkingPart struct {
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ToolCallData is a normalized tool invocation requested by the model.
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is a normalized tool outcome sent back to the model.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Content    any    `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is one normalized turn in a request's conversation history.
type Message struct {
	Role       Role          `json:"role"`
	Name       string        `json:"name,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Content    []ContentPart `json:"content"`
}

// Text concatenates all text-kind content parts, matching what a caller means
// by "the assistant's reply text" regardless of how many text parts a
// provider split the reply into.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Kind == ContentText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls extracts all tool-call content parts in order.
func (m Message) ToolCalls() []ToolCallData {
	var out []ToolCallData
	for _, p := range m.Content {
		if p.Kind == ContentToolCall && p.ToolCall != nil {
			out = append(out, *p.ToolCall)
		}
	}
	return out
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{{Kind: ContentText, Text: text}}}
}

// ToolResultNamed builds the tool-role message sent back to the model after
// dispatching a call; content is always a string since truncation (§4.3.4)
// already produced the model-visible text by the time this is called.
func ToolResultNamed(toolCallID, name, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		ToolCallID: toolCallID,
		Content: []ContentPart{{
			Kind: ContentToolResult,
			ToolResult: &ToolResult{
				ToolCallID: toolCallID,
				Name:       name,
				Content:    content,
				IsError:    isError,
			},
		}},
	}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice controls tool-invocation policy for a request.
type ToolChoice struct {
	Mode string `json:"mode"` // auto | none | required | named
	Name string `json:"name,omitempty"`
}

var toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateToolName enforces the naming constraint shared by every provider's
// function-calling surface (alnum/underscore, bounded length, not starting
// with a digit).
func ValidateToolName(name string) error {
	if !toolNamePattern.MatchString(name) {
		return &ValidationError{Message: fmt.Sprintf("invalid tool name %q", name)}
	}
	return nil
}
