package llm

import "strings"

// Request is the provider-agnostic call surface the agent session builds on
// every loop iteration (§4.3.2 step 3).
type Request struct {
	Provider        string
	Model           string
	Messages        []Message
	Tools           []ToolDefinition
	ToolChoice      *ToolChoice
	ReasoningEffort *string
	ProviderOptions map[string]any
	Timeout         *int // milliseconds; 0/nil means adapter default
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return &ConfigurationError{Message: "request.model is required"}
	}
	if len(r.Messages) == 0 {
		return &ConfigurationError{Message: "request.messages must be non-empty"}
	}
	for _, td := range r.Tools {
		if err := ValidateToolName(td.Name); err != nil {
			return err
		}
	}
	return nil
}

// FinishReason normalizes the provider-specific stop reason.
type FinishReason struct {
	Reason string // stop | tool_calls | length | content_filter | error
	Raw    string
}

// Usage normalizes token accounting across providers; pointer fields are nil
// when a provider does not report that dimension.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens *int
}

// Response is the provider-agnostic result of a single Complete call.
type Response struct {
	Provider string
	Model    string
	Message  Message
	Finish   FinishReason
	Usage    Usage
}

func (r Response) Text() string              { return r.Message.Text() }
func (r Response) ToolCalls() []ToolCallData { return r.Message.ToolCalls() }
