package llm

import "testing"

func TestMessage_Text_ConcatenatesOnlyTextParts(t *testing.T) {
	m := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			{Kind: ContentText, Text: "Hello, "},
			{Kind: ContentToolCall, ToolCall: &ToolCallData{ID: "1", Name: "glob"}},
			{Kind: ContentText, Text: "world"},
		},
	}
	if got := m.Text(); got != "Hello, world" {
		t.Fatalf("Text() = %q want %q", got, "Hello, world")
	}
}

func TestMessage_ToolCalls_ExtractsInOrder(t *testing.T) {
	m := Message{
		Content: []ContentPart{
			{Kind: ContentText, Text: "thinking out loud"},
			{Kind: ContentToolCall, ToolCall: &ToolCallData{ID: "1", Name: "read"}},
			{Kind: ContentToolCall, ToolCall: &ToolCallData{ID: "2", Name: "write"}},
		},
	}
	calls := m.ToolCalls()
	if len(calls) != 2 || calls[0].Name != "read" || calls[1].Name != "write" {
		t.Fatalf("ToolCalls() = %+v", calls)
	}
}

func TestUserSystemAssistant_ConstructSingleTextContentPart(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    Message
		role Role
	}{
		{"user", User("hi"), RoleUser},
		{"system", System("be helpful"), RoleSystem},
		{"assistant", Assistant("ok"), RoleAssistant},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if tc.m.Role != tc.role {
				t.Fatalf("role = %q want %q", tc.m.Role, tc.role)
			}
			if len(tc.m.Content) != 1 || tc.m.Content[0].Kind != ContentText {
				t.Fatalf("content = %+v", tc.m.Content)
			}
		})
	}
}

func TestToolResultNamed_BuildsToolRoleMessage(t *testing.T) {
	m := ToolResultNamed("call_1", "glob", "no matches", true)
	if m.Role != RoleTool || m.ToolCallID != "call_1" {
		t.Fatalf("got role=%q tool_call_id=%q", m.Role, m.ToolCallID)
	}
	if len(m.Content) != 1 || m.Content[0].Kind != ContentToolResult {
		t.Fatalf("content = %+v", m.Content)
	}
	tr := m.Content[0].ToolResult
	if tr == nil || tr.Content != "no matches" || !tr.IsError {
		t.Fatalf("tool result = %+v", tr)
	}
}

func TestValidateToolName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"read_file", true},
		{"_private", true},
		{"a", true},
		{"", false},
		{"9start_with_digit", false},
		{"has space", false},
		{"has-dash", false},
	}
	for _, tc := range cases {
		err := ValidateToolName(tc.name)
		if tc.ok && err != nil {
			t.Fatalf("ValidateToolName(%q): unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ValidateToolName(%q): expected error", tc.name)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	if err := (Request{}).Validate(); err == nil {
		t.Fatalf("expected error for missing model")
	}
	if err := (Request{Model: "m"}).Validate(); err == nil {
		t.Fatalf("expected error for empty messages")
	}
	if err := (Request{Model: "m", Messages: []Message{User("hi")}, Tools: []ToolDefinition{{Name: "bad name"}}}).Validate(); err == nil {
		t.Fatalf("expected error for invalid tool name")
	}
	if err := (Request{Model: "m", Messages: []Message{User("hi")}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
