package core

// ToolParamSchema describes one named parameter of a tool.
type ToolParamSchema struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"` // string, integer, number, boolean, array, object
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required"`
	Items       map[string]any `json:"items,omitempty"` // item schema for arrays, e.g. {"type": "string"}
}

// ToolSchema is the catalog entry exposed to processors.
type ToolSchema struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  []ToolParamSchema `json:"parameters"`
}

// JSONSchema renders the parameter list as a JSON-Schema object, the shape
// expected by hosted model APIs.
func (s ToolSchema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	required := make([]string, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Type == "array" {
			items := p.Items
			if items == nil {
				items = map[string]any{}
			}
			prop["items"] = items
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ToolCall is one requested invocation inside a ToolsExecRequest.
type ToolCall struct {
	ToolCallID string         `json:"tool_call_id"`
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
}

// ToolResult is the string outcome of one successful tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     string `json:"result"`
}
