// Package tool implements the tool runtime: a catalog of named functions the
// processors may call, schema validation of their arguments, concurrent batch
// execution and the built-in create_sub_agent tool that recursively launches
// child agents.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/internal/util"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Func is the implementation of a tool. Arguments have already been
// validated against the tool's parameters.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Tool is one catalog entry.
//
// When InjectContext is set the ctx handed to Func carries a core.ToolContext
// (agent id, tool call id, bus) retrievable with core.ToolContextFrom.
type Tool struct {
	Name          string
	Description   string
	Parameters    []core.ToolParamSchema
	Func          Func
	InjectContext bool
}

// Schema returns the catalog entry exposed to processors.
func (t Tool) Schema() core.ToolSchema {
	params := make([]core.ToolParamSchema, len(t.Parameters))
	copy(params, t.Parameters)
	return core.ToolSchema{Name: t.Name, Description: t.Description, Parameters: params}
}

// Call validates args and invokes the function. Failures are reported as
// *ToolError:
//
//	*ToolError (returned by Func)  -> forwarded unchanged
//	validation failure             -> *ToolError{Code: VALIDATION_ERROR}
//	other error                    -> *ToolError{Code: EXECUTION_ERROR}
func (t Tool) Call(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := util.ValidateParams(args, t.Parameters); err != nil {
		return "", &ToolError{
			Tool:    t.Name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			Err:     err,
		}
	}

	result, err := t.Func(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return "", toolErr
		}
		return "", &ToolError{
			Tool:    t.Name,
			Message: err.Error(),
			Code:    CodeExecution,
			Err:     err,
		}
	}
	return result, nil
}

// NewFunctionTool constructs a Tool from an explicit parameter list.
//
// Example:
//
//	sum := tool.NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  []core.ToolParamSchema{
//	    {Name: "a", Type: "number", Required: true},
//	    {Name: "b", Type: "number", Required: true},
//	  },
//	  func(_ context.Context, args map[string]any) (string, error) {
//	    return fmt.Sprint(args["a"].(float64) + args["b"].(float64)), nil
//	  },
//	)
func NewFunctionTool(name, description string, params []core.ToolParamSchema, fn Func) Tool {
	return Tool{Name: name, Description: description, Parameters: params, Func: fn}
}

// NewTypedTool derives the parameter list from the struct T (json and
// description tags) and decodes validated arguments into a T before calling
// fn.
//
// Example:
//
//	type weatherArgs struct {
//	  Location string `json:"location" description:"City name"`
//	}
//
//	weather := tool.NewTypedTool("get_weather", "Get the weather",
//	  func(_ context.Context, a weatherArgs) (string, error) {
//	    return "Sunny in " + a.Location, nil
//	  })
func NewTypedTool[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) Tool {
	var zero T
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  util.ParamsFromStruct(zero),
		Func: func(ctx context.Context, args map[string]any) (string, error) {
			raw, err := json.Marshal(args)
			if err != nil {
				return "", err
			}
			var typed T
			if err := json.Unmarshal(raw, &typed); err != nil {
				return "", &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Err: err}
			}
			return fn(ctx, typed)
		},
	}
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
