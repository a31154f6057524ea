package util

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hupe1980/agentlauncher/core"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ParamsFromStruct derives a parameter list from a struct using reflection.
// Field names come from the json tag, descriptions from the description
// tag. Fields without omitempty that are not pointers are required.
func ParamsFromStruct(v any) []core.ToolParamSchema {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	params := make([]core.ToolParamSchema, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		p := core.ToolParamSchema{
			Name:        name,
			Type:        jsonType(field.Type),
			Description: field.Tag.Get("description"),
			Required:    !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr,
		}
		if p.Type == "array" {
			p.Items = map[string]any{"type": jsonType(elemType(field.Type))}
		}
		params = append(params, p)
	}
	return params
}

// ValidateParams validates args against a parameter list. Unknown arguments
// are allowed.
func ValidateParams(args map[string]any, params []core.ToolParamSchema) error {
	for _, p := range params {
		value, exists := args[p.Name]
		if !exists {
			if p.Required {
				return &ValidationError{Field: p.Name, Message: "required field is missing"}
			}
			continue
		}
		if !isValidType(value, p.Type) {
			return &ValidationError{
				Field:   p.Name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", p.Type, value),
			}
		}
		if p.Type != "array" || value == nil {
			continue
		}
		itemType, _ := p.Items["type"].(string)
		for i, item := range value.([]any) {
			if !isValidType(item, itemType) {
				return &ValidationError{
					Field:   fmt.Sprintf("%s[%d]", p.Name, i),
					Value:   item,
					Message: fmt.Sprintf("expected item type %s, got %T", itemType, item),
				}
			}
		}
	}
	return nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func elemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Elem()
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isValidType checks a decoded JSON value against a JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // encoding/json decodes every number as float64
			return v == float64(int64(v))
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
