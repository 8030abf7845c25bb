package resource

import (
	"fmt"
	"strconv"
	"strings"
)

// AskMarker is the sentinel value meaning "the remote service demands
// operator input at launch time if not already set on the template".
const AskMarker = "ASK"

// FieldType is the declared value type of a field.
type FieldType int

const (
	String FieldType = iota
	Int
	Bool
	Choice
	// Reference points at another registered resource; values are
	// either a numeric primary key or a name resolved remotely.
	Reference
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Choice:
		return "choice"
	case Reference:
		return "reference"
	}
	return "unknown"
}

// Field describes one parameter of a resource.
type Field struct {
	Name     string
	Type     FieldType
	Choices  []string // Choice only
	Ref      string   // Reference only: target resource name
	Required bool
	Secret   bool // prompted without echo, never shown in output
	Default  string
	Help     string
}

// Option returns the field name as a CLI option string
// (e.g. "--field-name").
func (f Field) Option() string {
	return "--" + strings.ReplaceAll(f.Name, "_", "-")
}

// ValidationError reports a supplied value that fails the field's
// declared type. Values failing validation are never sent remotely.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

// Validate checks a supplied value against the field type. The ASK
// marker is always acceptable; it is resolved before dispatch.
func (f Field) Validate(value string) error {
	if value == AskMarker {
		return nil
	}
	switch f.Type {
	case Int:
		if _, err := strconv.Atoi(value); err != nil {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q is not an integer", value)}
		}
	case Bool:
		if _, err := strconv.ParseBool(value); err != nil {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q is not a boolean", value)}
		}
	case Choice:
		for _, c := range f.Choices {
			if value == c {
				return nil
			}
		}
		return &ValidationError{
			Field:  f.Name,
			Reason: fmt.Sprintf("%q is not one of: %s", value, strings.Join(f.Choices, ", ")),
		}
	case Reference:
		// Numeric primary keys and names are both fine here; name
		// resolution happens at dispatch time.
	}
	return nil
}
