// Package resource is the static catalog of remote resource types the
// CLI can drive: each Definition names its controller endpoint, its
// ordered field schema, and the operations the dispatcher may execute
// for it. New resource types are added by registering data, not by
// adding behavior.
package resource

import (
	"fmt"
	"sort"
)

// Operation names one CRUD-like action on a resource.
type Operation string

const (
	OpList    Operation = "list"
	OpGet     Operation = "get"
	OpCreate  Operation = "create"
	OpModify  Operation = "modify"
	OpDelete  Operation = "delete"
	OpLaunch  Operation = "launch"
	OpMonitor Operation = "monitor"
	OpCancel  Operation = "cancel"
)

// Definition describes one resource type. Definitions are immutable
// after registration.
type Definition struct {
	Name       string
	Label      string
	Endpoint   string // relative to the API prefix, e.g. "job_templates/"
	Fields     []Field
	Operations []Operation
}

// Supports reports whether op is allowed for this resource.
func (d *Definition) Supports(op Operation) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Field returns the named field definition.
func (d *Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// UnknownResourceError: a lookup for an unregistered resource name.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource type: %s", e.Name)
}

// UnsupportedOperationError: an operation the resource does not allow.
// Raised before any network call.
type UnsupportedOperationError struct {
	Resource  string
	Operation Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("resource %s does not support %s", e.Resource, e.Operation)
}

var registry = map[string]*Definition{}

// register adds a definition to the process-wide catalog. It is called
// from init only; definitions never change afterward.
func register(d *Definition) {
	if _, dup := registry[d.Name]; dup {
		panic("duplicate resource registration: " + d.Name)
	}
	registry[d.Name] = d
}

// Lookup returns the definition for a resource name.
func Lookup(name string) (*Definition, error) {
	d, ok := registry[name]
	if !ok {
		return nil, &UnknownResourceError{Name: name}
	}
	return d, nil
}

// SupportedOperations returns the operations allowed for a resource.
func SupportedOperations(name string) ([]Operation, error) {
	d, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	ops := make([]Operation, len(d.Operations))
	copy(ops, d.Operations)
	return ops, nil
}

// Names returns every registered resource name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
