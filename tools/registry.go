// Package tools holds the process-wide catalog of virtualized built-in
// tools: external Responses tool types (apply_patch_call, shell_call, ...)
// that are not native to the Chat Completions wire format and must be
// projected onto an ordinary function-tool declaration before being sent
// upstream.
package tools

import (
	"encoding/json"
	"fmt"
)

// reservedPrefix names are refused at registration time; they are reserved
// by the host for its own control-plane tools.
const reservedPrefix = "ob_"

// Projector converts between an external tagged-variant call item's fields
// and the flat JSON object sent to the upstream function-tool, and back.
type Projector interface {
	// ToArguments projects an external call's fields into the upstream
	// function's JSON arguments.
	ToArguments(callFields map[string]any) (json.RawMessage, error)
	// FromArguments expands the upstream function's JSON arguments back
	// into the external call item's fields.
	FromArguments(arguments json.RawMessage) (map[string]any, error)
}

// Spec describes one virtualized built-in tool.
type Spec struct {
	// Name is the canonical, unprefixed tool name (e.g. "apply_patch").
	// It doubles as the upstream function name.
	Name string
	// ExternalType is the Responses input-item type this built-in
	// virtualizes (e.g. "apply_patch_call").
	ExternalType string
	// Description is sent upstream as the function-tool description.
	Description string
	// Parameters is the JSON Schema object sent upstream as the
	// function-tool's parameters.
	Parameters json.RawMessage
	// Project converts between the external item's fields and the
	// upstream function arguments. A nil Project is treated as the
	// identity projection (fields passed through as-is).
	Project Projector
}

// Registry is an immutable, read-only-after-init catalog of built-in tools.
// It is safe for concurrent use by any number of goroutines without
// synchronization because it is never mutated after New returns.
type Registry struct {
	byName         map[string]Spec
	byExternalType map[string]Spec
}

// New builds a Registry from specs, rejecting reserved-prefix or duplicate
// names so a misconfigured catalog fails at startup rather than at request
// time.
func New(specs ...Spec) (*Registry, error) {
	r := &Registry{
		byName:         make(map[string]Spec, len(specs)),
		byExternalType: make(map[string]Spec, len(specs)),
	}
	for _, s := range specs {
		if err := r.register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(s Spec) error {
	if s.Name == "" {
		return fmt.Errorf("tools: spec has empty name")
	}
	if len(s.Name) >= len(reservedPrefix) && s.Name[:len(reservedPrefix)] == reservedPrefix {
		return fmt.Errorf("tools: name %q uses reserved prefix %q", s.Name, reservedPrefix)
	}
	if err := ValidateParameters(s.Name, s.Parameters); err != nil {
		return err
	}
	if _, exists := r.byName[s.Name]; exists {
		return fmt.Errorf("tools: duplicate name %q", s.Name)
	}
	if s.ExternalType != "" {
		if _, exists := r.byExternalType[s.ExternalType]; exists {
			return fmt.Errorf("tools: duplicate external type %q", s.ExternalType)
		}
		r.byExternalType[s.ExternalType] = s
	}
	r.byName[s.Name] = s
	return nil
}

// Lookup resolves a built-in by its canonical/upstream name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// LookupExternalType resolves a built-in by its external Responses item type.
func (r *Registry) LookupExternalType(externalType string) (Spec, bool) {
	s, ok := r.byExternalType[externalType]
	return s, ok
}

// IsReservedName reports whether name uses the host-reserved prefix.
func IsReservedName(name string) bool {
	return len(name) >= len(reservedPrefix) && name[:len(reservedPrefix)] == reservedPrefix
}

// All returns every registered spec in an unspecified order.
func (r *Registry) All() []Spec {
	out := make([]Spec, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	return out
}
