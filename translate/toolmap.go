// Package translate implements the request and response translators that
// bridge the Responses wire shapes to and from Chat Completions, including
// the per-turn ToolMap that preserves tool-loop identity across the two
// call conventions.
package translate

import "goa.design/responses-bridge/tools"

// ToolMap is a per-turn bijection between a Responses external tool type
// (e.g. "shell_call") and the function name sent upstream. Plain
// user-declared function names are recorded too, with no external type, so
// a collision with a built-in is caught. It does not record the tools'
// parameter schemas.
type ToolMap struct {
	externalToUpstream map[string]string
	upstreamToExternal map[string]string
	registry           *tools.Registry
}

// NewToolMap constructs an empty ToolMap backed by reg for built-in lookups.
func NewToolMap(reg *tools.Registry) *ToolMap {
	return &ToolMap{
		externalToUpstream: map[string]string{},
		upstreamToExternal: map[string]string{},
		registry:           reg,
	}
}

// AddBuiltin records a virtualized built-in tool's bijection, failing if the
// upstream name is already taken by a distinct external type.
func (m *ToolMap) AddBuiltin(externalType, upstreamName string) error {
	if existing, ok := m.upstreamToExternal[upstreamName]; ok && existing != externalType {
		return &collisionError{name: upstreamName}
	}
	m.externalToUpstream[externalType] = upstreamName
	m.upstreamToExternal[upstreamName] = externalType
	return nil
}

// ReserveFunctionName records a plain user-declared function-tool name so
// later collision checks see it, without an external-type mapping.
func (m *ToolMap) ReserveFunctionName(name string) error {
	if existing, ok := m.upstreamToExternal[name]; ok && existing != "" {
		return &collisionError{name: name}
	}
	m.upstreamToExternal[name] = ""
	return nil
}

// UpstreamName resolves an external call-item type to its upstream
// function name, reporting false when the type was never added through
// AddBuiltin (plain function_call items keep their own name).
func (m *ToolMap) UpstreamName(externalType string) (string, bool) {
	name, ok := m.externalToUpstream[externalType]
	return name, ok
}

// ExternalType resolves an upstream function name back to its virtualized
// external type, reporting false when the name is a plain function tool.
func (m *ToolMap) ExternalType(upstreamName string) (string, bool) {
	externalType, ok := m.upstreamToExternal[upstreamName]
	return externalType, ok && externalType != ""
}

// Registry returns the built-in catalog this map was constructed against.
func (m *ToolMap) Registry() *tools.Registry { return m.registry }

// Entry is one upstream-name reservation, with ExternalType empty for a
// plain user-declared function tool.
type Entry struct {
	ExternalType string
	UpstreamName string
}

// Entries returns every reservation made on this map, built-in and plain,
// so a caller can persist and later restore the full bijection.
func (m *ToolMap) Entries() []Entry {
	out := make([]Entry, 0, len(m.upstreamToExternal))
	for upstreamName, externalType := range m.upstreamToExternal {
		out = append(out, Entry{ExternalType: externalType, UpstreamName: upstreamName})
	}
	return out
}

type collisionError struct{ name string }

func (e *collisionError) Error() string {
	return "translate: tool name collision: " + e.name
}
