package tools

import "encoding/json"

// identityProjector passes external call fields through unchanged in both
// directions; it is used by built-ins whose external item shape already
// matches a flat JSON object.
type identityProjector struct{}

func (identityProjector) ToArguments(fields map[string]any) (json.RawMessage, error) {
	return json.Marshal(fields)
}

func (identityProjector) FromArguments(args json.RawMessage) (map[string]any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Builtins returns the default catalog of virtualized built-in tools the
// bridge ships with. Callers pass this to New, optionally extended with
// deployment-specific specs.
func Builtins() []Spec {
	return []Spec{
		{
			Name:         "apply_patch",
			ExternalType: "apply_patch_call",
			Description:  "Apply a unified diff patch to the workspace.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"input": {"type": "string"}},
				"required": ["input"],
				"additionalProperties": false
			}`),
			Project: identityProjector{},
		},
		{
			Name:         "shell",
			ExternalType: "shell_call",
			Description:  "Run a shell command and return its output.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"cmd": {"type": "string"}},
				"required": ["cmd"],
				"additionalProperties": false
			}`),
			Project: identityProjector{},
		},
		{
			Name:         "local_shell",
			ExternalType: "local_shell_call",
			Description:  "Run a command on the local shell and return its output.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {"command": {"type": "array", "items": {"type": "string"}}},
				"required": ["command"],
				"additionalProperties": false
			}`),
			Project: identityProjector{},
		},
	}
}
