package tools_test

import (
	"testing"

	"goa.design/responses-bridge/tools"
)

func TestValidateParametersAcceptsBuiltinSchemas(t *testing.T) {
	for _, spec := range tools.Builtins() {
		if err := tools.ValidateParameters(spec.Name, spec.Parameters); err != nil {
			t.Errorf("%s: %v", spec.Name, err)
		}
	}
}

func TestValidateParametersRejectsMalformedJSON(t *testing.T) {
	if err := tools.ValidateParameters("broken", []byte(`{"type":`)); err == nil {
		t.Fatal("expected error for malformed schema JSON")
	}
}

func TestValidateParametersEmptyIsOK(t *testing.T) {
	if err := tools.ValidateParameters("none", nil); err != nil {
		t.Fatalf("empty schema should be valid, got %v", err)
	}
}
