package manifest

import (
	"errors"
	"strings"
	"testing"
)

func inputManifest() *Manifest {
	lo, hi := 1.0, 10.0
	return &Manifest{
		Inputs: []Parameter{
			{Name: "componentName", Type: TypeString, Required: true},
			{Name: "count", Type: TypeNumber, Validation: &Constraint{Min: &lo, Max: &hi}},
			{Name: "style", Type: TypeString, Default: "css",
				Validation: &Constraint{Enum: []string{"css", "scss"}}},
			{Name: "options", Type: TypeObject},
			{Name: "files", Type: TypeArray},
			{Name: "dryRun", Type: TypeBoolean},
		},
	}
}

func TestValidateInputs(t *testing.T) {
	m := inputManifest()

	tests := []struct {
		name    string
		inputs  map[string]interface{}
		wantErr error
	}{
		{"all valid", map[string]interface{}{
			"componentName": "Button",
			"count":         3,
			"style":         "scss",
			"options":       map[string]interface{}{"typed": true},
			"files":         []interface{}{"a.ts"},
			"dryRun":        false,
		}, nil},
		{"missing required", map[string]interface{}{}, ErrMissingRequiredInput},
		{"nil required", map[string]interface{}{"componentName": nil}, ErrMissingRequiredInput},
		{"wrong type string", map[string]interface{}{"componentName": 7}, ErrInputTypeMismatch},
		{"wrong type bool", map[string]interface{}{
			"componentName": "Button", "dryRun": "yes",
		}, ErrInputTypeMismatch},
		{"number below min", map[string]interface{}{
			"componentName": "Button", "count": 0,
		}, ErrInputConstraint},
		{"number above max", map[string]interface{}{
			"componentName": "Button", "count": 11.5,
		}, ErrInputConstraint},
		{"enum violation", map[string]interface{}{
			"componentName": "Button", "style": "less",
		}, ErrInputConstraint},
		{"undeclared input passes", map[string]interface{}{
			"componentName": "Button", "extra": struct{}{},
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateInputs(tt.inputs)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateInputs() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateInputs() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputsNamesMissingInput(t *testing.T) {
	m := inputManifest()
	err := m.ValidateInputs(map[string]interface{}{})
	if err == nil {
		t.Fatal("ValidateInputs() error = nil, want missing-input error")
	}
	if !strings.Contains(err.Error(), "componentName") {
		t.Errorf("error %q does not name the missing input", err)
	}
}

func TestValidateInputsFailFast(t *testing.T) {
	// The first missing required input aborts before any type check: a
	// type-invalid optional value must not be reported.
	m := inputManifest()
	err := m.ValidateInputs(map[string]interface{}{"dryRun": "broken"})
	if !errors.Is(err, ErrMissingRequiredInput) {
		t.Errorf("ValidateInputs() error = %v, want %v", err, ErrMissingRequiredInput)
	}
}

func TestValidateInputsPattern(t *testing.T) {
	m := &Manifest{Inputs: []Parameter{
		{Name: "slug", Type: TypeString, Validation: &Constraint{Pattern: `^[a-z-]+$`}},
	}}

	if err := m.ValidateInputs(map[string]interface{}{"slug": "my-plugin"}); err != nil {
		t.Errorf("ValidateInputs() error = %v, want nil", err)
	}
	if err := m.ValidateInputs(map[string]interface{}{"slug": "My Plugin"}); !errors.Is(err, ErrInputConstraint) {
		t.Errorf("ValidateInputs() error = %v, want %v", err, ErrInputConstraint)
	}
}

func TestApplyDefaults(t *testing.T) {
	m := inputManifest()

	in := map[string]interface{}{"componentName": "Button"}
	merged := m.ApplyDefaults(in)

	if merged["style"] != "css" {
		t.Errorf("merged style = %v, want default %q", merged["style"], "css")
	}
	if merged["componentName"] != "Button" {
		t.Errorf("merged componentName = %v", merged["componentName"])
	}
	if _, ok := in["style"]; ok {
		t.Error("ApplyDefaults() modified the caller's map")
	}

	// An explicit value wins over the default.
	merged = m.ApplyDefaults(map[string]interface{}{"componentName": "x", "style": "scss"})
	if merged["style"] != "scss" {
		t.Errorf("merged style = %v, want %q", merged["style"], "scss")
	}
}
