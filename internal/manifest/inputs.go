package manifest

import (
	"errors"
	"fmt"
	"regexp"
)

// Input validation errors.
var (
	ErrMissingRequiredInput = errors.New("missing required input")
	ErrInputTypeMismatch    = errors.New("input type mismatch")
	ErrInputConstraint      = errors.New("input constraint violation")
)

// ValidateInputs checks the supplied input map against the manifest's
// declared inputs.
//
// The required-input check runs first and aborts on the first missing
// input; no partial validation report is produced. Type and constraint
// checks apply only to values whose parameter is declared in the
// manifest - undeclared extras pass through untouched.
func (m *Manifest) ValidateInputs(inputs map[string]interface{}) error {
	for _, p := range m.Inputs {
		if !p.Required {
			continue
		}
		if v, ok := inputs[p.Name]; !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingRequiredInput, p.Name)
		}
	}

	for _, p := range m.Inputs {
		v, ok := inputs[p.Name]
		if !ok || v == nil {
			continue
		}
		if err := checkType(v, p.Type); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInputTypeMismatch, p.Name, err)
		}
		if p.Validation != nil {
			if err := checkConstraint(v, p.Validation); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInputConstraint, p.Name, err)
			}
		}
	}

	return nil
}

// ApplyDefaults returns a copy of inputs with declared defaults filled
// in for absent parameters. The caller's map is not modified.
func (m *Manifest) ApplyDefaults(inputs map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(inputs)+len(m.Inputs))
	for k, v := range inputs {
		merged[k] = v
	}
	for _, p := range m.Inputs {
		if _, ok := merged[p.Name]; !ok && p.Default != nil {
			merged[p.Name] = p.Default
		}
	}
	return merged
}

// checkType verifies a value structurally matches a parameter type.
// Numbers accept any Go numeric type since JSON decoding and the VM
// bridges produce different widths.
func checkType(v interface{}, t ParamType) error {
	switch t {
	case TypeString, TypeFile:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected %s, got %T", t, v)
		}
	case TypeNumber:
		if !isNumber(v) {
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case TypeObject:
		if _, ok := v.(map[string]interface{}); !ok {
			return fmt.Errorf("expected object, got %T", v)
		}
	case TypeArray:
		if _, ok := v.([]interface{}); !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
	default:
		return fmt.Errorf("unknown type %q", t)
	}
	return nil
}

// checkConstraint applies min/max/pattern/enum checks to a value.
func checkConstraint(v interface{}, c *Constraint) error {
	switch val := v.(type) {
	case string:
		if c.Min != nil && float64(len(val)) < *c.Min {
			return fmt.Errorf("length %d below minimum %v", len(val), *c.Min)
		}
		if c.Max != nil && float64(len(val)) > *c.Max {
			return fmt.Errorf("length %d above maximum %v", len(val), *c.Max)
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern: %v", err)
			}
			if !re.MatchString(val) {
				return fmt.Errorf("value does not match pattern %q", c.Pattern)
			}
		}
		if len(c.Enum) > 0 {
			for _, allowed := range c.Enum {
				if val == allowed {
					return nil
				}
			}
			return fmt.Errorf("value %q not in enum %v", val, c.Enum)
		}
	case []interface{}:
		if c.Min != nil && float64(len(val)) < *c.Min {
			return fmt.Errorf("length %d below minimum %v", len(val), *c.Min)
		}
		if c.Max != nil && float64(len(val)) > *c.Max {
			return fmt.Errorf("length %d above maximum %v", len(val), *c.Max)
		}
	default:
		if isNumber(v) {
			f := toFloat(v)
			if c.Min != nil && f < *c.Min {
				return fmt.Errorf("value %v below minimum %v", f, *c.Min)
			}
			if c.Max != nil && f > *c.Max {
				return fmt.Errorf("value %v above maximum %v", f, *c.Max)
			}
		}
	}
	return nil
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
