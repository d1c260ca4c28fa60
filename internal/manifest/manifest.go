package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Runtime selects the isolation backend for a plugin.
type Runtime string

// Known runtime values. Wasm and Python are accepted by validation but
// rejected at backend selection time; declaring them is not a schema
// error, executing them is.
const (
	RuntimeLua        Runtime = "lua"
	RuntimeJavaScript Runtime = "javascript"
	RuntimeContainer  Runtime = "container"
	RuntimeWasm       Runtime = "wasm"
	RuntimePython     Runtime = "python"
)

// Execution limits.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 5 * time.Minute

	DefaultMemoryLimitMB = 128
)

// Manifest is the immutable, versioned description of a plugin.
type Manifest struct {
	// Identity
	Name        string `json:"name"`        // Unique slug (e.g. "component-gen")
	Version     string `json:"version"`     // Semver (e.g. "1.2.0")
	DisplayName string `json:"displayName"` // Human-readable name
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org
	License     string `json:"license"`     // SPDX license identifier

	// Matching metadata
	Category     string   `json:"category"`     // Free-text category used by the router
	Tags         []string `json:"tags"`         // Free-text tags used by the router
	Capabilities []string `json:"capabilities"` // Declared capabilities (non-empty)

	// Typed interface
	Inputs  []Parameter `json:"inputs"`
	Outputs []Parameter `json:"outputs"`

	// Runtime selection
	Runtime        Runtime `json:"runtime"`
	EntryPoint     string  `json:"entryPoint"`     // Relative path to entry code (VM backends)
	Image          string  `json:"image"`          // Container image (container backend)
	TimeoutSeconds int     `json:"timeoutSeconds"` // 0 = default (30s), capped at 5 min
	MemoryLimitMB  int     `json:"memoryLimitMB"`  // Container memory ceiling, default 128
	CPUShares      int     `json:"cpuShares"`      // Container CPU share cap, 0 = runtime default

	// Permission grant. Absence of a grant is deny.
	Permissions PermissionSet `json:"permissions"`

	// Lifecycle hooks (optional function names in the entry code).
	Hooks Hooks `json:"hooks"`

	// Events this plugin handles via dispatch.
	Events []string `json:"events"`
}

// Parameter describes one typed input or output.
type Parameter struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default"`
	Validation  *Constraint `json:"validation,omitempty"`
}

// ParamType is the structural type tag of a parameter value.
type ParamType string

// Parameter types.
const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
	TypeFile    ParamType = "file"
)

// Constraint narrows the accepted values of a parameter.
type Constraint struct {
	Min     *float64 `json:"min,omitempty"`     // Minimum value (number) or length (string/array)
	Max     *float64 `json:"max,omitempty"`     // Maximum value (number) or length (string/array)
	Pattern string   `json:"pattern,omitempty"` // Regular expression (string inputs)
	Enum    []string `json:"enum,omitempty"`    // Allowed values (string inputs)
}

// Hooks are optional entry-point paths run on lifecycle transitions.
// Empty means no hook.
type Hooks struct {
	Install   string `json:"install,omitempty"`
	Uninstall string `json:"uninstall,omitempty"`
	Enable    string `json:"enable,omitempty"`
	Disable   string `json:"disable,omitempty"`
	Update    string `json:"update,omitempty"`
}

// Validation errors.
var (
	ErrMissingName         = errors.New("manifest: name is required")
	ErrInvalidName         = errors.New("manifest: name must be a lowercase slug")
	ErrMissingVersion      = errors.New("manifest: version is required")
	ErrInvalidVersion      = errors.New("manifest: version must be valid semver")
	ErrNoCapabilities      = errors.New("manifest: at least one capability is required")
	ErrMissingRuntime      = errors.New("manifest: runtime is required")
	ErrUnknownRuntime      = errors.New("manifest: unknown runtime")
	ErrMissingEntryPoint   = errors.New("manifest: entryPoint is required for VM runtimes")
	ErrMissingImage        = errors.New("manifest: image is required for the container runtime")
	ErrInvalidTimeout      = errors.New("manifest: timeoutSeconds exceeds the 5 minute maximum")
	ErrInvalidParamType    = errors.New("manifest: invalid parameter type")
	ErrDuplicateParam      = errors.New("manifest: duplicate parameter name")
	ErrMissingParamName    = errors.New("manifest: parameter name is required")
	ErrInvalidConstraint   = errors.New("manifest: invalid parameter constraint")
	ErrDefaultTypeMismatch = errors.New("manifest: default value does not match parameter type")
)

// namePattern validates plugin slugs.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// validParamTypes are the allowed parameter type tags.
var validParamTypes = map[ParamType]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeObject:  true,
	TypeArray:   true,
	TypeFile:    true,
}

// validRuntimes are the runtime names the schema accepts.
var validRuntimes = map[Runtime]bool{
	RuntimeLua:        true,
	RuntimeJavaScript: true,
	RuntimeContainer:  true,
	RuntimeWasm:       true,
	RuntimePython:     true,
}

// Parse unmarshals and validates a manifest from raw JSON. Invalid
// manifests never reach the loader; this is the single entry point that
// produces a Manifest from untrusted bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: failed to parse: %w", err)
	}

	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.TimeoutSeconds == 0 {
		m.TimeoutSeconds = int(DefaultTimeout / time.Second)
	}
	if m.MemoryLimitMB == 0 {
		m.MemoryLimitMB = DefaultMemoryLimitMB
	}
}

// Validate checks that the manifest is structurally valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if m.Version == "" {
		return ErrMissingVersion
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if len(m.Capabilities) == 0 {
		return ErrNoCapabilities
	}

	if m.Runtime == "" {
		return ErrMissingRuntime
	}
	if !validRuntimes[m.Runtime] {
		return fmt.Errorf("%w: %s", ErrUnknownRuntime, m.Runtime)
	}

	switch m.Runtime {
	case RuntimeLua, RuntimeJavaScript:
		if m.EntryPoint == "" {
			return fmt.Errorf("%w (runtime %s)", ErrMissingEntryPoint, m.Runtime)
		}
	case RuntimeContainer:
		if m.Image == "" {
			return ErrMissingImage
		}
	}

	if time.Duration(m.TimeoutSeconds)*time.Second > MaxTimeout {
		return fmt.Errorf("%w: %ds", ErrInvalidTimeout, m.TimeoutSeconds)
	}

	if err := validateParams("inputs", m.Inputs); err != nil {
		return err
	}
	if err := validateParams("outputs", m.Outputs); err != nil {
		return err
	}

	if err := m.Permissions.validate(); err != nil {
		return err
	}

	return nil
}

// validateParams checks a parameter list for structural validity.
func validateParams(section string, params []Parameter) error {
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		if p.Name == "" {
			return fmt.Errorf("%w: %s[%d]", ErrMissingParamName, section, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateParam, section, p.Name)
		}
		seen[p.Name] = true

		if !validParamTypes[p.Type] {
			return fmt.Errorf("%w: %s.%s has type %q", ErrInvalidParamType, section, p.Name, p.Type)
		}

		if p.Default != nil {
			if err := checkType(p.Default, p.Type); err != nil {
				return fmt.Errorf("%w: %s.%s", ErrDefaultTypeMismatch, section, p.Name)
			}
		}

		if c := p.Validation; c != nil {
			if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
				return fmt.Errorf("%w: %s.%s min > max", ErrInvalidConstraint, section, p.Name)
			}
			if c.Pattern != "" {
				if _, err := regexp.Compile(c.Pattern); err != nil {
					return fmt.Errorf("%w: %s.%s pattern: %v", ErrInvalidConstraint, section, p.Name, err)
				}
			}
		}
	}
	return nil
}

// Timeout returns the effective execution deadline for this plugin.
func (m *Manifest) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	d := time.Duration(m.TimeoutSeconds) * time.Second
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// Input returns the declared input parameter with the given name.
func (m *Manifest) Input(name string) (Parameter, bool) {
	for _, p := range m.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Output returns the declared output parameter with the given name.
func (m *Manifest) Output(name string) (Parameter, bool) {
	for _, p := range m.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// HasTag reports whether the manifest declares the tag.
func (m *Manifest) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HandlesEvent reports whether the manifest declares handling of the
// event type.
func (m *Manifest) HandlesEvent(eventType string) bool {
	for _, e := range m.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// String returns a short human-readable description.
func (m *Manifest) String() string {
	display := m.DisplayName
	if display == "" {
		display = m.Name
	}
	return fmt.Sprintf("%s v%s", display, m.Version)
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m

	clone.Tags = append([]string(nil), m.Tags...)
	clone.Capabilities = append([]string(nil), m.Capabilities...)
	clone.Events = append([]string(nil), m.Events...)
	clone.Inputs = cloneParams(m.Inputs)
	clone.Outputs = cloneParams(m.Outputs)
	clone.Permissions = m.Permissions.Clone()

	return &clone
}

func cloneParams(params []Parameter) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, len(params))
	copy(out, params)
	for i := range out {
		if c := out[i].Validation; c != nil {
			cc := *c
			cc.Enum = append([]string(nil), c.Enum...)
			out[i].Validation = &cc
		}
	}
	return out
}
