package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/match"
)

// PermissionSet is a plugin's declared permission grant. The zero value
// denies everything.
type PermissionSet struct {
	Filesystem FilesystemGrant `json:"filesystem"`
	Network    NetworkGrant    `json:"network"`
	APIs       []string        `json:"apis"`      // Named external APIs (exact match)
	Databases  []string        `json:"databases"` // Named databases (exact match)
	Secrets    []string        `json:"secrets"`   // Named secrets (exact match)
	AI         []string        `json:"ai"`        // AI operations: "generate", "analyze"
}

// FilesystemGrant holds glob patterns per filesystem action. A pattern
// list being empty denies that action entirely.
type FilesystemGrant struct {
	Read    []string `json:"read"`
	Write   []string `json:"write"`
	Delete  []string `json:"delete"`
	Execute []string `json:"execute"`
}

// NetworkGrant holds glob patterns for outbound network targets.
type NetworkGrant struct {
	HTTP []string `json:"http"` // Allowed host/URL patterns
}

// OpType classifies the target of a permission check.
type OpType string

// Operation target types.
const (
	OpFile     OpType = "file"
	OpNetwork  OpType = "network"
	OpAPI      OpType = "api"
	OpDatabase OpType = "database"
	OpSecret   OpType = "secret"
	OpAI       OpType = "ai"
)

// Action is the operation being attempted on the target.
type Action string

// Operation actions.
const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
	ActionAccess  Action = "access"
)

// Operation is one concrete permission check: "may this plugin perform
// Action on Resource of kind Type".
type Operation struct {
	Type     OpType
	Action   Action
	Resource string
}

// String formats the operation as a permission string. This exact string
// appears in denial errors and audit logs.
func (op Operation) String() string {
	return fmt.Sprintf("%s:%s:%s", op.Type, op.Action, op.Resource)
}

// ErrUnknownAIOperation is returned for AI grants outside the known set.
var ErrUnknownAIOperation = errors.New("manifest: unknown ai permission")

// validAIOps are the recognized AI permission names.
var validAIOps = map[string]bool{
	"generate": true,
	"analyze":  true,
}

// validate checks grant contents at manifest-validation time.
func (p *PermissionSet) validate() error {
	for _, op := range p.AI {
		if !validAIOps[op] {
			return fmt.Errorf("%w: %s", ErrUnknownAIOperation, op)
		}
	}
	return nil
}

// Allows reports whether the grant authorizes the operation.
//
// Filesystem and network checks are pattern matches: the resource is
// authorized iff at least one grant pattern matches ('*' any run of
// characters, '?' a single character, anchored at both ends). API,
// database, secret, and AI checks are exact-name membership.
func (p *PermissionSet) Allows(op Operation) bool {
	switch op.Type {
	case OpFile:
		return matchAny(p.filesystemPatterns(op.Action), op.Resource)
	case OpNetwork:
		return matchAny(p.Network.HTTP, op.Resource)
	case OpAPI:
		return contains(p.APIs, op.Resource)
	case OpDatabase:
		return contains(p.Databases, op.Resource)
	case OpSecret:
		return contains(p.Secrets, op.Resource)
	case OpAI:
		return contains(p.AI, op.Resource)
	default:
		return false
	}
}

// filesystemPatterns returns the pattern list governing a filesystem
// action. Unknown actions get no patterns, which denies.
func (p *PermissionSet) filesystemPatterns(action Action) []string {
	switch action {
	case ActionRead:
		return p.Filesystem.Read
	case ActionWrite:
		return p.Filesystem.Write
	case ActionDelete:
		return p.Filesystem.Delete
	case ActionExecute:
		return p.Filesystem.Execute
	default:
		return nil
	}
}

// matchAny reports whether any glob pattern matches the resource.
// "**/" in a pattern matches zero or more path segments, so
// "src/**/*.ts" authorizes "src/app.ts" as well as "src/a/b/c.ts".
func matchAny(patterns []string, resource string) bool {
	for _, pattern := range patterns {
		for _, variant := range globstarVariants(pattern) {
			if match.Match(resource, variant) {
				return true
			}
		}
	}
	return false
}

// globstarVariants expands each "**/" in a pattern to its elided form
// as well, covering the zero-segment case the glob matcher's literal
// "/" would otherwise require.
func globstarVariants(pattern string) []string {
	idx := strings.Index(pattern, "**/")
	if idx < 0 {
		return []string{pattern}
	}
	head := pattern[:idx]
	var variants []string
	for _, tail := range globstarVariants(pattern[idx+len("**/"):]) {
		variants = append(variants, head+"**/"+tail, head+tail)
	}
	return variants
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the grant denies everything.
func (p *PermissionSet) IsEmpty() bool {
	return len(p.Filesystem.Read) == 0 &&
		len(p.Filesystem.Write) == 0 &&
		len(p.Filesystem.Delete) == 0 &&
		len(p.Filesystem.Execute) == 0 &&
		len(p.Network.HTTP) == 0 &&
		len(p.APIs) == 0 &&
		len(p.Databases) == 0 &&
		len(p.Secrets) == 0 &&
		len(p.AI) == 0
}

// AllowsNetwork reports whether any outbound network grant exists. The
// container backend uses this to choose between no network and bridge
// networking.
func (p *PermissionSet) AllowsNetwork() bool {
	return len(p.Network.HTTP) > 0
}

// AllowsFilesystemWrite reports whether any filesystem write or delete
// grant exists. The health checker flags disabled installations that
// retain one.
func (p *PermissionSet) AllowsFilesystemWrite() bool {
	return len(p.Filesystem.Write) > 0 || len(p.Filesystem.Delete) > 0
}

// Strings flattens the grant into auditable permission strings of the
// form "type:action:resource". The router's risk scoring and admin
// review surfaces consume this form.
func (p *PermissionSet) Strings() []string {
	var out []string
	appendAll := func(typ OpType, action Action, resources []string) {
		for _, r := range resources {
			out = append(out, string(typ)+":"+string(action)+":"+r)
		}
	}
	appendAll(OpFile, ActionRead, p.Filesystem.Read)
	appendAll(OpFile, ActionWrite, p.Filesystem.Write)
	appendAll(OpFile, ActionDelete, p.Filesystem.Delete)
	appendAll(OpFile, ActionExecute, p.Filesystem.Execute)
	appendAll(OpNetwork, ActionAccess, p.Network.HTTP)
	appendAll(OpAPI, ActionAccess, p.APIs)
	appendAll(OpDatabase, ActionAccess, p.Databases)
	appendAll(OpSecret, ActionAccess, p.Secrets)
	appendAll(OpAI, ActionAccess, p.AI)
	return out
}

// HighRisk reports whether a flattened permission string carries the
// router's risk penalty: execute grants and anything mentioning delete.
func HighRisk(permission string) bool {
	return strings.Contains(permission, string(ActionExecute)+":") ||
		strings.Contains(permission, "delete")
}

// Clone creates a deep copy of the permission set.
func (p PermissionSet) Clone() PermissionSet {
	return PermissionSet{
		Filesystem: FilesystemGrant{
			Read:    append([]string(nil), p.Filesystem.Read...),
			Write:   append([]string(nil), p.Filesystem.Write...),
			Delete:  append([]string(nil), p.Filesystem.Delete...),
			Execute: append([]string(nil), p.Filesystem.Execute...),
		},
		Network: NetworkGrant{
			HTTP: append([]string(nil), p.Network.HTTP...),
		},
		APIs:      append([]string(nil), p.APIs...),
		Databases: append([]string(nil), p.Databases...),
		Secrets:   append([]string(nil), p.Secrets...),
		AI:        append([]string(nil), p.AI...),
	}
}
