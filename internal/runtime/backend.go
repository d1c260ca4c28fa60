package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

// ErrUnsupportedRuntime is returned at load time when no registered
// backend handles the manifest's declared runtime.
var ErrUnsupportedRuntime = errors.New("runtime: unsupported runtime")

// Backend prepares plugin code for one runtime kind.
type Backend interface {
	// Kind reports which manifest runtime this backend serves.
	Kind() manifest.Runtime

	// Prepare validates and compiles plugin source, returning a
	// reusable Handle. Prepare must catch a missing entry point here
	// rather than at run time.
	Prepare(m *manifest.Manifest, source string) (Handle, error)
}

// Handle is a prepared plugin. Run may be called concurrently; each
// call gets isolated interpreter or container state. Close releases
// everything the handle holds and must be called before the owning
// cache entry is evicted.
type Handle interface {
	Run(ctx context.Context, caps *capability.Context, ec execution.Context) (map[string]interface{}, error)
	Close() error
}

// Registry holds the backends available in this build.
type Registry struct {
	backends map[manifest.Runtime]Backend
}

// NewRegistry creates a registry over the given backends. Later
// backends with a duplicate kind replace earlier ones.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[manifest.Runtime]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

// Select returns the backend for the manifest's runtime. Selection
// depends only on the manifest; an unregistered runtime fails with
// ErrUnsupportedRuntime wrapped as a load error.
func (r *Registry) Select(m *manifest.Manifest) (Backend, error) {
	b, ok := r.backends[m.Runtime]
	if !ok {
		return nil, execution.WrapError(execution.CodeLoad,
			fmt.Errorf("%w: %s", ErrUnsupportedRuntime, m.Runtime))
	}
	return b, nil
}

// Kinds returns the registered runtime kinds.
func (r *Registry) Kinds() []manifest.Runtime {
	kinds := make([]manifest.Runtime, 0, len(r.backends))
	for k := range r.backends {
		kinds = append(kinds, k)
	}
	return kinds
}
