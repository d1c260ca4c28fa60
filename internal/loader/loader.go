package loader

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/registry"
	"github.com/forgehold/crucible/internal/runtime"
)

// State names one step of the per-invocation state machine.
type State string

// Invocation states, in order.
const (
	StatePending      State = "pending"
	StateValidating   State = "validating"
	StateContextBuilt State = "context-built"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateTimedOut     State = "timed-out"
)

// LoadedPlugin is one cache entry: the validated manifest, the plugin
// source, and a live backend handle. Manifest and source are immutable;
// only the handle owns resources.
type LoadedPlugin struct {
	Manifest *manifest.Manifest
	Source   string
	Handle   runtime.Handle
}

type cacheKey struct {
	itemID  string
	version string
}

// Loader resolves, caches, and executes plugins.
type Loader struct {
	registry  registry.Registry
	artifacts registry.ArtifactStore
	backends  *runtime.Registry
	caps      *capability.Factory
	logger    *logrus.Logger

	// projectRoot maps a project ID onto its workspace directory. An
	// empty result denies all filesystem access for that execution.
	projectRoot func(projectID string) string

	// observe, when set, receives every state transition. Used by
	// tests; nil in production.
	observe func(executionID string, s State)

	mu    sync.Mutex
	cache map[cacheKey]*LoadedPlugin
	group singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithProjectRootResolver maps project IDs to workspace directories.
func WithProjectRootResolver(fn func(projectID string) string) Option {
	return func(ld *Loader) { ld.projectRoot = fn }
}

// WithStateObserver registers a transition callback.
func WithStateObserver(fn func(executionID string, s State)) Option {
	return func(ld *Loader) { ld.observe = fn }
}

// New creates a Loader.
func New(reg registry.Registry, artifacts registry.ArtifactStore, backends *runtime.Registry, caps *capability.Factory, opts ...Option) *Loader {
	ld := &Loader{
		registry:    reg,
		artifacts:   artifacts,
		backends:    backends,
		caps:        caps,
		logger:      logrus.StandardLogger(),
		projectRoot: func(string) string { return "" },
		cache:       make(map[cacheKey]*LoadedPlugin),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

func (ld *Loader) transition(executionID string, s State) {
	if ld.observe != nil {
		ld.observe(executionID, s)
	}
	ld.logger.WithFields(logrus.Fields{
		"executionId": executionID,
		"state":       s,
	}).Debug("execution state")
}

// Load resolves a plugin installation to its cache entry, populating
// the cache at most once per (itemID, version) even under concurrent
// callers. A version change evicts the previous version's entry after
// releasing its handle.
func (ld *Loader) Load(inst *registry.Installation) (*LoadedPlugin, error) {
	key := cacheKey{itemID: inst.ItemID, version: inst.Version}

	ld.mu.Lock()
	if entry, ok := ld.cache[key]; ok {
		ld.mu.Unlock()
		return entry, nil
	}
	ld.mu.Unlock()

	flightKey := key.itemID + "@" + key.version
	v, err, _ := ld.group.Do(flightKey, func() (interface{}, error) {
		ld.mu.Lock()
		if entry, ok := ld.cache[key]; ok {
			ld.mu.Unlock()
			return entry, nil
		}
		ld.mu.Unlock()

		entry, err := ld.build(inst)
		if err != nil {
			return nil, err
		}

		ld.mu.Lock()
		ld.evictOtherVersionsLocked(key)
		ld.cache[key] = entry
		ld.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, execution.WrapError(execution.CodeLoad, err)
	}
	return v.(*LoadedPlugin), nil
}

// build resolves manifest, source, and backend handle for one entry.
func (ld *Loader) build(inst *registry.Installation) (*LoadedPlugin, error) {
	m, err := ld.registry.GetManifest(inst.ItemID)
	if err != nil {
		return nil, execution.WrapError(execution.CodeLoad, err)
	}
	if err := m.Validate(); err != nil {
		return nil, execution.WrapError(execution.CodeManifestValidation, err)
	}

	backend, err := ld.backends.Select(m)
	if err != nil {
		return nil, err
	}

	source, err := ld.artifacts.LoadEntryPointCode(inst, m)
	if err != nil {
		return nil, execution.WrapError(execution.CodeLoad, err)
	}

	handle, err := backend.Prepare(m, source)
	if err != nil {
		return nil, execution.WrapError(execution.CodeLoad, err)
	}

	ld.logger.WithFields(logrus.Fields{
		"itemId":  inst.ItemID,
		"version": inst.Version,
		"runtime": m.Runtime,
	}).Info("plugin loaded")

	return &LoadedPlugin{Manifest: m, Source: source, Handle: handle}, nil
}

// evictOtherVersionsLocked releases and drops cached entries for the
// same item under a different version. Caller holds the lock.
func (ld *Loader) evictOtherVersionsLocked(current cacheKey) {
	for key, entry := range ld.cache {
		if key.itemID == current.itemID && key.version != current.version {
			if err := entry.Handle.Close(); err != nil {
				ld.logger.WithField("itemId", key.itemID).
					WithError(err).Warn("stale version handle close failed")
			}
			delete(ld.cache, key)
		}
	}
}

// Unload releases the backend handle for an installation and then
// evicts its cache entry. Release strictly precedes eviction.
func (ld *Loader) Unload(inst *registry.Installation) error {
	key := cacheKey{itemID: inst.ItemID, version: inst.Version}

	ld.mu.Lock()
	defer ld.mu.Unlock()
	entry, ok := ld.cache[key]
	if !ok {
		return nil
	}
	if err := entry.Handle.Close(); err != nil {
		return err
	}
	delete(ld.cache, key)
	return nil
}

// Cached reports whether an entry exists for the installation's
// (itemID, version).
func (ld *Loader) Cached(inst *registry.Installation) bool {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	_, ok := ld.cache[cacheKey{itemID: inst.ItemID, version: inst.Version}]
	return ok
}
