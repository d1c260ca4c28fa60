// Package app wires the plugin sandbox together: registry, artifact
// store, runtime backends, capability factory, loader, and router. It
// owns component lifecycles; nothing here is a singleton.
package app

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/loader"
	"github.com/forgehold/crucible/internal/registry"
	"github.com/forgehold/crucible/internal/router"
	"github.com/forgehold/crucible/internal/runtime"
	"github.com/forgehold/crucible/internal/runtime/container"
	"github.com/forgehold/crucible/internal/runtime/jsvm"
	"github.com/forgehold/crucible/internal/runtime/luavm"
)

// Options configures the application.
type Options struct {
	// DataDir holds the registry database. Created if absent.
	DataDir string

	// ArtifactsDir is the root of the on-disk plugin artifact store.
	ArtifactsDir string

	// WorkspacesDir is the base directory for per-project plugin
	// workspaces. Empty denies all plugin filesystem access.
	WorkspacesDir string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogJSON switches log output to JSON.
	LogJSON bool

	// AIProvider selects the AI backend (anthropic, openai, gemini).
	// Empty leaves AI capability disabled.
	AIProvider string
	AIAPIKey   string
	AIModel    string

	// ContainerBinary overrides the container CLI path.
	ContainerBinary string

	// MaxContainers caps concurrent container executions.
	MaxContainers int64
}

// Application is the assembled sandbox.
type Application struct {
	Logger       *logrus.Logger
	Registry     registry.Registry
	Artifacts    registry.ArtifactStore
	Backends     *runtime.Registry
	Capabilities *capability.Factory
	Loader       *loader.Loader
	Router       *router.Router
	Health       *registry.Checker

	store *registry.BoltStore
	ai    aiservice.Service
}

// New assembles an Application in dependency order.
func New(ctx context.Context, opts Options) (*Application, error) {
	app := &Application{}

	app.Logger = newLogger(opts)

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, &InitError{Component: "data dir", Err: err}
	}
	store, err := registry.OpenBolt(filepath.Join(opts.DataDir, "registry.db"))
	if err != nil {
		return nil, &InitError{Component: "registry store", Err: err}
	}
	app.store = store
	app.Registry = store
	app.Artifacts = registry.NewDirArtifactStore(opts.ArtifactsDir)

	app.ai = aiservice.Disabled{}
	if opts.AIProvider != "" {
		svc, err := aiservice.New(ctx, aiservice.Config{
			Provider: opts.AIProvider,
			APIKey:   opts.AIAPIKey,
			Model:    opts.AIModel,
		})
		if err != nil {
			store.Close()
			return nil, &InitError{Component: "ai service", Err: err}
		}
		app.ai = svc
	}

	var containerOpts []container.Option
	if opts.ContainerBinary != "" {
		containerOpts = append(containerOpts, container.WithBinary(opts.ContainerBinary))
	}
	if opts.MaxContainers > 0 {
		containerOpts = append(containerOpts, container.WithMaxConcurrent(opts.MaxContainers))
	}
	app.Backends = runtime.NewRegistry(
		luavm.New(),
		jsvm.New(),
		container.New(containerOpts...),
	)

	app.Capabilities = capability.NewFactory(
		capability.WithAIService(app.ai),
		capability.WithLogger(app.Logger),
	)

	app.Loader = loader.New(app.Registry, app.Artifacts, app.Backends, app.Capabilities,
		loader.WithLogger(app.Logger),
		loader.WithProjectRootResolver(projectRootResolver(opts.WorkspacesDir)),
	)
	app.Router = router.New(app.Registry, app.Loader, router.WithLogger(app.Logger))
	app.Health = registry.NewChecker(app.Registry, app.Logger)

	return app, nil
}

// Shutdown releases everything the application holds. Safe to call on
// every exit path.
func (app *Application) Shutdown() error {
	if app.store != nil {
		return app.store.Close()
	}
	return nil
}

// projectRootResolver maps project IDs onto workspace directories under
// a common base. Projects never share a root.
func projectRootResolver(base string) func(projectID string) string {
	return func(projectID string) string {
		if base == "" || projectID == "" {
			return ""
		}
		return filepath.Join(base, projectID)
	}
}

func newLogger(opts Options) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(opts.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if opts.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
