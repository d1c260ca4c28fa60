package capability

import (
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

// Factory builds capability contexts. One factory is shared across all
// executions; the per-execution state lives in the Context it returns.
type Factory struct {
	ai     aiservice.Service
	client *http.Client
	logger *logrus.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithAIService sets the AI collaborator. Without one, ai.generate and
// ai.analyze fail with a configuration error even when granted.
func WithAIService(svc aiservice.Service) Option {
	return func(f *Factory) { f.ai = svc }
}

// WithHTTPClient sets the egress HTTP client. All plugin HTTP traffic
// flows through this single client, so instrumentation or host
// allow-listing can be layered in via its Transport.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) { f.client = c }
}

// WithLogger sets the logger used for plugin log output and audit
// events.
func WithLogger(l *logrus.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory creates a capability context factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		ai:     aiservice.Disabled{},
		client: http.DefaultClient,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Context is the capability surface handed to one plugin execution. The
// grant always comes from the validated manifest, never from the
// caller.
type Context struct {
	Workspace *Workspace
	HTTP      *HTTP
	AI        *AI

	// Logger is the plugin-facing logger. VM backends route their
	// injected console here.
	Logger *logrus.Entry

	grant manifest.PermissionSet
	audit *logrus.Entry

	mu    sync.Mutex
	usage aiservice.Usage
}

// Build constructs the capability context for one execution. The
// project root anchors all workspace paths; an empty root denies all
// filesystem access regardless of grant.
func (f *Factory) Build(ec execution.Context, projectRoot string) *Context {
	audit := f.logger.WithFields(logrus.Fields{
		"pluginId":       ec.PluginID,
		"installationId": ec.InstallationID,
		"executionId":    ec.ExecutionID,
	})

	c := &Context{
		Logger: f.logger.WithFields(logrus.Fields{
			"pluginId":    ec.PluginID,
			"executionId": ec.ExecutionID,
			"source":      "plugin",
		}),
		grant: ec.Grant,
		audit: audit,
	}
	c.Workspace = &Workspace{ctx: c, root: projectRoot}
	c.HTTP = &HTTP{ctx: c, client: f.client}
	c.AI = &AI{ctx: c, service: f.ai}
	return c
}

// Usage returns the accumulated AI token usage for this execution.
func (c *Context) Usage() aiservice.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Context) addUsage(u aiservice.Usage) {
	c.mu.Lock()
	c.usage.Add(u)
	c.mu.Unlock()
}

// allows reports the grant decision without auditing. Callers that
// try several resource forms audit only the final decision via check
// or recordEgress.
func (c *Context) allows(op manifest.Operation) bool {
	return c.grant.Allows(op)
}

// check enforces one permission. On denial it emits an audit event and
// returns a typed error naming the permission string.
func (c *Context) check(op manifest.Operation) error {
	if c.grant.Allows(op) {
		return nil
	}
	c.audit.WithFields(logrus.Fields{
		"permission": op.String(),
		"resource":   op.Resource,
		"decision":   "deny",
	}).Warn("permission denied")
	return execution.NewError(execution.CodePermissionDenied, "permission denied: %s", op)
}

// recordEgress emits the audit event for an authorized operation.
func (c *Context) recordEgress(op manifest.Operation) {
	c.audit.WithFields(logrus.Fields{
		"permission": op.String(),
		"resource":   op.Resource,
		"decision":   "allow",
	}).Info("capability egress")
}
