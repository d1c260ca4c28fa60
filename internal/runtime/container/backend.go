package container

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/runtime"
)

// DefaultMaxConcurrent bounds simultaneous containers per host.
const DefaultMaxConcurrent = 8

// cleanupTimeout bounds the force-remove after a run. It uses a fresh
// context because the execution context may already be expired.
const cleanupTimeout = 10 * time.Second

// execFunc invokes the container CLI. Replaced in tests.
type execFunc func(ctx context.Context, binary string, args []string, stdin []byte) (stdout, stderr []byte, err error)

func systemExec(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.Bytes(), errOut.Bytes(), err
}

// Backend executes plugins in one container per run.
type Backend struct {
	binary string
	sem    *semaphore.Weighted
	runCLI execFunc
}

// Option configures the container backend.
type Option func(*Backend)

// WithBinary sets the container CLI binary (default "docker").
func WithBinary(path string) Option {
	return func(b *Backend) { b.binary = path }
}

// WithMaxConcurrent caps simultaneous containers on this host. The cap
// is enforced before container creation.
func WithMaxConcurrent(n int64) Option {
	return func(b *Backend) { b.sem = semaphore.NewWeighted(n) }
}

// New creates the container backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		binary: "docker",
		sem:    semaphore.NewWeighted(DefaultMaxConcurrent),
		runCLI: systemExec,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind reports the runtime this backend serves.
func (b *Backend) Kind() manifest.Runtime {
	return manifest.RuntimeContainer
}

// Prepare returns a handle bound to the manifest's image. The plugin's
// code ships inside the image, so there is nothing to compile; source
// is carried along for images that read it from the input document.
func (b *Backend) Prepare(m *manifest.Manifest, source string) (runtime.Handle, error) {
	if m.Image == "" {
		return nil, execution.NewError(execution.CodeLoad, "container runtime requires an image")
	}
	return &handle{backend: b, mfst: m.Clone(), source: source}, nil
}

type handle struct {
	backend *Backend
	mfst    *manifest.Manifest
	source  string
}

// payload is the document written to the container's stdin.
type payload struct {
	Inputs  map[string]interface{} `json:"inputs"`
	Context payloadContext         `json:"context"`
	Source  string                 `json:"source,omitempty"`
}

type payloadContext struct {
	ExecutionID    string `json:"executionId"`
	PluginID       string `json:"pluginId"`
	InstallationID string `json:"installationId"`
	CallerID       string `json:"callerId"`
	ProjectID      string `json:"projectId,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
}

// Run starts one container, writes the input document to stdin, and
// parses stdout as the JSON output map. The container is force-removed
// on every exit path.
func (h *handle) Run(ctx context.Context, caps *capability.Context, ec execution.Context) (map[string]interface{}, error) {
	b := h.backend

	// Admission before creation: a host at its container cap must not
	// start another one.
	if err := b.sem.Acquire(ctx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, execution.NewError(execution.CodeTimeout, "execution deadline exceeded before container start")
		}
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	defer b.sem.Release(1)

	stdin, err := json.Marshal(payload{
		Inputs: ec.Inputs,
		Context: payloadContext{
			ExecutionID:    ec.ExecutionID,
			PluginID:       ec.PluginID,
			InstallationID: ec.InstallationID,
			CallerID:       ec.CallerID,
			ProjectID:      ec.ProjectID,
			SessionID:      ec.SessionID,
		},
		Source: h.source,
	})
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}

	name := "crucible-" + ec.ExecutionID
	defer h.remove(name)

	stdout, stderr, err := b.runCLI(ctx, b.binary, buildRunArgs(name, h.mfst), stdin)
	if err != nil {
		if ctx.Err() != nil {
			return nil, execution.NewError(execution.CodeTimeout, "execution deadline exceeded")
		}
		return nil, execution.NewError(execution.CodeBackend,
			"container exited abnormally: %v: %s", err, truncate(stderr, 512))
	}

	return parseOutput(stdout)
}

// Close is a no-op: containers are per-run, nothing outlives Run.
func (h *handle) Close() error {
	return nil
}

// remove force-removes the named container. It runs on every exit path
// with its own deadline, since the execution context may be dead.
func (h *handle) remove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	_, _, _ = h.backend.runCLI(ctx, h.backend.binary, []string{"rm", "-f", name}, nil)
}

// parseOutput requires stdout to be a single JSON object.
func parseOutput(stdout []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return map[string]interface{}{}, nil
	}
	if !gjson.ValidBytes(trimmed) || !gjson.ParseBytes(trimmed).IsObject() {
		return nil, execution.NewError(execution.CodeBackend,
			"malformed container output: %s", truncate(trimmed, 256))
	}
	var out map[string]interface{}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
