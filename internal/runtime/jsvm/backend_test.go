package jsvm

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Name:       "test-plugin",
		Version:    "1.0.0",
		Runtime:    manifest.RuntimeJavaScript,
		EntryPoint: "main.js",
	}
}

func buildCaps(t *testing.T, grant manifest.PermissionSet, root string) (*capability.Context, execution.Context) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	f := capability.NewFactory(capability.WithLogger(logger))
	ec := execution.Context{
		ExecutionID:    "exec-1",
		PluginID:       "item-1",
		InstallationID: "inst-1",
		Grant:          grant,
	}
	return f.Build(ec, root), ec
}

func run(t *testing.T, source string, inputs map[string]interface{}, grant manifest.PermissionSet, root string) (map[string]interface{}, error) {
	t.Helper()
	h, err := New().Prepare(testManifest(), source)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer h.Close()

	caps, ec := buildCaps(t, grant, root)
	ec.Inputs = inputs

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Run(ctx, caps, ec)
}

func TestRunReturnsOutputMap(t *testing.T) {
	source := `
function main(inputs, context) {
  return { greeting: "hello " + inputs.name, count: 3 };
}`
	out, err := run(t, source, map[string]interface{}{"name": "world"}, manifest.PermissionSet{}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["greeting"] != "hello world" {
		t.Errorf("greeting = %v", out["greeting"])
	}
	if out["count"] != int64(3) {
		t.Errorf("count = %v (%T)", out["count"], out["count"])
	}
}

func TestScalarResultWrapped(t *testing.T) {
	source := `function main(inputs, context) { return 42; }`
	out, err := run(t, source, nil, manifest.PermissionSet{}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["result"] != int64(42) {
		t.Errorf("result = %v", out["result"])
	}
}

func TestPrepareRejectsMissingMain(t *testing.T) {
	_, err := New().Prepare(testManifest(), `var x = 1;`)
	if execution.CodeOf(err) != execution.CodeLoad {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestPrepareRejectsSyntaxError(t *testing.T) {
	_, err := New().Prepare(testManifest(), `function main( {`)
	if execution.CodeOf(err) != execution.CodeLoad {
		t.Fatalf("expected LoadError, got %v", err)
	}
}

func TestThrowIsBackendError(t *testing.T) {
	source := `function main(inputs, context) { throw new Error("boom"); }`
	_, err := run(t, source, nil, manifest.PermissionSet{}, "")
	if execution.CodeOf(err) != execution.CodeBackend {
		t.Fatalf("expected BackendError, got %v", err)
	}
}

func TestDeadlineInterruptsExecution(t *testing.T) {
	source := `function main(inputs, context) { while (true) {} }`
	h, err := New().Prepare(testManifest(), source)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer h.Close()

	caps, ec := buildCaps(t, manifest.PermissionSet{}, "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := h.Run(ctx, caps, ec)
		done <- err
	}()

	select {
	case err := <-done:
		if execution.CodeOf(err) != execution.CodeTimeout {
			t.Fatalf("expected TimeoutError, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runaway script was not interrupted")
	}
}

func TestWorkspaceCapabilityInjectedByGrant(t *testing.T) {
	root := t.TempDir()
	source := `
function main(inputs, context) {
  context.workspace.write("out.txt", "written from js");
  return { back: context.workspace.read("out.txt") };
}`
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}, Write: []string{"*"}},
	}
	out, err := run(t, source, nil, grant, root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["back"] != "written from js" {
		t.Errorf("back = %v", out["back"])
	}
}

func TestWorkspaceAbsentWithoutGrant(t *testing.T) {
	source := `
function main(inputs, context) {
  return { hasWorkspace: context.workspace !== undefined };
}`
	out, err := run(t, source, nil, manifest.PermissionSet{}, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["hasWorkspace"] != false {
		t.Error("workspace handle injected without a filesystem grant")
	}
}

func TestUncaughtDenialKeepsPermissionCode(t *testing.T) {
	root := t.TempDir()
	source := `
function main(inputs, context) {
  context.workspace.write("out.txt", "x");
  return {};
}`
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}},
	}
	_, err := run(t, source, nil, grant, root)
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
}

func TestFreshRuntimePerRun(t *testing.T) {
	source := `
var counter = (typeof counter === "undefined") ? 1 : counter + 1;
function main(inputs, context) {
  return { counter: counter };
}`
	h, err := New().Prepare(testManifest(), source)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer h.Close()

	for i := 0; i < 3; i++ {
		caps, ec := buildCaps(t, manifest.PermissionSet{}, "")
		out, err := h.Run(context.Background(), caps, ec)
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if out["counter"] != int64(1) {
			t.Fatalf("run %d leaked state: counter = %v", i, out["counter"])
		}
	}
}
