package container

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Name:          "containerized",
		Version:       "1.0.0",
		Runtime:       manifest.RuntimeContainer,
		Image:         "crucible/plugin-base:latest",
		MemoryLimitMB: 256,
		CPUShares:     512,
	}
}

// fakeCLI records invocations and plays back canned results.
type fakeCLI struct {
	mu      sync.Mutex
	calls   [][]string
	stdins  [][]byte
	stdout  []byte
	stderr  []byte
	err     error
	block   time.Duration
	running int
	maxSeen int
}

func (f *fakeCLI) exec(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.stdins = append(f.stdins, stdin)
	if args[0] == "run" {
		f.running++
		if f.running > f.maxSeen {
			f.maxSeen = f.running
		}
	}
	f.mu.Unlock()

	if f.block > 0 && args[0] == "run" {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			f.decRunning(args)
			return nil, nil, ctx.Err()
		}
	}
	f.decRunning(args)
	if args[0] == "rm" {
		return nil, nil, nil
	}
	return f.stdout, f.stderr, f.err
}

func (f *fakeCLI) decRunning(args []string) {
	f.mu.Lock()
	if args[0] == "run" {
		f.running--
	}
	f.mu.Unlock()
}

func (f *fakeCLI) argsFor(verb string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if c[0] == verb {
			out = append(out, c)
		}
	}
	return out
}

func newTestBackend(fake *fakeCLI, opts ...Option) *Backend {
	b := New(opts...)
	b.runCLI = fake.exec
	return b
}

func execContext() execution.Context {
	return execution.Context{
		ExecutionID:    "exec-42",
		PluginID:       "item-1",
		InstallationID: "inst-1",
		Inputs:         map[string]interface{}{"query": "q"},
	}
}

func TestRunParsesStdoutJSON(t *testing.T) {
	fake := &fakeCLI{stdout: []byte(`{"answer": 7}`)}
	b := newTestBackend(fake)

	h, err := b.Prepare(testManifest(), "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	out, err := h.Run(context.Background(), nil, execContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out["answer"] != float64(7) {
		t.Errorf("answer = %v", out["answer"])
	}
}

func TestRunArgsReflectManifest(t *testing.T) {
	fake := &fakeCLI{stdout: []byte(`{}`)}
	b := newTestBackend(fake)

	h, _ := b.Prepare(testManifest(), "")
	if _, err := h.Run(context.Background(), nil, execContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs := fake.argsFor("run")
	if len(runs) != 1 {
		t.Fatalf("expected one run invocation, got %d", len(runs))
	}
	joined := strings.Join(runs[0], " ")
	for _, want := range []string{
		"--name crucible-exec-42",
		"--network none",
		"--memory 256m",
		"--cpu-shares 512",
		"crucible/plugin-base:latest",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("run args %q missing %q", joined, want)
		}
	}
}

func TestNetworkGrantSwitchesToBridge(t *testing.T) {
	fake := &fakeCLI{stdout: []byte(`{}`)}
	b := newTestBackend(fake)

	m := testManifest()
	m.Permissions.Network.HTTP = []string{"api.example.com"}
	h, _ := b.Prepare(m, "")
	if _, err := h.Run(context.Background(), nil, execContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	joined := strings.Join(fake.argsFor("run")[0], " ")
	if !strings.Contains(joined, "--network bridge") {
		t.Errorf("expected bridge networking, args: %q", joined)
	}
}

func TestStdinCarriesInputsAndContext(t *testing.T) {
	fake := &fakeCLI{stdout: []byte(`{}`)}
	b := newTestBackend(fake)

	h, _ := b.Prepare(testManifest(), "")
	if _, err := h.Run(context.Background(), nil, execContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var doc struct {
		Inputs  map[string]interface{} `json:"inputs"`
		Context map[string]interface{} `json:"context"`
	}
	if err := json.Unmarshal(fake.stdins[0], &doc); err != nil {
		t.Fatalf("stdin is not JSON: %v", err)
	}
	if doc.Inputs["query"] != "q" {
		t.Errorf("inputs = %v", doc.Inputs)
	}
	if doc.Context["executionId"] != "exec-42" || doc.Context["pluginId"] != "item-1" {
		t.Errorf("context = %v", doc.Context)
	}
}

func TestContainerRemovedOnEveryPath(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCLI
	}{
		{"success", &fakeCLI{stdout: []byte(`{}`)}},
		{"failure", &fakeCLI{err: errors.New("exit status 1"), stderr: []byte("panic")}},
		{"malformed output", &fakeCLI{stdout: []byte("not json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(tt.fake)
			h, _ := b.Prepare(testManifest(), "")
			_, _ = h.Run(context.Background(), nil, execContext())

			rms := tt.fake.argsFor("rm")
			if len(rms) != 1 {
				t.Fatalf("expected one rm invocation, got %d", len(rms))
			}
			if rms[0][1] != "-f" || rms[0][2] != "crucible-exec-42" {
				t.Errorf("rm args = %v", rms[0])
			}
		})
	}
}

func TestNonZeroExitIsBackendError(t *testing.T) {
	fake := &fakeCLI{err: errors.New("exit status 3"), stderr: []byte("plugin blew up")}
	b := newTestBackend(fake)

	h, _ := b.Prepare(testManifest(), "")
	_, err := h.Run(context.Background(), nil, execContext())
	if execution.CodeOf(err) != execution.CodeBackend {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !strings.Contains(err.Error(), "plugin blew up") {
		t.Errorf("error %q does not carry stderr", err.Error())
	}
}

func TestMalformedStdoutIsBackendError(t *testing.T) {
	for _, stdout := range []string{"not json", `[1,2,3]`, `"just a string"`} {
		fake := &fakeCLI{stdout: []byte(stdout)}
		b := newTestBackend(fake)
		h, _ := b.Prepare(testManifest(), "")
		_, err := h.Run(context.Background(), nil, execContext())
		if execution.CodeOf(err) != execution.CodeBackend {
			t.Errorf("stdout %q: expected BackendError, got %v", stdout, err)
		}
	}
}

func TestEmptyStdoutIsEmptyOutput(t *testing.T) {
	fake := &fakeCLI{stdout: []byte("\n")}
	b := newTestBackend(fake)
	h, _ := b.Prepare(testManifest(), "")
	out, err := h.Run(context.Background(), nil, execContext())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %v, want empty", out)
	}
}

func TestDeadlineIsTimeoutAndStillRemoves(t *testing.T) {
	fake := &fakeCLI{block: 5 * time.Second, stdout: []byte(`{}`)}
	b := newTestBackend(fake)

	h, _ := b.Prepare(testManifest(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := h.Run(ctx, nil, execContext())
	if execution.CodeOf(err) != execution.CodeTimeout {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if len(fake.argsFor("rm")) != 1 {
		t.Error("container not removed after timeout")
	}
}

func TestConcurrencyCapEnforced(t *testing.T) {
	fake := &fakeCLI{block: 100 * time.Millisecond, stdout: []byte(`{}`)}
	b := newTestBackend(fake, WithMaxConcurrent(2))

	h, _ := b.Prepare(testManifest(), "")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ec := execContext()
			ec.ExecutionID = ec.ExecutionID + "-" + strings.Repeat("x", i+1)
			_, _ = h.Run(context.Background(), nil, ec)
		}(i)
	}
	wg.Wait()

	if fake.maxSeen > 2 {
		t.Errorf("saw %d concurrent containers, cap is 2", fake.maxSeen)
	}
}

func TestPrepareRequiresImage(t *testing.T) {
	m := testManifest()
	m.Image = ""
	_, err := New().Prepare(m, "")
	if execution.CodeOf(err) != execution.CodeLoad {
		t.Fatalf("expected LoadError, got %v", err)
	}
}
