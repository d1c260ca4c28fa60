package capability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func buildContext(t *testing.T, grant manifest.PermissionSet, root string, opts ...Option) *Context {
	t.Helper()
	opts = append(opts, WithLogger(quietLogger()))
	f := NewFactory(opts...)
	return f.Build(execution.Context{
		ExecutionID:    "exec-1",
		PluginID:       "item-1",
		InstallationID: "inst-1",
		Grant:          grant,
	}, root)
}

func TestWorkspaceReadWrite(t *testing.T) {
	root := t.TempDir()
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{
			Read:  []string{"data/*"},
			Write: []string{"data/*"},
		},
	}
	c := buildContext(t, grant, root)

	if err := c.Workspace.Write("data/out.txt", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := c.Workspace.Read("data/out.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read = %q, want %q", got, "hello")
	}

	names, err := c.Workspace.List("data")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "out.txt" {
		t.Errorf("List = %v, want [out.txt]", names)
	}
}

func TestWorkspaceDeniesUngrantedAction(t *testing.T) {
	root := t.TempDir()
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}},
	}
	c := buildContext(t, grant, root)

	err := c.Workspace.Write("out.txt", []byte("x"))
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	// The denial names the exact permission string.
	if !strings.Contains(err.Error(), "file:write:out.txt") {
		t.Errorf("denial %q does not name permission string", err.Error())
	}
}

func TestWorkspaceDeleteRequiresDeleteGrant(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "victim.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	readOnly := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}, Write: []string{"*"}},
	}
	c := buildContext(t, readOnly, root)
	if err := c.Workspace.Delete("victim.txt"); execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}

	full := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Delete: []string{"*"}},
	}
	c = buildContext(t, full, root)
	if err := c.Workspace.Delete("victim.txt"); err != nil {
		t.Fatalf("Delete with grant: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "victim.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Error("file still exists after Delete")
	}
}

func TestWorkspaceRejectsTraversal(t *testing.T) {
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}},
	}
	c := buildContext(t, grant, t.TempDir())

	for _, path := range []string{
		"../outside.txt",
		"data/../../outside.txt",
		"/etc/passwd",
		"..",
	} {
		if _, err := c.Workspace.Read(path); execution.CodeOf(err) != execution.CodePermissionDenied {
			t.Errorf("Read(%q): expected PermissionDeniedError, got %v", path, err)
		}
	}
}

func TestWorkspaceNoRootDeniesAll(t *testing.T) {
	grant := manifest.PermissionSet{
		Filesystem: manifest.FilesystemGrant{Read: []string{"*"}},
	}
	c := buildContext(t, grant, "")
	if _, err := c.Workspace.Read("anything.txt"); execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
}

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	grant := manifest.PermissionSet{
		Network: manifest.NetworkGrant{HTTP: []string{"127.0.0.1"}},
	}
	c := buildContext(t, grant, "")

	resp, err := c.HTTP.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestHTTPDeniedWithoutGrant(t *testing.T) {
	c := buildContext(t, manifest.PermissionSet{}, "")
	_, err := c.HTTP.Get(context.Background(), "https://api.example.com/v1")
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if !strings.Contains(err.Error(), "network:access:api.example.com") {
		t.Errorf("denial %q does not name permission string", err.Error())
	}
}

// roundTripFunc lets a test stand in for the egress transport.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHTTPWildcardHostGrant(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNoContent,
			Header:     http.Header{},
			Body:       http.NoBody,
		}, nil
	})}

	grant := manifest.PermissionSet{
		Network: manifest.NetworkGrant{HTTP: []string{"*.example.com"}},
	}
	c := buildContext(t, grant, "", WithHTTPClient(client))

	resp, err := c.HTTP.Get(context.Background(), "http://api.example.com/v1")
	if err != nil {
		t.Fatalf("wildcard grant should not deny subdomain: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	_, err = c.HTTP.Get(context.Background(), "http://evil.org/")
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError for unmatched host, got %v", err)
	}
}

func TestHTTPURLPatternGrant(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusNoContent,
			Header:     http.Header{},
			Body:       http.NoBody,
		}, nil
	})}

	// Grants may be written as full URL patterns, not just hosts.
	grant := manifest.PermissionSet{
		Network: manifest.NetworkGrant{HTTP: []string{"https://api.github.com/*"}},
	}
	c := buildContext(t, grant, "", WithHTTPClient(client))

	resp, err := c.HTTP.Get(context.Background(), "https://api.github.com/repos/a/b")
	if err != nil {
		t.Fatalf("URL grant should authorize matching request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	_, err = c.HTTP.Get(context.Background(), "https://api.github.com.evil.org/repos")
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError for unmatched URL, got %v", err)
	}
}

// fakeAI records calls and returns fixed usage.
type fakeAI struct {
	generateCalls int
	analyzeCalls  int
}

func (f *fakeAI) Generate(context.Context, string, aiservice.GenerateOptions) (string, aiservice.Usage, error) {
	f.generateCalls++
	return "generated", aiservice.Usage{InputTokens: 10, OutputTokens: 20, CostCents: 3}, nil
}

func (f *fakeAI) Analyze(context.Context, string, aiservice.AnalyzeOptions) (aiservice.Analysis, aiservice.Usage, error) {
	f.analyzeCalls++
	return aiservice.Analysis{Summary: "fine"}, aiservice.Usage{InputTokens: 5, OutputTokens: 5, CostCents: 1}, nil
}

func TestAIGenerateAccumulatesUsage(t *testing.T) {
	fake := &fakeAI{}
	grant := manifest.PermissionSet{AI: []string{"generate", "analyze"}}
	c := buildContext(t, grant, "", WithAIService(fake))

	text, err := c.AI.Generate(context.Background(), "prompt", aiservice.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "generated" {
		t.Errorf("text = %q", text)
	}
	if _, err := c.AI.Analyze(context.Background(), "content", aiservice.AnalyzeOptions{}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	usage := c.Usage()
	if usage.InputTokens != 15 || usage.OutputTokens != 25 || usage.CostCents != 4 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestAIDeniedWithoutGrant(t *testing.T) {
	fake := &fakeAI{}
	grant := manifest.PermissionSet{AI: []string{"generate"}}
	c := buildContext(t, grant, "", WithAIService(fake))

	_, err := c.AI.Analyze(context.Background(), "content", aiservice.AnalyzeOptions{})
	if execution.CodeOf(err) != execution.CodePermissionDenied {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if !strings.Contains(err.Error(), "ai:access:analyze") {
		t.Errorf("denial %q does not name permission string", err.Error())
	}
	if fake.analyzeCalls != 0 {
		t.Error("denied call still reached the AI service")
	}
}

func TestAIDisabledService(t *testing.T) {
	grant := manifest.PermissionSet{AI: []string{"generate"}}
	c := buildContext(t, grant, "")

	_, err := c.AI.Generate(context.Background(), "prompt", aiservice.GenerateOptions{})
	if err == nil {
		t.Fatal("expected error from disabled AI service")
	}
	if !errors.Is(err, aiservice.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured cause, got %v", err)
	}
}
