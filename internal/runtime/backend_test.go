package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/forgehold/crucible/internal/capability"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

type stubBackend struct {
	kind manifest.Runtime
}

func (s *stubBackend) Kind() manifest.Runtime { return s.kind }
func (s *stubBackend) Prepare(*manifest.Manifest, string) (Handle, error) {
	return &stubHandle{}, nil
}

type stubHandle struct{}

func (*stubHandle) Run(context.Context, *capability.Context, execution.Context) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (*stubHandle) Close() error { return nil }

func TestSelectByRuntime(t *testing.T) {
	lua := &stubBackend{kind: manifest.RuntimeLua}
	js := &stubBackend{kind: manifest.RuntimeJavaScript}
	r := NewRegistry(lua, js)

	b, err := r.Select(&manifest.Manifest{Runtime: manifest.RuntimeJavaScript})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if b != js {
		t.Error("selected wrong backend")
	}
}

func TestSelectUnsupportedIsLoadError(t *testing.T) {
	r := NewRegistry(&stubBackend{kind: manifest.RuntimeLua})

	for _, rt := range []manifest.Runtime{manifest.RuntimeWasm, manifest.RuntimePython, manifest.RuntimeContainer} {
		_, err := r.Select(&manifest.Manifest{Runtime: rt})
		if err == nil {
			t.Fatalf("runtime %s: expected error", rt)
		}
		if !errors.Is(err, ErrUnsupportedRuntime) {
			t.Errorf("runtime %s: expected ErrUnsupportedRuntime, got %v", rt, err)
		}
		if execution.CodeOf(err) != execution.CodeLoad {
			t.Errorf("runtime %s: expected LoadError, got %v", rt, execution.CodeOf(err))
		}
	}
}

func TestSelectNeverFallsBack(t *testing.T) {
	// Only a weaker-isolation backend registered: a container manifest
	// must fail, not silently run in-process.
	r := NewRegistry(&stubBackend{kind: manifest.RuntimeLua})
	_, err := r.Select(&manifest.Manifest{Runtime: manifest.RuntimeContainer})
	if !errors.Is(err, ErrUnsupportedRuntime) {
		t.Fatalf("expected ErrUnsupportedRuntime, got %v", err)
	}
}
