package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestNewAndShutdown(t *testing.T) {
	dir := t.TempDir()
	application, err := New(context.Background(), Options{
		DataDir:      filepath.Join(dir, "data"),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		LogLevel:     "error",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer application.Shutdown()

	if application.Registry == nil || application.Loader == nil || application.Router == nil {
		t.Fatal("components not wired")
	}

	kinds := application.Backends.Kinds()
	if len(kinds) != 3 {
		t.Errorf("backends = %v, want lua, javascript, container", kinds)
	}

	if err := application.Shutdown(); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewRejectsBadAIConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := New(context.Background(), Options{
		DataDir:      filepath.Join(dir, "data"),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		LogLevel:     "error",
		AIProvider:   "anthropic", // key missing
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInitialization) {
		t.Errorf("err = %v, want ErrInitialization", err)
	}
	var ie *InitError
	if !errors.As(err, &ie) || ie.Component != "ai service" {
		t.Errorf("component = %v", err)
	}
}

func TestProjectRootResolver(t *testing.T) {
	resolve := projectRootResolver("/srv/workspaces")
	if got := resolve("proj-1"); got != filepath.Join("/srv/workspaces", "proj-1") {
		t.Errorf("resolve = %q", got)
	}
	if got := resolve(""); got != "" {
		t.Errorf("empty project = %q, want denial", got)
	}
	if got := projectRootResolver("")("proj-1"); got != "" {
		t.Errorf("empty base = %q, want denial", got)
	}
}
