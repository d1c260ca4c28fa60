package capability

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

// Workspace exposes filesystem access scoped to the project root. Paths
// are plugin-relative; traversal segments and absolute escapes are hard
// failures before any permission check runs.
type Workspace struct {
	ctx  *Context
	root string
}

// Read returns the contents of a file under the project root. Requires
// a filesystem read grant matching the relative path.
func (w *Workspace) Read(path string) ([]byte, error) {
	abs, err := w.resolve(path, manifest.ActionRead)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	return data, nil
}

// Write creates or replaces a file under the project root. Requires a
// filesystem write grant matching the relative path.
func (w *Workspace) Write(path string, data []byte) error {
	abs, err := w.resolve(path, manifest.ActionWrite)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return execution.WrapError(execution.CodeBackend, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return execution.WrapError(execution.CodeBackend, err)
	}
	return nil
}

// Delete removes a file under the project root. Requires a filesystem
// delete grant matching the relative path.
func (w *Workspace) Delete(path string) error {
	abs, err := w.resolve(path, manifest.ActionDelete)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return execution.WrapError(execution.CodeBackend, err)
	}
	return nil
}

// List returns the entry names of a directory under the project root.
// Requires a filesystem read grant matching the relative path.
func (w *Workspace) List(path string) ([]string, error) {
	abs, err := w.resolve(path, manifest.ActionRead)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, execution.WrapError(execution.CodeBackend, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// resolve validates a plugin-supplied path, checks the permission for
// the action, and returns the absolute path under the root. It emits
// the egress audit event on success.
func (w *Workspace) resolve(path string, action manifest.Action) (string, error) {
	if w.root == "" {
		return "", execution.NewError(execution.CodePermissionDenied,
			"permission denied: %s (no project root)", manifest.Operation{Type: manifest.OpFile, Action: action, Resource: path})
	}

	rel, err := sanitize(path)
	if err != nil {
		return "", err
	}

	op := manifest.Operation{Type: manifest.OpFile, Action: action, Resource: rel}
	if err := w.ctx.check(op); err != nil {
		return "", err
	}

	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	if !within(abs, w.root) {
		return "", execution.NewError(execution.CodePermissionDenied,
			"permission denied: %s (escapes project root)", op)
	}

	w.ctx.recordEgress(op)
	return abs, nil
}

// sanitize normalizes a plugin path to a clean slash-separated relative
// path. Absolute paths and any parent-directory traversal are rejected
// outright.
func sanitize(path string) (string, error) {
	if path == "" {
		return "", execution.NewError(execution.CodeInputValidation, "empty path")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return "", execution.NewError(execution.CodePermissionDenied,
			"permission denied: absolute path %q", path)
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return "", execution.NewError(execution.CodePermissionDenied,
				"permission denied: path traversal in %q", path)
		}
	}
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", execution.NewError(execution.CodePermissionDenied,
			"permission denied: path traversal in %q", path)
	}
	return cleaned, nil
}

// within reports whether target sits under base, using filepath.Rel so
// "/work/data" never matches "/work/database".
func within(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
