package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forgehold/crucible/internal/manifest"
)

// ArtifactStore resolves plugin source text, addressed by
// (itemID, installed version, manifest entry point).
type ArtifactStore interface {
	LoadEntryPointCode(inst *Installation, m *manifest.Manifest) (string, error)
}

// DirArtifactStore reads plugin code from a directory tree laid out as
// <root>/<itemID>/<version>/<entryPoint>.
type DirArtifactStore struct {
	root string
}

// NewDirArtifactStore creates an artifact store over a directory.
func NewDirArtifactStore(root string) *DirArtifactStore {
	return &DirArtifactStore{root: root}
}

// LoadEntryPointCode implements ArtifactStore.
func (s *DirArtifactStore) LoadEntryPointCode(inst *Installation, m *manifest.Manifest) (string, error) {
	if m.EntryPoint == "" {
		// Container plugins ship their code inside the image.
		return "", nil
	}
	path := filepath.Join(s.root, inst.ItemID, inst.Version, filepath.FromSlash(m.EntryPoint))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: artifact %s@%s entry %s: %v",
			ErrNotFound, inst.ItemID, inst.Version, m.EntryPoint, err)
	}
	return string(data), nil
}

// MemArtifactStore serves sources from memory, for embedding and tests.
type MemArtifactStore struct {
	sources map[string]string
}

// NewMemArtifactStore creates an empty in-memory artifact store.
func NewMemArtifactStore() *MemArtifactStore {
	return &MemArtifactStore{sources: make(map[string]string)}
}

// Put stores source for an item version.
func (s *MemArtifactStore) Put(itemID, version, source string) {
	s.sources[itemID+"@"+version] = source
}

// LoadEntryPointCode implements ArtifactStore.
func (s *MemArtifactStore) LoadEntryPointCode(inst *Installation, m *manifest.Manifest) (string, error) {
	if m.EntryPoint == "" {
		return "", nil
	}
	src, ok := s.sources[inst.ItemID+"@"+inst.Version]
	if !ok {
		return "", fmt.Errorf("%w: artifact %s@%s", ErrNotFound, inst.ItemID, inst.Version)
	}
	return src, nil
}
