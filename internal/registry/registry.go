// Package registry keeps the in-memory catalog of known .env files and
// discovers new ones by walking directories.
package registry

import (
	"path/filepath"
	"sync"

	"envman/internal/model"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry maps opaque ids to .env file paths. It is not persisted; a new
// process rebuilds it by scanning. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	files   *orderedmap.OrderedMap[string, model.RegisteredFile]
	workDir string
}

// New returns an empty registry. workDir is the base for RelativePath; when
// empty the process working directory is used.
func New(workDir string) *Registry {
	if workDir == "" {
		workDir, _ = filepath.Abs(".")
	}
	return &Registry{
		files:   orderedmap.New[string, model.RegisteredFile](),
		workDir: workDir,
	}
}

// Register adds path under a fresh id. The file is not required to exist and
// registering the same path twice yields two entries.
func (r *Registry) Register(path string) model.RegisteredFile {
	file := r.record(path)

	r.mu.Lock()
	r.files.Set(file.ID, file)
	r.mu.Unlock()

	return file
}

// RegisterNew registers the paths not already present and returns the new
// records. Duplicates within paths are registered once.
func (r *Registry) RegisterNew(paths []string) []model.RegisteredFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[string]bool, r.files.Len()+len(paths))
	for pair := r.files.Oldest(); pair != nil; pair = pair.Next() {
		known[pair.Value.Path] = true
	}

	var added []model.RegisteredFile
	for _, p := range paths {
		file := r.record(p)
		if known[file.Path] {
			continue
		}
		known[file.Path] = true
		r.files.Set(file.ID, file)
		added = append(added, file)
	}
	return added
}

// Get returns the record for id.
func (r *Registry) Get(id string) (model.RegisteredFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files.Get(id)
}

// FindByPath returns the first record registered for path.
func (r *Registry) FindByPath(path string) (model.RegisteredFile, bool) {
	abs := absPath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for pair := r.files.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Path == abs {
			return pair.Value, true
		}
	}
	return model.RegisteredFile{}, false
}

// Unregister forgets id. The file on disk is left alone.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files.Delete(id)
	return ok
}

// List returns a snapshot of all records in registration order.
func (r *Registry) List() []model.RegisteredFile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := make([]model.RegisteredFile, 0, r.files.Len())
	for pair := r.files.Oldest(); pair != nil; pair = pair.Next() {
		files = append(files, pair.Value)
	}
	return files
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.files.Len()
}

func (r *Registry) record(path string) model.RegisteredFile {
	abs := absPath(path)
	rel, err := filepath.Rel(r.workDir, abs)
	if err != nil {
		rel = abs
	}
	return model.RegisteredFile{
		ID:           uuid.NewString(),
		Path:         abs,
		Name:         filepath.Base(abs),
		Directory:    filepath.Dir(abs),
		RelativePath: rel,
	}
}

func absPath(path string) string {
	path = model.ExpandTilde(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
