package envfile

import (
	"fmt"

	"envman/internal/model"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateDirty
	StateSaved
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StateSaved:
		return "saved"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Resolver maps a registry id to its file record.
type Resolver interface {
	Get(id string) (model.RegisteredFile, bool)
}

// Backer snapshots a file before it is overwritten.
type Backer interface {
	Create(path string) (string, error)
}

// Session is the in-memory working copy of one registered file between
// load and save. A Session is not safe for concurrent use; two sessions on
// the same id race and the last save wins, each leaving its own backup.
type Session struct {
	id       string
	resolver Resolver
	backups  Backer

	file       model.RegisteredFile
	doc        *model.EnvDocument
	state      State
	lastBackup string
}

// NewSession returns an unloaded session for id.
func NewSession(id string, resolver Resolver, backups Backer) *Session {
	return &Session{
		id:       id,
		resolver: resolver,
		backups:  backups,
	}
}

// Open creates a session for id and loads it.
func Open(id string, resolver Resolver, backups Backer) (*Session, error) {
	s := NewSession(id, resolver, backups)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load resolves the id and parses the file from disk, discarding any
// in-memory edits.
func (s *Session) Load() error {
	if s.state == StateClosed {
		return s.invalid("load")
	}

	file, ok := s.resolver.Get(s.id)
	if !ok {
		return model.NewError(model.KindNotFound, "load", "", fmt.Errorf("%w: %s", model.ErrNotFound, s.id))
	}

	doc, err := ReadFile(file.Path)
	if err != nil {
		return err
	}

	s.file = file
	s.doc = doc
	s.state = StateLoaded
	return nil
}

// Set creates or overwrites key. Keys are taken as given; normalizing them
// is the caller's job.
func (s *Session) Set(key, value string) error {
	if !s.editable() {
		return s.invalid("set")
	}
	if key == "" {
		return model.NewError(model.KindValidation, "set", s.file.Path,
			fmt.Errorf("%w: empty key", model.ErrInvalidInput))
	}

	entry, _ := s.doc.Variables.Get(key)
	entry.Key = key
	entry.Value = value
	s.doc.Variables.Set(key, entry)
	s.state = StateDirty
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Session) Delete(key string) error {
	if !s.editable() {
		return s.invalid("delete")
	}
	s.doc.Variables.Delete(key)
	s.state = StateDirty
	return nil
}

// Replace swaps the whole mapping, as a full-document PUT does.
func (s *Session) Replace(vars *model.Variables) error {
	if !s.editable() {
		return s.invalid("replace")
	}

	next := model.NewVariables()
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "" {
			return model.NewError(model.KindValidation, "replace", s.file.Path,
				fmt.Errorf("%w: empty key", model.ErrInvalidInput))
		}
		entry := pair.Value
		entry.Key = pair.Key
		next.Set(pair.Key, entry)
	}
	s.doc.Variables = next
	s.state = StateDirty
	return nil
}

// Save backs up the file on disk and then overwrites it with the current
// mapping. If the backup fails nothing is written. It returns the backup path.
func (s *Session) Save() (string, error) {
	if s.state != StateLoaded && s.state != StateDirty {
		return "", s.invalid("save")
	}

	backupPath, err := s.backups.Create(s.file.Path)
	if err != nil {
		return "", err
	}

	if err := writeFile(s.file.Path, s.doc.Variables); err != nil {
		return backupPath, err
	}

	s.lastBackup = backupPath
	s.state = StateSaved
	return backupPath, nil
}

// Close releases the document. Every later call fails.
func (s *Session) Close() {
	s.doc = nil
	s.state = StateClosed
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) State() State                 { return s.state }
func (s *Session) File() model.RegisteredFile   { return s.file }
func (s *Session) Document() *model.EnvDocument { return s.doc }
func (s *Session) LastBackup() string           { return s.lastBackup }

// Dirty reports whether there are edits not yet written.
func (s *Session) Dirty() bool {
	return s.state == StateDirty
}

func (s *Session) editable() bool {
	switch s.state {
	case StateLoaded, StateDirty, StateSaved:
		return true
	}
	return false
}

func (s *Session) invalid(op string) error {
	return model.NewError(model.KindValidation, op, s.id,
		fmt.Errorf("%w: %s", model.ErrInvalidState, s.state))
}
