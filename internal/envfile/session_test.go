package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"envman/internal/model"
)

type mapResolver map[string]model.RegisteredFile

func (r mapResolver) Get(id string) (model.RegisteredFile, bool) {
	f, ok := r[id]
	return f, ok
}

type failingBacker struct{ calls int }

func (b *failingBacker) Create(path string) (string, error) {
	b.calls++
	return "", model.NewError(model.KindPermission, "backup", path, os.ErrPermission)
}

func setupSession(t *testing.T, content string) (*Session, string, *Backups) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	resolver := mapResolver{"f1": {ID: "f1", Path: path, Name: ".env", Directory: dir}}
	backups := &Backups{Now: fixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))}
	return NewSession("f1", resolver, backups), path, backups
}

func backupFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if IsBackupName(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func TestSessionSaveBacksUpFirst(t *testing.T) {
	s, path, _ := setupSession(t, "A=1\n")

	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Set("A", "2"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("B", "hello world"); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateDirty {
		t.Fatalf("state = %v, want dirty", s.State())
	}

	backupPath, err := s.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.State() != StateSaved || s.LastBackup() != backupPath {
		t.Errorf("after save: state %v, last backup %q", s.State(), s.LastBackup())
	}

	old, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}
	if string(old) != "A=1\n" {
		t.Errorf("backup = %q, want the previous content", old)
	}

	doc, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Lookup("A"); v != "2" {
		t.Errorf("A = %q, want 2", v)
	}
	if v, _ := doc.Lookup("B"); v != "hello world" {
		t.Errorf("B = %q, want hello world", v)
	}

	if got := backupFiles(t, filepath.Dir(path)); len(got) != 1 {
		t.Errorf("found %d backups, want 1: %v", len(got), got)
	}
}

func TestSessionSaveMissingFile(t *testing.T) {
	s, path, _ := setupSession(t, "A=1\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	s.Set("A", "2")

	_, err := s.Save()
	if model.KindOf(err) != model.KindNotFound {
		t.Fatalf("kind = %v, want not found (err %v)", model.KindOf(err), err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("save must not recreate a missing file")
	}
	if got := backupFiles(t, filepath.Dir(path)); len(got) != 0 {
		t.Errorf("unexpected backups: %v", got)
	}
	if s.State() != StateDirty {
		t.Errorf("state = %v, edits should survive a failed save", s.State())
	}
}

func TestSessionBackupFailureLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	backer := &failingBacker{}
	s, err := Open("f1", mapResolver{"f1": {ID: "f1", Path: path}}, backer)
	if err != nil {
		t.Fatal(err)
	}
	s.Set("A", "changed")

	if _, err := s.Save(); model.KindOf(err) != model.KindPermission {
		t.Fatalf("Save error kind = %v, want permission (err %v)", model.KindOf(err), err)
	}
	if backer.calls != 1 {
		t.Errorf("backer called %d times", backer.calls)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "A=1\n" {
		t.Errorf("file changed to %q after a failed backup", data)
	}
}

func TestSessionUnknownID(t *testing.T) {
	s := NewSession("nope", mapResolver{}, NewBackups())
	err := s.Load()
	if model.KindOf(err) != model.KindNotFound || !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Load on unknown id: %v", err)
	}
	if s.State() != StateUnloaded {
		t.Errorf("state = %v, want unloaded", s.State())
	}
}

func TestSessionStateRules(t *testing.T) {
	s, _, _ := setupSession(t, "A=1\n")

	if err := s.Set("A", "x"); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("Set before Load: %v", err)
	}
	if _, err := s.Save(); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("Save before Load: %v", err)
	}

	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("", "x"); model.KindOf(err) != model.KindValidation || !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Set with empty key: %v", err)
	}

	// saving an unedited document is allowed and still backs up
	if _, err := s.Save(); err != nil {
		t.Fatalf("Save from loaded: %v", err)
	}
	if _, err := s.Save(); !errors.Is(err, model.ErrInvalidState) {
		t.Errorf("Save from saved: %v", err)
	}

	// editing after a save starts a new cycle
	if err := s.Delete("A"); err != nil {
		t.Fatalf("Delete after save: %v", err)
	}
	if !s.Dirty() {
		t.Error("expected dirty after delete")
	}

	s.Close()
	if s.Document() != nil {
		t.Error("Close should drop the document")
	}
	for name, err := range map[string]error{
		"load":    s.Load(),
		"set":     s.Set("A", "1"),
		"delete":  s.Delete("A"),
		"replace": s.Replace(model.NewVariables()),
	} {
		if !errors.Is(err, model.ErrInvalidState) {
			t.Errorf("%s after close: %v", name, err)
		}
	}
}

func TestSessionSetKeepsLineNumber(t *testing.T) {
	s, _, _ := setupSession(t, "# top\nA=1\nB=2\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	s.Set("B", "3")
	s.Set("C", "new")

	b, _ := s.Document().Variables.Get("B")
	if b.LineNumber != 3 || b.Value != "3" {
		t.Errorf("B = %+v, want value 3 on line 3", b)
	}
	c, _ := s.Document().Variables.Get("C")
	if c.LineNumber != 0 {
		t.Errorf("new key C has line %d, want 0", c.LineNumber)
	}
	if got := strings.Join(s.Document().Keys(), ","); got != "A,B,C" {
		t.Errorf("keys = %s, want A,B,C", got)
	}
}

func TestSessionReplace(t *testing.T) {
	s, path, _ := setupSession(t, "A=1\nB=2\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	next := model.NewVariables()
	next.Set("Z", model.VariableEntry{Value: "last"})
	next.Set("B", model.VariableEntry{Value: "kept"})
	if err := s.Replace(next); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "Z=last\nB=kept\n" {
		t.Errorf("file = %q", data)
	}
	z, _ := s.Document().Variables.Get("Z")
	if z.Key != "Z" {
		t.Errorf("entry key not filled in: %+v", z)
	}
}

func TestSessionReplaceRejectsEmptyKey(t *testing.T) {
	s, path, _ := setupSession(t, "A=1\n")
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	next := model.NewVariables()
	next.Set("B", model.VariableEntry{Value: "2"})
	next.Set("", model.VariableEntry{Value: "x"})
	err := s.Replace(next)
	if model.KindOf(err) != model.KindValidation {
		t.Fatalf("err = %v, want a validation error", err)
	}
	if s.Dirty() {
		t.Error("rejected replace marked the session dirty")
	}
	if _, ok := s.Document().Lookup("B"); ok {
		t.Error("rejected replace changed the document")
	}
	if data, _ := os.ReadFile(path); string(data) != "A=1\n" {
		t.Errorf("file = %q", data)
	}
}

// Two saves of the same document produce two distinct backups, the second
// holding the content written by the first.
func TestSessionRepeatedSaves(t *testing.T) {
	s, path, backups := setupSession(t, "A=1\n")
	tick := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	backups.Now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	s.Set("A", "2")
	first, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}
	s.Set("A", "3")
	second, err := s.Save()
	if err != nil {
		t.Fatal(err)
	}

	if data, _ := os.ReadFile(first); string(data) != "A=1\n" {
		t.Errorf("first backup = %q", data)
	}
	if data, _ := os.ReadFile(second); string(data) != "A=2\n" {
		t.Errorf("second backup = %q", data)
	}
	if data, _ := os.ReadFile(path); string(data) != "A=3\n" {
		t.Errorf("file = %q", data)
	}
	if got := backupFiles(t, filepath.Dir(path)); len(got) != 2 {
		t.Errorf("found %d backups, want 2", len(got))
	}
}
