package envfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"envman/internal/model"
)

// BackupInfix separates the original path from the timestamp in backup names.
const BackupInfix = ".backup."

const (
	backupTimeLayout = "2006-01-02T15:04:05.000Z"

	// attempts at a unique name when several backups land in the same millisecond
	maxBackupCollisions = 100
)

var timestampSafe = strings.NewReplacer(":", "-", ".", "-")

// Backups creates timestamped sibling copies of files. Backups are never
// indexed, pruned or restored by envman.
type Backups struct {
	Now func() time.Time
}

// NewBackups returns a Backups using the wall clock.
func NewBackups() *Backups {
	return &Backups{Now: time.Now}
}

// BackupPath returns the backup name for path taken at t:
// <path>.backup.<UTC ISO-8601 time with ':' and '.' replaced by '-'>.
func BackupPath(path string, t time.Time) string {
	return path + BackupInfix + timestampSafe.Replace(t.UTC().Format(backupTimeLayout))
}

// IsBackupName reports whether name looks like a file produced by Create.
func IsBackupName(name string) bool {
	return strings.Contains(name, BackupInfix)
}

// Create copies path byte-for-byte to a fresh backup file and returns its path.
// It fails with a not-found error when path does not exist and never
// overwrites an earlier backup.
func (b *Backups) Create(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", model.NewError(model.KindNotFound, "backup", path, err)
	}
	if err != nil {
		return "", model.NewError(model.KindIO, "backup", path, err)
	}
	if info.IsDir() {
		return "", model.NewError(model.KindIO, "backup", path, errors.New("is a directory"))
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	base := BackupPath(path, now())

	for n := 0; n < maxBackupCollisions; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		dst, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", model.NewError(model.KindIO, "backup", path, err)
		}

		if err := copyInto(dst, path); err != nil {
			os.Remove(candidate)
			return "", model.NewError(model.KindIO, "backup", path, err)
		}
		return candidate, nil
	}

	return "", model.NewError(model.KindIO, "backup", path,
		fmt.Errorf("no free backup name after %d attempts", maxBackupCollisions))
}

func copyInto(dst *os.File, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		dst.Close()
		return err
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
