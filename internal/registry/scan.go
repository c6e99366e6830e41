package registry

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"envman/internal/model"

	ignore "github.com/sabhiram/go-gitignore"
)

// ScanOptions tunes Scan. The zero value gives the plain rule.
type ScanOptions struct {
	// RespectGitignore skips files matched by <root>/.gitignore.
	RespectGitignore bool

	// OnDir is called once for every directory entered.
	OnDir func(path string)

	Logger *slog.Logger
}

// IsEnvFileName reports whether a basename is a .env file: exactly ".env" or
// anything starting with ".env.".
func IsEnvFileName(name string) bool {
	return name == ".env" || strings.HasPrefix(name, ".env.")
}

// Scan walks root and returns the absolute paths of every .env file beneath
// it, in walk order. Directories whose name starts with '.' are not entered
// (the root itself excepted) and symlinked directories are not followed.
// Unreadable subtrees are logged and skipped; only a missing or unreadable
// root is an error.
func Scan(root string, opts ScanOptions) ([]string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	root, err := filepath.Abs(model.ExpandTilde(root))
	if err != nil {
		return nil, model.NewError(model.KindIO, "scan", root, err)
	}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewError(model.KindNotFound, "scan", root, err)
	}
	if err != nil {
		return nil, model.NewError(model.KindIO, "scan", root, err)
	}
	if !info.IsDir() {
		return nil, model.NewError(model.KindValidation, "scan", root,
			errors.New("not a directory"))
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, model.NewError(model.KindIO, "scan", root, err)
	}

	var gitignore *ignore.GitIgnore
	if opts.RespectGitignore {
		gitignorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gitignore, err = ignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				logger.Warn("ignoring unreadable .gitignore", "path", gitignorePath, "error", err)
			}
		}
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "op", "scan", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if opts.OnDir != nil {
				opts.OnDir(path)
			}
			return nil
		}

		if !IsEnvFileName(d.Name()) {
			return nil
		}

		// check gitignore for files only, as directories may hold re-included files
		if gitignore != nil {
			rel, _ := filepath.Rel(root, path)
			if gitignore.MatchesPath(rel) {
				return nil
			}
		}

		found = append(found, path)
		return nil
	})
	if err != nil {
		return found, model.NewError(model.KindIO, "scan", root, err)
	}

	return found, nil
}
