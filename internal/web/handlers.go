package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"envman/internal/assistant"
	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"
)

const maxJSONBody = 1 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return model.NewError(model.KindValidation, "decode request", "",
			fmt.Errorf("%w: %v", model.ErrInvalidInput, err))
	}
	return nil
}

// lookup resolves the {id} path value or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (model.RegisteredFile, bool) {
	file, ok := s.reg.Get(r.PathValue("id"))
	if !ok {
		writeNotFound(w, "Environment file not found")
	}
	return file, ok
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"files": s.reg.List()})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath string `json:"filePath"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeInvalid(w, "File path is required")
		return
	}

	path := model.ExpandTilde(req.FilePath)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		writeNotFound(w, "File does not exist")
		return
	} else if err != nil {
		s.writeError(w, r, model.NewError(model.KindIO, "register", path, err))
		return
	}
	if info.IsDir() {
		writeInvalid(w, "Path is a directory, not a file")
		return
	}

	file := s.reg.Register(path)
	s.logger.Info("registered env file", "id", file.ID, "path", file.Path)
	writeOK(w, map[string]any{"file": file})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	sess, err := envfile.Open(r.PathValue("id"), s.reg, s.backups)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sess.Close()

	writeOK(w, map[string]any{"data": sess.Document()})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Variables *model.Variables `json:"variables"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Variables == nil {
		writeInvalid(w, "Variables are required")
		return
	}

	sess, err := envfile.Open(r.PathValue("id"), s.reg, s.backups)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sess.Close()

	if err := sess.Replace(req.Variables); err != nil {
		s.writeError(w, r, err)
		return
	}
	backupPath, err := sess.Save()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("saved env file", "path", sess.File().Path, "backup", backupPath)
	writeOK(w, map[string]any{
		"message":    "Environment file updated successfully",
		"backupPath": backupPath,
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if !s.reg.Unregister(r.PathValue("id")) {
		writeNotFound(w, "Environment file not found")
		return
	}
	writeOK(w, map[string]any{"message": "Environment file removed from management"})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	file, ok := s.lookup(w, r)
	if !ok {
		return
	}

	backupPath, err := s.backups.Create(file.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"backupPath": backupPath})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	file, ok := s.lookup(w, r)
	if !ok {
		return
	}

	content, err := os.ReadFile(file.Path)
	if errors.Is(err, fs.ErrNotExist) {
		writeNotFound(w, "File does not exist on disk")
		return
	}
	if err != nil {
		s.writeError(w, r, model.NewError(model.KindIO, "download", file.Path, err))
		return
	}

	w.Header().Set("Content-Disposition", contentDisposition(file.Name))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(content)
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	sess, err := envfile.Open(r.PathValue("id"), s.reg, s.backups)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sess.Close()

	file := sess.File()
	var buf bytes.Buffer
	if err := envfile.WriteBundle(&buf, file.Name, sess.Document().Variables, time.Now()); err != nil {
		s.writeError(w, r, model.NewError(model.KindIO, "variants", file.Path, err))
		return
	}

	w.Header().Set("Content-Disposition", contentDisposition(envfile.BundleName(file.Name)))
	w.Header().Set("Content-Type", "application/zip")
	w.Write(buf.Bytes())
}

func (s *Server) handleLineContext(w http.ResponseWriter, r *http.Request) {
	file, ok := s.lookup(w, r)
	if !ok {
		return
	}

	line, err := strconv.Atoi(r.URL.Query().Get("line"))
	if err != nil {
		writeInvalid(w, "invalid line number")
		return
	}

	ctx := model.GetLineContext(file.Path, line)
	writeOK(w, map[string]any{"context": ctx})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Directory) == "" {
		writeInvalid(w, "Directory path is required")
		return
	}

	dir := model.ExpandTilde(req.Directory)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		writeNotFound(w, "Directory does not exist")
		return
	}

	found, err := registry.Scan(dir, registry.ScanOptions{
		RespectGitignore: s.cfg.Scan.RespectGitignore,
		Logger:           s.logger,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	newFiles := s.reg.RegisterNew(found)
	if newFiles == nil {
		newFiles = []model.RegisteredFile{}
	}
	s.logger.Info("scanned directory", "dir", dir, "found", len(found), "new", len(newFiles))
	writeOK(w, map[string]any{"newFiles": newFiles, "totalFound": len(found)})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models := s.assistant.Available()
	if models == nil {
		models = []assistant.ModelOption{}
	}
	writeOK(w, map[string]any{
		"models":       models,
		"defaultModel": s.cfg.Assistant.DefaultModel,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		assistant.Conversation
		FileID string `json:"fileId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Model == "" {
		req.Model = s.cfg.Assistant.DefaultModel
	}

	if req.FileID != "" {
		sess, err := envfile.Open(req.FileID, s.reg, s.backups)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Context = fileContext(sess.File(), sess.Document())
		sess.Close()
	}

	reply, err := s.assistant.Chat(r.Context(), req.Conversation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeOK(w, map[string]any{"reply": reply, "model": req.Model})
}

// fileContext describes the open file to the assistant. Secret values are
// never sent.
func fileContext(file model.RegisteredFile, doc *model.EnvDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user is editing %s with these variables:\n", file.Name)
	for pair := doc.Variables.Oldest(); pair != nil; pair = pair.Next() {
		value := pair.Value.Value
		if envfile.LooksSecret(pair.Key) {
			value = registry.Mask(value)
		}
		fmt.Fprintf(&b, "%s=%s\n", pair.Key, value)
	}
	return b.String()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   model.Version,
		"system": map[string]any{
			"uptime":     time.Since(s.started).Round(time.Second).String(),
			"goroutines": runtime.NumGoroutine(),
			"files":      s.reg.Len(),
			"memory": map[string]uint64{
				"heapAlloc": mem.HeapAlloc,
				"heapSys":   mem.HeapSys,
				"sys":       mem.Sys,
			},
		},
	})
}

var (
	unsafeFileNameChars = regexp.MustCompile(`[^\w\s.-]`)
	whitespaceRuns      = regexp.MustCompile(`\s+`)
)

const maxHeaderFileName = 100

// SanitizeFileName makes name safe for the plain filename= parameter.
func SanitizeFileName(name string) string {
	safe := unsafeFileNameChars.ReplaceAllString(name, "_")
	safe = whitespaceRuns.ReplaceAllString(safe, "_")
	if len(safe) > maxHeaderFileName {
		safe = safe[:maxHeaderFileName]
	}
	if safe == "" {
		return "untitled"
	}
	return safe
}

func contentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		SanitizeFileName(name), url.PathEscape(name))
}
