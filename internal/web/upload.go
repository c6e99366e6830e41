package web

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"envman/internal/model"
)

const (
	uploadField     = "envFile"
	multipartMemory = 1 << 20
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Upload.MaxBytes
	maxFiles := s.cfg.Upload.MaxFiles

	// room for every file plus the form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*int64(maxFiles)+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error: fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20),
				Code:  "FILE_TOO_LARGE",
			})
			return
		}
		writeInvalid(w, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeInvalid(w, "No file uploaded")
		return
	}
	if len(headers) > maxFiles {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: fmt.Sprintf("Too many files. Maximum is %d files.", maxFiles),
			Code:  "TOO_MANY_FILES",
		})
		return
	}
	for _, h := range headers {
		if !strings.Contains(h.Filename, ".env") {
			writeInvalid(w, "Only .env files are allowed")
			return
		}
		if h.Size > maxBytes {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error: fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20),
				Code:  "FILE_TOO_LARGE",
			})
			return
		}
	}

	dest := strings.TrimSpace(r.FormValue("destination"))
	if dest == "" {
		dest = s.cfg.UploadDir()
	}
	dest = model.ExpandTilde(dest)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		s.writeError(w, r, model.NewError(model.KindIO, "upload", dest, err))
		return
	}

	var files []model.RegisteredFile
	for _, h := range headers {
		target := filepath.Join(dest, filepath.Base(h.Filename))
		if err := saveUpload(h, target); err != nil {
			s.writeError(w, r, err)
			return
		}
		file := s.reg.Register(target)
		s.logger.Info("uploaded env file", "id", file.ID, "path", file.Path, "size", h.Size)
		files = append(files, file)
	}

	writeOK(w, map[string]any{"file": files[0], "files": files})
}

// saveUpload copies an uploaded part to target. An existing file is never
// replaced.
func saveUpload(h *multipart.FileHeader, target string) error {
	src, err := h.Open()
	if err != nil {
		return model.NewError(model.KindIO, "upload", target, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return model.NewError(model.KindValidation, "upload", target, model.ErrExists)
	}
	if err != nil {
		return model.NewError(model.KindIO, "upload", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return model.NewError(model.KindIO, "upload", target, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return model.NewError(model.KindIO, "upload", target, err)
	}
	return nil
}
