package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"envman/internal/assistant"
	"envman/internal/config"
	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"
)

//go:embed static/*
var staticFS embed.FS

//go:embed help.md
var helpMD string

const shutdownTimeout = 5 * time.Second

// Options carries the collaborators the server needs. Registry is required.
type Options struct {
	Registry  *registry.Registry
	Backups   envfile.Backer
	Assistant *assistant.Client
	Config    config.Config
	Logger    *slog.Logger
}

// Server is the HTTP surface over the registry and edit sessions.
type Server struct {
	reg       *registry.Registry
	backups   envfile.Backer
	assistant *assistant.Client
	cfg       config.Config
	logger    *slog.Logger
	started   time.Time
	mux       *http.ServeMux
}

// New wires the routes.
func New(opts Options) *Server {
	s := &Server{
		reg:       opts.Registry,
		backups:   opts.Backups,
		assistant: opts.Assistant,
		cfg:       opts.Config,
		logger:    opts.Logger,
		started:   time.Now(),
		mux:       http.NewServeMux(),
	}
	if s.backups == nil {
		s.backups = envfile.NewBackups()
	}
	if s.assistant == nil {
		s.assistant = assistant.New(assistant.Options{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	// Serve static files
	subFS, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/", http.FileServer(http.FS(subFS)))

	// API Endpoints
	s.mux.HandleFunc("GET /api/env-files", s.handleList)
	s.mux.HandleFunc("POST /api/env-files", s.handleRegister)
	s.mux.HandleFunc("GET /api/env-files/{id}", s.handleRead)
	s.mux.HandleFunc("PUT /api/env-files/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/env-files/{id}", s.handleUnregister)
	s.mux.HandleFunc("POST /api/env-files/{id}/backup", s.handleBackup)
	s.mux.HandleFunc("GET /api/env-files/{id}/download", s.handleDownload)
	s.mux.HandleFunc("GET /api/env-files/{id}/variants", s.handleVariants)
	s.mux.HandleFunc("GET /api/env-files/{id}/line-context", s.handleLineContext)
	s.mux.HandleFunc("POST /api/scan-directory", s.handleScan)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/models", s.handleModels)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/help", s.handleHelp)
	s.mux.HandleFunc("/api/", s.handleNotFound)

	return s
}

// Handler returns the routes wrapped in logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(s.mux))
}

// StartServer serves on port until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, port int, opts Options) error {
	s := New(opts)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	fmt.Printf("Starting envman web server at http://localhost:%d\n", port)
	fmt.Printf("Go to http://localhost:%d in your browser.\n", port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start))
		}
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("panic in handler", "method", r.Method, "path", r.URL.Path, "panic", v)
				writeJSON(w, http.StatusInternalServerError, errorBody{
					Error: "Internal server error",
					Code:  model.KindUnknown.Code(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeOK merges fields into a {"success": true} body.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeError maps err onto a status code and logs the detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := kind.HTTPStatus()

	attrs := []any{"method", r.Method, "path", r.URL.Path, "kind", kind, "error", err}
	var typed *model.Error
	if errors.As(err, &typed) {
		attrs = append(attrs, "op", typed.Op)
	}
	if status >= 500 {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Info("request rejected", attrs...)
	}

	writeJSON(w, status, errorBody{Error: model.Message(err), Code: kind.Code()})
}

func writeInvalid(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: model.KindValidation.Code()})
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: msg, Code: model.KindNotFound.Code()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeNotFound(w, "Endpoint not found")
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	// Use the embedded help content
	text := strings.ReplaceAll(helpMD, "{{VERSION}}", model.Version)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(text))
}
