package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"sentinel not found", fmt.Errorf("load: %w", ErrNotFound), KindNotFound},
		{"fs not exist", fs.ErrNotExist, KindNotFound},
		{"io refined to permission", NewError(KindIO, "write", "/x", fs.ErrPermission), KindPermission},
		{"io refined to unavailable", NewError(KindIO, "read", "/x", syscall.EMFILE), KindUnavailable},
		{"io stays io", NewError(KindIO, "read", "/x", errors.New("disk on fire")), KindIO},
		{"explicit kind wins", NewError(KindValidation, "scan", "/x", fs.ErrNotExist), KindValidation},
		{"invalid state", fmt.Errorf("%w: closed", ErrInvalidState), KindValidation},
		{"missing credential", ErrMissingCredential, KindValidation},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"wrapped typed", fmt.Errorf("outer: %w", NewError(KindNetwork, "chat", "", errors.New("x"))), KindNetwork},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: KindOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestKindMappings(t *testing.T) {
	tests := []struct {
		kind      Kind
		status    int
		code      string
		retryable bool
	}{
		{KindValidation, http.StatusBadRequest, "VALIDATION_ERROR", false},
		{KindNotFound, http.StatusNotFound, "NOT_FOUND", false},
		{KindPermission, http.StatusForbidden, "PERMISSION_ERROR", false},
		{KindUnavailable, http.StatusServiceUnavailable, "SERVER_BUSY", false},
		{KindNetwork, http.StatusBadGateway, "NETWORK_ERROR", true},
		{KindIO, http.StatusInternalServerError, "IO_ERROR", false},
		{KindUnknown, http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}

	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.status {
			t.Errorf("%v: status %d, want %d", tt.kind, got, tt.status)
		}
		if got := tt.kind.Code(); got != tt.code {
			t.Errorf("%v: code %q, want %q", tt.kind, got, tt.code)
		}
		if got := tt.kind.Retryable(); got != tt.retryable {
			t.Errorf("%v: retryable %v, want %v", tt.kind, got, tt.retryable)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(KindIO, "read", "/srv/.env", errors.New("short read"))
	if got := err.Error(); got != "read /srv/.env: short read" {
		t.Errorf("Error() = %q", got)
	}
	if got := NewError(KindNetwork, "chat", "", errors.New("reset")).Error(); got != "chat: reset" {
		t.Errorf("Error() without path = %q", got)
	}

	notFound := NewError(KindNotFound, "read", "/srv/.env", fs.ErrNotExist)
	if got := Message(notFound); got != "File not found: /srv/.env" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(errors.New("secret internals")); got != "Internal server error" {
		t.Errorf("unknown errors must not leak: %q", got)
	}
	if got := Message(fmt.Errorf("%w: empty key", ErrInvalidInput)); got != "invalid input: empty key" {
		t.Errorf("validation message = %q", got)
	}
}

func TestGetLineContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("L1\r\nL2\nL3\rL4\nL5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := GetLineContext(path, 3)
	if ctx.ErrorMsg != "" {
		t.Fatal(ctx.ErrorMsg)
	}
	if ctx.Before2 != "L1" || ctx.Before1 != "L2" || ctx.Target != "L3" || ctx.After1 != "L4" || ctx.After2 != "L5" {
		t.Errorf("context = %+v", ctx)
	}

	first := GetLineContext(path, 1)
	if first.HasBefore1 || first.HasBefore2 || !first.HasAfter2 {
		t.Errorf("first line context = %+v", first)
	}
	last := GetLineContext(path, 5)
	if last.HasAfter1 || !last.HasBefore2 {
		t.Errorf("last line context = %+v", last)
	}

	if out := GetLineContext(path, 6); out.ErrorMsg == "" {
		t.Error("line past the end should report an error")
	}
	if missing := GetLineContext(path+".nope", 1); missing.ErrorMsg == "" {
		t.Error("missing file should report an error")
	}
}
