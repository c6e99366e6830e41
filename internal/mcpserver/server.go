// Package mcpserver exposes the registry and edit sessions as MCP tools over
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tools holds what the tool handlers act on.
type Tools struct {
	Registry         *registry.Registry
	Backups          envfile.Backer
	RespectGitignore bool
	Logger           *slog.Logger
}

// NewServer creates the MCP server with every tool registered.
func NewServer(t *Tools) *server.MCPServer {
	if t.Backups == nil {
		t.Backups = envfile.NewBackups()
	}
	if t.Logger == nil {
		t.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		"envman",
		model.Version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(mcp.NewTool("list_env_files",
		mcp.WithDescription("List the registered .env files with their ids and paths."),
	), t.handleList)

	s.AddTool(mcp.NewTool("read_env_file",
		mcp.WithDescription("Read the variables of a registered .env file in file order."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the registered file (see list_env_files)")),
	), t.handleRead)

	s.AddTool(mcp.NewTool("set_env_variable",
		mcp.WithDescription("Create or overwrite a variable and save the file. The previous file is backed up first."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the registered file")),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Variable name")),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("New value")),
	), t.handleSet)

	s.AddTool(mcp.NewTool("delete_env_variable",
		mcp.WithDescription("Remove a variable and save the file. The previous file is backed up first."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the registered file")),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Variable name")),
	), t.handleDelete)

	s.AddTool(mcp.NewTool("backup_env_file",
		mcp.WithDescription("Copy a registered file to a timestamped backup next to it."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Id of the registered file")),
	), t.handleBackup)

	s.AddTool(mcp.NewTool("scan_directory",
		mcp.WithDescription("Find .env files below a directory and register the ones not yet known."),
		mcp.WithString("directory",
			mcp.Required(),
			mcp.Description("Directory to scan")),
	), t.handleScan)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(t *Tools) error {
	return server.ServeStdio(NewServer(t))
}

func stringArg(request mcp.CallToolRequest, name string) (string, bool) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := args[name].(string)
	return v, ok
}

func requireArgs(request mcp.CallToolRequest, names ...string) (map[string]string, *mcp.CallToolResult) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v, ok := stringArg(request, n)
		if !ok || (v == "" && n != "value") {
			return nil, mcp.NewToolResultError(n + " parameter is required")
		}
		out[n] = v
	}
	return out, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *Tools) errorResult(op string, err error) *mcp.CallToolResult {
	t.Logger.Warn("tool failed", "tool", op, "kind", model.KindOf(err), "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %s", op, model.Message(err)))
}

func (t *Tools) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.Registry.List())
}

func (t *Tools) handleRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := requireArgs(request, "id")
	if bad != nil {
		return bad, nil
	}

	sess, err := envfile.Open(args["id"], t.Registry, t.Backups)
	if err != nil {
		return t.errorResult("read_env_file", err), nil
	}
	defer sess.Close()

	return jsonResult(map[string]any{
		"file":      sess.File(),
		"variables": sess.Document().Variables,
	})
}

func (t *Tools) handleSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := requireArgs(request, "id", "key", "value")
	if bad != nil {
		return bad, nil
	}
	return t.edit("set_env_variable", args["id"], func(s *envfile.Session) error {
		return s.Set(args["key"], args["value"])
	})
}

func (t *Tools) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := requireArgs(request, "id", "key")
	if bad != nil {
		return bad, nil
	}
	return t.edit("delete_env_variable", args["id"], func(s *envfile.Session) error {
		return s.Delete(args["key"])
	})
}

// edit loads id, applies change and saves with a backup.
func (t *Tools) edit(op, id string, change func(*envfile.Session) error) (*mcp.CallToolResult, error) {
	sess, err := envfile.Open(id, t.Registry, t.Backups)
	if err != nil {
		return t.errorResult(op, err), nil
	}
	defer sess.Close()

	if err := change(sess); err != nil {
		return t.errorResult(op, err), nil
	}
	backupPath, err := sess.Save()
	if err != nil {
		return t.errorResult(op, err), nil
	}

	t.Logger.Info("saved env file", "tool", op, "path", sess.File().Path, "backup", backupPath)
	return mcp.NewToolResultText(fmt.Sprintf("saved %s (backup: %s)", sess.File().Path, backupPath)), nil
}

func (t *Tools) handleBackup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := requireArgs(request, "id")
	if bad != nil {
		return bad, nil
	}

	file, ok := t.Registry.Get(args["id"])
	if !ok {
		return t.errorResult("backup_env_file", model.ErrNotFound), nil
	}
	backupPath, err := t.Backups.Create(file.Path)
	if err != nil {
		return t.errorResult("backup_env_file", err), nil
	}
	return mcp.NewToolResultText(backupPath), nil
}

func (t *Tools) handleScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, bad := requireArgs(request, "directory")
	if bad != nil {
		return bad, nil
	}

	found, err := registry.Scan(args["directory"], registry.ScanOptions{
		RespectGitignore: t.RespectGitignore,
		Logger:           t.Logger,
	})
	if err != nil {
		return t.errorResult("scan_directory", err), nil
	}

	newFiles := t.Registry.RegisterNew(found)
	if newFiles == nil {
		newFiles = []model.RegisteredFile{}
	}
	return jsonResult(map[string]any{
		"newFiles":   newFiles,
		"totalFound": len(found),
	})
}
