package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"envman/internal/assistant"
	"envman/internal/config"
	"envman/internal/envfile"
	"envman/internal/mcpserver"
	"envman/internal/model"
	"envman/internal/registry"
	"envman/internal/tui"
	"envman/internal/web"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/tcnksm/go-latest"
)

func checkUpdate(currentVer string) {
	githubTag := &latest.GithubTag{
		Owner:      model.RepoOwner,
		Repository: model.RepoName,
	}

	res, err := latest.Check(githubTag, currentVer)
	if err != nil {
		return // Silently fail
	}

	if res.Outdated {
		fmt.Printf("\n✨ A new version is available: %s (you have %s)\n", res.Current, currentVer)
		fmt.Printf("👉 Download it from https://github.com/%s/%s/releases\n", model.RepoOwner, model.RepoName)
	} else if pflag.Lookup("update").Changed {
		fmt.Printf("✅ You are using the latest version: %s\n", currentVer)
	}
}

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: envman [options]\n\n")
		fmt.Fprintf(os.Stderr, "envman finds, shows and edits the .env files below a directory.\n")
		fmt.Fprintf(os.Stderr, "Every save backs up the previous file next to it first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  envman                 # Start TUI mode\n")
		fmt.Fprintf(os.Stderr, "  envman --web           # Serve the web UI on port 3001\n")
		fmt.Fprintf(os.Stderr, "  envman --dir ~/src -r  # Print a report of the .env files in ~/src\n")
		fmt.Fprintf(os.Stderr, "  envman --json          # Output the catalog as JSON\n")
		fmt.Fprintf(os.Stderr, "  envman --mcp           # Serve MCP tools on stdio\n")
	}

	jsonFlag := pflag.BoolP("json", "j", false, "Output the discovered files as JSON")
	reportFlag := pflag.BoolP("report", "r", false, "Print a report of the discovered files (CLI mode)")
	outputFlag := pflag.StringP("output", "o", "", "Save report to the specified file (combined with --report)")
	verboseFlag := pflag.BoolP("verbose", "v", false, "List every variable in the report and log at debug level")
	webFlag := pflag.BoolP("web", "w", false, "Start Web Mode")
	portFlag := pflag.Int("port", 0, "Port for Web Mode (default from config, 3001)")
	dirFlag := pflag.String("dir", "", "Directory to scan (default: parent of the working directory)")
	mcpFlag := pflag.Bool("mcp", false, "Serve MCP tools over stdio")
	configFlag := pflag.String("config", "", "Config file (default $XDG_CONFIG_HOME/envman/config.yaml)")
	versionFlag := pflag.BoolP("version", "V", false, "Print version information")
	updateFlag := pflag.BoolP("update", "u", false, "Check for a newer release")
	helpFlag := pflag.BoolP("help", "h", false, "Show this help message")
	pflag.Parse()

	if *helpFlag {
		pflag.Usage()
		return
	}

	if *versionFlag {
		fmt.Printf("envman version %s\n", model.Version)
		return
	}

	if *updateFlag {
		checkUpdate(model.Version)
		return
	}

	if err := config.LoadProcessEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *portFlag != 0 {
		cfg.Server.Port = *portFlag
	}
	if *dirFlag != "" {
		cfg.Scan.Root = model.ExpandTilde(*dirFlag)
	}
	if *verboseFlag {
		cfg.Log.Level = "debug"
	}

	logger := config.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	reg := registry.New("")
	backups := envfile.NewBackups()
	scanOpts := registry.ScanOptions{
		RespectGitignore: cfg.Scan.RespectGitignore,
		Logger:           logger,
	}

	if *mcpFlag {
		runMcpMode(reg, backups, cfg, scanOpts, logger)
		return
	}

	if *webFlag {
		runWebMode(reg, backups, cfg, scanOpts, logger)
		return
	}

	if *reportFlag {
		runReportMode(reg, cfg, scanOpts, *outputFlag, *verboseFlag)
		return
	}

	if *jsonFlag {
		runJsonMode(reg, cfg, scanOpts)
		return
	}

	// Default: TUI
	runTuiMode(reg, backups, cfg, scanOpts)
}

// startupScan fills the registry from the scan root. Failure leaves it empty.
func startupScan(reg *registry.Registry, root string, opts registry.ScanOptions) {
	found, err := registry.Scan(root, opts)
	if err != nil {
		opts.Logger.Warn("startup scan failed", "root", root, "error", err)
		return
	}
	added := reg.RegisterNew(found)
	opts.Logger.Info("startup scan", "root", root, "found", len(found), "registered", len(added))
}

func runWebMode(reg *registry.Registry, backups *envfile.Backups, cfg config.Config, scanOpts registry.ScanOptions, logger *slog.Logger) {
	startupScan(reg, cfg.Scan.Root, scanOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := web.StartServer(ctx, cfg.Server.Port, web.Options{
		Registry:  reg,
		Backups:   backups,
		Assistant: newAssistant(cfg, logger),
		Config:    cfg,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("web server failed", "error", err)
		os.Exit(1)
	}
}

func newAssistant(cfg config.Config, logger *slog.Logger) *assistant.Client {
	return assistant.New(assistant.Options{
		Timeout:     cfg.Assistant.Timeout,
		Retries:     cfg.Assistant.Retries,
		RetryDelay:  cfg.Assistant.RetryDelay,
		MaxTokens:   cfg.Assistant.MaxTokens,
		Temperature: cfg.Assistant.Temperature,
		History:     cfg.Assistant.History,
		Credentials: assistant.CredentialsFromEnv(),
		Referer:     fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		Logger:      logger,
	})
}

func runMcpMode(reg *registry.Registry, backups *envfile.Backups, cfg config.Config, scanOpts registry.ScanOptions, logger *slog.Logger) {
	// stdout carries the protocol
	startupScan(reg, cfg.Scan.Root, scanOpts)

	err := mcpserver.Serve(&mcpserver.Tools{
		Registry:         reg,
		Backups:          backups,
		RespectGitignore: cfg.Scan.RespectGitignore,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

// scanWithSpinner runs the startup scan behind a spinner on stderr.
func scanWithSpinner(reg *registry.Registry, root string, opts registry.ScanOptions) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("scanning "+root),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	opts.OnDir = func(string) { bar.Add(1) }

	found, err := registry.Scan(root, opts)
	bar.Finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %s\n", root, model.Message(err))
		os.Exit(1)
	}
	reg.RegisterNew(found)
}

func runReportMode(reg *registry.Registry, cfg config.Config, scanOpts registry.ScanOptions, outputFile string, verbose bool) {
	scanWithSpinner(reg, cfg.Scan.Root, scanOpts)

	report := registry.GenerateReport(reg.List(), verbose)

	if outputFile != "" {
		err := os.WriteFile(outputFile, []byte(report), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report to %s: %v\n", outputFile, err)
			os.Exit(1)
		}
		fmt.Printf("Report saved to %s\n", outputFile)
	} else {
		fmt.Println(report)
	}
}

func runJsonMode(reg *registry.Registry, cfg config.Config, scanOpts registry.ScanOptions) {
	scanWithSpinner(reg, cfg.Scan.Root, scanOpts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(registry.Summarize(reg.List()))
}

func runTuiMode(reg *registry.Registry, backups *envfile.Backups, cfg config.Config, scanOpts registry.ScanOptions) {
	// keep log lines off the alternate screen
	scanOpts.Logger = slog.New(slog.DiscardHandler)

	m := tui.InitialModel(reg, backups, cfg.Scan.Root, scanOpts)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
