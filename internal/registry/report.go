package registry

import (
	"fmt"
	"strings"

	"envman/internal/envfile"
	"envman/internal/model"
)

// FileSummary is one catalog entry together with what was read from disk.
type FileSummary struct {
	model.RegisteredFile
	Variables int      `json:"variables"`
	Secrets   int      `json:"secrets"`
	Keys      []string `json:"keys,omitempty"`
	IsBackup  bool     `json:"isBackup"`
	Error     string   `json:"error,omitempty"`
}

// Summarize reads every file and counts its variables. Unreadable files are
// reported, not skipped.
func Summarize(files []model.RegisteredFile) []FileSummary {
	out := make([]FileSummary, 0, len(files))
	for _, f := range files {
		s := FileSummary{
			RegisteredFile: f,
			IsBackup:       envfile.IsBackupName(f.Name),
		}
		doc, err := envfile.ReadFile(f.Path)
		if err != nil {
			s.Error = model.Message(err)
			out = append(out, s)
			continue
		}
		s.Keys = doc.Keys()
		s.Variables = len(s.Keys)
		for _, k := range s.Keys {
			if envfile.IsSecretKey(k) {
				s.Secrets++
			}
		}
		out = append(out, s)
	}
	return out
}

// GenerateReport renders a plain-text report of the catalog. In verbose mode
// every variable is listed with secret values masked.
func GenerateReport(files []model.RegisteredFile, verbose bool) string {
	var b strings.Builder

	b.WriteString("ENVMAN REPORT\n")
	b.WriteString("=============\n\n")
	fmt.Fprintf(&b, "Version: %s\n", model.Version)
	fmt.Fprintf(&b, "Files:   %d\n\n", len(files))

	if len(files) == 0 {
		b.WriteString("No .env files found.\n")
		return b.String()
	}

	totalVars, totalSecrets, backups := 0, 0, 0
	for i, s := range Summarize(files) {
		marker := model.IconLoaded
		switch {
		case s.Error != "":
			marker = model.IconMissing
		case s.IsBackup:
			marker = model.IconSaved
			backups++
		}

		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, marker, s.RelativePath)
		if s.Error != "" {
			fmt.Fprintf(&b, "      error: %s\n", s.Error)
			continue
		}
		fmt.Fprintf(&b, "      %d variables, %d secrets\n", s.Variables, s.Secrets)
		totalVars += s.Variables
		totalSecrets += s.Secrets

		if verbose {
			writeVariables(&b, s.Path)
		}
	}

	b.WriteString("\nSUMMARY\n")
	b.WriteString("-------\n")
	fmt.Fprintf(&b, "Variables: %d\n", totalVars)
	fmt.Fprintf(&b, "Secrets:   %d\n", totalSecrets)
	fmt.Fprintf(&b, "Backups:   %d\n", backups)

	return b.String()
}

func writeVariables(b *strings.Builder, path string) {
	doc, err := envfile.ReadFile(path)
	if err != nil {
		return
	}
	for pair := doc.Variables.Oldest(); pair != nil; pair = pair.Next() {
		value := pair.Value.Value
		icon := " "
		if envfile.LooksSecret(pair.Key) {
			value = Mask(value)
			icon = model.IconSecret
		}
		fmt.Fprintf(b, "      %s L%-4d %s=%s\n", icon, pair.Value.LineNumber, pair.Key, value)
	}
}

// Mask hides all but the first two characters of a secret value.
func Mask(value string) string {
	r := []rune(value)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-2)
}
