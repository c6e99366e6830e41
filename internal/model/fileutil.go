package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde expands a leading ~ to the user's home directory.
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			return home
		}
	}
	return path
}

// LineContext is a line of a .env file together with its neighbours,
// used to show where a variable was defined.
type LineContext struct {
	Before2    string `json:"before2,omitempty"`
	Before1    string `json:"before1,omitempty"`
	Target     string `json:"target"`
	After1     string `json:"after1,omitempty"`
	After2     string `json:"after2,omitempty"`
	LineNumber int    `json:"lineNumber"`
	HasBefore2 bool   `json:"hasBefore2"`
	HasBefore1 bool   `json:"hasBefore1"`
	HasAfter1  bool   `json:"hasAfter1"`
	HasAfter2  bool   `json:"hasAfter2"`
	ErrorMsg   string `json:"error,omitempty"`
}

// GetLineContext reads a file and returns the target line with two lines of
// context on either side. Lines are split the same way the .env codec does.
func GetLineContext(filePath string, lineNumber int) LineContext {
	result := LineContext{
		LineNumber: lineNumber,
	}

	data, err := os.ReadFile(ExpandTilde(filePath))
	if err != nil {
		result.ErrorMsg = fmt.Sprintf("Could not read file: %v", err)
		return result
	}

	lines := SplitLines(string(data))
	// a trailing newline does not start another line
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	if lineNumber < 1 || lineNumber > len(lines) {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (file has %d lines)", lineNumber, len(lines))
		return result
	}

	result.Target = lines[lineNumber-1]

	if lineNumber > 2 {
		result.Before2 = lines[lineNumber-3]
		result.HasBefore2 = true
	}
	if lineNumber > 1 {
		result.Before1 = lines[lineNumber-2]
		result.HasBefore1 = true
	}

	if lineNumber < len(lines) {
		result.After1 = lines[lineNumber]
		result.HasAfter1 = true
	}
	if lineNumber+1 < len(lines) {
		result.After2 = lines[lineNumber+1]
		result.HasAfter2 = true
	}

	return result
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits text on CRLF, LF or lone CR.
func SplitLines(text string) []string {
	return strings.Split(lineBreaks.Replace(text), "\n")
}
