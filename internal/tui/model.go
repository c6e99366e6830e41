package tui

import (
	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// InputPurpose says what the text input is currently collecting.
type InputPurpose int

const (
	InputNone InputPurpose = iota
	InputEdit              // new value for the selected variable
	InputAdd               // KEY=VALUE for a new variable
	InputOpen              // path of a file to register
)

// AppModel holds the TUI state.
type AppModel struct {
	// Dependencies
	Registry    *registry.Registry
	Backups     envfile.Backer
	ScanRoot    string
	ScanOptions registry.ScanOptions

	// Data
	Files   []model.RegisteredFile
	Missing map[string]bool // file id -> not on disk
	Session *envfile.Session
	Keys    []string        // variable keys of Session in file order
	Added   map[string]bool // keys created since the file was loaded
	Loading bool
	Err     error
	Status  string

	// UI State
	SelectedIdx    int // file list cursor
	VarSelectedIdx int // variable list cursor
	RightFocus     bool
	WindowSize     tea.WindowSizeMsg
	ShowContext    bool
	ShowHelp       bool
	HelpScrollY    int
	HelpContent    string
	ConfirmDiscard bool // a second key press drops unsaved edits

	// Input State
	InputMode   InputPurpose
	InputBuffer textinput.Model
}

// InitialModel returns the initial state. The first scan starts from Init.
func InitialModel(reg *registry.Registry, backups envfile.Backer, root string, opts registry.ScanOptions) AppModel {
	ti := textinput.New()
	ti.CharLimit = 4096
	ti.Width = 50

	if backups == nil {
		backups = envfile.NewBackups()
	}

	return AppModel{
		Registry:    reg,
		Backups:     backups,
		ScanRoot:    root,
		ScanOptions: opts,
		Loading:     true,
		Missing:     map[string]bool{},
		Added:       map[string]bool{},
		InputBuffer: ti,
		HelpContent: helpText,
	}
}

// SelectedFile returns the file under the cursor.
func (m AppModel) SelectedFile() (model.RegisteredFile, bool) {
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.Files) {
		return model.RegisteredFile{}, false
	}
	return m.Files[m.SelectedIdx], true
}

// SelectedKey returns the variable under the cursor.
func (m AppModel) SelectedKey() (string, bool) {
	if m.Session == nil || m.VarSelectedIdx < 0 || m.VarSelectedIdx >= len(m.Keys) {
		return "", false
	}
	return m.Keys[m.VarSelectedIdx], true
}

// Dirty reports whether the open file has unsaved edits.
func (m AppModel) Dirty() bool {
	return m.Session != nil && m.Session.Dirty()
}

const helpText = `envman

Files panel
  ↑/↓ j/k   move
  enter     open the selected file
  b         back up the selected file
  o         register a file by path
  r         rescan the scan root

Variables panel
  ↑/↓ j/k   move
  e         edit the selected value
  a         add KEY=VALUE
  x         delete the selected variable
  c         show the source lines around the variable
  s         save (the old file is backed up first)

Anywhere
  tab       switch panel
  ?         toggle this help
  esc       cancel input / close help
  q         quit

Saving rewrites the file as KEY=VALUE lines in the order shown.
Comments and blank lines are not kept; the backup has them.`
