package tui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"envman/internal/envfile"
	"envman/internal/model"
	"envman/internal/registry"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgScanDone reports a finished scan.
type MsgScanDone struct {
	Found int
	New   int
}

// MsgError indicates an error occurred.
type MsgError error

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		return m, nil

	case MsgScanDone:
		m.Loading = false
		m.refreshFiles()
		m.Status = fmt.Sprintf("Scan found %d files, %d new", msg.Found, msg.New)
		return m, nil

	case MsgError:
		m.Err = msg
		m.Loading = false
		return m, nil

	case tea.KeyMsg:
		if m.InputMode != InputNone {
			switch msg.Type {
			case tea.KeyEnter:
				value := m.InputBuffer.Value()
				purpose := m.InputMode
				m.InputMode = InputNone
				m.InputBuffer.Blur()
				m.submitInput(purpose, value)
				return m, nil
			case tea.KeyEsc:
				m.InputMode = InputNone
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowHelp {
			switch msg.String() {
			case "?", "esc", "q":
				m.ShowHelp = false
			case "up", "k":
				if m.HelpScrollY > 0 {
					m.HelpScrollY--
				}
			case "down", "j":
				m.HelpScrollY++
			}
			return m, nil
		}

		key := msg.String()
		if key != "q" && key != "enter" {
			m.ConfirmDiscard = false
		}

		switch key {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.Dirty() && !m.ConfirmDiscard {
				m.ConfirmDiscard = true
				m.Status = "Unsaved changes. Press q again to quit without saving, or s to save."
				return m, nil
			}
			return m, tea.Quit
		case "?":
			m.ShowHelp = true
			m.HelpScrollY = 0
		case "esc":
			m.ShowContext = false
			m.Err = nil
		case "tab":
			m.RightFocus = !m.RightFocus && m.Session != nil
		case "up", "k":
			if m.RightFocus {
				if m.VarSelectedIdx > 0 {
					m.VarSelectedIdx--
				}
			} else if m.SelectedIdx > 0 {
				m.SelectedIdx--
			}
		case "down", "j":
			if m.RightFocus {
				if m.VarSelectedIdx < len(m.Keys)-1 {
					m.VarSelectedIdx++
				}
			} else if m.SelectedIdx < len(m.Files)-1 {
				m.SelectedIdx++
			}
		case "enter":
			if !m.RightFocus {
				m.openSelected()
			}
		case "r":
			m.Loading = true
			return m, ScanCmd(m.Registry, m.ScanRoot, m.ScanOptions)
		case "o":
			return m, m.startInput(InputOpen, "", "path/to/.env")
		case "b":
			m.backupSelected()
		case "s":
			m.save()
		case "e":
			if k, ok := m.SelectedKey(); ok && m.RightFocus {
				value, _ := m.Session.Document().Lookup(k)
				return m, m.startInput(InputEdit, value, "")
			}
		case "a":
			if m.Session != nil {
				m.RightFocus = true
				return m, m.startInput(InputAdd, "", "KEY=VALUE")
			}
		case "x":
			if k, ok := m.SelectedKey(); ok && m.RightFocus {
				m.check(m.Session.Delete(k))
				delete(m.Added, k)
				m.refreshKeys()
				m.Status = "Deleted " + k
			}
		case "c":
			if m.RightFocus {
				m.ShowContext = !m.ShowContext
			}
		}
	}

	return m, cmd
}

func (m *AppModel) startInput(purpose InputPurpose, value, placeholder string) tea.Cmd {
	m.InputMode = purpose
	m.InputBuffer.Placeholder = placeholder
	m.InputBuffer.SetValue(value)
	m.InputBuffer.CursorEnd()
	m.InputBuffer.Focus()
	return textinput.Blink
}

func (m *AppModel) submitInput(purpose InputPurpose, value string) {
	switch purpose {
	case InputEdit:
		k, ok := m.SelectedKey()
		if !ok {
			return
		}
		if m.check(m.Session.Set(k, value)) {
			m.Status = "Changed " + k
		}

	case InputAdd:
		k, v, ok := strings.Cut(value, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			m.Err = errors.New("expected KEY=VALUE")
			return
		}
		_, existed := m.Session.Document().Lookup(k)
		if !m.check(m.Session.Set(k, strings.TrimSpace(v))) {
			return
		}
		if !existed {
			m.Added[k] = true
		}
		m.refreshKeys()
		for i, key := range m.Keys {
			if key == k {
				m.VarSelectedIdx = i
			}
		}
		m.Status = "Set " + k

	case InputOpen:
		path := strings.TrimSpace(value)
		if path == "" {
			return
		}
		if _, err := os.Stat(model.ExpandTilde(path)); errors.Is(err, fs.ErrNotExist) {
			m.Err = fmt.Errorf("file does not exist: %s", path)
			return
		}
		file, known := m.Registry.FindByPath(path)
		if !known {
			file = m.Registry.Register(path)
		}
		m.refreshFiles()
		for i, f := range m.Files {
			if f.ID == file.ID {
				m.SelectedIdx = i
			}
		}
		if known {
			m.Status = "Already registered: " + file.RelativePath
		} else {
			m.Status = "Registered " + file.RelativePath
		}
	}
}

func (m *AppModel) openSelected() {
	file, ok := m.SelectedFile()
	if !ok {
		return
	}
	if m.Dirty() && !m.ConfirmDiscard {
		m.ConfirmDiscard = true
		m.Status = "Unsaved changes. Press enter again to discard them, or s to save."
		return
	}
	m.ConfirmDiscard = false

	sess, err := envfile.Open(file.ID, m.Registry, m.Backups)
	if !m.check(err) {
		return
	}
	if m.Session != nil {
		m.Session.Close()
	}
	m.Session = sess
	m.Added = map[string]bool{}
	m.VarSelectedIdx = 0
	m.ShowContext = false
	m.RightFocus = true
	m.refreshKeys()
	m.Status = fmt.Sprintf("Loaded %s (%d variables)", file.RelativePath, len(m.Keys))
}

func (m *AppModel) save() {
	if m.Session == nil {
		return
	}
	backupPath, err := m.Session.Save()
	if !m.check(err) {
		return
	}
	m.Added = map[string]bool{}
	// line numbers now follow the rewritten file
	if m.check(m.Session.Load()) {
		m.refreshKeys()
	}
	m.Status = "Saved. Backup: " + backupPath
}

func (m *AppModel) backupSelected() {
	file, ok := m.SelectedFile()
	if m.RightFocus && m.Session != nil {
		file, ok = m.Session.File(), true
	}
	if !ok {
		return
	}
	backupPath, err := m.Backups.Create(file.Path)
	if m.check(err) {
		m.Status = "Backup created: " + backupPath
	}
}

// check records err for display and reports whether the call succeeded.
func (m *AppModel) check(err error) bool {
	if err != nil {
		m.Err = err
		return false
	}
	m.Err = nil
	return true
}

func (m *AppModel) refreshFiles() {
	m.Files = m.Registry.List()
	m.Missing = make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if _, err := os.Stat(f.Path); err != nil {
			m.Missing[f.ID] = true
		}
	}
	if m.SelectedIdx >= len(m.Files) {
		m.SelectedIdx = max(len(m.Files)-1, 0)
	}
}

func (m *AppModel) refreshKeys() {
	if m.Session == nil || m.Session.Document() == nil {
		m.Keys = nil
		return
	}
	m.Keys = m.Session.Document().Keys()
	if m.VarSelectedIdx >= len(m.Keys) {
		m.VarSelectedIdx = max(len(m.Keys)-1, 0)
	}
}

// ScanCmd scans root in the background and registers new files.
func ScanCmd(reg *registry.Registry, root string, opts registry.ScanOptions) tea.Cmd {
	return func() tea.Msg {
		found, err := registry.Scan(root, opts)
		if err != nil {
			return MsgError(err)
		}
		added := reg.RegisterNew(found)
		return MsgScanDone{Found: len(found), New: len(added)}
	}
}
