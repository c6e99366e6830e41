package model

// Centralized icons for the UI components
// Using simple single-width characters for consistent terminal rendering
const (
	IconSelected = "›" // Cursor row
	IconDirty    = "●" // Unsaved changes
	IconSaved    = "✓" // Saved since last edit
	IconLoaded   = " " // Loaded, untouched (no icon to reduce noise)
	IconMissing  = "✗" // File missing on disk
	IconSecret   = "∗" // Value looks like a credential
	IconNew      = "+" // Variable added in this session
)
