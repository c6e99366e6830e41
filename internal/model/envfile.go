package model

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// VariableEntry is a single KEY=VALUE pair from a .env file.
type VariableEntry struct {
	Key        string `json:"key,omitempty"`
	Value      string `json:"value"`
	LineNumber int    `json:"lineNumber,omitempty"` // 1-based source line, 0 when created in memory
}

// Variables is an insertion-ordered mapping of key to entry.
type Variables = orderedmap.OrderedMap[string, VariableEntry]

// NewVariables returns an empty ordered mapping.
func NewVariables() *Variables {
	return orderedmap.New[string, VariableEntry]()
}

// EnvDocument is the parsed form of one .env file.
type EnvDocument struct {
	Variables  *Variables `json:"variables"`
	RawContent string     `json:"rawContent"` // diagnostic only, never written back
}

// NewEnvDocument returns an empty document carrying the raw text it was parsed from.
func NewEnvDocument(raw string) *EnvDocument {
	return &EnvDocument{
		Variables:  NewVariables(),
		RawContent: raw,
	}
}

// Keys returns the variable keys in mapping order.
func (d *EnvDocument) Keys() []string {
	return KeysOf(d.Variables)
}

// Lookup returns the value for key and whether it is present.
func (d *EnvDocument) Lookup(key string) (string, bool) {
	entry, ok := d.Variables.Get(key)
	return entry.Value, ok
}

// KeysOf returns the keys of vars in insertion order.
func KeysOf(vars *Variables) []string {
	keys := make([]string, 0, vars.Len())
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// RegisteredFile is a catalog record for a .env file known to the registry.
type RegisteredFile struct {
	ID           string `json:"id"`
	Path         string `json:"path"`         // absolute path
	Name         string `json:"name"`         // basename
	Directory    string `json:"directory"`    // parent directory
	RelativePath string `json:"relativePath"` // relative to the working directory
}
