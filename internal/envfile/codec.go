// Package envfile reads, edits and writes .env files.
//
// The codec is deliberately lenient: lines it cannot understand are skipped,
// never reported. Writes always go through a Session so that a backup of the
// previous content exists before the file is overwritten.
package envfile

import (
	"os"
	"strings"
	"unicode"

	"envman/internal/model"
)

// Parse turns .env text into an ordered document. Blank lines, comments and
// lines without a KEY= prefix are ignored. A repeated key keeps its first
// position but takes the value and line number of its last occurrence.
// A leading byte order mark is dropped.
func Parse(text string) *model.EnvDocument {
	doc := model.NewEnvDocument(text)

	for i, line := range model.SplitLines(strings.TrimPrefix(text, "\uFEFF")) {
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		doc.Variables.Set(key, model.VariableEntry{
			Key:        key,
			Value:      value,
			LineNumber: i + 1,
		})
	}

	return doc
}

func parseLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}

	sep := strings.IndexByte(trimmed, '=')
	if sep <= 0 {
		return "", "", false
	}

	key = strings.TrimSpace(trimmed[:sep])
	if key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(trimmed[sep+1:])
	if isQuoted(value) {
		value = value[1 : len(value)-1]
	}
	return key, value, true
}

// isQuoted reports whether value is wrapped in one matching pair of quotes.
func isQuoted(value string) bool {
	if len(value) < 2 {
		return false
	}
	first := value[0]
	last := value[len(value)-1]
	if first != last {
		return false
	}
	return first == '"' || first == '\''
}

// Serialize renders vars as KEY=VALUE lines in mapping order. Values holding
// any Unicode whitespace, or that would otherwise lose their own quotes on the next parse,
// are wrapped in double quotes. Inner quotes are not escaped.
func Serialize(vars *model.Variables) string {
	var b strings.Builder
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		b.WriteString(pair.Key)
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(pair.Value.Value))
		b.WriteByte('\n')
	}
	return b.String()
}

func quoteIfNeeded(value string) string {
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 || isQuoted(value) {
		return `"` + value + `"`
	}
	return value
}

// ReadFile reads and parses the .env file at path.
func ReadFile(path string) (*model.EnvDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.NewError(model.KindIO, "read", path, err)
	}
	return Parse(string(data)), nil
}

// writeFile replaces the whole content of path with the serialized mapping.
// The mode of an existing file is kept.
func writeFile(path string, vars *model.Variables) error {
	if err := os.WriteFile(path, []byte(Serialize(vars)), 0o644); err != nil {
		return model.NewError(model.KindIO, "write", path, err)
	}
	return nil
}
