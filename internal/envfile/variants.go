package envfile

import (
	"archive/zip"
	"io"
	"strings"
	"time"

	"envman/internal/model"
)

// Placeholder written in place of secret values in the development rendition.
const DevPlaceholder = "dev_placeholder"

var (
	nonProductionMarkers = []string{"DEV", "TEST", "LOCAL"}
	secretMarkers        = []string{"PASSWORD", "SECRET", "KEY"}
)

// IsSecretKey reports whether key names a credential. Matching is on the
// upper-case markers only, so "api_key" is not a secret but "API_KEY" is.
func IsSecretKey(key string) bool {
	return containsAny(key, secretMarkers)
}

// LooksSecret is the case-insensitive form of IsSecretKey, used wherever a
// value is shown or sent rather than rewritten.
func LooksSecret(key string) bool {
	return IsSecretKey(strings.ToUpper(key))
}

// Production returns vars without the keys that only make sense outside
// production (names containing DEV, TEST or LOCAL).
func Production(vars *model.Variables) *model.Variables {
	out := model.NewVariables()
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		if containsAny(pair.Key, nonProductionMarkers) {
			continue
		}
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// Development returns vars with every secret value replaced by DevPlaceholder.
func Development(vars *model.Variables) *model.Variables {
	out := model.NewVariables()
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		entry := pair.Value
		if IsSecretKey(pair.Key) {
			entry.Value = DevPlaceholder
		}
		out.Set(pair.Key, entry)
	}
	return out
}

// Template returns vars with every value replaced by YOUR_<KEY>_HERE.
func Template(vars *model.Variables) *model.Variables {
	out := model.NewVariables()
	for pair := vars.Oldest(); pair != nil; pair = pair.Next() {
		entry := pair.Value
		entry.Value = "YOUR_" + pair.Key + "_HERE"
		out.Set(pair.Key, entry)
	}
	return out
}

// VariantBase is the stem used for the variant file names of a file called
// name: the first ".env" is removed, so ".env.local" becomes ".local".
func VariantBase(name string) string {
	return strings.Replace(name, ".env", "", 1)
}

// BundleName is the zip file name offered for download.
func BundleName(name string) string {
	base := strings.Trim(VariantBase(name), ".")
	if base == "" {
		base = "env"
	}
	return base + "_all_states.zip"
}

// WriteBundle writes a zip holding the current, production, development and
// template renditions of vars to w.
func WriteBundle(w io.Writer, name string, vars *model.Variables, modified time.Time) error {
	base := VariantBase(name)
	entries := []struct {
		name string
		vars *model.Variables
	}{
		{base + ".env", vars},
		{base + ".production.env", Production(vars)},
		{base + ".development.env", Development(vars)},
		{base + ".template.env", Template(vars)},
	}

	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := io.WriteString(f, Serialize(e.vars)); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
