package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ksyq12/labcmdr/internal/tree"
)

var pathSuffixes = []string{"_root", "_dir", "_directory", "_file"}

// isPathKey reports whether a key name marks its value as a filesystem path
func isPathKey(key string) bool {
	for _, s := range pathSuffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// ExpandPaths expands, in place, every non-empty string leaf whose key looks
// like a path or whose value contains $ or ~. Lists are left alone.
func ExpandPaths(m tree.Map) {
	tree.Walk(m, func(_, key string, v interface{}) interface{} {
		s, ok := v.(string)
		if !ok || s == "" {
			return v
		}
		if isPathKey(key) || strings.ContainsAny(s, "$~") {
			return ExpandPath(s)
		}
		return v
	})
}

// ExpandPath expands environment variables (unset ones are left as written),
// a leading ~ and resolves the result to an absolute path.
func ExpandPath(p string) string {
	p = os.Expand(p, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})

	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}

	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// LabPath resolves a server path setting against a lab root
func LabPath(labRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(labRoot, p)
}
