package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/tree"
	"gopkg.in/yaml.v3"
)

const fileHeader = `# labcmdr configuration
# Values left out fall back to the built-in defaults.
# Paths may use ~ and environment variables.

`

var digitsPattern = regexp.MustCompile(`^-?[0-9]+$`)

// DefaultYAML renders the built-in defaults as a commented YAML document
func DefaultYAML() ([]byte, error) {
	data, err := yaml.Marshal(New())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	return append([]byte(fileHeader), data...), nil
}

// Init writes the default config to path. An existing file is only replaced
// when force is set.
func Init(path string, force bool) error {
	if fsutil.Exists(path) && !force {
		return fmt.Errorf("config already exists at %s", path)
	}
	return writeDefaults(path)
}

// Reset backs the current file up to <path>.backup and writes the defaults.
// It returns the backup path, or "" when there was nothing to back up.
func Reset(path string) (string, error) {
	backup := ""
	if data, err := os.ReadFile(path); err == nil {
		backup = path + ".backup"
		if err := os.WriteFile(backup, data, 0644); err != nil {
			return "", fmt.Errorf("failed to back up config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return backup, writeDefaults(path)
}

func writeDefaults(path string) error {
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetValue stores a coerced value at dotPath in the user file and returns
// the stored value. Only the user file is touched; defaults are not written.
func SetValue(path, dotPath, raw string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no config file at %s (run 'labcmdr config init' first)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var user tree.Map
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if user == nil {
		user = tree.Map{}
	}

	value := Coerce(raw)
	if err := tree.Set(user, dotPath, value); err != nil {
		return nil, fmt.Errorf("cannot set %s: %w", dotPath, err)
	}

	out, err := yaml.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, out, 0644); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}
	return value, nil
}

// Coerce converts command-line text into a typed YAML value: true/false to
// bool, integers to int, [a, b] to a list of strings. Anything else stays a
// string.
func Coerce(raw string) interface{} {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if digitsPattern.MatchString(raw) {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		items := []interface{}{}
		if inner == "" {
			return items
		}
		for _, part := range strings.Split(inner, ",") {
			items = append(items, strings.TrimSpace(part))
		}
		return items
	}
	return raw
}
