package config

import (
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
)

// LookPathFunc resolves an executable name on PATH
type LookPathFunc func(file string) (string, error)

// EditorCommand splits the configured editor into program and arguments
func (c *Config) EditorCommand() ([]string, error) {
	words, err := shellquote.Split(c.Applications.Editor)
	if err != nil {
		return nil, fmt.Errorf("cannot parse editor %q: %w", c.Applications.Editor, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("no editor configured")
	}
	return words, nil
}

// Validate checks the configuration and returns every problem found.
// labs_root is created if missing.
func Validate(c *Config, lookPath LookPathFunc) (bool, []string) {
	var problems []string

	if c.Paths.LabsRoot == "" {
		problems = append(problems, "paths.labs_root is empty")
	} else if err := os.MkdirAll(c.Paths.LabsRoot, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create labs_root %s: %v", c.Paths.LabsRoot, err))
	}

	if p := c.Server.DefaultPort; p < 1 || p > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d (must be 1-65535)", p))
	}

	if words, err := c.EditorCommand(); err != nil {
		problems = append(problems, err.Error())
	} else if _, err := lookPath(words[0]); err != nil {
		problems = append(problems, fmt.Sprintf("editor %q not found in PATH", words[0]))
	}

	switch c.Behavior.FileOverwrite {
	case OverwritePrompt, OverwriteAll, OverwriteNone:
	default:
		problems = append(problems, fmt.Sprintf("behavior.file_overwrite must be prompt, all or none (got %q)", c.Behavior.FileOverwrite))
	}

	if c.Network.Interface == "" {
		problems = append(problems, "network.interface is empty")
	}

	return len(problems) == 0, problems
}
