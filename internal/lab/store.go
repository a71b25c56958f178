// Package lab locates lab directories and persists their configuration.
//
// A lab root is any directory holding labcmdr/labconfig.json. The file is
// re-read on every access and replaced atomically on every write; writers
// serialize on an advisory lock next to it.
package lab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/tree"
)

// Marker layout
const (
	MarkerDir  = "labcmdr"
	MarkerFile = "labconfig.json"
	LogFile    = "httpserver.log"
)

// MarkerPath returns the marker directory for a lab root
func MarkerPath(root string) string {
	return filepath.Join(root, MarkerDir)
}

// ConfigPath returns the lab config file for a lab root
func ConfigPath(root string) string {
	return filepath.Join(root, MarkerDir, MarkerFile)
}

// LogPath returns the file server log for a lab root
func LogPath(root string) string {
	return filepath.Join(root, MarkerDir, LogFile)
}

// FindRoot walks from start (the working directory when empty) up to the
// filesystem root and returns the first directory holding the marker file.
func FindRoot(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		start = wd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		if fsutil.Exists(ConfigPath(dir)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.LabNotFound(start)
		}
		dir = parent
	}
}

// Load reads the lab config under root and fills in keys added since the
// file was written. Present keys are never changed.
func Load(root string) (*Config, error) {
	path := ConfigPath(root)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if fsutil.IsDir(MarkerPath(root)) {
				return nil, errors.ConfigMissing(path)
			}
			return nil, errors.LabNotFound(root)
		}
		return nil, fmt.Errorf("failed to read lab config: %w", err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, errors.ConfigCorrupt(path, err)
	}
	tree.Fill(doc, templateDoc())

	cfg := &Config{}
	if err := remarshal(doc, cfg); err != nil {
		return nil, errors.ConfigCorrupt(path, err)
	}
	cfg.doc = doc
	return cfg, nil
}

// Save writes cfg under root, replacing the file atomically
func Save(root string, cfg *Config) error {
	return withLock(root, func() error {
		return write(root, cfg)
	})
}

// Update re-reads the config under the write lock, applies fn and saves the
// result. Concurrent updates from the server and the CLI cannot lose each
// other's changes.
func Update(root string, fn func(*Config) error) error {
	return withLock(root, func() error {
		cfg, err := Load(root)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		return write(root, cfg)
	})
}

func write(root string, cfg *Config) error {
	doc, err := cfg.Document()
	if err != nil {
		return err
	}
	data, err := encodeDoc(doc)
	if err != nil {
		return fmt.Errorf("failed to encode lab config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("failed to save lab config: %w", err)
	}
	cfg.doc = doc
	logger.Debug("Saved lab config %s", ConfigPath(root))
	return nil
}

// Document returns the config as it will be written: the loaded document
// with the typed fields laid over it. Fields whose typed value is unchanged
// since load keep their original representation.
func (c *Config) Document() (tree.Map, error) {
	typed, err := typedDoc(c)
	if err != nil {
		return nil, err
	}
	if c.doc == nil {
		return typed, nil
	}

	var loaded tree.Map
	prev := &Config{}
	if err := remarshal(c.doc, prev); err == nil {
		loaded, _ = typedDoc(prev)
	}

	doc := tree.Clone(c.doc).(tree.Map)
	for section, v := range typed {
		fields, _ := v.(tree.Map)
		dst, ok := doc[section].(tree.Map)
		if !ok {
			doc[section] = fields
			continue
		}
		before, _ := loaded[section].(tree.Map)
		for key, val := range fields {
			if _, present := dst[key]; present && before != nil && reflect.DeepEqual(before[key], val) {
				continue
			}
			dst[key] = val
		}
	}
	return doc, nil
}

// templateDoc is the canonical shape every lab config is filled against
func templateDoc() tree.Map {
	doc, err := typedDoc(&Config{Network: Network{FQDN: []string{}}})
	if err != nil {
		panic(fmt.Sprintf("lab: template does not encode: %v", err))
	}
	return doc
}

func typedDoc(c *Config) (tree.Map, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lab config: %w", err)
	}
	return decodeDoc(data)
}

func decodeDoc(data []byte) (tree.Map, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc tree.Map
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("top-level value must be an object")
	}
	return doc, nil
}

func encodeDoc(doc tree.Map) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func remarshal(doc tree.Map, cfg *Config) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}
