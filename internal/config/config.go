package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creasty/defaults"
	"github.com/ksyq12/labcmdr/internal/tree"
	"gopkg.in/yaml.v3"
)

// Config is the typed view of the global configuration
type Config struct {
	Paths        Paths        `yaml:"paths"`
	Network      Network      `yaml:"network"`
	Server       Server       `yaml:"server"`
	Scanning     Scanning     `yaml:"scanning"`
	Tools        Tools        `yaml:"tools"`
	Platforms    Platforms    `yaml:"platforms"`
	Behavior     Behavior     `yaml:"behavior"`
	Applications Applications `yaml:"applications"`
	System       System       `yaml:"system"`
}

// Paths holds directory locations
type Paths struct {
	LabsRoot  string `yaml:"labs_root" default:"~/Labs"`
	ConfigDir string `yaml:"config_dir" default:"~/.config/labcmdr"`
}

// Network selects the attacker-facing interface
type Network struct {
	Interface          string   `yaml:"interface" default:"tun0"`
	FallbackInterfaces []string `yaml:"fallback_interfaces" default:"[\"tun1\",\"eth0\"]"`
	AutoDetect         bool     `yaml:"auto_detect" default:"false"`
}

// Interfaces returns the interface names to try, in order
func (n Network) Interfaces() []string {
	names := []string{n.Interface}
	if n.AutoDetect {
		names = append(names, n.FallbackInterfaces...)
	}
	return names
}

// Server holds file server defaults. ServePath and LootPath are relative to
// the lab root unless absolute.
type Server struct {
	DefaultPort       int    `yaml:"default_port" default:"8080"`
	AutoIncrementPort bool   `yaml:"auto_increment_port" default:"true"`
	EnableUpload      bool   `yaml:"enable_upload" default:"true"`
	ServePath         string `yaml:"serve_path" default:"server/serve"`
	LootPath          string `yaml:"loot_path" default:"server/loot"`
}

// Scanning holds scan command templates
type Scanning struct {
	Tool             string `yaml:"tool" default:"nmap"`
	InitialScanFlags string `yaml:"initial_scan_flags" default:"-sC -sV -oN scans/nmap/initial"`
	FullScanFlags    string `yaml:"full_scan_flags" default:"-p- -oN scans/nmap/full"`
	UDPScanFlags     string `yaml:"udp_scan_flags" default:"-sU --top-ports 100 -oN scans/nmap/udp"`
}

// Tools holds tool download preferences
type Tools struct {
	AutoDownload bool     `yaml:"auto_download" default:"false"`
	Categories   []string `yaml:"categories" default:"[\"linux\",\"windows\"]"`
}

// Platforms holds per-platform settings
type Platforms struct {
	HTB HTB `yaml:"htb"`
}

// HTB holds Hack The Box settings
type HTB struct {
	CurrentSeason int `yaml:"current_season" default:"9"`
}

// Behavior holds interaction policies
type Behavior struct {
	FileOverwrite      string `yaml:"file_overwrite" default:"prompt"`
	AutoUpdateHosts    bool   `yaml:"auto_update_hosts" default:"false"`
	ConfirmDestructive bool   `yaml:"confirm_destructive" default:"true"`
}

// Applications names external programs
type Applications struct {
	Editor      string `yaml:"editor" default:"nano"`
	FileManager string `yaml:"file_manager" default:"xdg-open"`
	Terminal    string `yaml:"terminal" default:"x-terminal-emulator"`
}

// System holds host integration settings
type System struct {
	HostsFile       string `yaml:"hosts_file" default:"/etc/hosts"`
	UseSudoForHosts bool   `yaml:"use_sudo_for_hosts" default:"true"`
}

// Overwrite policies for behavior.file_overwrite
const (
	OverwritePrompt = "prompt"
	OverwriteAll    = "all"
	OverwriteNone   = "none"
)

// configDir is the default config directory
const configDir = ".config/labcmdr"
const configFile = "config.yaml"

// New creates a Config holding the built-in defaults, unexpanded
func New() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return cfg
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

// ConfigPath returns the config file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Global is the loaded global configuration: defaults merged with the user
// file and path-expanded.
type Global struct {
	*Config

	// Path is the user file location
	Path string
	// Loaded is true when the user file existed and parsed
	Loaded bool
	// ParseErr reports why the user file was ignored, if it was
	ParseErr error

	tree tree.Map
}

// Load reads the user config from the default location. It never fails:
// problems with the user file are reported through ParseErr.
func Load() *Global {
	path, err := ConfigPath()
	if err != nil {
		g := fromDefaults("")
		g.ParseErr = err
		return g
	}
	return LoadFrom(path)
}

// LoadFrom reads the user config at path and merges it over the defaults
func LoadFrom(path string) *Global {
	base := mustTree(New())

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fromTree(path, base)
	}
	if err != nil {
		g := fromTree(path, base)
		g.ParseErr = fmt.Errorf("failed to read config: %w", err)
		return g
	}

	var user tree.Map
	if err := yaml.Unmarshal(data, &user); err != nil {
		g := fromTree(path, base)
		g.ParseErr = fmt.Errorf("failed to parse config: %w", err)
		return g
	}

	merged := tree.Merge(base, user)
	ExpandPaths(merged)
	cfg, err := decode(merged)
	if err != nil {
		g := fromTree(path, base)
		g.ParseErr = fmt.Errorf("failed to parse config: %w", err)
		return g
	}
	return &Global{Config: cfg, Path: path, Loaded: true, tree: merged}
}

func fromDefaults(path string) *Global {
	return fromTree(path, mustTree(New()))
}

// fromTree builds a Global from an unexpanded defaults tree
func fromTree(path string, base tree.Map) *Global {
	ExpandPaths(base)
	cfg, err := decode(base)
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not round-trip: %v", err))
	}
	return &Global{Config: cfg, Path: path, tree: base}
}

// Tree returns a copy of the merged configuration as nested maps
func (g *Global) Tree() tree.Map {
	return tree.Clone(g.tree).(tree.Map)
}

// Value resolves a dotted key, checking labOverride first, then the global
// config, then returning def. Missing keys or non-map intermediates fall
// through to the next source.
func (g *Global) Value(dotPath string, def interface{}, labOverride tree.Map) interface{} {
	if v, ok := tree.Get(labOverride, dotPath); ok {
		return v
	}
	if v, ok := tree.Get(g.tree, dotPath); ok {
		return v
	}
	return def
}

// Known reports whether dotPath names a built-in setting or section
func Known(dotPath string) bool {
	_, ok := tree.Get(mustTree(New()), dotPath)
	return ok
}

func mustTree(cfg *Config) tree.Map {
	m, err := toTree(cfg)
	if err != nil {
		panic(fmt.Sprintf("config: cannot encode defaults: %v", err))
	}
	return m
}

func toTree(cfg *Config) (tree.Map, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m tree.Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decode(m tree.Map) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
