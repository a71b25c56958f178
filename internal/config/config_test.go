package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeUserConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "labcmdr")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.DefaultPort != 8080 {
		t.Errorf("default_port = %d, want 8080", cfg.Server.DefaultPort)
	}
	if !cfg.Server.AutoIncrementPort || !cfg.Server.EnableUpload {
		t.Error("server booleans should default to true")
	}
	if cfg.Network.Interface != "tun0" {
		t.Errorf("interface = %q, want tun0", cfg.Network.Interface)
	}
	if !reflect.DeepEqual(cfg.Network.FallbackInterfaces, []string{"tun1", "eth0"}) {
		t.Errorf("fallback_interfaces = %v", cfg.Network.FallbackInterfaces)
	}
	if cfg.Platforms.HTB.CurrentSeason != 9 {
		t.Errorf("current_season = %d, want 9", cfg.Platforms.HTB.CurrentSeason)
	}
	if cfg.Behavior.FileOverwrite != OverwritePrompt {
		t.Errorf("file_overwrite = %q", cfg.Behavior.FileOverwrite)
	}
	if cfg.Paths.LabsRoot != "~/Labs" {
		t.Errorf("labs_root should be unexpanded in New(), got %q", cfg.Paths.LabsRoot)
	}
}

func TestLoad_NoUserFile(t *testing.T) {
	home := setHome(t)

	g := Load()
	if g.ParseErr != nil {
		t.Fatalf("unexpected ParseErr: %v", g.ParseErr)
	}
	if g.Loaded {
		t.Error("Loaded should be false without a user file")
	}
	if g.Paths.LabsRoot != filepath.Join(home, "Labs") {
		t.Errorf("labs_root = %q, want expanded home path", g.Paths.LabsRoot)
	}
	if g.Path != filepath.Join(home, ".config", "labcmdr", "config.yaml") {
		t.Errorf("Path = %q", g.Path)
	}
}

func TestLoad_MergesNestedKeys(t *testing.T) {
	home := setHome(t)
	writeUserConfig(t, home, `
server:
  default_port: 9000
network:
  interface: wg0
custom:
  note: kept
`)

	g := Load()
	if g.ParseErr != nil {
		t.Fatalf("unexpected ParseErr: %v", g.ParseErr)
	}
	if !g.Loaded {
		t.Error("Loaded should be true")
	}
	if g.Server.DefaultPort != 9000 {
		t.Errorf("default_port = %d, want 9000", g.Server.DefaultPort)
	}
	if !g.Server.AutoIncrementPort {
		t.Error("sibling default auto_increment_port lost")
	}
	if g.Network.Interface != "wg0" {
		t.Errorf("interface = %q", g.Network.Interface)
	}
	if v := g.Value("custom.note", nil, nil); v != "kept" {
		t.Errorf("custom.note = %v", v)
	}
}

func TestLoad_MalformedFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "server: [unclosed"},
		{"wrong type", "server:\n  default_port: not-a-number\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := setHome(t)
			writeUserConfig(t, home, tt.content)

			g := Load()
			if g.ParseErr == nil {
				t.Fatal("expected ParseErr")
			}
			if !strings.Contains(g.ParseErr.Error(), "failed to parse config") {
				t.Errorf("ParseErr = %v", g.ParseErr)
			}
			if g.Server.DefaultPort != 8080 {
				t.Errorf("should fall back to defaults, got port %d", g.Server.DefaultPort)
			}
		})
	}
}

func TestExpandPaths(t *testing.T) {
	home := setHome(t)
	t.Setenv("LAB_BASE", "/opt/labs")
	os.Unsetenv("LABCMDR_UNSET_VAR")

	g := LoadFrom(writeUserConfig(t, home, `
paths:
  labs_root: $LAB_BASE/htb
system:
  hosts_file: /etc/hosts
applications:
  editor: code --wait
  terminal: ~/bin/term
scanning:
  tool: $LABCMDR_UNSET_VAR/nmap
`))

	if g.Paths.LabsRoot != "/opt/labs/htb" {
		t.Errorf("labs_root = %q", g.Paths.LabsRoot)
	}
	if g.Paths.ConfigDir != filepath.Join(home, ".config", "labcmdr") {
		t.Errorf("config_dir = %q", g.Paths.ConfigDir)
	}
	if g.System.HostsFile != "/etc/hosts" {
		t.Errorf("hosts_file = %q", g.System.HostsFile)
	}
	if g.Applications.Editor != "code --wait" {
		t.Errorf("non-path value should be untouched, got %q", g.Applications.Editor)
	}
	if g.Applications.Terminal != filepath.Join(home, "bin", "term") {
		t.Errorf("~ value should expand, got %q", g.Applications.Terminal)
	}
	if g.Scanning.Tool != "/$LABCMDR_UNSET_VAR/nmap" && !strings.Contains(g.Scanning.Tool, "$LABCMDR_UNSET_VAR") {
		t.Errorf("unset variables should be left as written, got %q", g.Scanning.Tool)
	}
	if g.Server.ServePath != "server/serve" {
		t.Errorf("serve_path is lab-relative and must not expand, got %q", g.Server.ServePath)
	}
}

func TestValue(t *testing.T) {
	setHome(t)
	g := Load()

	lab := map[string]interface{}{
		"network": map[string]interface{}{"ip_address": "10.10.10.5"},
		"server":  "not-a-map",
	}

	tests := []struct {
		name string
		path string
		def  interface{}
		want interface{}
	}{
		{"lab override wins", "network.ip_address", "", "10.10.10.5"},
		{"falls through to global", "network.interface", "", "tun0"},
		{"non-map lab intermediate falls through", "server.default_port", 0, 8080},
		{"missing everywhere uses default", "nope.key", "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Value(tt.path, tt.def, lab); got != tt.want {
				t.Errorf("Value(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestNetworkInterfaces(t *testing.T) {
	n := Network{Interface: "tun0", FallbackInterfaces: []string{"tun1", "eth0"}}
	if got := n.Interfaces(); !reflect.DeepEqual(got, []string{"tun0"}) {
		t.Errorf("Interfaces() = %v", got)
	}
	n.AutoDetect = true
	if got := n.Interfaces(); !reflect.DeepEqual(got, []string{"tun0", "tun1", "eth0"}) {
		t.Errorf("Interfaces() with auto_detect = %v", got)
	}
}

func TestValidate(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/nano", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	t.Run("valid", func(t *testing.T) {
		cfg := New()
		cfg.Paths.LabsRoot = filepath.Join(t.TempDir(), "Labs")
		ok, problems := Validate(cfg, found)
		if !ok {
			t.Fatalf("expected valid, got %v", problems)
		}
		if _, err := os.Stat(cfg.Paths.LabsRoot); err != nil {
			t.Errorf("labs_root should be created: %v", err)
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		base := t.TempDir()
		blocker := filepath.Join(base, "file")
		_ = os.WriteFile(blocker, nil, 0644)

		cfg := New()
		cfg.Paths.LabsRoot = filepath.Join(blocker, "Labs")
		cfg.Server.DefaultPort = 70000
		cfg.Behavior.FileOverwrite = "sometimes"

		ok, problems := Validate(cfg, missing)
		if ok {
			t.Fatal("expected invalid")
		}
		if len(problems) != 4 {
			t.Fatalf("expected 4 problems, got %d: %v", len(problems), problems)
		}
		joined := strings.Join(problems, "\n")
		for _, want := range []string{"labs_root", "invalid port 70000", `editor "nano"`, "file_overwrite"} {
			if !strings.Contains(joined, want) {
				t.Errorf("problems missing %q: %v", want, problems)
			}
		}
	})

	t.Run("editor with arguments", func(t *testing.T) {
		cfg := New()
		cfg.Paths.LabsRoot = t.TempDir()
		cfg.Applications.Editor = `"/opt/my editor/bin/edit" --wait`
		var looked string
		Validate(cfg, func(f string) (string, error) { looked = f; return f, nil })
		if looked != "/opt/my editor/bin/edit" {
			t.Errorf("looked up %q", looked)
		}
	})
}

func TestKnown(t *testing.T) {
	if !Known("server.default_port") || !Known("platforms.htb") {
		t.Error("built-in keys should be known")
	}
	if Known("server.nope") {
		t.Error("unknown key reported as known")
	}
}
