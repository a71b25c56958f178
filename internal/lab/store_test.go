package lab

import (
	"bytes"
	"encoding/json"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ksyq12/labcmdr/internal/errors"
	"golang.org/x/sys/unix"
)

func writeRaw(t *testing.T, root, content string) {
	t.Helper()
	if err := os.MkdirAll(MarkerPath(root), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(root), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func decodeFile(t *testing.T, root string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("saved file does not parse: %v", err)
	}
	return m
}

func TestLoad_Errors(t *testing.T) {
	t.Run("no marker directory", func(t *testing.T) {
		_, err := Load(t.TempDir())
		if !errors.Is(err, errors.ErrLabNotFound) {
			t.Errorf("expected LabNotFound, got %v", err)
		}
	})

	t.Run("marker directory without file", func(t *testing.T) {
		root := t.TempDir()
		_ = os.MkdirAll(MarkerPath(root), 0755)
		_, err := Load(root)
		if !errors.Is(err, errors.ErrConfigMissing) {
			t.Errorf("expected ConfigMissing, got %v", err)
		}
	})

	corrupt := []struct {
		name    string
		content string
	}{
		{"truncated", `{"metadata": {"name": "forest"`},
		{"not an object", `[1, 2, 3]`},
		{"null", `null`},
		{"wrong field type", `{"runtime": {"server_port": "nine thousand"}}`},
	}
	for _, tt := range corrupt {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeRaw(t, root, tt.content)
			_, err := Load(root)
			if !errors.Is(err, errors.ErrConfigCorrupt) {
				t.Errorf("expected ConfigCorrupt, got %v", err)
			}
			// never silently reset
			data, _ := os.ReadFile(ConfigPath(root))
			if string(data) != tt.content {
				t.Error("corrupt file was modified")
			}
		})
	}
}

func TestSaveLoad_RoundTripIdempotent(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, `{
  "metadata": {"name": "Forest", "platform": "htb", "season": 9, "notes": "<b>&</b>"},
  "network": {"ip_address": "10.10.10.161", "fqdn": ["forest.htb", "htb.local"]},
  "custom_section": {"nested": {"deep": [1, 2.50, "x"]}}
}`)

	roundTrip := func() []byte {
		cfg, err := Load(root)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if err := Save(root, cfg); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		data, _ := os.ReadFile(ConfigPath(root))
		return data
	}

	first := roundTrip()
	second := roundTrip()
	if !bytes.Equal(first, second) {
		t.Errorf("second save changed the file:\n%s\n---\n%s", first, second)
	}
}

func TestLoad_FillsMissingKeysWithoutOverwriting(t *testing.T) {
	root := t.TempDir()
	original := `{
  "metadata": {"name": "Forest", "season": 9, "machine_name": "forest", "created": null},
  "network": {"ip_address": "10.10.10.161", "fqdn": null},
  "credentials": {"username": "svc-alfresco"},
  "extra": {"price": 1.50, "list": ["a", {"b": true}]}
}`
	writeRaw(t, root, original)

	before := map[string]interface{}{}
	dec := json.NewDecoder(strings.NewReader(original))
	dec.UseNumber()
	_ = dec.Decode(&before)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Metadata.Name != "Forest" || cfg.Metadata.Season.String() != "9" {
		t.Errorf("typed values wrong: %+v", cfg.Metadata)
	}
	if cfg.Runtime.ServerRunning || cfg.Runtime.ServerPort != nil {
		t.Errorf("runtime should be filled from template: %+v", cfg.Runtime)
	}
	if err := Save(root, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	after := decodeFile(t, root)
	for section, v := range before {
		bsec := v.(map[string]interface{})
		asec, ok := after[section].(map[string]interface{})
		if !ok {
			t.Fatalf("section %s lost", section)
		}
		for key, bv := range bsec {
			if !reflect.DeepEqual(asec[key], bv) {
				t.Errorf("%s.%s changed: %#v -> %#v", section, key, bv, asec[key])
			}
		}
	}

	rt, ok := after["runtime"].(map[string]interface{})
	if !ok {
		t.Fatal("runtime section not added")
	}
	for _, key := range []string{"server_running", "server_port", "server_pid", "server_started_at", "server_log", "server_ip"} {
		if _, ok := rt[key]; !ok {
			t.Errorf("runtime.%s not added", key)
		}
	}
	meta := after["metadata"].(map[string]interface{})
	if _, ok := meta["platform"]; !ok {
		t.Error("metadata.platform not added")
	}
}

func TestSave_CrashBeforeRenameKeepsOriginal(t *testing.T) {
	root := t.TempDir()
	makeLab(t, root)
	original, _ := os.ReadFile(ConfigPath(root))

	// a crash between temp write and rename leaves a stray temp file behind
	stray := MarkerPath(root) + "/." + MarkerFile + ".123.tmp"
	if err := os.WriteFile(stray, []byte(`{"metadata": {"name": "half-writ`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load after crash failed: %v", err)
	}
	data, _ := os.ReadFile(ConfigPath(root))
	if !bytes.Equal(data, original) {
		t.Error("original file changed")
	}

	cfg.Metadata.Name = "renamed"
	if err := Save(root, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if reloaded.Metadata.Name != "renamed" {
		t.Errorf("new content not visible after rename: %q", reloaded.Metadata.Name)
	}
}

func TestUpdate_ConcurrentWritersKeepEveryChange(t *testing.T) {
	root := t.TempDir()
	makeLab(t, root)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- Update(root, func(c *Config) error {
				_, err := c.AddFQDN("host" + string(rune('a'+n)) + ".htb")
				return err
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Network.FQDN) != writers {
		t.Errorf("lost updates: got %d fqdns, want %d (%v)", len(cfg.Network.FQDN), writers, cfg.Network.FQDN)
	}
}

func TestUpdate_LockTimeout(t *testing.T) {
	root := t.TempDir()
	makeLab(t, root)

	old := lockTimeout
	lockTimeout = 150 * time.Millisecond
	t.Cleanup(func() { lockTimeout = old })

	f, err := os.OpenFile(MarkerPath(root)+"/"+lockFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		t.Fatal(err)
	}

	err = Update(root, func(*Config) error { return nil })
	if !errors.Is(err, errors.ErrLockTimeout) {
		t.Errorf("expected lock timeout, got %v", err)
	}
}

func TestUpdate_CallbackErrorSkipsWrite(t *testing.T) {
	root := t.TempDir()
	makeLab(t, root)
	before, _ := os.ReadFile(ConfigPath(root))

	err := Update(root, func(c *Config) error {
		c.Metadata.Name = "changed"
		return errors.Validation("nope")
	})
	if err == nil {
		t.Fatal("expected callback error")
	}
	after, _ := os.ReadFile(ConfigPath(root))
	if !bytes.Equal(before, after) {
		t.Error("file written despite callback error")
	}
}

func TestLoad_MetadataTagsKeepTheirForm(t *testing.T) {
	tests := []struct {
		name     string
		season   string
		wantText string
		wantInt  bool
	}{
		{name: "number", season: `9`, wantText: "9", wantInt: true},
		{name: "digit string", season: `"9"`, wantText: "9", wantInt: true},
		{name: "free text", season: `"S9"`, wantText: "S9"},
		{name: "null", season: `null`, wantText: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			original := `{"metadata": {"name": "forest", "season": ` + tt.season + `, "week": "Week 3", "year": 2025}}`
			writeRaw(t, root, original)

			cfg, err := Load(root)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Metadata.Season.String() != tt.wantText {
				t.Errorf("season = %q, want %q", cfg.Metadata.Season, tt.wantText)
			}
			if _, ok := cfg.Metadata.Season.Int(); ok != tt.wantInt {
				t.Errorf("season numeric = %v, want %v", ok, tt.wantInt)
			}
			if y, ok := cfg.Metadata.Year.Int(); !ok || y != 2025 {
				t.Errorf("year = %v", cfg.Metadata.Year)
			}

			if err := Save(root, cfg); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			meta := decodeFile(t, root)["metadata"].(map[string]interface{})
			var wantSeason interface{}
			_ = json.Unmarshal([]byte(tt.season), &wantSeason)
			if n, ok := meta["season"].(json.Number); ok {
				if tt.season != n.String() {
					t.Errorf("season saved as %v, want %s", n, tt.season)
				}
			} else if !reflect.DeepEqual(meta["season"], wantSeason) {
				t.Errorf("season saved as %#v, want %s", meta["season"], tt.season)
			}
			if meta["week"] != "Week 3" {
				t.Errorf("week saved as %#v", meta["week"])
			}
			if n, ok := meta["year"].(json.Number); !ok || n.String() != "2025" {
				t.Errorf("year saved as %#v", meta["year"])
			}
		})
	}
}

func TestLoad_MetadataTagRejectsObjects(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, `{"metadata": {"season": {"n": 9}}}`)

	if _, err := Load(root); !errors.Is(err, errors.ErrConfigCorrupt) {
		t.Errorf("expected ConfigCorrupt, got %v", err)
	}
}
