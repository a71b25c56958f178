package tree

import (
	"reflect"
	"testing"
)

func TestFill(t *testing.T) {
	tmpl := Map{
		"metadata": Map{"name": "", "platform": "", "season": nil},
		"runtime":  Map{"server_running": false, "server_port": nil},
		"network":  Map{"fqdn": []interface{}{}},
	}
	dst := Map{
		"metadata": Map{"name": "Forest", "custom": "kept"},
		"network":  "not-a-map",
	}

	got := Fill(dst, tmpl)

	meta := got["metadata"].(Map)
	if meta["name"] != "Forest" {
		t.Errorf("existing value overwritten: %v", meta["name"])
	}
	if meta["custom"] != "kept" {
		t.Errorf("unknown key dropped: %v", meta)
	}
	if _, ok := meta["platform"]; !ok {
		t.Error("missing template key not added")
	}
	if got["network"] != "not-a-map" {
		t.Errorf("scalar should not be replaced by template map, got %v", got["network"])
	}
	rt := got["runtime"].(Map)
	if rt["server_running"] != false {
		t.Errorf("runtime section not filled: %v", rt)
	}

	// template values must be copied, not aliased
	rt["server_port"] = 9000
	if tmpl["runtime"].(Map)["server_port"] != nil {
		t.Error("Fill aliased template map")
	}
}

func TestFillIdempotent(t *testing.T) {
	tmpl := Map{"a": Map{"b": 1, "c": Map{"d": 2}}}
	once := Fill(Map{"a": Map{"b": 5}}, tmpl)
	twice := Fill(Clone(once).(Map), tmpl)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Fill not idempotent: %v vs %v", once, twice)
	}
}

func TestMerge(t *testing.T) {
	base := Map{
		"server":  Map{"default_port": 8080, "auto_increment_port": true},
		"network": Map{"interface": "tun0", "fallback_interfaces": []interface{}{"tun1", "eth0"}},
	}
	override := Map{
		"server":  Map{"default_port": 9000},
		"network": Map{"fallback_interfaces": []interface{}{"wg0"}},
		"extra":   "x",
	}

	got := Merge(base, override)

	server := got["server"].(Map)
	if server["default_port"] != 9000 {
		t.Errorf("override should win, got %v", server["default_port"])
	}
	if server["auto_increment_port"] != true {
		t.Error("sibling default lost during nested merge")
	}
	fb := got["network"].(Map)["fallback_interfaces"].([]interface{})
	if len(fb) != 1 || fb[0] != "wg0" {
		t.Errorf("lists should be replaced wholesale, got %v", fb)
	}
	if got["extra"] != "x" {
		t.Error("override-only key missing")
	}
	if base["server"].(Map)["default_port"] != 8080 {
		t.Error("Merge mutated base")
	}
}

func TestGet(t *testing.T) {
	m := Map{
		"server":  Map{"default_port": 8080},
		"network": "scalar",
	}

	tests := []struct {
		path   string
		want   interface{}
		wantOK bool
	}{
		{"server.default_port", 8080, true},
		{"server", Map{"default_port": 8080}, true},
		{"server.missing", nil, false},
		{"network.interface", nil, false},
		{"nope.deeper.path", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Get(m, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	m := Map{"server": Map{"default_port": 8080}, "scalar": 1}

	if err := Set(m, "server.default_port", 9000); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := Set(m, "behavior.file_overwrite", "all"); err != nil {
		t.Fatalf("Set with new section failed: %v", err)
	}
	if err := Set(m, "scalar.child", 1); err == nil {
		t.Error("Set through a scalar should fail")
	}
	if err := Set(m, "", 1); err == nil {
		t.Error("Set with empty key should fail")
	}

	if v, _ := Get(m, "server.default_port"); v != 9000 {
		t.Errorf("server.default_port = %v", v)
	}
	if v, _ := Get(m, "behavior.file_overwrite"); v != "all" {
		t.Errorf("behavior.file_overwrite = %v", v)
	}
}

func TestWalk(t *testing.T) {
	m := Map{"paths": Map{"labs_root": "~/Labs"}, "top": 1}
	seen := map[string]string{}

	Walk(m, func(path, key string, v interface{}) interface{} {
		seen[path] = key
		if s, ok := v.(string); ok {
			return s + "!"
		}
		return v
	})

	if seen["paths.labs_root"] != "labs_root" || seen["top"] != "top" {
		t.Errorf("unexpected walk: %v", seen)
	}
	if v, _ := Get(m, "paths.labs_root"); v != "~/Labs!" {
		t.Errorf("replacement not stored: %v", v)
	}
}
