package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/lab"
)

func findCheck(results []CheckResult, substr string) (CheckResult, bool) {
	for _, r := range results {
		if strings.Contains(r.Message, substr) {
			return r, true
		}
	}
	return CheckResult{}, false
}

func TestCheckSystemRequirements(t *testing.T) {
	tests := []struct {
		name      string
		missing   []string
		sudo      bool
		editor    string
		wantCheck string
		wantState string
	}{
		{name: "tail installed", wantCheck: "tail installed", wantState: "success"},
		{name: "tail missing", missing: []string{"tail"}, wantCheck: "tail not installed", wantState: "warning"},
		{name: "editor found", editor: "code --wait", wantCheck: "Editor code installed", wantState: "success"},
		{name: "editor missing", missing: []string{"nano"}, wantCheck: "Editor nano not found", wantState: "warning"},
		{name: "sudo required and missing", sudo: true, missing: []string{"sudo"}, wantCheck: "sudo not installed", wantState: "error"},
		{name: "sudo required and present", sudo: true, wantCheck: "sudo installed", wantState: "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &executor.MockExecutor{
				LookPathFunc: func(file string) (string, error) {
					for _, m := range tt.missing {
						if m == file {
							return "", fmt.Errorf("%s not found", file)
						}
					}
					return "/usr/bin/" + file, nil
				},
			}
			cfg := config.New()
			cfg.System.UseSudoForHosts = tt.sudo
			if tt.editor != "" {
				cfg.Applications.Editor = tt.editor
			}

			results := checkSystemRequirements(exec, cfg)
			r, ok := findCheck(results, tt.wantCheck)
			if !ok {
				t.Fatalf("check %q not found in %+v", tt.wantCheck, results)
			}
			if r.Status != tt.wantState {
				t.Errorf("status = %s, want %s", r.Status, tt.wantState)
			}
		})
	}
}

func TestCheckConfiguration(t *testing.T) {
	h := NewTestHelper(t)

	results := checkConfiguration(deps.ConfigLoader.Load(), h.Executor)
	if r, ok := findCheck(results, "Config file loaded"); !ok || r.Status != "success" {
		t.Errorf("expected loaded check, got %+v", results)
	}
	if _, ok := findCheck(results, "Configuration valid"); !ok {
		t.Errorf("expected valid check, got %+v", results)
	}

	h.SetConfig("server:\n  default_port: 0\n")
	results = checkConfiguration(deps.ConfigLoader.Load(), h.Executor)
	if r, ok := findCheck(results, "invalid port 0"); !ok || r.Status != "error" {
		t.Errorf("expected port problem, got %+v", results)
	}
}

func TestCheckNetwork(t *testing.T) {
	NewTestHelper(t)

	results := checkNetwork(config.New())
	if len(results) != 1 || results[0].Status != "success" || !strings.Contains(results[0].Message, "127.0.0.1") {
		t.Errorf("unexpected results %+v", results)
	}

	deps.Lifecycle.ResolveIP = func([]string) (string, string, error) { return "", "", errors.ErrNoInterface }
	results = checkNetwork(config.New())
	if len(results) != 1 || results[0].Status != "error" || !strings.Contains(results[0].Message, "tun0") {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestCheckLab(t *testing.T) {
	t.Run("outside a lab", func(t *testing.T) {
		h := NewTestHelper(t)
		deps.LabFinder = &MockLabFinder{Err: errors.LabNotFound(h.Home)}
		results := checkLab(deps.ConfigLoader.Load())
		if len(results) != 1 || results[0].Status != "warning" {
			t.Errorf("unexpected results %+v", results)
		}
	})

	t.Run("lab with stale server and missing hosts entries", func(t *testing.T) {
		h := NewTestHelper(t)
		root := h.NewLab(filepath.Join(h.Home, "forest"), lab.Metadata{Name: "forest"}, "10.10.10.161", "forest.htb")
		markRunning(t, root, 8080, 4242)
		h.Process.AliveFunc = func(int) bool { return false }

		results := checkLab(deps.ConfigLoader.Load())
		if r, ok := findCheck(results, "Lab forest"); !ok || r.Status != "success" {
			t.Errorf("expected lab check, got %+v", results)
		}
		if r, ok := findCheck(results, "Stale server record"); !ok || r.Status != "warning" {
			t.Errorf("expected stale check, got %+v", results)
		}
		if r, ok := findCheck(results, "No entries in"); !ok || r.Status != "warning" {
			t.Errorf("expected hosts check, got %+v", results)
		}
	})
}

func TestRunDoctor_JSON(t *testing.T) {
	h := NewTestHelper(t)
	h.NewLab(filepath.Join(h.Home, "forest"), lab.Metadata{Name: "forest"}, "")

	if err := h.Execute("doctor", "--json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report DoctorReport
	if err := json.Unmarshal([]byte(h.Out.String()), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, h.Out.String())
	}
	if report.Platform == "" {
		t.Error("platform missing")
	}
	if len(report.SystemRequirements) == 0 || len(report.Configuration) == 0 || len(report.Network) == 0 || len(report.Lab) == 0 {
		t.Errorf("report has empty sections: %+v", report)
	}
	if _, ok := findCheck(report.Lab, "No target IP set"); !ok {
		t.Errorf("expected missing IP warning, got %+v", report.Lab)
	}
}
