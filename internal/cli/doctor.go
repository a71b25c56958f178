package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/hosts"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/platform"
	"github.com/ksyq12/labcmdr/internal/server"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system status and diagnose issues",
	Long: `Run diagnostic checks on the system, the configuration and the current
lab.

Checks:
  - External commands (tail, editor, sudo)
  - Configuration file validity
  - Attacker-facing interface address
  - Lab config, server record and hosts entries

Examples:
  labcmdr doctor
  labcmdr doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// CheckResult represents a single diagnostic check result
type CheckResult struct {
	Status  string `json:"status"` // "success", "warning", "error"
	Message string `json:"message"`
}

// DoctorReport contains all diagnostic results
type DoctorReport struct {
	Platform           string        `json:"platform"`
	SystemRequirements []CheckResult `json:"system_requirements"`
	Configuration      []CheckResult `json:"configuration"`
	Network            []CheckResult `json:"network"`
	Lab                []CheckResult `json:"lab"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	g := loadGlobal()

	report := &DoctorReport{Platform: platform.Platform()}
	report.SystemRequirements = checkSystemRequirements(deps.Executor, g.Config)
	report.Configuration = checkConfiguration(g, deps.Executor)
	report.Network = checkNetwork(g.Config)
	report.Lab = checkLab(g)

	if jsonOutput {
		return output.JSON(report)
	}

	displayDoctorResults(report)
	return nil
}

func checkSystemRequirements(exec executor.CommandExecutor, cfg *config.Config) []CheckResult {
	results := []CheckResult{}

	if _, err := exec.LookPath("tail"); err == nil {
		results = append(results, CheckResult{Status: "success", Message: "tail installed"})
	} else {
		results = append(results, CheckResult{Status: "warning", Message: "tail not installed (server log unavailable)"})
	}

	if words, err := cfg.EditorCommand(); err != nil {
		results = append(results, CheckResult{Status: "error", Message: err.Error()})
	} else if _, err := exec.LookPath(words[0]); err == nil {
		results = append(results, CheckResult{Status: "success", Message: fmt.Sprintf("Editor %s installed", words[0])})
	} else {
		results = append(results, CheckResult{Status: "warning", Message: fmt.Sprintf("Editor %s not found", words[0])})
	}

	if cfg.System.UseSudoForHosts {
		if _, err := exec.LookPath("sudo"); err == nil {
			results = append(results, CheckResult{Status: "success", Message: "sudo installed"})
		} else {
			results = append(results, CheckResult{Status: "error", Message: "sudo not installed but system.use_sudo_for_hosts is on"})
		}
	}

	return results
}

func checkConfiguration(g *config.Global, exec executor.CommandExecutor) []CheckResult {
	results := []CheckResult{}

	// Use ~ notation for display
	displayPath := g.Path
	if home := os.Getenv("HOME"); home != "" {
		displayPath = strings.Replace(g.Path, home, "~", 1)
	}

	switch {
	case g.ParseErr != nil:
		results = append(results, CheckResult{Status: "error", Message: fmt.Sprintf("Config file ignored: %v", g.ParseErr)})
	case g.Loaded:
		results = append(results, CheckResult{Status: "success", Message: fmt.Sprintf("Config file loaded (%s)", displayPath)})
	default:
		results = append(results, CheckResult{Status: "warning", Message: "No config file, using defaults (labcmdr config init)"})
	}

	if ok, problems := config.Validate(g.Config, exec.LookPath); ok {
		results = append(results, CheckResult{Status: "success", Message: "Configuration valid"})
	} else {
		for _, p := range problems {
			results = append(results, CheckResult{Status: "error", Message: p})
		}
	}

	return results
}

func checkNetwork(cfg *config.Config) []CheckResult {
	names := cfg.Network.Interfaces()
	ip, iface, err := deps.Lifecycle.ResolveIP(names)
	if err != nil {
		return []CheckResult{{
			Status:  "error",
			Message: fmt.Sprintf("No IPv4 address on %s (connect the VPN or set network.interface)", strings.Join(names, ", ")),
		}}
	}
	return []CheckResult{{Status: "success", Message: fmt.Sprintf("%s has address %s", iface, ip)}}
}

func checkLab(g *config.Global) []CheckResult {
	root, err := currentRoot()
	if errors.Is(err, errors.ErrLabNotFound) {
		return []CheckResult{{Status: "warning", Message: "Not inside a lab (labcmdr create)"}}
	}
	if err != nil {
		return []CheckResult{{Status: "error", Message: err.Error()}}
	}

	cfg, err := lab.Load(root)
	if err != nil {
		return []CheckResult{{Status: "error", Message: err.Error()}}
	}
	results := []CheckResult{{Status: "success", Message: fmt.Sprintf("Lab %s at %s", cfg.DisplayName(), root)}}

	if cfg.Network.IPAddress == "" {
		results = append(results, CheckResult{Status: "warning", Message: "No target IP set"})
	}

	st := server.StatusOf(cfg.Runtime, deps.Process.Alive, time.Now())
	switch {
	case st.Running:
		results = append(results, CheckResult{Status: "success", Message: fmt.Sprintf("Server running on %s", st.URL)})
	case st.Stale:
		results = append(results, CheckResult{Status: "warning", Message: "Stale server record (labcmdr server stop)"})
	default:
		results = append(results, CheckResult{Status: "success", Message: "Server stopped"})
	}

	if len(cfg.Network.FQDN) > 0 {
		m := hostsManager(g)
		lines, err := m.Read()
		switch {
		case err != nil:
			results = append(results, CheckResult{Status: "warning", Message: err.Error()})
		case len(hosts.Entries(lines, cfg.DisplayName())) == 0:
			results = append(results, CheckResult{Status: "warning", Message: fmt.Sprintf("No entries in %s (labcmdr hosts update)", m.Path)})
		default:
			results = append(results, CheckResult{Status: "success", Message: fmt.Sprintf("Hosts entries present in %s", m.Path)})
		}
	}

	return results
}

func displayDoctorResults(report *DoctorReport) {
	output.Print("Platform: %s", report.Platform)
	output.Print("")

	sections := []struct {
		title  string
		checks []CheckResult
	}{
		{"Checking system requirements...", report.SystemRequirements},
		{"Checking configuration...", report.Configuration},
		{"Checking network...", report.Network},
		{"Checking lab...", report.Lab},
	}
	for _, s := range sections {
		output.Print("%s", s.title)
		for _, check := range s.checks {
			displayCheck(check)
		}
		output.Print("")
	}
}

func displayCheck(check CheckResult) {
	switch check.Status {
	case "success":
		output.Success("%s", check.Message)
	case "warning":
		output.Warn("%s", check.Message)
	case "error":
		output.Error("%s", check.Message)
	}
}
