package cli

import (
	"fmt"
	"strings"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/hosts"
	"github.com/ksyq12/labcmdr/internal/input"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/platform"
)

// currentRoot finds the lab enclosing the working directory
func currentRoot() (string, error) {
	return deps.LabFinder.FindRoot("")
}

// currentLab finds and loads the enclosing lab
func currentLab() (string, *lab.Config, error) {
	root, err := currentRoot()
	if err != nil {
		return "", nil, err
	}
	cfg, err := lab.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// loadGlobal loads the global config. A user file that could not be used is
// reported but never stops the command.
func loadGlobal() *config.Global {
	g := deps.ConfigLoader.Load()
	if g.ParseErr != nil {
		output.Warn("Using default configuration: %v", g.ParseErr)
		logger.LogError(g.ParseErr, "global config ignored")
	}
	return g
}

// hostsManager builds the hosts file editor from the global config
func hostsManager(g *config.Global) *hosts.Manager {
	path := g.System.HostsFile
	if path == "" {
		path = platform.HostsFile()
	}
	return &hosts.Manager{
		Path:    path,
		UseSudo: g.System.UseSudoForHosts,
		Exec:    deps.Executor,
	}
}

// confirm asks before a destructive step unless behavior.confirm_destructive
// is off
func confirm(g *config.Global, format string, args ...interface{}) bool {
	if !g.Behavior.ConfirmDestructive {
		return true
	}
	fmt.Fprintf(deps.Stdout, format+" [y/N]: ", args...)
	return input.Confirm(deps.StdinReader, false)
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

// validateFQDNs checks every name before anything is written
func validateFQDNs(names []string) error {
	for _, name := range names {
		if err := hosts.ValidateFQDN(name); err != nil {
			return err
		}
	}
	return nil
}

// splitList parses a comma separated flag or answer, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// syncHosts rewrites the lab's hosts block when behavior.auto_update_hosts is
// on. A lab without an IP or host names has its block removed. Failures are
// reported as warnings.
func syncHosts(g *config.Global, cfg *lab.Config) {
	if !g.Behavior.AutoUpdateHosts {
		return
	}
	m := hostsManager(g)
	name := cfg.DisplayName()

	if cfg.Network.IPAddress == "" || len(cfg.Network.FQDN) == 0 {
		n, err := m.Remove(name)
		if err != nil {
			output.Warn("Hosts file not updated: %v", err)
		} else if n > 0 {
			output.Info("Removed %d entries from %s", n, m.Path)
		}
		return
	}
	if err := m.Update(name, cfg.Network.IPAddress, cfg.Network.FQDN); err != nil {
		output.Warn("Hosts file not updated: %v", err)
		return
	}
	output.Info("Updated %s", m.Path)
}
