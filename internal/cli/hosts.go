package cli

import (
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/hosts"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/spf13/cobra"
)

var hostsShowAll bool

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Manage the lab's hosts file entries",
	Long: `Write the lab's target IP and host names into the hosts file
(system.hosts_file) as a block tagged with the lab name. With
system.use_sudo_for_hosts the new file is piped through 'sudo tee'; a failed
write leaves the file untouched.`,
}

var hostsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Write the lab's block",
	Args:  cobra.NoArgs,
	RunE:  runHostsUpdate,
}

var hostsRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"rm"},
	Short:   "Remove the lab's block",
	Args:    cobra.NoArgs,
	RunE:    runHostsRemove,
}

var hostsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the lab's entries",
	Long: `Show the entries the hosts file holds for this lab.

Examples:
  labcmdr hosts show
  labcmdr hosts show --all   # list every lab with a block`,
	Args: cobra.NoArgs,
	RunE: runHostsShow,
}

func init() {
	hostsShowCmd.Flags().BoolVarP(&hostsShowAll, "all", "a", false, "List every lab with a block")

	hostsCmd.AddCommand(hostsUpdateCmd, hostsRemoveCmd, hostsShowCmd)
	rootCmd.AddCommand(hostsCmd)
}

// hostsResult is the JSON form of a hosts command
type hostsResult struct {
	File    string   `json:"file"`
	Lab     string   `json:"lab,omitempty"`
	Entries []string `json:"entries,omitempty"`
	Removed int      `json:"removed,omitempty"`
	Labs    []string `json:"labs,omitempty"`
}

func runHostsUpdate(cmd *cobra.Command, args []string) error {
	_, cfg, err := currentLab()
	if err != nil {
		return err
	}
	res, err := updateHosts(cfg)
	if err != nil {
		return err
	}
	return outputResult(res, "Wrote %d entries for %s to %s", len(res.Entries), res.Lab, res.File)
}

func runHostsRemove(cmd *cobra.Command, args []string) error {
	_, cfg, err := currentLab()
	if err != nil {
		return err
	}
	g := loadGlobal()
	if !jsonOutput && !confirm(g, "Remove %s entries from %s?", cfg.DisplayName(), hostsManager(g).Path) {
		return errors.ErrCancelled
	}
	res, err := removeHosts(cfg)
	if err != nil {
		return err
	}
	if res.Removed == 0 && !jsonOutput {
		output.Info("No entries for %s in %s", res.Lab, res.File)
		return nil
	}
	return outputResult(res, "Removed %d entries for %s", res.Removed, res.Lab)
}

func runHostsShow(cmd *cobra.Command, args []string) error {
	m := hostsManager(loadGlobal())
	lines, err := m.Read()
	if err != nil {
		return err
	}

	if hostsShowAll {
		labs := hosts.Labs(lines)
		if jsonOutput {
			return output.JSON(hostsResult{File: m.Path, Labs: labs})
		}
		if len(labs) == 0 {
			output.Info("No labcmdr blocks in %s", m.Path)
			return nil
		}
		for _, l := range labs {
			output.Print("%s", l)
		}
		return nil
	}

	_, cfg, err := currentLab()
	if err != nil {
		return err
	}
	res := hostsResult{File: m.Path, Lab: cfg.DisplayName(), Entries: hosts.Entries(lines, cfg.DisplayName())}
	if jsonOutput {
		return output.JSON(res)
	}
	if len(res.Entries) == 0 {
		output.Info("No entries for %s in %s", res.Lab, res.File)
		return nil
	}
	output.Print("%s", strings.Join(res.Entries, "\n"))
	return nil
}

// updateHosts writes the lab's block. The lab needs a target IP and at least
// one host name.
func updateHosts(cfg *lab.Config) (hostsResult, error) {
	if cfg.Network.IPAddress == "" {
		return hostsResult{}, errors.Validation("no target IP set (labcmdr lab set network.ip_address <ip>)")
	}
	if len(cfg.Network.FQDN) == 0 {
		return hostsResult{}, errors.Validation("no host names set (labcmdr fqdn add <name>)")
	}
	m := hostsManager(loadGlobal())
	name := cfg.DisplayName()
	if err := m.Update(name, cfg.Network.IPAddress, cfg.Network.FQDN); err != nil {
		return hostsResult{}, err
	}
	block, _ := hosts.Block(name, cfg.Network.IPAddress, cfg.Network.FQDN)
	return hostsResult{File: m.Path, Lab: name, Entries: block[1 : len(block)-1]}, nil
}

func removeHosts(cfg *lab.Config) (hostsResult, error) {
	m := hostsManager(loadGlobal())
	name := cfg.DisplayName()
	n, err := m.Remove(name)
	if err != nil {
		return hostsResult{}, err
	}
	return hostsResult{File: m.Path, Lab: name, Removed: n}, nil
}
