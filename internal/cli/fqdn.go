package cli

import (
	"fmt"
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/spf13/cobra"
)

var fqdnCmd = &cobra.Command{
	Use:   "fqdn",
	Short: "Manage the lab's target host names",
	Long: `Manage network.fqdn in the lab config. Names must be plain host names
(letters, digits, hyphens and dots). With behavior.auto_update_hosts the
hosts file block follows every change.`,
}

var fqdnAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Add host names",
	Long: `Add one or more host names to the lab.

Examples:
  labcmdr fqdn add forest.htb
  labcmdr fqdn add dc01.forest.htb htb.local`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFQDNAdd,
}

var fqdnRemoveCmd = &cobra.Command{
	Use:     "remove <name>...",
	Aliases: []string{"rm"},
	Short:   "Remove host names",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runFQDNRemove,
}

var fqdnListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List host names",
	Args:    cobra.NoArgs,
	RunE:    runFQDNList,
}

func init() {
	fqdnCmd.AddCommand(fqdnAddCmd, fqdnRemoveCmd, fqdnListCmd)
	rootCmd.AddCommand(fqdnCmd)
}

// fqdnResult is the JSON form of the lab's host names
type fqdnResult struct {
	Lab  string   `json:"lab"`
	IP   string   `json:"ip_address,omitempty"`
	FQDN []string `json:"fqdn"`
}

func newFQDNResult(cfg *lab.Config) fqdnResult {
	names := cfg.Network.FQDN
	if names == nil {
		names = []string{}
	}
	return fqdnResult{Lab: cfg.DisplayName(), IP: cfg.Network.IPAddress, FQDN: names}
}

func runFQDNAdd(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	cfg, err := addFQDNs(root, args)
	if err != nil {
		return err
	}
	syncHosts(loadGlobal(), cfg)
	return outputResult(newFQDNResult(cfg), "Added %s", strings.Join(args, ", "))
}

func runFQDNRemove(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	cfg, err := removeFQDNs(root, args)
	if err != nil {
		return err
	}
	syncHosts(loadGlobal(), cfg)
	return outputResult(newFQDNResult(cfg), "Removed %s", strings.Join(args, ", "))
}

func runFQDNList(cmd *cobra.Command, args []string) error {
	_, cfg, err := currentLab()
	if err != nil {
		return err
	}
	printFQDNs(cfg)
	return nil
}

func printFQDNs(cfg *lab.Config) {
	if jsonOutput {
		_ = output.JSON(newFQDNResult(cfg))
		return
	}
	if len(cfg.Network.FQDN) == 0 {
		output.Info("No host names configured")
		return
	}
	rows := make([][]string, 0, len(cfg.Network.FQDN))
	for _, f := range cfg.Network.FQDN {
		rows = append(rows, []string{f, cfg.Network.IPAddress})
	}
	output.Table([]string{"FQDN", "IP"}, rows)
}

// addFQDNs validates every name, then appends them in one update.
// Duplicates are kept with a warning.
func addFQDNs(root string, names []string) (*lab.Config, error) {
	if err := validateFQDNs(names); err != nil {
		return nil, err
	}
	var out *lab.Config
	err := lab.Update(root, func(c *lab.Config) error {
		for _, name := range names {
			dup, err := c.AddFQDN(name)
			if err != nil {
				return err
			}
			if dup {
				output.Warn("%s was already listed", name)
			}
		}
		out = c
		return nil
	})
	return out, err
}

// removeFQDNs drops the names in one update. Nothing is written unless every
// name was listed.
func removeFQDNs(root string, names []string) (*lab.Config, error) {
	var out *lab.Config
	err := lab.Update(root, func(c *lab.Config) error {
		for _, name := range names {
			if !c.RemoveFQDN(name) {
				return errors.Validation(fmt.Sprintf("%s is not listed", name))
			}
		}
		out = c
		return nil
	})
	return out, err
}
