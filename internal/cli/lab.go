package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/tree"
	"github.com/spf13/cobra"
)

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Show or edit the lab config",
}

var labShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every lab config section",
	Long: `Show labcmdr/labconfig.json of the enclosing lab, including keys this
version does not know about.

Examples:
  labcmdr lab show
  labcmdr lab show --json`,
	Args: cobra.NoArgs,
	RunE: runLabShow,
}

var labSetCmd = &cobra.Command{
	Use:   "set <section.key> <value>",
	Short: "Set a lab config field",
	Long: `Set a metadata, network or credentials field. The runtime section is
owned by the file server and cannot be set.

Examples:
  labcmdr lab set network.ip_address 10.10.10.161
  labcmdr lab set network.fqdn forest.htb,dc01.forest.htb
  labcmdr lab set credentials.username svc-alfresco
  labcmdr lab set metadata.week 3`,
	Args: cobra.ExactArgs(2),
	RunE: runLabSet,
}

func init() {
	labCmd.AddCommand(labShowCmd, labSetCmd)
	rootCmd.AddCommand(labCmd)
}

// labSections is the display order of the config sections
var labSections = []string{"metadata", "network", "credentials", "runtime"}

func runLabShow(cmd *cobra.Command, args []string) error {
	root, cfg, err := currentLab()
	if err != nil {
		return err
	}
	doc, err := cfg.Document()
	if err != nil {
		return err
	}
	if jsonOutput {
		return output.JSON(doc)
	}

	output.PrintBanner(cfg.DisplayName())
	output.Print("%s", lab.ConfigPath(root))

	sections := append([]string{}, labSections...)
	var extra []string
	for k := range doc {
		if !contains(labSections, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	sections = append(sections, extra...)

	for _, name := range sections {
		section, ok := doc[name].(tree.Map)
		if !ok {
			continue
		}
		output.Print("")
		output.Print("[%s]", name)
		keys := make([]string, 0, len(section))
		for k := range section {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([][2]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, [2]string{k, formatValue(section[k])})
		}
		output.KeyValue(pairs)
	}
	return nil
}

func runLabSet(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	key, value := args[0], args[1]

	var cfg *lab.Config
	err = lab.Update(root, func(c *lab.Config) error {
		if err := setLabField(c, key, value); err != nil {
			return err
		}
		cfg = c
		return nil
	})
	if err != nil {
		return err
	}

	if strings.HasPrefix(key, "network.") {
		syncHosts(loadGlobal(), cfg)
	}
	return outputResult(map[string]string{"key": key, "value": value}, "Set %s = %s", key, value)
}

// setLabField validates and applies one field. Values for network fields go
// through the same checks as the fqdn and create commands.
func setLabField(c *lab.Config, key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || field == "" {
		return errors.Validation(fmt.Sprintf("%q is not a section.key path (e.g. network.ip_address)", key))
	}

	switch key {
	case "network.ip_address":
		return c.SetIP(value)
	case "network.fqdn":
		names := splitList(value)
		if err := validateFQDNs(names); err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		c.Network.FQDN = names
		return nil
	case "metadata.season":
		c.Metadata.Season = lab.ParseTag(value)
		return nil
	case "metadata.week":
		c.Metadata.Week = lab.ParseTag(value)
		return nil
	case "metadata.year":
		c.Metadata.Year = lab.ParseTag(value)
		return nil
	}

	if section == "runtime" {
		return errors.Validation("the runtime section is managed by the file server")
	}
	if p, ok := labStringFields(c)[key]; ok {
		*p = value
		return nil
	}
	return errors.Validation(fmt.Sprintf("unknown lab setting %q", key))
}

func labStringFields(c *lab.Config) map[string]*string {
	return map[string]*string{
		"metadata.name":             &c.Metadata.Name,
		"metadata.platform":         &c.Metadata.Platform,
		"metadata.type":             &c.Metadata.Type,
		"metadata.created":          &c.Metadata.Created,
		"metadata.conference":       &c.Metadata.Conference,
		"metadata.conference_name":  &c.Metadata.ConferenceName,
		"metadata.village":          &c.Metadata.Village,
		"metadata.location":         &c.Metadata.Location,
		"metadata.challenge_name":   &c.Metadata.ChallengeName,
		"metadata.category":         &c.Metadata.Category,
		"network.domain":            &c.Network.Domain,
		"network.domain_name":       &c.Network.DomainName,
		"network.domain_controller": &c.Network.DomainController,
		"credentials.username":      &c.Credentials.Username,
		"credentials.password":      &c.Credentials.Password,
	}
}

// formatValue renders a decoded JSON value for display
func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	case tree.Map:
		return fmt.Sprintf("%d keys", len(t))
	default:
		return fmt.Sprint(t)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
