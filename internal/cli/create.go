package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/hosts"
	"github.com/ksyq12/labcmdr/internal/input"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/template"
	"github.com/spf13/cobra"
)

var (
	createName       string
	createPlatform   string
	createType       string
	createIP         string
	createCategory   string
	createConference string
	createFQDNs      []string
	createSeason     int
	createWeek       int
	createYear       int
)

var createCmd = &cobra.Command{
	Use:   "create [path]",
	Short: "Create a lab directory",
	Long: `Create the lab directory skeleton and its labcmdr/labconfig.json.

Without a path the lab is placed under paths.labs_root, derived from the
metadata flags (platform/name, HTB_Season_N/WeekNN-name, category/name, ...).
Existing files follow behavior.file_overwrite (prompt, all or none). Running
create on an existing lab keeps its config and applies the given flags.

Examples:
  labcmdr create ~/Labs/htb/forest --ip 10.10.10.161 --fqdn forest.htb
  labcmdr create --platform htb --name forest
  labcmdr create --season 9 --week 3 --name Cicada
  labcmdr create . --type ctf --category web`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Lab name (defaults to the directory name)")
	createCmd.Flags().StringVar(&createPlatform, "platform", "", "Platform (htb, thm, vulnhub, ...)")
	createCmd.Flags().StringVar(&createType, "type", "", "Lab type (training, season, ctf, ...)")
	createCmd.Flags().StringVar(&createIP, "ip", "", "Target IPv4 address")
	createCmd.Flags().StringSliceVar(&createFQDNs, "fqdn", nil, "Target host names (repeatable or comma separated)")
	createCmd.Flags().StringVar(&createCategory, "category", "", "Category folder for custom labs")
	createCmd.Flags().StringVar(&createConference, "conference", "", "Conference name for CTF events")
	createCmd.Flags().IntVar(&createSeason, "season", 0, "HTB season number")
	createCmd.Flags().IntVar(&createWeek, "week", 0, "HTB season week")
	createCmd.Flags().IntVar(&createYear, "year", 0, "Event year")

	rootCmd.AddCommand(createCmd)
}

// createResult is the JSON form of a create run
type createResult struct {
	Root    string   `json:"root"`
	Name    string   `json:"name"`
	Config  string   `json:"config"`
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
	Existed bool     `json:"existed"`
}

func runCreate(cmd *cobra.Command, args []string) error {
	g := loadGlobal()

	// Validate before touching the filesystem
	if createIP != "" {
		if err := hosts.ValidateIPv4(createIP); err != nil {
			return err
		}
	}
	if err := validateFQDNs(createFQDNs); err != nil {
		return err
	}
	switch g.Behavior.FileOverwrite {
	case config.OverwritePrompt, config.OverwriteAll, config.OverwriteNone:
	default:
		return errors.Validation(fmt.Sprintf("behavior.file_overwrite must be prompt, all or none (got %q)", g.Behavior.FileOverwrite))
	}

	meta := createMetadata()
	root, err := createRoot(g, meta, args)
	if err != nil {
		return err
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(root)
	}
	logger.Debug("Creating lab %s at %s", meta.Name, root)

	ow := &template.Overwriter{Policy: g.Behavior.FileOverwrite, Ask: askOverwrite}
	res, err := template.Create(root, template.NewData(meta, createIP), ow)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to create lab", err)
	}

	existed := fsutil.Exists(lab.ConfigPath(root))
	var cfg *lab.Config
	if existed {
		err = lab.Update(root, func(c *lab.Config) error {
			applyCreateFlags(c)
			cfg = c
			return nil
		})
	} else {
		cfg = lab.New(meta)
		applyCreateFlags(cfg)
		err = lab.Save(root, cfg)
	}
	if err != nil {
		return err
	}

	syncHosts(g, cfg)

	result := createResult{
		Root:    root,
		Name:    cfg.DisplayName(),
		Config:  lab.ConfigPath(root),
		Created: res.Created,
		Skipped: res.Skipped,
		Existed: existed,
	}
	if jsonOutput {
		return output.JSON(result)
	}

	if existed {
		output.Success("Updated lab %s at %s", result.Name, root)
	} else {
		output.Success("Created lab %s at %s", result.Name, root)
	}
	if len(res.Skipped) > 0 {
		output.Info("Kept %d existing file(s)", len(res.Skipped))
	}
	output.Print("")
	output.Print("Next steps:")
	output.Print("  cd %s", chdirHint(root))
	if cfg.Network.IPAddress == "" {
		output.Print("  labcmdr lab set network.ip_address <target-ip>")
	}
	output.Print("  labcmdr run")
	return nil
}

// createMetadata builds lab metadata from the flags
func createMetadata() lab.Metadata {
	meta := lab.Metadata{
		Name:       createName,
		Platform:   strings.ToLower(createPlatform),
		Type:       createType,
		Category:   createCategory,
		Conference: createConference,
	}
	if createSeason > 0 {
		meta.Season = lab.TagInt(createSeason)
		if meta.Platform == "" {
			meta.Platform = "htb"
		}
		if meta.Type == "" {
			meta.Type = "season"
		}
	}
	if createWeek > 0 {
		meta.Week = lab.TagInt(createWeek)
	}
	if createYear > 0 {
		meta.Year = lab.TagInt(createYear)
	}
	return meta
}

// createRoot picks the lab directory: the argument, or a path derived from
// the metadata under labs_root
func createRoot(g *config.Global, meta lab.Metadata, args []string) (string, error) {
	if len(args) == 1 {
		root, err := filepath.Abs(config.ExpandPath(args[0]))
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		return root, nil
	}
	if meta.Name == "" {
		return "", errors.Validation("pass a path or --name")
	}
	return template.DefaultPath(g.Paths.LabsRoot, meta)
}

// applyCreateFlags copies the network flags into cfg. Values were validated
// up front.
func applyCreateFlags(cfg *lab.Config) {
	if createIP != "" {
		_ = cfg.SetIP(createIP)
	}
	for _, f := range createFQDNs {
		if !cfg.HasFQDN(f) {
			_, _ = cfg.AddFQDN(f)
		}
	}
}

// askOverwrite is the prompt used under the prompt overwrite policy
func askOverwrite(path string) (string, error) {
	return input.Ask(deps.StdinReader, deps.Stdout, path+" exists. Overwrite? [y]es/[n]o/[a]ll/[s]kip all: ")
}

func intPtr(i int) *int { return &i }

// chdirHint returns a relative path for display when root is below the
// working directory
func chdirHint(root string) string {
	wd, err := os.Getwd()
	if err != nil {
		return root
	}
	if rel, err := filepath.Rel(wd, root); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return root
}
