package cli

import (
	"fmt"
	"strings"

	"github.com/ksyq12/labcmdr/internal/config"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the global configuration",
	Long: `Manage ~/.config/labcmdr/config.yaml.

Settings missing from the file use built-in defaults. A file that cannot be
parsed is ignored with a warning.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Long: `Show one setting by dotted path.

Examples:
  labcmdr config get server.default_port
  labcmdr config get network`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting in the user file",
	Long: `Store a value in the user config file. true/false become booleans,
integers become numbers and [a, b] becomes a list.

Examples:
  labcmdr config set server.default_port 9000
  labcmdr config set network.auto_detect true
  labcmdr config set network.fallback_interfaces "[tun1, wlan0]"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in the configured editor",
	Long: `Open the config file with applications.editor, creating it from the
defaults first if needed.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the config file with the defaults",
	Long:  `Back the current file up to config.yaml.backup and write the defaults.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigReset,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Check that labs_root can be created, the default port is valid, the
editor is on PATH and behavior.file_overwrite is recognized. Every problem is
listed.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configEditCmd,
		configInitCmd, configResetCmd, configPathCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	g := loadGlobal()
	if jsonOutput {
		return output.JSON(g.Tree())
	}
	if g.Loaded {
		output.Info("Loaded from %s", g.Path)
	} else {
		output.Info("Using defaults (no file at %s)", g.Path)
	}
	return printYAML(g.Tree())
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	g := loadGlobal()
	v := g.Value(key, nil, nil)
	if v == nil {
		return errors.Validation(fmt.Sprintf("unknown config key %q", key))
	}
	if jsonOutput {
		return output.JSON(map[string]interface{}{"key": key, "value": v})
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return printYAML(v)
	}
	output.Print("%v", v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	path, err := deps.ConfigLoader.Path()
	if err != nil {
		return err
	}
	if !config.Known(key) {
		output.Warn("%s is not a built-in setting", key)
	}
	if !fsutil.Exists(path) {
		if err := config.Init(path, false); err != nil {
			return err
		}
		output.Info("Created %s", path)
	}

	value, err := config.SetValue(path, key, raw)
	if err != nil {
		return err
	}
	if g := deps.ConfigLoader.Load(); g.ParseErr != nil {
		output.Warn("The file no longer loads: %v", g.ParseErr)
	}
	return outputResult(map[string]interface{}{"key": key, "value": value}, "Set %s = %v", key, value)
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path, err := deps.ConfigLoader.Path()
	if err != nil {
		return err
	}
	if !fsutil.Exists(path) {
		if err := config.Init(path, false); err != nil {
			return err
		}
	}

	// Get editor
	g := loadGlobal()
	words, err := g.EditorCommand()
	if err != nil {
		return err
	}

	// Check if editor exists
	editorPath, err := deps.Executor.LookPath(words[0])
	if err != nil {
		return fmt.Errorf("editor not found: %s", words[0])
	}

	output.Info("Opening %s with %s...", path, words[0])

	editArgs := append(append([]string{}, words[1:]...), path)
	if err := deps.Executor.Interactive(editorPath, editArgs...); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	if g := deps.ConfigLoader.Load(); g.ParseErr != nil {
		output.Warn("The edited file does not load and will be ignored: %v", g.ParseErr)
		return nil
	}
	output.Success("Editor closed")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := deps.ConfigLoader.Path()
	if err != nil {
		return err
	}
	if err := config.Init(path, configInitForce); err != nil {
		if fsutil.Exists(path) && !configInitForce {
			output.Info("Use --force to overwrite it")
		}
		return err
	}
	return outputResult(map[string]string{"path": path}, "Wrote default config to %s", path)
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	path, err := deps.ConfigLoader.Path()
	if err != nil {
		return err
	}
	g := loadGlobal()
	if !jsonOutput && !confirm(g, "Replace %s with the defaults?", path) {
		return errors.ErrCancelled
	}
	backup, err := config.Reset(path)
	if err != nil {
		return err
	}
	if backup != "" && !jsonOutput {
		output.Info("Previous config saved to %s", backup)
	}
	return outputResult(map[string]string{"path": path, "backup": backup}, "Reset %s to defaults", path)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := deps.ConfigLoader.Path()
	if err != nil {
		return err
	}
	if jsonOutput {
		return output.JSON(map[string]interface{}{"path": path, "exists": fsutil.Exists(path)})
	}
	output.Print("%s", path)
	return nil
}

// validateResult is the JSON form of config validate
type validateResult struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems"`
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	g := loadGlobal()
	ok, problems := config.Validate(g.Config, deps.Executor.LookPath)
	if problems == nil {
		problems = []string{}
	}
	if jsonOutput {
		if err := output.JSON(validateResult{Valid: ok, Problems: problems}); err != nil {
			return err
		}
	} else if ok {
		output.Success("Configuration is valid")
	} else {
		for _, p := range problems {
			output.Warn("%s", p)
		}
	}
	if !ok {
		return errors.Validation(fmt.Sprintf("configuration has %d problem(s)", len(problems)))
	}
	return nil
}

func printYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	output.Print("%s", strings.TrimRight(string(data), "\n"))
	return nil
}
