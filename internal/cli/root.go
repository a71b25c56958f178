package cli

import (
	"os"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	verbose    bool
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labcmdr",
	Short: "CTF lab directory and file server manager",
	Long: `labcmdr creates and manages lab directories for CTF and pentest work.

A lab is any directory holding labcmdr/labconfig.json. Commands run inside a
lab (or any directory below it) find the lab automatically, the way git finds
its repository. Each lab can serve tools to a target over HTTP and receive
uploads into its loot directory.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits with the mapped status
func Execute() {
	// Initialize logger based on verbose flag (parsed by cobra)
	cobra.OnInitialize(func() {
		logger.Init(verbose)
	})

	err := rootCmd.Execute()
	if cerr := deps.Lifecycle.Close(); cerr != nil {
		logger.Error("Failed to stop file server: %v", cerr)
	}
	if err != nil {
		reportError(err)
	}
	os.Exit(errors.ExitCode(err))
}

// reportError prints err once with the error prefix. Cancellation is not an
// error and is reported quietly.
func reportError(err error) {
	if errors.Is(err, errors.ErrCancelled) {
		output.Info("Cancelled")
		return
	}
	output.Error("%v", err)
	if errors.Is(err, errors.ErrLabNotFound) {
		output.Info("Run 'labcmdr create' to set up a lab here")
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
}
