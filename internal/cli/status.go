package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/server"
	"github.com/spf13/cobra"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current lab and its file server",
	Long: `Show the lab enclosing the working directory: metadata, target
addressing and file server state. A server record whose process is gone is
reported as stale.

Examples:
  labcmdr status
  labcmdr status --json
  labcmdr status --watch`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Reprint whenever the lab config changes")

	rootCmd.AddCommand(statusCmd)
}

// labStatus represents the lab and server state for output
type labStatus struct {
	Name          string        `json:"name"`
	Root          string        `json:"root"`
	Platform      string        `json:"platform,omitempty"`
	Type          string        `json:"type,omitempty"`
	Created       string        `json:"created,omitempty"`
	IP            string        `json:"ip_address,omitempty"`
	FQDN          []string      `json:"fqdn"`
	ServerRunning bool          `json:"server_running"`
	ServerPort    *int          `json:"server_port"`
	Server        server.Status `json:"server"`
}

func newLabStatus(root string, cfg *lab.Config) labStatus {
	st := server.StatusOf(cfg.Runtime, deps.Process.Alive, time.Now())
	s := labStatus{
		Name:          cfg.DisplayName(),
		Root:          root,
		Platform:      cfg.Metadata.Platform,
		Type:          cfg.Metadata.Type,
		Created:       cfg.Metadata.Created,
		IP:            cfg.Network.IPAddress,
		FQDN:          cfg.Network.FQDN,
		ServerRunning: st.Running,
		Server:        st,
	}
	if s.FQDN == nil {
		s.FQDN = []string{}
	}
	if st.Running {
		s.ServerPort = intPtr(st.Port)
	}
	return s
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, cfg, err := currentLab()
	if err != nil {
		return err
	}

	if err := printStatus(newLabStatus(root, cfg)); err != nil {
		return err
	}
	if !statusWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchStatus(ctx, root)
}

// watchStatus reprints the status on every config change until ctx is done
func watchStatus(ctx context.Context, root string) error {
	if !jsonOutput {
		output.Info("Watching %s (Ctrl-C to stop)", lab.ConfigPath(root))
	}
	return lab.Watch(ctx, root, func(cfg *lab.Config, err error) {
		if err != nil {
			output.Warn("Reload failed: %v", err)
			return
		}
		if !jsonOutput {
			output.Print("")
		}
		if err := printStatus(newLabStatus(root, cfg)); err != nil {
			output.Warn("%v", err)
		}
	})
}

func printStatus(s labStatus) error {
	if jsonOutput {
		return output.JSON(s)
	}

	output.PrintBanner(s.Name)
	output.KeyValue([][2]string{
		{"Root", s.Root},
		{"Platform", s.Platform},
		{"Type", s.Type},
		{"Created", s.Created},
		{"Target IP", s.IP},
		{"FQDN", strings.Join(s.FQDN, ", ")},
	})
	output.Print("")
	printServerStatus(s.Server)
	return nil
}

func printServerStatus(st server.Status) {
	switch {
	case st.Running:
		output.Success("Server running on %s", st.URL)
		output.KeyValue([][2]string{
			{"Port", lab.Int(&st.Port)},
			{"PID", lab.Int(&st.PID)},
			{"Uptime", server.FormatUptime(st.Uptime)},
			{"Log", st.LogPath},
		})
	case st.Stale:
		output.Warn("Server record is stale (no live process owns it)")
		output.Info("Run 'labcmdr server stop' to clear it")
	default:
		output.Info("Server stopped")
	}
}
