package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"github.com/ksyq12/labcmdr/internal/errors"
	"github.com/ksyq12/labcmdr/internal/hosts"
	"github.com/ksyq12/labcmdr/internal/input"
	"github.com/ksyq12/labcmdr/internal/lab"
	"github.com/ksyq12/labcmdr/internal/logger"
	"github.com/ksyq12/labcmdr/internal/output"
	"github.com/ksyq12/labcmdr/internal/server"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive lab console",
	Long: `Open a console for the enclosing lab. The file server started from the
console keeps serving while you work; it is stopped when the console exits.

Ctrl-C at the console prompt stops the server and exits. Ctrl-C, ESC or an
empty answer inside a question cancels only that question.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// session is one console run against a lab
type session struct {
	ctx     context.Context
	root    string
	name    string
	console *input.Console
}

type consoleCommand struct {
	name  string
	usage string
	help  string
	run   func(s *session, args []string) error
}

var consoleCommands []consoleCommand

func init() {
	consoleCommands = []consoleCommand{
		{"status", "status", "Show the lab and server state", (*session).status},
		{"start", "start [port]", "Start the file server", (*session).start},
		{"stop", "stop", "Stop the file server", (*session).stop},
		{"restart", "restart [port]", "Restart the file server", (*session).restart},
		{"ip", "ip [address]", "Set the target IP", (*session).ip},
		{"fqdn", "fqdn [list|add|remove] [names]", "Manage target host names", (*session).fqdn},
		{"hosts", "hosts [show|update|remove]", "Manage hosts file entries", (*session).hosts},
		{"log", "log [lines]", "Show the end of the server log", (*session).log},
		{"help", "help", "Show this list", (*session).help},
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	root, cfg, err := currentLab()
	if err != nil {
		return err
	}

	interrupts, stopNotify := deps.Interrupts.Notify()
	defer stopNotify()
	uninstall := deps.Lifecycle.InstallSignalHandlers(syscall.SIGTERM)
	defer uninstall()

	s := &session{
		ctx:     cmd.Context(),
		root:    root,
		name:    cfg.DisplayName(),
		console: input.NewConsole(deps.Stdin, deps.Stdout, interrupts),
	}

	output.PrintBanner("labcmdr: " + s.name)
	output.Print("Type 'help' for commands, 'quit' or Ctrl-C to exit")
	return s.loop()
}

func (s *session) loop() error {
	for {
		line, err := s.console.Next(fmt.Sprintf("labcmdr(%s)> ", s.name))
		if errors.Is(err, input.ErrInterrupted) || errors.Is(err, io.EOF) {
			return s.quit()
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if name == "quit" || name == "exit" || name == "q" {
			return s.quit()
		}

		c, ok := lookupConsoleCommand(name)
		if !ok {
			output.Warn("Unknown command %q (type 'help')", fields[0])
			continue
		}
		logger.Debug("Console command %s %v", c.name, fields[1:])
		if err := c.run(s, fields[1:]); err != nil {
			if errors.Is(err, errors.ErrCancelled) {
				output.Info("Cancelled")
				continue
			}
			reportError(err)
		}
	}
}

func lookupConsoleCommand(name string) (consoleCommand, bool) {
	for _, c := range consoleCommands {
		if c.name == name {
			return c, true
		}
	}
	return consoleCommand{}, false
}

// quit stops a server started from this console
func (s *session) quit() error {
	if deps.Lifecycle.State() == server.Running {
		output.Info("Stopping file server...")
	}
	if err := deps.Lifecycle.Close(); err != nil {
		return err
	}
	output.Print("Bye")
	return nil
}

func (s *session) status(args []string) error {
	cfg, err := lab.Load(s.root)
	if err != nil {
		return err
	}
	return printStatus(newLabStatus(s.root, cfg))
}

func (s *session) start(args []string) error {
	port, err := portArg(args)
	if err != nil {
		return err
	}
	_, err = startServer(s.ctx, s.root, port)
	return err
}

func (s *session) stop(args []string) error {
	return stopServer(s.ctx, s.root)
}

func (s *session) restart(args []string) error {
	port, err := portArg(args)
	if err != nil {
		return err
	}
	_, err = restartServer(s.ctx, s.root, port)
	return err
}

func (s *session) ip(args []string) error {
	var addr string
	if len(args) > 0 {
		addr = args[0]
	} else {
		answer, err := s.console.Prompt("Target IP: ")
		if err != nil {
			return err
		}
		addr = answer
	}

	var cfg *lab.Config
	err := lab.Update(s.root, func(c *lab.Config) error {
		if err := c.SetIP(addr); err != nil {
			return err
		}
		cfg = c
		return nil
	})
	if err != nil {
		return err
	}
	output.Success("Target IP set to %s", addr)
	syncHosts(loadGlobal(), cfg)
	return nil
}

func (s *session) fqdn(args []string) error {
	action := "list"
	if len(args) > 0 {
		action, args = strings.ToLower(args[0]), args[1:]
	}

	switch action {
	case "list", "ls":
		cfg, err := lab.Load(s.root)
		if err != nil {
			return err
		}
		printFQDNs(cfg)
		return nil

	case "add", "remove", "rm":
		names := args
		if len(names) == 0 {
			answer, err := s.console.Prompt("Host names (comma separated): ")
			if err != nil {
				return err
			}
			names = splitList(answer)
		}
		var cfg *lab.Config
		var err error
		if action == "add" {
			cfg, err = addFQDNs(s.root, names)
		} else {
			cfg, err = removeFQDNs(s.root, names)
		}
		if err != nil {
			return err
		}
		output.Success("Host names: %s", strings.Join(cfg.Network.FQDN, ", "))
		syncHosts(loadGlobal(), cfg)
		return nil
	}
	return errors.Validation(fmt.Sprintf("unknown fqdn action %q (list, add or remove)", action))
}

func (s *session) hosts(args []string) error {
	action := "show"
	if len(args) > 0 {
		action = strings.ToLower(args[0])
	}
	cfg, err := lab.Load(s.root)
	if err != nil {
		return err
	}

	switch action {
	case "show":
		g := loadGlobal()
		m := hostsManager(g)
		lines, err := m.Read()
		if err != nil {
			return err
		}
		res := hostsResult{File: m.Path, Lab: cfg.DisplayName()}
		res.Entries = hosts.Entries(lines, res.Lab)
		if len(res.Entries) == 0 {
			output.Info("No entries for %s in %s", res.Lab, res.File)
			return nil
		}
		output.Print("%s", strings.Join(res.Entries, "\n"))
		return nil

	case "update":
		res, err := updateHosts(cfg)
		if err != nil {
			return err
		}
		output.Success("Wrote %d entries for %s to %s", len(res.Entries), res.Lab, res.File)
		return nil

	case "remove", "rm":
		g := loadGlobal()
		if g.Behavior.ConfirmDestructive {
			ok, err := s.console.Confirm(fmt.Sprintf("Remove %s entries from %s? [y/N]: ", cfg.DisplayName(), hostsManager(g).Path), false)
			if err != nil {
				return err
			}
			if !ok {
				return errors.ErrCancelled
			}
		}
		res, err := removeHosts(cfg)
		if err != nil {
			return err
		}
		output.Success("Removed %d entries for %s", res.Removed, res.Lab)
		return nil
	}
	return errors.Validation(fmt.Sprintf("unknown hosts action %q (show, update or remove)", action))
}

func (s *session) log(args []string) error {
	lines := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return errors.Validation(fmt.Sprintf("invalid line count %q", args[0]))
		}
		lines = n
	}
	cfg, err := lab.Load(s.root)
	if err != nil {
		return err
	}
	path := lab.Str(cfg.Runtime.ServerLog)
	if path == "" {
		path = lab.LogPath(s.root)
	}
	return tailLog(path, lines, false)
}

func (s *session) help(args []string) error {
	rows := make([][]string, 0, len(consoleCommands)+1)
	for _, c := range consoleCommands {
		rows = append(rows, []string{c.usage, c.help})
	}
	rows = append(rows, []string{"quit", "Stop the server and leave"})
	output.Table([]string{"COMMAND", "DESCRIPTION"}, rows)
	return nil
}

// portArg parses an optional port argument; 0 means the default
func portArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		return 0, errors.Validation(fmt.Sprintf("invalid port %q", args[0]))
	}
	return port, nil
}
