package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"app-activate/internal/audit"
	"app-activate/internal/autostart"
	"app-activate/internal/config"
	"app-activate/internal/ipc"
	"app-activate/internal/sessionlog"
)

var (
	sendIPCFn      = ipc.Send
	newAutostartFn = autostart.New
	runHostFn      = runHost
)

// exitError carries a specific process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) && ee.code != 0 {
		return ee.code
	}
	return 1
}

// errNotRunningCLI is returned by commands that need a running launcher.
var errNotRunningCLI = errors.New("app-activate is not running")

type cliOptions struct {
	configPath string
	debug      bool
	level      *slog.LevelVar
	ring       *sessionlog.Ring
}

// resolvedConfigPath honours --config, then $APP_ACTIVATE_CONFIG, then the
// XDG default.
func (o *cliOptions) resolvedConfigPath() (string, error) {
	if p := strings.TrimSpace(o.configPath); p != "" {
		return config.ExpandPath(p)
	}
	return config.DefaultPath(), nil
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{
		level: new(slog.LevelVar),
		ring:  sessionlog.NewRing(sessionlog.DefaultRingSize),
	}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Leader-key application launcher",
		Long: `app-activate launches applications with two-key chords.

Press the leader key, then a second key bound to an application. Pressing
the leader again switches to the secondary set. Keys are only grabbed while
a chord is in progress.`,
		Example: `  # Run the launcher in the foreground
  app-activate

  # Start at login
  app-activate register

  # Show launch counts
  app-activate report`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				opts.level.Set(slog.LevelDebug)
			}
			installLogger(cmd.ErrOrStderr(), opts.level, opts.ring)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHostFn(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default $APP_ACTIVATE_CONFIG or the XDG config dir)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the launcher in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHostFn(cmd.Context(), opts)
		},
	}

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Start the launcher at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := newLoginEntry(opts)
			if err := entry.Enable(); err != nil {
				return fmt.Errorf("register login item: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", entry.Location())
			return err
		},
	}

	unregisterCmd := &cobra.Command{
		Use:   "unregister",
		Short: "Stop starting the launcher at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := newLoginEntry(opts)
			err := entry.Disable()
			switch {
			case errors.Is(err, autostart.ErrNotEnabled):
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "not registered")
				return err
			case err != nil:
				return fmt.Errorf("unregister login item: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", entry.Location())
			return err
		},
	}

	var reportDB string
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show launch counts for today, the last 7 days and the last 30 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printReport(cmd.Context(), cmd.OutOrStdout(), opts, reportDB)
		},
	}
	reportCmd.Flags().StringVar(&reportDB, "db", "", "Audit database (default: db from the config file)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running launcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendControl(cmd.OutOrStdout(), ipc.CommandStatus)
		},
	}

	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask the running launcher to re-read its config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendControl(cmd.OutOrStdout(), ipc.CommandReload)
		},
	}

	keysCmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"bindings"},
		Short:   "List the configured chords",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolvedConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			_, err = lipgloss.Fprint(cmd.OutOrStdout(), renderBindings(cfg))
			return err
		},
	}

	rootCmd.AddCommand(startCmd, registerCmd, unregisterCmd, reportCmd, statusCmd, reloadCmd, keysCmd, newConfigCmd(opts))
	return rootCmd
}

func newConfigCmd(opts *cliOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	configPathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolvedConfigPath()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	configInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolvedConfigPath()
			if err != nil {
				return err
			}
			_, created, err := config.EnsureFile(path)
			if err != nil {
				return err
			}
			if created {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
			}
			return err
		},
	}

	configCheckCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolvedConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (leader %s, %d primary, %d secondary, timeout %s)\n",
				path, cfg.LeaderKey, len(cfg.Applications), len(cfg.SecondaryApplications), cfg.Timeout())
			return err
		},
	}

	configCmd.AddCommand(configPathCmd, configInitCmd, configCheckCmd)
	return configCmd
}

// newLoginEntry points the login item at "start", carrying --config when it
// was given explicitly.
func newLoginEntry(opts *cliOptions) autostart.Autostart {
	args := []string{"start"}
	if strings.TrimSpace(opts.configPath) != "" {
		if path, err := opts.resolvedConfigPath(); err == nil {
			args = append(args, "--config", path)
		}
	}
	return newAutostartFn(appName, args...)
}

// runHost runs the launcher until SIGINT or SIGTERM.
func runHost(ctx context.Context, opts *cliOptions) error {
	path, err := opts.resolvedConfigPath()
	if err != nil {
		return err
	}
	if _, created, err := config.EnsureFile(path); err != nil {
		return err
	} else if created {
		slog.Info("[app] wrote default config", "path", path)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(path, opts.level, opts.ring, opts.debug)
	defer app.shutdown()
	if err := app.startup(ctx); err != nil {
		return err
	}
	return app.run(ctx)
}

func printReport(ctx context.Context, w io.Writer, opts *cliOptions, dbOverride string) error {
	path, err := resolveReportDB(opts, dbOverride)
	if err != nil {
		return err
	}
	store, err := audit.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return audit.WriteReport(ctx, w, store, time.Now())
}

func resolveReportDB(opts *cliOptions, dbOverride string) (string, error) {
	if p := strings.TrimSpace(dbOverride); p != "" {
		return config.ExpandPath(p)
	}
	configPath, err := opts.resolvedConfigPath()
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	path, err := cfg.ResolveDB(configPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("auditing is disabled: set db in %s or pass --db", configPath)
	}
	return path, nil
}

// sendControl forwards one command to the running launcher.
func sendControl(w io.Writer, command string) error {
	resp, err := sendIPCFn("", ipc.Request{Command: command})
	if err != nil {
		if ipc.IsConnectionError(err) {
			return &exitError{code: 3, err: errNotRunningCLI}
		}
		return fmt.Errorf("%s: %w", command, err)
	}
	if resp.Stdout != "" {
		if _, err := io.WriteString(w, resp.Stdout); err != nil {
			return err
		}
	}
	if resp.ExitCode != 0 {
		msg := strings.TrimSpace(resp.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("%s failed", command)
		}
		return &exitError{code: resp.ExitCode, err: errors.New(msg)}
	}
	return nil
}

// renderBindings formats the leader and both application sets.
func renderBindings(cfg config.Config) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	keyStyle := cellStyle.Foreground(lipgloss.Color("11"))

	var rows [][]string
	appendSet := func(set string, bindings map[string]string) {
		labels := make([]string, 0, len(bindings))
		for label := range bindings {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			rows = append(rows, []string{set, cfg.LeaderKey + " " + label, bindings[label]})
		}
	}
	appendSet("primary", cfg.Applications)
	appendSet("secondary", cfg.SecondaryApplications)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("Set", "Chord", "Target").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return keyStyle
			default:
				return cellStyle
			}
		})

	title := titleStyle.Render(fmt.Sprintf("Leader %s, timeout %s", cfg.LeaderKey, cfg.Timeout()))
	return title + "\n" + t.Render() + "\n"
}
