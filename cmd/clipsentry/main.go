// Package main is the CLI entry point for clipsentry.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipsentry/clipsentry/internal/daemon"
	"github.com/clipsentry/clipsentry/internal/domain"
	"github.com/clipsentry/clipsentry/internal/infra"
	"github.com/clipsentry/clipsentry/internal/transport"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clipsentry",
	Short: "Auto-clears the clipboard after sensitive pastes",
	Long: `clipsentry runs a background daemon that receives paste detections
from agent surfaces (browser bridge, terminal integrations), debounces a
countdown, and clears the system clipboard when it expires. It bounds how
long pasted secrets stay exposed; it does not stop a fast reader.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and current settings",
	RunE:  runStatus,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print the current settings record",
	RunE:  runSettings,
}

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable clipboard clearing",
	RunE:  func(cmd *cobra.Command, args []string) error { return sendToggle(true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable clipboard clearing (cancels any countdown without clearing)",
	RunE:  func(cmd *cobra.Command, args []string) error { return sendToggle(false) },
}

var setIntervalCmd = &cobra.Command{
	Use:   "set-interval <seconds>",
	Short: "Set the clear delay in seconds (1-300)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetInterval,
}

var passwordOnlyCmd = &cobra.Command{
	Use:   "password-only <on|off>",
	Short: "Clear only after pastes into password fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runPasswordOnly,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the clipboard now",
	RunE:  runClear,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart <install|uninstall|status>",
	Short: "Manage starting the daemon at login",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutostart,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

// Hidden serve command - the actual daemon process, spawned by start.
var serveCmd = &cobra.Command{
	Use:    "serve",
	Hidden: true,
	RunE:   runServe,
}

// Hidden helper command - the offscreen clear host, spawned by the daemon.
var helperCmd = &cobra.Command{
	Use:    "helper",
	Hidden: true,
	RunE:   runHelper,
}

var (
	helperOnce bool
	jsonOutput bool
)

func init() {
	helperCmd.Flags().BoolVar(&helperOnce, "once", false, "Clear once and exit")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(setIntervalCmd)
	rootCmd.AddCommand(passwordOnlyCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(helperCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg := infra.LoadConfig()

	snap, err := infra.NewStatusFile(cfg.DataDir).Read()
	if err == nil && snap != nil && infra.NewProcessManager().IsRunning(snap.DaemonPID) {
		fmt.Println("clipsentry is already running")
		return nil
	}

	pid, err := daemon.SpawnDaemon()
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("clipsentry daemon started (pid %d, listening on %s)\n", pid, cfg.ListenAddr)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := infra.LoadConfig()
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("daemon init failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	return d.Run(ctx)
}

func runHelper(cmd *cobra.Command, args []string) error {
	cfg := infra.LoadConfig()
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if helperOnce {
		return daemon.RunHelperOnce(ctx, logger)
	}
	return daemon.RunHelper(ctx, cfg, logger)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := infra.LoadConfig()

	fmt.Println("\n=== clipsentry Status ===")

	snap, err := infra.NewStatusFile(cfg.DataDir).Read()
	if err != nil || snap == nil || !infra.NewProcessManager().IsRunning(snap.DaemonPID) {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'clipsentry start' to enable protection.")
		return nil
	}

	fmt.Printf("Status: RUNNING (pid %d)\n", snap.DaemonPID)
	switch snap.Phase {
	case domain.PhaseCountingDown:
		fmt.Printf("Countdown: %ds remaining (clears at %s)\n",
			snap.RemainingSeconds, snap.Deadline.Format(time.Kitchen))
	case domain.PhaseDisabled:
		fmt.Println("Clearing: disabled")
	default:
		fmt.Println("Countdown: none")
	}
	if snap.Badge != "" {
		fmt.Printf("Badge: %s\n", snap.Badge)
	}
	fmt.Printf("Last update: %s ago\n", time.Since(snap.UpdatedAt).Round(time.Second))

	if resp, err := request(domain.MsgGetSettings, nil); err == nil && resp.Settings != nil {
		printSettings(*resp.Settings)
	}

	fmt.Println("=========================")
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	resp, err := request(domain.MsgGetSettings, nil)
	if err != nil {
		return err
	}
	if resp.Settings == nil {
		return errors.New("daemon returned no settings")
	}
	printSettings(*resp.Settings)
	return nil
}

func printSettings(s domain.Settings) {
	fmt.Printf("\nClear delay: %ds\n", s.ClearDelaySeconds)
	fmt.Printf("Enabled: %v\n", s.Enabled)
	fmt.Printf("Password-only: %v\n", s.ClearOnlyOnPasswordPaste)
}

func sendToggle(enabled bool) error {
	resp, err := request(domain.MsgToggleExtension, domain.ToggleExtension{Enabled: enabled})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("toggle failed: %s", resp.Error)
	}
	if enabled {
		fmt.Println("clipboard clearing enabled")
	} else {
		fmt.Println("clipboard clearing disabled")
	}
	return nil
}

func runSetInterval(cmd *cobra.Command, args []string) error {
	var seconds int
	if _, err := fmt.Sscanf(args[0], "%d", &seconds); err != nil {
		return fmt.Errorf("invalid interval %q", args[0])
	}

	resp, err := request(domain.MsgUpdateSettings, domain.UpdateSettings{Interval: seconds})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("update failed: %s", resp.Error)
	}
	fmt.Printf("clear delay set to %ds\n", seconds)
	return nil
}

func runPasswordOnly(cmd *cobra.Command, args []string) error {
	var value bool
	switch args[0] {
	case "on":
		value = true
	case "off":
		value = false
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	resp, err := request(domain.MsgUpdatePasswordOnly, domain.UpdatePasswordOnly{Value: value})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("update failed: %s", resp.Error)
	}
	fmt.Printf("password-only set to %v\n", value)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	resp, err := request(domain.MsgClearClipboardNow, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("clear failed: %s", resp.Error)
	}
	fmt.Println(resp.Message)
	return nil
}

func runAutostart(cmd *cobra.Command, args []string) error {
	mgr := infra.NewAutostartManager(infra.LoadConfig())

	switch args[0] {
	case "install":
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable path: %w", err)
		}
		if err := mgr.Install(execPath); err != nil {
			return fmt.Errorf("install autostart: %w", err)
		}
		fmt.Printf("autostart installed (%s)\n", mgr.Path())
	case "uninstall":
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("uninstall autostart: %w", err)
		}
		fmt.Println("autostart removed")
	case "status":
		if mgr.Installed() {
			fmt.Printf("autostart: installed (%s)\n", mgr.Path())
		} else {
			fmt.Println("autostart: not installed")
		}
	default:
		return fmt.Errorf("expected install, uninstall or status, got %q", args[0])
	}
	return nil
}

// request connects as a UI session, sends one message, and returns the
// response. Every round trip is bounded; a missing daemon is reported as
// such rather than hanging.
func request(kind domain.MsgKind, payload any) (domain.Response, error) {
	cfg := infra.LoadConfig()
	logger := zap.NewNop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := transport.Dial(ctx, cfg.WSURL(), cfg.AuthToken, domain.RoleUI, "", nil, logger)
	if err != nil {
		if errors.Is(err, domain.ErrEndpointGone) {
			return domain.Response{}, errors.New("daemon not running (try 'clipsentry start')")
		}
		return domain.Response{}, err
	}
	defer client.Close()

	env, err := domain.NewEnvelope("", kind, payload)
	if err != nil {
		return domain.Response{}, err
	}
	return client.Request(ctx, env)
}

func createLogger(cfg infra.Config) *zap.Logger {
	// First run: the data dir does not exist until the settings store
	// creates it, and a detached daemon has no stderr to fall back to.
	_ = os.MkdirAll(filepath.Dir(cfg.LogPath), 0700)

	config := zap.NewProductionConfig()
	config.OutputPaths = []string{cfg.LogPath}
	config.ErrorOutputPaths = []string{cfg.LogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("clipsentry %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
