// Package main is the CLI entry point for journalgate.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/daemon"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/infra"
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
	Use:   "journalgate",
	Short: "Morning journal gate - write first, scroll later",
	Long: `journalgate keeps distracting apps closed in the morning until today's
journal entry is written. The first unlock inside the morning window starts
a grace timer; while it runs, blocked apps are either closed (hard mode) or
met with a reminder (gentle mode). Writing enough words ends it early.`,
	Version:      Version,
	SilenceUsage: true,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gate daemon",
	Long:  `Creates the data directory and encryption key if needed, then launches the gate daemon in the background.`,
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gate daemon",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and blocking status",
	Long:  `Shows whether the daemon is running, today's word count and the blocking countdown.`,
	RunE:  runStatus,
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write today's journal entry from stdin",
	Long: `Reads text from stdin and stores it as today's journal entry.
With --append the text is added to the existing entry instead of replacing it.`,
	RunE: runWrite,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent days the journal was completed",
	RunE:  runHistory,
}

var notifyCmd = &cobra.Command{
	Use:       "notify <unlock|lock|screen-on|time-changed|reset>",
	Short:     "Deliver a device signal to the daemon",
	Long:      `Meant for session hooks (screen locker, login scripts). reset clears today's blocking state.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: signalNames(),
	RunE:      runNotify,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long:  "Keys: " + strings.Join(infra.SettingsKeys, ", "),
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	dataDir      string
	appendEntry  bool
	historyLimit int
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default depends on user/root)")
	writeCmd.Flags().BoolVar(&appendEntry, "append", false, "Append to today's entry instead of replacing it")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 14, "Number of days to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func signalNames() []string {
	names := make([]string, 0, len(domain.AllSignalKinds))
	for _, k := range domain.AllSignalKinds {
		names = append(names, string(k))
	}
	return names
}

// resolvePaths returns the data layout for --data-dir or the mode default.
func resolvePaths() infra.Paths {
	dir := dataDir
	if dir == "" {
		dir = infra.DetectExecMode().DataDir
	}
	return infra.NewPaths(infra.ExpandHome(dir))
}

// openStore opens the encrypted entry store, creating the key on first use.
func openStore(paths infra.Paths, logger *zap.Logger) (*infra.EntryStore, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(paths.DataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	return infra.NewEntryStore(paths.DataDir, key, clock.Real{}, logger)
}

func runStart(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	if err := paths.Ensure(); err != nil {
		return err
	}
	if _, err := infra.EnsureKey(infra.NewFileKeyProvider(paths.DataDir)); err != nil {
		return fmt.Errorf("failed to prepare encryption key: %w", err)
	}

	registry := infra.NewFileRegistry(paths, infra.NewProcessManager())
	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("journalgate is already running")
		return nil
	}

	if err := daemon.StartDaemon(paths.DataDir); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	fmt.Println("\n=== journalgate Started ===")
	fmt.Printf("Execution mode: %s\n", infra.DetectExecMode().Mode)
	fmt.Printf("Data directory: %s\n", paths.DataDir)
	fmt.Printf("Config: %s\n", infra.NewViperSettings(paths.ConfigDir, zap.NewNop()).Path())
	fmt.Printf("Log: %s\n", paths.LogFile)
	fmt.Println("\nHook your session into the gate, e.g. from your screen locker:")
	fmt.Println("  journalgate notify unlock")
	fmt.Println("  journalgate notify lock")
	fmt.Println("===========================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(paths, pm)

	entry, err := registry.Get()
	if err != nil {
		if errors.Is(err, domain.ErrNotRegistered) {
			fmt.Println("journalgate is not running")
			return nil
		}
		return err
	}

	if pm.IsRunning(entry.PID) {
		proc, err := os.FindProcess(entry.PID)
		if err != nil {
			return fmt.Errorf("failed to find daemon: %w", err)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			return fmt.Errorf("failed to signal daemon: %w", err)
		}
		deadline := time.Now().Add(3 * time.Second)
		for pm.IsRunning(entry.PID) && time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
		}
		if pm.IsRunning(entry.PID) {
			if err := pm.Kill(entry.PID); err != nil {
				return fmt.Errorf("failed to kill daemon: %w", err)
			}
		}
	}

	if err := registry.Clear(); err != nil {
		return err
	}
	fmt.Println("journalgate stopped")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()
	registry := infra.NewFileRegistry(paths, infra.NewProcessManager())

	fmt.Println("\n=== journalgate Status ===")

	entry, err := registry.Get()
	alive, _ := registry.IsAlive()
	if err != nil || !alive {
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'journalgate start' to enable the gate.")
	} else {
		fmt.Printf("Daemon: RUNNING (pid %d, v%s)\n", entry.PID, entry.AppVersion)
		if entry.LastHeartbeat > 0 {
			lastBeat := time.Unix(entry.LastHeartbeat, 0)
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
		}
		fmt.Printf("Blocking: %s\n", describeBlocking(entry.Status, time.Now()))
		if entry.Status.Backend != "" {
			fmt.Printf("Enforcement: %s\n", entry.Status.Backend)
		}
		fmt.Printf("Unlock monitor: %s\n", onOff(entry.Status.MonitorRunning))
	}

	settings, err := infra.NewViperSettings(paths.ConfigDir, zap.NewNop()).Load(cmd.Context())
	if err != nil {
		fmt.Printf("\nSettings: invalid (%v)\n", err)
	} else {
		fmt.Printf("\nGate: %s, window %02d:00-%02d:00, %d min, %d words, %s mode\n",
			onOff(settings.BlockingEnabled), settings.WindowStartHour, settings.WindowEndHour,
			settings.DurationMinutes, settings.RequiredWordCount, settings.EnforcementMode)
		if blocked := settings.BlockedPackages.List(); len(blocked) > 0 {
			fmt.Printf("Blocked: %s\n", strings.Join(blocked, ", "))
		}

		if store, err := openStore(paths, zap.NewNop()); err == nil {
			if today, err := store.Today(cmd.Context()); err == nil {
				fmt.Printf("Today: %d/%d words\n", today.WordCount, settings.RequiredWordCount)
			}
			store.Close()
		}
	}

	fmt.Println("==========================")
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	paths := resolvePaths()

	text, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read entry: %w", err)
	}

	store, err := openStore(paths, zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	var today domain.TodayEntry
	if appendEntry {
		today, err = store.AppendToday(ctx, string(text))
	} else {
		today, err = store.SaveToday(ctx, string(text))
	}
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	settings, err := infra.NewViperSettings(paths.ConfigDir, zap.NewNop()).Load(ctx)
	if err != nil {
		settings = domain.DefaultSettings()
	}

	fmt.Printf("Saved %d words for %s.\n", today.WordCount, today.Date)
	if settings.Satisfied(today.WordCount) {
		fmt.Println("You're done for today. Enjoy your morning.")
		return nil
	}
	fmt.Printf("%d more words to go.\n", settings.RequiredWordCount-today.WordCount)

	registry := infra.NewFileRegistry(paths, infra.NewProcessManager())
	if entry, err := registry.Get(); err == nil && entry.Status.Blocking {
		fmt.Printf("Blocking: %s\n", describeBlocking(entry.Status, time.Now()))
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths(), zap.NewNop())
	if err != nil {
		return err
	}
	defer store.Close()

	completions, err := store.Completions(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(completions) == 0 {
		fmt.Println("No completed days yet.")
		return nil
	}
	for _, c := range completions {
		fmt.Printf("%s  %5d words  completed %s\n", c.Day, c.Words, c.CompletedAt.Format("15:04"))
	}
	return nil
}

func runNotify(cmd *cobra.Command, args []string) error {
	kind, ok := domain.ParseSignalKind(args[0])
	if !ok {
		return fmt.Errorf("unknown signal %q", args[0])
	}
	return infra.WriteSignal(resolvePaths(), kind, time.Now())
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := infra.NewViperSettings(resolvePaths().ConfigDir, zap.NewNop())
	values, err := settings.Values()
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n", settings.Path())
	for _, key := range infra.SettingsKeys {
		fmt.Printf("%s: %v\n", key, values[key])
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings := infra.NewViperSettings(resolvePaths().ConfigDir, zap.NewNop())
	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s updated\n", args[0])
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("journalgate %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// describeBlocking renders the status snapshot as one line.
func describeBlocking(s domain.StatusSnapshot, now time.Time) string {
	switch {
	case s.JournalCompleted:
		return "done for today (journal written)"
	case s.Blocking && s.BlockingEndsAt > 0:
		left := time.Unix(s.BlockingEndsAt, 0).Sub(now)
		if left <= 0 {
			return "ending"
		}
		return fmt.Sprintf("active, %s left", left.Round(time.Second))
	case s.Armed:
		return "finished for today"
	default:
		return "idle"
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
