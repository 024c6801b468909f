package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// CommandRunner abstracts command execution for testing.
type CommandRunner interface {
	// Run executes a command and waits for it to complete.
	Run(ctx context.Context, name string, args ...string) error
	// Launch starts a command without waiting for it.
	Launch(name string, args ...string) error
}

// RealCommandRunner executes real system commands.
type RealCommandRunner struct{}

// Run executes a command and waits for it to complete.
func (r *RealCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Launch starts a command and releases it.
func (r *RealCommandRunner) Launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// DesktopNotifier shows desktop notifications: notify-send on Linux,
// osascript on macOS.
type DesktopNotifier struct {
	runner CommandRunner
	goos   string
}

// NewDesktopNotifier creates a notifier for the running platform.
func NewDesktopNotifier() *DesktopNotifier {
	return NewDesktopNotifierWithDeps(&RealCommandRunner{}, runtime.GOOS)
}

// NewDesktopNotifierWithDeps creates a notifier with a custom runner and platform (for testing).
func NewDesktopNotifierWithDeps(runner CommandRunner, goos string) *DesktopNotifier {
	return &DesktopNotifier{runner: runner, goos: goos}
}

// Notify shows title and body. urgent notifications stay until dismissed where
// the platform allows it.
func (n *DesktopNotifier) Notify(ctx context.Context, title, body string, urgent bool) error {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(body), appleScriptString(title))
		return n.runner.Run(ctx, "osascript", "-e", script)
	case "linux":
		urgency := "normal"
		if urgent {
			urgency = "critical"
		}
		return n.runner.Run(ctx, "notify-send", "-a", AppName, "-u", urgency, title, body)
	default:
		return fmt.Errorf("notifications not supported on %s", n.goos)
	}
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// JournalNavigator implements domain.Navigator: it kills the blocked process,
// says why, and opens the journal.
type JournalNavigator struct {
	pm       domain.ProcessManager
	notifier *DesktopNotifier
	runner   CommandRunner
	goos     string
	command  func() string
	logger   *zap.Logger
}

// NewJournalNavigator creates a navigator. command returns the configured
// journal command; empty means the notification alone points at `journalgate write`.
func NewJournalNavigator(pm domain.ProcessManager, notifier *DesktopNotifier, command func() string, logger *zap.Logger) *JournalNavigator {
	return NewJournalNavigatorWithDeps(pm, notifier, &RealCommandRunner{}, runtime.GOOS, command, logger)
}

// NewJournalNavigatorWithDeps creates a navigator with a custom runner and platform (for testing).
func NewJournalNavigatorWithDeps(
	pm domain.ProcessManager,
	notifier *DesktopNotifier,
	runner CommandRunner,
	goos string,
	command func() string,
	logger *zap.Logger,
) *JournalNavigator {
	if command == nil {
		command = func() string { return "" }
	}
	return &JournalNavigator{
		pm:       pm,
		notifier: notifier,
		runner:   runner,
		goos:     goos,
		command:  command,
		logger:   logger,
	}
}

// Redirect attempts every step and returns the joined failures.
func (n *JournalNavigator) Redirect(ctx context.Context, trigger domain.ForegroundEvent) error {
	var errs []error

	if trigger.PID > 0 && trigger.PID != n.pm.GetCurrentPID() {
		if err := n.pm.Kill(trigger.PID); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill %s (%d): %w", trigger.Package, trigger.PID, err))
		}
	}

	body := fmt.Sprintf("%s is blocked until today's journal is written. Run `%s write`.", trigger.Package, AppName)
	if err := n.notifier.Notify(ctx, "Journal first", body, true); err != nil {
		errs = append(errs, fmt.Errorf("failed to notify: %w", err))
	}

	if command := strings.TrimSpace(n.command()); command != "" {
		if err := n.open(command); err != nil {
			errs = append(errs, fmt.Errorf("failed to open journal: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	n.logger.Debug("redirected", zap.String("package", trigger.Package), zap.Int("pid", trigger.PID))
	return nil
}

// open hands URLs and existing paths to the platform opener and runs anything
// else through the shell.
func (n *JournalNavigator) open(command string) error {
	target := ExpandHome(command)
	if isOpenTarget(target) {
		opener := "xdg-open"
		if n.goos == "darwin" {
			opener = "open"
		}
		return n.runner.Launch(opener, target)
	}
	return n.runner.Launch("sh", "-c", command)
}

func isOpenTarget(target string) bool {
	if strings.Contains(target, "://") && !strings.ContainsAny(target, " \t") {
		return true
	}
	_, err := os.Stat(target)
	return err == nil
}

// GentleReminder implements domain.Reminder with a normal-urgency notification.
type GentleReminder struct {
	notifier *DesktopNotifier
}

// NewGentleReminder creates a reminder.
func NewGentleReminder(notifier *DesktopNotifier) *GentleReminder {
	return &GentleReminder{notifier: notifier}
}

// Remind shows a dismissible reminder naming pkg.
func (r *GentleReminder) Remind(ctx context.Context, pkg string) error {
	body := fmt.Sprintf("Morning journal first? You opened %s. Run `%s write` when ready.", pkg, AppName)
	return r.notifier.Notify(ctx, "Journal reminder", body, false)
}

var (
	_ domain.Navigator = (*JournalNavigator)(nil)
	_ domain.Reminder  = (*GentleReminder)(nil)
	_ CommandRunner    = (*RealCommandRunner)(nil)
)
