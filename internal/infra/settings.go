package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// Settings keys in config.yaml. Each can be overridden with JOURNALGATE_<KEY>.
const (
	KeyBlockingEnabled   = "blocking_enabled"
	KeyWindowStartHour   = "window_start_hour"
	KeyWindowEndHour     = "window_end_hour"
	KeyDurationMinutes   = "duration_minutes"
	KeyRequiredWordCount = "required_word_count"
	KeyBlockedPackages   = "blocked_packages"
	KeyEnforcementMode   = "enforcement_mode"
	KeyJournalCommand    = "journal_command"
)

const (
	configName = "config"
	configType = "yaml"
	envPrefix  = "JOURNALGATE"

	settingsResync = time.Minute
)

// SettingsKeys lists every key in display order.
var SettingsKeys = []string{
	KeyBlockingEnabled,
	KeyWindowStartHour,
	KeyWindowEndHour,
	KeyDurationMinutes,
	KeyRequiredWordCount,
	KeyBlockedPackages,
	KeyEnforcementMode,
	KeyJournalCommand,
}

// ViperSettings implements domain.SettingsSource on top of a viper-managed
// config.yaml in the config directory.
type ViperSettings struct {
	dir    string
	logger *zap.Logger

	mu sync.Mutex // viper instances are not safe for concurrent use
	v  *viper.Viper
}

// NewViperSettings creates a settings source for configDir.
func NewViperSettings(configDir string, logger *zap.Logger) *ViperSettings {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	defaults := domain.DefaultSettings()
	v.SetDefault(KeyBlockingEnabled, defaults.BlockingEnabled)
	v.SetDefault(KeyWindowStartHour, defaults.WindowStartHour)
	v.SetDefault(KeyWindowEndHour, defaults.WindowEndHour)
	v.SetDefault(KeyDurationMinutes, defaults.DurationMinutes)
	v.SetDefault(KeyRequiredWordCount, defaults.RequiredWordCount)
	v.SetDefault(KeyBlockedPackages, []string{})
	v.SetDefault(KeyEnforcementMode, string(defaults.EnforcementMode))
	v.SetDefault(KeyJournalCommand, "")

	return &ViperSettings{dir: configDir, logger: logger, v: v}
}

// Path returns the config file path.
func (s *ViperSettings) Path() string {
	return filepath.Join(s.dir, configName+"."+configType)
}

// Load re-reads config.yaml and returns the validated settings. A missing file
// yields the defaults.
func (s *ViperSettings) Load(ctx context.Context) (domain.EffectiveSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.read(); err != nil {
		return domain.EffectiveSettings{}, err
	}
	return s.decode(false)
}

// Subscribe streams settings whenever config.yaml changes, starting with the
// current value. Unchanged values are not repeated.
func (s *ViperSettings) Subscribe(ctx context.Context) (<-chan domain.EffectiveSettings, error) {
	changes, err := watchDir(ctx, s.dir, func(name string) bool {
		return filepath.Base(name) == configName+"."+configType
	}, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.EffectiveSettings)
	go func() {
		defer close(out)

		resync := time.NewTicker(settingsResync)
		defer resync.Stop()

		var last *domain.EffectiveSettings
		emit := func() bool {
			settings, err := s.Load(ctx)
			if err != nil {
				s.logger.Warn("settings read failed", zap.Error(err))
				return true
			}
			if last != nil && last.Equal(settings) {
				return true
			}
			select {
			case out <- settings:
				last = &settings
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				if !emit() {
					return
				}
			case <-resync.C:
				if !emit() {
					return
				}
			}
		}
	}()
	return out, nil
}

// JournalCommand returns the command that opens the journal, empty for the
// default `journalgate write` prompt.
func (s *ViperSettings) JournalCommand() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.read()
	return s.v.GetString(KeyJournalCommand)
}

// Values returns every key with its effective value, for display.
func (s *ViperSettings) Values() (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.read(); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(SettingsKeys))
	for _, key := range SettingsKeys {
		out[key] = s.v.Get(key)
	}
	return out, nil
}

// Set validates and persists one key. This is the only writer of config.yaml,
// so it is where invalid settings are rejected.
func (s *ViperSettings) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !knownKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := s.read(); err != nil {
		return err
	}

	if key == KeyBlockedPackages {
		s.v.Set(key, splitList(value))
	} else {
		s.v.Set(key, value)
	}

	if _, err := s.decode(true); err != nil {
		// Reload to drop the rejected override.
		s.v.Set(key, nil)
		return err
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.Path()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// read loads config.yaml into viper. Caller holds mu.
func (s *ViperSettings) read() error {
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// decode builds validated settings from viper. An unknown enforcement mode
// falls back to hard unless strict. Caller holds mu.
func (s *ViperSettings) decode(strict bool) (domain.EffectiveSettings, error) {
	raw := s.v.GetString(KeyEnforcementMode)
	mode, ok := domain.ParseEnforcementMode(raw)
	if !ok {
		if strict {
			return domain.EffectiveSettings{}, fmt.Errorf("invalid %s %q", KeyEnforcementMode, raw)
		}
		s.logger.Warn("unknown enforcement mode, using hard", zap.String("mode", raw))
	}

	settings := domain.EffectiveSettings{
		BlockingEnabled:   s.v.GetBool(KeyBlockingEnabled),
		WindowStartHour:   s.v.GetInt(KeyWindowStartHour),
		WindowEndHour:     s.v.GetInt(KeyWindowEndHour),
		DurationMinutes:   s.v.GetUint32(KeyDurationMinutes),
		RequiredWordCount: s.v.GetUint32(KeyRequiredWordCount),
		BlockedPackages:   domain.NewPackageSet(s.v.GetStringSlice(KeyBlockedPackages)...),
		EnforcementMode:   mode,
	}
	if err := ValidateSettings(settings); err != nil {
		return domain.EffectiveSettings{}, err
	}
	return settings, nil
}

// ValidateSettings enforces the ranges every reader relies on.
func ValidateSettings(s domain.EffectiveSettings) error {
	if s.WindowStartHour < 0 || s.WindowStartHour > 23 {
		return fmt.Errorf("%s must be 0..23, got %d", KeyWindowStartHour, s.WindowStartHour)
	}
	if s.WindowEndHour < 1 || s.WindowEndHour > 24 {
		return fmt.Errorf("%s must be 1..24, got %d", KeyWindowEndHour, s.WindowEndHour)
	}
	if s.WindowEndHour <= s.WindowStartHour {
		return fmt.Errorf("%s (%d) must be after %s (%d)",
			KeyWindowEndHour, s.WindowEndHour, KeyWindowStartHour, s.WindowStartHour)
	}
	if s.DurationMinutes == 0 {
		return fmt.Errorf("%s must be positive", KeyDurationMinutes)
	}
	return nil
}

func knownKey(key string) bool {
	for _, k := range SettingsKeys {
		if k == key {
			return true
		}
	}
	return false
}

// splitList accepts "a,b c" style lists.
func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

var _ domain.SettingsSource = (*ViperSettings)(nil)
