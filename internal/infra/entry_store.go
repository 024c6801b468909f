package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

const (
	entryDBName = "entries.db"

	// entryResync re-reads today's entry even without a file event, which also
	// catches the midnight rollover.
	entryResync = time.Minute
)

// Completion is one row of the completion log.
type Completion struct {
	Day         string
	Words       uint32
	CompletedAt time.Time
}

// EntryStore keeps journal entries and the completion log in a SQLCipher
// encrypted SQLite database. The CLI writes, the daemon subscribes.
type EntryStore struct {
	db     *sql.DB
	dbPath string
	clock  clock.Clock
	logger *zap.Logger
}

// NewEntryStore opens (or creates) the encrypted entry database in dataDir.
// The key is used as the SQLCipher raw key via PRAGMA key.
func NewEntryStore(dataDir string, key []byte, c clock.Clock, logger *zap.Logger) (*EntryStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if c == nil {
		c = clock.Real{}
	}

	dbPath := filepath.Join(dataDir, entryDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000",
		dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on the first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EntryStore{db: db, dbPath: dbPath, clock: c, logger: logger}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *EntryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		day TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		word_count INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completions (
		day TEXT PRIMARY KEY,
		words INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EntryStore) Path() string {
	return s.dbPath
}

// --- domain.EntrySource implementation ---

// Today returns today's entry. A missing entry has WordCount 0.
func (s *EntryStore) Today(ctx context.Context) (domain.TodayEntry, error) {
	day := domain.DayOf(s.clock.Now())
	entry := domain.TodayEntry{Date: day}

	var words int64
	err := s.db.QueryRowContext(ctx, `SELECT word_count FROM entries WHERE day = ?`, day).Scan(&words)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil
	}
	if err != nil {
		return domain.TodayEntry{}, fmt.Errorf("failed to read entry for %s: %w", day, err)
	}
	entry.WordCount = uint32(words)
	return entry, nil
}

// Subscribe streams today's entry whenever the database changes, starting with
// the current value. Unchanged values are not repeated.
func (s *EntryStore) Subscribe(ctx context.Context) (<-chan domain.TodayEntry, error) {
	dir, base := filepath.Dir(s.dbPath), filepath.Base(s.dbPath)
	changes, err := watchDir(ctx, dir, func(name string) bool {
		return strings.HasPrefix(filepath.Base(name), base)
	}, 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.TodayEntry)
	go func() {
		defer close(out)

		resync := time.NewTicker(entryResync)
		defer resync.Stop()

		var last *domain.TodayEntry
		emit := func() bool {
			entry, err := s.Today(ctx)
			if err != nil {
				s.logger.Warn("entry read failed", zap.Error(err))
				return true
			}
			if last != nil && *last == entry {
				return true
			}
			select {
			case out <- entry:
				last = &entry
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

// --- domain.EntryWriter implementation ---

// SaveToday replaces today's entry body.
func (s *EntryStore) SaveToday(ctx context.Context, body string) (domain.TodayEntry, error) {
	now := s.clock.Now()
	entry := domain.TodayEntry{Date: domain.DayOf(now), WordCount: domain.CountWords(body)}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries (day, body, word_count, updated_at)
		VALUES (?, ?, ?, ?)`,
		entry.Date, body, entry.WordCount, now.Unix(),
	)
	if err != nil {
		return domain.TodayEntry{}, fmt.Errorf("failed to save entry: %w", err)
	}
	return entry, nil
}

// AppendToday adds text to today's entry, separated by a blank line.
func (s *EntryStore) AppendToday(ctx context.Context, text string) (domain.TodayEntry, error) {
	body, err := s.Body(ctx, domain.DayOf(s.clock.Now()))
	if err != nil {
		return domain.TodayEntry{}, err
	}
	if body != "" {
		body += "\n\n"
	}
	return s.SaveToday(ctx, body+text)
}

// Body returns the stored text for day, empty if none.
func (s *EntryStore) Body(ctx context.Context, day string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM entries WHERE day = ?`, day).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read entry for %s: %w", day, err)
	}
	return body, nil
}

// --- domain.CompletionHook implementation ---

// JournalCompleted logs the first completion of day. Repeats are ignored, so a
// daemon restart cannot log a day twice.
func (s *EntryStore) JournalCompleted(ctx context.Context, day string, words uint32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO completions (day, words, completed_at)
		VALUES (?, ?, ?)`,
		day, words, s.clock.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}

// Completions returns the most recent completions, newest first.
func (s *EntryStore) Completions(ctx context.Context, limit int) ([]Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, words, completed_at FROM completions ORDER BY day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		var words, at int64
		if err := rows.Scan(&c.Day, &words, &at); err != nil {
			return nil, err
		}
		c.Words = uint32(words)
		c.CompletedAt = time.Unix(at, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *EntryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ domain.EntrySource    = (*EntryStore)(nil)
	_ domain.EntryWriter    = (*EntryStore)(nil)
	_ domain.CompletionHook = (*EntryStore)(nil)
)
