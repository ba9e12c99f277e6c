package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"deskdrop/internal/config"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const entryColumns = "id, correlation_id, source, target, device, is_dir, bytes, cross_device, wait_ms, status, error, created_at, finished_at"

// Store manages move history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts entry and returns its id. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.Source) == "" {
		return 0, errors.New("history entry requires a source")
	}
	if entry.Status == "" {
		return 0, errors.New("history entry requires a status")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO moves (
            correlation_id, source, target, device, is_dir, bytes,
            cross_device, wait_ms, status, error, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CorrelationID,
		entry.Source,
		nullableString(entry.Target),
		nullableString(entry.Device),
		boolToInt(entry.IsDir),
		entry.Bytes,
		boolToInt(entry.CrossDevice),
		entry.Wait.Milliseconds(),
		entry.Status,
		nullableString(entry.Error),
		entry.CreatedAt.UTC().Format(timeLayout),
		nullableTime(entry.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert move: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Get fetches an entry by id. A missing entry yields nil without error.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM moves WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get move: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM moves ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list moves: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Stats aggregates the table.
func (s *Store) Stats(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1), COALESCE(SUM(bytes), 0) FROM moves GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			status Status
			count  int
			bytes  int64
		)
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusMoved:
			summary.Moved = count
			summary.Bytes = bytes
		case StatusFailed:
			summary.Failed = count
		case StatusSkipped:
			summary.Skipped = count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(finished_at) FROM moves WHERE status = ?`, StatusMoved).Scan(&last); err != nil {
		return Summary{}, fmt.Errorf("last move: %w", err)
	}
	summary.LastMoved = parseTime(last)
	return summary, nil
}

// Prune deletes entries created before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moves WHERE created_at < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune moves: %w", err)
	}
	return res.RowsAffected()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		target      sql.NullString
		device      sql.NullString
		isDir       int
		crossDevice int
		waitMS      int64
		status      string
		errMsg      sql.NullString
		createdRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.CorrelationID,
		&entry.Source,
		&target,
		&device,
		&isDir,
		&entry.Bytes,
		&crossDevice,
		&waitMS,
		&status,
		&errMsg,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	entry.Target = target.String
	entry.Device = device.String
	entry.IsDir = isDir != 0
	entry.CrossDevice = crossDevice != 0
	entry.Wait = time.Duration(waitMS) * time.Millisecond
	entry.Status = Status(status)
	entry.Error = errMsg.String
	entry.CreatedAt = parseTime(createdRaw)
	entry.FinishedAt = parseTime(finishedRaw)
	return &entry, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
