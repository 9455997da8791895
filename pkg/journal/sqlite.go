package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/cloudengine/pkg/config"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStorage stores records in a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path and
// applies the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, &StorageError{Backend: "sqlite", Operation: "open", Cause: errors.New("path cannot be empty")}
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "open", Cause: err}
		}
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = config.DefaultJournalSQLiteBusy
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, busy.Milliseconds())
	if cfg.WALMode {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "open", Cause: err}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		path:   cfg.Path,
		logger: slog.Default().With("component", "journal.sqlite"),
	}
	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("journal storage initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return &StorageError{Backend: "sqlite", Operation: "create_schema", Cause: err}
	}
	if _, err := s.db.ExecContext(ctx, insertSchemaVersion, SchemaVersion); err != nil {
		return &StorageError{Backend: "sqlite", Operation: "insert_schema_version", Cause: err}
	}

	var version int
	if err := s.db.QueryRowContext(ctx, selectSchemaVersion).Scan(&version); err != nil {
		return &StorageError{Backend: "sqlite", Operation: "get_schema_version", Cause: err}
	}
	if version != SchemaVersion {
		return &StorageError{
			Backend:   "sqlite",
			Operation: "schema_version_mismatch",
			Cause:     fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version),
		}
	}
	return nil
}

func (s *SQLiteStorage) Store(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx, insertCall,
		r.ID, nullString(r.RequestID), r.Endpoint, r.Method, r.URL,
		r.StatusCode, int64(r.Duration), r.Conflicts, nullString(r.Error),
		r.Time.UnixNano(),
	)
	if err != nil {
		return &StorageError{Backend: "sqlite", Operation: "store", Cause: err}
	}
	return nil
}

func (s *SQLiteStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	where, args := buildWhere(query)
	offset := 0
	if query != nil {
		offset = query.Offset
	}
	stmt := selectCalls + where + " ORDER BY called_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, query.limit(), offset)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "query", Cause: err}
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, &StorageError{Backend: "sqlite", Operation: "scan", Cause: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Backend: "sqlite", Operation: "query", Cause: err}
	}
	return records, nil
}

func (s *SQLiteStorage) Count(ctx context.Context, query *Query) (int64, error) {
	where, args := buildWhere(query)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls"+where, args...).Scan(&n); err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "count", Cause: err}
	}
	return n, nil
}

func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM calls WHERE called_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "delete_older_than", Cause: err}
	}
	return rowsAffected(res, "delete_older_than")
}

func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM calls WHERE rowid IN (SELECT rowid FROM calls ORDER BY called_at ASC, rowid ASC LIMIT ?)", n)
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: "delete_oldest", Cause: err}
	}
	return rowsAffected(res, "delete_oldest")
}

// Ping checks that the database is reachable.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return &StorageError{Backend: "sqlite", Operation: "close", Cause: err}
	}
	s.logger.Info("journal storage closed", "path", s.path)
	return nil
}

func buildWhere(query *Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var conditions []string
	var args []any
	if query.Since != nil {
		conditions = append(conditions, "called_at >= ?")
		args = append(args, query.Since.UnixNano())
	}
	if query.Until != nil {
		conditions = append(conditions, "called_at <= ?")
		args = append(args, query.Until.UnixNano())
	}
	if query.Endpoint != "" {
		conditions = append(conditions, "endpoint = ?")
		args = append(args, query.Endpoint)
	}
	if query.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, query.RequestID)
	}
	switch query.Status {
	case StatusSuccess:
		conditions = append(conditions, "error IS NULL")
	case StatusError:
		conditions = append(conditions, "error IS NOT NULL")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		r          Record
		requestID  sql.NullString
		errMsg     sql.NullString
		durationNs int64
		calledAt   int64
	)
	err := rows.Scan(&r.ID, &requestID, &r.Endpoint, &r.Method, &r.URL,
		&r.StatusCode, &durationNs, &r.Conflicts, &errMsg, &calledAt)
	if err != nil {
		return nil, err
	}
	r.RequestID = requestID.String
	r.Error = errMsg.String
	r.Duration = time.Duration(durationNs)
	r.Time = time.Unix(0, calledAt)
	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rowsAffected(res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Backend: "sqlite", Operation: op, Cause: err}
	}
	return n, nil
}
