package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"siaguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:siaguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			account TEXT NOT NULL,
			message_type TEXT NOT NULL,
			code TEXT NOT NULL,
			zone TEXT,
			partition_num TEXT,
			message TEXT,
			receiver TEXT,
			line TEXT,
			raw TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_account ON events(account)`,
		`CREATE TABLE IF NOT EXISTS counters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			name TEXT NOT NULL,
			value INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_counters_name_ts ON counters(name, ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	if s.db == nil || ev == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, account, message_type, code, zone, partition_num, message, receiver, line, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		eventTS(ev),
		ev.AccountID,
		ev.MessageType,
		ev.Code,
		ev.Zone,
		ev.Partition,
		ev.Message,
		ev.Receiver,
		ev.Line,
		ev.Raw,
	)
	return err
}

func (s *sqliteStore) SaveCounts(ctx context.Context, counts map[string]int64) error {
	if s.db == nil || len(counts) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO counters (ts, name, value) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	ts := nowUTC()
	for name, value := range counts {
		if _, err := stmt.ExecContext(ctx, ts, name, value); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
