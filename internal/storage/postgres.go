package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"siaguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/siaguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
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
			id BIGSERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			name TEXT NOT NULL,
			value BIGINT NOT NULL
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

func (s *postgresStore) SaveEvent(ctx context.Context, ev *model.Event) error {
	if s.db == nil || ev == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (ts, account, message_type, code, zone, partition_num, message, receiver, line, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
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

func (s *postgresStore) SaveCounts(ctx context.Context, counts map[string]int64) error {
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
		`INSERT INTO counters (ts, name, value) VALUES ($1, $2, $3)`)
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
