package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"siaguard/internal/config"
	"siaguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveEvent(ctx context.Context, ev *model.Event) error
	SaveCounts(ctx context.Context, counts map[string]int64) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// eventTS picks the panel timestamp when present, the receive time
// otherwise, so rows always sort sensibly.
func eventTS(ev *model.Event) time.Time {
	if !ev.Timestamp.IsZero() {
		return ev.Timestamp.UTC()
	}
	return nowUTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
