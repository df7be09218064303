// Package sqlitedb provides the embedded on-disk engine for the collection
// store: one sqlite table of (key, value) rows, opened from the configured
// data directory. No server process is involved; this is the durable local
// storage of the application.
package sqlitedb

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/storage/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

type store struct {
	db    *sqlx.DB
	quota int64
}

var _ database.Store = (*store)(nil)

func Open(conf *core.Config) (database.Store, error) {
	if err := os.MkdirAll(conf.Database.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}
	path := filepath.Join(conf.Database.Dir, "darasa.db")
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite db")
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return &store{db: db, quota: conf.Storage.Quota}, nil
}

func (s *store) Get(key string) ([]byte, bool, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM collections WHERE key = ?`, key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "selecting value")
	}
	return []byte(value), true, nil
}

func (s *store) Set(key string, value []byte) error {
	var others int64
	err := s.db.Get(&others, `SELECT COALESCE(SUM(LENGTH(value)), 0) FROM collections WHERE key != ?`, key)
	if err != nil {
		return errors.Wrap(err, "sizing store")
	}
	if size := others + int64(len(value)); size > s.quota {
		return &database.QuotaExceededError{Key: key, Size: size, Quota: s.quota}
	}

	_, err = s.db.Exec(
		`INSERT INTO collections (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value),
	)
	return errors.Wrap(err, "upserting value")
}

func (s *store) Close() error { return s.db.Close() }
