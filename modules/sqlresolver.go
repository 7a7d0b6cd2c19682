package modules

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/wippyai/jsbridge/errors"
)

const sqlPrefix = "sqlite:"

// SQLResolver serves module sources from a modules(id, source) table.
// Ids are looked up as-is and with a .js suffix.
type SQLResolver struct {
	db *sql.DB
}

// OpenSQLResolver opens (or creates) an SQLite module database.
func OpenSQLResolver(ctx context.Context, dsn string) (*SQLResolver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "open module database")
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)
	r := &SQLResolver{db: db}
	if err := r.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLResolver) init(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS modules (id TEXT PRIMARY KEY, source TEXT NOT NULL)`)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "create modules table")
	}
	return nil
}

// Put stores or replaces a module source.
func (r *SQLResolver) Put(ctx context.Context, id, source string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO modules (id, source) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET source = excluded.source`, id, source)
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "store module "+id)
	}
	return nil
}

func (r *SQLResolver) Name() string { return "sqlite" }

func (r *SQLResolver) Resolve(id string) (Asset, bool) {
	for _, cand := range []string{id, id + ".js"} {
		var one int
		err := r.db.QueryRow(`SELECT 1 FROM modules WHERE id = ?`, cand).Scan(&one)
		if err == nil {
			return Asset{ID: cand, Path: sqlPrefix + cand}, true
		}
	}
	return Asset{}, false
}

func (r *SQLResolver) Read(p string) ([]byte, error) {
	id := strings.TrimPrefix(p, sqlPrefix)
	var src string
	err := r.db.QueryRow(`SELECT source FROM modules WHERE id = ?`, id).Scan(&src)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ModuleNotFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "read module "+id)
	}
	return []byte(src), nil
}

func (r *SQLResolver) Close() error {
	return r.db.Close()
}
