// Package pgstore implements kvstore.Store on a PostgreSQL table, so several
// processes can share one preference database.
package pgstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

const (
	defaultTableName = "kv_entries"
	dialectPostgres  = "postgres"
	colKey           = "key"
	colValue         = "value"
	colUpdatedAt     = "updated_at"
)

// ErrNilPool is returned when New is given a nil pool.
var ErrNilPool = errors.New("pgstore: nil pool")

// Store is a kvstore.Store backed by PostgreSQL.
type Store struct {
	pool    *pgxpool.Pool
	queries queries
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store) error

// WithTableName sets the table holding entries.
func WithTableName(name string) Option {
	return func(s *Store) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("pgstore: empty table name")
		}
		s.queries = queries{table: name}
		return nil
	}
}

// WithLogger sets the logger. SQL statements are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// Connect opens a pool for dsn and wraps it. A non-nil tlsConfig replaces
// the TLS settings derived from the DSN's sslmode.
func Connect(ctx context.Context, dsn string, tlsConfig *tls.Config, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	if tlsConfig != nil {
		tc := tlsConfig.Clone()
		if tc.ServerName == "" {
			tc.ServerName = cfg.ConnConfig.Host
		}
		cfg.ConnConfig.TLSConfig = tc
		cfg.ConnConfig.Fallbacks = nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	s, err := New(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	s := &Store{
		pool:    pool,
		queries: queries{table: defaultTableName},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates the entries table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.queries.createTable()); err != nil {
		return fmt.Errorf("pgstore: create table: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query, args, err := s.queries.get(key)
	if err != nil {
		return nil, false, kvstore.IOError(key, err)
	}
	s.logSQL(query)

	var value []byte
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, kvstore.IOError(key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query, args, err := s.queries.upsert(key, value, time.Now().UTC())
	if err != nil {
		return kvstore.IOError(key, err)
	}
	s.logSQL(query)

	_, err = s.pool.Exec(ctx, query, args...)
	return kvstore.IOError(key, err)
}

// Delete removes key. Deleting an absent key succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := s.queries.delete(key)
	if err != nil {
		return kvstore.IOError(key, err)
	}
	s.logSQL(query)

	_, err = s.pool.Exec(ctx, query, args...)
	return kvstore.IOError(key, err)
}

// Keys returns the keys with the given prefix in ascending order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	query, args, err := s.queries.keys(prefix)
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	s.logSQL(query)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	return keys, nil
}

func (s *Store) logSQL(query string) {
	s.logger.Debug("executing sql", "query", query)
}

// queries builds the store's SQL with goqu. All statements are prepared
// (placeholders plus args) so binary values are never inlined.
type queries struct {
	table string
}

func (q queries) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func (q queries) createTable() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    %s TEXT PRIMARY KEY,
    %s BYTEA NOT NULL,
    %s TIMESTAMPTZ NOT NULL
)`, pgx.Identifier{q.table}.Sanitize(), colKey, colValue, colUpdatedAt)
}

func (q queries) get(key string) (string, []any, error) {
	return q.dialect().
		From(q.table).
		Select(colValue).
		Where(goqu.C(colKey).Eq(key)).
		Prepared(true).
		ToSQL()
}

func (q queries) upsert(key string, value []byte, at time.Time) (string, []any, error) {
	return q.dialect().
		Insert(q.table).
		Rows(goqu.Record{colKey: key, colValue: value, colUpdatedAt: at}).
		OnConflict(goqu.DoUpdate(colKey, goqu.Record{
			colValue:     goqu.I("excluded." + colValue),
			colUpdatedAt: goqu.I("excluded." + colUpdatedAt),
		})).
		Prepared(true).
		ToSQL()
}

func (q queries) delete(key string) (string, []any, error) {
	return q.dialect().
		Delete(q.table).
		Where(goqu.C(colKey).Eq(key)).
		Prepared(true).
		ToSQL()
}

func (q queries) keys(prefix string) (string, []any, error) {
	ds := q.dialect().
		From(q.table).
		Select(colKey).
		Order(goqu.L(`? COLLATE "C"`, goqu.I(colKey)).Asc())
	if prefix != "" {
		ds = ds.Where(goqu.C(colKey).Like(escapeLike(prefix) + "%"))
	}
	return ds.Prepared(true).ToSQL()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters using PostgreSQL's default escape
// character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
