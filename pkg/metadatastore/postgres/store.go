// Package postgres implements a MetadataStore on PostgreSQL via pgx,
// grounded on the teacher's pgxpool connection-pool setup (ParseConfig,
// pool sizing, ping-on-open) generalized from a file-metadata schema to a
// single opaque key/value/revision table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	coreerrors "github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// Config holds PostgreSQL connection parameters for the metadata store.
type Config struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	Database string `mapstructure:"database" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

func (c *Config) applyDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SSLMode == "" {
		c.SSLMode = "prefer"
	}
}

func (c *Config) connString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode, int(c.ConnectTimeout.Seconds()))
}

const schema = `
CREATE TABLE IF NOT EXISTS metadata_kv (
	key      BYTEA PRIMARY KEY,
	value    BYTEA NOT NULL,
	revision BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS metadata_revisions (
	zone     TEXT PRIMARY KEY,
	revision BIGINT NOT NULL
);
`

// Store is a MetadataStore backed by a PostgreSQL table.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL, creates the backing schema if absent, and
// returns a ready-to-use Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.applyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres connection string: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, coreerrors.NewUnavailable(cfg.Host, fmt.Errorf("create postgres pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, coreerrors.NewUnavailable(cfg.Host, fmt.Errorf("ping postgres: %w", err))
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create metadata schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) (*metadatastore.Entry, error) {
	var value []byte
	var revision uint64
	err := s.pool.QueryRow(ctx, `SELECT value, revision FROM metadata_kv WHERE key = $1`, key).Scan(&value, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, coreerrors.NewNotFound("key", string(key))
	}
	if err != nil {
		return nil, coreerrors.NewUnavailable(string(key), err)
	}
	return &metadatastore.Entry{Key: key, Value: value, Revision: revision}, nil
}

func (s *Store) Put(ctx context.Context, zone string, key, value []byte, expectedRevision *uint64) (uint64, error) {
	var rev uint64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkPrecondition(ctx, tx, key, expectedRevision); err != nil {
			return err
		}
		r, err := nextRevision(ctx, tx, zone)
		if err != nil {
			return err
		}
		rev = r
		_, err = tx.Exec(ctx, `
			INSERT INTO metadata_kv (key, value, revision) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = $2, revision = $3`, key, value, rev)
		return err
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) Delete(ctx context.Context, zone string, key []byte, expectedRevision *uint64) (uint64, error) {
	var rev uint64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := checkPrecondition(ctx, tx, key, expectedRevision); err != nil {
			return err
		}
		r, err := nextRevision(ctx, tx, zone)
		if err != nil {
			return err
		}
		rev = r
		_, err = tx.Exec(ctx, `DELETE FROM metadata_kv WHERE key = $1`, key)
		return err
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) PrefixScan(ctx context.Context, prefix, afterKey []byte, limit int) ([]metadatastore.Entry, []byte, error) {
	upper := prefixUpperBound(prefix)
	query := `SELECT key, value, revision FROM metadata_kv WHERE key >= $1`
	args := []any{prefix}
	if upper != nil {
		query += ` AND key < $2`
		args = append(args, upper)
	}
	if len(afterKey) > 0 {
		query += fmt.Sprintf(` AND key > $%d`, len(args)+1)
		args = append(args, afterKey)
	}
	query += ` ORDER BY key`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, coreerrors.NewUnavailable(string(prefix), err)
	}
	defer rows.Close()

	var out []metadatastore.Entry
	for rows.Next() {
		var e metadatastore.Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.Revision); err != nil {
			return nil, nil, coreerrors.NewUnavailable(string(prefix), err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, coreerrors.NewUnavailable(string(prefix), err)
	}

	var cursor []byte
	if limit > 0 && len(out) == limit {
		cursor = out[len(out)-1].Key
	}
	return out, cursor, nil
}

func (s *Store) CommitBatch(ctx context.Context, batch metadatastore.Batch) (*metadatastore.BatchResult, error) {
	var result metadatastore.BatchResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, w := range batch.Writes {
			if err := checkPrecondition(ctx, tx, w.Key, w.ExpectedRevision); err != nil {
				return err
			}
		}

		rev, err := nextRevision(ctx, tx, batch.Zone)
		if err != nil {
			return err
		}
		result.Revision = rev

		reads := make([]*metadatastore.Entry, len(batch.Reads))
		for i, r := range batch.Reads {
			var value []byte
			var revision uint64
			err := tx.QueryRow(ctx, `SELECT value, revision FROM metadata_kv WHERE key = $1`, r.Key).Scan(&value, &revision)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			reads[i] = &metadatastore.Entry{Key: r.Key, Value: value, Revision: revision}
		}
		result.Reads = reads

		for _, w := range batch.Writes {
			if w.Value == nil {
				if _, err := tx.Exec(ctx, `DELETE FROM metadata_kv WHERE key = $1`, w.Key); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO metadata_kv (key, value, revision) VALUES ($1, $2, $3)
				ON CONFLICT (key) DO UPDATE SET value = $2, revision = $3`, w.Key, w.Value, rev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return coreerrors.NewUnavailable("", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return coreerrors.NewUnavailable("", err)
	}
	return nil
}

func checkPrecondition(ctx context.Context, tx pgx.Tx, key []byte, expectedRevision *uint64) error {
	if expectedRevision == nil {
		return nil
	}
	var curRev uint64
	err := tx.QueryRow(ctx, `SELECT revision FROM metadata_kv WHERE key = $1 FOR UPDATE`, key).Scan(&curRev)
	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return coreerrors.NewUnavailable(string(key), err)
	}
	if *expectedRevision == 0 {
		if exists {
			return coreerrors.NewCASFailure(string(key))
		}
		return nil
	}
	if !exists || curRev != *expectedRevision {
		return coreerrors.NewCASFailure(string(key))
	}
	return nil
}

func nextRevision(ctx context.Context, tx pgx.Tx, zone string) (uint64, error) {
	var rev uint64
	err := tx.QueryRow(ctx, `
		INSERT INTO metadata_revisions (zone, revision) VALUES ($1, 1)
		ON CONFLICT (zone) DO UPDATE SET revision = metadata_revisions.revision + 1
		RETURNING revision`, zone).Scan(&rev)
	if err != nil {
		return 0, coreerrors.NewUnavailable(zone, err)
	}
	return rev, nil
}

// prefixUpperBound returns the smallest key greater than every key that has
// prefix p, or nil if no finite upper bound exists (all-0xFF prefix).
func prefixUpperBound(p []byte) []byte {
	upper := append([]byte{}, p...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
