// Package sqlite implements a MetadataStore on SQLite via gorm and the
// glebarez/sqlite pure-Go driver, grounded on the teacher's gorm-based
// postgres store generalized to SQLite and to an opaque key/value schema.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	coreerrors "github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// Config configures the SQLite-backed store.
type Config struct {
	Path string `mapstructure:"path" validate:"required"`
}

type kvRow struct {
	Key      []byte `gorm:"primaryKey"`
	Value    []byte
	Revision uint64
}

func (kvRow) TableName() string { return "metadata_kv" }

type revisionRow struct {
	Zone     string `gorm:"primaryKey"`
	Revision uint64
}

func (revisionRow) TableName() string { return "metadata_revisions" }

// Store is a MetadataStore backed by a SQLite database file.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a SQLite database at cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, coreerrors.NewUnavailable(cfg.Path, fmt.Errorf("open sqlite: %w", err))
	}
	if err := db.WithContext(ctx).AutoMigrate(&kvRow{}, &revisionRow{}); err != nil {
		return nil, fmt.Errorf("migrate metadata schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key []byte) (*metadatastore.Entry, error) {
	var row kvRow
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, coreerrors.NewNotFound("key", string(key))
	}
	if err != nil {
		return nil, coreerrors.NewUnavailable(string(key), err)
	}
	return &metadatastore.Entry{Key: key, Value: row.Value, Revision: row.Revision}, nil
}

func (s *Store) Put(ctx context.Context, zone string, key, value []byte, expectedRevision *uint64) (uint64, error) {
	var rev uint64
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := checkPrecondition(tx, key, expectedRevision); err != nil {
			return err
		}
		r, err := nextRevision(tx, zone)
		if err != nil {
			return err
		}
		rev = r
		return tx.Save(&kvRow{Key: key, Value: value, Revision: rev}).Error
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) Delete(ctx context.Context, zone string, key []byte, expectedRevision *uint64) (uint64, error) {
	var rev uint64
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := checkPrecondition(tx, key, expectedRevision); err != nil {
			return err
		}
		r, err := nextRevision(tx, zone)
		if err != nil {
			return err
		}
		rev = r
		return tx.Where("key = ?", key).Delete(&kvRow{}).Error
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) PrefixScan(ctx context.Context, prefix, afterKey []byte, limit int) ([]metadatastore.Entry, []byte, error) {
	upper := prefixUpperBound(prefix)
	q := s.db.WithContext(ctx).Model(&kvRow{}).Where("key >= ?", prefix)
	if upper != nil {
		q = q.Where("key < ?", upper)
	}
	if len(afterKey) > 0 {
		q = q.Where("key > ?", afterKey)
	}
	q = q.Order("key ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []kvRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, coreerrors.NewUnavailable(string(prefix), err)
	}

	out := make([]metadatastore.Entry, len(rows))
	for i, r := range rows {
		out[i] = metadatastore.Entry{Key: r.Key, Value: r.Value, Revision: r.Revision}
	}

	var cursor []byte
	if limit > 0 && len(out) == limit {
		cursor = out[len(out)-1].Key
	}
	return out, cursor, nil
}

func (s *Store) CommitBatch(ctx context.Context, batch metadatastore.Batch) (*metadatastore.BatchResult, error) {
	var result metadatastore.BatchResult
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		for _, w := range batch.Writes {
			if err := checkPrecondition(tx, w.Key, w.ExpectedRevision); err != nil {
				return err
			}
		}

		rev, err := nextRevision(tx, batch.Zone)
		if err != nil {
			return err
		}
		result.Revision = rev

		reads := make([]*metadatastore.Entry, len(batch.Reads))
		for i, r := range batch.Reads {
			var row kvRow
			err := tx.Where("key = ?", r.Key).First(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			reads[i] = &metadatastore.Entry{Key: r.Key, Value: row.Value, Revision: row.Revision}
		}
		result.Reads = reads

		for _, w := range batch.Writes {
			if w.Value == nil {
				if err := tx.Where("key = ?", w.Key).Delete(&kvRow{}).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Save(&kvRow{Key: w.Key, Value: w.Value, Revision: rev}).Error; err != nil {
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
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(*gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func checkPrecondition(tx *gorm.DB, key []byte, expectedRevision *uint64) error {
	if expectedRevision == nil {
		return nil
	}
	var row kvRow
	err := tx.Where("key = ?", key).First(&row).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return coreerrors.NewUnavailable(string(key), err)
	}
	if *expectedRevision == 0 {
		if exists {
			return coreerrors.NewCASFailure(string(key))
		}
		return nil
	}
	if !exists || row.Revision != *expectedRevision {
		return coreerrors.NewCASFailure(string(key))
	}
	return nil
}

func nextRevision(tx *gorm.DB, zone string) (uint64, error) {
	var row revisionRow
	err := tx.Where("zone = ?", zone).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = revisionRow{Zone: zone, Revision: 1}
		if err := tx.Create(&row).Error; err != nil {
			return 0, coreerrors.NewUnavailable(zone, err)
		}
		return row.Revision, nil
	}
	if err != nil {
		return 0, coreerrors.NewUnavailable(zone, err)
	}
	row.Revision++
	if err := tx.Save(&row).Error; err != nil {
		return 0, coreerrors.NewUnavailable(zone, err)
	}
	return row.Revision, nil
}

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
