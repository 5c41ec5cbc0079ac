// Package badger implements a MetadataStore on top of BadgerDB, grounded on
// the teacher's badger-backed metadata store (db.View/db.Update transaction
// wrapping, prefix iterators). Values are stored as an 8-byte big-endian
// revision prefix followed by the raw payload so CAS preconditions and
// PrefixScan can both be served from a single key space.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// Config configures the BadgerDB-backed store.
type Config struct {
	Path          string `mapstructure:"path"`
	InMemory      bool   `mapstructure:"in_memory"`
	ValueLogGC    bool   `mapstructure:"value_log_gc"`
	SyncWrites    bool   `mapstructure:"sync_writes"`
	NumGoroutines int    `mapstructure:"num_goroutines"`
}

// Store is a MetadataStore backed by an embedded BadgerDB instance.
type Store struct {
	db *badgerdb.DB
}

var revisionPrefix = []byte("__rev__/")

// Open opens (creating if absent) a BadgerDB at cfg.Path and returns a
// ready-to-use Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := badgerdb.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.NewUnavailable(cfg.Path, fmt.Errorf("open badger: %w", err))
	}
	return &Store{db: db}, nil
}

func revisionKey(zone string) []byte {
	return append(append([]byte{}, revisionPrefix...), []byte(zone)...)
}

func encodeValue(revision uint64, value []byte) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], revision)
	copy(buf[8:], value)
	return buf
}

func decodeValue(raw []byte) (revision uint64, value []byte) {
	revision = binary.BigEndian.Uint64(raw[:8])
	value = raw[8:]
	return
}

func (s *Store) Get(ctx context.Context, key []byte) (*metadatastore.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry *metadatastore.Entry
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return errors.NewNotFound("key", string(key))
		}
		if err != nil {
			return errors.NewUnavailable(string(key), err)
		}
		return item.Value(func(raw []byte) error {
			rev, val := decodeValue(raw)
			valCopy := append([]byte{}, val...)
			entry = &metadatastore.Entry{Key: key, Value: valCopy, Revision: rev}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) checkPrecondition(txn *badgerdb.Txn, key []byte, expectedRevision *uint64) error {
	if expectedRevision == nil {
		return nil
	}
	item, err := txn.Get(key)
	exists := err == nil
	if err != nil && err != badgerdb.ErrKeyNotFound {
		return errors.NewUnavailable(string(key), err)
	}
	if *expectedRevision == 0 {
		if exists {
			return errors.NewCASFailure(string(key))
		}
		return nil
	}
	if !exists {
		return errors.NewCASFailure(string(key))
	}
	var curRev uint64
	err = item.Value(func(raw []byte) error {
		curRev, _ = decodeValue(raw)
		return nil
	})
	if err != nil {
		return errors.NewUnavailable(string(key), err)
	}
	if curRev != *expectedRevision {
		return errors.NewCASFailure(string(key))
	}
	return nil
}

func (s *Store) nextRevision(txn *badgerdb.Txn, zone string) (uint64, error) {
	rk := revisionKey(zone)
	var rev uint64
	item, err := txn.Get(rk)
	if err == nil {
		if verr := item.Value(func(raw []byte) error {
			rev = binary.BigEndian.Uint64(raw)
			return nil
		}); verr != nil {
			return 0, errors.NewUnavailable(zone, verr)
		}
	} else if err != badgerdb.ErrKeyNotFound {
		return 0, errors.NewUnavailable(zone, err)
	}
	rev++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rev)
	if err := txn.Set(rk, buf); err != nil {
		return 0, errors.NewUnavailable(zone, err)
	}
	return rev, nil
}

func (s *Store) Put(ctx context.Context, zone string, key, value []byte, expectedRevision *uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := s.checkPrecondition(txn, key, expectedRevision); err != nil {
			return err
		}
		r, err := s.nextRevision(txn, zone)
		if err != nil {
			return err
		}
		rev = r
		return txn.Set(key, encodeValue(rev, value))
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) Delete(ctx context.Context, zone string, key []byte, expectedRevision *uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var rev uint64
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		if err := s.checkPrecondition(txn, key, expectedRevision); err != nil {
			return err
		}
		r, err := s.nextRevision(txn, zone)
		if err != nil {
			return err
		}
		rev = r
		return txn.Delete(key)
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) PrefixScan(ctx context.Context, prefix, afterKey []byte, limit int) ([]metadatastore.Entry, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var out []metadatastore.Entry
	var cursor []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			if len(afterKey) > 0 && bytes.Compare(k, afterKey) <= 0 {
				continue
			}
			var entry metadatastore.Entry
			err := item.Value(func(raw []byte) error {
				rev, val := decodeValue(raw)
				entry = metadatastore.Entry{Key: k, Value: append([]byte{}, val...), Revision: rev}
				return nil
			})
			if err != nil {
				return errors.NewUnavailable(string(k), err)
			}
			out = append(out, entry)
			if limit > 0 && len(out) == limit {
				cursor = k
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, cursor, nil
}

func (s *Store) CommitBatch(ctx context.Context, batch metadatastore.Batch) (*metadatastore.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result metadatastore.BatchResult
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		for _, w := range batch.Writes {
			if err := s.checkPrecondition(txn, w.Key, w.ExpectedRevision); err != nil {
				return err
			}
		}

		rev, err := s.nextRevision(txn, batch.Zone)
		if err != nil {
			return err
		}
		result.Revision = rev

		reads := make([]*metadatastore.Entry, len(batch.Reads))
		for i, r := range batch.Reads {
			item, err := txn.Get(r.Key)
			if err == badgerdb.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return errors.NewUnavailable(string(r.Key), err)
			}
			if verr := item.Value(func(raw []byte) error {
				rr, val := decodeValue(raw)
				reads[i] = &metadatastore.Entry{Key: r.Key, Value: append([]byte{}, val...), Revision: rr}
				return nil
			}); verr != nil {
				return errors.NewUnavailable(string(r.Key), verr)
			}
		}
		result.Reads = reads

		for _, w := range batch.Writes {
			if w.Value == nil {
				if err := txn.Delete(w.Key); err != nil {
					return errors.NewUnavailable(string(w.Key), err)
				}
				continue
			}
			if err := txn.Set(w.Key, encodeValue(rev, w.Value)); err != nil {
				return errors.NewUnavailable(string(w.Key), err)
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
	return s.db.Close()
}
