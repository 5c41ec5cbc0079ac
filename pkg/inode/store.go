package inode

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// maxScanPages bounds the internal prefix-scan pagination ListChildren
// performs while filtering out indirect descendants, so a directory with
// many deeply-nested children cannot make a single call loop forever.
const maxScanPages = 64

// Store implements the Inode layer (spec.md §4.C) on top of a
// metadatastore.Store, following the key layout in spec.md §6.
type Store struct {
	backing metadatastore.Store
}

// New builds an inode Store backed by the given metadatastore.Store.
func New(backing metadatastore.Store) *Store {
	return &Store{backing: backing}
}

func zero() *uint64 {
	var z uint64
	return &z
}

// Lookup resolves a canonical path to its Inode (spec.md §4.C).
func (s *Store) Lookup(ctx context.Context, zone, path string) (*Inode, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	idEntry, err := s.backing.Get(ctx, pathKey(zone, path))
	if err != nil {
		return nil, err
	}
	id := binary.BigEndian.Uint64(idEntry.Value)

	recEntry, err := s.backing.Get(ctx, recordKey(zone, id))
	if err != nil {
		return nil, err
	}
	in, err := decodeRecord(recEntry.Value, recEntry.Revision)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// allocateID hands out the next monotonic per-zone inode id, retrying the
// CAS loop on contention.
func (s *Store) allocateID(ctx context.Context, zone string) (uint64, error) {
	key := idCounterKey(zone)
	for {
		current, err := s.backing.Get(ctx, key)
		var next uint64
		var expected *uint64
		switch {
		case errors.Is(err, errors.NotFound):
			next = 1
			expected = zero()
		case err != nil:
			return 0, err
		default:
			next = binary.BigEndian.Uint64(current.Value) + 1
			expected = &current.Revision
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		if _, err := s.backing.Put(ctx, zone, key, buf, expected); err != nil {
			if errors.Is(err, errors.CASFailure) {
				continue
			}
			return 0, err
		}
		return next, nil
	}
}

// Create inserts a new active inode at path (spec.md §4.C). Fails with
// AlreadyExists if path already has an active inode.
func (s *Store) Create(ctx context.Context, zone, path string, kind Kind, owner string, meta map[string]string) (*Inode, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}

	id, err := s.allocateID(ctx, zone)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	in := Inode{
		ID: id, Zone: zone, Path: path, Kind: kind, Owner: owner,
		CreatedAt: now, ModifiedAt: now, AccessedAt: now, Meta: meta,
	}
	recBytes, err := encodeRecord(in)
	if err != nil {
		return nil, err
	}

	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, id)

	result, err := s.backing.CommitBatch(ctx, metadatastore.Batch{
		Zone: zone,
		Writes: []metadatastore.WriteOp{
			{Key: pathKey(zone, path), Value: idBuf, ExpectedRevision: zero()},
			{Key: recordKey(zone, id), Value: recBytes, ExpectedRevision: zero()},
		},
	})
	if err != nil {
		if errors.Is(err, errors.CASFailure) {
			return nil, errors.NewAlreadyExists(path)
		}
		return nil, err
	}

	in.Revision = result.Revision
	return &in, nil
}

// UpdateMeta applies patch to the inode identified by id (spec.md §4.C).
func (s *Store) UpdateMeta(ctx context.Context, zone string, id uint64, patch MetaPatch) (*Inode, error) {
	key := recordKey(zone, id)
	entry, err := s.backing.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	in, err := decodeRecord(entry.Value, entry.Revision)
	if err != nil {
		return nil, err
	}

	if patch.Size != nil {
		in.Size = *patch.Size
	}
	if patch.ContentHash != nil {
		in.ContentHash = *patch.ContentHash
	}
	if patch.Version != nil {
		in.CurrentVersion = *patch.Version
	}
	if patch.ModifiedAt != nil {
		in.ModifiedAt = *patch.ModifiedAt
	}
	if patch.AccessedAt != nil {
		in.AccessedAt = *patch.AccessedAt
	}
	if patch.Meta != nil {
		if in.Meta == nil {
			in.Meta = make(map[string]string, len(patch.Meta))
		}
		for k, v := range patch.Meta {
			in.Meta[k] = v
		}
	}

	recBytes, err := encodeRecord(in)
	if err != nil {
		return nil, err
	}
	rev, err := s.backing.Put(ctx, zone, key, recBytes, &entry.Revision)
	if err != nil {
		return nil, err
	}
	in.Revision = rev
	return &in, nil
}

// SoftDelete marks an inode deleted without removing its path or record
// rows (spec.md §3's Inode lifecycle). Nothing in this module removes the
// rows afterwards; Lookup returns the record with Deleted set.
func (s *Store) SoftDelete(ctx context.Context, zone string, id uint64) error {
	key := recordKey(zone, id)
	entry, err := s.backing.Get(ctx, key)
	if err != nil {
		return err
	}
	in, err := decodeRecord(entry.Value, entry.Revision)
	if err != nil {
		return err
	}
	in.Deleted = true
	in.DeletedAt = time.Now().UTC()
	recBytes, err := encodeRecord(in)
	if err != nil {
		return err
	}
	_, err = s.backing.Put(ctx, zone, key, recBytes, &entry.Revision)
	return err
}

// Rename moves an inode from its current path to newPath atomically
// (spec.md §4.C). Cross-mount legality is the caller's responsibility (the
// inode layer has no mount awareness); callers surface CrossMountRename
// before invoking Rename.
func (s *Store) Rename(ctx context.Context, zone, oldPath, newPath string) (*Inode, error) {
	oldPath, err := NormalizePath(oldPath)
	if err != nil {
		return nil, err
	}
	newPath, err = NormalizePath(newPath)
	if err != nil {
		return nil, err
	}
	if oldPath == newPath {
		return s.Lookup(ctx, zone, oldPath)
	}

	oldKey := pathKey(zone, oldPath)
	newKey := pathKey(zone, newPath)

	idEntry, err := s.backing.Get(ctx, oldKey)
	if err != nil {
		return nil, err
	}
	id := binary.BigEndian.Uint64(idEntry.Value)

	recKey := recordKey(zone, id)
	recEntry, err := s.backing.Get(ctx, recKey)
	if err != nil {
		return nil, err
	}
	in, err := decodeRecord(recEntry.Value, recEntry.Revision)
	if err != nil {
		return nil, err
	}
	in.Path = newPath
	in.ModifiedAt = time.Now().UTC()
	recBytes, err := encodeRecord(in)
	if err != nil {
		return nil, err
	}

	result, err := s.backing.CommitBatch(ctx, metadatastore.Batch{
		Zone: zone,
		Writes: []metadatastore.WriteOp{
			{Key: oldKey, Value: nil, ExpectedRevision: &idEntry.Revision},
			{Key: newKey, Value: idEntry.Value, ExpectedRevision: zero()},
			{Key: recKey, Value: recBytes, ExpectedRevision: &recEntry.Revision},
		},
	})
	if err != nil {
		if errors.Is(err, errors.CASFailure) {
			return nil, errors.NewAlreadyExists(newPath)
		}
		return nil, err
	}

	in.Revision = result.Revision
	return &in, nil
}

// ListChildren returns the direct children of the directory at parentPath,
// paginated by an opaque cursor (spec.md §4.C).
func (s *Store) ListChildren(ctx context.Context, zone, parentPath, cursor string, limit int) ([]ListEntry, string, error) {
	parentPath, err := NormalizePath(parentPath)
	if err != nil {
		return nil, "", err
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := pathKey(zone, childPrefix(parentPath))
	afterKey := []byte(cursor)

	var out []ListEntry
	for page := 0; page < maxScanPages && len(out) < limit; page++ {
		entries, next, err := s.backing.PrefixScan(ctx, prefix, afterKey, limit)
		if err != nil {
			return nil, "", err
		}
		for _, e := range entries {
			name := string(e.Key[len(prefix):])
			if strings.Contains(name, "/") {
				continue // indirect descendant, not a direct child
			}
			id := binary.BigEndian.Uint64(e.Value)
			recEntry, err := s.backing.Get(ctx, recordKey(zone, id))
			if err != nil {
				return nil, "", err
			}
			in, err := decodeRecord(recEntry.Value, recEntry.Revision)
			if err != nil {
				return nil, "", err
			}
			out = append(out, ListEntry{Name: name, Inode: in})
			if len(out) >= limit {
				return out, string(e.Key), nil
			}
		}
		if next == nil {
			return out, "", nil
		}
		afterKey = next
	}

	if len(afterKey) == 0 {
		return out, "", nil
	}
	return out, string(afterKey), nil
}
