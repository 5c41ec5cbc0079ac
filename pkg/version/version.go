// Package version implements VersionStore (spec.md §4.E): a per-inode
// append-only version chain over metadatastore.Store, coordinating
// refcounts through content.Store on append/restore.
package version

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentvfs/core/pkg/content"
	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/metadatastore"
)

// Version is one immutable element of a per-inode linear history
// (spec.md §3).
type Version struct {
	InodeID         uint64
	VersionID       uint64
	ContentHash     content.Hash
	Author          string
	CreatedAt       time.Time
	ParentVersionID uint64
}

// Store implements VersionStore for one zone.
type Store struct {
	backing metadatastore.Store
	content *content.Store
	zone    string
}

// New builds a version Store scoped to one zone.
func New(zone string, backing metadatastore.Store, contentStore *content.Store) *Store {
	return &Store{backing: backing, content: contentStore, zone: zone}
}

type persistedVersion struct {
	InodeID         uint64    `json:"inode_id"`
	VersionID       uint64    `json:"version_id"`
	ContentHash     string    `json:"content_hash"`
	Author          string    `json:"author"`
	CreatedAt       time.Time `json:"created_at"`
	ParentVersionID uint64    `json:"parent_version_id"`
}

func versionKey(zone string, inodeID, versionID uint64) []byte {
	return []byte(fmt.Sprintf("ver/%s/%d/%d", zone, inodeID, versionID))
}

func versionPrefix(zone string, inodeID uint64) []byte {
	return []byte(fmt.Sprintf("ver/%s/%d/", zone, inodeID))
}

func currentKey(zone string, inodeID uint64) []byte {
	return []byte(fmt.Sprintf("ver/current/%s/%d", zone, inodeID))
}

func idCounterKey(zone string, inodeID uint64) []byte {
	return []byte(fmt.Sprintf("ver/id-counter/%s/%d", zone, inodeID))
}

func toPersisted(v Version) persistedVersion {
	return persistedVersion{
		InodeID: v.InodeID, VersionID: v.VersionID, ContentHash: string(v.ContentHash),
		Author: v.Author, CreatedAt: v.CreatedAt, ParentVersionID: v.ParentVersionID,
	}
}

func (p persistedVersion) toVersion() Version {
	return Version{
		InodeID: p.InodeID, VersionID: p.VersionID, ContentHash: content.Hash(p.ContentHash),
		Author: p.Author, CreatedAt: p.CreatedAt, ParentVersionID: p.ParentVersionID,
	}
}

func (s *Store) allocateVersionID(ctx context.Context, inodeID uint64) (uint64, error) {
	key := idCounterKey(s.zone, inodeID)
	for {
		current, err := s.backing.Get(ctx, key)
		var next uint64
		var expected *uint64
		switch {
		case errors.Is(err, errors.NotFound):
			next = 1
			var z uint64
			expected = &z
		case err != nil:
			return 0, err
		default:
			next = binary.BigEndian.Uint64(current.Value) + 1
			expected = &current.Revision
		}

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, next)
		if _, err := s.backing.Put(ctx, s.zone, key, buf, expected); err != nil {
			if errors.Is(err, errors.CASFailure) {
				continue
			}
			return 0, err
		}
		return next, nil
	}
}

// Append adds a new version pointing at newContentHash, advancing the
// current pointer, per spec.md §4.E's algorithm: incref the new hash,
// insert the version record, update the current pointer, decref the
// previously-current hash.
func (s *Store) Append(ctx context.Context, inodeID uint64, newContentHash content.Hash, author string) (uint64, error) {
	if _, err := s.content.Incref(ctx, newContentHash); err != nil {
		return 0, err
	}

	prev, err := s.Current(ctx, inodeID)
	if err != nil && !errors.Is(err, errors.NotFound) {
		return 0, err
	}

	versionID, err := s.allocateVersionID(ctx, inodeID)
	if err != nil {
		return 0, err
	}

	var parentVersionID uint64
	if prev != nil {
		parentVersionID = prev.VersionID
	}

	v := Version{
		InodeID: inodeID, VersionID: versionID, ContentHash: newContentHash,
		Author: author, CreatedAt: time.Now().UTC(), ParentVersionID: parentVersionID,
	}
	data, err := json.Marshal(toPersisted(v))
	if err != nil {
		return 0, errors.NewCorrupt("version record", err)
	}

	idBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(idBuf, versionID)

	var z uint64
	if _, err := s.backing.CommitBatch(ctx, metadatastore.Batch{
		Zone: s.zone,
		Writes: []metadatastore.WriteOp{
			{Key: versionKey(s.zone, inodeID, versionID), Value: data, ExpectedRevision: &z},
			{Key: currentKey(s.zone, inodeID), Value: idBuf, ExpectedRevision: nil},
		},
	}); err != nil {
		return 0, err
	}

	if prev != nil && prev.ContentHash != newContentHash {
		if _, err := s.content.Decref(ctx, prev.ContentHash); err != nil {
			return versionID, err
		}
	}

	return versionID, nil
}

// Current returns the current version of inodeID, or NotFound if the inode
// has no versions yet.
func (s *Store) Current(ctx context.Context, inodeID uint64) (*Version, error) {
	ptrEntry, err := s.backing.Get(ctx, currentKey(s.zone, inodeID))
	if err != nil {
		return nil, err
	}
	versionID := binary.BigEndian.Uint64(ptrEntry.Value)

	entry, err := s.backing.Get(ctx, versionKey(s.zone, inodeID, versionID))
	if err != nil {
		return nil, err
	}
	var p persistedVersion
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return nil, errors.NewCorrupt("version record", err)
	}
	v := p.toVersion()
	return &v, nil
}

// List returns inodeID's version history in the key order of the
// underlying prefix scan, paginated by cursor/limit. Version ids are
// written in decimal, so that order is lexicographic (version 10 sorts
// before version 2), not numeric.
func (s *Store) List(ctx context.Context, inodeID uint64, cursor string, limit int) ([]Version, string, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, next, err := s.backing.PrefixScan(ctx, versionPrefix(s.zone, inodeID), []byte(cursor), limit)
	if err != nil {
		return nil, "", err
	}

	out := make([]Version, 0, len(entries))
	for _, e := range entries {
		var p persistedVersion
		if err := json.Unmarshal(e.Value, &p); err != nil {
			return nil, "", errors.NewCorrupt("version record", err)
		}
		out = append(out, p.toVersion())
	}
	return out, string(next), nil
}

// Restore re-appends the content hash referenced by versionID as the new
// head, per spec.md §4.E: "never rewriting history." Restoring a version
// whose content has already been garbage-collected fails with Corrupt.
func (s *Store) Restore(ctx context.Context, inodeID, versionID uint64, author string) (uint64, error) {
	entry, err := s.backing.Get(ctx, versionKey(s.zone, inodeID, versionID))
	if err != nil {
		return 0, err
	}
	var p persistedVersion
	if err := json.Unmarshal(entry.Value, &p); err != nil {
		return 0, errors.NewCorrupt("version record", err)
	}
	hash := content.Hash(p.ContentHash)
	if _, err := s.content.RefCount(ctx, hash); err != nil {
		if errors.Is(err, errors.NotFound) {
			return 0, errors.NewCorrupt(p.ContentHash, err)
		}
		return 0, err
	}
	return s.Append(ctx, inodeID, hash, author)
}
