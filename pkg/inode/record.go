package inode

import (
	"encoding/json"
	"time"

	"github.com/agentvfs/core/pkg/errors"
)

// persistedRecord is the JSON-on-disk shape of an Inode, grounded on the
// teacher's json.Marshal/Unmarshal encoding convention
// (pkg/metadata/store/badger/encoding.go) rather than a binary codec.
type persistedRecord struct {
	ID       uint64            `json:"id"`
	Zone     string            `json:"zone"`
	Path     string            `json:"path"`
	ParentID uint64            `json:"parent_id"`
	Kind     Kind              `json:"kind"`

	Size           uint64 `json:"size"`
	ContentHash    string `json:"content_hash,omitempty"`
	CurrentVersion uint64 `json:"current_version"`
	Owner          string `json:"owner"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	AccessedAt time.Time `json:"accessed_at"`

	Deleted   bool      `json:"deleted,omitempty"`
	DeletedAt time.Time `json:"deleted_at,omitempty"`

	Meta map[string]string `json:"meta,omitempty"`
}

func toRecord(in Inode) persistedRecord {
	return persistedRecord{
		ID: in.ID, Zone: in.Zone, Path: in.Path, ParentID: in.ParentID, Kind: in.Kind,
		Size: in.Size, ContentHash: in.ContentHash, CurrentVersion: in.CurrentVersion, Owner: in.Owner,
		CreatedAt: in.CreatedAt, ModifiedAt: in.ModifiedAt, AccessedAt: in.AccessedAt,
		Deleted: in.Deleted, DeletedAt: in.DeletedAt, Meta: in.Meta,
	}
}

func (r persistedRecord) toInode(revision uint64) Inode {
	return Inode{
		ID: r.ID, Zone: r.Zone, Path: r.Path, ParentID: r.ParentID, Kind: r.Kind,
		Size: r.Size, ContentHash: r.ContentHash, CurrentVersion: r.CurrentVersion, Owner: r.Owner,
		CreatedAt: r.CreatedAt, ModifiedAt: r.ModifiedAt, AccessedAt: r.AccessedAt,
		Deleted: r.Deleted, DeletedAt: r.DeletedAt, Meta: r.Meta,
		Revision: revision,
	}
}

func encodeRecord(in Inode) ([]byte, error) {
	data, err := json.Marshal(toRecord(in))
	if err != nil {
		return nil, errors.NewCorrupt("inode record", err)
	}
	return data, nil
}

func decodeRecord(raw []byte, revision uint64) (Inode, error) {
	var r persistedRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Inode{}, errors.NewCorrupt("inode record", err)
	}
	return r.toInode(revision), nil
}
