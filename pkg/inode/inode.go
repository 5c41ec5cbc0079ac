// Package inode implements the typed file-metadata layer (spec.md §4.C) on
// top of an opaque metadatastore.Store, grounded on the teacher's
// metadata.File/FileAttr shape (pkg/metadata/file_types.go) generalized
// from a share-scoped filesystem record to a zone-scoped VFS inode.
package inode

import (
	"time"

	"github.com/agentvfs/core/pkg/errors"
)

// Kind is the type of filesystem object an Inode represents.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Inode is one file or directory record, per spec.md §3's Inode entity.
type Inode struct {
	ID       uint64
	Zone     string
	Path     string // canonical, normalized
	ParentID uint64
	Kind     Kind

	Size           uint64
	ContentHash    string // empty for directories
	CurrentVersion uint64
	Owner          string // subject id

	CreatedAt  time.Time
	ModifiedAt time.Time
	AccessedAt time.Time

	Deleted   bool
	DeletedAt time.Time

	Meta map[string]string

	// Revision is the metadatastore revision this record was read at (or
	// written at); used as a CAS precondition on update_meta/rename.
	Revision uint64
}

// MetaPatch describes a partial update to an Inode's mutable fields.
// Nil fields are left unchanged.
type MetaPatch struct {
	Size        *uint64
	ContentHash *string
	Version     *uint64
	ModifiedAt  *time.Time
	AccessedAt  *time.Time
	Meta        map[string]string // merged key by key, not replaced; a patch cannot delete a key
}

// ListEntry is one child returned by ListChildren.
type ListEntry struct {
	Name  string // final path segment
	Inode Inode
}

func validateKind(k Kind) error {
	switch k {
	case KindFile, KindDirectory, KindSymlink:
		return nil
	default:
		return errors.NewInvalidArgument("unknown inode kind")
	}
}
