// Package vfs implements the VFS Facade (spec.md §4.M): the single
// entrypoint wiring the Inode layer, ContentStore, VersionStore,
// MountTable, and the ReBAC check/cache stack into one coherent,
// permission-checked path namespace. Every operation resolves its path
// through the MountTable before touching any backend, then runs a
// check through the L1 consistency Checker before mutating or reading
// state — the same resolve-then-check-then-act shape the teacher's
// protocol handlers (internal/protocol/nfs/handlers) use ahead of their
// cache/offloader calls.
package vfs

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/agentvfs/core/pkg/cache/coordinator"
	"github.com/agentvfs/core/pkg/cache/l1"
	"github.com/agentvfs/core/pkg/cache/l2"
	"github.com/agentvfs/core/pkg/content"
	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/inode"
	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
	"github.com/agentvfs/core/pkg/version"
)

// Facade is the VFS entrypoint for one zone's worth of backends.
type Facade struct {
	Zone string

	Inodes   *inode.Store
	Content  *content.Store
	Versions *version.Store
	Mounts   *mount.Table

	Engine      *check.Engine
	Checker     *l1.Checker
	L2          *l2.Cache
	Coordinator *coordinator.Coordinator
}

// New builds a Facade over the given zone and its component stores.
func New(zone string, inodes *inode.Store, contentStore *content.Store, versions *version.Store,
	mounts *mount.Table, engine *check.Engine, checker *l1.Checker, l2c *l2.Cache, coord *coordinator.Coordinator) *Facade {
	return &Facade{
		Zone: zone, Inodes: inodes, Content: contentStore, Versions: versions, Mounts: mounts,
		Engine: engine, Checker: checker, L2: l2c, Coordinator: coord,
	}
}

// resolved bundles a path's mount resolution for reuse across a facade
// call's permission check and backend access.
type resolved struct {
	record mount.Record
	relID  string // relative-to-mount path, used as the ReBAC object id
}

func (f *Facade) resolve(ctx context.Context, path string) (resolved, error) {
	rec, rel, err := f.Mounts.Resolve(ctx, f.Zone, path)
	if err != nil {
		return resolved{}, err
	}
	return resolved{record: rec, relID: rel}, nil
}

func (f *Facade) check(ctx context.Context, subj tuple.Subject, permission string, r resolved, level l1.ConsistencyLevel, atLeastRevision uint64) (check.Decision, error) {
	return f.Checker.Check(ctx, check.Request{
		Subject: subj, Permission: permission,
		Object: tuple.Object{Type: string(r.record.ObjectType), ID: r.relID, Zone: f.Zone},
		Zone:   f.Zone,
	}, level, atLeastRevision)
}

func (f *Facade) requirePermission(ctx context.Context, subj tuple.Subject, permission string, r resolved, level l1.ConsistencyLevel, atLeastRevision uint64) error {
	d, err := f.check(ctx, subj, permission, r, level, atLeastRevision)
	if err != nil {
		return err
	}
	if !d.Allow {
		return errors.NewPermissionDenied(r.record.MountPoint + r.relID)
	}
	return nil
}

// Read streams the current content of path, per spec.md §4.M:
// "resolve mount, check read permission on (object_type, resolved
// object id), stream content via ContentStore."
func (f *Facade) Read(ctx context.Context, path string, subj tuple.Subject, level l1.ConsistencyLevel, atLeastRevision uint64) (io.ReadCloser, error) {
	r, err := f.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := f.requirePermission(ctx, subj, "can-read", r, level, atLeastRevision); err != nil {
		return nil, err
	}

	in, err := f.Inodes.Lookup(ctx, f.Zone, path)
	if err != nil {
		return nil, err
	}
	if in.ContentHash == "" {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return f.Content.Get(ctx, content.Hash(in.ContentHash))
}

// Write stores r as path's new content, creating the inode if it doesn't
// already exist, appending a version, and (on create) granting the
// writer the owner relation on the new object — spec.md §4.M: "check
// write, put to ContentStore, append Version, update inode. On the
// create-new-inode path, also emit the owner self-tuple for the writer."
func (f *Facade) Write(ctx context.Context, path string, subj tuple.Subject, r io.Reader) (versionID uint64, hash content.Hash, err error) {
	own, err := f.resolve(ctx, path)
	if err != nil {
		return 0, "", err
	}

	existing, lookupErr := f.Inodes.Lookup(ctx, f.Zone, path)
	creating := errors.Is(lookupErr, errors.NotFound)
	if lookupErr != nil && !creating {
		return 0, "", lookupErr
	}

	permCheck := own
	if creating {
		// permission object follows the parent directory's backend, since
		// the new file's own object doesn't exist yet to check against.
		permCheck, err = f.resolve(ctx, inode.ParentPath(path))
		if err != nil {
			return 0, "", err
		}
	}
	if err := f.requirePermission(ctx, subj, "can-write", permCheck, l1.Strong, 0); err != nil {
		return 0, "", err
	}

	hash, size, err := f.Content.Put(ctx, r)
	if err != nil {
		return 0, "", err
	}

	var in *inode.Inode
	if creating {
		in, err = f.Inodes.Create(ctx, f.Zone, path, inode.KindFile, subj.ID, nil)
	} else {
		in = existing
	}
	if err != nil {
		return 0, "", err
	}

	versionID, err = f.Versions.Append(ctx, in.ID, hash, subj.ID)
	if err != nil {
		return 0, "", err
	}

	hashStr := string(hash)
	now := time.Now().UTC()
	if _, err := f.Inodes.UpdateMeta(ctx, f.Zone, in.ID, inode.MetaPatch{
		Size: &size, ContentHash: &hashStr, Version: &versionID, ModifiedAt: &now,
	}); err != nil {
		return versionID, hash, err
	}

	if creating {
		ownerTuple := tuple.Tuple{
			Subject:  tuple.Subject{Type: subj.Type, ID: subj.ID, Zone: f.Zone},
			Relation: "owner",
			Object:   tuple.Object{Type: string(own.record.ObjectType), ID: own.relID, Zone: f.Zone},
			Zone:     f.Zone,
		}
		rev, werr := f.Engine.WriteTuple(ctx, ownerTuple)
		if werr != nil {
			return versionID, hash, werr
		}
		if cerr := f.Coordinator.Invalidate(ctx, ownerTuple, rev, false); cerr != nil {
			return versionID, hash, cerr
		}
	}
	return versionID, hash, nil
}

// List returns path's direct children, filtered against the subject's L2
// visible-prefix set — spec.md §4.M: "check read on directory,
// prefix-scan children, filter by L2 visible set."
func (f *Facade) List(ctx context.Context, path string, subj tuple.Subject, cursor string, limit int) ([]inode.ListEntry, string, error) {
	r, err := f.resolve(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if err := f.requirePermission(ctx, subj, "can-read", r, l1.Eventual, 0); err != nil {
		return nil, "", err
	}

	entries, next, err := f.Inodes.ListChildren(ctx, f.Zone, path, cursor, limit)
	if err != nil {
		return nil, "", err
	}

	if f.L2 == nil {
		return entries, next, nil
	}
	prefixes, err := f.L2.VisiblePrefixes(ctx, subj, f.Zone)
	if err != nil {
		return entries, next, nil // L2 derivation fault: fall back to unfiltered, already-checked listing
	}
	filtered := entries[:0]
	for _, e := range entries {
		childPath := path
		if childPath != "/" {
			childPath += "/"
		}
		childPath += e.Name
		if len(prefixes) == 0 || l2.AllowsPath(prefixes, childPath) || l2.AllowsPath(prefixes, path) {
			filtered = append(filtered, e)
		}
	}
	return filtered, next, nil
}

// Delete soft-deletes the inode at path and decrefs its current content,
// per spec.md §4.M: "check admin, soft-delete inode, decref current
// hash."
func (f *Facade) Delete(ctx context.Context, path string, subj tuple.Subject) error {
	r, err := f.resolve(ctx, path)
	if err != nil {
		return err
	}
	if err := f.requirePermission(ctx, subj, "can-admin", r, l1.Strong, 0); err != nil {
		return err
	}

	in, err := f.Inodes.Lookup(ctx, f.Zone, path)
	if err != nil {
		return err
	}
	if err := f.Inodes.SoftDelete(ctx, f.Zone, in.ID); err != nil {
		return err
	}
	if in.ContentHash != "" {
		if _, err := f.Content.Decref(ctx, content.Hash(in.ContentHash)); err != nil {
			return err
		}
	}
	return nil
}

// Rename moves src to dst, checking write permission on both and
// refusing to cross mounts with differing backend or object type, per
// spec.md §4.M/§4.C's cross-mount rule.
func (f *Facade) Rename(ctx context.Context, src, dst string, subj tuple.Subject) (*inode.Inode, error) {
	srcRes, err := f.resolve(ctx, src)
	if err != nil {
		return nil, err
	}
	dstRes, err := f.resolve(ctx, inode.ParentPath(dst))
	if err != nil {
		return nil, err
	}
	if srcRes.record.BackendID != dstRes.record.BackendID || srcRes.record.ObjectType != dstRes.record.ObjectType {
		return nil, errors.NewCrossMountRename(dst)
	}

	if err := f.requirePermission(ctx, subj, "can-write", srcRes, l1.Strong, 0); err != nil {
		return nil, err
	}
	if err := f.requirePermission(ctx, subj, "can-write", dstRes, l1.Strong, 0); err != nil {
		return nil, err
	}
	return f.Inodes.Rename(ctx, f.Zone, src, dst)
}

// Mkdir creates a directory at path, idempotently succeeding if one
// already exists there, per spec.md §4.M: "idempotent for existing
// dirs; check write on parent."
func (f *Facade) Mkdir(ctx context.Context, path string, subj tuple.Subject) (*inode.Inode, error) {
	if existing, err := f.Inodes.Lookup(ctx, f.Zone, path); err == nil {
		if existing.Kind != inode.KindDirectory {
			return nil, errors.NewAlreadyExists(path)
		}
		return existing, nil
	} else if !errors.Is(err, errors.NotFound) {
		return nil, err
	}

	parentRes, err := f.resolve(ctx, inode.ParentPath(path))
	if err != nil {
		return nil, err
	}
	if err := f.requirePermission(ctx, subj, "can-write", parentRes, l1.Strong, 0); err != nil {
		return nil, err
	}
	return f.Inodes.Create(ctx, f.Zone, path, inode.KindDirectory, subj.ID, nil)
}

// Versions returns path's version history, per spec.md §4.M/§4.E.
func (f *Facade) Versions(ctx context.Context, path string, subj tuple.Subject, cursor string, limit int) ([]version.Version, string, error) {
	r, err := f.resolve(ctx, path)
	if err != nil {
		return nil, "", err
	}
	if err := f.requirePermission(ctx, subj, "can-read", r, l1.Eventual, 0); err != nil {
		return nil, "", err
	}
	in, err := f.Inodes.Lookup(ctx, f.Zone, path)
	if err != nil {
		return nil, "", err
	}
	return f.Versions.List(ctx, in.ID, cursor, limit)
}

// Restore rolls path's content back to versionID by appending it as a
// new head, per spec.md §4.M/§4.E: "never rewriting history."
func (f *Facade) Restore(ctx context.Context, path string, versionID uint64, subj tuple.Subject) (uint64, error) {
	r, err := f.resolve(ctx, path)
	if err != nil {
		return 0, err
	}
	if err := f.requirePermission(ctx, subj, "can-write", r, l1.Strong, 0); err != nil {
		return 0, err
	}

	in, err := f.Inodes.Lookup(ctx, f.Zone, path)
	if err != nil {
		return 0, err
	}
	newVersionID, err := f.Versions.Restore(ctx, in.ID, versionID, subj.ID)
	if err != nil {
		return 0, err
	}

	restored, err := f.Versions.Current(ctx, in.ID)
	if err != nil {
		return newVersionID, err
	}
	size, err := f.Content.Size(ctx, restored.ContentHash)
	if err != nil {
		return newVersionID, err
	}
	hashStr := string(restored.ContentHash)
	now := time.Now().UTC()
	_, err = f.Inodes.UpdateMeta(ctx, f.Zone, in.ID, inode.MetaPatch{
		Size: &size, ContentHash: &hashStr, Version: &newVersionID, ModifiedAt: &now,
	})
	return newVersionID, err
}
