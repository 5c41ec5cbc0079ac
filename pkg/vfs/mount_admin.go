package vfs

import (
	"context"

	"github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/check"
	"github.com/agentvfs/core/pkg/rebac/tuple"
)

// rootMountPoint is the org-wide mount object an admin subject may hold
// can-admin on to manage every mount in a zone, so the first mount of a
// fresh zone (when no per-mount-point tuple could yet exist) is still
// reachable by a bootstrapped administrator.
const rootMountPoint = "/"

// Mount registers a new mount, admin-only per spec.md §4.F/§4.M. The
// caller must hold can-admin on the target mount point or on the zone's
// root mount.
func (f *Facade) Mount(ctx context.Context, rec mount.Record, adminSubject tuple.Subject) error {
	if err := f.requireMountAdmin(ctx, rec.MountPoint, adminSubject); err != nil {
		return err
	}
	if err := f.Mounts.AddMount(ctx, rec); err != nil {
		return err
	}

	// Grant the creating admin explicit can-admin on the new mount object,
	// the same self-tuple pattern Write uses for new files — otherwise
	// only the root-mount fallback in requireMountAdmin could ever manage
	// it again.
	grant := tuple.Tuple{
		Subject:  tuple.Subject{Type: adminSubject.Type, ID: adminSubject.ID, Zone: f.Zone},
		Relation: "can-admin",
		Object:   tuple.Object{Type: "mount", ID: rec.MountPoint, Zone: f.Zone},
		Zone:     f.Zone,
	}
	if _, err := f.Engine.WriteTuple(ctx, grant); err != nil {
		return err
	}

	return f.Coordinator.InvalidateMountChange(ctx, f.Zone)
}

// Unmount removes a mount, admin-only, publishing the same
// CacheCoordinator invalidation as Mount.
func (f *Facade) Unmount(ctx context.Context, mountPoint string, adminSubject tuple.Subject) error {
	if err := f.requireMountAdmin(ctx, mountPoint, adminSubject); err != nil {
		return err
	}
	if err := f.Mounts.RemoveMount(ctx, f.Zone, mountPoint); err != nil {
		return err
	}
	return f.Coordinator.InvalidateMountChange(ctx, f.Zone)
}

// ListMounts returns every mount in the zone visible to subject, deriving
// visibility through L2 if available.
func (f *Facade) ListMounts(ctx context.Context, subj tuple.Subject) ([]mount.Record, error) {
	if f.L2 != nil {
		return f.L2.VisibleMounts(ctx, subj, f.Zone)
	}
	return f.Mounts.ListMounts(f.Zone), nil
}

func (f *Facade) requireMountAdmin(ctx context.Context, mountPoint string, adminSubject tuple.Subject) error {
	d, err := f.Engine.Check(ctx, mountCheckRequest(adminSubject, mountPoint, f.Zone))
	if err == nil && d.Allow {
		return nil
	}
	if mountPoint != rootMountPoint {
		d, err = f.Engine.Check(ctx, mountCheckRequest(adminSubject, rootMountPoint, f.Zone))
		if err == nil && d.Allow {
			return nil
		}
	}
	return errors.NewPermissionDenied(mountPoint)
}

func mountCheckRequest(subj tuple.Subject, mountPoint, zone string) check.Request {
	return check.Request{
		Subject: subj, Permission: "can-admin",
		Object: tuple.Object{Type: "mount", ID: mountPoint, Zone: zone}, Zone: zone,
	}
}
