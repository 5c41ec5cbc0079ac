package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/agentvfs/core/pkg/cache/l1"
	coreerrors "github.com/agentvfs/core/pkg/errors"
	"github.com/agentvfs/core/pkg/mount"
	"github.com/agentvfs/core/pkg/rebac/tuple"
	"github.com/agentvfs/core/pkg/server"
)

type vfsHandler struct {
	srv *server.Server
}

// zoneFromRequest extracts the calling Subject and target Zone from
// request headers (see NewRouter's doc comment on the authentication
// non-goal) and resolves the Zone's Facade.
func (h *vfsHandler) zoneFromRequest(w http.ResponseWriter, r *http.Request) (*server.Zone, tuple.Subject, bool) {
	zoneID := r.Header.Get("X-Agentvfs-Zone")
	subjType := r.Header.Get("X-Agentvfs-Subject-Type")
	subjID := r.Header.Get("X-Agentvfs-Subject-Id")
	if zoneID == "" || subjType == "" || subjID == "" {
		writeError(w, http.StatusBadRequest, coreerrors.NewInvalidArgument("missing X-Agentvfs-Zone/Subject-Type/Subject-Id headers"))
		return nil, tuple.Subject{}, false
	}
	z, ok := h.srv.Zones[zoneID]
	if !ok {
		writeError(w, http.StatusNotFound, coreerrors.NewNotFound("zone:"+zoneID))
		return nil, tuple.Subject{}, false
	}
	return z, tuple.Subject{Type: subjType, ID: subjID, Zone: zoneID}, true
}

func (h *vfsHandler) read(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	path := "/" + chiWildcard(r)
	rc, err := z.Facade.Read(r.Context(), path, subj, l1.Eventual, 0)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = copyBody(w, rc)
}

func (h *vfsHandler) write(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	path := "/" + chiWildcard(r)
	versionID, hash, err := z.Facade.Write(r.Context(), path, subj, r.Body)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version_id": versionID, "content_hash": string(hash)})
}

func (h *vfsHandler) delete(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	path := "/" + chiWildcard(r)
	if err := z.Facade.Delete(r.Context(), path, subj); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *vfsHandler) list(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	path := queryOr(r, "path", "/")
	limit := queryInt(r, "limit", 100)
	entries, cursor, err := z.Facade.List(r.Context(), path, subj, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "cursor": cursor})
}

func (h *vfsHandler) mkdir(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	var req struct{ Path string `json:"path"` }
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := z.Facade.Mkdir(r.Context(), req.Path, subj)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *vfsHandler) rename(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := z.Facade.Rename(r.Context(), req.Src, req.Dst, subj)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (h *vfsHandler) versions(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	path := queryOr(r, "path", "")
	limit := queryInt(r, "limit", 50)
	vers, cursor, err := z.Facade.Versions(r.Context(), path, subj, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": vers, "cursor": cursor})
}

func (h *vfsHandler) restore(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Path      string `json:"path"`
		VersionID uint64 `json:"version_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	versionID, err := z.Facade.Restore(r.Context(), req.Path, req.VersionID, subj)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version_id": versionID})
}

func (h *vfsHandler) grep(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	root := queryOr(r, "root", "/")
	pattern := r.URL.Query().Get("pattern")
	matches, err := z.Facade.Grep(r.Context(), root, subj, pattern)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for m := range matches {
		_ = enc.Encode(m)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *vfsHandler) listMounts(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	mounts, err := z.Facade.ListMounts(r.Context(), subj)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, mounts)
}

func (h *vfsHandler) mount(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		MountPoint string `json:"mount_point"`
		BackendID  string `json:"backend_id"`
		ObjectType string `json:"object_type"`
		ReadOnly   bool   `json:"read_only"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rec := mount.Record{
		MountPoint: req.MountPoint, BackendID: req.BackendID,
		ObjectType: mount.ObjectType(req.ObjectType), Zone: z.ID,
		Flags: mount.Flags{ReadOnly: req.ReadOnly},
	}
	if err := z.Facade.Mount(r.Context(), rec, subj); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *vfsHandler) unmount(w http.ResponseWriter, r *http.Request) {
	z, subj, ok := h.zoneFromRequest(w, r)
	if !ok {
		return
	}
	mountPoint := r.URL.Query().Get("mount_point")
	if err := z.Facade.Unmount(r.Context(), mountPoint, subj); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
