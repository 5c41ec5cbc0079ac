package adminapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	coreerrors "github.com/agentvfs/core/pkg/errors"
)

// statusForErr maps pkg/errors.Code to an HTTP status, grounded on the
// teacher's MapStoreError (internal/controlplane/api/handlers/helpers.go)
// adapted from sentinel-error matching to the core error-code taxonomy.
func statusForErr(err error) int {
	switch {
	case coreerrors.Is(err, coreerrors.NotFound):
		return http.StatusNotFound
	case coreerrors.Is(err, coreerrors.AlreadyExists), coreerrors.Is(err, coreerrors.MountConflict), coreerrors.Is(err, coreerrors.CASFailure):
		return http.StatusConflict
	case coreerrors.Is(err, coreerrors.InvalidArgument), coreerrors.Is(err, coreerrors.CrossMountRename), coreerrors.Is(err, coreerrors.CrossTenant):
		return http.StatusBadRequest
	case coreerrors.Is(err, coreerrors.PermissionDenied):
		return http.StatusForbidden
	case coreerrors.Is(err, coreerrors.Indeterminate), coreerrors.Is(err, coreerrors.Timeout):
		return http.StatusGatewayTimeout
	case coreerrors.Is(err, coreerrors.Unavailable), coreerrors.Is(err, coreerrors.CacheUnavailable):
		return http.StatusServiceUnavailable
	case coreerrors.Is(err, coreerrors.QuotaExceeded):
		return http.StatusTooManyRequests
	case coreerrors.Is(err, coreerrors.Corrupt), coreerrors.Is(err, coreerrors.SchemaError):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, coreerrors.NewInvalidArgument("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func copyBody(w io.Writer, r io.Reader) (int64, error) {
	return io.Copy(w, r)
}

func queryOr(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// chiWildcard returns the "/*" wildcard match for routes mounted under
// /api/v1/fs/*, with any leading slash removed; callers prepend "/" to
// form a VFS path.
func chiWildcard(r *http.Request) string {
	return strings.TrimPrefix(chi.URLParam(r, "*"), "/")
}
