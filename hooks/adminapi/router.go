// Package adminapi demonstrates wiring vfs.Facade and the ReBAC check
// engine behind HTTP without pkg/vfs or pkg/rebac importing any transport
// code — this package imports vfs/rebac, never the reverse. Grounded on
// the teacher's chi router (pkg/controlplane/api/router.go): request-ID +
// real-IP + structured-logging + panic-recovery + timeout middleware
// stack, route groups per resource.
package adminapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentvfs/core/internal/cli/health"
	"github.com/agentvfs/core/internal/logger"
	"github.com/agentvfs/core/pkg/server"
)

var startedAt = time.Now()

// NewRouter builds the admin HTTP API over every zone in srv. Callers
// identify their zone, subject type, and subject ID via the
// X-Agentvfs-Zone/X-Agentvfs-Subject-Type/X-Agentvfs-Subject-Id headers —
// authenticating that a caller really is the claimed subject is explicitly
// out of scope (spec.md's non-goal: "principals arrive pre-authenticated");
// a production deployment fronts this with its own auth middleware.
func NewRouter(srv *server.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		uptime := time.Since(startedAt)
		resp := health.Response{Status: "ok", Timestamp: time.Now().Format(time.RFC3339)}
		resp.Data.Service = "agentvfsd"
		resp.Data.StartedAt = startedAt.Format(time.RFC3339)
		resp.Data.Uptime = uptime.String()
		resp.Data.UptimeSec = int64(uptime.Seconds())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})

	h := &vfsHandler{srv: srv}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/fs", func(r chi.Router) {
			r.Get("/*", h.read)
			r.Put("/*", h.write)
			r.Delete("/*", h.delete)
		})
		r.Get("/list", h.list)
		r.Post("/mkdir", h.mkdir)
		r.Post("/rename", h.rename)
		r.Get("/versions", h.versions)
		r.Post("/restore", h.restore)
		r.Get("/grep", h.grep)

		r.Route("/mounts", func(r chi.Router) {
			r.Get("/", h.listMounts)
			r.Post("/", h.mount)
			r.Delete("/", h.unmount)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		logger.Info("admin api request",
			"method", req.Method, "path", req.URL.Path,
			"request_id", middleware.GetReqID(req.Context()),
			"duration_ms", time.Since(start).Seconds()*1000)
	})
}
