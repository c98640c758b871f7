package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/web/handlers"
	"github.com/kozaktomas/rollcall/internal/web/middleware"
	"github.com/kozaktomas/rollcall/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.config, s.sessionManager)
	scanHandler := handlers.NewScanHandler(s.engine, s.resolver)
	studentsHandler := handlers.NewStudentsHandler(s.store, s.engine)
	pendingHandler := handlers.NewPendingHandler(s.store, s.engine)
	timetableHandler := handlers.NewTimetableHandler(s.store, s.resolver)
	settingsHandler := handlers.NewSettingsHandler(s.store)
	reportsHandler := handlers.NewReportsHandler(s.store)
	statsHandler := handlers.NewStatsHandler(s.store, s.engine, s.resolver)
	cacheHandler := handlers.NewCacheHandler(s.engine)
	devicesHandler := handlers.NewDevicesHandler(s.deviceAuth)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// The scan endpoint accepts admin sessions and kiosk device tokens.
		// Kiosks also poll the current period to decide when to scan.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireScanAuth(s.sessionManager, s.deviceAuth))

			r.Post("/attendance/scan", scanHandler.Scan)
			r.Get("/timetable/current", timetableHandler.Current)
		})

		// Everything else requires an admin session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Students
			r.Get("/students", studentsHandler.List)
			r.Post("/students", studentsHandler.Create)
			r.Get("/students/{id}", studentsHandler.Get)
			r.Delete("/students/{id}", studentsHandler.Delete)

			// Pending reviews
			r.Get("/pending", pendingHandler.List)
			r.Post("/pending/{id}/confirm", pendingHandler.Confirm)
			r.Post("/pending/{id}/reject", pendingHandler.Reject)

			// Timetable
			r.Get("/timetable", timetableHandler.List)
			r.Post("/timetable", timetableHandler.Create)
			r.Delete("/timetable/{id}", timetableHandler.Delete)

			// Settings
			r.Get("/settings", settingsHandler.Get)
			r.Put("/settings", settingsHandler.Update)

			// Attendance reports
			r.Get("/attendance", reportsHandler.List)
			r.Get("/attendance/export", reportsHandler.Export)

			// Stats
			r.Get("/stats", statsHandler.Get)

			// Known-set cache
			r.Post("/cache/refresh", cacheHandler.Refresh)

			// Kiosk device tokens
			r.Post("/devices/token", devicesHandler.Token)
		})
	})

	// Serve the kiosk frontend
	s.router.Get("/*", s.serveStatic)
}

// serveStatic serves the embedded kiosk frontend. Unknown paths fall back to
// index.html so the page owns its own routing.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if static.HasAssets() {
		fs := static.FileSystem()
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		f, err := fs.Open(path)
		if err == nil {
			defer f.Close()

			stat, err := f.Stat()
			if err == nil && !stat.IsDir() {
				w.Header().Set("Content-Type", contentTypeFor(path))
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		indexFile, err := fs.Open("/index.html")
		if err == nil {
			defer indexFile.Close()
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			io.Copy(w, indexFile)
			return
		}
	}

	// Fallback when no frontend is embedded
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Rollcall</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Rollcall</h1>
        <p>No kiosk frontend is embedded in this build.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}

// contentTypeFor maps an asset path to its content type
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		return "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		return "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".ico"):
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
