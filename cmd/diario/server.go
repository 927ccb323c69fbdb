package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hazyhaar/diario/kit"
	"github.com/hazyhaar/diario/monitor"
	"github.com/hazyhaar/diario/observability"
	"github.com/hazyhaar/diario/shield"
	"golang.org/x/crypto/bcrypt"
)

// newRouter mounts the health, trigger, status and admin surfaces. kv holds
// the process heartbeat. mcpHandler may be nil. adminHash is the bcrypt hash
// of ADMIN_KEY; nil disables admin routes.
func newRouter(svc *monitor.Service, kv observability.Store, adminHash []byte, mcpHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpTransport)
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		hb, err := observability.LatestHeartbeat(r.Context(), kv, heartbeatWorker, 3*heartbeatInterval, time.Now())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"status": "ok", "heartbeat": hb})
	})

	check := func(w http.ResponseWriter, r *http.Request) {
		req, err := checkRequest(r)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		res, err := svc.Run(r.Context(), req)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, res)
	}
	limited := r.With(shield.NewRateLimiter(shield.RateLimitConfig{}).Middleware)
	limited.Get("/api/check", check)
	limited.Post("/api/check", check)

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		h, err := svc.History(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, h)
	})

	r.Route("/api/admin/groups", func(r chi.Router) {
		r.Use(requireAdmin(adminHash))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			groups, err := svc.Groups(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]any{"groups": groups})
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var g monitor.Group
			if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
				writeError(w, 400, err)
				return
			}
			saved, err := svc.SaveGroup(r.Context(), g)
			if errors.Is(err, monitor.ErrInvalidGroup) {
				writeError(w, 400, err)
				return
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, saved)
		})

		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			err := svc.DeleteGroup(r.Context(), chi.URLParam(r, "id"))
			if errors.Is(err, monitor.ErrGroupNotFound) {
				writeError(w, 404, err)
				return
			}
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, map[string]string{"status": "deleted"})
		})
	})

	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
		r.Handle("/mcp/*", mcpHandler)
	}
	return r
}

// httpTransport tags the context with the HTTP transport and chi's request ID.
func httpTransport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin checks X-Admin-Key (or ?key=) against hash.
func requireAdmin(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == nil {
				writeJSON(w, 403, map[string]string{"error": "admin disabled"})
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				key = r.URL.Query().Get("key")
			}
			if key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRequest builds a monitor.Request from a JSON body (POST) or the query
// string: url, source (repeatable or comma-separated), terms, dry, snippets,
// persist.
func checkRequest(r *http.Request) (monitor.Request, error) {
	var req monitor.Request
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}
	q := r.URL.Query()
	req.URL = strings.TrimSpace(q.Get("url"))
	for _, s := range q["source"] {
		req.Sources = append(req.Sources, splitList(s)...)
	}
	req.Terms = splitList(q.Get("terms"))
	req.DryRun = truthy(q.Get("dry"))
	req.Snippets = truthy(q.Get("snippets"))
	req.Persist = truthy(q.Get("persist"))
	return req, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
