package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tournevent/shiplite/internal/tenant"
	"go.uber.org/zap"
)

// requireTenant puts the shop named by the X-Shop-Domain header on the
// request context and rejects requests without one.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shop := tenant.Normalize(r.Header.Get(tenant.Header))
		if shop == "" {
			writeProblem(w, r, problemFor(tenant.ErrMissingTenant))
			return
		}
		next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), shop)))
	})
}

// observe logs and counts each request by its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.deps.Metrics.RecordRequest(route, r.Method, strconv.Itoa(status), elapsed.Seconds())

		if route == "/health" || route == "/metrics" {
			return
		}
		s.logger.Ctx(r.Context()).Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Ctx(r.Context()).Error("Handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeProblem(w, r, problemFor(nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
