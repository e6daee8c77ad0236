package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handler builds the routing tree.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/token", s.withLoginRateLimit(s.handleLogin))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.handleRegister)
			r.Get("/", s.handleListUsers)
			r.With(s.requireAuth).Get("/me", s.handleMe)
			r.With(s.requireAuth).Post("/me/avatar", s.handleAvatarUpload)
			r.Get("/{id}", s.handleGetUser)
		})

		r.Route("/secrets", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleListSecrets)
			r.With(s.requireAuth).Post("/", s.handleCreateSecret)
			r.Route("/{id}", func(r chi.Router) {
				r.With(s.optionalAuth).Get("/", s.handleGetSecret)
				r.With(s.requireAuth).Put("/", s.handleUpdateSecret)
				r.With(s.requireAuth).Delete("/", s.handleDeleteSecret)
				r.With(s.optionalAuth).Get("/comments", s.handleListComments)
				r.With(s.requireAuth).Post("/comments", s.handleCreateComment)
			})
		})

		r.Route("/comments/{id}", func(r chi.Router) {
			r.With(s.optionalAuth).Get("/", s.handleGetComment)
			r.With(s.requireAuth).Put("/", s.handleUpdateComment)
			r.With(s.requireAuth).Delete("/", s.handleDeleteComment)
		})
	})

	return r
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// withLoginRateLimit caps login attempts per client IP.
func (s *HTTPServer) withLoginRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.loginRateLimit <= 0 {
			next(w, r)
			return
		}
		d := s.limiter.Allow(r.Context(), "login:"+clientIP(r), s.loginRateLimit, s.loginRateWindow)
		if !d.Allowed {
			s.metrics.recordRateLimitHit("/api/token")
			if !d.WindowEnd.IsZero() {
				retry := int(time.Until(d.WindowEnd).Seconds()) + 1
				if retry > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retry))
				}
			}
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		next(w, r)
	}
}
