package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/auth"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/ratelimit"
	"github.com/shahdkhalaf/graduation-project/internal/service"
)

const maxBodyBytes = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Options struct {
	CORSOrigins []string
	// Limiter applies to every route; nil disables it.
	Limiter        ratelimit.Limiter
	LimiterBackend string
	// LoginRateLimit bounds signup, signin and verification attempts per IP.
	LoginRateLimit int
	LoginWindow    time.Duration
}

type Server struct {
	opts     Options
	identity *service.Identity
	tracking *service.Tracking
	location *service.Location
	pricing  *service.Pricing
	health   HealthChecker
}

func NewServer(opts Options, identity *service.Identity, tracking *service.Tracking, location *service.Location, pricing *service.Pricing, health HealthChecker) *Server {
	return &Server{
		opts:     opts,
		identity: identity,
		tracking: tracking,
		location: location,
		pricing:  pricing,
		health:   health,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	if s.opts.Limiter != nil {
		r.Use(s.rateLimit)
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.opts.LoginRateLimit > 0 {
			r.Use(httprate.Limit(s.opts.LoginRateLimit, s.opts.LoginWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeError(w, http.StatusTooManyRequests, "rate_limited")
				}),
			))
		}
		r.Post("/signup", s.handleSignup)
		r.Post("/signin", s.handleSignin)
		r.Post("/verify_email", s.handleVerifyEmail)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/get_user", s.handleGetUser)

		r.Post("/send_tracking_request", s.handleSendTrackingRequest)
		r.Get("/check_tracking_requests", s.handleCheckTrackingRequests)
		r.Get("/check_sent_tracking_requests", s.handleCheckSentTrackingRequests)
		r.Post("/update_tracking_request", s.handleUpdateTrackingRequest)

		r.Post("/send_location", s.handleSendLocation)
		r.Get("/get_latest_location", s.handleGetLatestLocation)
		r.Get("/get_current_location", s.handleGetCurrentLocation)

		r.Get("/get_price", s.handleGetPrice)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
		return
	}
	if err := s.health.Ping(r.Context()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "Database connection failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := s.identity.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps a classified error to its status and code. Internal
// and Unavailable failures are logged here; client errors are not.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindUnavailable {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if kind == apperr.KindUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, apperr.HTTPStatus(kind), apperr.CodeOf(err))
}
