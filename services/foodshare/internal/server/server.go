package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"foodshare/internal/metrics"
	"foodshare/internal/ratelimit"
	"foodshare/internal/util"
	"foodshare/pkg/domain"
	"foodshare/services/foodshare/internal/app"
)

const (
	serviceName     = "foodshare"
	maxBodyBytes    = 1 << 20
	rateWindow      = time.Minute
	defaultLogin    = 10
	defaultSignup   = 5
	defaultCookie   = "sid"
	defaultLifetime = 24 * time.Hour
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Metrics *metrics.Metrics
	// Limiters default to in-process token buckets.
	LoginLimiter       ratelimit.Limiter
	SignupLimiter      ratelimit.Limiter
	TrustedProxies     *util.TrustedProxies
	CookieName         string
	CookieSecure       bool
	SessionTTL         time.Duration
	CORSAllowedOrigins []string
	// Ready reports backing store health for /healthz. Nil means always ready.
	Ready func(context.Context) error
}

// Server exposes the FoodShare REST API.
type Server struct {
	app           *app.App
	metrics       *metrics.Metrics
	mux           *http.ServeMux
	loginLimiter  ratelimit.Limiter
	signupLimiter ratelimit.Limiter
	trusted       *util.TrustedProxies
	cookieName    string
	cookieSecure  bool
	sessionTTL    time.Duration
	corsOrigins   []string
	ready         func(context.Context) error
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	var err error
	if cfg.LoginLimiter == nil {
		if cfg.LoginLimiter, err = ratelimit.NewLocalLimiter(defaultLogin, rateWindow); err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
	}
	if cfg.SignupLimiter == nil {
		if cfg.SignupLimiter, err = ratelimit.NewLocalLimiter(defaultSignup, rateWindow); err != nil {
			return nil, fmt.Errorf("init signup limiter: %w", err)
		}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookie
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultLifetime
	}
	s := &Server{
		app:           cfg.App,
		metrics:       cfg.Metrics,
		mux:           http.NewServeMux(),
		loginLimiter:  cfg.LoginLimiter,
		signupLimiter: cfg.SignupLimiter,
		trusted:       cfg.TrustedProxies,
		cookieName:    cfg.CookieName,
		cookieSecure:  cfg.CookieSecure,
		sessionTTL:    cfg.SessionTTL,
		corsOrigins:   cfg.CORSAllowedOrigins,
		ready:         cfg.Ready,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
// Metrics sits inside request-id so it observes the request the mux annotates
// with its matched pattern.
func (s *Server) Router() http.Handler {
	h := util.WithSecurityHeaders(util.WithCORS(s.corsOrigins, s.mux))
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	h = util.WithRequestLog(serviceName, h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// sessions & users
	s.mux.HandleFunc("GET /api/session", s.authenticated(s.handleSessionUser))
	s.mux.HandleFunc("GET /api/users", s.handleListUsers)
	s.mux.HandleFunc("GET /api/users/{username}", s.handleGetUser)
	s.mux.HandleFunc("POST /api/users", s.handleRegister)
	s.mux.HandleFunc("PATCH /api/users/username", s.authenticated(s.handleUpdateUsername))
	s.mux.HandleFunc("PATCH /api/users/password", s.authenticated(s.handleUpdatePassword))
	s.mux.HandleFunc("PATCH /api/users/address", s.authenticated(s.handleUpdateAddress))
	s.mux.HandleFunc("DELETE /api/users", s.authenticated(s.handleDeleteAccount))
	s.mux.HandleFunc("GET /api/user-role", s.authenticated(s.handleUserRole))
	s.mux.HandleFunc("POST /api/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/logout", s.handleLogout)

	// listings
	s.mux.HandleFunc("GET /api/posts", s.handleListPosts)
	s.mux.HandleFunc("GET /api/posts/user", s.authenticated(s.handleUserPosts))
	s.mux.HandleFunc("GET /api/posts/non-expired", s.handleNonExpiredPosts)
	s.mux.HandleFunc("GET /api/posts/non-expired-non-claimed", s.handleNonExpiredUnclaimedPosts)
	s.mux.HandleFunc("GET /api/posts/non-expired-claimed", s.handleNonExpiredClaimedPosts)
	s.mux.HandleFunc("POST /api/posts", s.authenticated(s.handleCreatePost))
	s.mux.HandleFunc("PATCH /api/posts/{id}", s.authenticated(s.handleUpdatePost))
	s.mux.HandleFunc("DELETE /api/posts/{id}", s.authenticated(s.handleDeletePost))

	// claims
	s.mux.HandleFunc("POST /api/claims/pickup", s.authenticated(s.handleCreatePickupClaim))
	s.mux.HandleFunc("POST /api/claims/delivery", s.authenticated(s.handleCreateDeliveryClaim))
	s.mux.HandleFunc("DELETE /api/claims/{post}", s.authenticated(s.handleCancelClaim))
	s.mux.HandleFunc("PATCH /api/claims/pickup/{claim}", s.authenticated(s.handleCompletePickupClaim))
	s.mux.HandleFunc("GET /api/claims", s.authenticated(s.handleUserClaims))
	s.mux.HandleFunc("GET /api/claims/{post}", s.handleListingClaim)

	// deliveries
	s.mux.HandleFunc("POST /api/deliveries", s.authenticated(s.handleAcceptDelivery))
	s.mux.HandleFunc("DELETE /api/deliveries/{id}", s.authenticated(s.handleUnacceptDelivery))
	s.mux.HandleFunc("POST /api/deliveries/start/{id}", s.authenticated(s.handleStartDelivery))
	s.mux.HandleFunc("POST /api/deliveries/complete/{id}", s.authenticated(s.handleCompleteDelivery))
	s.mux.HandleFunc("GET /api/deliveries", s.handleListDeliveries)
	s.mux.HandleFunc("GET /api/deliveries/status/{claim}", s.handleDeliveryStatus)
	s.mux.HandleFunc("GET /api/deliveries/requests", s.authenticated(s.handleAvailableRequests))
	s.mux.HandleFunc("GET /api/deliveries/user", s.authenticated(s.handleUserDeliveries))

	// messages
	s.mux.HandleFunc("GET /api/messages", s.authenticated(s.handleConversation))
	s.mux.HandleFunc("POST /api/messages", s.authenticated(s.handleSendMessage))
	s.mux.HandleFunc("DELETE /api/messages/{id}", s.authenticated(s.handleDeleteMessage))

	// tags
	s.mux.HandleFunc("GET /api/tags/items", s.handleItemsWithTags)
	s.mux.HandleFunc("GET /api/tags/{post}", s.handleListingTags)
	s.mux.HandleFunc("POST /api/tags/{post}", s.authenticated(s.handleAddTag))
	s.mux.HandleFunc("DELETE /api/tags/{post}/{tag}", s.authenticated(s.handleDeleteTag))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			util.LoggerFromContext(r.Context()).Error("readiness check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type callerHandler func(http.ResponseWriter, *http.Request, app.Caller)

// authenticated resolves the session cookie into an app.Caller before next runs.
func (s *Server) authenticated(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := s.app.Authenticate(s.sessionHandle(r))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		next(w, r, caller)
	}
}

func (s *Server) sessionHandle(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, handle string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    handle,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure || util.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure || util.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// An empty body decodes as the zero value so validation reports what is missing.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return domain.BadValues("Malformed JSON body: %v", err)
	}
	return validateRequest(dst)
}

var errBodyTooLarge = errors.New("request body too large")

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
		return
	}
	de, ok := domain.AsError(err)
	if !ok {
		util.LoggerFromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, s.app.Describe(r.Context(), err))
		return
	}
	status := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindNotAllowed:
		status = http.StatusForbidden
	case domain.KindBadValues:
		status = http.StatusBadRequest
	}
	writeError(w, status, s.app.Describe(r.Context(), err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"msg": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, event string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	if limiter.Allow(key) {
		return true
	}
	s.audit(r, event, "rate_limited")
	w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
	writeError(w, http.StatusTooManyRequests, "Too many requests, try again later.")
	return false
}
