// Package api exposes the booking resolver, the notification triggers and
// the mail provider webhook over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"inkflow/internal/booking"
	"inkflow/internal/model"
	"inkflow/shared/access"
	"inkflow/shared/reminders"
)

const maxBodyBytes = 1 << 20

// Config holds the shared secrets the endpoints check.
type Config struct {
	Address       string
	APIKey        string
	CronSecret    string
	WebhookSecret string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// Bookings is the booking service surface the API uses.
type Bookings interface {
	Validate(ctx context.Context, studioID string, p booking.Proposal) (booking.Result, error)
	Save(ctx context.Context, actor access.Actor, apt model.Appointment) (booking.Outcome, error)
	Delete(ctx context.Context, actor access.Actor, id string) error
	Unlock(ctx context.Context, actor access.Actor, id string) (*model.Appointment, error)
}

// ActorResolver turns a studio member into a typed actor.
type ActorResolver interface {
	Resolve(ctx context.Context, studioID, userID string) (access.Actor, error)
}

// SweepTrigger runs one reminder sweep.
type SweepTrigger interface {
	Trigger(ctx context.Context) (reminders.SweepStats, error)
}

// WebhookStore records provider delivery events.
type WebhookStore interface {
	FindCustomerByEmail(ctx context.Context, email string) (*model.Customer, error)
	MarkEmailBounced(ctx context.Context, email, reason string, at time.Time) (int64, error)
	MarkEmailUnsubscribed(ctx context.Context, email string, at time.Time) (int64, error)
	InsertEmailEvent(ctx context.Context, e *model.EmailEvent) error
}

// Deps are the services behind the endpoints. Any of them may be nil, in
// which case the matching endpoints are not mounted.
type Deps struct {
	Notifier reminders.Notifier
	Sweeper  SweepTrigger
	Bookings Bookings
	Actors   ActorResolver
	Webhooks WebhookStore
}

// HTTPServer serves the API.
type HTTPServer struct {
	config   Config
	deps     Deps
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
	server   *http.Server
}

// NewHTTPServer builds the server and its routes.
func NewHTTPServer(cfg Config, deps Deps, logger zerolog.Logger) *HTTPServer {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &HTTPServer{
		config:   cfg,
		deps:     deps,
		validate: newValidator(),
		logger:   logger.With().Str("component", "api").Logger(),
		now:      time.Now,
	}

	mux := http.NewServeMux()
	if deps.Notifier != nil {
		mux.HandleFunc("POST /api/v1/notify", s.handleNotify)
	}
	if deps.Sweeper != nil {
		mux.HandleFunc("POST /api/v1/reminders/sweep", s.handleSweep)
	}
	if deps.Bookings != nil && deps.Actors != nil {
		mux.HandleFunc("POST /api/v1/bookings/validate", s.requireAPIKey(s.handleValidateBooking))
		mux.HandleFunc("POST /api/v1/appointments", s.requireAPIKey(s.handleSaveAppointment))
		mux.HandleFunc("DELETE /api/v1/appointments/{id}", s.requireAPIKey(s.handleDeleteAppointment))
		mux.HandleFunc("POST /api/v1/appointments/{id}/unlock", s.requireAPIKey(s.handleUnlockAppointment))
	}
	if deps.Webhooks != nil {
		mux.HandleFunc("POST /api/v1/webhooks/mailjet", s.handleMailjetWebhook)
	}

	s.server = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.recoverer(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.config.Address).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !secretEqual(r.Header.Get("apikey"), s.config.APIKey) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// secretEqual compares in constant time. An unset secret never matches.
func secretEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
