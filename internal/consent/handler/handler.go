// Package handler is the thin HTTP layer over the consent manager. The
// agreement record travels in the visitor's cookies; only the volatile
// pageview marker lives server-side, scoped to the visitor's session.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"consentgate/internal/consent/metrics"
	"consentgate/internal/consent/service"
	"consentgate/internal/consent/session"
	"consentgate/internal/consent/store"
	"consentgate/internal/consent/tracer"
	"consentgate/internal/transport/http/shared"
	respond "consentgate/internal/transport/http/shared/json"
	dErrors "consentgate/pkg/domain-errors"
)

// Config controls the handler's consent behavior.
type Config struct {
	// Navigation enables second-pageview implicit consent via the pageview
	// endpoint.
	Navigation bool
	// IgnoreURLs lists pages excluded from the navigation heuristic.
	IgnoreURLs []string
	// CookieTTL is the agreement cookie lifetime; zero means the default.
	CookieTTL time.Duration
}

// Handler handles consent-related endpoints.
type Handler struct {
	sessions *session.Registry
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics sets the metrics instance for the handler.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracer sets the tracer instance for the handler.
func WithTracer(t tracer.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// New creates a new consent Handler.
func New(sessions *session.Registry, cfg Config, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer = tracer.NewNoop()
	}
	return h
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/consent", h.handleStatus)
	r.Post("/consent", h.handleUpdate)
	r.Delete("/consent", h.handleClear)
	r.Post("/consent/pageview", h.handlePageview)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), tracer.SpanStatus)
	defer span.End(nil)

	status := h.manager(w, r).Status()
	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, status.Allowed))
	respond.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, span := h.tracer.Start(ctx, tracer.SpanUpdate)

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode consent update request", "error", err)
		err = dErrors.New(dErrors.CodeBadRequest, "invalid request body")
		span.End(err)
		shared.WriteError(w, err)
		return
	}
	span.SetAttributes(
		tracer.String(tracer.AttrType, req.Type),
		tracer.String(tracer.AttrSubType, req.SubType),
	)

	m := h.manager(w, r)
	if err := m.Update(req.Type, req.SubType); err != nil {
		h.logger.WarnContext(ctx, "consent update rejected",
			"type", req.Type,
			"error", err,
		)
		span.End(err)
		shared.WriteError(w, err)
		return
	}

	status := m.Status()
	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, status.Allowed))
	span.End(nil)
	respond.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), tracer.SpanClear)
	defer span.End(nil)

	h.manager(w, r).Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handlePageview feeds the navigation heuristic. Crawler traffic never
// produces implicit consent: a bot following links is not a user accepting a
// notice.
func (h *Handler) handlePageview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, span := h.tracer.Start(ctx, tracer.SpanPageview)

	var req PageviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		h.logger.WarnContext(ctx, "failed to decode pageview request", "error", err)
		badReq := dErrors.New(dErrors.CodeBadRequest, "pageview url required")
		span.End(badReq)
		shared.WriteError(w, badReq)
		return
	}

	isBot := useragent.New(r.UserAgent()).Bot()
	span.SetAttributes(tracer.Bool(tracer.AttrBot, isBot))

	navigation := h.cfg.Navigation && !isBot
	status := h.pageviewManager(w, r, navigation, req.URL).Status()
	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, status.Allowed))
	span.End(nil)
	respond.WriteJSON(w, http.StatusOK, status)
}

// manager builds a per-request manager over the visitor's cookies. The
// navigation heuristic stays off outside the pageview endpoint.
func (h *Handler) manager(w http.ResponseWriter, r *http.Request) *service.Manager {
	return h.buildManager(w, r, service.Config{}, nil)
}

func (h *Handler) pageviewManager(w http.ResponseWriter, r *http.Request, navigation bool, url string) *service.Manager {
	cfg := service.Config{Navigation: navigation, IgnoreURLs: h.cfg.IgnoreURLs}
	return h.buildManager(w, r, cfg, func() string { return url })
}

func (h *Handler) buildManager(w http.ResponseWriter, r *http.Request, cfg service.Config, location func() string) *service.Manager {
	// Consent never lands in a server-side database: the visitor's cookies
	// are the only bearer, so the store runs cookie-only with no durable
	// backend to probe.
	cookies := store.NewCookieKV(w, r, h.cfg.CookieTTL)
	st := store.New(nil,
		store.WithFallback(cookies),
		store.WithLogger(h.logger),
		store.WithMetrics(h.metrics),
	)
	opts := []service.Option{
		service.WithLogger(h.logger),
		service.WithMetrics(h.metrics),
		service.WithSession(h.sessions.For(w, r)),
	}
	if location != nil {
		opts = append(opts, service.WithLocation(location))
	}
	return service.New(st, cfg, opts...)
}
