// Package service implements the consent manager: the agreement state
// machine, the deferred action queue, and the second-pageview navigation
// heuristic. Persistence and the current-page location are injected
// capabilities so the core runs against fakes in tests.
package service

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"consentgate/internal/consent/metrics"
	"consentgate/internal/consent/models"
	"consentgate/internal/consent/store"
	dErrors "consentgate/pkg/domain-errors"
)

// Storage keys. The agreement record lives in the dual-backend store; the
// pageview marker lives in session-scoped storage.
const (
	AgreementKey = "cpm-agree"
	PrevPageKey  = "cpm-prev"
)

// NavigationSubType tags implicit agreements produced by the navigation
// heuristic.
const NavigationSubType = "navigation"

// Config controls optional manager behavior. Unknown or mistyped settings
// cannot occur: the struct is the contract.
type Config struct {
	// Navigation enables second-pageview implicit-consent detection.
	Navigation bool
	// IgnoreURLs lists pages excluded from the navigation heuristic,
	// typically informational pages like "more about cookies".
	IgnoreURLs []string
}

// Manager owns one consent lifecycle: it reads and updates the persisted
// agreement, defers consent-gated actions, and fires them exactly once when
// consent becomes allowed. Each Manager owns its queue exclusively; instances
// sharing the same persisted record never share queues.
type Manager struct {
	store    *store.Store
	session  store.KV
	location func() string
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics

	queue   []func()
	pending map[uintptr]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger instance for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics instance for the manager.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithSession sets the session-scoped store holding the pageview marker.
// Without it the navigation heuristic is disabled.
func WithSession(kv store.KV) Option {
	return func(m *Manager) { m.session = kv }
}

// WithLocation sets the current-page URL source for the navigation heuristic.
func WithLocation(fn func() string) Option {
	return func(m *Manager) { m.location = fn }
}

// New constructs a Manager and, when configured, immediately runs the
// navigation heuristic. A fresh Manager always starts with an empty queue
// regardless of the persisted agreement.
func New(st *store.Store, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		cfg:     cfg,
		pending: make(map[uintptr]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.detectNavigation()
	return m
}

// Status reports the current agreement projection.
func (m *Manager) Status() models.Status {
	return m.record().Status()
}

// Action registers a callback to run once consent is allowed. If consent is
// already allowed it runs immediately. Registering the same callback twice
// while it is still queued is a no-op.
func (m *Manager) Action(fn func()) error {
	if fn == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "action callback must not be nil")
	}
	ptr := reflect.ValueOf(fn).Pointer()
	if _, queued := m.pending[ptr]; queued {
		return nil
	}
	m.pending[ptr] = struct{}{}
	m.queue = append(m.queue, fn)
	m.flush()
	return nil
}

// Update records an agreement decision. Type and subtype are trimmed and
// lower-cased before validation; an unrecognized type is a caller error and
// mutates nothing.
//
// Deny and explicit agreements are sticky: an implicit update over either is
// dropped silently (logged, nil error) so unconditional implicit detection in
// caller code cannot downgrade a real decision. An implicit update over an
// existing implicit record overwrites it; the comparison is type-based only.
func (m *Manager) Update(agreementType, subType string) error {
	typ := models.Type(models.Normalize(agreementType))
	sub := models.Normalize(subType)
	if !typ.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown agreement type %q", agreementType))
	}

	current := m.record()
	if typ == models.TypeImplicit && current.Exists() && current.Type != models.TypeImplicit {
		m.log("implicit agreement ignored, prior decision is sticky",
			"prior_type", string(current.Type),
			"sub_type", sub,
		)
		if m.metrics != nil {
			m.metrics.IncrementImplicitRejected()
		}
		return nil
	}

	m.store.WriteRaw(AgreementKey, models.Record{Type: typ, SubType: sub}.Encode())
	if typ != models.TypeImplicit {
		m.deleteMarker()
	}
	m.log("agreement updated", "type", string(typ), "sub_type", sub)
	if m.metrics != nil {
		m.metrics.IncrementAgreementUpdates(string(typ))
	}

	m.flush()
	return nil
}

// Clear removes the persisted agreement and the session pageview marker. The
// action queue is untouched: already-fired callbacks are not re-armed and
// unfired ones stay queued.
func (m *Manager) Clear() {
	m.store.ClearRaw(AgreementKey)
	m.deleteMarker()
	if m.metrics != nil {
		m.metrics.IncrementClears()
	}
}

// record decodes the persisted agreement, zero when absent.
func (m *Manager) record() models.Record {
	return models.Decode(m.store.ReadRaw(AgreementKey))
}

// flush runs every queued action in insertion order and clears the queue,
// but only once consent is allowed.
func (m *Manager) flush() {
	if !m.record().Allowed() || len(m.queue) == 0 {
		return
	}
	queued := m.queue
	m.queue = nil
	m.pending = make(map[uintptr]struct{})
	for _, fn := range queued {
		fn()
	}
	if m.metrics != nil {
		m.metrics.ObserveQueueFlush(len(queued))
	}
}

// detectNavigation applies the second-pageview heuristic: a visit to a
// second distinct, non-ignored page with a notice still pending is treated as
// implicit consent. It runs once, at construction, and only when no decision
// has been recorded yet.
func (m *Manager) detectNavigation() {
	if !m.cfg.Navigation || m.session == nil || m.location == nil {
		return
	}
	if m.record().Exists() {
		return
	}
	current := stripFragment(m.location())
	if current == "" {
		return
	}
	prevRaw, err := m.session.Get(PrevPageKey)
	if err != nil {
		// Session storage unusable: the heuristic degrades to off.
		m.log("session storage unusable, navigation detection disabled", "error", err)
		return
	}
	prev := stripFragment(prevRaw)

	if prev != "" && prev != current && !m.isIgnored(current) {
		if err := m.Update(string(models.TypeImplicit), NavigationSubType); err == nil {
			m.deleteMarker()
			m.log("implicit agreement from navigation", "url", current)
			return
		}
	}
	if err := m.session.Set(PrevPageKey, current); err != nil {
		m.log("failed to store pageview marker", "error", err)
	}
}

func (m *Manager) isIgnored(current string) bool {
	for _, u := range m.cfg.IgnoreURLs {
		if stripFragment(u) == current {
			return true
		}
	}
	return false
}

func (m *Manager) deleteMarker() {
	if m.session == nil {
		return
	}
	_ = m.session.Delete(PrevPageKey)
}

func (m *Manager) log(msg string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Info(msg, args...)
}

// stripFragment drops any #fragment from a URL so reloads that only move
// within a page never count as a second pageview.
func stripFragment(u string) string {
	s, _, _ := strings.Cut(u, "#")
	return s
}
