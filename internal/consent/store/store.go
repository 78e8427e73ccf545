package store

import (
	"log/slog"

	"consentgate/internal/consent/metrics"
)

// probeKey is written and deleted to test whether the durable backend works.
const probeKey = "cpm-probe"

// Store reads and writes raw agreement values, preferring a durable backend
// and falling back to a secondary one (typically cookie-based) when the
// durable backend is unusable.
//
// Storage trouble is an environmental condition, not a fault: it is absorbed
// into the fallback path and never surfaced to callers.
type Store struct {
	durable  KV
	fallback KV
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// usable caches the durable-backend probe verdict. nil means not yet
	// probed; every access re-probes until a verdict is cached, guarding
	// against facilities that flip availability mid-session.
	usable *bool
}

// Option configures a Store.
type Option func(*Store)

// WithFallback sets the backend used when the durable one is unusable.
func WithFallback(kv KV) Option {
	return func(s *Store) { s.fallback = kv }
}

// WithLogger sets the logger instance for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics sets the metrics instance for the store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New constructs a Store over the given durable backend. The probe runs
// lazily on first access, not at construction. A nil durable backend skips
// probing entirely and runs on the fallback alone (cookie-only embedders).
func New(durable KV, opts ...Option) *Store {
	s := &Store{durable: durable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadRaw returns the stored value for key, or "" when absent or unreadable.
func (s *Store) ReadRaw(key string) string {
	kv := s.backend()
	if kv == nil {
		return ""
	}
	value, err := kv.Get(key)
	if err != nil {
		s.log("consent storage read failed", "key", key, "error", err)
		return ""
	}
	return value
}

// WriteRaw persists value under key. Failures are logged and dropped.
func (s *Store) WriteRaw(key, value string) {
	kv := s.backend()
	if kv == nil {
		s.log("consent storage unavailable, dropping write", "key", key)
		return
	}
	if err := kv.Set(key, value); err != nil {
		s.log("consent storage write failed", "key", key, "error", err)
	}
}

// ClearRaw removes the value under key. It is WriteRaw(key, ""): backends
// treat an empty value as deletion.
func (s *Store) ClearRaw(key string) {
	s.WriteRaw(key, "")
}

// backend picks the durable backend when usable, otherwise the fallback.
func (s *Store) backend() KV {
	if s.durable == nil {
		return s.fallback
	}
	if s.usable == nil {
		verdict := s.probe()
		s.usable = &verdict
		if !verdict {
			s.log("durable consent storage unusable, using fallback")
			if s.metrics != nil {
				s.metrics.IncrementFallbackActivations()
			}
		}
	}
	if *s.usable {
		return s.durable
	}
	return s.fallback
}

// probe checks the durable backend end to end with a sentinel key.
func (s *Store) probe() bool {
	if err := s.durable.Set(probeKey, "1"); err != nil {
		return false
	}
	if err := s.durable.Delete(probeKey); err != nil {
		return false
	}
	return true
}

func (s *Store) log(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, args...)
}
