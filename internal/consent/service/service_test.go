package service

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"consentgate/internal/consent/models"
	"consentgate/internal/consent/store"
	dErrors "consentgate/pkg/domain-errors"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ManagerSuite struct {
	suite.Suite
	durable *store.MemoryKV
	store   *store.Store
	manager *Manager
}

func (s *ManagerSuite) SetupTest() {
	s.durable = store.NewMemoryKV()
	s.store = store.New(s.durable, store.WithLogger(silentLogger()))
	s.manager = New(s.store, Config{}, WithLogger(silentLogger()))
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

// TestUpdate_PersistsAndProjects verifies that for deny and explicit updates
// the status projection reflects exactly what was recorded.
// Invariant: allowed == (type != deny); because == "type[/subType]".
func (s *ManagerSuite) TestUpdate_PersistsAndProjects() {
	cases := []struct {
		typ     string
		subType string
		allowed bool
		because string
	}{
		{"deny", "", false, "deny"},
		{"deny", "close-button", false, "deny/close-button"},
		{"explicit", "", true, "explicit"},
		{"explicit", "accept-button", true, "explicit/accept-button"},
	}
	for _, tc := range cases {
		s.T().Run(tc.because, func(t *testing.T) {
			s.SetupTest()
			require.NoError(t, s.manager.Update(tc.typ, tc.subType))
			assert.Equal(t, models.Status{Allowed: tc.allowed, Because: tc.because}, s.manager.Status())
		})
	}
}

// TestUpdate_InvalidType verifies unknown types are a caller error and mutate
// nothing.
func (s *ManagerSuite) TestUpdate_InvalidType() {
	err := s.manager.Update("maybe", "x")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Equal(models.Status{}, s.manager.Status())
}

// TestUpdate_NormalizesInput verifies type and subtype are trimmed and
// lower-cased before validation and persistence.
func (s *ManagerSuite) TestUpdate_NormalizesInput() {
	s.Require().NoError(s.manager.Update("  Explicit ", " Accept-Button "))
	s.Equal("explicit/accept-button", s.manager.Status().Because)
}

// TestUpdate_ImplicitOverwriteAllowed verifies an implicit record may be
// replaced by another implicit record regardless of subtype.
// Invariant: the precedence comparison is type-based, not subtype-based.
func (s *ManagerSuite) TestUpdate_ImplicitOverwriteAllowed() {
	s.Require().NoError(s.manager.Update("implicit", "x"))
	s.Require().NoError(s.manager.Update("implicit", "y"))
	s.Equal("implicit/y", s.manager.Status().Because)
}

// TestUpdate_StickyPrecedence verifies deny and explicit records are never
// overwritten by an implicit update, and that the drop is silent.
func (s *ManagerSuite) TestUpdate_StickyPrecedence() {
	s.T().Run("explicit survives implicit", func(t *testing.T) {
		s.SetupTest()
		require.NoError(t, s.manager.Update("explicit", "a"))
		require.NoError(t, s.manager.Update("implicit", "b"), "conflicting implicit update is not an error")
		assert.Equal(t, "explicit/a", s.manager.Status().Because)
	})

	s.T().Run("deny survives implicit", func(t *testing.T) {
		s.SetupTest()
		require.NoError(t, s.manager.Update("deny", ""))
		require.NoError(t, s.manager.Update("implicit", "navigation"))
		assert.Equal(t, models.Status{Allowed: false, Because: "deny"}, s.manager.Status())
	})

	s.T().Run("explicit replaces implicit", func(t *testing.T) {
		s.SetupTest()
		require.NoError(t, s.manager.Update("implicit", "navigation"))
		require.NoError(t, s.manager.Update("explicit", "accept-button"))
		assert.Equal(t, "explicit/accept-button", s.manager.Status().Because)
	})
}

// TestAction_NilCallback verifies a nil callback is a caller error.
func (s *ManagerSuite) TestAction_NilCallback() {
	err := s.manager.Action(nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestAction_DeferredUntilAllowed verifies the queue holds callbacks until an
// allowing update arrives, then fires each exactly once in insertion order.
func (s *ManagerSuite) TestAction_DeferredUntilAllowed() {
	var order []string
	s.Require().NoError(s.manager.Action(func() { order = append(order, "first") }))
	s.Require().NoError(s.manager.Action(func() { order = append(order, "second") }))
	s.Empty(order, "callbacks must not fire while consent is not allowed")

	s.Require().NoError(s.manager.Update("explicit", "accept-button"))
	s.Equal([]string{"first", "second"}, order)

	// A second allowing update must not re-fire flushed callbacks.
	s.Require().NoError(s.manager.Update("explicit", "again"))
	s.Equal([]string{"first", "second"}, order)
}

// TestAction_ImmediateWhenAllowed verifies registration after consent fires
// the callback immediately and exactly once.
func (s *ManagerSuite) TestAction_ImmediateWhenAllowed() {
	s.Require().NoError(s.manager.Update("implicit", "navigation"))

	calls := 0
	s.Require().NoError(s.manager.Action(func() { calls++ }))
	s.Equal(1, calls)
}

// TestAction_DuplicateRegistrationIgnored verifies registering the same
// callback twice while queued keeps a single entry.
func (s *ManagerSuite) TestAction_DuplicateRegistrationIgnored() {
	calls := 0
	fn := func() { calls++ }
	s.Require().NoError(s.manager.Action(fn))
	s.Require().NoError(s.manager.Action(fn))

	s.Require().NoError(s.manager.Update("explicit", ""))
	s.Equal(1, calls)
}

// TestAction_DenyNeverFires verifies a deny decision leaves callbacks queued.
func (s *ManagerSuite) TestAction_DenyNeverFires() {
	calls := 0
	s.Require().NoError(s.manager.Action(func() { calls++ }))
	s.Require().NoError(s.manager.Update("deny", "close-button"))
	s.Equal(0, calls)

	// An explicit change of heart later still fires the queued callback.
	s.Require().NoError(s.manager.Update("explicit", "settings"))
	s.Equal(1, calls)
}

// TestClear_ResetsStatusButNotQueue verifies Clear removes the record without
// touching the queue in either direction.
func (s *ManagerSuite) TestClear_ResetsStatusButNotQueue() {
	fired := 0
	s.Require().NoError(s.manager.Update("explicit", "a"))
	s.Require().NoError(s.manager.Action(func() { fired++ }))
	s.Equal(1, fired)

	s.manager.Clear()
	s.Equal(models.Status{Allowed: false, Because: ""}, s.manager.Status())
	s.Equal(1, fired, "clear must not re-fire flushed callbacks")

	queued := 0
	s.Require().NoError(s.manager.Action(func() { queued++ }))
	s.Equal(0, queued, "clear must leave consent revoked, so new actions queue")

	s.Require().NoError(s.manager.Update("explicit", "b"))
	s.Equal(1, queued)
}

// TestFreshManagerHasEmptyQueue verifies queues are per-instance: a new
// manager over the same persisted record starts with nothing queued.
func (s *ManagerSuite) TestFreshManagerHasEmptyQueue() {
	calls := 0
	s.Require().NoError(s.manager.Action(func() { calls++ }))

	other := New(s.store, Config{}, WithLogger(silentLogger()))
	s.Require().NoError(other.Update("explicit", ""))
	s.Equal(0, calls, "another instance's update must not flush this instance's queue")

	// This instance flushes on its next own operation.
	s.Require().NoError(s.manager.Update("explicit", ""))
	s.Equal(1, calls)
}
