package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"consentgate/internal/consent/models"
	"consentgate/internal/consent/store"
	"consentgate/internal/consent/store/mocks"
)

type navFixture struct {
	store   *store.Store
	session *store.MemoryKV
}

func newNavFixture() *navFixture {
	return &navFixture{
		store:   store.New(store.NewMemoryKV(), store.WithLogger(silentLogger())),
		session: store.NewMemoryKV(),
	}
}

// pageview simulates one page load: managers run the heuristic at construction.
func (f *navFixture) pageview(url string, ignore ...string) *Manager {
	return New(f.store, Config{Navigation: true, IgnoreURLs: ignore},
		WithLogger(silentLogger()),
		WithSession(f.session),
		WithLocation(func() string { return url }),
	)
}

// TestNavigation_FirstVisitStoresMarker verifies the first page view records
// the URL and leaves status unchanged.
func TestNavigation_FirstVisitStoresMarker(t *testing.T) {
	f := newNavFixture()

	m := f.pageview("https://example.com/home")

	assert.Equal(t, models.Status{}, m.Status())
	marker, _ := f.session.Get(PrevPageKey)
	assert.Equal(t, "https://example.com/home", marker)
}

// TestNavigation_SecondDistinctPageImpliesConsent verifies a second distinct,
// non-ignored page view yields implicit/navigation and consumes the marker.
func TestNavigation_SecondDistinctPageImpliesConsent(t *testing.T) {
	f := newNavFixture()
	f.pageview("https://example.com/home")

	m := f.pageview("https://example.com/pricing")

	assert.Equal(t, models.Status{Allowed: true, Because: "implicit/navigation"}, m.Status())
	marker, _ := f.session.Get(PrevPageKey)
	assert.Equal(t, "", marker, "marker must be consumed")
}

// TestNavigation_SamePageReload verifies reloading the same page never counts
// as a second page view.
func TestNavigation_SamePageReload(t *testing.T) {
	f := newNavFixture()
	f.pageview("https://example.com/home")

	m := f.pageview("https://example.com/home")

	assert.Equal(t, models.Status{}, m.Status())
}

// TestNavigation_FragmentStripped verifies fragment-only navigation is a
// same-page reload, and fragments never leak into the marker.
func TestNavigation_FragmentStripped(t *testing.T) {
	f := newNavFixture()
	f.pageview("https://example.com/home#intro")

	marker, _ := f.session.Get(PrevPageKey)
	require.Equal(t, "https://example.com/home", marker)

	m := f.pageview("https://example.com/home#details")
	assert.Equal(t, models.Status{}, m.Status())
}

// TestNavigation_IgnoredURL verifies a second page view on an ignored URL
// leaves status unchanged but updates the marker.
func TestNavigation_IgnoredURL(t *testing.T) {
	f := newNavFixture()
	const about = "https://example.com/about-cookies"
	f.pageview("https://example.com/home", about)

	m := f.pageview(about, about)

	assert.Equal(t, models.Status{}, m.Status())
	marker, _ := f.session.Get(PrevPageKey)
	assert.Equal(t, about, marker, "ignored page still becomes the new marker")

	// Moving on from the ignored page is a real second view.
	m = f.pageview("https://example.com/pricing", about)
	assert.Equal(t, models.Status{Allowed: true, Because: "implicit/navigation"}, m.Status())
}

// TestNavigation_IgnoreListFragmentStripped verifies ignore entries are
// normalized the same way as page URLs.
func TestNavigation_IgnoreListFragmentStripped(t *testing.T) {
	f := newNavFixture()
	f.pageview("https://example.com/home", "https://example.com/about#policy")

	m := f.pageview("https://example.com/about", "https://example.com/about#policy")

	assert.Equal(t, models.Status{}, m.Status())
}

// TestNavigation_SkippedWhenRecordExists verifies the heuristic never runs
// once any decision is recorded.
func TestNavigation_SkippedWhenRecordExists(t *testing.T) {
	f := newNavFixture()
	first := f.pageview("https://example.com/home")
	require.NoError(t, first.Update("deny", "close-button"))

	m := f.pageview("https://example.com/pricing")

	assert.Equal(t, models.Status{Allowed: false, Because: "deny/close-button"}, m.Status())
}

// TestNavigation_DisabledByDefault verifies the heuristic is opt-in.
func TestNavigation_DisabledByDefault(t *testing.T) {
	f := newNavFixture()
	New(f.store, Config{},
		WithLogger(silentLogger()),
		WithSession(f.session),
		WithLocation(func() string { return "https://example.com/home" }),
	)

	marker, _ := f.session.Get(PrevPageKey)
	assert.Equal(t, "", marker)
}

// TestNavigation_NoSessionStore verifies a manager without session storage
// degrades to no detection instead of failing.
func TestNavigation_NoSessionStore(t *testing.T) {
	st := store.New(store.NewMemoryKV(), store.WithLogger(silentLogger()))
	m := New(st, Config{Navigation: true},
		WithLogger(silentLogger()),
		WithLocation(func() string { return "https://example.com/home" }),
	)

	assert.Equal(t, models.Status{}, m.Status())
}

// TestNavigation_SessionReadFailureDisablesHeuristic verifies a broken
// session store turns the heuristic off for this page load.
func TestNavigation_SessionReadFailureDisablesHeuristic(t *testing.T) {
	ctrl := gomock.NewController(t)
	broken := mocks.NewMockKV(ctrl)
	broken.EXPECT().Get(PrevPageKey).Return("", assert.AnError)

	st := store.New(store.NewMemoryKV(), store.WithLogger(silentLogger()))
	m := New(st, Config{Navigation: true},
		WithLogger(silentLogger()),
		WithSession(broken),
		WithLocation(func() string { return "https://example.com/home" }),
	)

	assert.Equal(t, models.Status{}, m.Status())
}

// TestNavigation_ExplicitUpdateConsumesMarker verifies an explicit or deny
// decision removes the pending pageview marker.
func TestNavigation_ExplicitUpdateConsumesMarker(t *testing.T) {
	f := newNavFixture()
	m := f.pageview("https://example.com/home")
	marker, _ := f.session.Get(PrevPageKey)
	require.NotEmpty(t, marker)

	require.NoError(t, m.Update("explicit", "accept-button"))

	marker, _ = f.session.Get(PrevPageKey)
	assert.Equal(t, "", marker)
}

// TestClear_RemovesMarker verifies Clear drops the session marker along with
// the stored record.
func TestClear_RemovesMarker(t *testing.T) {
	f := newNavFixture()
	m := f.pageview("https://example.com/home")

	m.Clear()

	marker, _ := f.session.Get(PrevPageKey)
	assert.Equal(t, "", marker)
}
