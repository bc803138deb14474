package auth_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/habedi/gotok/auth"
	"github.com/habedi/gotok/client"
	"github.com/habedi/gotok/db"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testAudience = "api.example.com"

var testEpoch = time.UnixMilli(1_700_000_000_000)

// fakeClock is a settable clock for WithNowFunc.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type reply struct {
	status int
	body   string
}

type recordedRequest struct {
	form   url.Values
	query  url.Values
	header http.Header
}

// fakeIDP is an httptest identity provider with scripted replies per path.
type fakeIDP struct {
	server   *httptest.Server
	provider *client.HTTPProvider

	mu       sync.Mutex
	replies  map[string]reply
	requests map[string][]recordedRequest
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	idp := &fakeIDP{
		replies:  make(map[string]reply),
		requests: make(map[string][]recordedRequest),
	}
	idp.server = httptest.NewServer(http.HandlerFunc(idp.serve))
	t.Cleanup(idp.server.Close)

	idp.provider = &client.HTTPProvider{
		TokenURL:   idp.server.URL + "/token",
		AccountURL: idp.server.URL + "/account",
		RevokeURL:  idp.server.URL + "/revoke",
		ClientID:   "gotok-test",
		Audience:   testAudience,
	}
	require.NoError(t, idp.provider.Validate())
	return idp
}

func (f *fakeIDP) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests[r.URL.Path] = append(f.requests[r.URL.Path], recordedRequest{
		form:   r.PostForm,
		query:  r.URL.Query(),
		header: r.Header.Clone(),
	})
	rep, ok := f.replies[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = w.Write([]byte(rep.body))
}

func (f *fakeIDP) reply(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = reply{status: status, body: body}
}

func (f *fakeIDP) hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests[path])
}

func (f *fakeIDP) lastRequest(path string) recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	reqs := f.requests[path]
	if len(reqs) == 0 {
		return recordedRequest{}
	}
	return reqs[len(reqs)-1]
}

func (f *fakeIDP) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, reqs := range f.requests {
		n += len(reqs)
	}
	return n
}

// newTestAccount builds an account with a silent logger, no retry delay and
// the given clock, followed by any extra options.
func newTestAccount(t *testing.T, p auth.Provider, store auth.Storage, clock *fakeClock, opts ...auth.Option) *auth.Account {
	t.Helper()
	base := []auth.Option{
		auth.WithLogger(zerolog.Nop()),
		auth.WithRetryDelay(0),
		auth.WithNowFunc(clock.Now),
	}
	a, err := auth.New(auth.Config{Provider: p, Audience: testAudience}, store, append(base, opts...)...)
	require.NoError(t, err)
	return a
}

// failingStore fails every operation with err.
type failingStore struct{ err error }

func (s failingStore) GetItem(string) (string, bool, error) { return "", false, s.err }
func (s failingStore) SetItem(string, string) error         { return s.err }
func (s failingStore) RemoveItem(string) error              { return s.err }

var errDisk = errors.New("disk unavailable")

// transportDown fails every request at the transport layer.
type transportDown struct {
	mu    sync.Mutex
	calls int
}

func (d *transportDown) Do(*http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil, errors.New("connection refused")
}

var _ auth.Storage = db.NewMemoryStore()
