package zosmf

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ztest "zm/internal/testutil"
)

const infoPath = "/zosmf/info"

func newTestSession(t *testing.T, m *ztest.MockZOSMF, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(m.URL(), Credentials{User: ztest.DefaultUser, Password: ztest.DefaultPassword}, opts...)
	require.NoError(t, err)
	return s
}

func okInfo(w http.ResponseWriter, r *http.Request) {
	ztest.WriteJSON(w, http.StatusOK, map[string]string{"zosmf_hostname": "SYS1"})
}

func TestNewSession_InvalidURL(t *testing.T) {
	_, err := NewSession("mainframe:443", Credentials{})
	assert.Error(t, err)
	_, err = NewSession("ftp://mainframe", Credentials{})
	assert.Error(t, err)
}

func TestSession_LazyAuthentication(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	assert.Empty(t, s.Token())

	resp, err := s.Do(context.Background(), NewRequest(http.MethodGet, infoPath))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, m.AuthCount())
	assert.Equal(t, "true", s.Token())
}

func TestSession_TokenAttachedToEveryRequest(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.CSRFToken = "csrf-123"
	m.Handle(http.MethodGet, infoPath, okInfo)
	m.Handle(http.MethodPut, "/zosmf/restjobs/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	s := newTestSession(t, m, WithUserAgent("zm-test"))
	require.NoError(t, s.Authenticate(context.Background()))

	_, err := s.Do(context.Background(), NewRequest(http.MethodGet, infoPath))
	require.NoError(t, err)
	assert.Equal(t, "csrf-123", m.LastHeader().Get(CSRFHeader))
	assert.Equal(t, "zm-test", m.LastHeader().Get("User-Agent"))

	_, err = s.Do(context.Background(), NewRequest(http.MethodPut, "/zosmf/restjobs/jobs").WithBody([]byte("//JOB"), "text/plain"))
	require.NoError(t, err)
	assert.Equal(t, "csrf-123", m.LastHeader().Get(CSRFHeader))
	assert.Equal(t, "text/plain", m.LastHeader().Get("Content-Type"))
}

func TestSession_ReauthenticatesOnceOnExpiry(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))
	before := testutil.ToFloat64(ReauthTotal)

	m.ExpireSession()
	resp, err := s.Do(ctx, NewRequest(http.MethodGet, infoPath))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	assert.Equal(t, 2, m.AuthCount(), "initial login plus exactly one re-authentication")
	assert.Equal(t, 2, m.Requests(http.MethodGet, infoPath), "rejected attempt plus one retry")
	assert.Equal(t, before+1, testutil.ToFloat64(ReauthTotal))
}

func TestSession_SecondAuthFailureSurfaces(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	m.ExpireSession()
	m.RejectLogins(true)
	_, err := ExecuteRaw(ctx, s, NewRequest(http.MethodGet, infoPath))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthentication))
	assert.Equal(t, 2, m.AuthCount())
	assert.Equal(t, 1, m.Requests(http.MethodGet, infoPath))
}

func TestSession_PersistentRejectionIsNotRetriedForever(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	// Logins succeed but the resource always answers 401.
	m.Handle(http.MethodGet, infoPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteError(w, http.StatusUnauthorized, "IZUG800W", "not authorized")
	})

	s := newTestSession(t, m)
	_, err := ExecuteRaw(context.Background(), s, NewRequest(http.MethodGet, infoPath))
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Equal(t, 2, m.Requests(http.MethodGet, infoPath))
	assert.Equal(t, 2, m.AuthCount())
}

func TestSession_BadCredentials(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()

	s, err := NewSession(m.URL(), Credentials{User: "IBMUSER", Password: "wrong"})
	require.NoError(t, err)

	err = s.Authenticate(context.Background())
	require.Error(t, err)
	var ze *Error
	require.True(t, errors.As(err, &ze))
	assert.Equal(t, KindAuthentication, ze.Kind)
	assert.Equal(t, http.StatusUnauthorized, ze.Status)
}

func TestSession_NetworkFaultDuringLoginIsAuthentication(t *testing.T) {
	m := ztest.NewMockZOSMF()
	url := m.URL()
	m.Close()

	s, err := NewSession(url, Credentials{User: "u", Password: "p"}, WithTimeout(2*time.Second))
	require.NoError(t, err)
	err = s.Authenticate(context.Background())
	assert.Equal(t, KindAuthentication, KindOf(err))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestSession_LoginBodyReadFailure(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{CSRFHeader: {"tok"}},
			Body:       failingBody{},
			Request:    r,
		}, nil
	})}

	s, err := NewSession("https://mainframe.example.com", Credentials{User: "u", Password: "p"}, WithHTTPClient(client))
	require.NoError(t, err)

	err = s.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindAuthentication, KindOf(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, s.Token(), "a half-read login must not install a token")
}

func TestSession_ConcurrentExpiryTriggersSingleLogin(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))
	m.ExpireSession()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ExecuteRaw(ctx, s, NewRequest(http.MethodGet, infoPath))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	// Every caller observed the same expired generation, so they share
	// one login; late callers see the replaced token and skip it.
	assert.Equal(t, 2, m.AuthCount())
}

func TestSession_CancelledContext(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	require.NoError(t, s.Authenticate(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Do(ctx, NewRequest(http.MethodGet, infoPath))
	assert.Equal(t, KindCancelled, KindOf(err))
}

func TestSession_Logout(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))
	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, 1, m.LogoutCount())
	assert.Empty(t, s.Token())

	// Logged out sessions log in again on demand.
	_, err := ExecuteRaw(ctx, s, NewRequest(http.MethodGet, infoPath))
	require.NoError(t, err)
	assert.Equal(t, 2, m.AuthCount())

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, 2, m.LogoutCount())
}

func TestSession_RateLimit(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, infoPath, okInfo)

	s := newTestSession(t, m, WithRateLimit(1, 1))
	ctx := context.Background()
	_, err := s.Do(ctx, NewRequest(http.MethodGet, infoPath))
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = s.Do(short, NewRequest(http.MethodGet, infoPath))
	assert.Equal(t, KindTimeout, KindOf(err))
}
