// Package testutil provides a mock z/OSMF server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

const (
	DefaultUser     = "IBMUSER"
	DefaultPassword = "SECRET"

	// SessionCookie is the cookie the mock issues on login.
	SessionCookie = "LtpaToken2"

	authPath = "/zosmf/services/authenticate"
)

// MockZOSMF is an httptest server that implements the z/OSMF login exchange
// and routes everything else to registered handlers. Requests without a
// valid session cookie get 401.
type MockZOSMF struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc

	User     string
	Password string
	// CSRFToken is echoed in the X-CSRF-ZOSMF-HEADER login response when set.
	CSRFToken string

	session      string
	sessions     int
	authCount    int
	logoutCount  int
	rejectLogins bool
	requests     map[string]int
	lastHeader   http.Header
}

// NewMockZOSMF starts a mock server.
func NewMockZOSMF() *MockZOSMF {
	m := &MockZOSMF{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
		User:     DefaultUser,
		Password: DefaultPassword,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockZOSMF) URL() string {
	return m.server.URL
}

func (m *MockZOSMF) Close() {
	m.server.Close()
}

// Handle registers h for method and exact path.
func (m *MockZOSMF) Handle(method, path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+" "+path] = h
}

// ExpireSession invalidates the current session cookie.
func (m *MockZOSMF) ExpireSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = ""
}

// RejectLogins makes every later login fail with 401.
func (m *MockZOSMF) RejectLogins(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectLogins = reject
}

func (m *MockZOSMF) AuthCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCount
}

func (m *MockZOSMF) LogoutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutCount
}

// Requests returns how many authenticated requests reached method and path,
// including ones answered with 401.
func (m *MockZOSMF) Requests(method, path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[method+" "+path]
}

// LastHeader returns the headers of the most recent non-login request.
func (m *MockZOSMF) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader.Clone()
}

func (m *MockZOSMF) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == authPath {
		m.serveAuth(w, r)
		return
	}

	m.mu.Lock()
	key := r.Method + " " + r.URL.Path
	m.requests[key]++
	m.lastHeader = r.Header.Clone()
	valid := m.session != ""
	if c, err := r.Cookie(SessionCookie); err != nil || c.Value != m.session {
		valid = false
	}
	h, ok := m.handlers[key]
	m.mu.Unlock()

	if r.Header.Get("X-CSRF-ZOSMF-HEADER") == "" {
		WriteError(w, http.StatusForbidden, "IZUG846W", "missing X-CSRF-ZOSMF-HEADER")
		return
	}
	if !valid {
		WriteError(w, http.StatusUnauthorized, "IZUG800W", "session expired")
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, "IZUG1104E", fmt.Sprintf("no handler for %s", key))
		return
	}
	h(w, r)
}

func (m *MockZOSMF) serveAuth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.Method {
	case http.MethodPost:
		m.authCount++
		user, pass, ok := r.BasicAuth()
		if !ok || m.rejectLogins || user != m.User || pass != m.Password {
			WriteError(w, http.StatusUnauthorized, "IZUG800W", "authentication failed")
			return
		}
		m.sessions++
		m.session = fmt.Sprintf("ltpa-%d", m.sessions)
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: m.session, Path: "/"})
		if m.CSRFToken != "" {
			w.Header().Set("X-CSRF-ZOSMF-HEADER", m.CSRFToken)
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		m.logoutCount++
		m.session = ""
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a z/OSMF style error document.
func WriteError(w http.ResponseWriter, status int, id, msg string) {
	WriteJSON(w, status, map[string]any{
		"rc":       4,
		"reason":   0,
		"category": 1,
		"message":  id + " " + msg,
	})
}
