// Package zosmf is the z/OSMF REST core: an authenticated Session, error
// classification, typed execution, paged listing and windowed transfer.
// Its Prometheus collectors register with the default registry; host
// applications expose them, zm itself does not.
package zosmf

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// CSRFHeader carries the anti-forgery token on every request.
	CSRFHeader = "X-CSRF-ZOSMF-HEADER"

	authPath         = "/zosmf/services/authenticate"
	defaultToken     = "true"
	defaultUserAgent = "zm"
	defaultTimeout   = 30 * time.Second
)

type Credentials struct {
	User     string
	Password string
}

// Response is a raw exchange result. Body is fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Doer sends one request and returns the unclassified response. A non-nil
// error means no usable response was obtained.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Session owns the authenticated transport to one z/OSMF instance. It is safe
// for concurrent use.
type Session struct {
	baseURL   string
	creds     Credentials
	client    *http.Client
	limiter   *rate.Limiter
	logger    zerolog.Logger
	userAgent string

	mu         sync.RWMutex
	token      string
	generation uint64
	authed     bool
	refresh    singleflight.Group
}

type sessionOptions struct {
	client    *http.Client
	insecure  bool
	timeout   time.Duration
	logger    zerolog.Logger
	limiter   *rate.Limiter
	userAgent string
}

type Option func(*sessionOptions)

// WithHTTPClient uses a copy of c for all requests. A cookie jar is added if
// c has none.
func WithHTTPClient(c *http.Client) Option {
	return func(o *sessionOptions) { o.client = c }
}

// WithInsecureTLS disables server certificate verification.
func WithInsecureTLS(insecure bool) Option {
	return func(o *sessionOptions) { o.insecure = insecure }
}

func WithTimeout(d time.Duration) Option {
	return func(o *sessionOptions) { o.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *sessionOptions) { o.logger = l }
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *sessionOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(o *sessionOptions) { o.userAgent = ua }
}

// NewSession creates an unauthenticated session. The first request logs in
// if Authenticate was not called.
func NewSession(baseURL string, creds Credentials, opts ...Option) (*Session, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	o := sessionOptions{
		timeout:   defaultTimeout,
		logger:    zerolog.Nop(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var client *http.Client
	if o.client != nil {
		c := *o.client
		if c.Jar == nil {
			c.Jar = jar
		}
		client = &c
	} else {
		client = &http.Client{
			Timeout:   o.timeout,
			Transport: newTransport(o.insecure),
			Jar:       jar,
		}
	}

	return &Session{
		baseURL:   u.Scheme + "://" + u.Host + trimSlash(u.Path),
		creds:     creds,
		client:    client,
		limiter:   o.limiter,
		logger:    o.logger.With().Str("component", "zosmf").Logger(),
		userAgent: o.userAgent,
	}, nil
}

func newTransport(insecure bool) *http.Transport {
	return &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: insecure,
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
}

func trimSlash(p string) string {
	for len(p) > 0 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func (s *Session) BaseURL() string {
	return s.baseURL
}

// Token returns the current anti-forgery token, empty before login.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticate logs in and replaces the session token. Concurrent calls share
// one login.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	return s.reauth(ctx, gen)
}

// Logout ends the server-side session. The next request logs in again.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	authed, token := s.authed, s.token
	s.mu.RUnlock()
	if !authed {
		return nil
	}

	resp, err := s.send(ctx, NewRequest(http.MethodDelete, authPath), token)

	s.mu.Lock()
	s.token = ""
	s.authed = false
	s.generation++
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if e := Classify(resp.Status, resp.Header, resp.Body); e != nil {
		e.Op = "logout"
		recordError(e)
		return e
	}
	return nil
}

// Do attaches the session token and sends req. A 401 triggers exactly one
// re-authentication and one retry of the same request; the second response is
// returned whatever its status.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	token, gen, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.send(ctx, req, token)
	if err != nil || resp.Status != http.StatusUnauthorized {
		return resp, err
	}

	s.logger.Debug().Str("op", req.Op()).Msg("session rejected, re-authenticating")
	ReauthTotal.Inc()
	if err := s.reauth(ctx, gen); err != nil {
		return nil, err
	}

	s.mu.RLock()
	token = s.token
	s.mu.RUnlock()
	return s.send(ctx, req, token)
}

// current returns the token to use, logging in first if needed.
func (s *Session) current(ctx context.Context) (string, uint64, error) {
	s.mu.RLock()
	token, gen, authed := s.token, s.generation, s.authed
	s.mu.RUnlock()
	if authed {
		return token, gen, nil
	}

	if err := s.reauth(ctx, gen); err != nil {
		return "", 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.generation, nil
}

// reauth logs in unless the token the caller saw (observed) was already
// replaced. Callers that observed the same generation share one login.
func (s *Session) reauth(ctx context.Context, observed uint64) error {
	s.mu.RLock()
	replaced := s.authed && s.generation != observed
	s.mu.RUnlock()
	if replaced {
		return nil
	}

	ch := s.refresh.DoChan(strconv.FormatUint(observed, 10), func() (any, error) {
		return nil, s.login(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return fromContext("authenticate", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

func (s *Session) login(ctx context.Context) error {
	start := time.Now()
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+authPath, nil)
	if err != nil {
		return &Error{Kind: KindAuthentication, Op: "authenticate", Err: err}
	}
	hreq.SetBasicAuth(s.creds.User, s.creds.Password)
	hreq.Header.Set(CSRFHeader, defaultToken)
	hreq.Header.Set("User-Agent", s.userAgent)

	hresp, err := s.client.Do(hreq)
	if err != nil {
		RequestsTotal.WithLabelValues(http.MethodPost, "0").Inc()
		e := &Error{Kind: KindAuthentication, Op: "authenticate", Err: err}
		recordError(e)
		s.logger.Warn().Err(err).Msg("authentication failed")
		return e
	}
	defer hresp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(hresp.Body, maxErrorBody))
	if err != nil {
		e := &Error{Kind: KindAuthentication, Op: "authenticate", Err: fmt.Errorf("reading response body: %w", err)}
		recordError(e)
		s.logger.Warn().Err(err).Msg("authentication failed")
		return e
	}

	RequestsTotal.WithLabelValues(http.MethodPost, strconv.Itoa(hresp.StatusCode)).Inc()
	RequestDuration.WithLabelValues(http.MethodPost).Observe(time.Since(start).Seconds())

	if e := Classify(hresp.StatusCode, hresp.Header, body); e != nil {
		e.Kind = KindAuthentication
		e.Op = "authenticate"
		recordError(e)
		s.logger.Warn().Int("status", hresp.StatusCode).Str("user", s.creds.User).Msg("authentication rejected")
		return e
	}

	token := hresp.Header.Get(CSRFHeader)
	if token == "" {
		token = defaultToken
	}

	s.mu.Lock()
	s.token = token
	s.generation++
	s.authed = true
	gen := s.generation
	s.mu.Unlock()

	s.logger.Debug().
		Str("user", s.creds.User).
		Uint64("generation", gen).
		Dur("duration", time.Since(start)).
		Msg("authenticated")
	return nil
}

// send performs one HTTP exchange without any retry.
func (s *Session) send(ctx context.Context, req Request, token string) (*Response, error) {
	op := req.Op()
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fromContext(op, contextErr(ctx, err))
		}
	}

	var body io.Reader
	switch {
	case req.JSON != nil:
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, &Error{Kind: KindMalformed, Op: op, Message: "cannot encode request body", Err: err}
		}
		body = bytes.NewReader(data)
	case req.Raw != nil:
		body = bytes.NewReader(req.Raw)
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(s.baseURL), body)
	if err != nil {
		return nil, &Error{Kind: KindUnclassified, Op: op, Err: err}
	}
	for k, vs := range req.Header {
		hreq.Header[k] = append([]string(nil), vs...)
	}
	hreq.Header.Set(CSRFHeader, token)
	hreq.Header.Set("User-Agent", s.userAgent)
	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", "application/json")
	}
	if body != nil && req.ContentType != "" {
		hreq.Header.Set("Content-Type", req.ContentType)
	}

	requestID := uuid.NewString()
	start := time.Now()
	hresp, err := s.client.Do(hreq)
	if err != nil {
		RequestsTotal.WithLabelValues(req.Method, "0").Inc()
		e := transportError(ctx, op, err)
		recordError(e)
		s.logger.Debug().Str("request_id", requestID).Str("op", op).Err(err).Msg("request failed")
		return nil, e
	}
	defer hresp.Body.Close()

	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		e := transportError(ctx, op, fmt.Errorf("reading response body: %w", err))
		recordError(e)
		return nil, e
	}

	elapsed := time.Since(start)
	RequestsTotal.WithLabelValues(req.Method, strconv.Itoa(hresp.StatusCode)).Inc()
	RequestDuration.WithLabelValues(req.Method).Observe(elapsed.Seconds())

	s.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", hreq.URL.Path).
		Int("status", hresp.StatusCode).
		Int("bytes", len(data)).
		Dur("duration", elapsed).
		Msg("request")

	return &Response{Status: hresp.StatusCode, Header: hresp.Header, Body: data}, nil
}

// contextErr prefers the context's own error so a limiter that gives up early
// on an unreachable deadline still reports a timeout.
func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
