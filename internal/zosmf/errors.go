package zosmf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of failure classes a call can end in.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimited    Kind = "rate_limited"
	KindServerFault    Kind = "server_fault"
	KindMalformed      Kind = "malformed"
	KindUnclassified   Kind = "unclassified"

	// Local kinds, never produced from an HTTP status.
	KindTimeout      Kind = "timeout"
	KindCancelled    Kind = "cancelled"
	KindInvalidState Kind = "invalid_state"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
	ErrServerFault    = &Error{Kind: KindServerFault}
	ErrMalformed      = &Error{Kind: KindMalformed}
	ErrUnclassified   = &Error{Kind: KindUnclassified}
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrCancelled      = &Error{Kind: KindCancelled}
	ErrInvalidState   = &Error{Kind: KindInvalidState}
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4096

// ErrorBody is the JSON error document returned by the z/OSMF REST services.
type ErrorBody struct {
	RC       int    `json:"rc"`
	Reason   int    `json:"reason"`
	Category int    `json:"category"`
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	Details  []struct {
		Message string `json:"messageText"`
	} `json:"details,omitempty"`
}

func (b *ErrorBody) text() string {
	msg := b.Message
	if len(b.Details) > 0 && b.Details[0].Message != "" {
		if msg == "" {
			return b.Details[0].Message
		}
		msg += ": " + b.Details[0].Message
	}
	return msg
}

// Error is the single error type returned by every call in this package.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Body    []byte
	Detail  *ErrorBody
	// RetryAfter is the server's wait hint for KindRateLimited, zero if absent.
	RetryAfter time.Duration
	// Op names the request, e.g. "GET /zosmf/restjobs/jobs".
	Op  string
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind so errors.Is(err, ErrNotFound) works for any
// not-found response.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == 0 && t.Op == "" && t.Message == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Kind
	}
	return ""
}

// Classify maps a response to its failure class. It returns nil for 2xx.
func Classify(status int, header http.Header, body []byte) *Error {
	if status >= 200 && status < 300 {
		return nil
	}

	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e := &Error{Status: status, Body: body}

	var eb ErrorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil && (eb.Message != "" || len(eb.Details) > 0) {
		e.Detail = &eb
		e.Message = eb.text()
	} else if len(body) > 0 {
		e.Message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuthentication
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		e.Kind = KindConflict
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter, _ = parseRetryAfter(header)
	case status == http.StatusServiceUnavailable && header.Get("Retry-After") != "":
		e.Kind = KindRateLimited
		e.RetryAfter, _ = parseRetryAfter(header)
	case status >= 500:
		e.Kind = KindServerFault
	default:
		e.Kind = KindUnclassified
	}
	return e
}

// parseRetryAfter reads Retry-After as delta-seconds or an HTTP date.
func parseRetryAfter(header http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// malformed reports a 2xx response whose body did not have the expected shape.
func malformed(op string, resp *Response, err error) *Error {
	e := &Error{Kind: KindMalformed, Op: op, Err: err}
	if resp != nil {
		e.Status = resp.Status
		body := resp.Body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		e.Body = body
	}
	return e
}

// fromContext converts a context error into Timeout or Cancelled.
func fromContext(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindCancelled, Op: op, Err: err}
}

// transportError classifies a failure to obtain any response at all.
func transportError(ctx context.Context, op string, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fromContext(op, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindServerFault, Op: op, Err: err}
}

// WaitError wraps a context error from a local wait (poll sleep, limiter) as
// Timeout or Cancelled.
func WaitError(op string, err error) error {
	return fromContext(op, err)
}
