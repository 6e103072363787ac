package zosmf

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// QueryParam is one query pair. Order is preserved on the wire.
type QueryParam struct {
	Key   string
	Value string
}

// Request describes one logical call against the z/OSMF REST API.
//
// Path may contain {name} placeholders filled from PathParams. Each value is
// escaped per path segment, so a USS path like "/u/ibmuser/a b" keeps its
// slashes. Requests are values; the With helpers return modified copies and
// never touch the receiver.
type Request struct {
	Method     string
	Path       string
	PathParams map[string]string
	Query      []QueryParam
	Header     http.Header

	// At most one of JSON and Raw is set.
	JSON        any
	Raw         []byte
	ContentType string
}

// NewRequest returns a request for method and path.
func NewRequest(method, path string) Request {
	return Request{Method: method, Path: path}
}

func (r Request) clone() Request {
	c := r
	c.PathParams = maps.Clone(r.PathParams)
	c.Query = slices.Clone(r.Query)
	c.Header = r.Header.Clone()
	c.Raw = slices.Clone(r.Raw)
	return c
}

func (r Request) WithParam(name, value string) Request {
	c := r.clone()
	if c.PathParams == nil {
		c.PathParams = make(map[string]string)
	}
	c.PathParams[name] = value
	return c
}

// WithQuery appends a query pair.
func (r Request) WithQuery(key, value string) Request {
	c := r.clone()
	c.Query = append(c.Query, QueryParam{Key: key, Value: value})
	return c
}

// SetQuery replaces every pair named key with a single pair.
func (r Request) SetQuery(key, value string) Request {
	c := r.clone()
	c.Query = slices.DeleteFunc(c.Query, func(q QueryParam) bool { return q.Key == key })
	c.Query = append(c.Query, QueryParam{Key: key, Value: value})
	return c
}

func (r Request) WithHeader(key, value string) Request {
	c := r.clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Header.Set(key, value)
	return c
}

// WithJSON sets a body that is marshalled as application/json.
func (r Request) WithJSON(v any) Request {
	c := r.clone()
	c.JSON = v
	c.Raw = nil
	c.ContentType = "application/json"
	return c
}

// WithBody sets a raw body with the given content type.
func (r Request) WithBody(body []byte, contentType string) Request {
	c := r.clone()
	c.JSON = nil
	c.Raw = slices.Clone(body)
	c.ContentType = contentType
	return c
}

// Op is the short name used in errors and logs.
func (r Request) Op() string {
	return r.Method + " " + r.Path
}

// URL resolves the request against base.
func (r Request) URL(base string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(base, "/"))
	sb.WriteString(r.expandPath())
	if len(r.Query) > 0 {
		sb.WriteByte('?')
		for i, q := range r.Query {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(q.Key))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(q.Value))
		}
	}
	return sb.String()
}

func (r Request) expandPath() string {
	if len(r.PathParams) == 0 {
		return r.Path
	}
	path := r.Path
	for name, value := range r.PathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", escapeSegments(value))
	}
	return path
}

func escapeSegments(v string) string {
	parts := strings.Split(v, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
