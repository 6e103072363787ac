package zosmf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// ExecuteRaw sends req and classifies the response. Every other executor in
// this package goes through it. On a classified failure the response is
// returned alongside the *Error.
func ExecuteRaw(ctx context.Context, d Doer, req Request) (*Response, error) {
	resp, err := d.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if e := Classify(resp.Status, resp.Header, resp.Body); e != nil {
		e.Op = req.Op()
		recordError(e)
		return resp, e
	}
	return resp, nil
}

// Execute sends req and decodes the JSON body into T. An empty or
// undecodable 2xx body is Malformed.
func Execute[T any](ctx context.Context, d Doer, req Request) (T, error) {
	var out T
	resp, err := ExecuteRaw(ctx, d, req)
	if err != nil {
		return out, err
	}
	if err := decodeJSON(resp.Body, &out); err != nil {
		e := malformed(req.Op(), resp, err)
		recordError(e)
		return out, e
	}
	return out, nil
}

// ExecuteNoContent sends req and discards any success body.
func ExecuteNoContent(ctx context.Context, d Doer, req Request) error {
	_, err := ExecuteRaw(ctx, d, req)
	return err
}

// ExecuteText sends req and returns the success body as-is.
func ExecuteText(ctx context.Context, d Doer, req Request) ([]byte, error) {
	resp, err := ExecuteRaw(ctx, d, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var errEmptyBody = errors.New("empty response body")

func decodeJSON(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, v)
}
