package zosmf

import (
	"context"
	"fmt"
	"iter"
	"strconv"
)

// DefaultPageSize is used when a listing is started with a non-positive size.
const DefaultPageSize = 1000

// Page is one decoded listing response.
type Page[T any] struct {
	Items       []T
	More        bool
	ResumeToken string
}

// Paging adapts ListAll to one listing convention. Resume tokens are opaque:
// ListAll only compares them for equality.
type Paging[T any] interface {
	// First shapes the initial request.
	First(base Request, pageSize int) Request
	// Next shapes a continuation request from the previous page's token.
	Next(base Request, pageSize int, token string) Request
	// Decode parses a page. sent is the token that produced resp, empty for
	// the first page.
	Decode(resp *Response, sent string) (Page[T], error)
}

// ListAll returns a lazy sequence over every item of a paged listing. Each
// range over the result starts again from the first page. A failure is
// yielded once, after which the sequence ends; items already yielded stay
// valid.
func ListAll[T any](ctx context.Context, d Doer, base Request, pageSize int, p Paging[T]) iter.Seq2[T, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func(T, error) bool) {
		var zero T
		var token string
		seen := make(map[string]struct{})

		for {
			req := p.First(base, pageSize)
			if token != "" {
				req = p.Next(base, pageSize, token)
			}

			resp, err := ExecuteRaw(ctx, d, req)
			if err != nil {
				yield(zero, err)
				return
			}
			page, err := p.Decode(resp, token)
			if err != nil {
				e := malformed(req.Op(), resp, err)
				recordError(e)
				yield(zero, e)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if !page.More {
				return
			}

			if page.ResumeToken == "" {
				yield(zero, &Error{Kind: KindMalformed, Op: req.Op(), Status: resp.Status,
					Message: "listing reports more data without a resume token"})
				return
			}
			if _, dup := seen[page.ResumeToken]; dup || page.ResumeToken == token {
				yield(zero, &Error{Kind: KindMalformed, Op: req.Op(), Status: resp.Status,
					Message: fmt.Sprintf("listing repeated resume token %q", page.ResumeToken)})
				return
			}
			seen[page.ResumeToken] = struct{}{}
			token = page.ResumeToken
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

// MaxItemsHeader limits the number of rows in a restfiles listing.
const MaxItemsHeader = "X-IBM-Max-Items"

// ListResponse is the restfiles listing envelope.
type ListResponse[T any] struct {
	Items        []T  `json:"items"`
	ReturnedRows int  `json:"returnedRows"`
	MoreRows     bool `json:"moreRows"`
	TotalRows    int  `json:"totalRows"`
	JSONVersion  int  `json:"JSONversion"`
}

type itemsPaging[T any] struct {
	key func(T) string
}

// ItemsPaging pages restfiles listings. The page size goes in X-IBM-Max-Items
// and continuation in the "start" query parameter, which the server treats
// as inclusive; key names an item the way "start" expects. The echoed first
// item of every continuation page is dropped, so continuation requests ask
// for one extra row.
func ItemsPaging[T any](key func(T) string) Paging[T] {
	return itemsPaging[T]{key: key}
}

func (p itemsPaging[T]) First(base Request, pageSize int) Request {
	return base.WithHeader(MaxItemsHeader, strconv.Itoa(pageSize))
}

func (p itemsPaging[T]) Next(base Request, pageSize int, token string) Request {
	return base.
		WithHeader(MaxItemsHeader, strconv.Itoa(pageSize+1)).
		SetQuery("start", token)
}

func (p itemsPaging[T]) Decode(resp *Response, sent string) (Page[T], error) {
	var lr ListResponse[T]
	if err := decodeJSON(resp.Body, &lr); err != nil {
		return Page[T]{}, err
	}

	items := lr.Items
	var last string
	if len(items) > 0 {
		last = p.key(items[len(items)-1])
	}
	if sent != "" && len(items) > 0 && p.key(items[0]) == sent {
		items = items[1:]
	}

	page := Page[T]{Items: items, More: lr.MoreRows}
	if lr.MoreRows {
		page.ResumeToken = last
	}
	return page, nil
}
