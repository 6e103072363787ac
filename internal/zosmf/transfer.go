package zosmf

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const (
	RecordRangeHeader = "X-IBM-Record-Range"
	DataTypeHeader    = "X-IBM-Data-Type"

	// MaxChunkHeader is read from write responses; a positive value caps the
	// size of every later chunk.
	MaxChunkHeader = "X-Max-Chunk-Size"
)

// TransferWindow describes one range request and what came back. Offset and
// lengths are in records.
type TransferWindow struct {
	Offset    int64
	Requested int64
	Returned  int64
	EOF       bool
	// Unterminated is set when the last record of the window had no
	// terminator. One is inserted only if a later window carries data.
	Unterminated bool
}

// RangeProtocol maps windows onto requests and responses.
type RangeProtocol interface {
	Apply(base Request, offset, length int64) Request
	Window(resp *Response, offset, length int64) (TransferWindow, []byte, error)
}

// RecordRange reads z/OSMF text records via X-IBM-Record-Range. Each line is
// one record; an empty window marks the end.
type RecordRange struct{}

func (RecordRange) Apply(base Request, offset, length int64) Request {
	return applyRecordRange(base, offset, length)
}

func (RecordRange) Window(resp *Response, offset, length int64) (TransferWindow, []byte, error) {
	data := resp.Body
	w := TransferWindow{Offset: offset, Requested: length}
	if len(data) == 0 {
		w.EOF = true
		return w, nil, nil
	}
	w.Returned = int64(bytes.Count(data, []byte{'\n'}))
	if data[len(data)-1] != '\n' {
		w.Returned++
		w.Unterminated = true
	}
	if w.Returned > length {
		return w, nil, fmt.Errorf("window at %d returned %d records, requested %d", offset, w.Returned, length)
	}
	return w, data, nil
}

// PrefixedRecordRange reads data type "record" content: every record is
// preceded by a 4-byte big-endian length. Records are passed through with
// their prefixes; an empty window marks the end.
type PrefixedRecordRange struct{}

func (PrefixedRecordRange) Apply(base Request, offset, length int64) Request {
	return applyRecordRange(base, offset, length)
}

func (PrefixedRecordRange) Window(resp *Response, offset, length int64) (TransferWindow, []byte, error) {
	data := resp.Body
	w := TransferWindow{Offset: offset, Requested: length}
	if len(data) == 0 {
		w.EOF = true
		return w, nil, nil
	}
	for rest := data; len(rest) > 0; w.Returned++ {
		if len(rest) < 4 {
			return w, nil, fmt.Errorf("record %d at %d: truncated length prefix", w.Returned, offset)
		}
		n := binary.BigEndian.Uint32(rest)
		if uint64(len(rest)-4) < uint64(n) {
			return w, nil, fmt.Errorf("record %d at %d: length %d exceeds remaining %d bytes", w.Returned, offset, n, len(rest)-4)
		}
		rest = rest[4+n:]
	}
	if w.Returned > length {
		return w, nil, fmt.Errorf("window at %d returned %d records, requested %d", offset, w.Returned, length)
	}
	return w, data, nil
}

func applyRecordRange(base Request, offset, length int64) Request {
	return base.WithHeader(RecordRangeHeader, fmt.Sprintf("%d-%d", offset, offset+length-1))
}

// RangeReader streams a resource window by window. It is not safe for
// concurrent use.
type RangeReader struct {
	ctx    context.Context
	d      Doer
	base   Request
	proto  RangeProtocol
	window int64

	offset  int64
	buf     []byte
	eof     bool
	err     error
	windows []TransferWindow
	etag    string
	open    bool
}

// NewRangeReader returns a reader over base using windows of the given size.
// Nothing is requested until the first Read.
func NewRangeReader(ctx context.Context, d Doer, base Request, proto RangeProtocol, window int64) *RangeReader {
	if window <= 0 {
		window = 1
	}
	return &RangeReader{ctx: ctx, d: d, base: base, proto: proto, window: window}
}

func (r *RangeReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.eof {
			return 0, io.EOF
		}
		r.fetch()
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Windows returns the windows fetched so far.
func (r *RangeReader) Windows() []TransferWindow {
	return append([]TransferWindow(nil), r.windows...)
}

// ETag returns the entity tag of the resource as first seen, empty if the
// server sent none or nothing was read yet.
func (r *RangeReader) ETag() string {
	return r.etag
}

func (r *RangeReader) fetch() {
	req := r.proto.Apply(r.base, r.offset, r.window)
	resp, err := ExecuteRaw(r.ctx, r.d, req)
	if err != nil {
		r.err = err
		return
	}

	w, data, err := r.proto.Window(resp, r.offset, r.window)
	if err == nil && !w.EOF && w.Returned == 0 {
		err = errors.New("window made no progress")
	}
	if err != nil {
		e := malformed(req.Op(), resp, err)
		recordError(e)
		r.err = e
		return
	}

	// Every window of one read must come from the same version.
	if tag := resp.Header.Get("ETag"); tag != "" {
		if r.etag == "" {
			r.etag = tag
		} else if tag != r.etag {
			e := &Error{
				Kind:    KindConflict,
				Op:      req.Op(),
				Status:  resp.Status,
				Message: fmt.Sprintf("resource changed during read (etag %s, then %s)", r.etag, tag),
			}
			recordError(e)
			r.err = e
			return
		}
	}

	if r.open && len(data) > 0 {
		data = append([]byte{'\n'}, data...)
	}
	if len(data) > 0 {
		r.open = w.Unterminated
	}

	r.windows = append(r.windows, w)
	r.offset += w.Returned
	r.buf = data
	r.eof = w.EOF
}

// WriteProtocol shapes one chunk of an ordered write. total is the full size
// once the final chunk is known, otherwise -1.
type WriteProtocol interface {
	Apply(base Request, offset int64, chunk []byte, total int64) Request
}

// WriteAll copies src to the resource in order, chunk bytes at a time. A
// non-positive chunk sends everything in one request. Any failed chunk ends
// the write; the returned count covers only acknowledged chunks.
func WriteAll(ctx context.Context, d Doer, base Request, src io.Reader, chunk int, wp WriteProtocol) (int64, error) {
	if chunk <= 0 {
		data, err := io.ReadAll(src)
		if err != nil {
			return 0, fmt.Errorf("failed to read source: %w", err)
		}
		if _, err := ExecuteRaw(ctx, d, wp.Apply(base, 0, data, int64(len(data)))); err != nil {
			return 0, err
		}
		return int64(len(data)), nil
	}

	br := bufio.NewReader(src)
	size := chunk
	var written int64
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(br, buf)
		last := false
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			last = true
		case err != nil:
			return written, fmt.Errorf("failed to read source: %w", err)
		default:
			if _, perr := br.Peek(1); perr == io.EOF {
				last = true
			} else if perr != nil {
				return written, fmt.Errorf("failed to read source: %w", perr)
			}
		}
		buf = buf[:n]

		total := int64(-1)
		if last {
			total = written + int64(n)
		}
		resp, err := ExecuteRaw(ctx, d, wp.Apply(base, written, buf, total))
		if err != nil {
			return written, err
		}
		written += int64(n)
		if last {
			return written, nil
		}

		if v := resp.Header.Get(MaxChunkHeader); v != "" {
			if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit < size {
				size = limit
			}
		}
	}
}
