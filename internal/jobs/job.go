package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"zm/internal/zosmf"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultSpoolWindow  = 5000
	DefaultConcurrency  = 4

	modifyVersionHeader = "X-IBM-Job-Modify-Version"
)

var ErrInvalidDefinition = errors.New("job definition needs exactly one of JCL, Dataset or File")

// Definition is what to submit. Exactly one of JCL, Dataset and File is set.
type Definition struct {
	// JCL is inline job control text.
	JCL string
	// Dataset is a sequential dataset or member, e.g. "USER.JCL(BUILD)".
	Dataset string
	// File is an absolute USS path.
	File string

	// Internal reader attributes, all optional.
	Class string
	RecFm string
	LRecl int
	Mode  string

	// Symbols are JCL symbol substitutions.
	Symbols map[string]string
}

func (d Definition) request() (zosmf.Request, error) {
	set := 0
	for _, v := range []string{d.JCL, d.Dataset, d.File} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return zosmf.Request{}, ErrInvalidDefinition
	}

	req := zosmf.NewRequest(http.MethodPut, jobsPath)
	switch {
	case d.JCL != "":
		req = req.WithBody([]byte(d.JCL), "text/plain")
	case d.Dataset != "":
		req = req.WithJSON(map[string]string{"file": "//'" + strings.Trim(d.Dataset, "'") + "'"})
	default:
		req = req.WithJSON(map[string]string{"file": d.File})
	}

	if d.Class != "" {
		req = req.WithHeader("X-IBM-Intrdr-Class", d.Class)
	}
	if d.RecFm != "" {
		req = req.WithHeader("X-IBM-Intrdr-Recfm", d.RecFm)
	}
	if d.LRecl > 0 {
		req = req.WithHeader("X-IBM-Intrdr-Lrecl", strconv.Itoa(d.LRecl))
	}
	if d.Mode != "" {
		req = req.WithHeader("X-IBM-Intrdr-Mode", d.Mode)
	}
	for name, value := range d.Symbols {
		req = req.WithHeader("X-IBM-JCL-Symbol-"+name, value)
	}
	return req, nil
}

// Job tracks one batch job. Its methods may be called from multiple
// goroutines; network calls run without holding the lock.
type Job struct {
	d           zosmf.Doer
	logger      zerolog.Logger
	window      int64
	concurrency int

	mu        sync.Mutex
	handle    Handle
	lifecycle Lifecycle
	status    Status
	err       error
}

type jobOptions struct {
	logger      zerolog.Logger
	window      int64
	concurrency int
}

type Option func(*jobOptions)

func WithLogger(l zerolog.Logger) Option {
	return func(o *jobOptions) { o.logger = l }
}

// WithSpoolWindow sets how many records each spool read requests.
func WithSpoolWindow(records int64) Option {
	return func(o *jobOptions) {
		if records > 0 {
			o.window = records
		}
	}
}

// WithConcurrency bounds parallel spool downloads in Output.
func WithConcurrency(n int) Option {
	return func(o *jobOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newJob(d zosmf.Doer, opts []Option) *Job {
	o := jobOptions{
		logger:      zerolog.Nop(),
		window:      DefaultSpoolWindow,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Job{
		d:           d,
		logger:      o.logger.With().Str("component", "jobs").Logger(),
		window:      o.window,
		concurrency: o.concurrency,
		lifecycle:   Submitted,
	}
}

// Submit sends def to the internal reader. On failure the returned Job is
// in Failed and the error is the one the server produced.
func Submit(ctx context.Context, d zosmf.Doer, def Definition, opts ...Option) (*Job, error) {
	j := newJob(d, opts)

	req, err := def.request()
	if err != nil {
		j.fail(err)
		return j, err
	}

	info, err := zosmf.Execute[Info](ctx, d, req)
	if err != nil {
		j.fail(err)
		j.logger.Warn().Err(err).Msg("submit failed")
		return j, err
	}
	if info.JobID == "" || info.JobName == "" {
		err := &zosmf.Error{Kind: zosmf.KindMalformed, Op: req.Op(), Message: "submit response has no job id"}
		j.fail(err)
		return j, err
	}

	j.mu.Lock()
	j.handle = info.Handle()
	j.status = StatusOf(info)
	j.lifecycle = Polling
	j.mu.Unlock()

	j.logger.Info().Str("jobid", info.JobID).Str("jobname", info.JobName).Msg("job submitted")
	return j, nil
}

// Attach returns a Job in Polling for a job submitted elsewhere.
func Attach(d zosmf.Doer, h Handle, opts ...Option) *Job {
	j := newJob(d, opts)
	j.handle = h
	j.status = Status{State: StateUnknown}
	j.lifecycle = Polling
	return j
}

func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lifecycle = Failed
	j.err = err
}

func (j *Job) Handle() Handle {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.handle
}

func (j *Job) Lifecycle() Lifecycle {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lifecycle
}

// Status returns the last observed status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the submission error of a Failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) path(suffix string) string {
	return jobsPath + "/{name}/{id}" + suffix
}

func (j *Job) request(method, suffix string) zosmf.Request {
	h := j.Handle()
	return zosmf.NewRequest(method, j.path(suffix)).
		WithParam("name", h.JobName).
		WithParam("id", h.JobID)
}

func (j *Job) invalidState(op string, allowed ...Lifecycle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, l := range allowed {
		if j.lifecycle == l {
			return nil
		}
	}
	return &zosmf.Error{
		Kind:    zosmf.KindInvalidState,
		Op:      op,
		Message: fmt.Sprintf("job %s is %s", j.handle, j.lifecycle),
	}
}

// Poll issues one status request. A failed request leaves the Job unchanged.
func (j *Job) Poll(ctx context.Context) (Status, error) {
	if err := j.invalidState("poll", Polling, SpoolReady); err != nil {
		return Status{}, err
	}

	zosmf.JobPollsTotal.Inc()
	info, err := zosmf.Execute[Info](ctx, j.d, j.request(http.MethodGet, ""))
	if err != nil {
		return j.Status(), err
	}
	st := StatusOf(info)

	j.mu.Lock()
	prev := j.status
	j.status = st
	if st.Terminal() && j.lifecycle == Polling {
		j.lifecycle = SpoolReady
	}
	if info.Correlator != "" {
		j.handle.Correlator = info.Correlator
	}
	j.mu.Unlock()

	if prev.State != st.State {
		j.logger.Debug().
			Str("jobid", info.JobID).
			Str("from", string(prev.State)).
			Str("to", string(st.State)).
			Str("retcode", st.RetCode).
			Msg("job state changed")
	}
	return st, nil
}

// PollOptions controls Wait. A nil Backoff polls every DefaultPollInterval;
// a zero Timeout waits until ctx is done.
type PollOptions struct {
	Backoff backoff.BackOff
	Timeout time.Duration
}

// Wait polls until the job is terminal. It fails with a Timeout error once
// opts.Timeout elapses and with Cancelled when ctx is cancelled; neither
// affects the remote job. Polling also stops with Timeout if the backoff
// returns backoff.Stop.
func (j *Job) Wait(ctx context.Context, opts PollOptions) (Status, error) {
	b := opts.Backoff
	if b == nil {
		b = backoff.NewConstantBackOff(DefaultPollInterval)
	}
	b.Reset()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	for {
		st, err := j.Poll(ctx)
		if err != nil {
			return st, err
		}
		if st.Terminal() {
			return st, nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return st, &zosmf.Error{Kind: zosmf.KindTimeout, Op: "wait", Message: "poll budget exhausted"}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, zosmf.WaitError("wait", ctx.Err())
		case <-timer.C:
		}
	}
}

// Spool lists the job's output files. The job must have finished.
func (j *Job) Spool(ctx context.Context) ([]SpoolFile, error) {
	if err := j.invalidState("list spool", SpoolReady); err != nil {
		return nil, err
	}
	return zosmf.Execute[[]SpoolFile](ctx, j.d, j.request(http.MethodGet, "/files"))
}

// SpoolContent streams one spool file in record windows.
func (j *Job) SpoolContent(ctx context.Context, f SpoolFile) (*zosmf.RangeReader, error) {
	if err := j.invalidState("read spool", SpoolReady); err != nil {
		return nil, err
	}
	return j.records(ctx, strconv.Itoa(f.ID)), nil
}

// JCL streams the job's submitted JCL, available while the job exists.
func (j *Job) JCL(ctx context.Context) (*zosmf.RangeReader, error) {
	if err := j.invalidState("read JCL", Polling, SpoolReady); err != nil {
		return nil, err
	}
	return j.records(ctx, "JCL"), nil
}

func (j *Job) records(ctx context.Context, fileID string) *zosmf.RangeReader {
	req := j.request(http.MethodGet, "/files/{file}/records").
		WithParam("file", fileID).
		WithHeader(zosmf.DataTypeHeader, "text")
	return zosmf.NewRangeReader(ctx, j.d, req, zosmf.RecordRange{}, j.window)
}

// Output writes every spool file to w in order, each preceded by a DD
// banner. Up to the configured concurrency files download ahead of the one
// being written; each hands its records over a pipe, so at most one window
// per file is held in memory.
func (j *Job) Output(ctx context.Context, w io.Writer) error {
	files, err := j.Spool(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	readers := make([]*io.PipeReader, len(files))
	writers := make([]*io.PipeWriter, len(files))
	for i := range files {
		readers[i], writers[i] = io.Pipe()
	}

	var g errgroup.Group
	g.SetLimit(j.concurrency)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, f := range files {
			g.Go(func() error {
				writers[i].CloseWithError(j.copySpool(ctx, f, writers[i]))
				return nil
			})
		}
		_ = g.Wait()
	}()
	defer func() {
		cancel()
		for _, r := range readers {
			r.Close()
		}
		<-done
	}()

	for i, f := range files {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "--- DD: %s (Step: %s) ---\n", f.DDName, f.StepName); err != nil {
			return err
		}
		if _, err := io.Copy(w, readers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) copySpool(ctx context.Context, f SpoolFile, w io.Writer) error {
	r, err := j.SpoolContent(ctx, f)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to read DD %s: %w", f.DDName, err)
	}
	return nil
}

// Cancel stops a job that is queued or running. The job record and its
// spool stay until purged.
func (j *Job) Cancel(ctx context.Context) error {
	return j.modify(ctx, "cancel", map[string]string{"request": "cancel"})
}

// Hold keeps a queued job from being selected for execution.
func (j *Job) Hold(ctx context.Context) error {
	return j.modify(ctx, "hold", map[string]string{"request": "hold"})
}

// Release lets a held job run.
func (j *Job) Release(ctx context.Context) error {
	return j.modify(ctx, "release", map[string]string{"request": "release"})
}

// ChangeClass moves a queued job to another execution class.
func (j *Job) ChangeClass(ctx context.Context, class string) error {
	if class == "" {
		return &zosmf.Error{Kind: zosmf.KindInvalidState, Op: "change class", Message: "no class given"}
	}
	return j.modify(ctx, "change class", map[string]string{"class": strings.ToUpper(class)})
}

// modify sends a synchronous job modify request. z/OSMF answers 200 even
// when JES refuses the change, so the feedback status decides.
func (j *Job) modify(ctx context.Context, op string, body map[string]string) error {
	if err := j.invalidState(op, Polling, SpoolReady); err != nil {
		return err
	}
	body["version"] = "2.0"
	req := j.request(http.MethodPut, "").WithJSON(body)
	resp, err := zosmf.ExecuteRaw(ctx, j.d, req)
	if err != nil {
		return err
	}
	if fb, ok := decodeFeedback(resp.Body); ok && fb.Status != 0 {
		return &zosmf.Error{
			Kind:    zosmf.KindUnclassified,
			Op:      op,
			Status:  resp.Status,
			Message: fb.Message,
			Body:    resp.Body,
		}
	}
	j.logger.Info().Str("job", j.Handle().String()).Str("request", op).Msg("job modified")
	return nil
}

// Purge cancels the job if needed and deletes its record and spool.
// Purging a job that is already gone succeeds.
func (j *Job) Purge(ctx context.Context) error {
	j.mu.Lock()
	lc := j.lifecycle
	j.mu.Unlock()
	switch lc {
	case Terminated:
		return nil
	case Failed, Submitted:
		return j.invalidState("purge")
	}

	req := j.request(http.MethodDelete, "").WithHeader(modifyVersionHeader, "2.0")
	resp, err := zosmf.ExecuteRaw(ctx, j.d, req)
	switch {
	case err == nil:
		if fb, ok := decodeFeedback(resp.Body); ok && fb.Status != 0 {
			return &zosmf.Error{
				Kind:    zosmf.KindUnclassified,
				Op:      req.Op(),
				Status:  resp.Status,
				Message: fb.Message,
				Body:    resp.Body,
			}
		}
	case jobGone(err):
		j.logger.Debug().Str("job", j.Handle().String()).Msg("job already purged")
	default:
		return err
	}

	j.mu.Lock()
	j.lifecycle = Terminated
	j.mu.Unlock()
	j.logger.Info().Str("job", j.Handle().String()).Msg("job purged")
	return nil
}

func decodeFeedback(body []byte) (feedback, bool) {
	var fb feedback
	if len(bytes.TrimSpace(body)) == 0 {
		return fb, false
	}
	if err := json.Unmarshal(body, &fb); err != nil {
		return fb, false
	}
	return fb, true
}

// jobGone matches 404 and the z/OSMF "no job found" reply (rc 4, reason 10).
func jobGone(err error) bool {
	if errors.Is(err, zosmf.ErrNotFound) {
		return true
	}
	var ze *zosmf.Error
	if errors.As(err, &ze) && ze.Detail != nil {
		return ze.Status == http.StatusBadRequest && ze.Detail.RC == 4 && ze.Detail.Reason == 10
	}
	return false
}
