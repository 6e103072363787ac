package connection

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"zm/internal/jobs"
	"zm/internal/zosmf"
)

const (
	dsPath       = "/zosmf/restfiles/ds"
	dsEntryPath  = "/zosmf/restfiles/ds/{dataset}"
	dsVolumePath = "/zosmf/restfiles/ds/-({volume})/{dataset}"
	memberPath   = "/zosmf/restfiles/ds/{dataset}/member"
	fsPath       = "/zosmf/restfiles/fs"
	fsEntryPath  = "/zosmf/restfiles/fs{path}"
	sysvarPath   = "/zosmf/variables/rest/1.0/systems/{system}"
	workflowPath = "/zosmf/workflow/rest/1.0/workflows/{key}"

	attributesHeader = "X-IBM-Attributes"
	returnETagHeader = "X-IBM-Return-Etag"

	DataTypeText   = "text"
	DataTypeBinary = "binary"
	DataTypeRecord = "record"

	// DefaultChunkRecords is the record window for text reads.
	DefaultChunkRecords = 10000

	closeTimeout = 10 * time.Second
)

// ZOSMFOptions tunes a ZOSMFConnection. Zero values mean the library default.
type ZOSMFOptions struct {
	Insecure     bool
	PageSize     int
	ChunkRecords int
	RateLimit    float64
	PollInterval time.Duration
	// DataType is text, binary or record. Default text.
	DataType string
	Logger   zerolog.Logger
	// Session carries extra options, e.g. a test HTTP client.
	Session []zosmf.Option
}

type ZOSMFConnection struct {
	baseURL string
	creds   zosmf.Credentials
	opts    ZOSMFOptions
	logger  zerolog.Logger
	session *zosmf.Session
}

func NewZOSMFConnection(baseURL, user, password string, opts ZOSMFOptions) *ZOSMFConnection {
	if opts.PageSize <= 0 {
		opts.PageSize = zosmf.DefaultPageSize
	}
	if opts.ChunkRecords <= 0 {
		opts.ChunkRecords = DefaultChunkRecords
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = jobs.DefaultPollInterval
	}
	if opts.DataType == "" {
		opts.DataType = DataTypeText
	}
	return &ZOSMFConnection{
		baseURL: baseURL,
		creds:   zosmf.Credentials{User: user, Password: password},
		opts:    opts,
		logger:  opts.Logger.With().Str("component", "connection").Logger(),
	}
}

// Connect opens the session and logs in, so bad credentials fail here
// rather than on the first command.
func (z *ZOSMFConnection) Connect(ctx context.Context) error {
	sessOpts := []zosmf.Option{
		zosmf.WithInsecureTLS(z.opts.Insecure),
		zosmf.WithLogger(z.opts.Logger),
	}
	if z.opts.RateLimit > 0 {
		sessOpts = append(sessOpts, zosmf.WithRateLimit(z.opts.RateLimit, 1))
	}
	sessOpts = append(sessOpts, z.opts.Session...)

	s, err := zosmf.NewSession(z.baseURL, z.creds, sessOpts...)
	if err != nil {
		return err
	}
	if err := s.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", z.baseURL, err)
	}
	z.session = s
	return nil
}

// Close logs out. A failed logout is returned but the connection is
// unusable afterwards either way.
func (z *ZOSMFConnection) Close() error {
	if z.session == nil {
		return nil
	}
	s := z.session
	z.session = nil

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Session exposes the authenticated session to callers that need the
// core directly.
func (z *ZOSMFConnection) Session() (*zosmf.Session, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	return z.session, nil
}

// --- Dataset operations ---

// Dataset is one entry of a dataset listing.
type Dataset struct {
	Name   string `json:"dsname"`
	Org    string `json:"dsorg"`
	RecFm  string `json:"recfm"`
	LRecl  string `json:"lrecl"`
	Volume string `json:"vol"`
}

// Datasets lazily lists datasets matching pattern, one page per request.
func (z *ZOSMFConnection) Datasets(ctx context.Context, pattern string) iter.Seq2[Dataset, error] {
	if z.session == nil {
		return failed[Dataset](ErrNotConnected)
	}
	base := zosmf.NewRequest(http.MethodGet, dsPath).
		WithQuery("dslevel", unquote(pattern)).
		WithHeader(attributesHeader, "base")
	return zosmf.ListAll(ctx, z.session, base, z.opts.PageSize,
		zosmf.ItemsPaging(func(d Dataset) string { return d.Name }))
}

func (z *ZOSMFConnection) ListDatasets(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	for ds, err := range z.Datasets(ctx, pattern) {
		if err != nil {
			return nil, fmt.Errorf("failed to list datasets: %w", err)
		}
		names = append(names, ds.Name)
	}
	return names, nil
}

type memberItem struct {
	Member string `json:"member"`
	Vers   int    `json:"vers"`
	Mod    int    `json:"mod"`
	C4date string `json:"c4date"`
	M4date string `json:"m4date"`
	Mtime  string `json:"mtime"`
	Cnorc  int    `json:"cnorc"`
	Inorc  int    `json:"inorc"`
	Mnorc  int    `json:"mnorc"`
	User   string `json:"user"`
}

func (item memberItem) member() Member {
	m := Member{
		Name:    item.Member,
		VV:      item.Vers,
		MM:      item.Mod,
		Created: item.C4date,
		Size:    item.Cnorc,
		Init:    item.Inorc,
		Mod:     item.Mnorc,
		User:    item.User,
	}
	if item.Mtime != "" {
		m.Changed = item.M4date + " " + item.Mtime
	} else {
		m.Changed = item.M4date
	}
	return m
}

func (z *ZOSMFConnection) ListMembers(ctx context.Context, dataset string) ([]Member, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	dsn := unquote(dataset)
	base := zosmf.NewRequest(http.MethodGet, memberPath).
		WithParam("dataset", dsn).
		WithHeader(attributesHeader, "base")

	var members []Member
	seq := zosmf.ListAll(ctx, z.session, base, z.opts.PageSize,
		zosmf.ItemsPaging(func(m memberItem) string { return m.Member }))
	for item, err := range seq {
		if err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", dsn, err)
		}
		members = append(members, item.member())
	}
	return members, nil
}

// OpenMember streams a member in record windows.
func (z *ZOSMFConnection) OpenMember(ctx context.Context, dataset, member string) (io.Reader, error) {
	return z.open(ctx, memberRequest(http.MethodGet, dataset, member))
}

func (z *ZOSMFConnection) ReadMember(ctx context.Context, dataset, member string) ([]byte, error) {
	data, _, err := z.ReadMemberVersion(ctx, dataset, member)
	return data, err
}

// ReadMemberVersion reads a member along with its ETag.
func (z *ZOSMFConnection) ReadMemberVersion(ctx context.Context, dataset, member string) ([]byte, string, error) {
	data, etag, err := z.readAll(ctx, memberRequest(http.MethodGet, dataset, member))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s(%s): %w", unquote(dataset), member, err)
	}
	return data, etag, nil
}

func (z *ZOSMFConnection) WriteMember(ctx context.Context, dataset, member string, content []byte) error {
	return z.WriteMemberVersion(ctx, dataset, member, content, "")
}

// WriteMemberVersion replaces a member only if it still has the given ETag.
// A changed member fails with a Conflict error. An empty etag writes
// unconditionally.
func (z *ZOSMFConnection) WriteMemberVersion(ctx context.Context, dataset, member string, content []byte, etag string) error {
	if err := z.write(ctx, memberRequest(http.MethodPut, dataset, member), content, etag); err != nil {
		return fmt.Errorf("failed to write %s(%s): %w", unquote(dataset), member, err)
	}
	return nil
}

// DeleteMember removes one member of a PDS.
func (z *ZOSMFConnection) DeleteMember(ctx context.Context, dataset, member string) error {
	if z.session == nil {
		return ErrNotConnected
	}
	if err := zosmf.ExecuteNoContent(ctx, z.session, memberRequest(http.MethodDelete, dataset, member)); err != nil {
		return fmt.Errorf("failed to delete %s(%s): %w", unquote(dataset), member, err)
	}
	return nil
}

// DatasetAttributes are the allocation parameters of a new dataset. Zero
// fields are left to the system defaults. Like copies the attributes of an
// existing dataset.
type DatasetAttributes struct {
	Volume    string `json:"volser,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Org       string `json:"dsorg,omitempty"`
	AllocUnit string `json:"alcunit,omitempty"`
	Primary   int    `json:"primary,omitempty"`
	Secondary int    `json:"secondary,omitempty"`
	DirBlocks int    `json:"dirblk,omitempty"`
	AvgBlock  int    `json:"avgblk,omitempty"`
	RecFm     string `json:"recfm,omitempty"`
	BlkSize   int    `json:"blksize,omitempty"`
	LRecl     int    `json:"lrecl,omitempty"`
	StorClass string `json:"storclass,omitempty"`
	MgmtClass string `json:"mgntclass,omitempty"`
	DataClass string `json:"dataclass,omitempty"`
	Type      string `json:"dsntype,omitempty"`
	Like      string `json:"like,omitempty"`
}

// CreateDataset allocates a sequential or partitioned dataset.
func (z *ZOSMFConnection) CreateDataset(ctx context.Context, name string, attrs DatasetAttributes) error {
	if z.session == nil {
		return ErrNotConnected
	}
	attrs.Like = unquoteOptional(attrs.Like)
	req := zosmf.NewRequest(http.MethodPost, dsEntryPath).
		WithParam("dataset", unquote(name)).
		WithJSON(attrs)
	if err := zosmf.ExecuteNoContent(ctx, z.session, req); err != nil {
		return fmt.Errorf("failed to create %s: %w", unquote(name), err)
	}
	z.logger.Info().Str("dataset", unquote(name)).Msg("dataset created")
	return nil
}

// DeleteDataset deletes a dataset. A volume selects an uncataloged one.
func (z *ZOSMFConnection) DeleteDataset(ctx context.Context, name, volume string) error {
	if z.session == nil {
		return ErrNotConnected
	}
	if err := zosmf.ExecuteNoContent(ctx, z.session, datasetRequest(http.MethodDelete, name, volume)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", unquote(name), err)
	}
	z.logger.Info().Str("dataset", unquote(name)).Str("volume", volume).Msg("dataset deleted")
	return nil
}

// MigrateDataset sends a dataset to HSM storage. With wait the call
// returns once the migration finished.
func (z *ZOSMFConnection) MigrateDataset(ctx context.Context, name string, wait bool) error {
	return z.hsm(ctx, name, "hmigrate", wait)
}

// RecallDataset brings a migrated dataset back to primary storage.
func (z *ZOSMFConnection) RecallDataset(ctx context.Context, name string, wait bool) error {
	return z.hsm(ctx, name, "hrecall", wait)
}

func (z *ZOSMFConnection) hsm(ctx context.Context, name, action string, wait bool) error {
	if z.session == nil {
		return ErrNotConnected
	}
	req := datasetRequest(http.MethodPut, name, "").
		WithJSON(map[string]any{"request": action, "wait": wait})
	if err := zosmf.ExecuteNoContent(ctx, z.session, req); err != nil {
		return fmt.Errorf("failed to %s %s: %w", strings.TrimPrefix(action, "h"), unquote(name), err)
	}
	return nil
}

func datasetRequest(method, name, volume string) zosmf.Request {
	if volume == "" {
		return zosmf.NewRequest(method, dsEntryPath).WithParam("dataset", unquote(name))
	}
	return zosmf.NewRequest(method, dsVolumePath).
		WithParam("volume", strings.ToUpper(volume)).
		WithParam("dataset", unquote(name))
}

func unquoteOptional(name string) string {
	if name == "" {
		return ""
	}
	return unquote(name)
}

func memberRequest(method, dataset, member string) zosmf.Request {
	target := unquote(dataset)
	if member != "" {
		target += "(" + strings.ToUpper(member) + ")"
	}
	return zosmf.NewRequest(method, dsEntryPath).WithParam("dataset", target)
}

// --- USS operations ---

// FileEntry is one entry of a USS directory listing.
type FileEntry struct {
	Name  string `json:"name"`
	Mode  string `json:"mode"`
	Size  int64  `json:"size"`
	User  string `json:"user"`
	Group string `json:"group"`
	MTime string `json:"mtime"`
}

// Dir reports whether the entry is a directory.
func (f FileEntry) Dir() bool {
	return strings.HasPrefix(f.Mode, "d")
}

// ListFiles lists a USS directory. z/OSMF does not page this listing, so
// the item cap is lifted.
func (z *ZOSMFConnection) ListFiles(ctx context.Context, path string) ([]FileEntry, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	req := zosmf.NewRequest(http.MethodGet, fsPath).
		WithQuery("path", path).
		WithHeader(zosmf.MaxItemsHeader, "0")
	list, err := zosmf.Execute[zosmf.ListResponse[FileEntry]](ctx, z.session, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	return list.Items, nil
}

// OpenFile streams a USS file in record windows.
func (z *ZOSMFConnection) OpenFile(ctx context.Context, path string) (io.Reader, error) {
	return z.open(ctx, fileRequest(http.MethodGet, path))
}

func (z *ZOSMFConnection) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, _, err := z.ReadFileVersion(ctx, path)
	return data, err
}

// ReadFileVersion reads a USS file along with its ETag.
func (z *ZOSMFConnection) ReadFileVersion(ctx context.Context, path string) ([]byte, string, error) {
	data, etag, err := z.readAll(ctx, fileRequest(http.MethodGet, path))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, etag, nil
}

func (z *ZOSMFConnection) WriteFile(ctx context.Context, path string, content []byte) error {
	return z.WriteFileVersion(ctx, path, content, "")
}

// WriteFileVersion replaces a USS file only if it still has the given ETag.
func (z *ZOSMFConnection) WriteFileVersion(ctx context.Context, path string, content []byte, etag string) error {
	if err := z.write(ctx, fileRequest(http.MethodPut, path), content, etag); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileRequest(method, path string) zosmf.Request {
	return zosmf.NewRequest(method, fsEntryPath).WithParam("path", path)
}

// versionedReader is an opened resource whose ETag is known once read.
type versionedReader interface {
	io.Reader
	ETag() string
}

// wholeBody is content that arrived in a single response.
type wholeBody struct {
	*bytes.Reader
	etag string
}

func (b wholeBody) ETag() string { return b.etag }

// open returns a reader for the configured data type. Text and record data
// are read in record windows. Binary data has no record boundaries and
// z/OSMF ignores X-IBM-Record-Range for it, so it comes back in one response.
func (z *ZOSMFConnection) open(ctx context.Context, req zosmf.Request) (versionedReader, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	req = req.WithHeader(zosmf.DataTypeHeader, z.opts.DataType).
		WithHeader(returnETagHeader, "true")
	window := int64(z.opts.ChunkRecords)

	switch z.opts.DataType {
	case DataTypeText:
		return zosmf.NewRangeReader(ctx, z.session, req.WithHeader("Accept", "text/plain"), zosmf.RecordRange{}, window), nil
	case DataTypeRecord:
		return zosmf.NewRangeReader(ctx, z.session, req.WithHeader("Accept", "*/*"), zosmf.PrefixedRecordRange{}, window), nil
	}
	resp, err := zosmf.ExecuteRaw(ctx, z.session, req.WithHeader("Accept", "*/*"))
	if err != nil {
		return nil, err
	}
	return wholeBody{Reader: bytes.NewReader(resp.Body), etag: resp.Header.Get("ETag")}, nil
}

func (z *ZOSMFConnection) readAll(ctx context.Context, req zosmf.Request) ([]byte, string, error) {
	r, err := z.open(ctx, req)
	if err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	return data, r.ETag(), nil
}

// write replaces the target in a single request. The REST files API has no
// append, so the content cannot be split across requests. A non-empty etag
// makes the write conditional.
func (z *ZOSMFConnection) write(ctx context.Context, req zosmf.Request, content []byte, etag string) error {
	if z.session == nil {
		return ErrNotConnected
	}
	if etag != "" {
		req = req.WithHeader("If-Match", etag)
	}
	_, err := zosmf.WriteAll(ctx, z.session, req, bytes.NewReader(content), 0, replaceWrite{dataType: z.opts.DataType})
	return err
}

// replaceWrite sends the body as a whole-resource replacement.
type replaceWrite struct {
	dataType string
}

func (w replaceWrite) Apply(base zosmf.Request, _ int64, chunk []byte, _ int64) zosmf.Request {
	ct := "text/plain"
	if w.dataType != DataTypeText {
		ct = "application/octet-stream"
	}
	return base.WithHeader(zosmf.DataTypeHeader, w.dataType).WithBody(chunk, ct)
}

// --- Job operations ---

func (z *ZOSMFConnection) jobOptions() []jobs.Option {
	return []jobs.Option{
		jobs.WithLogger(z.opts.Logger),
		jobs.WithSpoolWindow(int64(z.opts.ChunkRecords)),
	}
}

// Submit sends a job to the internal reader.
func (z *ZOSMFConnection) Submit(ctx context.Context, def jobs.Definition) (*jobs.Job, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	j, err := jobs.Submit(ctx, z.session, def, z.jobOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	return j, nil
}

// Job attaches to an existing job by id. The job's current status is
// fetched once so callers see a known state.
func (z *ZOSMFConnection) Job(ctx context.Context, jobID string) (*jobs.Job, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	info, err := jobs.Lookup(ctx, z.session, strings.ToUpper(jobID))
	if err != nil {
		return nil, err
	}
	j := jobs.Attach(z.session, info.Handle(), z.jobOptions()...)
	if _, err := j.Poll(ctx); err != nil {
		return nil, fmt.Errorf("failed to get status of %s: %w", info.Handle(), err)
	}
	return j, nil
}

// ListJobs lists jobs. An empty owner means the logged-in user.
func (z *ZOSMFConnection) ListJobs(ctx context.Context, opts jobs.ListOptions) ([]jobs.Info, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	if opts.Owner == "" {
		opts.Owner = z.creds.User
	}
	if opts.Prefix == "" {
		opts.Prefix = "*"
	}
	items, err := jobs.List(ctx, z.session, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return items, nil
}

// PollOptions returns Wait settings starting at the configured interval and
// backing off to four times that.
func (z *ZOSMFConnection) PollOptions(timeout time.Duration) jobs.PollOptions {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = z.opts.PollInterval
	b.MaxInterval = 4 * z.opts.PollInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return jobs.PollOptions{Backoff: b, Timeout: timeout}
}

// --- System variables ---

// SystemID names the system whose variables are read. The zero value is
// the local system.
type SystemID struct {
	Sysplex string
	System  string
}

func (s SystemID) String() string {
	if s.Sysplex == "" && s.System == "" {
		return "local"
	}
	return s.Sysplex + "." + s.System
}

// ParseSystemID accepts "local" or "SYSPLEX.SYSTEM".
func ParseSystemID(v string) (SystemID, error) {
	if v == "" || strings.EqualFold(v, "local") {
		return SystemID{}, nil
	}
	plex, sys, ok := strings.Cut(v, ".")
	if !ok || plex == "" || sys == "" {
		return SystemID{}, fmt.Errorf("system must be 'local' or SYSPLEX.SYSTEM, got %q", v)
	}
	return SystemID{Sysplex: plex, System: sys}, nil
}

type SystemVariable struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// SystemVariables reads variables from a system. No names means all.
func (z *ZOSMFConnection) SystemVariables(ctx context.Context, system SystemID, names ...string) ([]SystemVariable, error) {
	if z.session == nil {
		return nil, ErrNotConnected
	}
	req := zosmf.NewRequest(http.MethodGet, sysvarPath).WithParam("system", system.String())
	for _, n := range names {
		req = req.WithQuery("var-name", n)
	}
	resp, err := zosmf.Execute[struct {
		Variables []SystemVariable `json:"system-variable-list"`
	}](ctx, z.session, req)
	if err != nil {
		return nil, fmt.Errorf("failed to read system variables of %s: %w", system, err)
	}
	return resp.Variables, nil
}

// ImportSystemVariables loads variables from a z/OS UNIX file into a
// system's variable pool. The file uses the z/OSMF import format.
func (z *ZOSMFConnection) ImportSystemVariables(ctx context.Context, system SystemID, path string) error {
	if z.session == nil {
		return ErrNotConnected
	}
	req := zosmf.NewRequest(http.MethodPost, sysvarPath+"/actions/import").
		WithParam("system", system.String()).
		WithJSON(map[string]string{"variables-import-file": path})
	if err := zosmf.ExecuteNoContent(ctx, z.session, req); err != nil {
		return fmt.Errorf("failed to import system variables into %s: %w", system, err)
	}
	z.logger.Info().Str("system", system.String()).Str("file", path).Msg("system variables imported")
	return nil
}

// --- Workflows ---

// Workflow is the subset of workflow properties zm shows.
type Workflow struct {
	Key             string `json:"workflowKey"`
	Name            string `json:"workflowName"`
	Owner           string `json:"owner"`
	Status          string `json:"statusName"`
	PercentComplete int    `json:"percentComplete"`
	System          string `json:"system"`
}

// WorkflowStart controls how a workflow is started. Empty fields use the
// server defaults.
type WorkflowStart struct {
	// ResolveConflicts is outputFileValue, existingValue or leaveConflict.
	ResolveConflicts string
	// Step starts at a given step instead of the first ready one.
	Step string
	// Subsequent runs the following automated steps too.
	Subsequent *bool
}

func (w WorkflowStart) body() map[string]any {
	body := map[string]any{}
	if w.ResolveConflicts != "" {
		body["resolveConflictByUsing"] = w.ResolveConflicts
	}
	if w.Step != "" {
		body["stepName"] = w.Step
	}
	if w.Subsequent != nil {
		body["performSubsequent"] = *w.Subsequent
	}
	return body
}

// Workflow reads a workflow's properties.
func (z *ZOSMFConnection) Workflow(ctx context.Context, key string) (Workflow, error) {
	if z.session == nil {
		return Workflow{}, ErrNotConnected
	}
	req := zosmf.NewRequest(http.MethodGet, workflowPath).WithParam("key", key)
	wf, err := zosmf.Execute[Workflow](ctx, z.session, req)
	if err != nil {
		return Workflow{}, fmt.Errorf("failed to get workflow %s: %w", key, err)
	}
	return wf, nil
}

// StartWorkflow starts an automated workflow. z/OSMF accepts the request and
// runs the steps asynchronously.
func (z *ZOSMFConnection) StartWorkflow(ctx context.Context, key string, opts WorkflowStart) error {
	if z.session == nil {
		return ErrNotConnected
	}
	req := zosmf.NewRequest(http.MethodPut, workflowPath+"/operations/start").
		WithParam("key", key).
		WithJSON(opts.body())
	if err := zosmf.ExecuteNoContent(ctx, z.session, req); err != nil {
		return fmt.Errorf("failed to start workflow %s: %w", key, err)
	}
	z.logger.Info().Str("workflow", key).Msg("workflow started")
	return nil
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

var (
	_ Connection = (*ZOSMFConnection)(nil)
	_ Versioned  = (*ZOSMFConnection)(nil)
)
