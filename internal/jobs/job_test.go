package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ztest "zm/internal/testutil"
	"zm/internal/zosmf"
)

const (
	testJobName = "TESTJOB"
	testJobID   = "JOB00023"
	statusPath  = "/zosmf/restjobs/jobs/TESTJOB/JOB00023"
	filesPath   = statusPath + "/files"
)

func newSession(t *testing.T, m *ztest.MockZOSMF) *zosmf.Session {
	t.Helper()
	s, err := zosmf.NewSession(m.URL(), zosmf.Credentials{User: ztest.DefaultUser, Password: ztest.DefaultPassword})
	require.NoError(t, err)
	return s
}

func strp(s string) *string { return &s }

func info(status string, retcode *string) Info {
	return Info{
		JobID:      testJobID,
		JobName:    testJobName,
		Owner:      ztest.DefaultUser,
		Status:     status,
		Class:      "A",
		RetCode:    retcode,
		Correlator: "J0000023SYS1....D4A1B2C3.......:",
		PhaseName:  "Job is on the hard copy queue",
	}
}

// statusSequence answers status polls with the given documents in order,
// repeating the last one.
func statusSequence(m *ztest.MockZOSMF, seq ...Info) *atomic.Int32 {
	var calls atomic.Int32
	m.Handle(http.MethodGet, statusPath, func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		ztest.WriteJSON(w, http.StatusOK, seq[min(n, len(seq)-1)])
	})
	return &calls
}

func fastBackoff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		status  string
		retcode *string
		want    Status
	}{
		{"INPUT", nil, Status{State: StateInput}},
		{"ACTIVE", nil, Status{State: StateActive}},
		{"OUTPUT", strp("CC 0000"), Status{State: StateOutput, RetCode: "CC 0000"}},
		{"OUTPUT", strp("CC 0008"), Status{State: StateOutput, RetCode: "CC 0008"}},
		{"OUTPUT", strp("ABEND S0C4"), Status{State: StateAbend, RetCode: "ABEND S0C4", AbendCode: "S0C4"}},
		{"OUTPUT", strp("ABEND U0100"), Status{State: StateAbend, RetCode: "ABEND U0100", AbendCode: "U0100"}},
		{"OUTPUT", strp("JCL ERROR"), Status{State: StateOutput, RetCode: "JCL ERROR"}},
		{"OUTPUT", strp("CANCELED"), Status{State: StateOutput, RetCode: "CANCELED"}},
		{"OUTPUT", strp("SEC ERROR"), Status{State: StateOutput, RetCode: "SEC ERROR"}},
		{"OUTPUT", nil, Status{State: StateOutput}},
		{"", nil, Status{State: StateUnknown}},
		{"HELD", nil, Status{State: StateUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.status+" "+Info{RetCode: tt.retcode}.ReturnCode(), func(t *testing.T) {
			in := info(tt.status, tt.retcode)
			in.PhaseName = ""
			assert.Equal(t, tt.want, StatusOf(in))
		})
	}
}

func TestStatus_ConditionCode(t *testing.T) {
	rc, ok := Status{State: StateOutput, RetCode: "CC 0004"}.ConditionCode()
	assert.True(t, ok)
	assert.Equal(t, 4, rc)

	_, ok = Status{State: StateOutput, RetCode: "JCL ERROR"}.ConditionCode()
	assert.False(t, ok)

	assert.Equal(t, "ABEND S0C4", Status{State: StateAbend, AbendCode: "S0C4"}.String())
	assert.Equal(t, "OUTPUT CC 0000", Status{State: StateOutput, RetCode: "CC 0000"}.String())
}

func TestSubmit_InlineJCL(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()

	var gotBody string
	var gotHeader http.Header
	m.Handle(http.MethodPut, jobsPath, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Clone()
		ztest.WriteJSON(w, http.StatusCreated, info("INPUT", nil))
	})

	jcl := "//TESTJOB JOB (ACCT),'TEST'\n//STEP1 EXEC PGM=IEFBR14\n"
	job, err := Submit(context.Background(), newSession(t, m), Definition{
		JCL:     jcl,
		Class:   "A",
		RecFm:   "F",
		LRecl:   80,
		Symbols: map[string]string{"HLQ": "IBMUSER"},
	})
	require.NoError(t, err)

	assert.Equal(t, Polling, job.Lifecycle())
	assert.Equal(t, Handle{JobID: testJobID, JobName: testJobName, Correlator: "J0000023SYS1....D4A1B2C3.......:"}, job.Handle())
	assert.Equal(t, StateInput, job.Status().State)

	assert.Equal(t, jcl, gotBody)
	assert.Equal(t, "text/plain", gotHeader.Get("Content-Type"))
	assert.Equal(t, "A", gotHeader.Get("X-IBM-Intrdr-Class"))
	assert.Equal(t, "F", gotHeader.Get("X-IBM-Intrdr-Recfm"))
	assert.Equal(t, "80", gotHeader.Get("X-IBM-Intrdr-Lrecl"))
	assert.Equal(t, "IBMUSER", gotHeader.Get("X-IBM-JCL-Symbol-HLQ"))
}

func TestSubmit_FromDataset(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()

	var got map[string]string
	m.Handle(http.MethodPut, jobsPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		ztest.WriteJSON(w, http.StatusCreated, info("INPUT", nil))
	})

	_, err := Submit(context.Background(), newSession(t, m), Definition{Dataset: "IBMUSER.JCL(BUILD)"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"file": "//'IBMUSER.JCL(BUILD)'"}, got)
}

func TestSubmit_RejectedEntersFailed(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodPut, jobsPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteError(w, http.StatusBadRequest, "IEFC452I", "JOB NOT RUN - JCL ERROR")
	})

	job, err := Submit(context.Background(), newSession(t, m), Definition{JCL: "//BAD JOB\n"})
	require.Error(t, err)
	assert.Equal(t, zosmf.KindUnclassified, zosmf.KindOf(err))
	assert.Equal(t, Failed, job.Lifecycle())
	assert.Same(t, err, job.Err())

	_, err = job.Poll(context.Background())
	assert.Equal(t, zosmf.KindInvalidState, zosmf.KindOf(err))
	assert.Equal(t, zosmf.KindInvalidState, zosmf.KindOf(job.Purge(context.Background())))
}

func TestSubmit_InvalidDefinition(t *testing.T) {
	for _, def := range []Definition{{}, {JCL: "//X JOB", File: "/u/x.jcl"}} {
		job, err := Submit(context.Background(), nil, def)
		assert.ErrorIs(t, err, ErrInvalidDefinition)
		assert.Equal(t, Failed, job.Lifecycle())
	}
}

func TestWait_InputActiveOutput(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	calls := statusSequence(m,
		info("INPUT", nil),
		info("ACTIVE", nil),
		info("OUTPUT", strp("CC 0000")),
	)

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	st, err := job.Wait(context.Background(), PollOptions{Backoff: fastBackoff()})
	require.NoError(t, err)

	assert.Equal(t, StateOutput, st.State)
	assert.Equal(t, "CC 0000", st.RetCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, SpoolReady, job.Lifecycle())
}

func TestWait_AbendIsData(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("ACTIVE", nil), info("OUTPUT", strp("ABEND S0C4")))

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	st, err := job.Wait(context.Background(), PollOptions{Backoff: fastBackoff()})
	require.NoError(t, err)
	assert.Equal(t, StateAbend, st.State)
	assert.Equal(t, "S0C4", st.AbendCode)
	assert.Equal(t, SpoolReady, job.Lifecycle())
}

func TestWait_TimeoutStopsPolling(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	calls := statusSequence(m, info("ACTIVE", nil))

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	start := time.Now()
	st, err := job.Wait(context.Background(), PollOptions{
		Backoff: backoff.NewConstantBackOff(10 * time.Millisecond),
		Timeout: 80 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, zosmf.KindTimeout, zosmf.KindOf(err))
	assert.Equal(t, StateActive, st.State)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, Polling, job.Lifecycle())

	// Let an in-flight request that was cancelled at the deadline settle.
	time.Sleep(20 * time.Millisecond)
	after := calls.Load()
	assert.Positive(t, after)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no polls after the deadline")
}

func TestWait_Cancelled(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("INPUT", nil))

	ctx, cancel := context.WithCancel(context.Background())
	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	_, err := job.Wait(ctx, PollOptions{Backoff: backoff.NewConstantBackOff(5 * time.Millisecond)})
	assert.Equal(t, zosmf.KindCancelled, zosmf.KindOf(err))
	assert.Zero(t, m.Requests(http.MethodDelete, statusPath), "cancelling a wait never touches the job")
}

func TestWait_BackoffExhausted(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	calls := statusSequence(m, info("ACTIVE", nil))

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	_, err := job.Wait(context.Background(), PollOptions{Backoff: backoff.WithMaxRetries(fastBackoff(), 2)})
	assert.Equal(t, zosmf.KindTimeout, zosmf.KindOf(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoll_FailureLeavesStateUnchanged(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	var fail atomic.Bool
	m.Handle(http.MethodGet, statusPath, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			ztest.WriteError(w, http.StatusInternalServerError, "IZUG999E", "internal error")
			return
		}
		ztest.WriteJSON(w, http.StatusOK, info("ACTIVE", nil))
	})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	_, err := job.Poll(context.Background())
	require.NoError(t, err)

	fail.Store(true)
	st, err := job.Poll(context.Background())
	assert.Equal(t, zosmf.KindServerFault, zosmf.KindOf(err))
	assert.Equal(t, StateActive, st.State)
	assert.Equal(t, Polling, job.Lifecycle())
}

func TestSpool_RequiresTerminalJob(t *testing.T) {
	job := Attach(nil, Handle{JobID: testJobID, JobName: testJobName})
	_, err := job.Spool(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, zosmf.ErrInvalidState))

	_, err = job.SpoolContent(context.Background(), SpoolFile{ID: 2})
	assert.True(t, errors.Is(err, zosmf.ErrInvalidState))
}

func serveSpool(m *ztest.MockZOSMF, files []SpoolFile, content map[string]string) {
	m.Handle(http.MethodGet, filesPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteJSON(w, http.StatusOK, files)
	})
	for id, text := range content {
		lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
		m.Handle(http.MethodGet, filesPath+"/"+id+"/records", func(w http.ResponseWriter, r *http.Request) {
			var start, end int
			if _, err := fmt.Sscanf(r.Header.Get(zosmf.RecordRangeHeader), "%d-%d", &start, &end); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			if start >= len(lines) {
				return
			}
			end = min(end, len(lines)-1)
			for _, line := range lines[start : end+1] {
				io.WriteString(w, line+"\n")
			}
		})
	}
}

func TestSpoolAndOutput(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("OUTPUT", strp("CC 0000")))

	files := []SpoolFile{
		{ID: 2, DDName: "JESMSGLG", StepName: "JES2", ByteCount: 40, RecordCount: 2},
		{ID: 3, DDName: "JESJCL", StepName: "JES2", ByteCount: 30, RecordCount: 1},
		{ID: 102, DDName: "SYSPRINT", StepName: "STEP1", ByteCount: 200, RecordCount: 5},
	}
	serveSpool(m, files, map[string]string{
		"2":   "J E S 2  J O B  L O G\nIEF403I TESTJOB - STARTED\n",
		"3":   "//TESTJOB JOB (ACCT)\n",
		"102": "LINE 1\nLINE 2\nLINE 3\nLINE 4\nLINE 5\n",
	})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName}, WithSpoolWindow(2), WithConcurrency(2))
	_, err := job.Wait(context.Background(), PollOptions{Backoff: fastBackoff()})
	require.NoError(t, err)

	got, err := job.Spool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, files, got)

	r, err := job.SpoolContent(context.Background(), files[2])
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "LINE 1\nLINE 2\nLINE 3\nLINE 4\nLINE 5\n", string(data))
	assert.Len(t, r.Windows(), 4, "two full windows, one short window, one empty final window")

	var out bytes.Buffer
	require.NoError(t, job.Output(context.Background(), &out))
	want := "--- DD: JESMSGLG (Step: JES2) ---\n" +
		"J E S 2  J O B  L O G\nIEF403I TESTJOB - STARTED\n" +
		"\n--- DD: JESJCL (Step: JES2) ---\n" +
		"//TESTJOB JOB (ACCT)\n" +
		"\n--- DD: SYSPRINT (Step: STEP1) ---\n" +
		"LINE 1\nLINE 2\nLINE 3\nLINE 4\nLINE 5\n"
	assert.Equal(t, want, out.String())
}

func TestOutput_PropagatesFetchFailure(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("OUTPUT", strp("CC 0000")))
	serveSpool(m, []SpoolFile{{ID: 2, DDName: "JESMSGLG"}, {ID: 9, DDName: "GONE"}}, map[string]string{"2": "x\n"})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	_, err := job.Poll(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	err = job.Output(context.Background(), &out)
	assert.Equal(t, zosmf.KindNotFound, zosmf.KindOf(err))
	assert.Equal(t, "--- DD: JESMSGLG (Step: ) ---\nx\n\n--- DD: GONE (Step: ) ---\n", out.String(),
		"files before the failing one are already written")
}

// writeHook calls fn before its first write.
type writeHook struct {
	bytes.Buffer
	fn   func()
	seen bool
}

func (h *writeHook) Write(p []byte) (int, error) {
	if !h.seen {
		h.seen = true
		h.fn()
	}
	return h.Buffer.Write(p)
}

func TestOutput_Streams(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("OUTPUT", strp("CC 0000")))
	files := []SpoolFile{{ID: 2, DDName: "JESMSGLG"}, {ID: 102, DDName: "SYSPRINT"}}
	serveSpool(m, files, map[string]string{"2": "A\nB\nC\n", "102": "D\nE\n"})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName}, WithSpoolWindow(1), WithConcurrency(1))
	_, err := job.Poll(context.Background())
	require.NoError(t, err)

	var laterFetched int
	out := &writeHook{fn: func() {
		laterFetched = m.Requests(http.MethodGet, filesPath+"/102/records")
	}}
	require.NoError(t, job.Output(context.Background(), out))

	assert.Zero(t, laterFetched, "writing starts before the next file is downloaded")
	assert.Equal(t, "--- DD: JESMSGLG (Step: ) ---\nA\nB\nC\n\n--- DD: SYSPRINT (Step: ) ---\nD\nE\n", out.String())
	assert.Equal(t, 4, m.Requests(http.MethodGet, filesPath+"/2/records"))
}

func TestOutput_StopsOnWriterFailure(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	statusSequence(m, info("OUTPUT", strp("CC 0000")))
	files := []SpoolFile{{ID: 2, DDName: "JESMSGLG"}, {ID: 3, DDName: "JESJCL"}, {ID: 102, DDName: "SYSPRINT"}}
	serveSpool(m, files, map[string]string{"2": "A\n", "3": "B\n", "102": "C\n"})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName}, WithConcurrency(2))
	_, err := job.Poll(context.Background())
	require.NoError(t, err)

	err = job.Output(context.Background(), failingWriter{})
	assert.ErrorIs(t, err, errDiskFull)
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

// modifyServer answers job modify requests with the given feedback status
// and records each request body.
func modifyServer(m *ztest.MockZOSMF, status int, message string) *[]map[string]string {
	var bodies []map[string]string
	m.Handle(http.MethodPut, statusPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		ztest.WriteJSON(w, http.StatusOK, feedback{JobID: testJobID, JobName: testJobName, Status: status, Message: message})
	})
	return &bodies
}

func TestModify(t *testing.T) {
	tests := []struct {
		name string
		call func(*Job) error
		want map[string]string
	}{
		{"cancel", func(j *Job) error { return j.Cancel(context.Background()) },
			map[string]string{"request": "cancel", "version": "2.0"}},
		{"hold", func(j *Job) error { return j.Hold(context.Background()) },
			map[string]string{"request": "hold", "version": "2.0"}},
		{"release", func(j *Job) error { return j.Release(context.Background()) },
			map[string]string{"request": "release", "version": "2.0"}},
		{"change class", func(j *Job) error { return j.ChangeClass(context.Background(), "b") },
			map[string]string{"class": "B", "version": "2.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ztest.NewMockZOSMF()
			defer m.Close()
			bodies := modifyServer(m, 0, "")

			job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
			require.NoError(t, tt.call(job))
			require.Len(t, *bodies, 1)
			assert.Equal(t, tt.want, (*bodies)[0])
			assert.Equal(t, Polling, job.Lifecycle())
		})
	}
}

func TestModify_RejectedFeedback(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	modifyServer(m, 4, "job is not held")

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	err := job.Release(context.Background())
	require.Error(t, err)
	assert.Equal(t, zosmf.KindUnclassified, zosmf.KindOf(err))
	assert.Contains(t, err.Error(), "job is not held")
}

func TestModify_ServerError(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodPut, statusPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteError(w, http.StatusNotFound, "IZUG808E", "job not found")
	})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	assert.True(t, errors.Is(job.Cancel(context.Background()), zosmf.ErrNotFound))
}

func TestModify_InvalidState(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodDelete, statusPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteJSON(w, http.StatusOK, feedback{JobID: testJobID, Status: 0})
	})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	require.NoError(t, job.Purge(context.Background()))

	assert.Equal(t, zosmf.KindInvalidState, zosmf.KindOf(job.Cancel(context.Background())))
	assert.Equal(t, zosmf.KindInvalidState, zosmf.KindOf(job.ChangeClass(context.Background(), "")))
	assert.Zero(t, m.Requests(http.MethodPut, statusPath))
}

func TestPurge_Idempotent(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodDelete, statusPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2.0", r.Header.Get(modifyVersionHeader))
		ztest.WriteJSON(w, http.StatusOK, feedback{JobID: testJobID, JobName: testJobName, Status: 0})
	})

	s := newSession(t, m)
	job := Attach(s, Handle{JobID: testJobID, JobName: testJobName})
	require.NoError(t, job.Purge(context.Background()))
	require.NoError(t, job.Purge(context.Background()))
	assert.Equal(t, Terminated, job.Lifecycle())
	assert.Equal(t, 1, m.Requests(http.MethodDelete, statusPath))

	// A second handle to the same, now purged, job.
	m.Handle(http.MethodDelete, statusPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"rc": 4, "reason": 10, "category": 6,
			"message": "No job found for reference: 'TESTJOB(JOB00023)'",
		})
	})
	again := Attach(s, Handle{JobID: testJobID, JobName: testJobName})
	require.NoError(t, again.Purge(context.Background()))
	assert.Equal(t, Terminated, again.Lifecycle())
}

func TestPurge_NotFound(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	require.NoError(t, job.Purge(context.Background()))
	assert.Equal(t, Terminated, job.Lifecycle())
}

func TestPurge_RejectedFeedback(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodDelete, statusPath, func(w http.ResponseWriter, r *http.Request) {
		ztest.WriteJSON(w, http.StatusOK, feedback{JobID: testJobID, Status: 8, Message: "not authorized to purge"})
	})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	err := job.Purge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not authorized to purge")
	assert.Equal(t, Polling, job.Lifecycle())
}

func TestListAndLookup(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	m.Handle(http.MethodGet, jobsPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("jobid") == "JOB99999" {
			ztest.WriteJSON(w, http.StatusOK, []Info{})
			return
		}
		assert.Equal(t, "*", q.Get("owner"))
		ztest.WriteJSON(w, http.StatusOK, []Info{info("OUTPUT", strp("CC 0000"))})
	})
	s := newSession(t, m)

	items, err := List(context.Background(), s, ListOptions{Owner: "*", Prefix: "TEST*"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, testJobID, items[0].JobID)

	got, err := Lookup(context.Background(), s, testJobID)
	require.NoError(t, err)
	assert.Equal(t, testJobName, got.JobName)

	_, err = Lookup(context.Background(), s, "JOB99999")
	assert.True(t, errors.Is(err, zosmf.ErrNotFound))
}

func TestJCL(t *testing.T) {
	m := ztest.NewMockZOSMF()
	defer m.Close()
	serveSpool(m, nil, map[string]string{"JCL": "//TESTJOB JOB\n//STEP1 EXEC PGM=IEFBR14\n"})

	job := Attach(newSession(t, m), Handle{JobID: testJobID, JobName: testJobName})
	r, err := job.JCL(context.Background())
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "//TESTJOB JOB\n//STEP1 EXEC PGM=IEFBR14\n", string(data))
}
