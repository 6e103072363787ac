// Package jobs manages the lifecycle of z/OSMF batch jobs: submission,
// status polling, spool retrieval and purge.
package jobs

import (
	"fmt"
	"strconv"
	"strings"
)

const jobsPath = "/zosmf/restjobs/jobs"

// Handle identifies a submitted job.
type Handle struct {
	JobID      string
	JobName    string
	Correlator string
}

func (h Handle) String() string {
	return h.JobName + "(" + h.JobID + ")"
}

// Info is the job document returned by the status, list and submit calls.
type Info struct {
	JobID            string  `json:"jobid"`
	JobName          string  `json:"jobname"`
	Subsystem        string  `json:"subsystem,omitempty"`
	Owner            string  `json:"owner"`
	Status           string  `json:"status"`
	Type             string  `json:"type,omitempty"`
	Class            string  `json:"class"`
	RetCode          *string `json:"retcode"`
	URL              string  `json:"url,omitempty"`
	FilesURL         string  `json:"files-url,omitempty"`
	Correlator       string  `json:"job-correlator,omitempty"`
	Phase            int     `json:"phase,omitempty"`
	PhaseName        string  `json:"phase-name,omitempty"`
	ReasonNotRunning string  `json:"reason-not-running,omitempty"`
}

func (i Info) Handle() Handle {
	return Handle{JobID: i.JobID, JobName: i.JobName, Correlator: i.Correlator}
}

// ReturnCode is the retcode field, empty when the server sent null.
func (i Info) ReturnCode() string {
	if i.RetCode == nil {
		return ""
	}
	return *i.RetCode
}

// State is the server-side job state.
type State string

const (
	StateInput   State = "INPUT"
	StateActive  State = "ACTIVE"
	StateOutput  State = "OUTPUT"
	StateAbend   State = "ABEND"
	StateUnknown State = "UNKNOWN"
)

// Status is one observation of a job. An abended job has State ABEND and
// AbendCode set; it is a normal result, not an error.
type Status struct {
	State     State
	RetCode   string
	AbendCode string
	Phase     string
}

// Terminal reports whether the job has finished and its spool is complete.
func (s Status) Terminal() bool {
	return s.State == StateOutput || s.State == StateAbend
}

// ConditionCode parses "CC nnnn" return codes.
func (s Status) ConditionCode() (int, bool) {
	v, ok := strings.CutPrefix(s.RetCode, "CC ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s Status) String() string {
	switch {
	case s.State == StateAbend:
		return "ABEND " + s.AbendCode
	case s.RetCode != "":
		return string(s.State) + " " + s.RetCode
	default:
		return string(s.State)
	}
}

// StatusOf maps a job document to a Status. Only jobs on the output queue
// are terminal; "ABEND Sxxx" and "ABEND Uxxxx" return codes become ABEND,
// every other return code ("CC 0004", "JCL ERROR", "CANCELED", "SEC ERROR")
// stays OUTPUT with the code preserved.
func StatusOf(i Info) Status {
	st := Status{RetCode: i.ReturnCode(), Phase: i.PhaseName}
	switch strings.ToUpper(i.Status) {
	case "INPUT":
		st.State = StateInput
	case "ACTIVE":
		st.State = StateActive
	case "OUTPUT":
		st.State = StateOutput
		if code, ok := strings.CutPrefix(st.RetCode, "ABEND"); ok {
			st.State = StateAbend
			st.AbendCode = strings.TrimSpace(code)
		}
	default:
		st.State = StateUnknown
	}
	return st
}

// SpoolFile is one output dataset of a job.
type SpoolFile struct {
	ID          int    `json:"id"`
	DDName      string `json:"ddname"`
	StepName    string `json:"stepname"`
	ProcStep    string `json:"procstep"`
	Class       string `json:"class"`
	ByteCount   int64  `json:"byte-count"`
	RecordCount int64  `json:"record-count"`
	RecFm       string `json:"recfm,omitempty"`
	LRecl       int    `json:"lrecl,omitempty"`
}

func (f SpoolFile) String() string {
	return fmt.Sprintf("%s.%s", f.StepName, f.DDName)
}

// Lifecycle is the client-side state of a Job.
type Lifecycle string

const (
	// Submitted: the submit request has not completed.
	Submitted Lifecycle = "submitted"
	// Polling: the server accepted the job and it has not finished.
	Polling Lifecycle = "polling"
	// SpoolReady: the job finished, normally or by abend; spool can be read.
	SpoolReady Lifecycle = "spool_ready"
	// Terminated: the job record was purged.
	Terminated Lifecycle = "terminated"
	// Failed: submission was rejected; there is no remote job.
	Failed Lifecycle = "failed"
)

// feedback is the synchronous response to job modify requests.
type feedback struct {
	JobID        string `json:"jobid"`
	JobName      string `json:"jobname"`
	OriginalID   string `json:"original-jobid"`
	Owner        string `json:"owner"`
	Member       string `json:"member"`
	SysName      string `json:"sysname"`
	Correlator   string `json:"job-correlator"`
	Status       int    `json:"status"`
	InternalCode string `json:"internal-code,omitempty"`
	Message      string `json:"message,omitempty"`
}
