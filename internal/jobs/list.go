package jobs

import (
	"context"
	"net/http"
	"strconv"

	"zm/internal/zosmf"
)

// ListOptions filters a job listing. Empty fields are not sent, so the server
// defaults apply (owner = the authenticated user, prefix = "*").
type ListOptions struct {
	Owner   string
	Prefix  string
	JobID   string
	MaxJobs int
}

// List returns the jobs matching opts.
func List(ctx context.Context, d zosmf.Doer, opts ListOptions) ([]Info, error) {
	req := zosmf.NewRequest(http.MethodGet, jobsPath)
	if opts.Owner != "" {
		req = req.WithQuery("owner", opts.Owner)
	}
	if opts.Prefix != "" {
		req = req.WithQuery("prefix", opts.Prefix)
	}
	if opts.JobID != "" {
		req = req.WithQuery("jobid", opts.JobID)
	}
	if opts.MaxJobs > 0 {
		req = req.WithQuery("max-jobs", strconv.Itoa(opts.MaxJobs))
	}
	return zosmf.Execute[[]Info](ctx, d, req)
}

// Lookup finds a job by id across all owners.
func Lookup(ctx context.Context, d zosmf.Doer, jobID string) (Info, error) {
	items, err := List(ctx, d, ListOptions{Owner: "*", JobID: jobID})
	if err != nil {
		return Info{}, err
	}
	if len(items) == 0 {
		return Info{}, &zosmf.Error{
			Kind:    zosmf.KindNotFound,
			Op:      "lookup job",
			Message: "job " + jobID + " not found",
		}
	}
	return items[0], nil
}
