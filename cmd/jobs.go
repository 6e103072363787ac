package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"zm/internal/jobs"

	"github.com/spf13/cobra"
)

var (
	jobsOwner  string
	jobsPrefix string
	jobsMax    int
	jobsOutput bool
	jobsSpool  bool
	jobsPurge  bool
	jobsJCL    bool

	jobsCancel  bool
	jobsHold    bool
	jobsRelease bool
	jobsClass   string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [jobid]",
	Short: "List jobs or show job status/output",
	Long: `List jobs for current user, or show status/output of a specific job.

Examples:
  zm jobs --owner '*' --prefix 'BUILD*'
  zm jobs JOB01234 --spool
  zm jobs JOB01234 --output --purge
  zm jobs JOB01234 --hold
  zm jobs JOB01234 --class B --release`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().StringVar(&jobsOwner, "owner", "", "filter by owner (default: current user, use '*' for all)")
	jobsCmd.Flags().StringVar(&jobsPrefix, "prefix", "", "filter by job name prefix (default: *)")
	jobsCmd.Flags().IntVar(&jobsMax, "max", 0, "maximum number of jobs to list")
	jobsCmd.Flags().BoolVarP(&jobsOutput, "output", "o", false, "show job output (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsSpool, "spool", false, "list spool files (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsJCL, "jcl", false, "show the JCL as submitted (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsPurge, "purge", false, "purge the job (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsCancel, "cancel", false, "cancel the job, keeping its output (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsHold, "hold", false, "hold a queued job (requires jobid)")
	jobsCmd.Flags().BoolVar(&jobsRelease, "release", false, "release a held job (requires jobid)")
	jobsCmd.Flags().StringVar(&jobsClass, "class", "", "move a queued job to another class (requires jobid)")
	jobsCmd.MarkFlagsMutuallyExclusive("hold", "release")
	jobsCmd.MarkFlagsMutuallyExclusive("cancel", "hold")
}

type jobModification struct {
	verb string
	run  func(*jobs.Job, context.Context) error
}

// jobModifications lists the requested modify operations in the order they
// are sent. A class change comes before release so the job starts in the
// new class.
func jobModifications(cancel, hold, release bool, class string) []jobModification {
	var mods []jobModification
	if class != "" {
		mods = append(mods, jobModification{"moved to class " + class, func(j *jobs.Job, ctx context.Context) error {
			return j.ChangeClass(ctx, class)
		}})
	}
	if hold {
		mods = append(mods, jobModification{"held", (*jobs.Job).Hold})
	}
	if release {
		mods = append(mods, jobModification{"released", (*jobs.Job).Release})
	}
	if cancel {
		mods = append(mods, jobModification{"cancelled", (*jobs.Job).Cancel})
	}
	return mods
}

func runJobs(cmd *cobra.Command, args []string) error {
	mods := jobModifications(jobsCancel, jobsHold, jobsRelease, jobsClass)
	if len(args) == 0 && (jobsOutput || jobsSpool || jobsPurge || jobsJCL || len(mods) > 0) {
		return fmt.Errorf("--output, --spool, --jcl, --purge and the modify flags require a jobid")
	}

	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "jobs")
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(args) == 0 {
		items, err := conn.ListJobs(ctx, jobs.ListOptions{Owner: jobsOwner, Prefix: jobsPrefix, MaxJobs: jobsMax})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No jobs found")
			return nil
		}
		printJobList(os.Stdout, items)
		return nil
	}

	j, err := conn.Job(ctx, args[0])
	if err != nil {
		return err
	}

	switch {
	case jobsJCL:
		r, err := j.JCL(ctx)
		if err != nil {
			return err
		}
		if _, err := io.Copy(os.Stdout, r); err != nil {
			return err
		}
	case jobsSpool:
		files, err := j.Spool(ctx)
		if err != nil {
			return err
		}
		printSpoolFiles(os.Stdout, files)
	case jobsOutput:
		if err := j.Output(ctx, os.Stdout); err != nil {
			return err
		}
	case !jobsPurge && len(mods) == 0:
		printJobDetail(os.Stdout, j)
	}

	for _, m := range mods {
		if err := m.run(j, ctx); err != nil {
			return err
		}
		fmt.Printf("Job %s %s\n", j.Handle(), m.verb)
	}

	if jobsPurge {
		if err := j.Purge(ctx); err != nil {
			return err
		}
		fmt.Printf("Job %s purged\n", j.Handle())
	}
	return nil
}

func printJobList(out io.Writer, items []jobs.Info) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOBNAME\tJOBID\tOWNER\tSTATUS\tRC")
	for _, j := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.JobName, j.JobID, j.Owner, j.Status, j.ReturnCode())
	}
	w.Flush()
}

func printJobDetail(out io.Writer, j *jobs.Job) {
	h := j.Handle()
	st := j.Status()
	fmt.Fprintf(out, "Job ID:    %s\n", h.JobID)
	fmt.Fprintf(out, "Job Name:  %s\n", h.JobName)
	fmt.Fprintf(out, "Status:    %s\n", st.State)
	if st.RetCode != "" {
		fmt.Fprintf(out, "Return:    %s\n", st.RetCode)
	}
	if st.Phase != "" {
		fmt.Fprintf(out, "Phase:     %s\n", st.Phase)
	}
}

func printSpoolFiles(out io.Writer, files []jobs.SpoolFile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTEP\tPROCSTEP\tDDNAME\tCLASS\tRECORDS")
	for _, f := range files {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", f.ID, f.StepName, f.ProcStep, f.DDName, f.Class, f.RecordCount)
	}
	w.Flush()
}
