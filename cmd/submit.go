package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"zm/internal/connection"
	"zm/internal/jobs"
)

var (
	submitWait    bool
	submitTimeout time.Duration
	submitPurge   bool
	submitOutput  bool
	submitClass   string
	submitSymbols map[string]string
)

var submitCmd = &cobra.Command{
	Use:   "submit <dataset(member)> | <uss-path> | <local-file>",
	Short: "Submit JCL for execution",
	Long: `Submit JCL from a local file, a PDS member or a USS file.

Local files are sent inline. Members and USS files are read by the
server's internal reader, so they never pass through this machine.

Examples:
  zm submit build.jcl --wait
  zm submit 'USER.JCL(BUILD)' --wait --output --purge
  zm submit /u/user/nightly.jcl --symbol ENV=PROD`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait for job to complete")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 0, "give up waiting after this long (default: profile poll_timeout, none if unset)")
	submitCmd.Flags().BoolVar(&submitPurge, "purge", false, "purge the job after it completes (requires --wait)")
	submitCmd.Flags().BoolVarP(&submitOutput, "output", "o", false, "print job output after it completes (requires --wait)")
	submitCmd.Flags().StringVar(&submitClass, "class", "", "internal reader job class")
	submitCmd.Flags().StringToStringVar(&submitSymbols, "symbol", nil, "JCL symbol NAME=VALUE (repeatable)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if (submitPurge || submitOutput) && !submitWait {
		return fmt.Errorf("--output and --purge require --wait")
	}

	def, err := jobDefinition(args[0])
	if err != nil {
		return err
	}
	def.Class = submitClass
	def.Symbols = submitSymbols

	ctx := cmd.Context()
	profile, conn, err := openZOSMF(ctx, "submit")
	if err != nil {
		return err
	}
	defer conn.Close()

	j, err := conn.Submit(ctx, def)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s submitted\n", j.Handle())

	if !submitWait {
		return nil
	}

	timeout := submitTimeout
	if timeout == 0 {
		timeout = profile.PollTimeout
	}
	st, err := waitForJob(ctx, conn, j, timeout)
	if err != nil {
		return err
	}

	if submitOutput {
		if err := j.Output(ctx, os.Stdout); err != nil {
			return err
		}
	}
	if submitPurge {
		if err := j.Purge(ctx); err != nil {
			return err
		}
		fmt.Printf("Job %s purged\n", j.Handle())
	}
	return jobResult(j.Handle(), st)
}

// jobDefinition picks the submit source: an existing local file is sent
// inline, an absolute path is a USS file, anything else must be a member.
func jobDefinition(source string) (jobs.Definition, error) {
	data, err := os.ReadFile(source)
	if err == nil {
		return jobs.Definition{JCL: string(data)}, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return jobs.Definition{}, fmt.Errorf("failed to read %s: %w", source, err)
	}

	if strings.HasPrefix(source, "/") {
		return jobs.Definition{File: source}, nil
	}

	dataset, member, err := parseDSN(source)
	if err != nil {
		return jobs.Definition{}, err
	}
	return jobs.Definition{Dataset: fmt.Sprintf("%s(%s)", strings.ToUpper(dataset), strings.ToUpper(member))}, nil
}

func waitForJob(ctx context.Context, conn *connection.ZOSMFConnection, j *jobs.Job, timeout time.Duration) (jobs.Status, error) {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr),
		spinner.WithHiddenCursor(true))
	s.Suffix = fmt.Sprintf(" waiting for %s", j.Handle())
	s.Start()
	st, err := j.Wait(ctx, conn.PollOptions(timeout))
	s.Stop()
	if err != nil {
		return st, fmt.Errorf("stopped waiting for %s (last status %s): %w", j.Handle(), st, err)
	}
	return st, nil
}

// jobResult prints the final status and turns a failed job into an error
// so the exit code reflects it.
func jobResult(h jobs.Handle, st jobs.Status) error {
	rc := st.String()
	fmt.Printf("Job %s completed: %s\n", h, rc)

	if st.State == jobs.StateAbend {
		return fmt.Errorf("job ended with %s", rc)
	}
	if _, ok := st.ConditionCode(); !ok && st.RetCode != "" {
		return fmt.Errorf("job ended with %s", st.RetCode)
	}
	return nil
}
