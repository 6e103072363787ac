package cmd

import (
	"fmt"
	"io"
	"os"

	"zm/internal/connection"

	"github.com/spf13/cobra"
)

var (
	workflowStep         string
	workflowResolve      string
	workflowNoSubsequent bool
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Start and inspect z/OSMF workflows",
}

var workflowStartCmd = &cobra.Command{
	Use:   "start <workflow-key>",
	Short: "Start an automated workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowStart,
}

var workflowStatusCmd = &cobra.Command{
	Use:   "status <workflow-key>",
	Short: "Show workflow progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowStatus,
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowStartCmd, workflowStatusCmd)
	workflowStartCmd.Flags().StringVar(&workflowStep, "step", "", "start at this step instead of the first ready one")
	workflowStartCmd.Flags().StringVar(&workflowResolve, "resolve", "", "variable conflict resolution: outputFileValue, existingValue or leaveConflict")
	workflowStartCmd.Flags().BoolVar(&workflowNoSubsequent, "no-subsequent", false, "run only the starting step")
}

func runWorkflowStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "workflow start")
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := connection.WorkflowStart{ResolveConflicts: workflowResolve, Step: workflowStep}
	if cmd.Flags().Changed("no-subsequent") {
		subsequent := !workflowNoSubsequent
		opts.Subsequent = &subsequent
	}
	if err := conn.StartWorkflow(ctx, args[0], opts); err != nil {
		return err
	}
	fmt.Printf("Workflow %s started\n", args[0])
	return nil
}

func runWorkflowStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "workflow status")
	if err != nil {
		return err
	}
	defer conn.Close()

	wf, err := conn.Workflow(ctx, args[0])
	if err != nil {
		return err
	}
	printWorkflow(os.Stdout, wf)
	return nil
}

func printWorkflow(out io.Writer, wf connection.Workflow) {
	fmt.Fprintf(out, "Workflow:  %s\n", wf.Name)
	fmt.Fprintf(out, "Key:       %s\n", wf.Key)
	fmt.Fprintf(out, "Owner:     %s\n", wf.Owner)
	fmt.Fprintf(out, "Status:    %s (%d%%)\n", wf.Status, wf.PercentComplete)
	if wf.System != "" {
		fmt.Fprintf(out, "System:    %s\n", wf.System)
	}
}
