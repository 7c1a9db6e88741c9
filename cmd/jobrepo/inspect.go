package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/instance"
	"github.com/xraph/jobrepo/status"
)

func newInstancesCmd(a *app) *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "instances <job-name>",
		Short: "List instances of a job, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			insts, err := a.repo.ListInstances(cmd.Context(), args[0], instance.ListOpts{Offset: offset, Limit: limit})
			if err != nil {
				return err
			}
			out := stdout(cmd)
			if len(insts) == 0 {
				fmt.Fprintln(out, "No instances found.")
				return nil
			}
			for _, inst := range insts {
				fmt.Fprintf(out, "%d | %s | %s | %s\n",
					inst.ID, inst.JobName, inst.JobKey, formatTime(&inst.CreatedAt))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many instances")
	cmd.Flags().IntVar(&limit, "limit", 20, "return at most this many instances (0 = all)")
	return cmd
}

func newExecutionsCmd(a *app) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "executions <instance-id>",
		Short: "List executions of an instance, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var execs []*execution.JobExecution
			if state != "" {
				st, perr := status.Parse(state)
				if perr != nil {
					return fmt.Errorf("%w: %v", jobrepo.ErrInvalidArgument, perr)
				}
				execs, err = a.repo.FindExecutionsByInstanceAndStatus(cmd.Context(), id, st)
			} else {
				execs, err = a.repo.FindExecutionsByInstance(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			printExecutions(stdout(cmd), execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "status", "", "filter by status (STARTING, STARTED, STOPPING, STOPPED, COMPLETED, FAILED, ABANDONED, UNKNOWN)")
	return cmd
}

func newStepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "steps <execution-id>",
		Short: "List the steps of a job execution in start order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			steps, err := a.repo.FindStepExecutionsByJobExecution(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := stdout(cmd)
			if len(steps) == 0 {
				fmt.Fprintln(out, "No steps found.")
				return nil
			}
			for _, se := range steps {
				fmt.Fprintf(out, "%d | %-20s | %-10s | start=%s end=%s | read=%d write=%d commit=%d skip=%d | %s\n",
					se.ID, se.StepName, se.Status, formatTime(se.StartTime), formatTime(se.EndTime),
					se.ReadCount, se.WriteCount, se.CommitCount, se.SkipCount(), se.ExitCode)
			}
			return nil
		},
	}
}

func printExecutions(out io.Writer, execs []*execution.JobExecution) {
	if len(execs) == 0 {
		fmt.Fprintln(out, "No executions found.")
		return
	}
	for _, e := range execs {
		fmt.Fprintf(out, "%d | instance=%d | %-10s | start=%s end=%s | %s\n",
			e.ID, e.JobInstanceID, e.Status, formatTime(e.StartTime), formatTime(e.EndTime), e.ExitCode)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", jobrepo.ErrInvalidArgument, s)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
