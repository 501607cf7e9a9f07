package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quartzsched/quartz/pkg/controlapi"
	"github.com/quartzsched/quartz/pkg/job"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Submit, cancel, or list jobs known to a running quartzd",
}

var jobSubmitCmd = &cobra.Command{
	Use:   "submit JOB_ID",
	Short: "Signal job.status(Null, Reserved) for a job already described in the job-description store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[0], err)
		}
		c, closeFn, err := dialControl(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.SubmitStatus(ctx, jobID, job.Null, job.Reserved); err != nil {
			return err
		}
		fmt.Printf("job %d submitted\n", jobID)
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Signal job.status(old, Cancelled) for a running or pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[0], err)
		}
		from, _ := cmd.Flags().GetString("from")
		old, err := job.ParseState(from)
		if err != nil {
			return err
		}
		c, closeFn, err := dialControl(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.SubmitStatus(ctx, jobID, old, job.Cancelled); err != nil {
			return err
		}
		fmt.Printf("job %d cancelled\n", jobID)
		return nil
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every job the running quartzd knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := dialControl(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		jobs, err := c.ListJobs(ctx)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Printf("%d\t%s\n", j.ID, j.State)
		}
		return nil
	},
}

func init() {
	jobCancelCmd.Flags().String("from", "run-request", "State the job is being cancelled from")
	jobCmd.PersistentFlags().String("control-addr", "127.0.0.1:9631", "quartzd control API address")
	jobCmd.AddCommand(jobSubmitCmd)
	jobCmd.AddCommand(jobCancelCmd)
	jobCmd.AddCommand(jobListCmd)
}

func dialControl(cmd *cobra.Command) (*controlapi.Client, func(), error) {
	addr, _ := cmd.Flags().GetString("control-addr")
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return controlapi.NewClient(conn), func() { conn.Close() }, nil
}
