package main

import (
	"github.com/spf13/cobra"

	"lca-companion/internal/router"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, router.GetJobStatus{JobID: args[0]})
		},
	}
}

func newCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(cmd, opts, router.CancelJob{JobID: args[0]})
		},
	}
}

func newJobsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List stored jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, opts, router.ListJobs{})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "delete <job-id>",
			Short: "Delete one job record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return send(cmd, opts, router.DeleteJob{JobID: args[0]})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every job record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return send(cmd, opts, router.ClearJobs{})
			},
		},
	)
	return cmd
}

func newMockCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mock",
		Short: "Print the canned mock result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, opts, router.GetMockResponse{})
		},
	}
}

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured backend answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, opts, router.PingBackend{})
		},
	}
}

func send(cmd *cobra.Command, opts *options, req router.Request) error {
	resp, err := opts.client().Send(cmd.Context(), req)
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), resp)
}
