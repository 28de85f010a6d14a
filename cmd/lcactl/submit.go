package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lca-companion/internal/extract"
	"lca-companion/internal/jobs"
	"lca-companion/internal/router"
)

type submitFlags struct {
	url             string
	text            string
	title           string
	material        string
	recycledPercent float64
	energyKWh       float64
	transportKM     float64
	requireSelenium bool
	mock            bool
	live            bool
	wait            bool
	interval        time.Duration
}

func newSubmitCmd(opts *options) *cobra.Command {
	f := &submitFlags{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a page for analysis",
		Long:  "Fetches --url and submits its extracted text, or submits --text directly. With --wait, polls until the job finishes.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSubmit(cmd, opts, f)
		},
	}
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "Page URL to fetch and analyse")
	cmd.Flags().StringVar(&f.text, "text", "", "Raw page text; skips fetching")
	cmd.Flags().StringVar(&f.title, "title", "", "Page title override")
	cmd.Flags().StringVarP(&f.material, "material", "m", "", "Material override")
	cmd.Flags().Float64Var(&f.recycledPercent, "recycled-percent", 0, "Recycled content percentage")
	cmd.Flags().Float64Var(&f.energyKWh, "energy-kwh", 0, "Manufacturing energy in kWh")
	cmd.Flags().Float64Var(&f.transportKM, "transport-km", 0, "Transport distance in km")
	cmd.Flags().BoolVar(&f.requireSelenium, "require-selenium", false, "Ask the backend to render the page itself")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "Force mock mode")
	cmd.Flags().BoolVar(&f.live, "live", false, "Force a real backend submission")
	cmd.Flags().BoolVarP(&f.wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&f.interval, "interval", 2*time.Second, "Status check interval with --wait")
	return cmd
}

func runSubmit(cmd *cobra.Command, opts *options, f *submitFlags) error {
	if f.mock && f.live {
		return errors.New("--mock and --live are mutually exclusive")
	}
	if f.url == "" && f.text == "" {
		return errors.New("one of --url or --text is required")
	}
	ctx := cmd.Context()

	inputs := jobs.UserInputs{Material: f.material}
	if cmd.Flags().Changed("recycled-percent") {
		inputs.RecycledPercent = &f.recycledPercent
	}
	if cmd.Flags().Changed("energy-kwh") {
		inputs.EnergyKWh = &f.energyKWh
	}
	if cmd.Flags().Changed("transport-km") {
		inputs.TransportKM = &f.transportKM
	}

	var payload jobs.Payload
	if f.text != "" {
		payload = jobs.Payload{URL: f.url, Title: f.title, RawText: f.text, UserInputs: inputs}
	} else {
		page, err := extract.NewFetcher(opts.timeout).FromURL(ctx, f.url)
		if err != nil {
			return err
		}
		payload = page.Payload(inputs)
		if f.title != "" {
			payload.Title = f.title
		}
	}
	payload.Options.RequireSelenium = f.requireSelenium

	req := router.SubmitJob{Payload: payload}
	switch {
	case f.mock:
		req.MockMode = boolPtr(true)
	case f.live:
		req.MockMode = boolPtr(false)
	}

	client := opts.client()
	resp, err := client.Send(ctx, req)
	if err != nil {
		return err
	}
	if !f.wait || !resp.Success || (resp.Job != nil && resp.Job.Status.Terminal()) {
		return emit(cmd.OutOrStdout(), resp)
	}

	final, err := waitForJob(ctx, client, resp.JobID, f.interval)
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), final)
}

func waitForJob(ctx context.Context, client *router.Client, id string, interval time.Duration) (router.Response, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		resp, err := client.Send(ctx, router.GetJobStatus{JobID: id})
		if err != nil {
			return router.Response{}, err
		}
		if !resp.Success {
			return resp, nil
		}
		if resp.Status != nil && resp.Status.Status.Terminal() {
			return resp, nil
		}
		select {
		case <-ctx.Done():
			return router.Response{}, fmt.Errorf("wait for job %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func boolPtr(v bool) *bool { return &v }
