// Package main provides lcactl, a command line client for the LCA companion.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lca-companion/internal/router"
)

type options struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *options) client() *router.Client {
	return router.NewClient(o.server, o.token, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "lcactl",
		Short:         "LCA companion command line client",
		Long:          "lcactl submits pages for life-cycle analysis and inspects jobs held by a running companion service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("LCA_COMPANION_URL", "http://127.0.0.1:8787"), "Companion base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("LCA_LOCAL_TOKEN"), "Companion access token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request timeout")

	root.AddCommand(
		newSubmitCmd(opts),
		newStatusCmd(opts),
		newCancelCmd(opts),
		newJobsCmd(opts),
		newMockCmd(opts),
		newPingCmd(opts),
		newExtractCmd(opts),
		newSettingsCmd(opts),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// emit prints resp as indented JSON and turns an unsuccessful reply into an error.
func emit(w io.Writer, resp router.Response) error {
	if err := printJSON(w, resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(resp.Error)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
