package main

import (
	"github.com/spf13/cobra"

	"lca-companion/internal/extract"
	"lca-companion/internal/jobs"
)

func newExtractCmd(opts *options) *cobra.Command {
	var material string
	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Print the payload that submit would send for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := extract.NewFetcher(opts.timeout).FromURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), page.Payload(jobs.UserInputs{Material: material}))
		},
	}
	cmd.Flags().StringVarP(&material, "material", "m", "", "Material override")
	return cmd
}
