package main

import (
	"github.com/spf13/cobra"

	"lca-companion/internal/router"
	"lca-companion/internal/settings"
)

func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show backend settings (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, opts, router.GetSettings{})
		},
	}

	var in settings.Settings
	set := &cobra.Command{
		Use:   "set",
		Short: "Update backend settings; omitted flags keep their current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := opts.client()
			cur, err := client.Send(cmd.Context(), router.GetSettings{})
			if err != nil {
				return err
			}
			next := settings.Settings{}
			if cur.Settings != nil {
				next = *cur.Settings
			}
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				next.BaseURL = in.BaseURL
			}
			if flags.Changed("api-key") {
				next.APIKey = in.APIKey
			}
			if flags.Changed("mock") {
				next.MockMode = in.MockMode
			}
			if flags.Changed("require-selenium") {
				next.RequireSelenium = in.RequireSelenium
			}
			if flags.Changed("token-url") {
				next.TokenURL = in.TokenURL
			}
			if flags.Changed("client-id") {
				next.ClientID = in.ClientID
			}
			if flags.Changed("client-secret") {
				next.ClientSecret = in.ClientSecret
			}
			resp, err := client.Send(cmd.Context(), router.SaveSettings{Settings: next})
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), resp)
		},
	}
	set.Flags().StringVar(&in.BaseURL, "base-url", "", "Backend base URL")
	set.Flags().StringVar(&in.APIKey, "api-key", "", "Backend API key")
	set.Flags().BoolVar(&in.MockMode, "mock", false, "Default to mock mode")
	set.Flags().BoolVar(&in.RequireSelenium, "require-selenium", false, "Always ask for backend rendering")
	set.Flags().StringVar(&in.TokenURL, "token-url", "", "OAuth2 token URL for the client-credentials grant")
	set.Flags().StringVar(&in.ClientID, "client-id", "", "OAuth2 client id")
	set.Flags().StringVar(&in.ClientSecret, "client-secret", "", "OAuth2 client secret")

	cmd.AddCommand(set)
	return cmd
}
