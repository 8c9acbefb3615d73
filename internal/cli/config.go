// internal/cli/config.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the classifier endpoint configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active classifier configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg := store.Get()
			if reveal, _ := cmd.Flags().GetBool("reveal"); !reveal {
				cfg = cfg.Redacted()
			}
			if opts.formatFlag == "text" {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "endpoint: %s\n", cfg.Endpoint)
				fmt.Fprintf(out, "token:    %s\n", cfg.Token)
				fmt.Fprintf(out, "model:    %s\n", cfg.Model)
				fmt.Fprintf(out, "insecure: %t\n", cfg.InsecureSkipVerify)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
	show.Flags().Bool("reveal", false, "Print the token in clear text")

	set := &cobra.Command{
		Use:   "set",
		Short: "Update and persist the classifier configuration",
		Long:  "Only the flags given are changed; pass an empty --endpoint to return to stub mode.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg := store.Get()
			flags := cmd.Flags()
			if flags.Changed("endpoint") {
				cfg.Endpoint, _ = flags.GetString("endpoint")
			}
			if flags.Changed("token") {
				cfg.Token, _ = flags.GetString("token")
			}
			if flags.Changed("model") {
				cfg.Model, _ = flags.GetString("model")
			}
			if flags.Changed("insecure") {
				cfg.InsecureSkipVerify, _ = flags.GetBool("insecure")
			}

			saved, err := store.Update(cfg)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), saved.Redacted())
		},
	}
	set.Flags().String("endpoint", "", "Classifier endpoint URL")
	set.Flags().String("token", "", "Bearer token")
	set.Flags().String("model", "", "Model name sent with each request")
	set.Flags().Bool("insecure", false, "Skip TLS verification for this endpoint")

	cmd.AddCommand(show, set)
	return cmd
}
