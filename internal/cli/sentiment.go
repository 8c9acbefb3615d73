// internal/cli/sentiment.go
package cli

import (
	"fmt"
	"strings"

	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/spf13/cobra"
)

func newSentimentCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sentiment <text>...",
		Short: "Classify free text as positive, negative or neutral",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := emotion.TextSentiment(strings.Join(args, " "))
			if opts.formatFlag == "text" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), label)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"sentiment": string(label)})
		},
	}
}
