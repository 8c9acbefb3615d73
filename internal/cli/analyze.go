// internal/cli/analyze.go
package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Corphon/LiveVision/internal/app"
	"github.com/Corphon/LiveVision/internal/classifier"
	"github.com/Corphon/LiveVision/internal/emotion"
	"github.com/Corphon/LiveVision/internal/services"
	"github.com/Corphon/LiveVision/internal/utils"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <image>...",
		Short: "Run the emotion pipeline on image files",
		Long:  "Locate faces, classify each with the configured endpoint and print the aggregated frame result. Multiple images share one smoothing history, in argument order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cascade, _ := cmd.Flags().GetString("cascade")
			return runAnalyze(cmd, opts, cascade, args)
		},
	}
	cmd.Flags().String("cascade", "", "Pigo face cascade file (default: $FACE_CASCADE_PATH)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *options, cascade string, paths []string) error {
	cfg, store, logger, err := opts.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cascade == "" {
		cascade = cfg.FaceCascadePath
	}

	locator, err := app.NewFaceLocator(cascade, logger)
	if err != nil {
		return err
	}
	c := classifier.New(store, emotion.NewStabilizer(), classifier.WithLogger(logger))
	svc := services.NewVisionService(locator, c, nil, logger)

	for _, path := range paths {
		frame, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		result, err := svc.AnalyzeFrame(cmd.Context(), frame)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", path, err)
		}

		out := cmd.OutOrStdout()
		if opts.formatFlag == "text" {
			fmt.Fprintf(out, "%s: %s (%s) faces=%d counts=%s source=%s\n",
				path, result.EmotionDetail, result.Sentiment, result.FaceCount,
				formatCounts(result.EmotionCounts), result.SentimentSource)
			if result.SentimentError != nil {
				fmt.Fprintf(out, "  error: %s\n", *result.SentimentError)
			}
			continue
		}
		if err := writeJSON(out, result); err != nil {
			return err
		}
	}
	logger.Debug("analyze finished", utils.Fields{"images": len(paths)})
	return nil
}

func formatCounts(counts emotion.Counts) string {
	parts := make([]string, 0, len(counts))
	for e, n := range counts {
		parts = append(parts, fmt.Sprintf("%s:%d", e, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
