package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/batch"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
	"github.com/spf13/cobra"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var datasetPath string
	var outputDir string
	var custom string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Transform a list of images and write a YAML report",
		Long: `Reads a frame list and pushes every frame through one booth session.

The frame list is a .parquet or .jsonl file with the columns "path" and
"mode" (optional, defaults to the previous frame's mode). Transformed images
and a batch-<timestamp>.yaml report are written to the output directory.
At most provider.max_in_flight transformations run at once.`,
		Example: `  # Transform the frames listed in frames.jsonl
  gembooth batch --dataset frames.jsonl --output ./results

  # Parquet input with a custom instruction for rows using mode "custom"
  gembooth batch --dataset frames.parquet --custom "Make it look like a Lego figure"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(datasetPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", datasetPath)
			}

			frames, err := batch.NewLoader(datasetPath).Load()
			if err != nil {
				return err
			}

			sessionOpts, err := sessionOptions(opts.cfg)
			if err != nil {
				return err
			}
			s := session.New(sessionOpts)
			defer s.Close(context.Background())

			if err := s.SetCustomInstruction(custom); err != nil {
				return err
			}

			started := time.Now()
			results, err := batch.Run(cmd.Context(), s, frames, outputDir)
			if err != nil {
				return err
			}

			reportPath, err := batch.SaveReport(batch.ReportConfig{
				Provider:          opts.cfg.Provider.Name,
				Model:             sessionOpts.Model,
				Dataset:           datasetPath,
				CustomInstruction: custom,
			}, results, outputDir)
			if err != nil {
				return err
			}

			summary := batch.Summary(results)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d frames in %s: %d done, %d failed, %d skipped\n",
				len(results), time.Since(started).Round(time.Second),
				summary["done"], summary["failed"], summary[batch.StatusSkipped])
			fmt.Fprintf(cmd.OutOrStdout(), "Report saved to: %s\n", reportPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to frame list (.parquet or .jsonl)")
	cmd.Flags().StringVar(&outputDir, "output", "./booth_results", "Output directory for images and report")
	cmd.Flags().StringVar(&custom, "custom", "", "Instruction used by frames in custom mode (custom frames are skipped without it)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}
