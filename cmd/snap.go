package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/modes"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
	"github.com/spf13/cobra"
)

func newSnapCmd(opts *rootOptions) *cobra.Command {
	var mode string
	var custom string
	var output string

	cmd := &cobra.Command{
		Use:   "snap <image>",
		Short: "Transform a single image",
		Long: `Runs one image through the booth pipeline and writes the transformed result.

Use --mode custom together with --custom to supply your own instruction.`,
		Example: `  # Cartoon version of a photo
  gembooth snap me.jpg --mode cartoon

  # Custom instruction
  gembooth snap me.jpg --mode custom --custom "Make it look like a Renaissance painting" -o out.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := modes.ParseKey(mode)
			if err != nil {
				return err
			}
			if key == modes.Custom && strings.TrimSpace(custom) == "" {
				return errors.New("--custom is required with --mode custom")
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			payload, err := images.Validate(models.Payload{Data: data})
			if err != nil {
				return err
			}

			sessionOpts, err := sessionOptions(opts.cfg)
			if err != nil {
				return err
			}
			s := session.New(sessionOpts)
			defer s.Close(context.Background())

			if err := s.SetMode(key); err != nil {
				return err
			}
			if err := s.SetCustomInstruction(custom); err != nil {
				return err
			}

			task, err := s.Snap(payload)
			if err != nil {
				return err
			}
			result, err := task.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if result.Err != nil {
				return result.Err
			}

			out, ok := s.Output(task.ID())
			if !ok {
				return fmt.Errorf("no output for photo %s", task.ID())
			}
			if output == "" {
				base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				output = base + "-" + key.String() + images.Extension(out.MIMEType)
			}
			if err := os.WriteFile(output, out.Data, 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", modes.Default().String(), "Transformation mode (see 'gembooth modes')")
	cmd.Flags().StringVar(&custom, "custom", "", "Instruction for --mode custom")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <image>-<mode>.<ext>)")

	return cmd
}
