package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lehigh-university-libraries/gembooth/internal/modes"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the available transformation modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printModes(cmd.OutOrStdout(), isTerminal(os.Stdout))
		},
	}
}

func printModes(w io.Writer, pretty bool) error {
	list := modes.List()

	if !pretty {
		for _, m := range list {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", m.Key, m.Name, m.Instruction); err != nil {
				return err
			}
		}
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Key", "", "Name", "Instruction"})
	for _, m := range list {
		instruction := m.Instruction
		if m.Key == modes.Custom {
			instruction = "(user supplied)"
		}
		tw.AppendRow(table.Row{m.Key.String(), m.Emoji, m.Name, instruction})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: 60, Align: text.AlignLeft},
	})

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
