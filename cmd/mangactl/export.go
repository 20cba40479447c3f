package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anyuan-chen/manga/internal/report"
)

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a learner's chapter progress as an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			learner, _ := cmd.Flags().GetString("learner")
			chapterID, _ := cmd.Flags().GetString("chapter")
			out, _ := cmd.Flags().GetString("out")

			return c.withStore(cmd, func(store backend) error {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := report.Write(cmd.Context(), f, store, learner, chapterID); err != nil {
					f.Close()
					os.Remove(out)
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s.\n", out)
				return nil
			})
		},
	}
	cmd.Flags().String("learner", "", "Learner id")
	cmd.Flags().String("chapter", "", "Chapter id")
	cmd.Flags().String("out", "progress.xlsx", "Output file")
	_ = cmd.MarkFlagRequired("learner")
	_ = cmd.MarkFlagRequired("chapter")
	return cmd
}
