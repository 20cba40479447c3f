package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anyuan-chen/manga/internal/chapter"
	"github.com/anyuan-chen/manga/internal/manga"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [chapterId]",
		Short: "Recalculate and store chapter statistics",
		Long:  "Recalculates one chapter's statistics, or every chapter's when no id is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(store backend) error {
				stats := chapter.NewStats(store)
				if len(args) == 0 {
					updated, err := stats.UpdateAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Updated stats for %d chapters.\n", updated)
					return nil
				}

				s, err := stats.Update(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), args[0], s)
				return nil
			})
		},
	}
}

func printStats(w io.Writer, chapterID string, s manga.ChapterStats) {
	level := "unknown"
	if s.PredictedJLPT != nil {
		level = fmt.Sprintf("N%.1f", *s.PredictedJLPT)
	}
	fmt.Fprintf(w, "Chapter %s\n", chapterID)
	fmt.Fprintf(w, "  Panels:      %d\n", s.PanelCount)
	fmt.Fprintf(w, "  Characters:  %d\n", s.TotalCharacters)
	fmt.Fprintf(w, "  Words:       %d\n", s.UniqueWords)
	fmt.Fprintf(w, "  Grammar:     %d\n", s.UniqueGrammar)
	fmt.Fprintf(w, "  Predicted:   %s\n", level)
}
