package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anyuan-chen/manga/internal/chapter"
	"github.com/anyuan-chen/manga/internal/seed"
)

func newSeedCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [dir]",
		Short: "Load chapter YAML files into the database",
		Long:  "Loads every chapter YAML file under dir (default MANGA_LIBRARY_SEED_DIR) and upserts its chapters, panels and concepts.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.Library.SeedDir
			if len(args) == 1 {
				dir = args[0]
			}
			withStats, _ := cmd.Flags().GetBool("stats")

			files, err := seed.Load(dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no chapter files found in %s", dir)
			}

			return c.withStore(cmd, func(store backend) error {
				res, err := seed.Apply(cmd.Context(), store, files)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d chapters, %d panels.\n", res.Chapters, res.Panels)

				if !withStats {
					return nil
				}
				updated, err := chapter.NewStats(store).UpdateAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated stats for %d chapters.\n", updated)
				return nil
			})
		},
	}
	cmd.Flags().Bool("stats", false, "Recalculate chapter statistics after seeding")
	return cmd
}
