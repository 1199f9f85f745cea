package main

import (
	"context"

	"github.com/spf13/cobra"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Maintain the cross-reference graph",
}

var linksRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute outgoing links for every article",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		services, closeCache, err := buildServices(ctx, db)
		if err != nil {
			return err
		}
		defer closeCache()

		updated, err := services.Article.RebuildOutgoingLinks(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("updated", updated).Msg("Outgoing links rebuilt")
		cmd.Printf("Updated %d articles\n", updated)
		return nil
	},
}

func init() {
	linksCmd.AddCommand(linksRebuildCmd)
	rootCmd.AddCommand(linksCmd)
}
