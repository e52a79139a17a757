package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
)

func assetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List the directory's verified assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			assets, fetchErr := eng.VerifiedAssets(cmd.Context())
			if fetchErr != nil {
				// The catalog degrades to empty on failure; surface the
				// cause but keep going so the table stays truthful.
				fmt.Println(cli.FormatWarning(fmt.Sprintf("directory unavailable: %v", fetchErr)))
			}

			if len(assets) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No verified assets to show."))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-12s %-24s %-10s %s", "ID", "NAME", "UNIT", "TIER")))
			for _, asset := range assets {
				fmt.Printf("%-12d %-24s %-10s %s\n", asset.ID, asset.Name, asset.UnitName, cli.FormatTier(asset.Tier))
			}
			return nil
		},
	}
}
