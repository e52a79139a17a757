package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

func optInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "opt-in <asset-id>...",
		Short: "Opt the wallet's primary account in to one or more assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetIDs := make([]uint64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseUint(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid asset id %q: %w", arg, err)
				}
				assetIDs = append(assetIDs, id)
			}

			eng, err := connectEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			// Each asset runs independently; one failure must not stop
			// the others.
			results := make(chan error, len(assetIDs))
			for _, id := range assetIDs {
				go func() { results <- eng.OptIn(cmd.Context(), id) }()
			}

			var failed int
			for range assetIDs {
				if err := <-results; err != nil {
					failed++
				}
			}

			for id, status := range eng.Tracker().OptIns() {
				fmt.Printf("asset %d: %s\n", id, cli.FormatStatus(status))
				if record, ok := eng.Tracker().Get(model.OptInKey(id)); ok && record.Err != "" {
					fmt.Println("  " + cli.SubtleStyle.Render(record.Err))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d opt-ins failed", failed, len(assetIDs))
			}
			return nil
		},
	}
}
