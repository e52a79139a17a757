package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
)

func historyCmd() *cobra.Command {
	var (
		kind  string
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded operation outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.OperationFilter{
				Kind:  model.OperationKind(kind),
				Limit: limit,
			}
			if since > 0 {
				cutoff := time.Now().Add(-since)
				filter.Since = &cutoff
			}

			records, err := store.GetOperations(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No recorded operations."))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(
				fmt.Sprintf("%-20s %-10s %-22s %-14s %s", "WHEN", "KIND", "STATUS", "TXID", "DETAIL"),
			))
			for _, record := range records {
				detail := record.Err
				if record.Kind == model.OpOptIn {
					detail = fmt.Sprintf("asset %d %s", record.AssetID, detail)
				}
				txID := record.TxID
				if txID == "" {
					txID = "-"
				}
				fmt.Printf("%-20s %-10s %-22s %-14s %s\n",
					record.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					record.Kind,
					cli.FormatStatus(record.Status),
					txID,
					detail,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (donation, opt-in, swap)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this (e.g. 72h)")

	return cmd
}
