package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/tui"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live operation dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := connectEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			return tui.Run(cmd.Context(), eng)
		},
	}
}
