package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/txbuilder"
)

func donateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "donate",
		Short: "Send the fixed donation payment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := connectEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			fmt.Println(cli.FormatInfo(fmt.Sprintf(
				"Donating %d microunits to %s…",
				txbuilder.DonationAmount, txbuilder.DonationReceiver[:8],
			)))

			return runTracked(eng, model.KeyDonation, func() error {
				return eng.Donate(cmd.Context())
			})
		},
	}
}
