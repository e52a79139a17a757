package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/model"
)

func swapCmd() *cobra.Command {
	var (
		counterparty string
		assetA       uint64
		assetB       uint64
		amountA      uint64
		amountB      uint64
	)

	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Execute a two-party atomic asset swap",
		Long: `Builds one atomic group carrying both swap legs, collects both
signatures through the wallet, and submits the group so it settles
all-or-nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := connectEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			params, err := swapParamsFromFlags(eng, counterparty, assetA, assetB, amountA, amountB)
			if err != nil {
				return err
			}

			return runTracked(eng, model.KeySwap, func() error {
				return eng.Swap(cmd.Context(), params)
			})
		},
	}

	cmd.Flags().StringVar(&counterparty, "counterparty", "", "counterparty address (required)")
	cmd.Flags().Uint64Var(&assetA, "asset-a", 0, "asset sent by this wallet (required)")
	cmd.Flags().Uint64Var(&assetB, "asset-b", 0, "asset received from the counterparty (required)")
	cmd.Flags().Uint64Var(&amountA, "amount-a", 0, "amount of asset-a to send (required)")
	cmd.Flags().Uint64Var(&amountB, "amount-b", 0, "amount of asset-b to receive (required)")
	_ = cmd.MarkFlagRequired("counterparty")
	_ = cmd.MarkFlagRequired("asset-a")
	_ = cmd.MarkFlagRequired("asset-b")
	_ = cmd.MarkFlagRequired("amount-a")
	_ = cmd.MarkFlagRequired("amount-b")

	return cmd
}
