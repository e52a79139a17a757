package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/common"
)

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Link the external wallet and show its addresses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := initEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			addrs, err := eng.Connect(cmd.Context())
			if err != nil {
				return common.NewUserError("could not link wallet (is the wallet bridge running?)", err)
			}

			fmt.Println(cli.RenderBox(
				fmt.Sprintf("Wallet linked on %s", eng.Network()),
				strings.Join(addrs, "\n"),
			))
			return nil
		},
	}
}
