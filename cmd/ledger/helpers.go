package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-ledger-must-settle/internal/cli"
	"github.com/Veraticus/the-ledger-must-settle/internal/common"
	"github.com/Veraticus/the-ledger-must-settle/internal/config"
	"github.com/Veraticus/the-ledger-must-settle/internal/engine"
	"github.com/Veraticus/the-ledger-must-settle/internal/model"
	"github.com/Veraticus/the-ledger-must-settle/internal/network"
	"github.com/Veraticus/the-ledger-must-settle/internal/service"
	"github.com/Veraticus/the-ledger-must-settle/internal/storage"
	"github.com/Veraticus/the-ledger-must-settle/internal/txbuilder"
	"github.com/Veraticus/the-ledger-must-settle/internal/wallet"
)

// defaultBridgeURL is where the wallet bridge daemon listens unless the
// config overrides it.
const defaultBridgeURL = "http://localhost:9823"

// initHistory opens the operation-history database with proper path
// expansion and brings its schema up to date.
func initHistory(ctx context.Context) (service.HistoryStore, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine wires the full engine: bridge signer, node and directory
// clients for the configured network, and the history ledger.
func initEngine(ctx context.Context) (*engine.Engine, error) {
	net, err := network.Parse(viper.GetString("network"))
	if err != nil {
		return nil, err
	}

	bridgeURL := viper.GetString("wallet.bridge_url")
	if bridgeURL == "" {
		bridgeURL = defaultBridgeURL
	}

	history, err := initHistory(ctx)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{Network: net}, engine.Dependencies{
		Signer:  wallet.NewBridgeSigner(bridgeURL),
		History: history,
	})
	if err != nil {
		_ = history.Close()
		return nil, err
	}

	return eng, nil
}

// connectEngine initializes the engine and links the wallet session.
func connectEngine(ctx context.Context) (*engine.Engine, error) {
	eng, err := initEngine(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := eng.Connect(ctx); err != nil {
		_ = eng.Close()
		return nil, common.NewUserError("could not link wallet (is the wallet bridge running?)", err)
	}

	return eng, nil
}

// runTracked executes one engine operation while rendering its lifecycle
// as a progress bar, one tick per status step.
func runTracked(eng *engine.Engine, key model.OperationKey, op func() error) error {
	updates := eng.Tracker().Subscribe()
	bar := cli.ConfirmationBar(os.Stderr, model.StatusConfirmed.Step())

	done := make(chan error, 1)
	go func() { done <- op() }()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range updates {
			if record, ok := eng.Tracker().Get(key); ok {
				_ = bar.Set(record.Status.Step())
			}
		}
	}()

	err := <-done
	eng.Tracker().Close()
	wg.Wait()
	_ = bar.Finish()

	if record, ok := eng.Tracker().Get(key); ok {
		printOutcome(record)
	}
	return err
}

// printOutcome renders the terminal record of a finished operation.
func printOutcome(record model.OperationRecord) {
	switch record.Status {
	case model.StatusConfirmed:
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s confirmed (tx %s)", record.Kind, record.TxID)))
	case model.StatusFailed:
		msg := record.Err
		if record.TxID != "" {
			msg = fmt.Sprintf("%s (tx %s)", msg, record.TxID)
		}
		fmt.Println(cli.FormatError(fmt.Sprintf("%s failed: %s", record.Kind, msg)))
	default:
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%s ended in state %s", record.Kind, record.Status)))
	}
}

// swapParamsFromFlags assembles swap parameters from the command flags,
// using the session's primary address as the sender.
func swapParamsFromFlags(eng *engine.Engine, counterparty string, assetA, assetB, amountA, amountB uint64) (txbuilder.SwapParams, error) {
	addrs := eng.Addresses()
	if len(addrs) == 0 {
		return txbuilder.SwapParams{}, common.ErrNotConnected
	}

	return txbuilder.SwapParams{
		Sender:       addrs[0],
		Counterparty: counterparty,
		AssetA:       assetA,
		AssetB:       assetB,
		AmountA:      amountA,
		AmountB:      amountB,
	}, nil
}
