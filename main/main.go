// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/holiman/uint256"

	"github.com/ava-labs/devchainvm/devchainvm"

	log "github.com/inconshreveable/log15"
)

// weiPerCoin converts the whole-coin balance flag into wei.
var weiPerCoin = uint256.NewInt(1_000_000_000_000_000_000)

func main() {
	config, err := getConfig()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if config.PrintVersion {
		fmt.Printf("%s@%s\n", devchainvm.Name, devchainvm.Version)
		os.Exit(0)
	}

	logLevel, err := log.LvlFromString(config.LogLevel)
	if err != nil {
		fmt.Printf("invalid log level %q: %s\n", config.LogLevel, err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(logLevel, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	genesisBytes, err := buildGenesis(config)
	if err != nil {
		log.Error("failed to build genesis", "err", err)
		os.Exit(1)
	}

	vm := &devchainvm.VM{}
	if err := vm.Initialize(memdb.New(), genesisBytes); err != nil {
		log.Error("failed to initialize vm", "err", err)
		os.Exit(1)
	}

	handlers, err := vm.CreateHandlers()
	if err != nil {
		log.Error("failed to create handlers", "err", err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		if path == "" {
			path = "/"
		}
		mux.Handle(path, handler)
	}

	if config.GenesisFile == "" {
		for i := 0; i < int(config.Accounts); i++ {
			log.Info("dev account", "index", i, "address", devchainvm.FormatAddress(devchainvm.DevAddress(i)))
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.HTTPHost, config.HTTPPort),
		Handler: mux,
	}

	stop := make(chan struct{})
	if config.BlockTime > 0 {
		go mineOnInterval(vm, config.BlockTime, stop)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		log.Error("server stopped", "err", err)
	}

	close(stop)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("failed to stop server", "err", err)
	}
	if err := vm.Shutdown(); err != nil {
		log.Error("failed to stop vm", "err", err)
	}
}

// mineOnInterval mines one block every [blockTime] until [stop] closes.
func mineOnInterval(vm *devchainvm.VM, blockTime time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := vm.Mine(1, 0); err != nil {
				log.Error("periodic mine failed", "err", err)
			}
		case <-stop:
			return
		}
	}
}

// buildGenesis loads the genesis file when one is named, otherwise builds
// the default dev allocation from flags.
func buildGenesis(config Config) ([]byte, error) {
	if config.GenesisFile != "" {
		genesisBytes, err := os.ReadFile(config.GenesisFile)
		if err != nil {
			return nil, err
		}
		if _, err := devchainvm.ParseGenesis(genesisBytes); err != nil {
			return nil, err
		}
		return genesisBytes, nil
	}
	balance := new(uint256.Int).Mul(uint256.NewInt(config.Balance), weiPerCoin)
	genesis := devchainvm.DefaultGenesis(
		config.ChainID,
		int(config.Accounts),
		balance,
		uint256.NewInt(config.GasPrice),
	)
	return genesis.Bytes()
}
