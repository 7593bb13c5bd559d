// (c) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	httpHostKey    = "http-host"
	httpPortKey    = "http-port"
	chainIDKey     = "chain-id"
	accountsKey    = "accounts"
	balanceKey     = "balance"
	gasPriceKey    = "gas-price"
	blockTimeKey   = "block-time"
	genesisFileKey = "genesis-file"
	logLevelKey    = "log-level"
	versionKey     = "version"
)

// Config holds the node settings read from flags and environment.
type Config struct {
	HTTPHost     string
	HTTPPort     uint
	ChainID      uint64
	Accounts     uint
	Balance      uint64
	GasPrice     uint64
	BlockTime    time.Duration
	GenesisFile  string
	LogLevel     string
	PrintVersion bool
}

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("devchainvm", flag.ContinueOnError)

	fs.String(httpHostKey, "127.0.0.1", "Host for the JSON-RPC listener")
	fs.Uint(httpPortKey, 9750, "Port for the JSON-RPC listener")
	fs.Uint64(chainIDKey, 31337, "Chain id reported by the node")
	fs.Uint(accountsKey, 10, "Number of pre-funded dev accounts")
	fs.Uint64(balanceKey, 10_000, "Balance of each dev account in whole coins")
	fs.Uint64(gasPriceKey, 1_000_000_000, "Base gas price in wei")
	fs.Duration(blockTimeKey, 0, "Mine a block this often; 0 mines only on demand")
	fs.String(genesisFileKey, "", "Path to a genesis JSON file; overrides the dev allocation flags")
	fs.String(logLevelKey, "info", "Log level: debug, info, warn, error")
	fs.Bool(versionKey, false, "If true, prints version and quits")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

func getConfig() (Config, error) {
	v, err := getViper()
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPHost:     v.GetString(httpHostKey),
		HTTPPort:     v.GetUint(httpPortKey),
		ChainID:      v.GetUint64(chainIDKey),
		Accounts:     v.GetUint(accountsKey),
		Balance:      v.GetUint64(balanceKey),
		GasPrice:     v.GetUint64(gasPriceKey),
		BlockTime:    v.GetDuration(blockTimeKey),
		GenesisFile:  v.GetString(genesisFileKey),
		LogLevel:     v.GetString(logLevelKey),
		PrintVersion: v.GetBool(versionKey),
	}, nil
}
