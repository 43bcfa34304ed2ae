// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/luxfi/log"
	"github.com/spf13/pflag"

	"github.com/luxfi/vaa/config"
)

const (
	ConfigKey     = "config"
	RPCURLKey     = "rpc-url"
	CoreBridgeKey = "core-bridge"
	QuietKey      = "quiet"
	ProgramIDKey  = "program-id"
	PayerKey      = "payer"
)

// flagEnv names the environment variable read for a flag left unset.
var flagEnv = map[string]string{
	RPCURLKey:     "SOLANA_RPC_URL",
	CoreBridgeKey: "CORE_BRIDGE_PROGRAM_ID",
	ProgramIDKey:  "PROGRAM_ID",
	PayerKey:      "PAYER_KEYPAIR",
}

func AddGlobalFlags(flags *pflag.FlagSet) {
	flags.String(ConfigKey, "", "JSON config file")
	flags.String(RPCURLKey, "", "RPC endpoint (env SOLANA_RPC_URL, default devnet)")
	flags.String(CoreBridgeKey, "", "Core bridge program, inferred from the RPC URL if omitted (env CORE_BRIDGE_PROGRAM_ID)")
	flags.Bool(QuietKey, false, "Disable logging")
}

func AddSubmitFlags(flags *pflag.FlagSet) {
	flags.String(ProgramIDKey, "", "Program implementing resolve_execute_vaa_v1 (env PROGRAM_ID)")
	flags.String(PayerKey, "", "Payer keypair file (env PAYER_KEYPAIR)")
}

// getString returns the flag value, falling back to its environment
// variable when the flag was not set.
func getString(flags *pflag.FlagSet, key string) (string, error) {
	value, err := flags.GetString(key)
	if err != nil {
		return "", err
	}
	if !flags.Changed(key) {
		if env, ok := flagEnv[key]; ok {
			if v, ok := os.LookupEnv(env); ok {
				return v, nil
			}
		}
	}
	return value, nil
}

// ParseConfig reads the config file, if any, and applies flag overrides.
func ParseConfig(flags *pflag.FlagSet) (config.Config, error) {
	path, err := flags.GetString(ConfigKey)
	if err != nil {
		return config.Config{}, err
	}
	var data []byte
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	cfg, err := config.ParseConfig(data)
	if err != nil {
		return config.Config{}, fmt.Errorf("parsing config: %w", err)
	}

	rpcURL, err := getString(flags, RPCURLKey)
	if err != nil {
		return config.Config{}, err
	}
	if rpcURL != "" {
		cfg.RPCURL = rpcURL
	}
	coreBridge, err := getString(flags, CoreBridgeKey)
	if err != nil {
		return config.Config{}, err
	}
	if coreBridge != "" {
		cfg.CoreBridge = coreBridge
	}
	return cfg, cfg.Validate()
}

func Logger(flags *pflag.FlagSet) log.Logger {
	if quiet, _ := flags.GetBool(QuietKey); quiet {
		return log.NewNoOpLogger()
	}
	return log.NewLogger("vaa")
}
