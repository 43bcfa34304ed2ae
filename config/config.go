// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection/rpcconn"
	"github.com/luxfi/vaa/resolver"
	"github.com/luxfi/vaa/submit"
)

var (
	ErrInvalidEndpoint   = errors.New("invalid rpc endpoint configuration")
	ErrInvalidCommitment = errors.New("invalid commitment configuration")
	ErrInvalidProgram    = errors.New("invalid program configuration")
	ErrInvalidIterations = errors.New("invalid resolver iterations configuration")
	ErrInvalidTimeout    = errors.New("invalid confirmation timing configuration")
)

// Config holds configuration for submitting attestations to a live network.
type Config struct {
	RPCURL     string `json:"rpcUrl"`
	Commitment string `json:"commitment"` // processed, confirmed or finalized

	// Program addresses in base58. An empty core bridge is inferred from
	// RPCURL.
	CoreBridge string `json:"coreBridge"`
	VerifyShim string `json:"verifyShim"`

	MaxResolverIterations int `json:"maxResolverIterations"` // Default: 10

	ConfirmTimeout time.Duration `json:"confirmTimeout"`
	PollInterval   time.Duration `json:"pollInterval"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		RPCURL:                rpc.DevNet_RPC,
		Commitment:            string(rpc.CommitmentConfirmed),
		VerifyShim:            bridge.VerifyVAAShimProgramID.String(),
		MaxResolverIterations: resolver.DefaultMaxIterations,
		ConfirmTimeout:        time.Minute,
		PollInterval:          500 * time.Millisecond,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return ErrInvalidEndpoint
	}

	switch rpc.CommitmentType(c.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommitment, c.Commitment)
	}

	if _, err := c.CoreBridgeProgram(); err != nil {
		return err
	}
	if _, err := solana.PublicKeyFromBase58(c.VerifyShim); err != nil {
		return fmt.Errorf("%w: verify shim: %w", ErrInvalidProgram, err)
	}

	if c.MaxResolverIterations <= 0 {
		return ErrInvalidIterations
	}
	if c.ConfirmTimeout <= 0 || c.PollInterval <= 0 || c.PollInterval > c.ConfirmTimeout {
		return ErrInvalidTimeout
	}
	return nil
}

// CoreBridgeProgram returns the configured core bridge, falling back to the
// one of the network RPCURL points at.
func (c *Config) CoreBridgeProgram() (solana.PublicKey, error) {
	if c.CoreBridge == "" {
		key, err := bridge.CoreBridgeFromRPCURL(c.RPCURL)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("%w: core bridge: %w", ErrInvalidProgram, err)
		}
		return key, nil
	}
	key, err := solana.PublicKeyFromBase58(c.CoreBridge)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: core bridge: %w", ErrInvalidProgram, err)
	}
	return key, nil
}

// RPC returns the connection settings. c must be valid.
func (c *Config) RPC() rpcconn.Config {
	return rpcconn.Config{
		Endpoint:       c.RPCURL,
		Commitment:     rpc.CommitmentType(c.Commitment),
		ConfirmTimeout: c.ConfirmTimeout,
		PollInterval:   c.PollInterval,
	}
}

// Submit returns the submitter settings.
func (c *Config) Submit() (submit.Config, error) {
	coreBridge, err := c.CoreBridgeProgram()
	if err != nil {
		return submit.Config{}, err
	}
	shim, err := solana.PublicKeyFromBase58(c.VerifyShim)
	if err != nil {
		return submit.Config{}, fmt.Errorf("%w: verify shim: %w", ErrInvalidProgram, err)
	}
	return submit.Config{
		CoreBridge:            coreBridge,
		VerifyShim:            shim,
		MaxResolverIterations: c.MaxResolverIterations,
	}, nil
}

// ParseConfig parses configuration from JSON bytes on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
