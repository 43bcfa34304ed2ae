// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge holds well-known program ids and the account layouts owned by
// the core bridge.
package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/utils/wrappers"
)

const (
	// DefaultGuardianSetExpiration is how long, in seconds, a replaced
	// guardian set stays valid.
	DefaultGuardianSetExpiration uint32 = 86400
	// DefaultFee is the message fee in lamports.
	DefaultFee uint64 = 10

	maxGuardianKeys = 256
)

var (
	MainnetCoreBridgeProgramID = solana.MustPublicKeyFromBase58("worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth")
	DevnetCoreBridgeProgramID  = solana.MustPublicKeyFromBase58("3u8hJUVTA4jH1wYAyUur7FFZVQ8H635K3tSHHF4ssjQ5")
	// VerifyVAAShimProgramID is deployed at the same address on every network.
	VerifyVAAShimProgramID = solana.MustPublicKeyFromBase58("EFaNWErqAtVWufdNb7yofSHHfWFos843DFpu4JBw24at")
	// PostMessageShimProgramID is deployed at the same address on every network.
	PostMessageShimProgramID = solana.MustPublicKeyFromBase58("EtZMZM22ViKMo4r5y4Anovs3wKQ2owUmDpjygnMMcdEX")

	ErrInvalidGuardianSetAccount = errors.New("invalid guardian set account")
	ErrUnknownNetwork            = errors.New("cannot infer network")
)

var (
	guardianSetSeed  = []byte("GuardianSet")
	configSeed       = []byte("Bridge")
	feeCollectorSeed = []byte("fee_collector")
)

// CoreBridgeFromRPCURL infers the core bridge program from an RPC endpoint.
func CoreBridgeFromRPCURL(url string) (solana.PublicKey, error) {
	url = strings.ToLower(url)
	switch {
	case strings.Contains(url, "mainnet"):
		return MainnetCoreBridgeProgramID, nil
	case strings.Contains(url, "devnet"):
		return DevnetCoreBridgeProgramID, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, url)
	}
}

// GuardianSetSeeds are the program address seeds of guardian set index.
func GuardianSetSeeds(index uint32) [][]byte {
	return [][]byte{guardianSetSeed, binary.BigEndian.AppendUint32(nil, index)}
}

// GuardianSetAddress derives the account holding guardian set index.
func GuardianSetAddress(coreBridge solana.PublicKey, index uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(GuardianSetSeeds(index), coreBridge)
}

// ConfigAddress derives the core bridge configuration account.
func ConfigAddress(coreBridge solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{configSeed}, coreBridge)
	return addr, err
}

// FeeCollectorAddress derives the account that receives message fees.
func FeeCollectorAddress(coreBridge solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{feeCollectorSeed}, coreBridge)
	return addr, err
}

// GuardianSetData is the core bridge's guardian set account.
type GuardianSetData struct {
	Index          uint32
	Keys           []common.Address
	CreationTime   uint32
	ExpirationTime uint32
}

// Expired reports whether the set can no longer verify at unix time now. A
// zero expiration never expires.
func (g *GuardianSetData) Expired(now uint64) bool {
	return g.ExpirationTime != 0 && uint64(g.ExpirationTime) <= now
}

func (g *GuardianSetData) Bytes() []byte {
	size := 3*wrappers.IntLen + len(g.Keys)*common.AddressLength + wrappers.IntLen
	p := wrappers.NewWriter(size, size, binary.LittleEndian)
	p.PackInt(g.Index)
	p.PackInt(uint32(len(g.Keys)))
	for _, key := range g.Keys {
		p.PackFixedBytes(key[:])
	}
	p.PackInt(g.CreationTime)
	p.PackInt(g.ExpirationTime)
	return p.Bytes
}

func ParseGuardianSetData(b []byte) (*GuardianSetData, error) {
	p := wrappers.NewReader(b, binary.LittleEndian)
	g := &GuardianSetData{Index: p.UnpackInt()}
	n := p.UnpackInt()
	if n > maxGuardianKeys {
		return nil, fmt.Errorf("%w: %d keys", ErrInvalidGuardianSetAccount, n)
	}
	if !p.Errored() {
		g.Keys = make([]common.Address, n)
	}
	for i := range g.Keys {
		g.Keys[i] = common.BytesToAddress(p.UnpackFixedBytes(common.AddressLength))
	}
	g.CreationTime = p.UnpackInt()
	g.ExpirationTime = p.UnpackInt()
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGuardianSetAccount, err)
	}
	return g, nil
}

// Config is the core bridge configuration account.
type Config struct {
	GuardianSetIndex      uint32
	LastLamports          uint64
	GuardianSetExpiration uint32
	Fee                   uint64
}

func (c *Config) Bytes() []byte {
	size := 2*wrappers.IntLen + 2*wrappers.LongLen
	p := wrappers.NewWriter(size, size, binary.LittleEndian)
	p.PackInt(c.GuardianSetIndex)
	p.PackLong(c.LastLamports)
	p.PackInt(c.GuardianSetExpiration)
	p.PackLong(c.Fee)
	return p.Bytes
}

func ParseConfig(b []byte) (*Config, error) {
	p := wrappers.NewReader(b, binary.LittleEndian)
	c := &Config{
		GuardianSetIndex:      p.UnpackInt(),
		LastLamports:          p.UnpackLong(),
		GuardianSetExpiration: p.UnpackInt(),
		Fee:                   p.UnpackLong(),
	}
	return c, p.Done()
}
