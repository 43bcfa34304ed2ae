// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
)

// AddressLen is the length of a canonical emitter address.
const AddressLen = 32

// Address is a chain agnostic 32 byte emitter address.
type Address [AddressLen]byte

// AddressFrom20 right-aligns a 20 byte EVM address into the canonical form.
func AddressFrom20(addr common.Address) Address {
	var out Address
	copy(out[AddressLen-common.AddressLength:], addr[:])
	return out
}

// AddressFromPublicKey uses a 32 byte account key as an emitter address.
func AddressFromPublicKey(key solana.PublicKey) Address {
	return Address(key)
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}
