// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resolver

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// NumKeypairPlaceholders is how many fresh keypairs a plan may ask for.
const NumKeypairPlaceholders = 10

// Placeholder keys stand in for accounts the target program cannot know when
// it answers a resolve request. They are replaced before submission.
var (
	PayerPlaceholder           = placeholder("payer")
	GuardianSetPlaceholder     = placeholder("guardian_set")
	SignatureRecordPlaceholder = placeholder("shim_vaa_sigs")
	KeypairPlaceholders        [NumKeypairPlaceholders]solana.PublicKey
)

func init() {
	for i := range KeypairPlaceholders {
		KeypairPlaceholders[i] = placeholder(fmt.Sprintf("keypair_%02d", i))
	}
}

func placeholder(label string) solana.PublicKey {
	sum := sha256.Sum256([]byte("executor-account-resolver:" + label))
	return solana.PublicKeyFromBytes(sum[:])
}

// KeypairPlaceholderIndex returns which keypair placeholder key is, if any.
func KeypairPlaceholderIndex(key solana.PublicKey) (int, bool) {
	for i, p := range KeypairPlaceholders {
		if p == key {
			return i, true
		}
	}
	return 0, false
}
