// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/ids"
)

// CheckSignatureOrder fails unless indices are strictly ascending.
func CheckSignatureOrder(sigs []GuardianSignature) error {
	for i := 1; i < len(sigs); i++ {
		if sigs[i].Index <= sigs[i-1].Index {
			return fmt.Errorf("%w: index %d follows %d", ErrSignatureOrder, sigs[i].Index, sigs[i-1].Index)
		}
	}
	return nil
}

// VerifySignatures accepts sigs only if they reach quorum over guardians, are
// strictly ascending, and each recovers to the guardian at its index.
func VerifySignatures(digest ids.ID, sigs []GuardianSignature, guardians []common.Address) error {
	if len(guardians) == 0 {
		return fmt.Errorf("%w: no guardians", ErrInvalidGuardianSet)
	}
	if quorum := Quorum(len(guardians)); len(sigs) < quorum {
		return fmt.Errorf("%w: have %d, need %d of %d", ErrNoQuorum, len(sigs), quorum, len(guardians))
	}
	if err := CheckSignatureOrder(sigs); err != nil {
		return err
	}
	for _, sig := range sigs {
		if int(sig.Index) >= len(guardians) {
			return fmt.Errorf("%w: %d not in set of %d", ErrGuardianIndex, sig.Index, len(guardians))
		}
		signer, err := RecoverSigner(digest, sig.Signature)
		if err != nil {
			return fmt.Errorf("%w: guardian %d: %w", ErrSignatureMismatch, sig.Index, err)
		}
		if signer != guardians[sig.Index] {
			return fmt.Errorf("%w: guardian %d recovered %s", ErrSignatureMismatch, sig.Index, signer)
		}
	}
	return nil
}

// RecoverSigner returns the address that produced sig over digest. Recovery
// ids of 27 and 28 are accepted as 0 and 1.
func RecoverSigner(digest ids.ID, sig [SignatureLen]byte) (common.Address, error) {
	if sig[SignatureLen-1] >= 27 {
		sig[SignatureLen-1] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sig[:])
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
