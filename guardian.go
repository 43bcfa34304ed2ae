// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"crypto/ecdsa"
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/ids"
)

// MaxGuardians is the largest set whose indices fit in a signature entry.
const MaxGuardians = 256

// devnetGuardianKey is the well-known single guardian of local development
// networks.
const devnetGuardianKey = "cfb12303a19cde580bb4dd771639b0d26bc68353645571a8cff516ab2ee113a0"

// Guardian is one signer of a guardian set.
type Guardian struct {
	index uint8
	key   *ecdsa.PrivateKey
}

func NewGuardian(index uint8, key *ecdsa.PrivateKey) (*Guardian, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: guardian %d has no key", ErrInvalidGuardianSet, index)
	}
	return &Guardian{index: index, key: key}, nil
}

func (g *Guardian) Index() uint8 {
	return g.index
}

// Address is the Ethereum style address of the guardian's public key.
func (g *Guardian) Address() common.Address {
	return crypto.PubkeyToAddress(g.key.PublicKey)
}

// Sign signs a 32 byte digest.
func (g *Guardian) Sign(digest ids.ID) (GuardianSignature, error) {
	sig, err := crypto.Sign(digest[:], g.key)
	if err != nil {
		return GuardianSignature{}, fmt.Errorf("guardian %d failed to sign: %w", g.index, err)
	}
	out := GuardianSignature{Index: g.index}
	copy(out.Signature[:], sig)
	return out, nil
}

// GuardianSet is an ordered set of guardians valid for one epoch. The
// guardian at position i always has index i.
type GuardianSet struct {
	index     uint32
	guardians []*Guardian
}

func NewGuardianSet(index uint32, guardians ...*Guardian) (*GuardianSet, error) {
	switch {
	case len(guardians) == 0:
		return nil, fmt.Errorf("%w: no guardians", ErrInvalidGuardianSet)
	case len(guardians) > MaxGuardians:
		return nil, fmt.Errorf("%w: %d guardians exceeds %d", ErrInvalidGuardianSet, len(guardians), MaxGuardians)
	}
	for i, g := range guardians {
		if g == nil || int(g.index) != i {
			return nil, fmt.Errorf("%w: position %d does not hold guardian %d", ErrInvalidGuardianSet, i, i)
		}
	}
	return &GuardianSet{
		index:     index,
		guardians: append([]*Guardian(nil), guardians...),
	}, nil
}

// GenerateGuardianSet deterministically derives n guardian keys from seed.
func GenerateGuardianSet(n int, seed int64) (*GuardianSet, error) {
	if n <= 0 || n > MaxGuardians {
		return nil, fmt.Errorf("%w: cannot generate %d guardians", ErrInvalidGuardianSet, n)
	}
	r := rand.New(rand.NewSource(seed)) //#nosec G404
	guardians := make([]*Guardian, n)
	for i := range guardians {
		var (
			scalar = make([]byte, 32)
			key    *ecdsa.PrivateKey
			err    error
		)
		// ToECDSA rejects zero and values above the curve order.
		for key == nil {
			_, _ = r.Read(scalar)
			key, err = crypto.ToECDSA(scalar)
			if err != nil {
				key = nil
			}
		}
		guardians[i] = &Guardian{index: uint8(i), key: key}
	}
	return NewGuardianSet(0, guardians...)
}

// DevnetGuardianSet returns the single guardian used by local development
// networks.
func DevnetGuardianSet() *GuardianSet {
	key, err := crypto.HexToECDSA(devnetGuardianKey)
	if err != nil {
		panic(err)
	}
	return &GuardianSet{guardians: []*Guardian{{index: 0, key: key}}}
}

// Quorum is the smallest number of signatures strictly greater than two
// thirds of n.
func Quorum(n int) int {
	return n*2/3 + 1
}

// Index is the epoch of the set.
func (s *GuardianSet) Index() uint32 {
	return s.index
}

// WithIndex returns the same guardians under a different epoch.
func (s *GuardianSet) WithIndex(index uint32) *GuardianSet {
	return &GuardianSet{index: index, guardians: s.guardians}
}

func (s *GuardianSet) Len() int {
	return len(s.guardians)
}

func (s *GuardianSet) Quorum() int {
	return Quorum(len(s.guardians))
}

// Guardian returns the guardian at index i.
func (s *GuardianSet) Guardian(i int) (*Guardian, bool) {
	if i < 0 || i >= len(s.guardians) {
		return nil, false
	}
	return s.guardians[i], true
}

// Addresses returns the guardian addresses in index order.
func (s *GuardianSet) Addresses() []common.Address {
	addrs := make([]common.Address, len(s.guardians))
	for i, g := range s.guardians {
		addrs[i] = g.Address()
	}
	return addrs
}
