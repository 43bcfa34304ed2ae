// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"fmt"
	"slices"
)

// Sign signs body with every guardian of set.
func Sign(body Body, set *GuardianSet) (*Signed, error) {
	indices := make([]int, set.Len())
	for i := range indices {
		indices[i] = i
	}
	return SignWith(body, set, indices)
}

// SignWith signs body with the guardians at indices. The result lists
// signatures in ascending guardian order whatever the order of indices.
func SignWith(body Body, set *GuardianSet, indices []int) (*Signed, error) {
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for i, index := range sorted {
		if index < 0 || index >= set.Len() {
			return nil, fmt.Errorf("%w: index %d not in set of %d", ErrInvalidGuardianSubset, index, set.Len())
		}
		if i > 0 && sorted[i-1] == index {
			return nil, fmt.Errorf("%w: index %d repeated", ErrInvalidGuardianSubset, index)
		}
	}

	digest := body.Digest()
	sigs := make([]GuardianSignature, len(sorted))
	for i, index := range sorted {
		sig, err := set.guardians[index].Sign(digest)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return &Signed{
		Version:          Version,
		GuardianSetIndex: set.Index(),
		Signatures:       sigs,
		Body:             body,
	}, nil
}
