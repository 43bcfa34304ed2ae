// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import "errors"

var (
	// ErrInvalidGuardianSubset is returned when a signing subset names a
	// guardian index that is out of range or repeated.
	ErrInvalidGuardianSubset = errors.New("invalid guardian subset")
	ErrInvalidGuardianSet    = errors.New("invalid guardian set")
	ErrInvalidBody           = errors.New("invalid attestation body")
	ErrInvalidSigned         = errors.New("invalid signed attestation")
	ErrUnsupportedVersion    = errors.New("unsupported attestation version")

	ErrNoQuorum          = errors.New("signatures do not reach quorum")
	ErrSignatureOrder    = errors.New("guardian signatures are not strictly ascending")
	ErrGuardianIndex     = errors.New("guardian index out of range")
	ErrSignatureMismatch = errors.New("signature does not match guardian")
)
