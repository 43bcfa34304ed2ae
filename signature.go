// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import "fmt"

const (
	// SignatureLen is r || s || v.
	SignatureLen = 65
	// GuardianSignatureLen is the guardian index followed by the signature.
	GuardianSignatureLen = 1 + SignatureLen
)

// GuardianSignature is one guardian's signature over a body digest. The
// recovery id is 0 or 1.
type GuardianSignature struct {
	Index     uint8
	Signature [SignatureLen]byte
}

// Bytes returns the 66 byte wire form.
func (s GuardianSignature) Bytes() [GuardianSignatureLen]byte {
	var out [GuardianSignatureLen]byte
	out[0] = s.Index
	copy(out[1:], s.Signature[:])
	return out
}

func ParseGuardianSignature(b []byte) (GuardianSignature, error) {
	if len(b) != GuardianSignatureLen {
		return GuardianSignature{}, fmt.Errorf("%w: guardian signature is %d bytes, want %d", ErrInvalidSigned, len(b), GuardianSignatureLen)
	}
	s := GuardianSignature{Index: b[0]}
	copy(s.Signature[:], b[1:])
	return s, nil
}

// SignatureBytes converts signatures to their wire form.
func SignatureBytes(sigs []GuardianSignature) [][GuardianSignatureLen]byte {
	out := make([][GuardianSignatureLen]byte, len(sigs))
	for i, s := range sigs {
		out[i] = s.Bytes()
	}
	return out
}
