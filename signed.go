// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/ids"

	"github.com/luxfi/vaa/utils/wrappers"
)

// Version is the only supported signed attestation version.
const Version uint8 = 1

const signedHeaderLen = wrappers.ByteLen + wrappers.IntLen + wrappers.ByteLen

// Signed is a body together with the guardian signatures over its digest.
type Signed struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []GuardianSignature
	Body             Body
}

// Digest is the value every signature signs.
func (s *Signed) Digest() ids.ID {
	return s.Body.Digest()
}

// Bytes returns version | set index | count | signatures | body.
func (s *Signed) Bytes() ([]byte, error) {
	if len(s.Signatures) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: %d signatures", ErrInvalidSigned, len(s.Signatures))
	}
	body := s.Body.Bytes()
	size := signedHeaderLen + len(s.Signatures)*GuardianSignatureLen + len(body)
	p := wrappers.NewWriter(size, size, nil)
	p.PackByte(s.Version)
	p.PackInt(s.GuardianSetIndex)
	p.PackByte(uint8(len(s.Signatures)))
	for _, sig := range s.Signatures {
		b := sig.Bytes()
		p.PackFixedBytes(b[:])
	}
	p.PackFixedBytes(body)
	return p.Bytes, p.Err
}

// ParseSigned decodes the wire form and checks that signatures are strictly
// ascending by guardian index.
func ParseSigned(b []byte) (*Signed, error) {
	p := wrappers.NewReader(b, nil)
	version := p.UnpackByte()
	if p.Errored() {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidSigned)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	s := &Signed{
		Version:          version,
		GuardianSetIndex: p.UnpackInt(),
	}
	count := int(p.UnpackByte())
	if p.Errored() {
		return nil, fmt.Errorf("%w: truncated header: %w", ErrInvalidSigned, p.Err)
	}
	s.Signatures = make([]GuardianSignature, count)
	for i := range s.Signatures {
		raw := p.UnpackFixedBytes(GuardianSignatureLen)
		if p.Errored() {
			return nil, fmt.Errorf("%w: truncated signature %d of %d", ErrInvalidSigned, i, count)
		}
		s.Signatures[i], _ = ParseGuardianSignature(raw)
	}
	if err := CheckSignatureOrder(s.Signatures); err != nil {
		return nil, err
	}
	body, err := ParseBody(p.UnpackRest())
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

// Verify checks the signatures against the given guardian addresses.
func (s *Signed) Verify(guardians []common.Address) error {
	return VerifySignatures(s.Digest(), s.Signatures, guardians)
}
