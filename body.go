// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/ids"

	"github.com/luxfi/vaa/utils/wrappers"
)

// ChainIDSolana is the emitter chain of messages posted on Solana.
const ChainIDSolana uint16 = 1

const (
	DefaultTimestamp        uint32 = 1234567890
	DefaultNonce            uint32 = 0
	DefaultConsistencyLevel uint8  = 1

	// BodyHeaderLen is the number of bytes preceding the payload.
	BodyHeaderLen = wrappers.IntLen + // timestamp
		wrappers.IntLen + // nonce
		wrappers.ShortLen + // emitter chain
		AddressLen + // emitter address
		wrappers.LongLen + // sequence
		wrappers.ByteLen // consistency level

	// EmitterChainOffset is the byte offset of the emitter chain in an
	// encoded body.
	EmitterChainOffset = 2 * wrappers.IntLen
	// SequenceOffset is the byte offset of the sequence in an encoded body.
	SequenceOffset = EmitterChainOffset + wrappers.ShortLen + AddressLen

	maxBodyLen = math.MaxInt32
)

// Body is the signed portion of an attestation. The canonical encoding is the
// fields in declaration order, big endian, with the payload appended verbatim.
type Body struct {
	Timestamp        uint32
	Nonce            uint32
	EmitterChain     uint16
	EmitterAddress   Address
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// NewBody returns a body with the default timestamp, nonce and consistency
// level.
func NewBody(emitterChain uint16, emitterAddress Address, sequence uint64, payload []byte) Body {
	return Body{
		Timestamp:        DefaultTimestamp,
		Nonce:            DefaultNonce,
		EmitterChain:     emitterChain,
		EmitterAddress:   emitterAddress,
		Sequence:         sequence,
		ConsistencyLevel: DefaultConsistencyLevel,
		Payload:          payload,
	}
}

// Bytes returns the canonical encoding.
func (b Body) Bytes() []byte {
	p := wrappers.NewWriter(BodyHeaderLen+len(b.Payload), maxBodyLen, nil)
	p.PackInt(b.Timestamp)
	p.PackInt(b.Nonce)
	p.PackShort(b.EmitterChain)
	p.PackFixedBytes(b.EmitterAddress[:])
	p.PackLong(b.Sequence)
	p.PackByte(b.ConsistencyLevel)
	p.PackFixedBytes(b.Payload)
	return p.Bytes
}

// ParseBody decodes a canonical body. Everything after the header is payload.
func ParseBody(bytes []byte) (Body, error) {
	if len(bytes) < BodyHeaderLen {
		return Body{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidBody, len(bytes), BodyHeaderLen)
	}
	p := wrappers.NewReader(bytes, nil)
	b := Body{
		Timestamp:    p.UnpackInt(),
		Nonce:        p.UnpackInt(),
		EmitterChain: p.UnpackShort(),
	}
	b.EmitterAddress = p.UnpackHash()
	b.Sequence = p.UnpackLong()
	b.ConsistencyLevel = p.UnpackByte()
	b.Payload = p.UnpackRest()
	if err := p.Done(); err != nil {
		return Body{}, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	return b, nil
}

// Hash is keccak256 of the encoded body.
func (b Body) Hash() ids.ID {
	return ids.ID(crypto.Keccak256Hash(b.Bytes()))
}

// Digest is keccak256(keccak256(body)), the value guardians sign.
func (b Body) Digest() ids.ID {
	return DigestOf(b.Bytes())
}

// DigestOf computes the signing digest of an already encoded body.
func DigestOf(body []byte) ids.ID {
	return ids.ID(crypto.Keccak256Hash(crypto.Keccak256(body)))
}

// WithSequence returns a copy of b with a different sequence.
func (b Body) WithSequence(sequence uint64) Body {
	b.Sequence = sequence
	return b
}

// WithEmitterChain returns a copy of b with a different emitter chain.
func (b Body) WithEmitterChain(chain uint16) Body {
	b.EmitterChain = chain
	return b
}

// WithEmitterAddress returns a copy of b with a different emitter address.
func (b Body) WithEmitterAddress(addr Address) Body {
	b.EmitterAddress = addr
	return b
}
