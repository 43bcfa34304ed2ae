// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vaa

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testBody() Body {
	emitter := AddressFrom20(common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16"))
	return NewBody(2, emitter, 7, []byte("hello"))
}

func TestBodyLayout(t *testing.T) {
	require := require.New(t)

	body := testBody()
	b := body.Bytes()
	require.Len(b, BodyHeaderLen+5)
	require.Equal(DefaultTimestamp, binary.BigEndian.Uint32(b[0:4]))
	require.Equal(DefaultNonce, binary.BigEndian.Uint32(b[4:8]))
	require.Equal(uint16(2), binary.BigEndian.Uint16(b[EmitterChainOffset:]))
	require.Equal(body.EmitterAddress[:], b[EmitterChainOffset+2:SequenceOffset])
	require.Equal(uint64(7), binary.BigEndian.Uint64(b[SequenceOffset:]))
	require.Equal(DefaultConsistencyLevel, b[SequenceOffset+8])
	require.Equal([]byte("hello"), b[BodyHeaderLen:])
}

func TestParseBody(t *testing.T) {
	require := require.New(t)

	body := testBody()
	parsed, err := ParseBody(body.Bytes())
	require.NoError(err)
	require.Equal(body, parsed)

	_, err = ParseBody(body.Bytes()[:BodyHeaderLen-1])
	require.ErrorIs(err, ErrInvalidBody)
}

func TestParseBodyEmptyPayload(t *testing.T) {
	require := require.New(t)

	body := NewBody(1, Address{}, 0, nil)
	parsed, err := ParseBody(body.Bytes())
	require.NoError(err)
	require.Empty(parsed.Payload)
}

func TestDigestIsDoubleKeccak(t *testing.T) {
	require := require.New(t)

	body := testBody()
	expected := crypto.Keccak256(crypto.Keccak256(body.Bytes()))
	digest := body.Digest()
	require.Equal(expected, digest[:])
	require.Equal(body.Digest(), DigestOf(body.Bytes()))

	hash := body.Hash()
	require.Equal(crypto.Keccak256(body.Bytes()), hash[:])
	require.NotEqual(body.Digest(), body.WithSequence(8).Digest())
}

func TestWithHelpersCopy(t *testing.T) {
	require := require.New(t)

	body := testBody()
	changed := body.WithEmitterChain(3).WithEmitterAddress(Address{1})
	require.Equal(uint16(2), body.EmitterChain)
	require.Equal(uint16(3), changed.EmitterChain)
	require.Equal(Address{1}, changed.EmitterAddress)
}

func TestAddressFrom20(t *testing.T) {
	require := require.New(t)

	evm := common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16")
	addr := AddressFrom20(evm)
	require.Equal(make([]byte, 12), addr[:12])
	require.Equal(evm[:], addr[12:])
	require.Equal("0000000000000000000000000290fb167208af455bb137780163b7b7a9a10c16", addr.String())

	key := solana.SystemProgramID
	fromKey := AddressFromPublicKey(key)
	require.Equal(key[:], fromKey[:])
}
