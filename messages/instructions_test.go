// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messages

import (
	"crypto/sha256"
	"encoding/binary"
	"slices"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	testifyrequire "github.com/stretchr/testify/require"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/internal/anchor"
)

func TestPostMessageLayout(t *testing.T) {
	require := require.New(t)

	h := sha256.Sum256([]byte("global:post_message"))
	msg := &PostMessage{Nonce: 42, Finality: 1, Payload: []byte{1, 2, 3}}
	b := msg.Bytes()
	other := anchor.Instruction("post_signatures")
	require.Equal(h[:8], b[:8])
	require.Equal(uint32(42), binary.LittleEndian.Uint32(b[8:12]))
	require.Equal(byte(1), b[12])
	require.Equal(uint32(3), binary.LittleEndian.Uint32(b[13:17]))
	require.Equal([]byte{1, 2, 3}, b[17:])

	tests := []struct {
		name        string
		data        []byte
		expected    *PostMessage
		expectedErr error
	}{
		{
			name:     "valid",
			data:     b,
			expected: msg,
		},
		{
			name:        "wrong discriminator",
			data:        append(other[:], b[8:]...),
			expectedErr: ErrInvalidInstruction,
		},
		{
			name:        "payload truncated",
			data:        b[:len(b)-1],
			expectedErr: ErrInvalidInstruction,
		},
		{
			name:        "short",
			data:        b[:4],
			expectedErr: ErrInvalidInstruction,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := testifyrequire.New(t)

			parsed, err := ParsePostMessage(test.data)
			require.ErrorIs(err, test.expectedErr)
			require.Equal(test.expected, parsed)
		})
	}
}

func TestMessageEventLayout(t *testing.T) {
	require := require.New(t)

	h := sha256.Sum256([]byte("event:MessageEvent"))
	event := &MessageEvent{
		Emitter:        solana.PublicKey{5},
		Sequence:       9,
		SubmissionTime: 1_700_000_000,
	}
	b := event.Bytes()
	otherEvent := anchor.Event("OtherEvent")
	require.Len(b, MessageEventLen)
	require.Equal([]byte{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}, b[:8])
	require.Equal(h[:8], b[8:16])
	require.Equal(event.Emitter[:], b[16:48])
	require.Equal(uint64(9), binary.LittleEndian.Uint64(b[48:56]))

	parsed, err := ParseMessageEvent(b)
	require.NoError(err)
	require.Equal(event, parsed)

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "post_message data",
			data: (&PostMessage{Payload: make([]byte, 64)}).Bytes(),
		},
		{
			name: "other event",
			data: slices.Concat(b[:8], otherEvent[:], b[16:]),
		},
		{
			name: "truncated",
			data: b[:MessageEventLen-1],
		},
		{
			name: "tag only",
			data: b[:8],
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseMessageEvent(test.data)
			testifyrequire.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestDeriveAccounts(t *testing.T) {
	require := require.New(t)

	var (
		coreBridge = bridge.DevnetCoreBridgeProgramID
		shim       = bridge.PostMessageShimProgramID
		emitter    = solana.PublicKey{3}
		payer      = solana.PublicKey{4}
	)
	accounts, err := DeriveAccounts(coreBridge, shim, emitter, payer)
	require.NoError(err)

	sequence, _, err := bridge.SequenceAddress(coreBridge, emitter)
	require.NoError(err)
	message, bump, err := MessageAddress(shim, emitter)
	require.NoError(err)
	derived, err := solana.CreateProgramAddress([][]byte{emitter[:], {bump}}, shim)
	require.NoError(err)
	require.Equal(derived, message)
	authority, bump, err := EventAuthorityAddress(shim)
	require.NoError(err)
	derived, err = solana.CreateProgramAddress([][]byte{[]byte("__event_authority"), {bump}}, shim)
	require.NoError(err)
	require.Equal(derived, authority)

	require.Equal(sequence, accounts.Sequence)
	require.Equal(message, accounts.Message)
	require.Equal(authority, accounts.EventAuthority)

	ix := NewPostMessageInstruction(shim, accounts, &PostMessage{})
	metas := ix.Accounts()
	require.Len(metas, 11)
	require.True(metas[2].IsSigner)
	require.True(metas[4].IsSigner)
	require.Equal(shim, metas[10].PublicKey)
	require.False(accounts.Metas(shim, false)[2].IsSigner)
}
