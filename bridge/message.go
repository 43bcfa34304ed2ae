// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/utils/wrappers"
)

const (
	// PostMessageUnreliableTag selects post_message_unreliable.
	PostMessageUnreliableTag byte = 8
	// SequenceLen is the size of an emitter's sequence account.
	SequenceLen = wrappers.LongLen

	// MaxPayloadLen bounds the payload of a posted message.
	MaxPayloadLen = 30 * 1024

	postedMessageHeaderLen = 3 + 2*wrappers.ByteLen + wrappers.IntLen + 32 +
		2*wrappers.IntLen + wrappers.LongLen + wrappers.ShortLen + 32
)

var (
	// UnreliableMessagePrefix starts every message account written by
	// post_message_unreliable.
	UnreliableMessagePrefix = [3]byte{'m', 's', 'u'}

	ErrInvalidMessageAccount  = errors.New("invalid message account")
	ErrInvalidSequenceAccount = errors.New("invalid sequence account")
	ErrInvalidPostMessage     = errors.New("invalid post_message_unreliable data")

	sequenceSeed = []byte("Sequence")
)

// SequenceSeeds are the program address seeds of the sequence account of
// emitter.
func SequenceSeeds(emitter solana.PublicKey) [][]byte {
	return [][]byte{sequenceSeed, emitter[:]}
}

// SequenceAddress derives the account counting the messages of emitter.
func SequenceAddress(coreBridge, emitter solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(SequenceSeeds(emitter), coreBridge)
}

// ParseSequence returns the sequence the next message of the emitter gets.
func ParseSequence(b []byte) (uint64, error) {
	if len(b) < SequenceLen {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidSequenceAccount, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// PostedMessage is a message account written by the core bridge.
type PostedMessage struct {
	VAAVersion          uint8
	ConsistencyLevel    uint8
	VAATime             uint32
	VAASignatureAccount solana.PublicKey
	SubmissionTime      uint32
	Nonce               uint32
	Sequence            uint64
	EmitterChain        uint16
	EmitterAddress      solana.PublicKey
	Payload             []byte
}

func (m *PostedMessage) Bytes() []byte {
	size := postedMessageHeaderLen + wrappers.IntLen + len(m.Payload)
	p := wrappers.NewWriter(size, size, binary.LittleEndian)
	p.PackFixedBytes(UnreliableMessagePrefix[:])
	p.PackByte(m.VAAVersion)
	p.PackByte(m.ConsistencyLevel)
	p.PackInt(m.VAATime)
	p.PackFixedBytes(m.VAASignatureAccount[:])
	p.PackInt(m.SubmissionTime)
	p.PackInt(m.Nonce)
	p.PackLong(m.Sequence)
	p.PackShort(m.EmitterChain)
	p.PackFixedBytes(m.EmitterAddress[:])
	p.PackBytes(m.Payload)
	return p.Bytes
}

func ParsePostedMessage(b []byte) (*PostedMessage, error) {
	p := wrappers.NewReader(b, binary.LittleEndian)
	if prefix := p.UnpackFixedBytes(len(UnreliableMessagePrefix)); !p.Errored() && [3]byte(prefix) != UnreliableMessagePrefix {
		return nil, fmt.Errorf("%w: prefix %q", ErrInvalidMessageAccount, prefix)
	}
	m := &PostedMessage{
		VAAVersion:          p.UnpackByte(),
		ConsistencyLevel:    p.UnpackByte(),
		VAATime:             p.UnpackInt(),
		VAASignatureAccount: p.UnpackHash(),
		SubmissionTime:      p.UnpackInt(),
		Nonce:               p.UnpackInt(),
		Sequence:            p.UnpackLong(),
		EmitterChain:        p.UnpackShort(),
		EmitterAddress:      p.UnpackHash(),
		Payload:             p.UnpackLimitedBytes(MaxPayloadLen),
	}
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessageAccount, err)
	}
	return m, nil
}

// PostMessageUnreliable is the data of post_message_unreliable.
type PostMessageUnreliable struct {
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
}

func (m *PostMessageUnreliable) Bytes() []byte {
	size := wrappers.ByteLen + 2*wrappers.IntLen + len(m.Payload) + wrappers.ByteLen
	p := wrappers.NewWriter(size, size, binary.LittleEndian)
	p.PackByte(PostMessageUnreliableTag)
	p.PackInt(m.Nonce)
	p.PackBytes(m.Payload)
	p.PackByte(m.ConsistencyLevel)
	return p.Bytes
}

func ParsePostMessageUnreliable(b []byte) (*PostMessageUnreliable, error) {
	p := wrappers.NewReader(b, binary.LittleEndian)
	if tag := p.UnpackByte(); !p.Errored() && tag != PostMessageUnreliableTag {
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidPostMessage, tag)
	}
	m := &PostMessageUnreliable{
		Nonce:            p.UnpackInt(),
		Payload:          p.UnpackLimitedBytes(MaxPayloadLen),
		ConsistencyLevel: p.UnpackByte(),
	}
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPostMessage, err)
	}
	return m, nil
}

// PostMessageAccounts are the accounts of post_message_unreliable, in
// order.
type PostMessageAccounts struct {
	Config       solana.PublicKey
	Message      solana.PublicKey
	Emitter      solana.PublicKey
	Sequence     solana.PublicKey
	Payer        solana.PublicKey
	FeeCollector solana.PublicKey
}

// NewPostMessageUnreliableInstruction posts msg. Message, emitter and payer
// must sign.
func NewPostMessageUnreliableInstruction(coreBridge solana.PublicKey, accounts *PostMessageAccounts, msg *PostMessageUnreliable) solana.Instruction {
	return solana.NewInstruction(
		coreBridge,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(accounts.Config, true, false),
			solana.NewAccountMeta(accounts.Message, true, true),
			solana.NewAccountMeta(accounts.Emitter, false, true),
			solana.NewAccountMeta(accounts.Sequence, true, false),
			solana.NewAccountMeta(accounts.Payer, true, true),
			solana.NewAccountMeta(accounts.FeeCollector, true, false),
			solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		msg.Bytes(),
	)
}
