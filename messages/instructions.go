// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package messages posts messages through the post message shim and
// recovers them from the receipts of the transactions that posted them.
package messages

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/internal/anchor"
	"github.com/luxfi/vaa/utils/wrappers"
)

const (
	// MessageEventLen is tag | selector | emitter | sequence | submission
	// time.
	MessageEventLen = 2*anchor.DiscriminatorLen + wrappers.HashLen + wrappers.LongLen + wrappers.IntLen

	postMessageHeaderLen = anchor.DiscriminatorLen + wrappers.IntLen + wrappers.ByteLen + wrappers.IntLen
)

var (
	PostMessageDiscriminator  = anchor.Instruction("post_message")
	MessageEventDiscriminator = anchor.Event("MessageEvent")

	ErrInvalidInstruction = errors.New("invalid post message instruction")
	ErrInvalidEvent       = errors.New("invalid message event")
)

// PostMessage is the data of post_message.
type PostMessage struct {
	Nonce    uint32
	Finality uint8
	Payload  []byte
}

func (m *PostMessage) Bytes() []byte {
	size := postMessageHeaderLen + len(m.Payload)
	w := wrappers.NewWriter(size, size, binary.LittleEndian)
	w.PackFixedBytes(PostMessageDiscriminator[:])
	w.PackInt(m.Nonce)
	w.PackByte(m.Finality)
	w.PackBytes(m.Payload)
	return w.Bytes
}

func ParsePostMessage(data []byte) (*PostMessage, error) {
	if !PostMessageDiscriminator.Match(data) {
		return nil, fmt.Errorf("%w: not post_message", ErrInvalidInstruction)
	}
	r := wrappers.NewReader(data[anchor.DiscriminatorLen:], binary.LittleEndian)
	m := &PostMessage{
		Nonce:    r.UnpackInt(),
		Finality: r.UnpackByte(),
		Payload:  r.UnpackLimitedBytes(bridge.MaxPayloadLen),
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: post_message: %w", ErrInvalidInstruction, err)
	}
	return m, nil
}

// MessageEvent is emitted by the shim for every message it posts. It
// carries what post_message alone does not reveal.
type MessageEvent struct {
	Emitter        solana.PublicKey
	Sequence       uint64
	SubmissionTime uint32
}

// Bytes returns the data of the self invocation that emits e.
func (e *MessageEvent) Bytes() []byte {
	w := wrappers.NewWriter(MessageEventLen, MessageEventLen, binary.LittleEndian)
	w.PackFixedBytes(anchor.EventInstructionTag[:])
	w.PackFixedBytes(MessageEventDiscriminator[:])
	w.PackFixedBytes(e.Emitter[:])
	w.PackLong(e.Sequence)
	w.PackInt(e.SubmissionTime)
	return w.Bytes
}

func ParseMessageEvent(data []byte) (*MessageEvent, error) {
	if !anchor.EventInstructionTag.Match(data) || !MessageEventDiscriminator.Match(data[anchor.DiscriminatorLen:]) {
		return nil, fmt.Errorf("%w: not a message event", ErrInvalidEvent)
	}
	r := wrappers.NewReader(data[2*anchor.DiscriminatorLen:], binary.LittleEndian)
	e := &MessageEvent{
		Emitter:        r.UnpackHash(),
		Sequence:       r.UnpackLong(),
		SubmissionTime: r.UnpackInt(),
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return e, nil
}

// MessageAddress derives the shim owned account the core bridge writes the
// messages of emitter to.
func MessageAddress(shim, emitter solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{emitter[:]}, shim)
}

// EventAuthorityAddress derives the account that signs the shim's events.
func EventAuthorityAddress(shim solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{anchor.EventAuthoritySeed}, shim)
}

// Accounts are the accounts of post_message.
type Accounts struct {
	bridge.PostMessageAccounts

	CoreBridge     solana.PublicKey
	EventAuthority solana.PublicKey
}

// DeriveAccounts returns the accounts emitter posts through shim with,
// paid by payer.
func DeriveAccounts(coreBridge, shim, emitter, payer solana.PublicKey) (*Accounts, error) {
	config, err := bridge.ConfigAddress(coreBridge)
	if err != nil {
		return nil, err
	}
	feeCollector, err := bridge.FeeCollectorAddress(coreBridge)
	if err != nil {
		return nil, err
	}
	sequence, _, err := bridge.SequenceAddress(coreBridge, emitter)
	if err != nil {
		return nil, err
	}
	message, _, err := MessageAddress(shim, emitter)
	if err != nil {
		return nil, err
	}
	eventAuthority, _, err := EventAuthorityAddress(shim)
	if err != nil {
		return nil, err
	}
	return &Accounts{
		PostMessageAccounts: bridge.PostMessageAccounts{
			Config:       config,
			Message:      message,
			Emitter:      emitter,
			Sequence:     sequence,
			Payer:        payer,
			FeeCollector: feeCollector,
		},
		CoreBridge:     coreBridge,
		EventAuthority: eventAuthority,
	}, nil
}

// Metas lists a in the order post_message expects them. A program that
// signs for its emitter through an invocation passes emitterSigns false.
func (a *Accounts) Metas(shim solana.PublicKey, emitterSigns bool) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Config, true, false),
		solana.NewAccountMeta(a.Message, true, false),
		solana.NewAccountMeta(a.Emitter, false, emitterSigns),
		solana.NewAccountMeta(a.Sequence, true, false),
		solana.NewAccountMeta(a.Payer, true, true),
		solana.NewAccountMeta(a.FeeCollector, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(a.CoreBridge, false, false),
		solana.NewAccountMeta(a.EventAuthority, false, false),
		solana.NewAccountMeta(shim, false, false),
	}
}

// NewPostMessageInstruction posts msg as the emitter of accounts, which must
// sign.
func NewPostMessageInstruction(shim solana.PublicKey, accounts *Accounts, msg *PostMessage) solana.Instruction {
	return solana.NewInstruction(shim, accounts.Metas(shim, true), msg.Bytes())
}

// NewFeeInstruction pays the core bridge message fee. The shim does not
// transfer it, so it must precede post_message in the same transaction.
func NewFeeInstruction(coreBridge, payer solana.PublicKey, fee uint64) (solana.Instruction, error) {
	feeCollector, err := bridge.FeeCollectorAddress(coreBridge)
	if err != nil {
		return nil, err
	}
	return system.NewTransferInstruction(fee, payer, feeCollector).Build(), nil
}
