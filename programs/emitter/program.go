// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package emitter is a program that posts messages through the post message
// shim as its own program address.
package emitter

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/messages"
	"github.com/luxfi/vaa/utils/wrappers"
)

// Account positions, shared with post_message.
const (
	emitterAccount = 2
	shimAccount    = 10
)

var (
	_ localnet.Program = (*Program)(nil)

	// ProgramID is where tests deploy the program.
	ProgramID = solana.PublicKeyFromBytes(sha256Sum("message-emitter-example"))

	ErrInvalidEmitter = errors.New("emitter is not the program address")
	ErrInvalidShim    = errors.New("unexpected post message shim")

	emitterSeed = []byte("emitter")
)

func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// EmitterAddress derives the address messages of programID are emitted
// from.
func EmitterAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{emitterSeed}, programID)
}

// Emit is the instruction data: nonce | finality | length prefixed
// payload, little endian.
type Emit struct {
	Nonce    uint32
	Finality uint8
	Payload  []byte
}

func (e *Emit) Bytes() []byte {
	size := wrappers.IntLen + wrappers.ByteLen + wrappers.IntLen + len(e.Payload)
	w := wrappers.NewWriter(size, size, binary.LittleEndian)
	w.PackInt(e.Nonce)
	w.PackByte(e.Finality)
	w.PackBytes(e.Payload)
	return w.Bytes
}

func ParseEmit(data []byte) (*Emit, error) {
	r := wrappers.NewReader(data, binary.LittleEndian)
	e := &Emit{
		Nonce:    r.UnpackInt(),
		Finality: r.UnpackByte(),
		Payload:  r.UnpackLimitedBytes(bridge.MaxPayloadLen),
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", localnet.ErrInvalidInstructionData, err)
	}
	return e, nil
}

// NewEmitInstruction posts payload from the emitter of programID. The fee
// is not included, see messages.NewFeeInstruction.
func NewEmitInstruction(programID, coreBridge, shim, payer solana.PublicKey, emit *Emit) (solana.Instruction, error) {
	emitter, _, err := EmitterAddress(programID)
	if err != nil {
		return nil, err
	}
	accounts, err := messages.DeriveAccounts(coreBridge, shim, emitter, payer)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts.Metas(shim, false), emit.Bytes()), nil
}

type Program struct {
	shim solana.PublicKey
}

func New(shim solana.PublicKey) *Program {
	return &Program{shim: shim}
}

func (p *Program) Process(ic *localnet.InvokeContext, data []byte) error {
	emit, err := ParseEmit(data)
	if err != nil {
		return err
	}

	emitter, bump, err := EmitterAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	meta, err := ic.Meta(emitterAccount)
	if err != nil {
		return err
	}
	if meta.PublicKey != emitter {
		return fmt.Errorf("%w: %s", ErrInvalidEmitter, meta.PublicKey)
	}
	if meta, err = ic.Meta(shimAccount); err != nil {
		return err
	}
	if meta.PublicKey != p.shim {
		return fmt.Errorf("%w: %s", ErrInvalidShim, meta.PublicKey)
	}

	metas := make(solana.AccountMetaSlice, ic.NumAccounts())
	for i := range metas {
		m, err := ic.Meta(i)
		if err != nil {
			return err
		}
		metas[i] = solana.NewAccountMeta(m.PublicKey, m.IsWritable, m.IsSigner || i == emitterAccount)
	}
	post := &messages.PostMessage{
		Nonce:    emit.Nonce,
		Finality: emit.Finality,
		Payload:  emit.Payload,
	}
	ic.Log("emitting message: nonce=%d, finality=%d, payload_len=%d", emit.Nonce, emit.Finality, len(emit.Payload))
	return ic.Invoke(
		solana.NewInstruction(p.shim, metas, post.Bytes()),
		[][]byte{emitterSeed, {bump}},
	)
}
