// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package corebridge runs the message posting half of the core bridge. The
// guardian set and config accounts it reads are installed by shim.Deploy.
package corebridge

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/luxfi/math"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/localnet"
)

var (
	_ localnet.Program = (*Program)(nil)

	ErrInsufficientFees = errors.New("message fee not paid")
	ErrAccountMismatch  = errors.New("account does not match")
	ErrMessageMismatch  = errors.New("message account cannot be reused")
	ErrNotSigner        = errors.New("account must sign")

	errUnknownInstruction = errors.New("unknown instruction")
)

// post_message_unreliable account positions.
const (
	postConfig = iota
	postMessage
	postEmitter
	postSequence
	postPayer
	postFeeCollector
)

type Program struct{}

func New() *Program {
	return &Program{}
}

func (p *Program) Process(ic *localnet.InvokeContext, data []byte) error {
	if len(data) == 0 || data[0] != bridge.PostMessageUnreliableTag {
		return errUnknownInstruction
	}
	msg, err := bridge.ParsePostMessageUnreliable(data)
	if err != nil {
		return err
	}
	return p.postMessage(ic, msg)
}

func (p *Program) postMessage(ic *localnet.InvokeContext, msg *bridge.PostMessageUnreliable) error {
	for _, i := range []int{postMessage, postEmitter, postPayer} {
		meta, err := ic.Meta(i)
		if err != nil {
			return err
		}
		if !meta.IsSigner {
			return fmt.Errorf("%w: %s", ErrNotSigner, meta.PublicKey)
		}
	}
	if err := p.collectFee(ic); err != nil {
		return err
	}

	emitter, err := ic.Meta(postEmitter)
	if err != nil {
		return err
	}
	sequence, err := p.nextSequence(ic, emitter.PublicKey)
	if err != nil {
		return err
	}

	posted := &bridge.PostedMessage{
		ConsistencyLevel: msg.ConsistencyLevel,
		SubmissionTime:   uint32(ic.Now().Unix()),
		Nonce:            msg.Nonce,
		Sequence:         sequence,
		EmitterChain:     vaa.ChainIDSolana,
		EmitterAddress:   emitter.PublicKey,
		Payload:          msg.Payload,
	}
	if err := p.writeMessage(ic, posted); err != nil {
		return err
	}
	ic.Log("Sequence: %d", sequence)
	return nil
}

// collectFee requires the fee collector to have grown by at least the fee
// since the last message.
func (*Program) collectFee(ic *localnet.InvokeContext) error {
	configAddress, err := bridge.ConfigAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	feeCollectorAddress, err := bridge.FeeCollectorAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	if err := expect(ic, postConfig, configAddress); err != nil {
		return err
	}
	if err := expect(ic, postFeeCollector, feeCollectorAddress); err != nil {
		return err
	}

	account, err := ic.Load(postConfig)
	if err != nil {
		return err
	}
	if account.Owner != ic.ProgramID() {
		return fmt.Errorf("%w: config owned by %s", ErrAccountMismatch, account.Owner)
	}
	config, err := bridge.ParseConfig(account.Data)
	if err != nil {
		return err
	}
	collector, err := ic.Load(postFeeCollector)
	if err != nil {
		return err
	}
	required, err := math.Add64(config.LastLamports, config.Fee)
	if err != nil {
		return err
	}
	if collector.Lamports < required {
		return fmt.Errorf("%w: collector holds %d, need %d", ErrInsufficientFees, collector.Lamports, required)
	}
	config.LastLamports = collector.Lamports
	account.Data = config.Bytes()
	return ic.Store(postConfig, account)
}

// nextSequence returns the sequence of the message being posted and
// advances the counter, creating it for a new emitter.
func (*Program) nextSequence(ic *localnet.InvokeContext, emitter solana.PublicKey) (uint64, error) {
	address, bump, err := bridge.SequenceAddress(ic.ProgramID(), emitter)
	if err != nil {
		return 0, err
	}
	if err := expect(ic, postSequence, address); err != nil {
		return 0, err
	}
	account, err := ic.Load(postSequence)
	if err != nil {
		return 0, err
	}

	var sequence uint64
	if account.Owner == ic.ProgramID() {
		if sequence, err = bridge.ParseSequence(account.Data); err != nil {
			return 0, err
		}
	} else {
		payer, err := ic.Meta(postPayer)
		if err != nil {
			return 0, err
		}
		create := system.NewCreateAccountInstruction(
			localnet.RentExemptMinimum(bridge.SequenceLen), bridge.SequenceLen, ic.ProgramID(), payer.PublicKey, address,
		).Build()
		if err := ic.Invoke(create, append(bridge.SequenceSeeds(emitter), []byte{bump})); err != nil {
			return 0, err
		}
		if account, err = ic.Load(postSequence); err != nil {
			return 0, err
		}
	}

	next, err := math.Add64(sequence, 1)
	if err != nil {
		return 0, err
	}
	account.Data = binary.LittleEndian.AppendUint64(nil, next)
	return sequence, ic.Store(postSequence, account)
}

// writeMessage stores msg, creating the message account or overwriting an
// unreliable message of the same emitter and size.
func (*Program) writeMessage(ic *localnet.InvokeContext, msg *bridge.PostedMessage) error {
	data := msg.Bytes()
	account, err := ic.Load(postMessage)
	if err != nil {
		return err
	}
	if account.Owner == ic.ProgramID() {
		previous, err := bridge.ParsePostedMessage(account.Data)
		if err != nil {
			return err
		}
		if previous.EmitterAddress != msg.EmitterAddress || len(account.Data) != len(data) {
			return fmt.Errorf("%w: %d bytes from %s", ErrMessageMismatch, len(account.Data), previous.EmitterAddress)
		}
	} else {
		payer, err := ic.Meta(postPayer)
		if err != nil {
			return err
		}
		message, err := ic.Meta(postMessage)
		if err != nil {
			return err
		}
		create := system.NewCreateAccountInstruction(
			localnet.RentExemptMinimum(len(data)), uint64(len(data)), ic.ProgramID(), payer.PublicKey, message.PublicKey,
		).Build()
		if err := ic.Invoke(create); err != nil {
			return err
		}
		if account, err = ic.Load(postMessage); err != nil {
			return err
		}
	}
	account.Data = data
	return ic.Store(postMessage, account)
}

func expect(ic *localnet.InvokeContext, i int, key solana.PublicKey) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	if meta.PublicKey != key {
		return fmt.Errorf("%w: account %d is %s, want %s", ErrAccountMismatch, i, meta.PublicKey, key)
	}
	return nil
}
