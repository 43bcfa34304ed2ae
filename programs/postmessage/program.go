// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package postmessage is the post message shim. It posts through the core
// bridge with an empty payload and emits the message's emitter and sequence
// as an event, leaving the payload in its own instruction data.
package postmessage

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/internal/anchor"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/messages"
)

var (
	_ localnet.Program = (*Program)(nil)

	ErrAccountMismatch = errors.New("account does not match")
	ErrNotSigner       = errors.New("account must sign")

	errUnknownInstruction = errors.New("unknown instruction")
)

// post_message account positions.
const (
	postConfig = iota
	postMessage
	postEmitter
	postSequence
	postPayer
	postFeeCollector
	postClock
	postSystem
	postCoreBridge
	postEventAuthority
	postProgram
)

type Program struct {
	coreBridge solana.PublicKey
}

func New(coreBridge solana.PublicKey) *Program {
	return &Program{coreBridge: coreBridge}
}

func (p *Program) Process(ic *localnet.InvokeContext, data []byte) error {
	switch {
	case anchor.EventInstructionTag.Match(data):
		return emitEvent(ic)
	case messages.PostMessageDiscriminator.Match(data):
		msg, err := messages.ParsePostMessage(data)
		if err != nil {
			return err
		}
		return p.postMessage(ic, msg)
	default:
		return errUnknownInstruction
	}
}

func (p *Program) postMessage(ic *localnet.InvokeContext, msg *messages.PostMessage) error {
	emitter, err := ic.Meta(postEmitter)
	if err != nil {
		return err
	}
	if !emitter.IsSigner {
		return fmt.Errorf("%w: emitter %s", ErrNotSigner, emitter.PublicKey)
	}
	messageAddress, messageBump, err := messages.MessageAddress(ic.ProgramID(), emitter.PublicKey)
	if err != nil {
		return err
	}
	eventAuthority, eventBump, err := messages.EventAuthorityAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	for _, want := range []struct {
		i   int
		key solana.PublicKey
	}{
		{postMessage, messageAddress},
		{postCoreBridge, p.coreBridge},
		{postEventAuthority, eventAuthority},
		{postProgram, ic.ProgramID()},
	} {
		if err := expect(ic, want.i, want.key); err != nil {
			return err
		}
	}

	sequence, err := currentSequence(ic, p.coreBridge)
	if err != nil {
		return err
	}

	accounts, err := postAccounts(ic)
	if err != nil {
		return err
	}
	post := bridge.NewPostMessageUnreliableInstruction(p.coreBridge, accounts, &bridge.PostMessageUnreliable{
		Nonce:            msg.Nonce,
		ConsistencyLevel: msg.Finality,
	})
	if err := ic.Invoke(post, [][]byte{emitter.PublicKey[:], {messageBump}}); err != nil {
		return err
	}

	event := &messages.MessageEvent{
		Emitter:        emitter.PublicKey,
		Sequence:       sequence,
		SubmissionTime: uint32(ic.Now().Unix()),
	}
	emit := solana.NewInstruction(
		ic.ProgramID(),
		solana.AccountMetaSlice{solana.NewAccountMeta(eventAuthority, false, true)},
		event.Bytes(),
	)
	return ic.Invoke(emit, [][]byte{anchor.EventAuthoritySeed, {eventBump}})
}

// emitEvent accepts only invocations signed by the event authority, so
// events cannot be forged by other programs.
func emitEvent(ic *localnet.InvokeContext) error {
	authority, _, err := messages.EventAuthorityAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	meta, err := ic.Meta(0)
	if err != nil {
		return err
	}
	if meta.PublicKey != authority || !meta.IsSigner {
		return fmt.Errorf("%w: event authority %s", ErrNotSigner, meta.PublicKey)
	}
	return nil
}

// currentSequence returns the sequence the core bridge will assign, zero for
// an emitter that has never posted.
func currentSequence(ic *localnet.InvokeContext, coreBridge solana.PublicKey) (uint64, error) {
	account, err := ic.Load(postSequence)
	if err != nil {
		return 0, err
	}
	if account.Owner != coreBridge {
		return 0, nil
	}
	return bridge.ParseSequence(account.Data)
}

func postAccounts(ic *localnet.InvokeContext) (*bridge.PostMessageAccounts, error) {
	keys := make([]solana.PublicKey, postFeeCollector+1)
	for i := range keys {
		meta, err := ic.Meta(i)
		if err != nil {
			return nil, err
		}
		keys[i] = meta.PublicKey
	}
	return &bridge.PostMessageAccounts{
		Config:       keys[postConfig],
		Message:      keys[postMessage],
		Emitter:      keys[postEmitter],
		Sequence:     keys[postSequence],
		Payer:        keys[postPayer],
		FeeCollector: keys[postFeeCollector],
	}, nil
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
