// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package example is a target program that consumes attestations through
// the resolve/execute protocol. Its Flaws turn off individual checks.
package example

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/resolver"
	"github.com/luxfi/vaa/signatures"
)

var (
	_ localnet.Program = (*Program)(nil)

	ErrEmitterChain       = errors.New("unexpected emitter chain")
	ErrEmitterAddress     = errors.New("unexpected emitter address")
	ErrAlreadyConsumed    = errors.New("attestation already consumed")
	ErrAccountMismatch    = errors.New("account does not match")
	ErrGuardianSetMissing = errors.New("guardian set account not provided")

	errUnknownInstruction = errors.New("unknown instruction")
)

// consume_vaa account positions.
const (
	consumePayer = iota
	consumeConfig
	consumeGuardianSet
	consumeSignatures
	consumeReceipt
	consumeShim
	consumeSystem
)

// Flaws disable checks a correct consumer performs.
type Flaws struct {
	SkipVerify         bool
	SkipEmitterChain   bool
	SkipEmitterAddress bool
	AllowReplay        bool
}

type Program struct {
	coreBridge solana.PublicKey
	shim       solana.PublicKey
	flaws      Flaws
}

func New(coreBridge, shim solana.PublicKey, flaws Flaws) *Program {
	return &Program{
		coreBridge: coreBridge,
		shim:       shim,
		flaws:      flaws,
	}
}

func (p *Program) Process(ic *localnet.InvokeContext, data []byte) error {
	switch {
	case InitializeDiscriminator.Match(data):
		return p.initialize(ic, data[len(InitializeDiscriminator):])
	case resolver.ResolveExecuteVAAV1Discriminator.Match(data):
		body, err := resolver.ParseRequestData(data)
		if err != nil {
			return err
		}
		return p.resolve(ic, body)
	case ConsumeDiscriminator.Match(data):
		args, err := parseConsumeArgs(data)
		if err != nil {
			return err
		}
		return p.consume(ic, args)
	default:
		return errUnknownInstruction
	}
}

func (p *Program) initialize(ic *localnet.InvokeContext, data []byte) error {
	if len(data) != 2+vaa.AddressLen {
		return fmt.Errorf("%w: initialize data is %d bytes", ErrInvalidConfig, len(data))
	}
	config := &Config{EmitterChain: binary.LittleEndian.Uint16(data)}
	copy(config.EmitterAddress[:], data[2:])

	payer, err := ic.Meta(0)
	if err != nil {
		return err
	}
	address, bump, err := ConfigAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	if err := p.expect(ic, 1, address); err != nil {
		return err
	}
	create := system.NewCreateAccountInstruction(
		localnet.RentExemptMinimum(ConfigLen), ConfigLen, ic.ProgramID(), payer.PublicKey, address,
	).Build()
	if err := ic.Invoke(create, [][]byte{configSeed, {bump}}); err != nil {
		return err
	}
	account, err := ic.Load(1)
	if err != nil {
		return err
	}
	account.Data = config.Bytes()
	return ic.Store(1, account)
}

// resolve asks for the config and guardian set accounts, then returns a
// single consume_vaa instruction.
func (p *Program) resolve(ic *localnet.InvokeContext, body []byte) error {
	configAddress, _, err := ConfigAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	var (
		haveConfig  bool
		guardianSet *bridge.GuardianSetData
	)
	for i := range ic.NumAccounts() {
		meta, _ := ic.Meta(i)
		if meta.PublicKey == configAddress {
			haveConfig = true
			continue
		}
		account, err := ic.Load(i)
		if err != nil {
			return err
		}
		if account.Owner != p.coreBridge {
			continue
		}
		if data, err := bridge.ParseGuardianSetData(account.Data); err == nil {
			guardianSet = data
		}
	}
	if !haveConfig || guardianSet == nil {
		data, err := resolver.EncodeMissing(resolver.Missing{
			Accounts: []solana.PublicKey{configAddress, resolver.GuardianSetPlaceholder},
		})
		if err != nil {
			return err
		}
		ic.SetReturnData(data)
		return nil
	}

	_, guardianSetBump, err := bridge.GuardianSetAddress(p.coreBridge, guardianSet.Index)
	if err != nil {
		return err
	}
	receipt, receiptBump, err := ReceiptAddress(ic.ProgramID(), vaa.DigestOf(body))
	if err != nil {
		return err
	}
	args := &consumeArgs{
		GuardianSetBump: guardianSetBump,
		ReceiptBump:     receiptBump,
		Body:            body,
	}
	argsBytes, err := args.Bytes()
	if err != nil {
		return err
	}
	data, err := resolver.EncodeResolved([]resolver.InstructionGroup{{
		Instructions: []resolver.Instruction{{
			ProgramID: ic.ProgramID(),
			Accounts: []resolver.AccountMeta{
				{PublicKey: resolver.PayerPlaceholder, IsSigner: true, IsWritable: true},
				{PublicKey: configAddress, IsWritable: true},
				{PublicKey: resolver.GuardianSetPlaceholder},
				{PublicKey: resolver.SignatureRecordPlaceholder},
				{PublicKey: receipt, IsWritable: true},
				{PublicKey: p.shim},
				{PublicKey: solana.SystemProgramID},
			},
			Data: argsBytes,
		}},
	}})
	if err != nil {
		return err
	}
	ic.SetReturnData(data)
	return nil
}

func (p *Program) consume(ic *localnet.InvokeContext, args *consumeArgs) error {
	body, err := vaa.ParseBody(args.Body)
	if err != nil {
		return err
	}
	digest := body.Digest()

	if !p.flaws.SkipVerify {
		guardianSet, err := ic.Meta(consumeGuardianSet)
		if err != nil {
			return err
		}
		record, err := ic.Meta(consumeSignatures)
		if err != nil {
			return err
		}
		if err := p.expect(ic, consumeShim, p.shim); err != nil {
			return err
		}
		verify := signatures.NewVerifyHashInstruction(p.shim, guardianSet.PublicKey, record.PublicKey, &signatures.VerifyHash{
			GuardianSetBump: args.GuardianSetBump,
			Digest:          digest,
		})
		if err := ic.Invoke(verify); err != nil {
			return err
		}
	}

	configAddress, _, err := ConfigAddress(ic.ProgramID())
	if err != nil {
		return err
	}
	if err := p.expect(ic, consumeConfig, configAddress); err != nil {
		return err
	}
	account, err := ic.Load(consumeConfig)
	if err != nil {
		return err
	}
	if account.Owner != ic.ProgramID() {
		return fmt.Errorf("%w: config owned by %s", ErrInvalidConfig, account.Owner)
	}
	config, err := ParseConfig(account.Data)
	if err != nil {
		return err
	}
	if !p.flaws.SkipEmitterChain && body.EmitterChain != config.EmitterChain {
		return fmt.Errorf("%w: %d", ErrEmitterChain, body.EmitterChain)
	}
	if !p.flaws.SkipEmitterAddress && body.EmitterAddress != config.EmitterAddress {
		return fmt.Errorf("%w: %s", ErrEmitterAddress, body.EmitterAddress)
	}

	if !p.flaws.AllowReplay {
		if err := p.markConsumed(ic, digest[:], args.ReceiptBump); err != nil {
			return err
		}
	}

	config.Consumed++
	account.Data = config.Bytes()
	ic.Log("consumed sequence %d from chain %d", body.Sequence, body.EmitterChain)
	return ic.Store(consumeConfig, account)
}

// markConsumed creates the receipt of digest, failing if it exists.
func (p *Program) markConsumed(ic *localnet.InvokeContext, digest []byte, bump uint8) error {
	seeds := [][]byte{receiptSeed, digest, {bump}}
	address, err := solana.CreateProgramAddress(seeds, ic.ProgramID())
	if err != nil {
		return fmt.Errorf("%w: receipt: %w", ErrAccountMismatch, err)
	}
	if err := p.expect(ic, consumeReceipt, address); err != nil {
		return err
	}
	receipt, err := ic.Load(consumeReceipt)
	if err != nil {
		return err
	}
	if receipt.Owner == ic.ProgramID() {
		return ErrAlreadyConsumed
	}
	payer, err := ic.Meta(consumePayer)
	if err != nil {
		return err
	}
	create := system.NewCreateAccountInstruction(
		localnet.RentExemptMinimum(ReceiptLen), ReceiptLen, ic.ProgramID(), payer.PublicKey, address,
	).Build()
	return ic.Invoke(create, seeds)
}

func (*Program) expect(ic *localnet.InvokeContext, i int, key solana.PublicKey) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	if meta.PublicKey != key {
		return fmt.Errorf("%w: account %d is %s, want %s", ErrAccountMismatch, i, meta.PublicKey, key)
	}
	return nil
}
