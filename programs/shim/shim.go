// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package shim runs the verify-VAA shim inside a local environment.
package shim

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/luxfi/math"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/signatures"
)

var (
	_ localnet.Program = (*Program)(nil)

	ErrUnauthorized        = errors.New("signer is not the refund recipient")
	ErrRecordFull          = errors.New("signature record is full")
	ErrRecordMismatch      = errors.New("signature record belongs to another guardian set")
	ErrGuardianSetMismatch = errors.New("guardian set account does not match")
	ErrGuardianSetExpired  = errors.New("guardian set expired")
	ErrNoSignatures        = errors.New("no signatures")

	errUnknownInstruction = errors.New("unknown instruction")
)

// Options select deliberately broken behavior.
type Options struct {
	// IgnoreQuorum accepts any valid signatures, however few.
	IgnoreQuorum bool
}

type Program struct {
	coreBridge solana.PublicKey
	options    Options
}

func New(coreBridge solana.PublicKey, options Options) *Program {
	return &Program{
		coreBridge: coreBridge,
		options:    options,
	}
}

func (p *Program) Process(ic *localnet.InvokeContext, data []byte) error {
	switch {
	case signatures.PostSignaturesDiscriminator.Match(data):
		args, err := signatures.ParsePostSignatures(data)
		if err != nil {
			return err
		}
		return p.postSignatures(ic, args)
	case signatures.CloseSignaturesDiscriminator.Match(data):
		return p.closeSignatures(ic)
	case signatures.VerifyHashDiscriminator.Match(data):
		args, err := signatures.ParseVerifyHash(data)
		if err != nil {
			return err
		}
		return p.verifyHash(ic, args)
	default:
		return errUnknownInstruction
	}
}

// postSignatures creates the record on first use and appends to it after.
func (p *Program) postSignatures(ic *localnet.InvokeContext, args *signatures.PostSignatures) error {
	payer, err := ic.Meta(0)
	if err != nil {
		return err
	}
	record, err := ic.Meta(1)
	if err != nil {
		return err
	}
	account, err := ic.Load(1)
	if err != nil {
		return err
	}

	var r *signatures.Record
	if account.Owner != ic.ProgramID() {
		if int(args.TotalSignatures) < len(args.Signatures) {
			return fmt.Errorf("%w: %d signatures for %d slots", ErrRecordFull, len(args.Signatures), args.TotalSignatures)
		}
		size := signatures.RecordSize(int(args.TotalSignatures))
		create := system.NewCreateAccountInstruction(
			localnet.RentExemptMinimum(size),
			uint64(size),
			ic.ProgramID(),
			payer.PublicKey,
			record.PublicKey,
		).Build()
		if err := ic.Invoke(create); err != nil {
			return err
		}
		if account, err = ic.Load(1); err != nil {
			return err
		}
		r = &signatures.Record{
			RefundRecipient:  payer.PublicKey,
			GuardianSetIndex: args.GuardianSetIndex,
		}
	} else {
		if r, err = signatures.ParseRecord(account.Data); err != nil {
			return err
		}
		if r.GuardianSetIndex != args.GuardianSetIndex {
			return fmt.Errorf("%w: %d, not %d", ErrRecordMismatch, r.GuardianSetIndex, args.GuardianSetIndex)
		}
		if r.RefundRecipient != payer.PublicKey {
			return ErrUnauthorized
		}
	}

	r.Signatures = append(r.Signatures, args.Signatures...)
	b := r.Bytes()
	if len(b) > len(account.Data) {
		return fmt.Errorf("%w: capacity %d", ErrRecordFull, (len(account.Data)-signatures.RecordSize(0))/vaa.GuardianSignatureLen)
	}
	copy(account.Data, b)
	ic.Log("posted %d signatures", len(args.Signatures))
	return ic.Store(1, account)
}

func (p *Program) closeSignatures(ic *localnet.InvokeContext) error {
	record, err := p.loadRecord(ic, 0)
	if err != nil {
		return err
	}
	authority, err := ic.Meta(1)
	if err != nil {
		return err
	}
	if !authority.IsSigner || authority.PublicKey != record.RefundRecipient {
		return ErrUnauthorized
	}

	account, err := ic.Load(0)
	if err != nil {
		return err
	}
	lamports := account.Lamports
	if err := ic.Store(0, &connection.Account{Owner: solana.SystemProgramID}); err != nil {
		return err
	}
	recipient, err := ic.Load(2)
	if err != nil {
		return err
	}
	recipient.Lamports, err = math.Add64(recipient.Lamports, lamports)
	if err != nil {
		return err
	}
	return ic.Store(2, recipient)
}

func (p *Program) verifyHash(ic *localnet.InvokeContext, args *signatures.VerifyHash) error {
	record, err := p.loadRecord(ic, 1)
	if err != nil {
		return err
	}

	guardianSet, err := ic.Meta(0)
	if err != nil {
		return err
	}
	seeds := append(bridge.GuardianSetSeeds(record.GuardianSetIndex), []byte{args.GuardianSetBump})
	expected, err := solana.CreateProgramAddress(seeds, p.coreBridge)
	if err != nil || expected != guardianSet.PublicKey {
		return fmt.Errorf("%w: %s", ErrGuardianSetMismatch, guardianSet.PublicKey)
	}
	account, err := ic.Load(0)
	if err != nil {
		return err
	}
	if account.Owner != p.coreBridge {
		return fmt.Errorf("%w: owned by %s", ErrGuardianSetMismatch, account.Owner)
	}
	set, err := bridge.ParseGuardianSetData(account.Data)
	if err != nil {
		return err
	}
	if set.Expired(uint64(max(ic.Now().Unix(), 0))) {
		return fmt.Errorf("%w: at %d", ErrGuardianSetExpired, set.ExpirationTime)
	}

	if !p.options.IgnoreQuorum {
		return vaa.VerifySignatures(args.Digest, record.Signatures, set.Keys)
	}
	if len(record.Signatures) == 0 {
		return ErrNoSignatures
	}
	if err := vaa.CheckSignatureOrder(record.Signatures); err != nil {
		return err
	}
	for _, sig := range record.Signatures {
		if int(sig.Index) >= len(set.Keys) {
			return fmt.Errorf("%w: %d", vaa.ErrGuardianIndex, sig.Index)
		}
		signer, err := vaa.RecoverSigner(args.Digest, sig.Signature)
		if err != nil || signer != set.Keys[sig.Index] {
			return fmt.Errorf("%w: guardian %d", vaa.ErrSignatureMismatch, sig.Index)
		}
	}
	return nil
}

func (p *Program) loadRecord(ic *localnet.InvokeContext, i int) (*signatures.Record, error) {
	account, err := ic.Load(i)
	if err != nil {
		return nil, err
	}
	if account.Owner != ic.ProgramID() {
		return nil, fmt.Errorf("%w: owned by %s", signatures.ErrInvalidRecord, account.Owner)
	}
	return signatures.ParseRecord(account.Data)
}
