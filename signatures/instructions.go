// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signatures

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/ids"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/internal/anchor"
	"github.com/luxfi/vaa/utils/wrappers"
)

var (
	PostSignaturesDiscriminator  = anchor.Instruction("post_signatures")
	CloseSignaturesDiscriminator = anchor.Instruction("close_signatures")
	VerifyHashDiscriminator      = anchor.Instruction("verify_hash")
	RecordDiscriminator          = anchor.Account("GuardianSignatures")

	ErrInvalidInstruction = errors.New("invalid shim instruction")
	ErrInvalidRecord      = errors.New("invalid signature record")
)

// PostSignatures is the argument of post_signatures. A record may be filled
// across several posts, TotalSignatures fixes its capacity on the first.
type PostSignatures struct {
	GuardianSetIndex uint32
	TotalSignatures  uint8
	Signatures       []vaa.GuardianSignature
}

func (p *PostSignatures) Bytes() []byte {
	w := wrappers.NewWriter(
		anchor.DiscriminatorLen+wrappers.IntLen+wrappers.ByteLen+wrappers.IntLen+len(p.Signatures)*vaa.GuardianSignatureLen,
		math.MaxInt32,
		binary.LittleEndian,
	)
	w.PackFixedBytes(PostSignaturesDiscriminator[:])
	w.PackInt(p.GuardianSetIndex)
	w.PackByte(p.TotalSignatures)
	packSignatures(w, p.Signatures)
	return w.Bytes
}

func ParsePostSignatures(data []byte) (*PostSignatures, error) {
	if !PostSignaturesDiscriminator.Match(data) {
		return nil, fmt.Errorf("%w: not post_signatures", ErrInvalidInstruction)
	}
	r := wrappers.NewReader(data[anchor.DiscriminatorLen:], binary.LittleEndian)
	p := &PostSignatures{
		GuardianSetIndex: r.UnpackInt(),
		TotalSignatures:  r.UnpackByte(),
	}
	p.Signatures = unpackSignatures(r)
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: post_signatures: %w", ErrInvalidInstruction, err)
	}
	return p, nil
}

// NewPostSignaturesInstruction creates or extends record. The record must sign
// the transaction when it is created.
func NewPostSignaturesInstruction(programID, payer, record solana.PublicKey, args *PostSignatures) solana.Instruction {
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(record, true, true),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		args.Bytes(),
	)
}

// NewCloseSignaturesInstruction deletes record and sends its lamports to
// rentRecipient. authority must be the refund recipient named in the record
// and must sign.
func NewCloseSignaturesInstruction(programID, record, authority, rentRecipient solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(record, true, false),
			solana.NewAccountMeta(authority, true, true),
			solana.NewAccountMeta(rentRecipient, true, false),
		},
		CloseSignaturesDiscriminator[:],
	)
}

// VerifyHash asks the shim to check the signatures in a record against a
// digest and the guardian set at the given bump.
type VerifyHash struct {
	GuardianSetBump uint8
	Digest          ids.ID
}

func (v *VerifyHash) Bytes() []byte {
	b := make([]byte, 0, anchor.DiscriminatorLen+wrappers.ByteLen+wrappers.HashLen)
	b = append(b, VerifyHashDiscriminator[:]...)
	b = append(b, v.GuardianSetBump)
	return append(b, v.Digest[:]...)
}

func ParseVerifyHash(data []byte) (*VerifyHash, error) {
	if !VerifyHashDiscriminator.Match(data) {
		return nil, fmt.Errorf("%w: not verify_hash", ErrInvalidInstruction)
	}
	r := wrappers.NewReader(data[anchor.DiscriminatorLen:], binary.LittleEndian)
	v := &VerifyHash{
		GuardianSetBump: r.UnpackByte(),
		Digest:          r.UnpackHash(),
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("%w: verify_hash: %w", ErrInvalidInstruction, err)
	}
	return v, nil
}

func NewVerifyHashInstruction(programID, guardianSet, record solana.PublicKey, args *VerifyHash) solana.Instruction {
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(guardianSet, false, false),
			solana.NewAccountMeta(record, false, false),
		},
		args.Bytes(),
	)
}

// Record is the account a post creates.
type Record struct {
	RefundRecipient  solana.PublicKey
	GuardianSetIndex uint32
	Signatures       []vaa.GuardianSignature
}

// RecordSize returns the account size of a record holding n signatures.
func RecordSize(n int) int {
	return anchor.DiscriminatorLen + wrappers.HashLen + wrappers.IntLen + wrappers.IntLen + n*vaa.GuardianSignatureLen
}

// Bytes encodes the record. The guardian set index is stored big endian.
func (r *Record) Bytes() []byte {
	w := wrappers.NewWriter(RecordSize(len(r.Signatures)), math.MaxInt32, binary.LittleEndian)
	w.PackFixedBytes(RecordDiscriminator[:])
	w.PackFixedBytes(r.RefundRecipient[:])
	w.PackFixedBytes(binary.BigEndian.AppendUint32(nil, r.GuardianSetIndex))
	packSignatures(w, r.Signatures)
	return w.Bytes
}

// ParseRecord decodes a record. Bytes beyond the signatures are unused
// capacity.
func ParseRecord(data []byte) (*Record, error) {
	if !RecordDiscriminator.Match(data) {
		return nil, fmt.Errorf("%w: bad discriminator", ErrInvalidRecord)
	}
	p := wrappers.NewReader(data[anchor.DiscriminatorLen:], binary.LittleEndian)
	refund := p.UnpackHash()
	gsIndex := p.UnpackFixedBytes(wrappers.IntLen)
	sigs := unpackSignatures(p)
	if p.Errored() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, p.Err)
	}
	return &Record{
		RefundRecipient:  refund,
		GuardianSetIndex: binary.BigEndian.Uint32(gsIndex),
		Signatures:       sigs,
	}, nil
}

func packSignatures(w *wrappers.Packer, sigs []vaa.GuardianSignature) {
	w.PackInt(uint32(len(sigs)))
	for _, sig := range sigs {
		b := sig.Bytes()
		w.PackFixedBytes(b[:])
	}
}

func unpackSignatures(r *wrappers.Packer) []vaa.GuardianSignature {
	n := r.UnpackInt()
	if r.Errored() {
		return nil
	}
	if int(n) > r.Remaining()/vaa.GuardianSignatureLen {
		r.Add(wrappers.ErrInsufficientLength)
		return nil
	}
	sigs := make([]vaa.GuardianSignature, n)
	for i := range sigs {
		sig, err := vaa.ParseGuardianSignature(r.UnpackFixedBytes(vaa.GuardianSignatureLen))
		if err != nil {
			r.Add(err)
			return nil
		}
		sigs[i] = sig
	}
	return sigs
}
