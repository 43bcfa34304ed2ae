// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/math"
)

// System instruction discriminants.
const (
	systemCreateAccount uint32 = 0
	systemAssign        uint32 = 1
	systemTransfer      uint32 = 2
)

var (
	ErrAccountAlreadyInUse = errors.New("account already in use")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	errUnsupportedSystemInstruction = errors.New("unsupported system instruction")
)

// systemProgram implements the subset of the system program that creates
// and funds accounts.
type systemProgram struct{}

func (systemProgram) Process(ic *InvokeContext, data []byte) error {
	dec := bin.NewBinDecoder(data)
	kind, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
	}
	switch kind {
	case systemCreateAccount:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
		}
		space, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
		}
		owner, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
		}
		return createAccount(ic, lamports, space, solana.PublicKeyFromBytes(owner))
	case systemAssign:
		owner, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
		}
		return assign(ic, solana.PublicKeyFromBytes(owner))
	case systemTransfer:
		lamports, err := dec.ReadUint64(binary.LittleEndian)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
		}
		return transfer(ic, 0, 1, lamports)
	default:
		return fmt.Errorf("%w: %d", errUnsupportedSystemInstruction, kind)
	}
}

func requireSigner(ic *InvokeContext, i int) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	if !meta.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingRequiredSignature, meta.PublicKey)
	}
	return nil
}

func createAccount(ic *InvokeContext, lamports, space uint64, owner solana.PublicKey) error {
	if err := requireSigner(ic, 0); err != nil {
		return err
	}
	if err := requireSigner(ic, 1); err != nil {
		return err
	}
	to, err := ic.Load(1)
	if err != nil {
		return err
	}
	if to.Lamports != 0 || len(to.Data) != 0 || to.Owner != solana.SystemProgramID {
		meta, _ := ic.Meta(1)
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, meta.PublicKey)
	}
	if space > MaxAccountDataLen {
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, space)
	}
	if err := transfer(ic, 0, 1, lamports); err != nil {
		return err
	}
	to, err = ic.Load(1)
	if err != nil {
		return err
	}
	to.Data = make([]byte, space)
	to.Owner = owner
	return ic.Store(1, to)
}

func assign(ic *InvokeContext, owner solana.PublicKey) error {
	if err := requireSigner(ic, 0); err != nil {
		return err
	}
	account, err := ic.Load(0)
	if err != nil {
		return err
	}
	account.Owner = owner
	return ic.Store(0, account)
}

func transfer(ic *InvokeContext, from, to int, lamports uint64) error {
	if err := requireSigner(ic, from); err != nil {
		return err
	}
	source, err := ic.Load(from)
	if err != nil {
		return err
	}
	if len(source.Data) != 0 {
		return fmt.Errorf("%w: transfer from account with data", ErrInvalidInstructionData)
	}
	source.Lamports, err = math.Sub(source.Lamports, lamports)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	if err := ic.Store(from, source); err != nil {
		return err
	}
	dest, err := ic.Load(to)
	if err != nil {
		return err
	}
	dest.Lamports, err = math.Add64(dest.Lamports, lamports)
	if err != nil {
		return err
	}
	return ic.Store(to, dest)
}
