// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package connection defines the four operations the submitter needs from an
// execution host.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrConnection wraps every transport or host failure.
	ErrConnection = errors.New("connection error")
	// ErrTransactionFailed is returned when the host executed a transaction
	// and one of its instructions failed.
	ErrTransactionFailed = errors.New("transaction failed")
)

// Wrap marks err as ErrConnection unless it already is one or reports a
// failed transaction.
func Wrap(err error) error {
	if err == nil || errors.Is(err, ErrConnection) || errors.Is(err, ErrTransactionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// Connection is the complete contract between the submitter and a host. The
// resolver, executor and signature lifecycle depend on nothing else.
type Connection interface {
	// GetLatestBlockhash returns a blockhash new transactions may reference.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Simulate executes tx without committing and returns the return data,
	// or nil if the transaction set none.
	Simulate(ctx context.Context, tx *solana.Transaction) ([]byte, error)
	// SendAndConfirm blocks until tx is committed or has failed.
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (*Receipt, error)
	// GetAccount returns nil, nil when the account does not exist.
	GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error)
}

// Environment is a Connection whose whole state can be copied. Live networks
// cannot offer this, which keeps snapshot based verification off them.
type Environment interface {
	Connection
	// Snapshot returns an independent copy. Changes to either side are never
	// visible to the other.
	Snapshot() (Environment, error)
}

// Receipt describes a committed transaction.
type Receipt struct {
	Signature solana.Signature
	Slot      uint64
	Logs      []string
	// InnerInstructions lists every cross-program invocation in the order
	// it was made.
	InnerInstructions []InnerInstruction
}

// InnerInstruction is an instruction issued by a program rather than by the
// transaction.
type InnerInstruction struct {
	ProgramID solana.PublicKey
	Data      []byte
}

// Account is a point in time copy of a host account.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Executable bool
	Data       []byte
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}
