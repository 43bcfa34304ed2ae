// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor submits a resolved plan, one transaction per instruction
// group.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/samber/lo"

	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/resolver"
)

var ErrExecution = errors.New("execution failed")

// ExecutionError reports the first group that failed. Later groups were not
// attempted.
type ExecutionError struct {
	Group int
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: group %d: %s", ErrExecution, e.Group, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// Bindings are the values substituted for placeholders at execution time.
type Bindings struct {
	SignatureRecord solana.PublicKey
	GuardianSet     solana.PublicKey
}

type Executor struct {
	log log.Logger
}

func New(logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Executor{log: logger}
}

// Execute submits every group of plan in order and stops at the first
// failure, returning it with the receipts of the groups that committed.
//
// Keypair placeholders are bound to fresh keys generated once per plan, so a
// placeholder names the same account in every group.
func (e *Executor) Execute(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	plan *resolver.Plan,
	bindings Bindings,
) ([]*connection.Receipt, error) {
	keypairs, err := generateKeypairs(plan)
	if err != nil {
		return nil, &ExecutionError{Group: 0, Err: err}
	}
	b := binder{
		payer:    payer,
		bindings: bindings,
		keypairs: keypairs,
	}

	receipts := make([]*connection.Receipt, 0, len(plan.Groups))
	for i, group := range plan.Groups {
		receipt, err := e.executeGroup(ctx, conn, b, group)
		if err != nil {
			e.log.Warn("instruction group failed",
				log.Int("group", i),
				log.Int("groups", len(plan.Groups)),
				log.Err(err),
			)
			return receipts, &ExecutionError{Group: i, Err: err}
		}
		e.log.Debug("instruction group committed",
			log.Int("group", i),
			log.Stringer("signature", receipt.Signature),
			log.Uint64("slot", receipt.Slot),
		)
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (e *Executor) executeGroup(
	ctx context.Context,
	conn connection.Connection,
	b binder,
	group resolver.InstructionGroup,
) (*connection.Receipt, error) {
	instructions := make([]solana.Instruction, len(group.Instructions))
	signers := map[solana.PublicKey]solana.PrivateKey{
		b.payer.PublicKey(): b.payer,
	}
	for i, ix := range group.Instructions {
		accounts := make(solana.AccountMetaSlice, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			key, signer := b.bind(meta.PublicKey)
			if signer != nil {
				signers[key] = signer
			}
			accounts[j] = solana.NewAccountMeta(key, meta.IsWritable, meta.IsSigner)
		}
		programID, _ := b.bind(ix.ProgramID)
		instructions[i] = solana.NewInstruction(programID, accounts, ix.Data)
	}

	blockhash, err := conn.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, connection.Wrap(err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(b.payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("building transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := signers[key]; ok {
			return &k
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	receipt, err := conn.SendAndConfirm(ctx, tx)
	if err != nil {
		return nil, connection.Wrap(err)
	}
	return receipt, nil
}

func generateKeypairs(plan *resolver.Plan) (map[int]solana.PrivateKey, error) {
	metas := lo.FlatMap(plan.Groups, func(group resolver.InstructionGroup, _ int) []resolver.AccountMeta {
		return lo.FlatMap(group.Instructions, func(ix resolver.Instruction, _ int) []resolver.AccountMeta {
			return ix.Accounts
		})
	})
	used := lo.Uniq(lo.FilterMap(metas, func(meta resolver.AccountMeta, _ int) (int, bool) {
		return resolver.KeypairPlaceholderIndex(meta.PublicKey)
	}))

	keypairs := make(map[int]solana.PrivateKey, len(used))
	for _, index := range used {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generating keypair %d: %w", index, err)
		}
		keypairs[index] = key
	}
	return keypairs, nil
}

type binder struct {
	payer    solana.PrivateKey
	bindings Bindings
	keypairs map[int]solana.PrivateKey
}

// bind returns the concrete key for a possibly placeholder key, and the
// private key when the binding is a generated keypair.
func (b binder) bind(key solana.PublicKey) (solana.PublicKey, solana.PrivateKey) {
	switch key {
	case resolver.PayerPlaceholder:
		return b.payer.PublicKey(), nil
	case resolver.SignatureRecordPlaceholder:
		return b.bindings.SignatureRecord, nil
	case resolver.GuardianSetPlaceholder:
		return b.bindings.GuardianSet, nil
	}
	if index, ok := resolver.KeypairPlaceholderIndex(key); ok {
		k := b.keypairs[index]
		return k.PublicKey(), k
	}
	return key, nil
}
