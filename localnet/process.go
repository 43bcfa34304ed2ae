// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/log"
	"github.com/luxfi/math"

	"github.com/luxfi/vaa/connection"
)

// process runs tx against a versioned layer of the state. When commit is
// false signatures are not checked and nothing is written. When commit is true
// a transaction that was charged returns a non-nil execution, even if it
// failed.
func (e *Environment) process(tx *solana.Transaction, commit bool) (*execution, error) {
	metas, err := messageAccounts(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
	}
	signature := tx.Signatures[0]
	if commit {
		if err := e.checkSignatures(tx); err != nil {
			return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
		}
	}

	layer := versiondb.New(e.db)
	defer layer.Abort()

	state := newTxState(layer)
	fee, err := math.Mul64(e.config.LamportsPerSignature, uint64(len(tx.Signatures)))
	if err != nil {
		return nil, fmt.Errorf("%w: fee: %w", connection.ErrConnection, err)
	}
	if err := chargeFee(state, metas[0].PublicKey, fee); err != nil {
		return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
	}

	exec := &execution{}
	failedAt, err := e.execute(state, exec, tx, metas)
	if err == nil {
		failedAt = -1
		err = state.checkRent()
	}
	if err == nil {
		err = state.flush()
	}
	if err != nil {
		if commit {
			layer.Abort()
			if chargeErr := e.commitFee(metas[0].PublicKey, fee, signature); chargeErr != nil {
				return nil, fmt.Errorf("%w: %w", connection.ErrConnection, chargeErr)
			}
			e.log.Debug("transaction failed",
				log.Stringer("signature", signature),
				log.Int("instruction", failedAt),
				log.Err(err),
			)
		}
		txErr := &TransactionError{
			Signature:   signature,
			Instruction: failedAt,
			Err:         err,
			Logs:        exec.logs,
		}
		if commit {
			return exec, txErr
		}
		return nil, txErr
	}
	if !commit {
		return exec, nil
	}

	if err := markProcessed(layer, signature); err != nil {
		return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
	}
	if err := layer.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
	}
	return exec, nil
}

// execute runs every instruction in order and returns the index of the one
// that failed.
func (e *Environment) execute(
	state *txState,
	exec *execution,
	tx *solana.Transaction,
	metas []*solana.AccountMeta,
) (int, error) {
	for i, ix := range tx.Message.Instructions {
		programID := metas[ix.ProgramIDIndex].PublicKey
		accounts := make([]*solana.AccountMeta, len(ix.Accounts))
		for j, index := range ix.Accounts {
			if int(index) >= len(metas) {
				return i, fmt.Errorf("%w: account index %d", ErrSanitize, index)
			}
			meta := *metas[index]
			accounts[j] = &meta
		}
		if err := e.invoke(state, exec, programID, accounts, ix.Data, 1); err != nil {
			return i, err
		}
	}
	return 0, nil
}

func (e *Environment) checkSignatures(tx *solana.Transaction) error {
	if !slices.Contains(e.blockhashes, tx.Message.RecentBlockhash) {
		return fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("%w: %w", ErrSignatureFailure, err)
	}
	seen, err := prefixdb.New(signaturePrefix, e.db).Has(tx.Signatures[0][:])
	if err != nil {
		return err
	}
	if seen {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, tx.Signatures[0])
	}
	return nil
}

// commitFee charges a failed transaction directly against the base state.
func (e *Environment) commitFee(payer solana.PublicKey, fee uint64, signature solana.Signature) error {
	layer := versiondb.New(e.db)
	defer layer.Abort()

	state := newTxState(layer)
	if err := chargeFee(state, payer, fee); err != nil {
		return err
	}
	if err := state.flush(); err != nil {
		return err
	}
	if err := markProcessed(layer, signature); err != nil {
		return err
	}
	return layer.Commit()
}

func chargeFee(state *txState, payer solana.PublicKey, fee uint64) error {
	account, err := state.load(payer)
	if err != nil {
		return err
	}
	if account.Lamports < fee {
		return fmt.Errorf("%w: %s holds %d, fee is %d", ErrInsufficientFundsForFee, payer, account.Lamports, fee)
	}
	charged := account.Clone()
	charged.Lamports -= fee
	state.set(payer, charged)
	return nil
}

func markProcessed(db database.Database, signature solana.Signature) error {
	return prefixdb.New(signaturePrefix, db).Put(signature[:], processed)
}

// messageAccounts returns the keys of tx with the privileges its header
// grants them.
func messageAccounts(tx *solana.Transaction) ([]*solana.AccountMeta, error) {
	var (
		msg      = &tx.Message
		header   = msg.Header
		keys     = msg.AccountKeys
		required = int(header.NumRequiredSignatures)
	)
	switch {
	case required == 0 || len(tx.Signatures) != required:
		return nil, fmt.Errorf("%w: %d signatures for %d signers", ErrSanitize, len(tx.Signatures), required)
	case len(keys) < required:
		return nil, fmt.Errorf("%w: %d keys for %d signers", ErrSanitize, len(keys), required)
	case int(header.NumReadonlySignedAccounts) >= required:
		return nil, fmt.Errorf("%w: fee payer is readonly", ErrSanitize)
	case int(header.NumReadonlyUnsignedAccounts) > len(keys)-required:
		return nil, fmt.Errorf("%w: readonly accounts exceed keys", ErrSanitize)
	}

	metas := make([]*solana.AccountMeta, len(keys))
	for i, key := range keys {
		signer := i < required
		var writable bool
		if signer {
			writable = i < required-int(header.NumReadonlySignedAccounts)
		} else {
			writable = i < len(keys)-int(header.NumReadonlyUnsignedAccounts)
		}
		metas[i] = solana.NewAccountMeta(key, writable, signer)
	}
	for _, ix := range msg.Instructions {
		if int(ix.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("%w: program index %d", ErrSanitize, ix.ProgramIDIndex)
		}
	}
	return metas, nil
}
