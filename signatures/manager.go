// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signatures manages the short lived accounts that hold guardian
// signatures while an attestation is consumed.
package signatures

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/metrics"
)

var (
	ErrSignatureLifecycle = errors.New("signature lifecycle failed")
	ErrTooManySignatures  = errors.New("too many signatures")
)

// LifecycleError is returned by With when both the wrapped operation and the
// close failed. Err comes first in Unwrap.
type LifecycleError struct {
	Err      error
	CloseErr error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s; close also failed: %s", e.Err, e.CloseErr)
}

func (e *LifecycleError) Unwrap() []error {
	return []error{e.Err, e.CloseErr}
}

// Manager posts and closes signature records on a verify shim.
type Manager struct {
	programID solana.PublicKey
	log       log.Logger
	metrics   metrics.Metrics
}

func NewManager(programID solana.PublicKey, logger log.Logger, m metrics.Metrics) *Manager {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.Noop
	}
	return &Manager{
		programID: programID,
		log:       logger,
		metrics:   m,
	}
}

func (m *Manager) ProgramID() solana.PublicKey {
	return m.programID
}

// Post writes sigs to a new record funded by payer and returns its address.
// payer is recorded as the only account allowed to close it.
func (m *Manager) Post(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	guardianSetIndex uint32,
	sigs []vaa.GuardianSignature,
) (solana.PublicKey, error) {
	if len(sigs) > math.MaxUint8 {
		return solana.PublicKey{}, fmt.Errorf("%w: %w: %d", ErrSignatureLifecycle, ErrTooManySignatures, len(sigs))
	}
	record, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: generating record key: %w", ErrSignatureLifecycle, err)
	}
	ix := NewPostSignaturesInstruction(m.programID, payer.PublicKey(), record.PublicKey(), &PostSignatures{
		GuardianSetIndex: guardianSetIndex,
		TotalSignatures:  uint8(len(sigs)),
		Signatures:       sigs,
	})
	receipt, err := send(ctx, conn, payer, ix, record)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: post: %w", ErrSignatureLifecycle, err)
	}
	m.metrics.IncRecordsPosted()
	m.log.Debug("posted signatures",
		log.Stringer("record", record.PublicKey()),
		log.Uint32("guardianSetIndex", guardianSetIndex),
		log.Int("signatures", len(sigs)),
		log.Stringer("signature", receipt.Signature),
	)
	return record.PublicKey(), nil
}

// Close deletes record, sending its lamports to rentRecipient. payer must be
// the account that posted it.
func (m *Manager) Close(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	record solana.PublicKey,
	rentRecipient solana.PublicKey,
) error {
	ix := NewCloseSignaturesInstruction(m.programID, record, payer.PublicKey(), rentRecipient)
	receipt, err := send(ctx, conn, payer, ix)
	if err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrSignatureLifecycle, record, err)
	}
	m.metrics.IncRecordsClosed()
	m.log.Debug("closed signatures",
		log.Stringer("record", record),
		log.Stringer("rentRecipient", rentRecipient),
		log.Stringer("signature", receipt.Signature),
	)
	return nil
}

// With posts sigs, runs fn with the record and then closes the record,
// refunding payer, whatever fn returned. A record is closed exactly once for
// every successful post and never when the post failed. A panic in fn is
// propagated after the record was closed.
func (m *Manager) With(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	guardianSetIndex uint32,
	sigs []vaa.GuardianSignature,
	fn func(record solana.PublicKey) error,
) (err error) {
	record, err := m.Post(ctx, conn, payer, guardianSetIndex, sigs)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := m.Close(ctx, conn, payer, record, payer.PublicKey())
		if r := recover(); r != nil {
			if closeErr != nil {
				m.log.Warn("failed to close signatures after panic",
					log.Stringer("record", record),
					log.Err(closeErr),
				)
			}
			panic(r)
		}
		switch {
		case err != nil && closeErr != nil:
			m.log.Warn("failed to close signatures after failure",
				log.Stringer("record", record),
				log.Err(closeErr),
			)
			err = &LifecycleError{Err: err, CloseErr: closeErr}
		case err == nil:
			err = closeErr
		}
	}()
	return fn(record)
}

func send(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	ix solana.Instruction,
	extraSigners ...solana.PrivateKey,
) (*connection.Receipt, error) {
	blockhash, err := conn.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, connection.Wrap(err)
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("building transaction: %w", err)
	}
	signers := append([]solana.PrivateKey{payer}, extraSigners...)
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey() == key {
				return &signers[i]
			}
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
