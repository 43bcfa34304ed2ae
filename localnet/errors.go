// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/connection"
)

var (
	ErrSanitize                 = errors.New("transaction failed sanitization")
	ErrBlockhashNotFound        = errors.New("blockhash not found")
	ErrSignatureFailure         = errors.New("signature verification failed")
	ErrAlreadyProcessed         = errors.New("transaction already processed")
	ErrInsufficientFundsForFee  = errors.New("insufficient funds for fee")
	ErrInsufficientFundsForRent = errors.New("insufficient funds for rent")
	ErrProgramNotFound          = errors.New("program not found")
	ErrNotEnoughAccountKeys     = errors.New("not enough account keys")
	ErrMissingAccount           = errors.New("account not passed to caller")
	ErrPrivilegeEscalation      = errors.New("cross-program invocation escalates privileges")
	ErrCallDepth                = errors.New("cross-program invocation too deep")
	ErrReadonlyModified         = errors.New("instruction modified a readonly account")
	ErrExecutableModified       = errors.New("instruction modified an executable account")
	ErrExternalDataModified     = errors.New("instruction modified data of an account it does not own")
	ErrExternalLamportSpend     = errors.New("instruction spent from an account it does not own")
	ErrUnbalancedInstruction    = errors.New("sum of account balances changed")
	ErrAccountDataTooLarge      = errors.New("account data too large")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
)

// TransactionError reports a transaction whose execution failed. It matches
// connection.ErrTransactionFailed, never connection.ErrConnection. When it
// was sent it was still charged its fee. Instruction is -1 when every instruction
// succeeded but the resulting state was rejected.
type TransactionError struct {
	Signature   solana.Signature
	Instruction int
	Err         error
	Logs        []string
}

func (e *TransactionError) Error() string {
	if e.Instruction < 0 {
		return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Err)
	}
	return fmt.Sprintf("transaction %s failed at instruction %d: %s", e.Signature, e.Instruction, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{connection.ErrTransactionFailed, e.Err}
}
