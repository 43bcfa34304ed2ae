// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/math"

	"github.com/luxfi/vaa/connection"
)

const (
	// MaxInvokeDepth bounds nested cross-program invocations, counting the
	// top level instruction.
	MaxInvokeDepth = 5
	// MaxAccountDataLen is the largest account an instruction may produce.
	MaxAccountDataLen = 10 * 1024 * 1024
)

// Program is native code run by an Environment.
type Program interface {
	Process(ic *InvokeContext, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ic *InvokeContext, data []byte) error

func (f ProgramFunc) Process(ic *InvokeContext, data []byte) error {
	return f(ic, data)
}

// InvokeContext is what a program sees of the transaction running it.
type InvokeContext struct {
	env       *Environment
	state     *txState
	exec      *execution
	programID solana.PublicKey
	accounts  []*solana.AccountMeta
	depth     int
}

// execution collects output shared by every invocation of a transaction.
type execution struct {
	logs       []string
	returnData []byte
	inner      []connection.InnerInstruction
}

func (ic *InvokeContext) ProgramID() solana.PublicKey {
	return ic.programID
}

// NumAccounts returns the number of accounts passed to the instruction.
func (ic *InvokeContext) NumAccounts() int {
	return len(ic.accounts)
}

// Meta returns the key and privileges of account i.
func (ic *InvokeContext) Meta(i int) (solana.AccountMeta, error) {
	if i < 0 || i >= len(ic.accounts) {
		return solana.AccountMeta{}, fmt.Errorf("%w: account %d of %d", ErrNotEnoughAccountKeys, i, len(ic.accounts))
	}
	return *ic.accounts[i], nil
}

// Load returns a copy of account i.
func (ic *InvokeContext) Load(i int) (*connection.Account, error) {
	meta, err := ic.Meta(i)
	if err != nil {
		return nil, err
	}
	account, err := ic.state.load(meta.PublicKey)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Store replaces account i. Only writable accounts may change. Only the
// owner may change data, reassign ownership or debit lamports.
func (ic *InvokeContext) Store(i int, account *connection.Account) error {
	meta, err := ic.Meta(i)
	if err != nil {
		return err
	}
	current, err := ic.state.load(meta.PublicKey)
	if err != nil {
		return err
	}
	if sameAccount(current, account) {
		return nil
	}

	owned := current.Owner == ic.programID
	switch {
	case !meta.IsWritable:
		return fmt.Errorf("%w: %s", ErrReadonlyModified, meta.PublicKey)
	case current.Executable || account.Executable:
		return fmt.Errorf("%w: %s", ErrExecutableModified, meta.PublicKey)
	case !owned && (current.Owner != account.Owner || !bytes.Equal(current.Data, account.Data)):
		return fmt.Errorf("%w: %s owned by %s", ErrExternalDataModified, meta.PublicKey, current.Owner)
	case !owned && account.Lamports < current.Lamports:
		return fmt.Errorf("%w: %s owned by %s", ErrExternalLamportSpend, meta.PublicKey, current.Owner)
	case len(account.Data) > MaxAccountDataLen:
		return fmt.Errorf("%w: %d bytes", ErrAccountDataTooLarge, len(account.Data))
	}
	ic.state.set(meta.PublicKey, account.Clone())
	return nil
}

// Invoke runs ix as a cross-program invocation. ix may only use accounts
// passed to the caller, with at most the caller's privileges, except that
// addresses derived from the caller's program id with one of signerSeeds
// become signers.
func (ic *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}
	programID := ix.ProgramID()
	if _, ok := ic.find(programID); !ok {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, programID)
	}

	pdaSigners := make(map[solana.PublicKey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		address, err := solana.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return fmt.Errorf("%w: signer seeds: %w", ErrPrivilegeEscalation, err)
		}
		pdaSigners[address] = struct{}{}
	}

	requested := ix.Accounts()
	accounts := make([]*solana.AccountMeta, len(requested))
	for i, meta := range requested {
		caller, ok := ic.find(meta.PublicKey)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PublicKey)
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, meta.PublicKey)
		}
		_, pda := pdaSigners[meta.PublicKey]
		if meta.IsSigner && !caller.IsSigner && !pda {
			return fmt.Errorf("%w: %s is not a signer", ErrPrivilegeEscalation, meta.PublicKey)
		}
		accounts[i] = solana.NewAccountMeta(meta.PublicKey, meta.IsWritable, meta.IsSigner)
	}
	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstructionData, err)
	}
	ic.exec.inner = append(ic.exec.inner, connection.InnerInstruction{
		ProgramID: programID,
		Data:      bytes.Clone(data),
	})
	return ic.env.invoke(ic.state, ic.exec, programID, accounts, data, ic.depth+1)
}

// find returns the combined privileges of key among the caller's accounts.
func (ic *InvokeContext) find(key solana.PublicKey) (solana.AccountMeta, bool) {
	var (
		found bool
		meta  = solana.AccountMeta{PublicKey: key}
	)
	for _, account := range ic.accounts {
		if account.PublicKey != key {
			continue
		}
		found = true
		meta.IsWritable = meta.IsWritable || account.IsWritable
		meta.IsSigner = meta.IsSigner || account.IsSigner
	}
	return meta, found
}

// SetReturnData replaces the data returned to the transaction's submitter.
func (ic *InvokeContext) SetReturnData(data []byte) {
	ic.exec.returnData = append([]byte{}, data...)
}

func (ic *InvokeContext) Log(format string, args ...any) {
	ic.exec.logs = append(ic.exec.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// Now returns the environment clock.
func (ic *InvokeContext) Now() time.Time {
	return ic.env.clock.Time()
}

func (ic *InvokeContext) Slot() uint64 {
	return ic.env.slot
}

func (e *Environment) invoke(
	state *txState,
	exec *execution,
	programID solana.PublicKey,
	accounts []*solana.AccountMeta,
	data []byte,
	depth int,
) error {
	program, ok := e.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	before, err := balance(state, accounts)
	if err != nil {
		return err
	}

	exec.logs = append(exec.logs, fmt.Sprintf("Program %s invoke [%d]", programID, depth))
	ic := &InvokeContext{
		env:       e,
		state:     state,
		exec:      exec,
		programID: programID,
		accounts:  accounts,
		depth:     depth,
	}
	if err := program.Process(ic, data); err != nil {
		exec.logs = append(exec.logs, fmt.Sprintf("Program %s failed: %s", programID, err))
		return err
	}

	after, err := balance(state, accounts)
	if err != nil {
		return err
	}
	if before != after {
		return fmt.Errorf("%w: %d before, %d after", ErrUnbalancedInstruction, before, after)
	}
	exec.logs = append(exec.logs, fmt.Sprintf("Program %s success", programID))
	return nil
}

func balance(state *txState, accounts []*solana.AccountMeta) (uint64, error) {
	var (
		sum  uint64
		seen = make(map[solana.PublicKey]struct{}, len(accounts))
	)
	for _, meta := range accounts {
		if _, ok := seen[meta.PublicKey]; ok {
			continue
		}
		seen[meta.PublicKey] = struct{}{}
		account, err := state.load(meta.PublicKey)
		if err != nil {
			return 0, err
		}
		sum, err = math.Add64(sum, account.Lamports)
		if err != nil {
			return 0, err
		}
	}
	return sum, nil
}
