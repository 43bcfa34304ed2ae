// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/luxfi/math"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/utils/units"
)

var errProgram = errors.New("program error")

type testEnv struct {
	*Environment
	t     *testing.T
	payer solana.PrivateKey
}

func newTestEnv(t *testing.T) *testEnv {
	env := New(DefaultConfig(), nil, nil)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	require.NoError(t, env.Airdrop(payer.PublicKey(), 10*units.Sol))
	return &testEnv{Environment: env, t: t, payer: payer}
}

// build signs a transaction paid by the test payer.
func (e *testEnv) build(ixs []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	blockhash, err := e.GetLatestBlockhash(context.Background())
	require.NoError(e.t, err)
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(e.payer.PublicKey()))
	require.NoError(e.t, err)
	signers = append(signers, e.payer)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey() == key {
				return &signers[i]
			}
		}
		return nil
	})
	require.NoError(e.t, err)
	return tx
}

func (e *testEnv) lamports(key solana.PublicKey) uint64 {
	account, err := e.GetAccount(context.Background(), key)
	require.NoError(e.t, err)
	if account == nil {
		return 0
	}
	return account.Lamports
}

func TestTransfer(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	to := solana.NewWallet().PublicKey()
	tx := env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
	})

	receipt, err := env.SendAndConfirm(context.Background(), tx)
	require.NoError(err)
	require.Equal(tx.Signatures[0], receipt.Signature)
	require.Equal(uint64(1), receipt.Slot)
	require.NotEmpty(receipt.Logs)

	require.Equal(units.Sol, env.lamports(to))
	require.Equal(9*units.Sol-DefaultLamportsPerSignature, env.lamports(env.payer.PublicKey()))

	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrAlreadyProcessed)
	require.ErrorIs(err, connection.ErrConnection)
}

func TestAirdropOverflow(t *testing.T) {
	require := require.New(t)

	env := New(DefaultConfig(), nil, nil)
	key := solana.NewWallet().PublicKey()
	require.NoError(env.Airdrop(key, ^uint64(0)))

	err := env.Airdrop(key, 1)
	require.ErrorIs(err, math.ErrOverflow)

	account, err := env.GetAccount(context.Background(), key)
	require.NoError(err)
	require.Equal(^uint64(0), account.Lamports)
}

func TestCreateAccount(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	account, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	owner := solana.PublicKey{9}
	lamports := RentExemptMinimum(100)

	tx := env.build([]solana.Instruction{
		system.NewCreateAccountInstruction(lamports, 100, owner, env.payer.PublicKey(), account.PublicKey()).Build(),
	}, account)
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.NoError(err)

	created, err := env.GetAccount(context.Background(), account.PublicKey())
	require.NoError(err)
	require.Equal(lamports, created.Lamports)
	require.Equal(owner, created.Owner)
	require.Len(created.Data, 100)

	// an account in use cannot be created again
	tx = env.build([]solana.Instruction{
		system.NewCreateAccountInstruction(lamports, 100, owner, env.payer.PublicKey(), account.PublicKey()).Build(),
	}, account)
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrAccountAlreadyInUse)
}

func TestFailedTransactionPaysFee(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	to := solana.NewWallet().PublicKey()
	before := env.lamports(env.payer.PublicKey())
	tx := env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
		system.NewTransferInstruction(100*units.Sol, env.payer.PublicKey(), to).Build(),
	})

	_, err := env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrInsufficientFunds)
	require.ErrorIs(err, connection.ErrTransactionFailed)
	require.NotErrorIs(err, connection.ErrConnection)
	var txErr *TransactionError
	require.ErrorAs(err, &txErr)
	require.Equal(1, txErr.Instruction)

	require.Zero(env.lamports(to))
	require.Equal(before-DefaultLamportsPerSignature, env.lamports(env.payer.PublicKey()))
	require.Equal(uint64(1), env.Slot())

	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrAlreadyProcessed)
}

func TestRejectedTransactions(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	to := solana.NewWallet().PublicKey()

	// below the rent exempt minimum of an empty account
	tx := env.build([]solana.Instruction{
		system.NewTransferInstruction(1000, env.payer.PublicKey(), to).Build(),
	})
	_, err := env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrInsufficientFundsForRent)

	tx = env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
	})
	tx.Message.RecentBlockhash = solana.Hash{1}
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrBlockhashNotFound)

	tx = env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
	})
	tx.Signatures[0][0] ^= 0xff
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrSignatureFailure)

	poor, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	env.payer = poor
	tx = env.build([]solana.Instruction{
		system.NewTransferInstruction(1, poor.PublicKey(), to).Build(),
	})
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrInsufficientFundsForFee)
	require.Equal(uint64(1), env.Slot())
}

func TestSimulate(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	programID := solana.PublicKey{7}
	require.NoError(env.AddProgram(programID, ProgramFunc(func(ic *InvokeContext, data []byte) error {
		ic.Log("echo %d bytes", len(data))
		ic.SetReturnData(data)
		return nil
	})))

	to := solana.NewWallet().PublicKey()
	tx := env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
		solana.NewInstruction(programID, nil, []byte("hello")),
	})
	data, err := env.Simulate(context.Background(), tx)
	require.NoError(err)
	require.Equal([]byte("hello"), data)
	require.Zero(env.lamports(to))
	require.Zero(env.Slot())

	// simulation does not record the signature
	_, err = env.SendAndConfirm(context.Background(), tx)
	require.NoError(err)

	tx = env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), to).Build(),
	})
	data, err = env.Simulate(context.Background(), tx)
	require.NoError(err)
	require.Nil(data)

	failing := solana.PublicKey{8}
	require.NoError(env.AddProgram(failing, ProgramFunc(func(*InvokeContext, []byte) error {
		return errProgram
	})))
	tx = env.build([]solana.Instruction{solana.NewInstruction(failing, nil, nil)})
	_, err = env.Simulate(context.Background(), tx)
	require.ErrorIs(err, errProgram)
	require.ErrorIs(err, connection.ErrTransactionFailed)
	require.NotErrorIs(err, connection.ErrConnection)
}

func TestSnapshot(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	tx := env.build([]solana.Instruction{
		system.NewTransferInstruction(units.Sol, env.payer.PublicKey(), a).Build(),
	})

	snapshot, err := env.Snapshot()
	require.NoError(err)

	_, err = env.SendAndConfirm(context.Background(), tx)
	require.NoError(err)

	account, err := snapshot.GetAccount(context.Background(), a)
	require.NoError(err)
	require.Nil(account)

	// the same transaction is new to the snapshot
	_, err = snapshot.SendAndConfirm(context.Background(), tx)
	require.NoError(err)

	copied, err := snapshot.Snapshot()
	require.NoError(err)
	require.NoError(copied.(*Environment).Airdrop(b, units.Sol))
	require.Zero(env.lamports(b))
	account, err = snapshot.GetAccount(context.Background(), b)
	require.NoError(err)
	require.Nil(account)
}
