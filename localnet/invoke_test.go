// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vaa/connection"
)

var (
	writerID = solana.PublicKey{0xaa}
	callerID = solana.PublicKey{0xbb}
)

// writer overwrites the data of account 0 with its instruction data.
var writer = ProgramFunc(func(ic *InvokeContext, data []byte) error {
	account, err := ic.Load(0)
	if err != nil {
		return err
	}
	account.Data = data
	return ic.Store(0, account)
})

func TestStoreRules(t *testing.T) {
	owned := solana.PublicKey{1}
	foreign := solana.PublicKey{2}

	tests := []struct {
		name        string
		account     solana.PublicKey
		writable    bool
		data        []byte
		expectedErr error
	}{
		{
			name:     "owner writes",
			account:  owned,
			writable: true,
			data:     []byte{1, 2, 3},
		},
		{
			name:        "readonly",
			account:     owned,
			data:        []byte{1, 2, 3},
			expectedErr: ErrReadonlyModified,
		},
		{
			name:        "not owner",
			account:     foreign,
			writable:    true,
			data:        []byte{1, 2, 3},
			expectedErr: ErrExternalDataModified,
		},
		{
			name:    "unchanged readonly",
			account: owned,
			data:    make([]byte, 3),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			env := newTestEnv(t)
			require.NoError(env.AddProgram(writerID, writer))
			require.NoError(env.SetAccount(owned, &connection.Account{
				Lamports: RentExemptMinimum(3),
				Owner:    writerID,
				Data:     make([]byte, 3),
			}))
			require.NoError(env.SetAccount(foreign, &connection.Account{
				Lamports: RentExemptMinimum(3),
				Owner:    solana.SystemProgramID,
				Data:     make([]byte, 3),
			}))

			tx := env.build([]solana.Instruction{
				solana.NewInstruction(writerID, solana.AccountMetaSlice{
					solana.NewAccountMeta(test.account, test.writable, false),
				}, test.data),
			})
			_, err := env.SendAndConfirm(context.Background(), tx)
			require.ErrorIs(err, test.expectedErr)

			account, err := env.GetAccount(context.Background(), test.account)
			require.NoError(err)
			if test.expectedErr == nil {
				require.Equal(test.data, account.Data)
			} else {
				require.Equal(make([]byte, 3), account.Data)
			}
		})
	}
}

func TestUnbalancedInstruction(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	minter := ProgramFunc(func(ic *InvokeContext, _ []byte) error {
		account, err := ic.Load(0)
		if err != nil {
			return err
		}
		account.Lamports++
		return ic.Store(0, account)
	})
	require.NoError(env.AddProgram(writerID, minter))

	tx := env.build([]solana.Instruction{
		solana.NewInstruction(writerID, solana.AccountMetaSlice{
			solana.NewAccountMeta(env.payer.PublicKey(), true, true),
		}, nil),
	})
	_, err := env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrUnbalancedInstruction)
}

func TestInvoke(t *testing.T) {
	seeds := [][]byte{[]byte("vault")}
	vault, bump, err := solana.FindProgramAddress(seeds, callerID)
	require.NoError(t, err)
	signerSeeds := [][]byte{seeds[0], {bump}}

	tests := []struct {
		name        string
		writable    bool
		useSeeds    bool
		expectedErr error
	}{
		{
			name:     "program address signs",
			writable: true,
			useSeeds: true,
		},
		{
			name:        "missing seeds",
			writable:    true,
			expectedErr: ErrPrivilegeEscalation,
		},
		{
			name:        "readonly escalated to writable",
			useSeeds:    true,
			expectedErr: ErrPrivilegeEscalation,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			env := newTestEnv(t)
			// the caller creates a program owned account at its vault
			// address, paid by account 0
			caller := ProgramFunc(func(ic *InvokeContext, _ []byte) error {
				payer, err := ic.Meta(0)
				if err != nil {
					return err
				}
				ix := system.NewCreateAccountInstruction(
					RentExemptMinimum(8), 8, callerID, payer.PublicKey, vault,
				).Build()
				if test.useSeeds {
					return ic.Invoke(ix, signerSeeds)
				}
				return ic.Invoke(ix)
			})
			require.NoError(env.AddProgram(callerID, caller))

			tx := env.build([]solana.Instruction{
				solana.NewInstruction(callerID, solana.AccountMetaSlice{
					solana.NewAccountMeta(env.payer.PublicKey(), true, true),
					solana.NewAccountMeta(vault, test.writable, false),
					solana.NewAccountMeta(solana.SystemProgramID, false, false),
				}, nil),
			})
			receipt, err := env.SendAndConfirm(context.Background(), tx)
			require.ErrorIs(err, test.expectedErr)
			if test.expectedErr != nil {
				return
			}
			require.Len(receipt.InnerInstructions, 1)
			require.Equal(solana.SystemProgramID, receipt.InnerInstructions[0].ProgramID)

			account, err := env.GetAccount(context.Background(), vault)
			require.NoError(err)
			require.Equal(callerID, account.Owner)
			require.Len(account.Data, 8)
		})
	}
}

func TestInvokeRequiresPassedProgram(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	require.NoError(env.AddProgram(writerID, writer))
	caller := ProgramFunc(func(ic *InvokeContext, _ []byte) error {
		return ic.Invoke(solana.NewInstruction(writerID, nil, nil))
	})
	require.NoError(env.AddProgram(callerID, caller))

	tx := env.build([]solana.Instruction{
		solana.NewInstruction(callerID, nil, nil),
	})
	_, err := env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrMissingAccount)
}

func TestInvokeDepth(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t)
	var recursive ProgramFunc
	recursive = func(ic *InvokeContext, _ []byte) error {
		return ic.Invoke(solana.NewInstruction(callerID, solana.AccountMetaSlice{
			solana.NewAccountMeta(callerID, false, false),
		}, nil))
	}
	require.NoError(env.AddProgram(callerID, recursive))

	tx := env.build([]solana.Instruction{
		solana.NewInstruction(callerID, solana.AccountMetaSlice{
			solana.NewAccountMeta(callerID, false, false),
		}, nil),
	})
	_, err := env.SendAndConfirm(context.Background(), tx)
	require.ErrorIs(err, ErrCallDepth)
}
