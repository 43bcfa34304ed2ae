// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signatures

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/connection/connectionmock"
)

var (
	errTest  = errors.New("test error")
	errClose = errors.New("close error")
)

var programID = solana.PublicKey{42}

// expectSends expects one send per entry of results, in order, and returns
// the transactions seen.
func expectSends(conn *connectionmock.Connection, results ...error) *[]*solana.Transaction {
	var sent []*solana.Transaction
	conn.EXPECT().GetLatestBlockhash(gomock.Any()).Return(solana.Hash{1}, nil).Times(len(results))
	calls := make([]any, len(results))
	for i, result := range results {
		calls[i] = conn.EXPECT().SendAndConfirm(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, tx *solana.Transaction) (*connection.Receipt, error) {
				sent = append(sent, tx)
				if result != nil {
					return nil, result
				}
				return &connection.Receipt{Signature: tx.Signatures[0]}, nil
			},
		)
	}
	gomock.InOrder(calls...)
	return &sent
}

func instructionData(t *testing.T, tx *solana.Transaction) []byte {
	require.Len(t, tx.Message.Instructions, 1)
	return tx.Message.Instructions[0].Data
}

func TestPost(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	conn := connectionmock.NewConnection(ctrl)
	sent := expectSends(conn, nil)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	sigs := testSignatures(t, 4)

	m := NewManager(programID, nil, nil)
	record, err := m.Post(context.Background(), conn, payer, 3, sigs)
	require.NoError(err)

	tx := (*sent)[0]
	require.Len(tx.Signatures, 2)
	require.NoError(tx.VerifySignatures())
	require.Equal(payer.PublicKey(), tx.Message.AccountKeys[0])
	require.Contains(tx.Message.AccountKeys, record)

	args, err := ParsePostSignatures(instructionData(t, tx))
	require.NoError(err)
	require.Equal(uint32(3), args.GuardianSetIndex)
	require.Equal(uint8(4), args.TotalSignatures)
	require.Equal(sigs, args.Signatures)
}

func TestPostTooManySignatures(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	conn := connectionmock.NewConnection(ctrl)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(err)

	m := NewManager(programID, nil, nil)
	sigs := testSignatures(t, 1)
	for len(sigs) <= 255 {
		sigs = append(sigs, sigs[0])
	}
	_, err = m.Post(context.Background(), conn, payer, 0, sigs)
	require.ErrorIs(err, ErrSignatureLifecycle)
	require.ErrorIs(err, ErrTooManySignatures)
}

func TestWith(t *testing.T) {
	tests := []struct {
		name        string
		sends       []error
		fnErr       error
		wantFn      bool
		expectedErr []error
	}{
		{
			name:   "success closes",
			sends:  []error{nil, nil},
			wantFn: true,
		},
		{
			name:        "failure still closes",
			sends:       []error{nil, nil},
			fnErr:       errTest,
			wantFn:      true,
			expectedErr: []error{errTest},
		},
		{
			name:        "post failure skips fn and close",
			sends:       []error{errTest},
			expectedErr: []error{ErrSignatureLifecycle, errTest},
		},
		{
			name:        "close failure after success",
			sends:       []error{nil, errClose},
			wantFn:      true,
			expectedErr: []error{ErrSignatureLifecycle, errClose},
		},
		{
			name:        "both fail",
			sends:       []error{nil, errClose},
			fnErr:       errTest,
			wantFn:      true,
			expectedErr: []error{errTest, errClose},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			ctrl := gomock.NewController(t)
			conn := connectionmock.NewConnection(ctrl)
			sent := expectSends(conn, test.sends...)
			payer, err := solana.NewRandomPrivateKey()
			require.NoError(err)

			var (
				calls  int
				posted solana.PublicKey
			)
			m := NewManager(programID, nil, nil)
			err = m.With(context.Background(), conn, payer, 0, testSignatures(t, 1), func(record solana.PublicKey) error {
				calls++
				posted = record
				return test.fnErr
			})
			for _, expected := range test.expectedErr {
				require.ErrorIs(err, expected)
			}
			if len(test.expectedErr) == 0 {
				require.NoError(err)
			}
			if !test.wantFn {
				require.Zero(calls)
				return
			}
			require.Equal(1, calls)

			closeTx := (*sent)[1]
			require.True(CloseSignaturesDiscriminator.Match(instructionData(t, closeTx)))
			require.Contains(closeTx.Message.AccountKeys, posted)
		})
	}
}

func TestWithClosesOnPanic(t *testing.T) {
	tests := []struct {
		name  string
		sends []error
	}{
		{
			name:  "close succeeds",
			sends: []error{nil, nil},
		},
		{
			name:  "close fails",
			sends: []error{nil, errClose},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			ctrl := gomock.NewController(t)
			conn := connectionmock.NewConnection(ctrl)
			sent := expectSends(conn, test.sends...)
			payer, err := solana.NewRandomPrivateKey()
			require.NoError(err)

			var posted solana.PublicKey
			m := NewManager(programID, nil, nil)
			require.PanicsWithValue("boom", func() {
				_ = m.With(context.Background(), conn, payer, 0, testSignatures(t, 1), func(record solana.PublicKey) error {
					posted = record
					panic("boom")
				})
			})

			require.Len(*sent, 2)
			closeTx := (*sent)[1]
			require.True(CloseSignaturesDiscriminator.Match(instructionData(t, closeTx)))
			require.Contains(closeTx.Message.AccountKeys, posted)
		})
	}
}

func TestSendWrapsConnectionErrors(t *testing.T) {
	require := require.New(t)

	ctrl := gomock.NewController(t)
	conn := connectionmock.NewConnection(ctrl)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(err)

	conn.EXPECT().GetLatestBlockhash(gomock.Any()).Return(solana.Hash{}, errTest)

	m := NewManager(programID, nil, nil)
	_, err = m.Post(context.Background(), conn, payer, 0, testSignatures(t, 1))
	require.ErrorIs(err, ErrSignatureLifecycle)
	require.ErrorIs(err, connection.ErrConnection)
	require.ErrorIs(err, errTest)
}

func TestLifecycleErrorOrder(t *testing.T) {
	require := require.New(t)

	err := &LifecycleError{Err: errTest, CloseErr: errClose}
	require.Equal([]error{errTest, errClose}, err.Unwrap())
	require.Equal("test error; close also failed: close error", err.Error())

	var target *LifecycleError
	require.ErrorAs(error(err), &target)
	require.Equal(errTest, target.Err)
}
