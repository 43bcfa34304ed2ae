// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package postmessage_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/messages"
	"github.com/luxfi/vaa/programs/postmessage"
	"github.com/luxfi/vaa/programs/shim"
	"github.com/luxfi/vaa/utils/units"
)

var (
	coreBridge  = bridge.DevnetCoreBridgeProgramID
	postMessage = bridge.PostMessageShimProgramID
)

type fixture struct {
	t       *testing.T
	env     *localnet.Environment
	payer   solana.PrivateKey
	emitter solana.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	require := require.New(t)

	env := localnet.New(localnet.DefaultConfig(), nil, nil)
	_, err := shim.Deploy(env, coreBridge, vaa.DevnetGuardianSet(), shim.Options{})
	require.NoError(err)
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	emitter, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	require.NoError(env.Airdrop(payer.PublicKey(), 10*units.Sol))
	return &fixture{
		t:       t,
		env:     env,
		payer:   payer,
		emitter: emitter,
	}
}

func (f *fixture) send(instructions ...solana.Instruction) (*connection.Receipt, error) {
	require := require.New(f.t)

	blockhash, err := f.env.GetLatestBlockhash(context.Background())
	require.NoError(err)
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(f.payer.PublicKey()))
	require.NoError(err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key == f.emitter.PublicKey() {
			return &f.emitter
		}
		return &f.payer
	})
	require.NoError(err)
	return f.env.SendAndConfirm(context.Background(), tx)
}

func TestPostMessage(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	accounts, err := messages.DeriveAccounts(coreBridge, postMessage, f.emitter.PublicKey(), f.payer.PublicKey())
	require.NoError(err)
	fee, err := messages.NewFeeInstruction(coreBridge, f.payer.PublicKey(), bridge.DefaultFee)
	require.NoError(err)

	for sequence := range uint64(2) {
		msg := &messages.PostMessage{Nonce: 5, Finality: 1, Payload: []byte("direct")}
		receipt, err := f.send(fee, messages.NewPostMessageInstruction(postMessage, accounts, msg))
		require.NoError(err)

		// a top level post_message is not an invocation, only its event is
		require.Empty(messages.Extract(postMessage, receipt))
		require.NotEmpty(receipt.InnerInstructions)
		last := receipt.InnerInstructions[len(receipt.InnerInstructions)-1]
		require.Equal(postMessage, last.ProgramID)
		event, err := messages.ParseMessageEvent(last.Data)
		require.NoError(err)
		require.Equal(f.emitter.PublicKey(), event.Emitter)
		require.Equal(sequence, event.Sequence)
	}
}

func TestPostMessageRequiresEmitterSignature(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	accounts, err := messages.DeriveAccounts(coreBridge, postMessage, f.emitter.PublicKey(), f.payer.PublicKey())
	require.NoError(err)
	ix := solana.NewInstruction(
		postMessage,
		accounts.Metas(postMessage, false),
		(&messages.PostMessage{Payload: []byte{1}}).Bytes(),
	)
	_, err = f.send(ix)
	require.ErrorIs(err, postmessage.ErrNotSigner)
}

func TestForgedEventRejected(t *testing.T) {
	require := require.New(t)

	f := newFixture(t)
	authority, _, err := messages.EventAuthorityAddress(postMessage)
	require.NoError(err)
	event := &messages.MessageEvent{Emitter: f.emitter.PublicKey(), Sequence: 99}
	ix := solana.NewInstruction(
		postMessage,
		solana.AccountMetaSlice{solana.NewAccountMeta(authority, false, false)},
		event.Bytes(),
	)
	_, err = f.send(ix)
	require.ErrorIs(err, postmessage.ErrNotSigner)
}
