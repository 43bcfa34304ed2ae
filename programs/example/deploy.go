// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package example

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/localnet"
)

// Deploy installs program at programID and initializes it to accept
// attestations from emitter on chain, paid by payer.
func Deploy(
	ctx context.Context,
	env *localnet.Environment,
	programID solana.PublicKey,
	program *Program,
	payer solana.PrivateKey,
	chain uint16,
	emitter vaa.Address,
) error {
	if err := env.AddProgram(programID, program); err != nil {
		return err
	}
	ix, err := NewInitializeInstruction(programID, payer.PublicKey(), chain, emitter)
	if err != nil {
		return err
	}
	blockhash, err := env.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(payer.PublicKey()))
	if err != nil {
		return err
	}
	if _, err := tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer }); err != nil {
		return err
	}
	if _, err := env.SendAndConfirm(ctx, tx); err != nil {
		return fmt.Errorf("initializing %s: %w", programID, err)
	}
	return nil
}

// ReadConfig fetches the config account of programID.
func ReadConfig(ctx context.Context, conn connection.Connection, programID solana.PublicKey) (*Config, error) {
	address, _, err := ConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	account, err := conn.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s does not exist", ErrInvalidConfig, address)
	}
	return ParseConfig(account.Data)
}
