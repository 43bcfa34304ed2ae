// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/executor"
	"github.com/luxfi/vaa/resolver"
)

// ProtocolTx returns a TxFunc for targets implementing the resolve/execute
// protocol. Every call resolves a fresh plan for the body it is given and
// executes it against the record.
func ProtocolTx(
	coreBridge solana.PublicKey,
	programID solana.PublicKey,
	payer solana.PrivateKey,
	guardianSetIndex uint32,
	logger log.Logger,
) TxFunc {
	r := resolver.New(logger)
	e := executor.New(logger)
	return func(ctx context.Context, conn connection.Connection, record solana.PublicKey, body []byte) error {
		guardianSet, _, err := bridge.GuardianSetAddress(coreBridge, guardianSetIndex)
		if err != nil {
			return err
		}
		plan, err := r.Resolve(ctx, conn, resolver.Request{
			ProgramID:   programID,
			Payer:       payer,
			Body:        body,
			GuardianSet: guardianSet,
		})
		if err != nil {
			return err
		}
		_, err = e.Execute(ctx, conn, payer, plan, executor.Bindings{
			SignatureRecord: record,
			GuardianSet:     guardianSet,
		})
		return err
	}
}
