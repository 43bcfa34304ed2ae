// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpcconn implements connection.Connection over the JSON-RPC API of a
// live network.
package rpcconn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa/connection"
)

var (
	_ connection.Connection = (*Client)(nil)

	errPending = errors.New("transaction not yet confirmed")
)

// preflightFailure is the JSON-RPC error code of a transaction rejected by
// its preflight simulation.
const preflightFailure = -32002

var confirmationRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 0,
	rpc.ConfirmationStatusConfirmed: 1,
	rpc.ConfirmationStatusFinalized: 2,
}

type Config struct {
	Endpoint       string
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Client talks to a single RPC endpoint. It cannot snapshot network state
// and so does not implement connection.Environment.
type Client struct {
	rpc            *rpc.Client
	log            log.Logger
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

func New(config Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	commitment := config.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:            rpc.New(config.Endpoint),
		log:            logger,
		commitment:     commitment,
		confirmTimeout: config.ConfirmTimeout,
		pollInterval:   config.PollInterval,
	}
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("%w: getLatestBlockhash: %w", connection.ErrConnection, err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("%w: getLatestBlockhash returned no value", connection.ErrConnection)
	}
	return out.Value.Blockhash, nil
}

type simulateResult struct {
	Value struct {
		Err        any      `json:"err"`
		Logs       []string `json:"logs"`
		ReturnData *struct {
			ProgramID string   `json:"programId"`
			Data      []string `json:"data"`
		} `json:"returnData"`
	} `json:"value"`
}

// Simulate runs tx without signature verification against the latest
// blockhash.
func (c *Client) Simulate(ctx context.Context, tx *solana.Transaction) ([]byte, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encoding transaction: %w", connection.ErrConnection, err)
	}
	params := []any{
		base64.StdEncoding.EncodeToString(raw),
		map[string]any{
			"encoding":               "base64",
			"sigVerify":              false,
			"replaceRecentBlockhash": true,
			"commitment":             c.commitment,
		},
	}
	var out simulateResult
	if err := c.rpc.RPCCallForInto(ctx, &out, "simulateTransaction", params); err != nil {
		return nil, fmt.Errorf("%w: simulateTransaction: %w", connection.ErrConnection, err)
	}
	if out.Value.Err != nil {
		for _, line := range out.Value.Logs {
			c.log.Debug("simulation log", log.String("line", line))
		}
		return nil, fmt.Errorf("%w: simulation: %v", connection.ErrTransactionFailed, out.Value.Err)
	}
	rd := out.Value.ReturnData
	if rd == nil || len(rd.Data) == 0 || rd.Data[0] == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(rd.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding return data: %w", connection.ErrConnection, err)
	}
	return data, nil
}

// SendAndConfirm submits tx and polls its status with exponential backoff
// until it reaches the configured commitment, fails, or the confirmation
// timeout elapses.
func (c *Client) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (*connection.Receipt, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	var rpcErr *jsonrpc.RPCError
	switch {
	case errors.As(err, &rpcErr) && rpcErr.Code == preflightFailure:
		return nil, fmt.Errorf("%w: preflight: %w", connection.ErrTransactionFailed, err)
	case err != nil:
		return nil, fmt.Errorf("%w: sendTransaction: %w", connection.ErrConnection, err)
	}
	c.log.Debug("transaction sent", log.Stringer("signature", sig))

	slot, err := c.confirm(ctx, sig)
	if err != nil {
		return nil, connection.Wrap(fmt.Errorf("%s: %w", sig, err))
	}

	receipt := &connection.Receipt{
		Signature: sig,
		Slot:      slot,
	}
	version := uint64(0)
	txOut, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	switch {
	case err != nil:
		c.log.Debug("failed to fetch transaction logs",
			log.Stringer("signature", sig),
			log.Err(err),
		)
	case txOut != nil && txOut.Meta != nil:
		receipt.Logs = txOut.Meta.LogMessages
		receipt.InnerInstructions = innerInstructions(tx, txOut.Meta)
	}
	return receipt, nil
}

// innerInstructions resolves program ids against the static keys of tx
// followed by the addresses loaded from lookup tables.
func innerInstructions(tx *solana.Transaction, meta *rpc.TransactionMeta) []connection.InnerInstruction {
	keys := slices.Concat(
		tx.Message.AccountKeys,
		meta.LoadedAddresses.Writable,
		meta.LoadedAddresses.ReadOnly,
	)
	var inner []connection.InnerInstruction
	for _, group := range meta.InnerInstructions {
		for _, ix := range group.Instructions {
			if int(ix.ProgramIDIndex) >= len(keys) {
				continue
			}
			inner = append(inner, connection.InnerInstruction{
				ProgramID: keys[ix.ProgramIDIndex],
				Data:      []byte(ix.Data),
			})
		}
	}
	return inner
}

func (c *Client) confirm(ctx context.Context, sig solana.Signature) (uint64, error) {
	want := confirmationRank[rpc.ConfirmationStatusConfirmed]
	if c.commitment == rpc.CommitmentFinalized {
		want = confirmationRank[rpc.ConfirmationStatusFinalized]
	}

	b := backoff.NewExponentialBackOff()
	if c.pollInterval > 0 {
		b.InitialInterval = c.pollInterval
		b.MaxInterval = 8 * c.pollInterval
	}
	b.MaxElapsedTime = c.confirmTimeout

	var slot uint64
	err := backoff.Retry(func() error {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
			return errPending
		}
		status := out.Value[0]
		if status.Err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", connection.ErrTransactionFailed, status.Err))
		}
		if confirmationRank[status.ConfirmationStatus] < want {
			return errPending
		}
		slot = status.Slot
		return nil
	}, backoff.WithContext(b, ctx))
	return slot, err
}

// GetAccount maps a missing account to nil.
func (c *Client) GetAccount(ctx context.Context, address solana.PublicKey) (*connection.Account, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: getAccountInfo %s: %w", connection.ErrConnection, address, err)
	}
	if out == nil || out.Value == nil {
		return nil, nil
	}
	account := &connection.Account{
		Lamports:   out.Value.Lamports,
		Owner:      out.Value.Owner,
		Executable: out.Value.Executable,
	}
	if out.Value.Data != nil {
		account.Data = out.Value.Data.GetBinary()
	}
	return account, nil
}
