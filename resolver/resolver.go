// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package resolver discovers the instructions a target program needs to
// consume an attestation by repeatedly simulating its resolve entrypoint.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa/connection"
)

// DefaultMaxIterations bounds resolution when a request does not.
const DefaultMaxIterations = 10

var (
	// ErrResolutionExhausted is returned when no terminal plan was produced
	// within the iteration bound.
	ErrResolutionExhausted = errors.New("resolution exhausted")
	// ErrProtocol is returned when return data violates the resolve
	// protocol.
	ErrProtocol = errors.New("resolution protocol error")

	errInvalidRequest = errors.New("invalid resolve request")
)

// Request describes one resolution.
type Request struct {
	ProgramID   solana.PublicKey
	Payer       solana.PrivateKey
	Body        []byte
	GuardianSet solana.PublicKey
	// MaxIterations defaults to DefaultMaxIterations when zero.
	MaxIterations int
}

// Plan is the terminal answer of a resolution.
type Plan struct {
	Groups     []InstructionGroup
	Iterations int
}

// References reports whether any instruction of the plan uses key.
func (p *Plan) References(key solana.PublicKey) bool {
	for _, group := range p.Groups {
		for _, ix := range group.Instructions {
			if ix.ProgramID == key {
				return true
			}
			for _, meta := range ix.Accounts {
				if meta.PublicKey == key {
					return true
				}
			}
		}
	}
	return false
}

type Resolver struct {
	log log.Logger
}

func New(logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Resolver{log: logger}
}

// Resolve runs rounds 1..MaxIterations. Each round simulates a resolve
// request carrying every account learned so far. A Missing answer has its
// placeholders substituted, its accounts read, and new ones appended as
// read-only accounts for the next round.
func (r *Resolver) Resolve(ctx context.Context, conn connection.Connection, req Request) (*Plan, error) {
	if len(req.Payer) == 0 {
		return nil, fmt.Errorf("%w: no payer", errInvalidRequest)
	}
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	payer := req.Payer.PublicKey()

	var (
		known []*solana.AccountMeta
		seen  = make(map[solana.PublicKey]struct{})
	)
	for round := 1; round <= maxIterations; round++ {
		data, err := r.simulate(ctx, conn, req, known)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		if data == nil {
			return nil, fmt.Errorf("%w: round %d: no return data", ErrProtocol, round)
		}
		res, err := DecodeResult(data)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}

		switch res.Variant {
		case VariantResolved:
			if err := checkPlan(res.Groups); err != nil {
				return nil, fmt.Errorf("round %d: %w", round, err)
			}
			r.log.Info("resolved execution plan",
				log.Stringer("program", req.ProgramID),
				log.Int("iterations", round),
				log.Int("groups", len(res.Groups)),
			)
			return &Plan{Groups: res.Groups, Iterations: round}, nil
		case VariantMissing:
			added := 0
			for _, key := range res.Missing.Accounts {
				key = substitute(key, payer, req.GuardianSet)
				if _, ok := seen[key]; ok {
					continue
				}
				account, err := conn.GetAccount(ctx, key)
				if err != nil {
					return nil, fmt.Errorf("round %d: reading %s: %w", round, key, connection.Wrap(err))
				}
				seen[key] = struct{}{}
				known = append(known, solana.NewAccountMeta(key, false, false))
				added++
				r.log.Debug("resolver requested account",
					log.Int("round", round),
					log.Stringer("account", key),
					log.Bool("exists", account != nil),
				)
			}
			r.log.Debug("resolver round incomplete",
				log.Int("round", round),
				log.Int("requested", len(res.Missing.Accounts)),
				log.Int("added", added),
				log.Int("lookupTables", len(res.Missing.AddressLookupTables)),
			)
		default:
			return nil, fmt.Errorf("%w: round %d: account variant is not supported", ErrProtocol, round)
		}
	}

	names := make([]string, len(known))
	for i, meta := range known {
		names[i] = meta.PublicKey.String()
	}
	return nil, fmt.Errorf("%w: no plan after %d iterations, accounts: [%s]",
		ErrResolutionExhausted, maxIterations, strings.Join(names, ", "))
}

func (r *Resolver) simulate(
	ctx context.Context,
	conn connection.Connection,
	req Request,
	known []*solana.AccountMeta,
) ([]byte, error) {
	accounts := make(solana.AccountMetaSlice, len(known))
	for i, meta := range known {
		m := *meta
		accounts[i] = &m
	}
	ix := solana.NewInstruction(req.ProgramID, accounts, RequestData(req.Body))

	blockhash, err := conn.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, connection.Wrap(err)
	}
	payer := req.Payer.PublicKey()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("building resolve transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key == payer {
			return &req.Payer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("signing resolve transaction: %w", err)
	}
	data, err := conn.Simulate(ctx, tx)
	if err != nil {
		return nil, connection.Wrap(err)
	}
	return data, nil
}

func checkPlan(groups []InstructionGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("%w: empty plan", ErrProtocol)
	}
	for i, group := range groups {
		if len(group.Instructions) == 0 {
			return fmt.Errorf("%w: group %d is empty", ErrProtocol, i)
		}
	}
	return nil
}

// substitute resolves the placeholders known at resolution time. The
// signature record and keypair placeholders stay until execution.
func substitute(key, payer, guardianSet solana.PublicKey) solana.PublicKey {
	switch key {
	case PayerPlaceholder:
		return payer
	case GuardianSetPlaceholder:
		return guardianSet
	default:
		return key
	}
}
