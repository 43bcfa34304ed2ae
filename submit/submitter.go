// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package submit delivers signed attestations to programs that implement the
// resolve/execute protocol.
package submit

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/executor"
	"github.com/luxfi/vaa/metrics"
	"github.com/luxfi/vaa/resolver"
	"github.com/luxfi/vaa/signatures"
)

const (
	outcomeSuccess            = "success"
	outcomeResolveFailed      = "resolve_failed"
	outcomeUnsupportedProgram = "unsupported_program"
	outcomePostFailed         = "post_failed"
	outcomeExecutionFailed    = "execution_failed"
	outcomeCloseFailed        = "close_failed"
)

// ErrUnsupportedProgram is returned when a resolved plan never reads the
// signature record, so there is nothing a posted record could be used for.
var ErrUnsupportedProgram = errors.New("program does not consume a signature record")

type Config struct {
	CoreBridge solana.PublicKey
	VerifyShim solana.PublicKey
	// MaxResolverIterations defaults to resolver.DefaultMaxIterations.
	MaxResolverIterations int
}

// Result describes a broadcast. Fields are set as far as the broadcast got,
// also when it failed.
type Result struct {
	Plan     *resolver.Plan
	Record   solana.PublicKey
	Receipts []*connection.Receipt
}

type Submitter struct {
	config     Config
	log        log.Logger
	metrics    metrics.Metrics
	resolver   *resolver.Resolver
	executor   *executor.Executor
	signatures *signatures.Manager
}

func New(config Config, logger log.Logger, m metrics.Metrics) *Submitter {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.Noop
	}
	return &Submitter{
		config:     config,
		log:        logger,
		metrics:    m,
		resolver:   resolver.New(logger),
		executor:   executor.New(logger),
		signatures: signatures.NewManager(config.VerifyShim, logger, m),
	}
}

// Signatures returns the manager used for signature records.
func (s *Submitter) Signatures() *signatures.Manager {
	return s.signatures
}

// Broadcast resolves the plan programID needs for signed, posts the
// signatures, executes the plan and closes the record.
//
// The record is closed exactly once for every successful post. When both
// execution and the close fail the execution error comes first.
func (s *Submitter) Broadcast(
	ctx context.Context,
	conn connection.Connection,
	payer solana.PrivateKey,
	programID solana.PublicKey,
	signed *vaa.Signed,
) (*Result, error) {
	guardianSet, _, err := bridge.GuardianSetAddress(s.config.CoreBridge, signed.GuardianSetIndex)
	if err != nil {
		return nil, fmt.Errorf("deriving guardian set %d: %w", signed.GuardianSetIndex, err)
	}

	plan, err := s.resolver.Resolve(ctx, conn, resolver.Request{
		ProgramID:     programID,
		Payer:         payer,
		Body:          signed.Body.Bytes(),
		GuardianSet:   guardianSet,
		MaxIterations: s.config.MaxResolverIterations,
	})
	if err != nil {
		s.metrics.MarkBroadcast(outcomeResolveFailed)
		return nil, err
	}
	s.metrics.SetResolverIterations(plan.Iterations)

	result := &Result{Plan: plan}
	if !plan.References(resolver.SignatureRecordPlaceholder) {
		s.metrics.MarkBroadcast(outcomeUnsupportedProgram)
		return result, fmt.Errorf("%w: %s", ErrUnsupportedProgram, programID)
	}

	posted := false
	err = s.signatures.With(ctx, conn, payer, signed.GuardianSetIndex, signed.Signatures, func(record solana.PublicKey) error {
		posted = true
		result.Record = record
		receipts, err := s.executor.Execute(ctx, conn, payer, plan, executor.Bindings{
			SignatureRecord: record,
			GuardianSet:     guardianSet,
		})
		result.Receipts = receipts
		for range receipts {
			s.metrics.IncGroupsExecuted()
		}
		return err
	})

	s.metrics.MarkBroadcast(outcome(err, posted))
	if err != nil {
		s.log.Warn("broadcast failed",
			log.Stringer("program", programID),
			log.Uint64("sequence", signed.Body.Sequence),
			log.Err(err),
		)
		return result, err
	}
	s.log.Info("broadcast attestation",
		log.Stringer("program", programID),
		log.Uint64("sequence", signed.Body.Sequence),
		log.Int("groups", len(result.Receipts)),
	)
	return result, nil
}

func outcome(err error, posted bool) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case !posted:
		return outcomePostFailed
	case errors.Is(err, executor.ErrExecution):
		return outcomeExecutionFailed
	default:
		return outcomeCloseFailed
	}
}
