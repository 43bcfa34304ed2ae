// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle certifies that a target program enforces signature,
// provenance and replay checks by submitting attestations it must reject.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/metrics"
	"github.com/luxfi/vaa/signatures"
)

var (
	ErrVerificationBypass      = errors.New("target accepted an attestation without valid quorum signatures")
	ErrEmitterChainBypass      = errors.New("target accepted an attestation from an unexpected emitter chain")
	ErrEmitterAddressBypass    = errors.New("target accepted an attestation from an unexpected emitter address")
	ErrReplayProtectionMissing = errors.New("target accepted the same attestation twice")

	ErrInvalidCase = errors.New("invalid verification case")
)

type ReplayPolicy int

const (
	// NonReplayable attestations must be accepted at most once.
	NonReplayable ReplayPolicy = iota
	Replayable
)

// Checks select the probes of a run. A disabled probe is reported as
// Disabled, never as Passed.
type Checks struct {
	Signature      bool
	EmitterChain   bool
	EmitterAddress bool
	Replay         bool
	ReplayPolicy   ReplayPolicy
}

func DefaultChecks() Checks {
	return Checks{
		Signature:      true,
		EmitterChain:   true,
		EmitterAddress: true,
		Replay:         true,
		ReplayPolicy:   NonReplayable,
	}
}

// Case is one attestation to certify a target against.
type Case struct {
	Body   vaa.Body
	Checks Checks
	// UnderQuorum are the guardians signing the sub-quorum probe. It
	// defaults to the first quorum-1 guardians.
	UnderQuorum []int
}

// TxFunc builds and sends the caller's transaction consuming body, with its
// signatures posted at record. A rejection by the target must match
// connection.ErrTransactionFailed. Any other error is a harness failure and
// certifies nothing.
type TxFunc func(ctx context.Context, conn connection.Connection, record solana.PublicKey, body []byte) error

type Config struct {
	Payer      solana.PrivateKey
	Guardians  *vaa.GuardianSet
	Signatures *signatures.Manager
}

type Oracle struct {
	config  Config
	log     log.Logger
	metrics metrics.Metrics
}

func New(config Config, logger log.Logger, m metrics.Metrics) *Oracle {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.Noop
	}
	return &Oracle{
		config:  config,
		log:     logger,
		metrics: m,
	}
}

// Run probes fn with corrupted attestations on snapshots of env, then
// submits c.Body correctly signed to env itself and, if that succeeded,
// replays it on a snapshot.
//
// Probes never stop each other. Defects are reported in the Report, the
// returned error is reserved for an invalid case or a failed correct
// submission, which is returned unchanged.
func (o *Oracle) Run(ctx context.Context, env connection.Environment, c Case, fn TxFunc) (*Report, error) {
	set := o.config.Guardians
	underQuorum, err := o.underQuorum(c)
	if err != nil {
		return nil, err
	}
	body := c.Body
	report := &Report{}

	if c.Checks.Signature {
		wrongDigest := body.WithSequence(body.Sequence + 1)
		o.probe(ctx, env, report, CheckSignature, ErrVerificationBypass, body, fn, func() (*vaa.Signed, error) {
			signed, err := vaa.Sign(wrongDigest, set)
			if err != nil {
				return nil, err
			}
			signed.Body = body
			return signed, nil
		})
		if len(underQuorum) > 0 {
			o.probe(ctx, env, report, CheckSignatureQuorum, ErrVerificationBypass, body, fn, func() (*vaa.Signed, error) {
				return vaa.SignWith(body, set, underQuorum)
			})
		} else {
			o.record(report, Result{Check: CheckSignatureQuorum, Status: Skipped})
		}
	} else {
		o.record(report, Result{Check: CheckSignature, Status: Disabled})
		o.record(report, Result{Check: CheckSignatureQuorum, Status: Disabled})
	}

	if c.Checks.EmitterChain {
		wrongChain := body.WithEmitterChain(body.EmitterChain + 1)
		o.probe(ctx, env, report, CheckEmitterChain, ErrEmitterChainBypass, wrongChain, fn, func() (*vaa.Signed, error) {
			return vaa.Sign(wrongChain, set)
		})
	} else {
		o.record(report, Result{Check: CheckEmitterChain, Status: Disabled})
	}

	if c.Checks.EmitterAddress {
		address := body.EmitterAddress
		address[len(address)-1] ^= 0xff
		wrongAddress := body.WithEmitterAddress(address)
		o.probe(ctx, env, report, CheckEmitterAddress, ErrEmitterAddressBypass, wrongAddress, fn, func() (*vaa.Signed, error) {
			return vaa.Sign(wrongAddress, set)
		})
	} else {
		o.record(report, Result{Check: CheckEmitterAddress, Status: Disabled})
	}

	if err := o.RunUnchecked(ctx, env, body, fn); err != nil {
		return report, err
	}

	switch {
	case !c.Checks.Replay:
		o.record(report, Result{Check: CheckReplay, Status: Disabled})
	case c.Checks.ReplayPolicy == Replayable:
		o.record(report, Result{Check: CheckReplay, Status: Skipped})
	default:
		o.probe(ctx, env, report, CheckReplay, ErrReplayProtectionMissing, body, fn, func() (*vaa.Signed, error) {
			return vaa.Sign(body, set)
		})
	}

	o.log.Info("verification finished",
		log.Uint64("sequence", body.Sequence),
		log.Int("defects", len(report.Defects())),
		log.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// RunUnchecked submits body signed by every guardian to conn, posting and
// closing its signatures around fn.
func (o *Oracle) RunUnchecked(ctx context.Context, conn connection.Connection, body vaa.Body, fn TxFunc) error {
	signed, err := vaa.Sign(body, o.config.Guardians)
	if err != nil {
		return err
	}
	bodyBytes := body.Bytes()
	return o.config.Signatures.With(ctx, conn, o.config.Payer, signed.GuardianSetIndex, signed.Signatures, func(record solana.PublicKey) error {
		return fn(ctx, conn, record, bodyBytes)
	})
}

func (o *Oracle) underQuorum(c Case) ([]int, error) {
	quorum := o.config.Guardians.Quorum()
	if c.UnderQuorum == nil {
		indices := make([]int, quorum-1)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}
	if len(c.UnderQuorum) >= quorum {
		return nil, fmt.Errorf("%w: %d signers reach quorum %d", ErrInvalidCase, len(c.UnderQuorum), quorum)
	}
	// validated here so the probe cannot fail to sign
	if _, err := vaa.SignWith(c.Body, o.config.Guardians, c.UnderQuorum); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}
	return c.UnderQuorum, nil
}

// probe posts the signatures from sign and runs fn with body on a snapshot
// of env. Acceptance is recorded as defect.
func (o *Oracle) probe(
	ctx context.Context,
	env connection.Environment,
	report *Report,
	check Check,
	defect error,
	body vaa.Body,
	fn TxFunc,
	sign func() (*vaa.Signed, error),
) {
	errored := func(err error) {
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", check, err))
		o.record(report, Result{Check: check, Status: Errored, Err: err})
	}

	signed, err := sign()
	if err != nil {
		errored(err)
		return
	}
	snapshot, err := env.Snapshot()
	if err != nil {
		errored(err)
		return
	}

	var (
		ran   bool
		fnErr error
	)
	bodyBytes := body.Bytes()
	err = o.config.Signatures.With(ctx, snapshot, o.config.Payer, signed.GuardianSetIndex, signed.Signatures, func(record solana.PublicKey) error {
		ran = true
		fnErr = fn(ctx, snapshot, record, bodyBytes)
		return fnErr
	})
	if !ran {
		errored(err)
		return
	}

	// the probe outcome stands even if the close failed
	var lifecycleErr *signatures.LifecycleError
	switch {
	case errors.As(err, &lifecycleErr):
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", check, lifecycleErr.CloseErr))
	case err != nil && fnErr == nil:
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", check, err))
	}

	switch {
	case rejected(fnErr):
		o.record(report, Result{Check: check, Status: Passed, Err: fnErr})
		return
	case fnErr != nil:
		errored(fnErr)
		return
	}
	o.log.Warn("target accepted a corrupted attestation",
		log.String("check", string(check)),
		log.Err(defect),
	)
	o.record(report, Result{Check: check, Status: Defect, Err: defect})
}

// rejected reports whether err is the target refusing the transaction, as
// opposed to the harness failing to deliver it.
func rejected(err error) bool {
	return errors.Is(err, connection.ErrTransactionFailed) && !errors.Is(err, connection.ErrConnection)
}

func (o *Oracle) record(report *Report, result Result) {
	report.Results = append(report.Results, result)
	o.metrics.MarkCheck(string(result.Check), result.Status.String())
}
