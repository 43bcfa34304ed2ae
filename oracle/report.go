// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"errors"

	"github.com/samber/lo"
)

// Check names one probe of a run.
type Check string

const (
	// CheckSignature submits signatures over a different digest.
	CheckSignature Check = "signature"
	// CheckSignatureQuorum submits valid signatures short of quorum.
	CheckSignatureQuorum Check = "signature_quorum"
	CheckEmitterChain    Check = "emitter_chain"
	CheckEmitterAddress  Check = "emitter_address"
	CheckReplay          Check = "replay"
)

type Status int

const (
	// Passed means the target rejected the probe.
	Passed Status = iota
	// Defect means the target accepted the probe.
	Defect
	Disabled
	// Skipped means the probe does not apply to the case.
	Skipped
	// Errored means the harness could not run the probe.
	Errored
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Defect:
		return "defect"
	case Disabled:
		return "disabled"
	case Skipped:
		return "skipped"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Result is the outcome of one probe. Err is the defect for a Defect, the
// rejection for Passed and the harness failure for Errored.
type Result struct {
	Check  Check
	Status Status
	Err    error
}

// Report lists the result of every probe in the order they ran.
type Report struct {
	Results []Result
	// Errors are harness failures, including failed cleanup of probes
	// whose result is still valid.
	Errors []error
}

// Status returns the status of check, or false if it was not recorded.
func (r *Report) Status(check Check) (Status, bool) {
	result, ok := lo.Find(r.Results, func(result Result) bool {
		return result.Check == check
	})
	return result.Status, ok
}

func (r *Report) Defects() []Result {
	return lo.Filter(r.Results, func(result Result, _ int) bool {
		return result.Status == Defect
	})
}

// Err joins every defect, or returns nil when there are none.
func (r *Report) Err() error {
	return errors.Join(lo.Map(r.Defects(), func(result Result, _ int) error {
		return result.Err
	})...)
}
