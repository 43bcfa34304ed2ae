// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/vaa/utils/wrappers"
)

const (
	outcomeLabel = "outcome"
	checkLabel   = "check"
	statusLabel  = "status"
)

var (
	_ Metrics = (*metrics)(nil)

	outcomeLabels = []string{outcomeLabel}
	checkLabels   = []string{checkLabel, statusLabel}
)

type Metrics interface {
	// MarkBroadcast counts a finished broadcast by outcome, such as
	// "success" or "execution_failed".
	MarkBroadcast(outcome string)
	// SetResolverIterations records the rounds the last resolution took.
	SetResolverIterations(n int)
	IncRecordsPosted()
	IncRecordsClosed()
	IncGroupsExecuted()
	// MarkCheck counts one oracle check result.
	MarkCheck(check, status string)
}

type metrics struct {
	broadcasts         metric.CounterVec
	resolverIterations metric.Gauge
	recordsPosted      metric.Counter
	recordsClosed      metric.Counter
	groupsExecuted     metric.Counter
	checks             metric.CounterVec
}

func New(registerer metric.Registerer) (Metrics, error) {
	m := &metrics{
		broadcasts: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "broadcasts",
				Help: "Number of finished broadcasts by outcome",
			},
			outcomeLabels,
		),
		resolverIterations: metric.NewGauge(metric.GaugeOpts{
			Name: "resolver_iterations",
			Help: "Simulation rounds used by the last resolution",
		}),
		recordsPosted: metric.NewCounter(metric.CounterOpts{
			Name: "signature_records_posted",
			Help: "Number of signature records posted",
		}),
		recordsClosed: metric.NewCounter(metric.CounterOpts{
			Name: "signature_records_closed",
			Help: "Number of signature records closed",
		}),
		groupsExecuted: metric.NewCounter(metric.CounterOpts{
			Name: "instruction_groups_executed",
			Help: "Number of instruction groups committed",
		}),
		checks: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "verification_checks",
				Help: "Number of verification checks by check and status",
			},
			checkLabels,
		),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(metric.AsCollector(m.broadcasts)),
		registerer.Register(metric.AsCollector(m.resolverIterations)),
		registerer.Register(metric.AsCollector(m.recordsPosted)),
		registerer.Register(metric.AsCollector(m.recordsClosed)),
		registerer.Register(metric.AsCollector(m.groupsExecuted)),
		registerer.Register(metric.AsCollector(m.checks)),
	)
	return m, errs.Err
}

func (m *metrics) MarkBroadcast(outcome string) {
	m.broadcasts.With(metric.Labels{
		outcomeLabel: outcome,
	}).Inc()
}

func (m *metrics) SetResolverIterations(n int) {
	m.resolverIterations.Set(float64(n))
}

func (m *metrics) IncRecordsPosted() {
	m.recordsPosted.Inc()
}

func (m *metrics) IncRecordsClosed() {
	m.recordsClosed.Inc()
}

func (m *metrics) IncGroupsExecuted() {
	m.groupsExecuted.Inc()
}

func (m *metrics) MarkCheck(check, status string) {
	m.checks.With(metric.Labels{
		checkLabel:  check,
		statusLabel: status,
	}).Inc()
}
