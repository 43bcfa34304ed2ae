// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

var Noop Metrics = noopMetrics{}

type noopMetrics struct{}

func (noopMetrics) MarkBroadcast(string) {}

func (noopMetrics) SetResolverIterations(int) {}

func (noopMetrics) IncRecordsPosted() {}

func (noopMetrics) IncRecordsClosed() {}

func (noopMetrics) IncGroupsExecuted() {}

func (noopMetrics) MarkCheck(string, string) {}
