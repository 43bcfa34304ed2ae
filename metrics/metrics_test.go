// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require := require.New(t)

	m, err := New(metric.NewRegistry())
	require.NoError(err)

	for _, m := range []Metrics{m, Noop} {
		m.MarkBroadcast("success")
		m.SetResolverIterations(2)
		m.IncRecordsPosted()
		m.IncRecordsClosed()
		m.IncGroupsExecuted()
		m.MarkCheck("signature", "passed")
	}
}
