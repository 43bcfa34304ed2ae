// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/programs/example"
	"github.com/luxfi/vaa/programs/shim"
	"github.com/luxfi/vaa/resolver"
	"github.com/luxfi/vaa/signatures"
	"github.com/luxfi/vaa/utils/units"
)

const emitterChain uint16 = 2

var emitter = vaa.Address{31: 0x42}

type fixture struct {
	env    *localnet.Environment
	oracle *Oracle
	tx     TxFunc
}

func newFixture(t *testing.T, set *vaa.GuardianSet, shimOptions shim.Options, flaws example.Flaws) *fixture {
	require := require.New(t)

	env := localnet.New(localnet.DefaultConfig(), nil, nil)
	_, err := shim.Deploy(env, bridge.DevnetCoreBridgeProgramID, set, shimOptions)
	require.NoError(err)

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(err)
	require.NoError(env.Airdrop(payer.PublicKey(), 100*units.Sol))

	program := example.New(bridge.DevnetCoreBridgeProgramID, bridge.VerifyVAAShimProgramID, flaws)
	require.NoError(example.Deploy(context.Background(), env, example.ProgramID, program, payer, emitterChain, emitter))

	return &fixture{
		env: env,
		oracle: New(Config{
			Payer:      payer,
			Guardians:  set,
			Signatures: signatures.NewManager(bridge.VerifyVAAShimProgramID, nil, nil),
		}, nil, nil),
		tx: ProtocolTx(bridge.DevnetCoreBridgeProgramID, example.ProgramID, payer, set.Index(), nil),
	}
}

func (f *fixture) consumed(t *testing.T) uint64 {
	config, err := example.ReadConfig(context.Background(), f.env, example.ProgramID)
	require.NoError(t, err)
	return config.Consumed
}

func statuses(report *Report) map[Check]Status {
	out := make(map[Check]Status, len(report.Results))
	for _, result := range report.Results {
		out[result.Check] = result.Status
	}
	return out
}

func thirteenGuardians(t *testing.T) *vaa.GuardianSet {
	set, err := vaa.GenerateGuardianSet(13, 12345)
	require.NoError(t, err)
	return set
}

func TestRunCorrectTarget(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:   vaa.NewBody(emitterChain, emitter, 1, []byte("payload")),
		Checks: DefaultChecks(),
	}, f.tx)
	require.NoError(err)
	require.Empty(report.Errors)
	require.Empty(report.Defects())
	require.NoError(report.Err())
	require.Equal(map[Check]Status{
		CheckSignature:       Passed,
		CheckSignatureQuorum: Passed,
		CheckEmitterChain:    Passed,
		CheckEmitterAddress:  Passed,
		CheckReplay:          Passed,
	}, statuses(report))

	// only the correct submission reached the real environment
	require.Equal(uint64(1), f.consumed(t))
}

func TestRunReportsEveryDefect(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, vaa.DevnetGuardianSet(), shim.Options{}, example.Flaws{
		SkipVerify:         true,
		SkipEmitterChain:   true,
		SkipEmitterAddress: true,
		AllowReplay:        true,
	})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:   vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks: DefaultChecks(),
	}, f.tx)
	require.NoError(err)
	require.Equal(map[Check]Status{
		CheckSignature:       Defect,
		CheckSignatureQuorum: Skipped,
		CheckEmitterChain:    Defect,
		CheckEmitterAddress:  Defect,
		CheckReplay:          Defect,
	}, statuses(report))

	err = report.Err()
	require.ErrorIs(err, ErrVerificationBypass)
	require.ErrorIs(err, ErrEmitterChainBypass)
	require.ErrorIs(err, ErrEmitterAddressBypass)
	require.ErrorIs(err, ErrReplayProtectionMissing)
	require.Equal(uint64(1), f.consumed(t))
}

func TestRunDoesNotShortCircuit(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{SkipVerify: true})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:   vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks: DefaultChecks(),
	}, f.tx)
	require.NoError(err)
	require.Equal(map[Check]Status{
		CheckSignature:       Defect,
		CheckSignatureQuorum: Defect,
		CheckEmitterChain:    Passed,
		CheckEmitterAddress:  Passed,
		CheckReplay:          Passed,
	}, statuses(report))
	require.Len(report.Defects(), 2)
	require.Equal(uint64(1), f.consumed(t))
}

func TestRunDetectsQuorumBypass(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{IgnoreQuorum: true}, example.Flaws{})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:        vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks:      DefaultChecks(),
		UnderQuorum: []int{0, 1, 2, 3, 4},
	}, f.tx)
	require.NoError(err)

	status, ok := report.Status(CheckSignature)
	require.True(ok)
	require.Equal(Passed, status)
	status, ok = report.Status(CheckSignatureQuorum)
	require.True(ok)
	require.Equal(Defect, status)

	defects := report.Defects()
	require.Len(defects, 1)
	require.ErrorIs(defects[0].Err, ErrVerificationBypass)
}

func TestRunSingleDefects(t *testing.T) {
	tests := []struct {
		name     string
		flaws    example.Flaws
		check    Check
		expected error
	}{
		{
			name:     "emitter chain",
			flaws:    example.Flaws{SkipEmitterChain: true},
			check:    CheckEmitterChain,
			expected: ErrEmitterChainBypass,
		},
		{
			name:     "emitter address",
			flaws:    example.Flaws{SkipEmitterAddress: true},
			check:    CheckEmitterAddress,
			expected: ErrEmitterAddressBypass,
		},
		{
			name:     "replay",
			flaws:    example.Flaws{AllowReplay: true},
			check:    CheckReplay,
			expected: ErrReplayProtectionMissing,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			f := newFixture(t, thirteenGuardians(t), shim.Options{}, test.flaws)
			report, err := f.oracle.Run(context.Background(), f.env, Case{
				Body:   vaa.NewBody(emitterChain, emitter, 1, nil),
				Checks: DefaultChecks(),
			}, f.tx)
			require.NoError(err)

			defects := report.Defects()
			require.Len(defects, 1)
			require.Equal(test.check, defects[0].Check)
			require.ErrorIs(report.Err(), test.expected)
		})
	}
}

func TestRunDisabledChecks(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{SkipVerify: true, AllowReplay: true})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body: vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks: Checks{
			EmitterChain: true,
			Replay:       true,
			ReplayPolicy: Replayable,
		},
	}, f.tx)
	require.NoError(err)
	require.Equal(map[Check]Status{
		CheckSignature:       Disabled,
		CheckSignatureQuorum: Disabled,
		CheckEmitterChain:    Passed,
		CheckEmitterAddress:  Disabled,
		CheckReplay:          Skipped,
	}, statuses(report))
	require.Empty(report.Defects())
}

func TestRunReturnsPositiveFailure(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{})
	report, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:   vaa.NewBody(emitterChain, vaa.Address{1}, 1, nil),
		Checks: DefaultChecks(),
	}, f.tx)
	require.ErrorIs(err, example.ErrEmitterAddress)
	require.NotNil(report)

	// replay is only probed after a successful submission
	_, ok := report.Status(CheckReplay)
	require.False(ok)
	require.Zero(f.consumed(t))
}

func TestRunInvalidCase(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{})
	_, err := f.oracle.Run(context.Background(), f.env, Case{
		Body:        vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks:      DefaultChecks(),
		UnderQuorum: []int{0, 1, 2, 3, 4, 5, 6, 7, 8},
	}, f.tx)
	require.ErrorIs(err, ErrInvalidCase)

	_, err = f.oracle.Run(context.Background(), f.env, Case{
		Body:        vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks:      DefaultChecks(),
		UnderQuorum: []int{1, 1},
	}, f.tx)
	require.ErrorIs(err, ErrInvalidCase)
	require.ErrorIs(err, vaa.ErrInvalidGuardianSubset)
}

var errSnapshot = errors.New("snapshot failed")

// brokenSnapshots is an environment whose snapshots always fail.
type brokenSnapshots struct {
	*localnet.Environment
}

func (brokenSnapshots) Snapshot() (connection.Environment, error) {
	return nil, errSnapshot
}

func TestRunCollectsHarnessErrors(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{})
	report, err := f.oracle.Run(context.Background(), brokenSnapshots{f.env}, Case{
		Body:   vaa.NewBody(emitterChain, emitter, 1, nil),
		Checks: DefaultChecks(),
	}, f.tx)
	require.NoError(err)
	require.Len(report.Errors, 5)
	require.ErrorIs(report.Errors[0], errSnapshot)
	require.Empty(report.Defects())
	for _, result := range report.Results {
		require.Equal(Errored, result.Status)
	}
	require.Equal(uint64(1), f.consumed(t))
}

func TestRunHarnessFailuresAreNotRejections(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "connection failure",
			err:  fmt.Errorf("%w: dial tcp: connection refused", connection.ErrConnection),
		},
		{
			name: "resolution protocol error",
			err:  fmt.Errorf("%w: no return data", resolver.ErrProtocol),
		},
		{
			name: "resolution exhausted",
			err:  resolver.ErrResolutionExhausted,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			f := newFixture(t, thirteenGuardians(t), shim.Options{}, example.Flaws{
				SkipVerify:         true,
				SkipEmitterChain:   true,
				SkipEmitterAddress: true,
				AllowReplay:        true,
			})
			// every submission to a snapshot fails before reaching the target
			fn := func(ctx context.Context, conn connection.Connection, record solana.PublicKey, body []byte) error {
				if conn != connection.Connection(f.env) {
					return test.err
				}
				return f.tx(ctx, conn, record, body)
			}
			report, err := f.oracle.Run(context.Background(), f.env, Case{
				Body:   vaa.NewBody(emitterChain, emitter, 1, nil),
				Checks: DefaultChecks(),
			}, fn)
			require.NoError(err)
			require.Equal(map[Check]Status{
				CheckSignature:       Errored,
				CheckSignatureQuorum: Errored,
				CheckEmitterChain:    Errored,
				CheckEmitterAddress:  Errored,
				CheckReplay:          Errored,
			}, statuses(report))
			require.Len(report.Errors, 5)
			for _, err := range report.Errors {
				require.ErrorIs(err, test.err)
			}
			require.Empty(report.Defects())
			require.Equal(uint64(1), f.consumed(t))
		})
	}
}

func TestRunUnchecked(t *testing.T) {
	require := require.New(t)

	f := newFixture(t, vaa.DevnetGuardianSet(), shim.Options{}, example.Flaws{})
	body := vaa.NewBody(emitterChain, emitter, 1, nil)
	require.NoError(f.oracle.RunUnchecked(context.Background(), f.env, body, f.tx))
	require.Equal(uint64(1), f.consumed(t))

	err := f.oracle.RunUnchecked(context.Background(), f.env, body, f.tx)
	require.ErrorIs(err, example.ErrAlreadyConsumed)
}
