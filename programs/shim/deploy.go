// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package shim

import (
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/bridge"
	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/localnet"
	"github.com/luxfi/vaa/programs/corebridge"
	"github.com/luxfi/vaa/programs/postmessage"
)

// Deployment describes the accounts Deploy created.
type Deployment struct {
	CoreBridge      solana.PublicKey
	GuardianSet     solana.PublicKey
	GuardianSetBump uint8
	Config          solana.PublicKey
	FeeCollector    solana.PublicKey
}

// Deploy installs the core bridge with the state for set, the verify shim
// at bridge.VerifyVAAShimProgramID and the post message shim at
// bridge.PostMessageShimProgramID.
func Deploy(env *localnet.Environment, coreBridge solana.PublicKey, set *vaa.GuardianSet, options Options) (*Deployment, error) {
	guardianSet, bump, err := bridge.GuardianSetAddress(coreBridge, set.Index())
	if err != nil {
		return nil, err
	}
	config, err := bridge.ConfigAddress(coreBridge)
	if err != nil {
		return nil, err
	}
	feeCollector, err := bridge.FeeCollectorAddress(coreBridge)
	if err != nil {
		return nil, err
	}

	guardianSetData := (&bridge.GuardianSetData{
		Index:        set.Index(),
		Keys:         set.Addresses(),
		CreationTime: uint32(env.Clock().Unix()),
	}).Bytes()
	configData := (&bridge.Config{
		GuardianSetIndex: set.Index(),
		// the fee collector's opening balance, so the first message pays
		// exactly one fee
		LastLamports:          localnet.RentExemptMinimum(0),
		GuardianSetExpiration: bridge.DefaultGuardianSetExpiration,
		Fee:                   bridge.DefaultFee,
	}).Bytes()

	accounts := []struct {
		key     solana.PublicKey
		account *connection.Account
	}{
		{
			key: guardianSet,
			account: &connection.Account{
				Lamports: localnet.RentExemptMinimum(len(guardianSetData)),
				Owner:    coreBridge,
				Data:     guardianSetData,
			},
		},
		{
			key: config,
			account: &connection.Account{
				Lamports: localnet.RentExemptMinimum(len(configData)),
				Owner:    coreBridge,
				Data:     configData,
			},
		},
		{
			key: feeCollector,
			account: &connection.Account{
				Lamports: localnet.RentExemptMinimum(0),
				Owner:    solana.SystemProgramID,
			},
		},
	}
	for _, a := range accounts {
		if err := env.SetAccount(a.key, a.account); err != nil {
			return nil, err
		}
	}
	programs := []struct {
		id      solana.PublicKey
		program localnet.Program
	}{
		{coreBridge, corebridge.New()},
		{bridge.VerifyVAAShimProgramID, New(coreBridge, options)},
		{bridge.PostMessageShimProgramID, postmessage.New(coreBridge)},
	}
	for _, p := range programs {
		if err := env.AddProgram(p.id, p.program); err != nil {
			return nil, err
		}
	}
	return &Deployment{
		CoreBridge:      coreBridge,
		GuardianSet:     guardianSet,
		GuardianSetBump: bump,
		Config:          config,
		FeeCollector:    feeCollector,
	}, nil
}
