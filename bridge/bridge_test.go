// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestGuardianSetAddress(t *testing.T) {
	require := require.New(t)

	addr, bump, err := GuardianSetAddress(MainnetCoreBridgeProgramID, 4)
	require.NoError(err)

	expected, err := solana.CreateProgramAddress([][]byte{
		[]byte("GuardianSet"),
		{0, 0, 0, 4},
		{bump},
	}, MainnetCoreBridgeProgramID)
	require.NoError(err)
	require.Equal(expected, addr)

	other, _, err := GuardianSetAddress(MainnetCoreBridgeProgramID, 5)
	require.NoError(err)
	require.NotEqual(addr, other)
}

func TestGuardianSetDataLayout(t *testing.T) {
	require := require.New(t)

	data := &GuardianSetData{
		Index: 3,
		Keys: []common.Address{
			common.HexToAddress("0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"),
			common.HexToAddress("0x0290FB167208Af455bB137780163b7B7a9a10C16"),
		},
		CreationTime:   7,
		ExpirationTime: 9,
	}
	b := data.Bytes()
	require.Len(b, 4+4+2*20+4+4)
	require.Equal(uint32(3), binary.LittleEndian.Uint32(b[0:4]))
	require.Equal(uint32(2), binary.LittleEndian.Uint32(b[4:8]))
	require.Equal(data.Keys[0][:], b[8:28])

	parsed, err := ParseGuardianSetData(b)
	require.NoError(err)
	require.Equal(data, parsed)

	_, err = ParseGuardianSetData(b[:len(b)-1])
	require.ErrorIs(err, ErrInvalidGuardianSetAccount)
	_, err = ParseGuardianSetData(append(b, 0))
	require.ErrorIs(err, ErrInvalidGuardianSetAccount)
}

func TestGuardianSetExpired(t *testing.T) {
	require := require.New(t)

	require.False((&GuardianSetData{}).Expired(1 << 40))
	require.False((&GuardianSetData{ExpirationTime: 10}).Expired(9))
	require.True((&GuardianSetData{ExpirationTime: 10}).Expired(10))
}

func TestConfigLayout(t *testing.T) {
	require := require.New(t)

	c := &Config{
		GuardianSetIndex:      1,
		LastLamports:          2,
		GuardianSetExpiration: DefaultGuardianSetExpiration,
		Fee:                   DefaultFee,
	}
	b := c.Bytes()
	require.Len(b, 24)
	parsed, err := ParseConfig(b)
	require.NoError(err)
	require.Equal(c, parsed)
}

func TestCoreBridgeFromRPCURL(t *testing.T) {
	require := require.New(t)

	id, err := CoreBridgeFromRPCURL("https://api.mainnet-beta.solana.com")
	require.NoError(err)
	require.Equal(MainnetCoreBridgeProgramID, id)

	id, err = CoreBridgeFromRPCURL("https://api.Devnet.solana.com")
	require.NoError(err)
	require.Equal(DevnetCoreBridgeProgramID, id)

	_, err = CoreBridgeFromRPCURL("http://127.0.0.1:8899")
	require.ErrorIs(err, ErrUnknownNetwork)
}
