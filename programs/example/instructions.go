// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package example

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/ids"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/internal/anchor"
	"github.com/luxfi/vaa/utils/wrappers"
)

const (
	// ConfigLen is emitter chain | emitter address | consumed count.
	ConfigLen = wrappers.ShortLen + vaa.AddressLen + wrappers.LongLen
	// ReceiptLen is the size of the account marking a consumed digest.
	ReceiptLen = 1

	maxBodyLen = 64 * 1024
)

var (
	// ProgramID is where tests deploy the program.
	ProgramID = solana.PublicKeyFromBytes(sha256Sum("example-vaa-consumer"))

	InitializeDiscriminator = anchor.Instruction("initialize")
	ConsumeDiscriminator    = anchor.Instruction("consume_vaa")

	configSeed  = []byte("config")
	receiptSeed = []byte("receipt")

	ErrInvalidConfig = errors.New("invalid config account")
)

func sha256Sum(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

// Config is the program's only configuration account.
type Config struct {
	EmitterChain   uint16
	EmitterAddress vaa.Address
	Consumed       uint64
}

func (c *Config) Bytes() []byte {
	p := wrappers.NewWriter(ConfigLen, ConfigLen, binary.LittleEndian)
	p.PackShort(c.EmitterChain)
	p.PackFixedBytes(c.EmitterAddress[:])
	p.PackLong(c.Consumed)
	return p.Bytes
}

func ParseConfig(b []byte) (*Config, error) {
	p := wrappers.NewReader(b, binary.LittleEndian)
	c := &Config{
		EmitterChain:   p.UnpackShort(),
		EmitterAddress: p.UnpackHash(),
		Consumed:       p.UnpackLong(),
	}
	if err := p.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return c, nil
}

func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{configSeed}, programID)
}

// ReceiptAddress derives the account that marks digest as consumed.
func ReceiptAddress(programID solana.PublicKey, digest ids.ID) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{receiptSeed, digest[:]}, programID)
}

// NewInitializeInstruction creates the config account, accepting
// attestations from one emitter.
func NewInitializeInstruction(programID, payer solana.PublicKey, chain uint16, emitter vaa.Address) (solana.Instruction, error) {
	config, _, err := ConfigAddress(programID)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, anchor.DiscriminatorLen+wrappers.ShortLen+vaa.AddressLen)
	data = append(data, InitializeDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint16(data, chain)
	data = append(data, emitter[:]...)
	return solana.NewInstruction(
		programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer, true, true),
			solana.NewAccountMeta(config, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		data,
	), nil
}

// consumeArgs is the data of consume_vaa.
type consumeArgs struct {
	GuardianSetBump uint8
	ReceiptBump     uint8
	Body            []byte
}

func (a *consumeArgs) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(ConsumeDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(a.GuardianSetBump); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(a.ReceiptBump); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(a.Body)), binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Body, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseConsumeArgs(data []byte) (*consumeArgs, error) {
	dec := bin.NewBorshDecoder(data[anchor.DiscriminatorLen:])
	var (
		a   consumeArgs
		err error
	)
	if a.GuardianSetBump, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	if a.ReceiptBump, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if n > maxBodyLen || int(n) != dec.Remaining() {
		return nil, fmt.Errorf("body of %d bytes with %d remaining", n, dec.Remaining())
	}
	if a.Body, err = dec.ReadNBytes(int(n)); err != nil {
		return nil, err
	}
	return &a, nil
}
