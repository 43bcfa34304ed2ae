// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package resolver

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/vaa/internal/anchor"
)

// Result variants of the resolve_execute_vaa_v1 return data.
const (
	VariantResolved uint8 = iota
	VariantMissing
	VariantAccount
)

const (
	pubkeyLen = 32
	// smallest encodings, used to bound vector lengths by the input size
	minAccountMetaLen = pubkeyLen + 2
	minInstructionLen = pubkeyLen + 4 + 4
	minGroupLen       = 4
)

// ResolveExecuteVAAV1Discriminator prefixes resolve request instruction data.
var ResolveExecuteVAAV1Discriminator = anchor.Instruction("resolve_execute_vaa_v1")

// AccountMeta is an account reference as it appears on the wire.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is an instruction as it appears on the wire.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// InstructionGroup is executed as one transaction.
type InstructionGroup struct {
	Instructions []Instruction
}

// Missing asks the caller for more accounts before resolving.
type Missing struct {
	Accounts            []solana.PublicKey
	AddressLookupTables []solana.PublicKey
}

// Result is a decoded resolve response. Exactly one of Groups and Missing is
// meaningful, selected by Variant.
type Result struct {
	Variant uint8
	Groups  []InstructionGroup
	Missing Missing
}

// RequestData builds resolve request instruction data for an encoded body.
func RequestData(body []byte) []byte {
	data := make([]byte, 0, 8+4+len(body))
	data = append(data, ResolveExecuteVAAV1Discriminator[:]...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(body)))
	return append(data, body...)
}

// ParseRequestData is the inverse of RequestData.
func ParseRequestData(data []byte) ([]byte, error) {
	if !ResolveExecuteVAAV1Discriminator.Match(data) {
		return nil, fmt.Errorf("%w: not a resolve request", ErrProtocol)
	}
	dec := bin.NewBorshDecoder(data[8:])
	body, err := readBytes(dec)
	if err != nil {
		return nil, err
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrProtocol, dec.Remaining())
	}
	return body, nil
}

// DecodeResult strictly decodes resolve return data. Unknown variants,
// truncated input, oversized vectors and trailing bytes are all rejected.
func DecodeResult(data []byte) (*Result, error) {
	dec := bin.NewBorshDecoder(data)
	variant, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: reading variant: %w", ErrProtocol, err)
	}
	res := &Result{Variant: variant}
	switch variant {
	case VariantResolved:
		res.Groups, err = readGroups(dec)
	case VariantMissing:
		res.Missing, err = readMissing(dec)
	case VariantAccount:
	default:
		return nil, fmt.Errorf("%w: unknown variant %d", ErrProtocol, variant)
	}
	if err != nil {
		return nil, err
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrProtocol, dec.Remaining())
	}
	return res, nil
}

func readLen(dec *bin.Decoder, minElemLen int) (int, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("%w: reading length: %w", ErrProtocol, err)
	}
	if minElemLen > 0 && int64(n)*int64(minElemLen) > int64(dec.Remaining()) {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrProtocol, n, dec.Remaining())
	}
	return int(n), nil
}

func readBytes(dec *bin.Decoder) ([]byte, error) {
	n, err := readLen(dec, 1)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	b, err := dec.ReadNBytes(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return b, nil
}

func readPubkey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(pubkeyLen)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: reading pubkey: %w", ErrProtocol, err)
	}
	return solana.PublicKeyFromBytes(b), nil
}

func readBool(dec *bin.Decoder) (bool, error) {
	b, err := dec.ReadUint8()
	if err != nil {
		return false, fmt.Errorf("%w: reading bool: %w", ErrProtocol, err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool %d", ErrProtocol, b)
	}
}

func readPubkeys(dec *bin.Decoder) ([]solana.PublicKey, error) {
	n, err := readLen(dec, pubkeyLen)
	if err != nil {
		return nil, err
	}
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		if keys[i], err = readPubkey(dec); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func readMissing(dec *bin.Decoder) (Missing, error) {
	accounts, err := readPubkeys(dec)
	if err != nil {
		return Missing{}, err
	}
	tables, err := readPubkeys(dec)
	if err != nil {
		return Missing{}, err
	}
	return Missing{Accounts: accounts, AddressLookupTables: tables}, nil
}

func readGroups(dec *bin.Decoder) ([]InstructionGroup, error) {
	n, err := readLen(dec, minGroupLen)
	if err != nil {
		return nil, err
	}
	groups := make([]InstructionGroup, n)
	for i := range groups {
		m, err := readLen(dec, minInstructionLen)
		if err != nil {
			return nil, err
		}
		groups[i].Instructions = make([]Instruction, m)
		for j := range groups[i].Instructions {
			if groups[i].Instructions[j], err = readInstruction(dec); err != nil {
				return nil, err
			}
		}
	}
	return groups, nil
}

func readInstruction(dec *bin.Decoder) (Instruction, error) {
	programID, err := readPubkey(dec)
	if err != nil {
		return Instruction{}, err
	}
	n, err := readLen(dec, minAccountMetaLen)
	if err != nil {
		return Instruction{}, err
	}
	ix := Instruction{
		ProgramID: programID,
		Accounts:  make([]AccountMeta, n),
	}
	for i := range ix.Accounts {
		meta := &ix.Accounts[i]
		if meta.PublicKey, err = readPubkey(dec); err != nil {
			return Instruction{}, err
		}
		if meta.IsSigner, err = readBool(dec); err != nil {
			return Instruction{}, err
		}
		if meta.IsWritable, err = readBool(dec); err != nil {
			return Instruction{}, err
		}
	}
	ix.Data, err = readBytes(dec)
	return ix, err
}

// EncodeResolved encodes a terminal response. Target programs written in Go
// use it to answer resolve requests.
func EncodeResolved(groups []InstructionGroup) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(VariantResolved); err != nil {
		return nil, err
	}
	if err := writeLen(enc, len(groups)); err != nil {
		return nil, err
	}
	for _, group := range groups {
		if err := writeLen(enc, len(group.Instructions)); err != nil {
			return nil, err
		}
		for _, ix := range group.Instructions {
			if err := writeInstruction(enc, ix); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// EncodeMissing encodes a continuation response.
func EncodeMissing(missing Missing) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(VariantMissing); err != nil {
		return nil, err
	}
	if err := writePubkeys(enc, missing.Accounts); err != nil {
		return nil, err
	}
	if err := writePubkeys(enc, missing.AddressLookupTables); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeLen(enc *bin.Encoder, n int) error {
	return enc.WriteUint32(uint32(n), binary.LittleEndian)
}

func writePubkeys(enc *bin.Encoder, keys []solana.PublicKey) error {
	if err := writeLen(enc, len(keys)); err != nil {
		return err
	}
	for _, key := range keys {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return err
		}
	}
	return nil
}

func writeInstruction(enc *bin.Encoder, ix Instruction) error {
	if err := enc.WriteBytes(ix.ProgramID[:], false); err != nil {
		return err
	}
	if err := writeLen(enc, len(ix.Accounts)); err != nil {
		return err
	}
	for _, meta := range ix.Accounts {
		if err := enc.WriteBytes(meta.PublicKey[:], false); err != nil {
			return err
		}
		if err := enc.WriteBool(meta.IsSigner); err != nil {
			return err
		}
		if err := enc.WriteBool(meta.IsWritable); err != nil {
			return err
		}
	}
	if err := writeLen(enc, len(ix.Data)); err != nil {
		return err
	}
	return enc.WriteBytes(ix.Data, false)
}
