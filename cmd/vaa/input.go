// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	errNoInput    = errors.New("no VAA provided; pass it as an argument, @file, or on stdin")
	errPDASyntax  = errors.New("pda: syntax requires a program and at least one seed: pda:<PROGRAM_ID>:seed1:...")
	errInvalidHex = errors.New("invalid hex")
)

// ReadInput decodes hex from arg, from the file named by an @file arg, or
// from stdin when arg is empty.
func ReadInput(arg string, stdin io.Reader) ([]byte, error) {
	var text string
	switch {
	case strings.HasPrefix(arg, "@"):
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		text = string(b)
	case arg != "":
		text = arg
	case stdin == nil:
		return nil, errNoInput
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		text = string(b)
	}
	text = strings.TrimPrefix(strings.TrimSpace(text), "0x")
	if text == "" {
		return nil, errNoInput
	}
	b, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidHex, err)
	}
	return b, nil
}

// ParseSeeds reads 0x prefixed seeds as hex and every other seed as its
// UTF-8 bytes.
func ParseSeeds(seeds []string) ([][]byte, error) {
	out := make([][]byte, len(seeds))
	for i, seed := range seeds {
		if h, ok := strings.CutPrefix(seed, "0x"); ok {
			b, err := hex.DecodeString(h)
			if err != nil {
				return nil, fmt.Errorf("%w: seed %q: %w", errInvalidHex, seed, err)
			}
			out[i] = b
			continue
		}
		out[i] = []byte(seed)
	}
	return out, nil
}

// DeriveAddress finds the program address of seeds under programID.
func DeriveAddress(programID string, seeds []string) (solana.PublicKey, uint8, error) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("invalid program ID: %w", err)
	}
	seedBytes, err := ParseSeeds(seeds)
	if err != nil {
		return solana.PublicKey{}, 0, err
	}
	return solana.FindProgramAddress(seedBytes, program)
}

// ParseAddress accepts a base58 address or pda:<PROGRAM_ID>:seed1:seed2...
// A derived address is returned with its bump, otherwise the bump is -1.
func ParseAddress(address string) (solana.PublicKey, int, error) {
	rest, ok := strings.CutPrefix(address, "pda:")
	if !ok {
		key, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return solana.PublicKey{}, -1, fmt.Errorf("invalid account address: %w", err)
		}
		return key, -1, nil
	}
	parts := strings.Split(rest, ":")
	if len(parts) < 2 {
		return solana.PublicKey{}, -1, errPDASyntax
	}
	key, bump, err := DeriveAddress(parts[0], parts[1:])
	if err != nil {
		return solana.PublicKey{}, -1, err
	}
	return key, int(bump), nil
}
