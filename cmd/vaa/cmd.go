// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/spf13/cobra"

	"github.com/luxfi/vaa"
	"github.com/luxfi/vaa/connection/rpcconn"
	"github.com/luxfi/vaa/metrics"
	"github.com/luxfi/vaa/submit"
)

var (
	errMissingProgram = errors.New("missing --" + ProgramIDKey)
	errMissingPayer   = errors.New("missing --" + PayerKey)
	errAccountMissing = errors.New("account does not exist")
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:           "vaa",
		Short:         "Submits signed VAAs to programs implementing resolve_execute_vaa_v1",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	AddGlobalFlags(c.PersistentFlags())
	c.AddCommand(
		submitCommand(),
		accountCommand(),
		pdaCommand(),
	)
	return c
}

func submitCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "submit [hex | @file]",
		Short: "Submits a signed VAA, read from stdin when no argument is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  submitFunc,
	}
	AddSubmitFlags(c.Flags())
	return c
}

func submitFunc(c *cobra.Command, args []string) error {
	flags := c.Flags()
	cfg, err := ParseConfig(flags)
	if err != nil {
		return err
	}
	submitConfig, err := cfg.Submit()
	if err != nil {
		return err
	}

	programIDStr, err := getString(flags, ProgramIDKey)
	if err != nil {
		return err
	}
	if programIDStr == "" {
		return errMissingProgram
	}
	programID, err := solana.PublicKeyFromBase58(programIDStr)
	if err != nil {
		return fmt.Errorf("invalid program ID: %w", err)
	}
	payerPath, err := getString(flags, PayerKey)
	if err != nil {
		return err
	}
	if payerPath == "" {
		return errMissingPayer
	}
	payer, err := solana.PrivateKeyFromSolanaKeygenFile(payerPath)
	if err != nil {
		return fmt.Errorf("reading payer keypair: %w", err)
	}

	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	raw, err := ReadInput(arg, c.InOrStdin())
	if err != nil {
		return err
	}
	signed, err := vaa.ParseSigned(raw)
	if err != nil {
		return fmt.Errorf("parsing signed VAA: %w", err)
	}

	logger := Logger(flags)
	m, err := metrics.New(metric.NewRegistry())
	if err != nil {
		return err
	}
	conn := rpcconn.New(cfg.RPC(), logger)
	submitter := submit.New(submitConfig, logger, m)

	logger.Info("submitting attestation",
		log.Stringer("program", programID),
		log.Stringer("payer", payer.PublicKey()),
		log.Stringer("coreBridge", submitConfig.CoreBridge),
		log.Uint32("guardianSetIndex", signed.GuardianSetIndex),
		log.Int("signatures", len(signed.Signatures)),
		log.String("rpc", cfg.RPCURL),
	)
	result, err := submitter.Broadcast(c.Context(), conn, payer, programID, signed)
	if err != nil {
		return err
	}
	out := c.OutOrStdout()
	for _, receipt := range result.Receipts {
		fmt.Fprintln(out, receipt.Signature)
	}
	return nil
}

func accountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "account <address | pda:PROGRAM_ID:seed...>",
		Short: "Dumps the data of an account as hex",
		Args:  cobra.ExactArgs(1),
		RunE:  accountFunc,
	}
}

func accountFunc(c *cobra.Command, args []string) error {
	cfg, err := ParseConfig(c.Flags())
	if err != nil {
		return err
	}
	address, bump, err := ParseAddress(args[0])
	if err != nil {
		return err
	}
	errOut := c.ErrOrStderr()
	if bump >= 0 {
		fmt.Fprintf(errOut, "pda: %s (bump %d)\n", address, bump)
	}

	conn := rpcconn.New(cfg.RPC(), Logger(c.Flags()))
	account, err := conn.GetAccount(c.Context(), address)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: %s", errAccountMissing, address)
	}
	fmt.Fprintf(errOut, "address:  %s\n", address)
	fmt.Fprintf(errOut, "owner:    %s\n", account.Owner)
	fmt.Fprintf(errOut, "lamports: %d\n", account.Lamports)
	fmt.Fprintf(errOut, "data len: %d\n", len(account.Data))
	fmt.Fprintln(c.OutOrStdout(), hex.EncodeToString(account.Data))
	return nil
}

func pdaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pda <PROGRAM_ID> <seed>...",
		Short: "Derives a program address; seeds are strings or 0x prefixed hex",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			address, bump, err := DeriveAddress(args[0], args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), address)
			fmt.Fprintf(c.ErrOrStderr(), "bump: %d\n", bump)
			return nil
		},
	}
}
