// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package localnet is a deterministic in-process execution environment. It
// implements the same four operations as a live network and can copy its
// whole state.
package localnet

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/log"
	"github.com/luxfi/math"

	"github.com/luxfi/vaa/connection"
	"github.com/luxfi/vaa/utils/timer/mockable"
)

const (
	DefaultLamportsPerSignature uint64 = 5000
	// MaxRecentBlockhashes is how many blockhashes stay valid.
	MaxRecentBlockhashes = 150

	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionYears         = 2
)

var (
	_ connection.Environment = (*Environment)(nil)

	// NativeLoaderID owns every program account.
	NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")
)

// RentExemptMinimum returns the smallest balance an account with dataLen
// bytes may hold.
func RentExemptMinimum(dataLen int) uint64 {
	return uint64(accountStorageOverhead+dataLen) * lamportsPerByteYear * exemptionYears
}

type Config struct {
	LamportsPerSignature uint64
}

func DefaultConfig() Config {
	return Config{LamportsPerSignature: DefaultLamportsPerSignature}
}

// Environment is safe for concurrent use. Every transaction runs alone.
type Environment struct {
	lock sync.Mutex

	config      Config
	log         log.Logger
	clock       *mockable.Clock
	db          database.Database
	programs    map[solana.PublicKey]Program
	blockhashes []solana.Hash
	slot        uint64
}

// New returns an environment holding only the system program.
func New(config Config, logger log.Logger, clock *mockable.Clock) *Environment {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if clock == nil {
		clock = &mockable.Clock{}
	}
	e := &Environment{
		config:      config,
		log:         logger,
		clock:       clock,
		db:          memdb.New(),
		programs:    make(map[solana.PublicKey]Program),
		blockhashes: []solana.Hash{sha256.Sum256([]byte("genesis"))},
	}
	e.programs[solana.SystemProgramID] = systemProgram{}
	return e
}

// Clock returns the clock programs read. Tests may pin and advance it.
func (e *Environment) Clock() *mockable.Clock {
	return e.clock
}

func (e *Environment) Slot() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.slot
}

// AddProgram deploys program at id.
func (e *Environment) AddProgram(id solana.PublicKey, program Program) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.programs[id] = program
	return putAccount(prefixdb.New(accountPrefix, e.db), id, &connection.Account{
		Lamports:   RentExemptMinimum(0),
		Owner:      NativeLoaderID,
		Executable: true,
	})
}

// SetAccount overwrites an account outside of any transaction.
func (e *Environment) SetAccount(key solana.PublicKey, account *connection.Account) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	return putAccount(prefixdb.New(accountPrefix, e.db), key, account.Clone())
}

// Airdrop credits lamports to key, creating a system account if needed.
func (e *Environment) Airdrop(key solana.PublicKey, lamports uint64) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	accounts := prefixdb.New(accountPrefix, e.db)
	account, err := getAccount(accounts, key)
	if err != nil {
		return err
	}
	if account == nil {
		account = &connection.Account{Owner: solana.SystemProgramID}
	}
	account.Lamports, err = math.Add64(account.Lamports, lamports)
	if err != nil {
		return fmt.Errorf("airdrop to %s: %w", key, err)
	}
	return putAccount(accounts, key, account)
}

func (e *Environment) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.blockhashes[len(e.blockhashes)-1], nil
}

func (e *Environment) GetAccount(_ context.Context, address solana.PublicKey) (*connection.Account, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	account, err := getAccount(prefixdb.New(accountPrefix, e.db), address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", connection.ErrConnection, err)
	}
	return account, nil
}

// Simulate runs tx without signature checks and discards every effect.
func (e *Environment) Simulate(_ context.Context, tx *solana.Transaction) ([]byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	exec, err := e.process(tx, false)
	if err != nil {
		return nil, err
	}
	if len(exec.returnData) == 0 {
		return nil, nil
	}
	return exec.returnData, nil
}

// SendAndConfirm executes tx and commits it. A transaction that fails after
// its fee was charged still pays the fee and advances the slot.
func (e *Environment) SendAndConfirm(_ context.Context, tx *solana.Transaction) (*connection.Receipt, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	exec, err := e.process(tx, true)
	if exec != nil {
		e.advance()
	}
	if err != nil {
		return nil, err
	}
	e.log.Debug("transaction committed",
		log.Stringer("signature", tx.Signatures[0]),
		log.Uint64("slot", e.slot),
	)
	return &connection.Receipt{
		Signature:         tx.Signatures[0],
		Slot:              e.slot,
		Logs:              exec.logs,
		InnerInstructions: exec.inner,
	}, nil
}

// Snapshot copies every account, processed signature, blockhash and the
// clock. Programs are shared and must not hold state of their own.
func (e *Environment) Snapshot() (connection.Environment, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	db := memdb.New()
	it := e.db.NewIterator()
	defer it.Release()
	for it.Next() {
		if err := db.Put(slices.Clone(it.Key()), slices.Clone(it.Value())); err != nil {
			return nil, err
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	programs := make(map[solana.PublicKey]Program, len(e.programs))
	for id, program := range e.programs {
		programs[id] = program
	}
	return &Environment{
		config:      e.config,
		log:         e.log,
		clock:       e.clock.Clone(),
		db:          db,
		programs:    programs,
		blockhashes: slices.Clone(e.blockhashes),
		slot:        e.slot,
	}, nil
}

func (e *Environment) advance() {
	e.slot++
	var preimage []byte
	preimage = append(preimage, e.blockhashes[len(e.blockhashes)-1][:]...)
	preimage = binary.BigEndian.AppendUint64(preimage, e.slot)
	e.blockhashes = append(e.blockhashes, sha256.Sum256(preimage))
	if len(e.blockhashes) > MaxRecentBlockhashes {
		e.blockhashes = e.blockhashes[len(e.blockhashes)-MaxRecentBlockhashes:]
	}
}
