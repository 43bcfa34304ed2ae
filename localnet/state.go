// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package localnet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"

	"github.com/luxfi/vaa/connection"
)

var (
	accountPrefix   = []byte("account")
	signaturePrefix = []byte("signature")

	processed = []byte{1}
)

// storedAccount is the persisted form of an account.
type storedAccount struct {
	Lamports   uint64   `serialize:"true"`
	Owner      [32]byte `serialize:"true"`
	Executable bool     `serialize:"true"`
	Data       []byte   `serialize:"true"`
}

func getAccount(db database.Database, key solana.PublicKey) (*connection.Account, error) {
	b, err := db.Get(key[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s storedAccount
	if _, err := Codec.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding account %s: %w", key, err)
	}
	return &connection.Account{
		Lamports:   s.Lamports,
		Owner:      s.Owner,
		Executable: s.Executable,
		Data:       s.Data,
	}, nil
}

// putAccount stores account, deleting it once it holds no lamports.
func putAccount(db database.Database, key solana.PublicKey, account *connection.Account) error {
	if account.Lamports == 0 {
		return db.Delete(key[:])
	}
	b, err := Codec.Marshal(codecVersion, &storedAccount{
		Lamports:   account.Lamports,
		Owner:      account.Owner,
		Executable: account.Executable,
		Data:       account.Data,
	})
	if err != nil {
		return fmt.Errorf("encoding account %s: %w", key, err)
	}
	return db.Put(key[:], b)
}

// txState is the working set of accounts of one transaction. Accounts are
// read through from db once and written back by flush.
type txState struct {
	accounts database.Database
	loaded   map[solana.PublicKey]*connection.Account
	dirty    map[solana.PublicKey]struct{}
}

func newTxState(db database.Database) *txState {
	return &txState{
		accounts: prefixdb.New(accountPrefix, db),
		loaded:   make(map[solana.PublicKey]*connection.Account),
		dirty:    make(map[solana.PublicKey]struct{}),
	}
}

// load returns the working copy of key. Accounts that do not exist are
// empty and owned by the system program.
func (s *txState) load(key solana.PublicKey) (*connection.Account, error) {
	if account, ok := s.loaded[key]; ok {
		return account, nil
	}
	account, err := getAccount(s.accounts, key)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &connection.Account{Owner: solana.SystemProgramID}
	}
	s.loaded[key] = account
	return account, nil
}

func (s *txState) set(key solana.PublicKey, account *connection.Account) {
	s.loaded[key] = account
	s.dirty[key] = struct{}{}
}

// checkRent fails if a modified account is left with a balance below the
// rent exempt minimum of its size.
func (s *txState) checkRent() error {
	for key := range s.dirty {
		account := s.loaded[key]
		if account.Lamports == 0 {
			continue
		}
		if minimum := RentExemptMinimum(len(account.Data)); account.Lamports < minimum {
			return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFundsForRent, key, account.Lamports, minimum)
		}
	}
	return nil
}

func (s *txState) flush() error {
	for key := range s.dirty {
		if err := putAccount(s.accounts, key, s.loaded[key]); err != nil {
			return err
		}
	}
	return nil
}

// sameAccount reports whether a and b hold identical state.
func sameAccount(a, b *connection.Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
