// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wrappers provides fixed-layout binary packing helpers.
package wrappers

const (
	ByteLen  = 1
	ShortLen = 2
	IntLen   = 4
	LongLen  = 8
	BoolLen  = 1
	// HashLen is the length of a 32 byte address, key or digest.
	HashLen = 32
)

// Errs keeps the first error recorded by a sequence of operations.
type Errs struct {
	Err error
}

// Errored reports whether an error has been recorded.
func (errs *Errs) Errored() bool {
	return errs.Err != nil
}

// Add records the first non-nil error.
func (errs *Errs) Add(errors ...error) {
	if errs.Err != nil {
		return
	}
	for _, err := range errors {
		if err != nil {
			errs.Err = err
			return
		}
	}
}
