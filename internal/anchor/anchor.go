// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package anchor derives the 8 byte selectors programs use to tag
// instructions and accounts.
package anchor

import "crypto/sha256"

const DiscriminatorLen = 8

type Discriminator [DiscriminatorLen]byte

var (
	// EventInstructionTag prefixes the data of an event emitted through a
	// self invocation.
	EventInstructionTag = Discriminator{0xe4, 0x45, 0xa5, 0x2e, 0x51, 0xcb, 0x9a, 0x1d}
	// EventAuthoritySeed derives the account that signs emitted events.
	EventAuthoritySeed = []byte("__event_authority")
)

// Instruction returns the selector of the named instruction.
func Instruction(name string) Discriminator {
	return sum("global:" + name)
}

// Account returns the selector of the named account type.
func Account(name string) Discriminator {
	return sum("account:" + name)
}

// Event returns the selector of the named event.
func Event(name string) Discriminator {
	return sum("event:" + name)
}

func sum(preimage string) Discriminator {
	h := sha256.Sum256([]byte(preimage))
	var d Discriminator
	copy(d[:], h[:DiscriminatorLen])
	return d
}

// Match reports whether data starts with d.
func (d Discriminator) Match(data []byte) bool {
	return len(data) >= DiscriminatorLen && [DiscriminatorLen]byte(data[:DiscriminatorLen]) == d
}
