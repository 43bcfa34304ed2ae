// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package units

// Denominations of value, in lamports.
const (
	Lamport  uint64 = 1
	MicroSol uint64 = 1000 * Lamport
	MilliSol uint64 = 1000 * MicroSol
	Sol      uint64 = 1000 * MilliSol
	KiloSol  uint64 = 1000 * Sol
)
