// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInsufficientLength = errors.New("packer has insufficient length for input")
	ErrTrailingBytes      = errors.New("unexpected trailing bytes")
	errNegativeOffset     = errors.New("negative offset")
	errInvalidInput       = errors.New("input does not match expected format")
	errBadBool            = errors.New("unexpected value when unpacking bool")
	errOversized          = errors.New("size is larger than limit")
)

// Packer reads and writes fixed width values at a moving offset.
//
// Multi-byte integers use Order, or big endian when Order is nil. Attestation
// bodies are big endian while host account layouts are little endian, so the
// same packer serves both.
type Packer struct {
	Errs

	// MaxSize bounds how far Bytes may grow while packing.
	MaxSize int
	Bytes   []byte
	Offset  int
	Order   binary.ByteOrder
}

// NewReader returns a packer positioned at the start of b.
func NewReader(b []byte, order binary.ByteOrder) *Packer {
	return &Packer{Bytes: b, Order: order}
}

// NewWriter returns an empty packer that can grow up to maxSize bytes.
func NewWriter(sizeHint, maxSize int, order binary.ByteOrder) *Packer {
	return &Packer{
		MaxSize: maxSize,
		Bytes:   make([]byte, 0, sizeHint),
		Order:   order,
	}
}

func (p *Packer) order() binary.ByteOrder {
	if p.Order == nil {
		return binary.BigEndian
	}
	return p.Order
}

// Remaining returns the number of unread bytes.
func (p *Packer) Remaining() int {
	return max(len(p.Bytes)-p.Offset, 0)
}

// Done fails when a reader did not consume its whole input.
func (p *Packer) Done() error {
	if p.Errored() {
		return p.Err
	}
	if n := p.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d", ErrTrailingBytes, n)
	}
	return nil
}

func (p *Packer) PackByte(val byte) {
	p.expand(ByteLen)
	if p.Errored() {
		return
	}
	p.Bytes[p.Offset] = val
	p.Offset++
}

func (p *Packer) UnpackByte() byte {
	p.checkSpace(ByteLen)
	if p.Errored() {
		return 0
	}
	val := p.Bytes[p.Offset]
	p.Offset++
	return val
}

func (p *Packer) PackShort(val uint16) {
	p.expand(ShortLen)
	if p.Errored() {
		return
	}
	p.order().PutUint16(p.Bytes[p.Offset:], val)
	p.Offset += ShortLen
}

func (p *Packer) UnpackShort() uint16 {
	p.checkSpace(ShortLen)
	if p.Errored() {
		return 0
	}
	val := p.order().Uint16(p.Bytes[p.Offset:])
	p.Offset += ShortLen
	return val
}

func (p *Packer) PackInt(val uint32) {
	p.expand(IntLen)
	if p.Errored() {
		return
	}
	p.order().PutUint32(p.Bytes[p.Offset:], val)
	p.Offset += IntLen
}

func (p *Packer) UnpackInt() uint32 {
	p.checkSpace(IntLen)
	if p.Errored() {
		return 0
	}
	val := p.order().Uint32(p.Bytes[p.Offset:])
	p.Offset += IntLen
	return val
}

func (p *Packer) PackLong(val uint64) {
	p.expand(LongLen)
	if p.Errored() {
		return
	}
	p.order().PutUint64(p.Bytes[p.Offset:], val)
	p.Offset += LongLen
}

func (p *Packer) UnpackLong() uint64 {
	p.checkSpace(LongLen)
	if p.Errored() {
		return 0
	}
	val := p.order().Uint64(p.Bytes[p.Offset:])
	p.Offset += LongLen
	return val
}

func (p *Packer) PackBool(b bool) {
	if b {
		p.PackByte(1)
	} else {
		p.PackByte(0)
	}
}

func (p *Packer) UnpackBool() bool {
	switch p.UnpackByte() {
	case 0:
		return false
	case 1:
		return true
	default:
		p.Add(errBadBool)
		return false
	}
}

// PackFixedBytes writes bytes with no length prefix.
func (p *Packer) PackFixedBytes(bytes []byte) {
	p.expand(len(bytes))
	if p.Errored() {
		return
	}
	copy(p.Bytes[p.Offset:], bytes)
	p.Offset += len(bytes)
}

// UnpackFixedBytes returns a copy of the next size bytes.
func (p *Packer) UnpackFixedBytes(size int) []byte {
	p.checkSpace(size)
	if p.Errored() {
		return nil
	}
	bytes := make([]byte, size)
	copy(bytes, p.Bytes[p.Offset:p.Offset+size])
	p.Offset += size
	return bytes
}

// UnpackHash reads a 32 byte value.
func (p *Packer) UnpackHash() [HashLen]byte {
	var h [HashLen]byte
	copy(h[:], p.UnpackFixedBytes(HashLen))
	return h
}

// PackBytes writes a u32 length prefix followed by bytes.
func (p *Packer) PackBytes(bytes []byte) {
	p.PackInt(uint32(len(bytes)))
	p.PackFixedBytes(bytes)
}

// UnpackLimitedBytes reads a u32 length prefixed slice of at most limit bytes.
func (p *Packer) UnpackLimitedBytes(limit uint32) []byte {
	size := p.UnpackInt()
	if p.Errored() {
		return nil
	}
	if size > limit {
		p.Add(fmt.Errorf("%w: %d > %d", errOversized, size, limit))
		return nil
	}
	return p.UnpackFixedBytes(int(size))
}

// UnpackRest returns a copy of every unread byte.
func (p *Packer) UnpackRest() []byte {
	return p.UnpackFixedBytes(p.Remaining())
}

func (p *Packer) checkSpace(bytes int) {
	switch {
	case p.Offset < 0:
		p.Add(errNegativeOffset)
	case bytes < 0:
		p.Add(errInvalidInput)
	case len(p.Bytes)-p.Offset < bytes:
		p.Add(ErrInsufficientLength)
	}
}

func (p *Packer) expand(bytes int) {
	neededSize := bytes + p.Offset
	switch {
	case neededSize <= len(p.Bytes):
		return
	case neededSize > p.MaxSize:
		p.Add(ErrInsufficientLength)
	case neededSize <= cap(p.Bytes):
		p.Bytes = p.Bytes[:neededSize]
	default:
		p.Bytes = append(p.Bytes[:cap(p.Bytes)], make([]byte, neededSize-cap(p.Bytes))...)
	}
}
