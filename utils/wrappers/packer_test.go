// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackerByteOrder(t *testing.T) {
	tests := []struct {
		name     string
		order    binary.ByteOrder
		expected []byte
	}{
		{
			name:     "default big endian",
			expected: []byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x03},
		},
		{
			name:     "little endian",
			order:    binary.LittleEndian,
			expected: []byte{0x02, 0x01, 0x03, 0x00, 0x00, 0x00},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			p := NewWriter(0, 64, test.order)
			p.PackShort(0x0102)
			p.PackInt(3)
			require.NoError(p.Err)
			require.Equal(test.expected, p.Bytes)

			r := NewReader(p.Bytes, test.order)
			require.Equal(uint16(0x0102), r.UnpackShort())
			require.Equal(uint32(3), r.UnpackInt())
			require.NoError(r.Done())
		})
	}
}

func TestPackerMaxSize(t *testing.T) {
	require := require.New(t)

	p := NewWriter(0, 3, nil)
	p.PackShort(1)
	p.PackShort(2)
	require.ErrorIs(p.Err, ErrInsufficientLength)
}

func TestPackerTrailingBytes(t *testing.T) {
	require := require.New(t)

	r := NewReader([]byte{1, 2, 3}, nil)
	require.Equal(byte(1), r.UnpackByte())
	require.ErrorIs(r.Done(), ErrTrailingBytes)
	require.Equal([]byte{2, 3}, r.UnpackRest())
	require.NoError(r.Done())
}

func TestPackerLimitedBytes(t *testing.T) {
	require := require.New(t)

	p := NewWriter(0, 64, binary.LittleEndian)
	p.PackBytes([]byte{1, 2, 3, 4})
	require.NoError(p.Err)

	r := NewReader(p.Bytes, binary.LittleEndian)
	require.Nil(r.UnpackLimitedBytes(3))
	require.ErrorIs(r.Err, errOversized)

	r = NewReader(p.Bytes, binary.LittleEndian)
	require.Equal([]byte{1, 2, 3, 4}, r.UnpackLimitedBytes(4))
	require.NoError(r.Done())
}

func TestPackerFirstErrorSticks(t *testing.T) {
	require := require.New(t)

	r := NewReader([]byte{2}, nil)
	require.False(r.UnpackBool())
	require.ErrorIs(r.Err, errBadBool)
	r.UnpackLong()
	require.ErrorIs(r.Err, errBadBool)
}
