// SPDX-License-Identifier: GPL-2.0-or-later

package schema

import (
	"testing"

	"brawtl/pkg/errkind"

	"github.com/stretchr/testify/require"
)

var testLayout = MustCompile("test",
	Field{"version", Uint8},
	Field{"flags", Bytes(3)},
	Field{"count", Uint32},
	Field{"delta", Int16},
	Field{"offset", Uint64},
)

var testBytes = []byte{
	1,                // version
	0x00, 0x00, 0x0f, // flags
	0x00, 0x00, 0x01, 0x02, // count
	0xff, 0xfe, // delta
	0, 0, 0, 1, 0, 0, 0x10, 0x00, // offset
}

func TestCompile(t *testing.T) {
	require.Equal(t, 18, testLayout.Size())

	cases := []struct {
		field  string
		offset int
	}{
		{"version", 0},
		{"flags", 1},
		{"count", 4},
		{"delta", 8},
		{"offset", 10},
	}
	for _, tc := range cases {
		offset, exist := testLayout.Offset(tc.field)
		require.True(t, exist, tc.field)
		require.Equal(t, tc.offset, offset, tc.field)
	}

	_, exist := testLayout.Offset("nil")
	require.False(t, exist)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("empty")
	require.ErrorIs(t, err, ErrNoFields)

	_, err = Compile("dup", Field{"a", Uint8}, Field{"a", Uint16})
	require.ErrorIs(t, err, ErrDuplicateField)

	_, err = Compile("blob", Field{"a", Bytes(0)})
	require.ErrorIs(t, err, ErrInvalidField)

	_, err = Compile("odd", Field{"a", FieldType{kindUint, 3}})
	require.ErrorIs(t, err, ErrInvalidField)

	require.Panics(t, func() { MustCompile("empty") })
}

func TestDecode(t *testing.T) {
	buf := append([]byte{0xaa, 0xbb}, testBytes...)
	r, err := testLayout.Decode(buf, 2)
	require.NoError(t, err)

	require.Equal(t, uint64(1), r.Uint("version"))
	require.Equal(t, []byte{0, 0, 0x0f}, r.Bytes("flags"))
	require.Equal(t, uint64(0x102), r.Uint("count"))
	require.Equal(t, int64(-2), r.Int("delta"))
	require.Equal(t, uint64(0xfffe), r.Uint("delta"))
	require.Equal(t, uint64(0x100001000), r.Uint("offset"))
}

func TestDecodeShort(t *testing.T) {
	_, err := testLayout.Decode(testBytes[:17], 0)
	require.ErrorIs(t, err, errkind.ErrFormat)

	_, err = testLayout.Decode(testBytes, 1)
	require.ErrorIs(t, err, errkind.ErrFormat)
}

func TestMarshal(t *testing.T) {
	r, err := testLayout.Decode(testBytes, 0)
	require.NoError(t, err)

	actual, err := testLayout.Marshal(r)
	require.NoError(t, err)
	require.Equal(t, testBytes, actual)

	other := MustCompile("other", Field{"a", Uint8})
	_, err = other.Marshal(r)
	require.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestWith(t *testing.T) {
	r, err := testLayout.Decode(testBytes, 0)
	require.NoError(t, err)

	r2 := r.With("count", 7).WithInt("delta", -300).WithBytes("flags", []byte{1, 2, 3})
	require.Equal(t, uint64(0x102), r.Uint("count"), "original must not change")
	require.Equal(t, int64(-2), r.Int("delta"))
	require.Equal(t, []byte{0, 0, 0x0f}, r.Bytes("flags"))

	require.Equal(t, uint64(7), r2.Uint("count"))
	require.Equal(t, int64(-300), r2.Int("delta"))
	require.Equal(t, []byte{1, 2, 3}, r2.Bytes("flags"))
	require.False(t, r.Equal(r2))
	require.True(t, r2.Equal(r2.With("version", 1)))

	actual, err := testLayout.Marshal(r2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x07}, actual[4:8])
	require.Equal(t, []byte{0xfe, 0xd4}, actual[8:10])
}

func TestWithPanics(t *testing.T) {
	r := testLayout.Zero()
	require.Panics(t, func() { r.With("version", 256) })
	require.Panics(t, func() { r.WithInt("delta", 40000) })
	require.Panics(t, func() { r.WithBytes("flags", []byte{1}) })
	require.Panics(t, func() { r.With("nil", 1) })
	require.Panics(t, func() { r.Bytes("count") })
	require.Panics(t, func() { Record{}.Uint("count") })
}

func TestZero(t *testing.T) {
	r := testLayout.Zero()
	actual, err := testLayout.Marshal(r)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 18), actual)
	require.Equal(t, "{version=0 flags=000000 count=0 delta=0 offset=0}", r.String())
}
