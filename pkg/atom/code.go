// SPDX-License-Identifier: GPL-2.0-or-later

package atom

import (
	"encoding/binary"
	"fmt"

	"brawtl/pkg/errkind"
)

// Code is the big-endian integer form of a four character atom type.
type Code uint32

// Atom codes used by the container.
const (
	Moov Code = 0x6d6f6f76 // 'moov'
	Mvhd Code = 0x6d766864 // 'mvhd'
	Trak Code = 0x7472616b // 'trak'
	Tkhd Code = 0x746b6864 // 'tkhd'
	Edts Code = 0x65647473 // 'edts'
	Elst Code = 0x656c7374 // 'elst'
	Tref Code = 0x74726566 // 'tref'
	Tmcd Code = 0x746d6364 // 'tmcd'
	Mdia Code = 0x6d646961 // 'mdia'
	Mdhd Code = 0x6d646864 // 'mdhd'
	Hdlr Code = 0x68646c72 // 'hdlr'
	Minf Code = 0x6d696e66 // 'minf'
	Vmhd Code = 0x766d6864 // 'vmhd'
	Smhd Code = 0x736d6864 // 'smhd'
	Gmhd Code = 0x676d6864 // 'gmhd'
	Gmin Code = 0x676d696e // 'gmin'
	Text Code = 0x74657874 // 'text'
	Dinf Code = 0x64696e66 // 'dinf'
	Dref Code = 0x64726566 // 'dref'
	Stbl Code = 0x7374626c // 'stbl'
	Stsd Code = 0x73747364 // 'stsd'
	Skip Code = 0x736b6970 // 'skip'
	Stts Code = 0x73747473 // 'stts'
	Stsc Code = 0x73747363 // 'stsc'
	Stsz Code = 0x7374737a // 'stsz'
	Co64 Code = 0x636f3634 // 'co64'
	Meta Code = 0x6d657461 // 'meta'
	Keys Code = 0x6b657973 // 'keys'
	Ilst Code = 0x696c7374 // 'ilst'

	Wide Code = 0x77696465 // 'wide'
	Mdat Code = 0x6d646174 // 'mdat'
)

// ParseCode converts a four character tag.
func ParseCode(tag string) (Code, error) {
	if len(tag) != 4 {
		return 0, errkind.Lookupf("invalid atom tag %q", tag)
	}
	return Code(binary.BigEndian.Uint32([]byte(tag))), nil
}

// MustCode is like ParseCode but panics on error.
func MustCode(tag string) Code {
	c, err := ParseCode(tag)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Code) String() string {
	b := [4]byte{}
	binary.BigEndian.PutUint32(b[:], uint32(c))
	for _, ch := range b {
		if ch < 0x20 || ch > 0x7e {
			return fmt.Sprintf("%08x", uint32(c))
		}
	}
	return string(b[:])
}
