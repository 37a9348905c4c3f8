// SPDX-License-Identifier: GPL-2.0-or-later

// Package braw reads BRAW clips.
//
// A clip starts with a 16 byte metadata pointer. The metadata block is a
// single moov atom holding one video, one timecode and optionally one audio
// track. Frame payloads are stored elsewhere in the file and are located
// through the video track's sample size and chunk offset tables.
package braw

import (
	"encoding/binary"
	"fmt"

	"brawtl/pkg/atom"
	"brawtl/pkg/errkind"
)

// PointerSize size of the metadata pointer at the start of the file.
const PointerSize = 16

// PointerLayout identifies the binary layout of the metadata pointer.
type PointerLayout uint8

// Pointer layouts.
const (
	// LayoutWide be32:8 'wide' be32:ptr 'mdat', metadata at ptr+8.
	LayoutWide PointerLayout = iota + 1

	// LayoutMdat64 be32:1 'mdat' be64:ptr, metadata at ptr.
	LayoutMdat64
)

func (l PointerLayout) String() string {
	switch l {
	case LayoutWide:
		return "wide"
	case LayoutMdat64:
		return "mdat64"
	}
	return "unknown"
}

// Pointer decoded metadata pointer.
type Pointer struct {
	Layout PointerLayout
	Offset uint64 // Start of the metadata block.
}

// ReadPointer decodes the metadata pointer at the start of data.
func ReadPointer(data []byte) (Pointer, error) {
	if len(data) < PointerSize {
		return Pointer{}, errkind.Formatf(
			"%d bytes is too small for the metadata pointer", len(data))
	}
	w0 := binary.BigEndian.Uint32(data[0:4])
	w1 := atom.Code(binary.BigEndian.Uint32(data[4:8]))
	w2 := binary.BigEndian.Uint32(data[8:12])
	w3 := atom.Code(binary.BigEndian.Uint32(data[12:16]))

	switch {
	case w0 == 8 && w1 == atom.Wide && w3 == atom.Mdat:
		return Pointer{Layout: LayoutWide, Offset: uint64(w2) + 8}, nil
	case w0 == 1 && w1 == atom.Mdat:
		return Pointer{Layout: LayoutMdat64, Offset: binary.BigEndian.Uint64(data[8:16])}, nil
	}
	return Pointer{}, errkind.Formatf("unknown metadata pointer format: % x", data[:PointerSize])
}

// Marshal encodes the pointer.
func (p Pointer) Marshal() ([]byte, error) {
	out := make([]byte, PointerSize)
	switch p.Layout {
	case LayoutWide:
		if p.Offset < 8 || p.Offset-8 > 0xffffffff {
			return nil, errkind.Consistencyf("offset %d does not fit the wide layout", p.Offset)
		}
		binary.BigEndian.PutUint32(out[0:4], 8)
		binary.BigEndian.PutUint32(out[4:8], uint32(atom.Wide))
		binary.BigEndian.PutUint32(out[8:12], uint32(p.Offset-8))
		binary.BigEndian.PutUint32(out[12:16], uint32(atom.Mdat))
	case LayoutMdat64:
		binary.BigEndian.PutUint32(out[0:4], 1)
		binary.BigEndian.PutUint32(out[4:8], uint32(atom.Mdat))
		binary.BigEndian.PutUint64(out[8:16], p.Offset)
	default:
		return nil, errkind.Consistencyf("unknown pointer layout %d", p.Layout)
	}
	return out, nil
}

// Tracks indexes of the classified tracks among the trak children
// of the metadata block. Missing tracks are -1.
type Tracks struct {
	Video    int
	Audio    int
	Timecode int
}

// HasAudio reports whether the clip has an audio track.
func (t Tracks) HasAudio() bool { return t.Audio != -1 }

// Frame byte range of one video sample in the source.
type Frame struct {
	Offset uint64
	Size   uint64
}

// End returns the offset after the frame.
func (f Frame) End() uint64 { return f.Offset + f.Size }

// Clip parsed source. It borrows the source bytes and must not
// outlive the File it was parsed from.
type Clip struct {
	data []byte

	Pointer Pointer
	Meta    []byte          // Metadata block as stored in the source.
	Tree    *atom.Container // Parsed metadata block.
	Tracks  Tracks
	Frames  []Frame
}

// Paths relative to a track.
var (
	MinfPath = atom.PathOf(atom.Mdia, atom.Minf)
	StblPath = MinfPath.Then(atom.Stbl)
)

// TrackPath path of the i'th trak in the metadata block.
func TrackPath(i int) atom.Path {
	return atom.Path{atom.Nth(atom.Trak, i)}
}

// Parse parses a whole clip held in data.
func Parse(data []byte) (*Clip, error) {
	pointer, err := ReadPointer(data)
	if err != nil {
		return nil, err
	}
	if pointer.Offset >= uint64(len(data)) {
		return nil, errkind.Formatf("metadata offset %d is beyond end of file %d",
			pointer.Offset, len(data))
	}

	root, err := atom.Parse(data[pointer.Offset:], atom.Default)
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	tree, ok := root.(*atom.Container)
	if !ok || tree.Code() != atom.Moov {
		return nil, errkind.Formatf("metadata block is %v, not a %v container", root.Code(), atom.Moov)
	}

	tracks, err := classifyTracks(tree)
	if err != nil {
		return nil, err
	}

	frames, err := readFrames(tree, tracks.Video, len(data))
	if err != nil {
		return nil, fmt.Errorf("video frames: %w", err)
	}

	return &Clip{
		data:    data,
		Pointer: pointer,
		Meta:    data[pointer.Offset : pointer.Offset+uint64(root.ParsedSize())],
		Tree:    tree,
		Tracks:  tracks,
		Frames:  frames,
	}, nil
}

func classifyTracks(tree *atom.Container) (Tracks, error) {
	tracks := Tracks{Video: -1, Audio: -1, Timecode: -1}

	for i := range tree.Matches(atom.Trak) {
		minf, err := tree.Container(TrackPath(i).Join(MinfPath))
		if err != nil {
			// Tracks without media info are neither of the three.
			continue
		}

		var slot *int
		var name string
		switch {
		case minf.Has(atom.PathOf(atom.Vmhd)):
			slot, name = &tracks.Video, "video"
		case minf.Has(atom.PathOf(atom.Smhd)):
			slot, name = &tracks.Audio, "audio"
		case minf.Has(atom.PathOf(atom.Gmhd)):
			slot, name = &tracks.Timecode, "timecode"
		default:
			continue
		}
		if *slot != -1 {
			return Tracks{}, errkind.Consistencyf("multiple %s tracks", name)
		}
		*slot = i
	}

	if tracks.Video == -1 {
		return Tracks{}, errkind.Consistencyf("missing video track")
	}
	if tracks.Timecode == -1 {
		return Tracks{}, errkind.Consistencyf("missing timecode track")
	}
	return tracks, nil
}

// SampleTables returns the sample size and chunk offset tables of track i.
func SampleTables(tree *atom.Container, i int) (stsz *atom.Schema, co64 *atom.Schema, err error) {
	stbl := TrackPath(i).Join(StblPath)
	stsz, err = tree.Schema(stbl.Then(atom.Stsz))
	if err != nil {
		return nil, nil, err
	}
	co64, err = tree.Schema(stbl.Then(atom.Co64))
	if err != nil {
		return nil, nil, err
	}
	return stsz, co64, nil
}

func readFrames(tree *atom.Container, video int, fileSize int) ([]Frame, error) {
	stsz, co64, err := SampleTables(tree, video)
	if err != nil {
		return nil, err
	}

	sampleSize := stsz.Header().Uint("sample_size")
	nSizes := stsz.Len()
	if sampleSize != 0 {
		// Constant size, the table is omitted.
		nSizes = int(stsz.Header().Uint("num_entries"))
	} else if uint64(nSizes) != stsz.Header().Uint("num_entries") {
		return nil, errkind.Consistencyf("stsz declares %d entries but holds %d",
			stsz.Header().Uint("num_entries"), nSizes)
	}
	if uint64(co64.Len()) != co64.Header().Uint("num_entries") {
		return nil, errkind.Consistencyf("co64 declares %d entries but holds %d",
			co64.Header().Uint("num_entries"), co64.Len())
	}
	if nSizes != co64.Len() {
		return nil, errkind.Consistencyf(
			"inconsistent number of entries in stsz (%d) and co64 (%d)", nSizes, co64.Len())
	}

	sizes := stsz.Records()
	offsets := co64.Records()
	frames := make([]Frame, nSizes)
	for i := range frames {
		size := sampleSize
		if size == 0 {
			size = sizes[i].Uint("size")
		}
		frames[i] = Frame{Offset: offsets[i].Uint("offset"), Size: size}
		if frames[i].End() < frames[i].Offset || frames[i].End() > uint64(fileSize) {
			return nil, errkind.Consistencyf("frame %d [%d, +%d) is beyond end of file %d",
				i, frames[i].Offset, frames[i].Size, fileSize)
		}
	}
	return frames, nil
}

// Range returns n source bytes at offset.
func (c *Clip) Range(offset, n uint64) ([]byte, error) {
	end := offset + n
	if end < offset || end > uint64(len(c.data)) {
		return nil, errkind.Consistencyf("range [%d, +%d) is beyond end of file %d",
			offset, n, len(c.data))
	}
	return c.data[offset:end], nil
}

// FrameData returns the payload of frame i without copying.
func (c *Clip) FrameData(i int) []byte {
	f := c.Frames[i]
	return c.data[f.Offset:f.End()]
}

// Track returns the i'th trak of the parsed tree.
func (c *Clip) Track(i int) (*atom.Container, error) {
	return c.Tree.Container(TrackPath(i))
}
