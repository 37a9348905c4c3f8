// SPDX-License-Identifier: GPL-2.0-or-later

// Package brawtest builds synthetic clips for tests.
package brawtest

import (
	"encoding/binary"

	"brawtl/pkg/atom"
	"brawtl/pkg/schema"
)

// TimecodeOffset where cameras store the timecode sample.
const TimecodeOffset = 0x1000

// Options clip options. Use DefaultOptions as a base.
type Options struct {
	Frames [][]byte

	// Use the 'wide' metadata pointer instead of the 64 bit one.
	Wide bool

	VideoTracks        int
	AudioTracks        int
	TimecodeTracks     int
	UnclassifiedTracks int

	Timecode         []byte
	TimecodeChunks   []uint64 // Chunk offsets of the timecode track.
	TimecodeSize     uint32   // Sample size of the timecode track.
	Timescale        uint32
	ExtraVideoOffset int // Appended to the co64 table only.
}

// DefaultOptions returns options for a clip with one track of each kind.
func DefaultOptions(frames [][]byte) Options {
	return Options{
		Frames:         frames,
		VideoTracks:    1,
		AudioTracks:    1,
		TimecodeTracks: 1,
		Timecode:       []byte{0x01, 0x02, 0x03, 0x04},
		TimecodeChunks: []uint64{TimecodeOffset},
		TimecodeSize:   4,
		Timescale:      25,
	}
}

// Frames returns n distinct payloads of varying sizes.
func Frames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frame := make([]byte, 100+i*37)
		for j := range frame {
			frame[j] = byte(i*31 + j)
		}
		frames[i] = frame
	}
	return frames
}

// Clip generated clip.
type Clip struct {
	Bytes        []byte
	FrameOffsets []uint64
	MetaOffset   uint64
	Tree         *atom.Container
}

const page = 4096

func align(n uint64) uint64 {
	return (n + page - 1) &^ (page - 1)
}

// Build generates a clip.
func Build(opts Options) Clip {
	cursor := uint64(2 * page)
	offsets := make([]uint64, len(opts.Frames))
	for i, f := range opts.Frames {
		offsets[i] = cursor
		cursor = align(cursor + uint64(len(f)))
	}
	audioOffset := cursor
	audio := make([]byte, 64)
	cursor = align(cursor + uint64(len(audio)))
	metaOffset := cursor

	n := uint64(len(opts.Frames))
	moov := atom.NewContainer(atom.Moov, leaf(atom.Mvhd, fields{
		"timescale":     uint64(opts.Timescale),
		"duration":      n,
		"next_track_id": 4,
	}))
	id := uint64(1)
	for i := 0; i < opts.VideoTracks; i++ {
		moov.Append(videoTrack(opts, offsets, id))
		id++
	}
	for i := 0; i < opts.AudioTracks; i++ {
		moov.Append(audioTrack(opts, audioOffset, uint64(len(audio)), id))
		id++
	}
	for i := 0; i < opts.TimecodeTracks; i++ {
		moov.Append(timecodeTrack(opts, id))
		id++
	}
	for i := 0; i < opts.UnclassifiedTracks; i++ {
		moov.Append(atom.NewContainer(atom.Trak,
			leaf(atom.Tkhd, fields{"track_id": id}),
			atom.NewContainer(atom.Tref, atom.NewOpaque(atom.Tmcd, []byte{0, 0, 0, 1})),
		))
		id++
	}
	moov.Append(atom.NewContainer(atom.Meta,
		atom.NewOpaque(atom.Keys, []byte{0, 0, 0, 0, 0, 0, 0, 0}),
		atom.NewOpaque(atom.Ilst, nil),
	))

	meta, err := atom.Marshal(moov)
	if err != nil {
		panic(err)
	}

	out := make([]byte, metaOffset+uint64(len(meta)))
	if opts.Wide {
		binary.BigEndian.PutUint32(out[0:], 8)
		binary.BigEndian.PutUint32(out[4:], uint32(atom.Wide))
		binary.BigEndian.PutUint32(out[8:], uint32(metaOffset-8))
		binary.BigEndian.PutUint32(out[12:], uint32(atom.Mdat))
	} else {
		binary.BigEndian.PutUint32(out[0:], 1)
		binary.BigEndian.PutUint32(out[4:], uint32(atom.Mdat))
		binary.BigEndian.PutUint64(out[8:], metaOffset)
	}
	copy(out[TimecodeOffset:], opts.Timecode)
	for i, f := range opts.Frames {
		copy(out[offsets[i]:], f)
	}
	for i := range audio {
		out[audioOffset+uint64(i)] = 0xa0
	}
	copy(out[metaOffset:], meta)

	return Clip{
		Bytes:        out,
		FrameOffsets: offsets,
		MetaOffset:   metaOffset,
		Tree:         moov,
	}
}

type fields map[string]uint64

func leaf(code atom.Code, header fields, records ...fields) *atom.Schema {
	s, err := atom.Default.NewSchema(code)
	if err != nil {
		panic(err)
	}
	if s.Desc().Record != nil {
		recs := make([]schema.Record, len(records))
		for i, rec := range records {
			r := s.NewRecord()
			for name, v := range rec {
				r = r.With(name, v)
			}
			recs[i] = r
		}
		if err := s.SetRecords(recs); err != nil {
			panic(err)
		}
	}
	for name, v := range header {
		s.Update(name, v)
	}
	return s
}

func track(opts Options, id uint64, duration uint64, marker atom.Atom, stbl ...atom.Atom) *atom.Container {
	return atom.NewContainer(atom.Trak,
		leaf(atom.Tkhd, fields{"track_id": id, "duration": duration}),
		atom.NewContainer(atom.Edts,
			leaf(atom.Elst, nil, fields{"track_duration": duration, "media_rate": 0x10000}),
		),
		atom.NewContainer(atom.Mdia,
			leaf(atom.Mdhd, fields{"timescale": uint64(opts.Timescale), "duration": duration}),
			atom.NewOpaque(atom.Hdlr, []byte("handler")),
			atom.NewContainer(atom.Minf,
				marker,
				atom.NewContainer(atom.Dinf, atom.NewOpaque(atom.Dref, []byte{0, 0, 0, 0, 0, 0, 0, 0})),
				atom.NewContainer(atom.Stbl, append([]atom.Atom{
					atom.NewOpaque(atom.Stsd, []byte("sample description")),
				}, stbl...)...),
			),
		),
	)
}

func videoTrack(opts Options, offsets []uint64, id uint64) *atom.Container {
	n := uint64(len(opts.Frames))
	sizes := make([]fields, len(opts.Frames))
	chunks := make([]fields, len(offsets), len(offsets)+1)
	for i, f := range opts.Frames {
		sizes[i] = fields{"size": uint64(len(f))}
		chunks[i] = fields{"offset": offsets[i]}
	}
	if opts.ExtraVideoOffset != 0 {
		chunks = append(chunks, fields{"offset": uint64(opts.ExtraVideoOffset)})
	}
	return track(opts, id, n,
		atom.NewOpaque(atom.Vmhd, []byte{0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}),
		leaf(atom.Stts, nil, fields{"sample_count": n, "sample_duration": 1}),
		leaf(atom.Stsc, nil, fields{"first_chunk": 1, "samples_per_chunk": 1, "sample_description_id": 1}),
		leaf(atom.Stsz, nil, sizes...),
		leaf(atom.Co64, nil, chunks...),
	)
}

func audioTrack(opts Options, offset, size uint64, id uint64) *atom.Container {
	n := uint64(len(opts.Frames))
	return track(opts, id, n,
		atom.NewOpaque(atom.Smhd, []byte{0, 0, 0, 0, 0, 0, 0, 0}),
		leaf(atom.Stts, nil, fields{"sample_count": size, "sample_duration": 1}),
		leaf(atom.Stsc, nil, fields{"first_chunk": 1, "samples_per_chunk": size, "sample_description_id": 1}),
		leaf(atom.Stsz, fields{"sample_size": 1, "num_entries": size}),
		leaf(atom.Co64, nil, fields{"offset": offset}),
	)
}

func timecodeTrack(opts Options, id uint64) *atom.Container {
	n := uint64(len(opts.Frames))
	chunks := make([]fields, len(opts.TimecodeChunks))
	for i, offset := range opts.TimecodeChunks {
		chunks[i] = fields{"offset": offset}
	}
	return track(opts, id, n,
		atom.NewContainer(atom.Gmhd,
			atom.NewOpaque(atom.Gmin, make([]byte, 16)),
			atom.NewOpaque(atom.Tmcd, make([]byte, 8)),
		),
		leaf(atom.Stts, nil, fields{"sample_count": 1, "sample_duration": n}),
		leaf(atom.Stsc, nil, fields{"first_chunk": 1, "samples_per_chunk": 1, "sample_description_id": 1}),
		leaf(atom.Stsz, fields{
			"sample_size": uint64(opts.TimecodeSize),
			"num_entries": uint64(len(opts.TimecodeChunks)),
		}),
		leaf(atom.Co64, nil, chunks...),
	)
}
