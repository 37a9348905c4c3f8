// SPDX-License-Identifier: GPL-2.0-or-later

// Package timelapse rebuilds a clip from every n'th frame of a source clip.
package timelapse

import (
	"fmt"

	"brawtl/pkg/atom"
	"brawtl/pkg/braw"
	"brawtl/pkg/errkind"
	"brawtl/pkg/schema"
)

// Timecode sample location the rebuilder supports.
const (
	TimecodeOffset = 0x1000
	TimecodeSize   = 4
)

// Options frame selection.
type Options struct {
	Stride int
	Start  int
}

// Plan rebuilt clip, ready to be written.
type Plan struct {
	// Source frame indexes in output order.
	Selected []int

	// Placed chunks. The header is first and the metadata block last.
	// Frame chunks share memory with the source clip.
	Chunks []Chunk

	Tree       *atom.Container // Rebuilt metadata block.
	MetaOffset uint64
	Size       uint64
}

// Rebuild plans the timelapse of clip. The clip is not modified.
func Rebuild(clip *braw.Clip, opts Options) (*Plan, error) {
	selected, err := Select(len(clip.Frames), opts.Stride, opts.Start)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, errkind.Consistencyf("no frames selected from %d with start %d",
			len(clip.Frames), opts.Start)
	}

	timecode, err := timecodeChunk(clip)
	if err != nil {
		return nil, fmt.Errorf("timecode: %w", err)
	}

	var layout Layout
	header := make([]byte, braw.PointerSize)
	layout.Add(header)
	if err := layout.AddAt(timecode, TimecodeOffset); err != nil {
		return nil, err
	}

	offsets := make([]uint64, len(selected))
	sizes := make([]uint64, len(selected))
	for i, frame := range selected {
		data := clip.FrameData(frame)
		offsets[i] = layout.Add(data)
		sizes[i] = uint64(len(data))
	}

	tree, err := rebuildMetadata(clip, offsets, sizes)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	metaOffset := layout.Cursor()
	pointer, err := braw.Pointer{Layout: braw.LayoutMdat64, Offset: metaOffset}.Marshal()
	if err != nil {
		return nil, err
	}
	copy(header, pointer)

	meta, err := atom.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	layout.Add(meta)

	return &Plan{
		Selected:   selected,
		Chunks:     layout.Chunks(),
		Tree:       tree,
		MetaOffset: metaOffset,
		Size:       layout.Size(),
	}, nil
}

// timecodeChunk returns the source timecode sample after checking
// the track stores a single 4 byte chunk at 0x1000.
func timecodeChunk(clip *braw.Clip) ([]byte, error) {
	stsz, co64, err := braw.SampleTables(clip.Tree, clip.Tracks.Timecode)
	if err != nil {
		return nil, err
	}
	if size := stsz.Header().Uint("sample_size"); size != TimecodeSize {
		return nil, errkind.Consistencyf("unexpected timecode sample size %d", size)
	}
	if co64.Len() != 1 {
		return nil, errkind.Consistencyf("unexpected number of timecode chunks %d", co64.Len())
	}
	chunk, err := co64.Record(0)
	if err != nil {
		return nil, err
	}
	if offset := chunk.Uint("offset"); offset != TimecodeOffset {
		return nil, errkind.Consistencyf("unexpected timecode chunk offset %#x", offset)
	}
	return clip.Range(TimecodeOffset, TimecodeSize)
}

func rebuildMetadata(clip *braw.Clip, offsets, sizes []uint64) (*atom.Container, error) {
	tree := clip.Tree.Clone().(*atom.Container)
	n := uint64(len(offsets))

	video, err := tree.Container(braw.TrackPath(clip.Tracks.Video))
	if err != nil {
		return nil, err
	}
	timecode, err := tree.Container(braw.TrackPath(clip.Tracks.Timecode))
	if err != nil {
		return nil, err
	}
	if clip.Tracks.HasAudio() {
		audio, err := tree.Container(braw.TrackPath(clip.Tracks.Audio))
		if err != nil {
			return nil, err
		}
		tree.Remove(audio)
	}

	mvhd, err := tree.Schema(atom.PathOf(atom.Mvhd))
	if err != nil {
		return nil, err
	}
	mvhd.Update("duration", n)

	for _, trak := range []*atom.Container{video, timecode} {
		if err := setTrackDuration(trak, n); err != nil {
			return nil, err
		}
	}

	if err := setTimeToSample(video, n, 1); err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	if err := setTimeToSample(timecode, 1, n); err != nil {
		return nil, fmt.Errorf("timecode: %w", err)
	}

	stbl := braw.StblPath
	stsz, err := video.Schema(stbl.Then(atom.Stsz))
	if err != nil {
		return nil, err
	}
	co64, err := video.Schema(stbl.Then(atom.Co64))
	if err != nil {
		return nil, err
	}
	sizeRecords := make([]schema.Record, n)
	offsetRecords := make([]schema.Record, n)
	for i := range offsets {
		sizeRecords[i] = stsz.NewRecord().With("size", sizes[i])
		offsetRecords[i] = co64.NewRecord().With("offset", offsets[i])
	}
	stsz.Update("sample_size", 0)
	if err := stsz.SetRecords(sizeRecords); err != nil {
		return nil, err
	}
	if err := co64.SetRecords(offsetRecords); err != nil {
		return nil, err
	}

	return tree, nil
}

// setTrackDuration sets the track header, first edit and media header durations.
func setTrackDuration(trak *atom.Container, n uint64) error {
	tkhd, err := trak.Schema(atom.PathOf(atom.Tkhd))
	if err != nil {
		return err
	}
	tkhd.Update("duration", n)

	elst, err := trak.Schema(atom.PathOf(atom.Edts, atom.Elst))
	if err != nil {
		return err
	}
	edit, err := elst.Record(0)
	if err != nil {
		return err
	}
	if err := elst.SetRecord(0, edit.With("track_duration", n)); err != nil {
		return err
	}

	mdhd, err := trak.Schema(atom.PathOf(atom.Mdia, atom.Mdhd))
	if err != nil {
		return err
	}
	mdhd.Update("duration", n)
	return nil
}

func setTimeToSample(trak *atom.Container, count, duration uint64) error {
	stts, err := trak.Schema(braw.StblPath.Then(atom.Stts))
	if err != nil {
		return err
	}
	entry := stts.NewRecord().
		With("sample_count", count).
		With("sample_duration", duration)
	return stts.SetRecords([]schema.Record{entry})
}
