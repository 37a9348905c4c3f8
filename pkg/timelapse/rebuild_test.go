// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import (
	"testing"

	"brawtl/pkg/atom"
	"brawtl/pkg/braw"
	"brawtl/pkg/braw/brawtest"
	"brawtl/pkg/errkind"

	"github.com/stretchr/testify/require"
)

func parseClip(t *testing.T, opts brawtest.Options) *braw.Clip {
	t.Helper()
	clip, err := braw.Parse(brawtest.Build(opts).Bytes)
	require.NoError(t, err)
	return clip
}

func flatten(plan *Plan) []byte {
	out := make([]byte, plan.Size)
	for _, chunk := range plan.Chunks {
		copy(out[chunk.Offset:], chunk.Data)
	}
	return out
}

func rebuilt(t *testing.T, src *braw.Clip, opts Options) (*Plan, *braw.Clip) {
	t.Helper()
	plan, err := Rebuild(src, opts)
	require.NoError(t, err)
	out, err := braw.Parse(flatten(plan))
	require.NoError(t, err)
	return plan, out
}

func schemaAt(t *testing.T, tree *atom.Container, p atom.Path) *atom.Schema {
	t.Helper()
	s, err := tree.Schema(p)
	require.NoError(t, err)
	return s
}

func record(t *testing.T, s *atom.Schema, i int) map[string]uint64 {
	t.Helper()
	r, err := s.Record(i)
	require.NoError(t, err)
	values := make(map[string]uint64)
	for _, field := range r.Layout().Fields() {
		values[field.Name] = r.Uint(field.Name)
	}
	return values
}

func durations(t *testing.T, clip *braw.Clip) []uint64 {
	t.Helper()
	tree := clip.Tree
	values := []uint64{schemaAt(t, tree, atom.PathOf(atom.Mvhd)).Header().Uint("duration")}
	for _, i := range []int{clip.Tracks.Video, clip.Tracks.Timecode} {
		trak := braw.TrackPath(i)
		values = append(values,
			schemaAt(t, tree, trak.Then(atom.Tkhd)).Header().Uint("duration"),
			record(t, schemaAt(t, tree, trak.Then(atom.Edts, atom.Elst)), 0)["track_duration"],
			schemaAt(t, tree, trak.Then(atom.Mdia, atom.Mdhd)).Header().Uint("duration"),
		)
	}
	return values
}

func TestRebuild(t *testing.T) {
	src := parseClip(t, brawtest.DefaultOptions(brawtest.Frames(10)))
	plan, out := rebuilt(t, src, Options{Stride: 2, Start: 0})

	require.Equal(t, []int{0, 2, 4, 6, 8}, plan.Selected)
	require.Equal(t, braw.Tracks{Video: 0, Audio: -1, Timecode: 1}, out.Tracks)

	video := braw.TrackPath(out.Tracks.Video).Join(braw.StblPath)
	stts := schemaAt(t, out.Tree, video.Then(atom.Stts))
	require.Equal(t, 1, stts.Len())
	require.Equal(t, map[string]uint64{"sample_count": 5, "sample_duration": 1}, record(t, stts, 0))

	timecode := braw.TrackPath(out.Tracks.Timecode).Join(braw.StblPath)
	stts = schemaAt(t, out.Tree, timecode.Then(atom.Stts))
	require.Equal(t, 1, stts.Len())
	require.Equal(t, map[string]uint64{"sample_count": 1, "sample_duration": 5}, record(t, stts, 0))

	stsz := schemaAt(t, out.Tree, video.Then(atom.Stsz))
	require.Equal(t, uint64(0), stsz.Header().Uint("sample_size"))
	require.Equal(t, uint64(5), stsz.Header().Uint("num_entries"))
	co64 := schemaAt(t, out.Tree, video.Then(atom.Co64))
	require.Equal(t, uint64(5), co64.Header().Uint("num_entries"))

	require.Len(t, out.Frames, 5)
	for i, frame := range plan.Selected {
		require.Equal(t, src.FrameData(frame), out.FrameData(i))
	}

	require.Equal(t, braw.Pointer{Layout: braw.LayoutMdat64, Offset: plan.MetaOffset}, out.Pointer)
	require.Equal(t, plan.Tree.Size(), len(out.Meta))
}

func TestRebuildDurations(t *testing.T) {
	src := parseClip(t, brawtest.DefaultOptions(brawtest.Frames(13)))
	cases := []struct {
		opts     Options
		expected uint64
	}{
		{Options{Stride: 1, Start: 0}, 13},
		{Options{Stride: 3, Start: 0}, 5},
		{Options{Stride: 3, Start: 2}, 4},
		{Options{Stride: 20, Start: 12}, 1},
	}
	for _, tc := range cases {
		_, out := rebuilt(t, src, tc.opts)
		for _, d := range durations(t, out) {
			require.Equal(t, tc.expected, d, "%+v", tc.opts)
		}
	}
}

func TestRebuildChunkPlacement(t *testing.T) {
	src := parseClip(t, brawtest.DefaultOptions(brawtest.Frames(7)))
	plan, err := Rebuild(src, Options{Stride: 2, Start: 1})
	require.NoError(t, err)

	chunks := plan.Chunks
	require.Len(t, chunks, 2+3+1)
	require.Equal(t, uint64(0), chunks[0].Offset)
	require.Len(t, chunks[0].Data, braw.PointerSize)
	require.Equal(t, uint64(TimecodeOffset), chunks[1].Offset)
	require.Equal(t, []byte{1, 2, 3, 4}, chunks[1].Data)
	for i := 2; i < len(chunks); i++ {
		require.Zero(t, chunks[i].Offset%PageSize)
		require.GreaterOrEqual(t, chunks[i].Offset, chunks[i-1].End())
	}
	require.Equal(t, plan.MetaOffset, chunks[len(chunks)-1].Offset)
	require.Equal(t, plan.Size, chunks[len(chunks)-1].End())
}

func TestRebuildLeavesSourceUnchanged(t *testing.T) {
	src := parseClip(t, brawtest.DefaultOptions(brawtest.Frames(6)))
	before, err := atom.Marshal(src.Tree)
	require.NoError(t, err)

	plan1, err := Rebuild(src, Options{Stride: 2})
	require.NoError(t, err)
	plan2, err := Rebuild(src, Options{Stride: 2})
	require.NoError(t, err)

	after, err := atom.Marshal(src.Tree)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, src.Meta, before)
	require.Equal(t, flatten(plan1), flatten(plan2))
	require.Equal(t, braw.Tracks{Video: 0, Audio: 1, Timecode: 2}, src.Tracks)
}

func TestRebuildSourceVariants(t *testing.T) {
	t.Run("wide", func(t *testing.T) {
		opts := brawtest.DefaultOptions(brawtest.Frames(4))
		opts.Wide = true
		src := parseClip(t, opts)
		require.Equal(t, braw.LayoutWide, src.Pointer.Layout)

		_, out := rebuilt(t, src, Options{Stride: 2})
		require.Equal(t, braw.LayoutMdat64, out.Pointer.Layout)
	})
	t.Run("noAudio", func(t *testing.T) {
		opts := brawtest.DefaultOptions(brawtest.Frames(4))
		opts.AudioTracks = 0
		_, out := rebuilt(t, parseClip(t, opts), Options{Stride: 1})
		require.Len(t, out.Frames, 4)
		require.False(t, out.Tracks.HasAudio())
	})
	t.Run("unclassifiedTrack", func(t *testing.T) {
		opts := brawtest.DefaultOptions(brawtest.Frames(4))
		opts.UnclassifiedTracks = 1
		_, out := rebuilt(t, parseClip(t, opts), Options{Stride: 3})
		require.Len(t, out.Tree.Matches(atom.Trak), 3)
		require.Len(t, out.Frames, 2)
	})
}

func TestRebuildTimecodeErrors(t *testing.T) {
	cases := map[string]func(*brawtest.Options){
		"sampleSize": func(o *brawtest.Options) { o.TimecodeSize = 8 },
		"twoChunks":  func(o *brawtest.Options) { o.TimecodeChunks = []uint64{0x1000, 0x1004} },
		"noChunks":   func(o *brawtest.Options) { o.TimecodeChunks = nil },
		"offset":     func(o *brawtest.Options) { o.TimecodeChunks = []uint64{0x1800} },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			opts := brawtest.DefaultOptions(brawtest.Frames(4))
			modify(&opts)
			_, err := Rebuild(parseClip(t, opts), Options{Stride: 1})
			require.ErrorIs(t, err, errkind.ErrConsistency)
		})
	}
}

func TestRebuildErrors(t *testing.T) {
	src := parseClip(t, brawtest.DefaultOptions(brawtest.Frames(3)))

	_, err := Rebuild(src, Options{Stride: 0})
	require.ErrorIs(t, err, errkind.ErrConsistency)

	_, err = Rebuild(src, Options{Stride: 5, Start: 4})
	require.ErrorIs(t, err, errkind.ErrConsistency)
}
