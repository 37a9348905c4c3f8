// SPDX-License-Identifier: GPL-2.0-or-later

package braw

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"brawtl/pkg/atom"
	"brawtl/pkg/braw/brawtest"
	"brawtl/pkg/errkind"

	"github.com/stretchr/testify/require"
)

func TestReadPointer(t *testing.T) {
	cases := map[string]struct {
		input    []byte
		expected Pointer
	}{
		"wide": {
			input: []byte{
				0, 0, 0, 8, 'w', 'i', 'd', 'e',
				0, 0, 0x10, 0x00, 'm', 'd', 'a', 't',
			},
			expected: Pointer{Layout: LayoutWide, Offset: 0x1008},
		},
		"mdat64": {
			input: []byte{
				0, 0, 0, 1, 'm', 'd', 'a', 't',
				0, 0, 0, 1, 0, 0, 0x20, 0x00,
			},
			expected: Pointer{Layout: LayoutMdat64, Offset: 0x100002000},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			actual, err := ReadPointer(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)

			bin, err := actual.Marshal()
			require.NoError(t, err)
			require.Equal(t, tc.input, bin)
		})
	}
}

func TestReadPointerErrors(t *testing.T) {
	cases := map[string][]byte{
		"short":      {0, 0, 0, 1, 'm', 'd', 'a', 't'},
		"zeros":      make([]byte, 16),
		"wideNoMdat": {0, 0, 0, 8, 'w', 'i', 'd', 'e', 0, 0, 0, 0, 'f', 'r', 'e', 'e'},
		"mdatSize2":  {0, 0, 0, 2, 'm', 'd', 'a', 't', 0, 0, 0, 0, 0, 0, 0, 0},
		"ftyp":       {0, 0, 0, 0x14, 'f', 't', 'y', 'p', 'q', 't', ' ', ' ', 0, 0, 0, 0},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadPointer(input)
			require.ErrorIs(t, err, errkind.ErrFormat)
		})
	}
}

func TestPointerMarshalErrors(t *testing.T) {
	_, err := Pointer{Layout: LayoutWide, Offset: 4}.Marshal()
	require.ErrorIs(t, err, errkind.ErrConsistency)

	_, err = Pointer{Layout: LayoutWide, Offset: 1 << 33}.Marshal()
	require.ErrorIs(t, err, errkind.ErrConsistency)

	_, err = Pointer{}.Marshal()
	require.ErrorIs(t, err, errkind.ErrConsistency)
}

func TestParse(t *testing.T) {
	for _, wide := range []bool{false, true} {
		opts := brawtest.DefaultOptions(brawtest.Frames(10))
		opts.Wide = wide
		src := brawtest.Build(opts)

		clip, err := Parse(src.Bytes)
		require.NoError(t, err)

		require.Equal(t, src.MetaOffset, clip.Pointer.Offset)
		require.Equal(t, wide, clip.Pointer.Layout == LayoutWide)
		require.Equal(t, Tracks{Video: 0, Audio: 1, Timecode: 2}, clip.Tracks)
		require.True(t, clip.Tracks.HasAudio())

		meta, err := atom.Marshal(src.Tree)
		require.NoError(t, err)
		require.Equal(t, meta, clip.Meta)

		require.Len(t, clip.Frames, 10)
		for i, f := range clip.Frames {
			require.Equal(t, src.FrameOffsets[i], f.Offset)
			require.Equal(t, uint64(len(opts.Frames[i])), f.Size)
			require.Equal(t, opts.Frames[i], clip.FrameData(i))
		}

		tc, err := clip.Range(brawtest.TimecodeOffset, 4)
		require.NoError(t, err)
		require.Equal(t, opts.Timecode, tc)

		_, err = clip.Range(uint64(len(src.Bytes))-2, 4)
		require.ErrorIs(t, err, errkind.ErrConsistency)

		trak, err := clip.Track(clip.Tracks.Timecode)
		require.NoError(t, err)
		require.True(t, trak.Has(MinfPath.Then(atom.Gmhd)))
	}
}

func TestParseUnknownPointer(t *testing.T) {
	src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(2)))
	copy(src.Bytes[0:8], []byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'})

	_, err := Parse(src.Bytes)
	require.ErrorIs(t, err, errkind.ErrFormat)
	require.Contains(t, err.Error(), "unknown metadata pointer format")
}

func TestParseMetadataErrors(t *testing.T) {
	t.Run("beyondEOF", func(t *testing.T) {
		src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(2)))
		_, err := Parse(src.Bytes[:src.MetaOffset])
		require.ErrorIs(t, err, errkind.ErrFormat)
	})
	t.Run("truncated", func(t *testing.T) {
		src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(2)))
		_, err := Parse(src.Bytes[:len(src.Bytes)-1])
		require.ErrorIs(t, err, errkind.ErrFormat)
	})
	t.Run("notMoov", func(t *testing.T) {
		src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(2)))
		copy(src.Bytes[src.MetaOffset+4:], "free")
		_, err := Parse(src.Bytes)
		require.ErrorIs(t, err, errkind.ErrFormat)
	})
}

func TestTrackCounts(t *testing.T) {
	cases := map[string]struct {
		video, audio, timecode, other int
		err                           error
	}{
		"noVideo":       {0, 1, 1, 0, errkind.ErrConsistency},
		"twoVideo":      {2, 1, 1, 0, errkind.ErrConsistency},
		"noTimecode":    {1, 1, 0, 0, errkind.ErrConsistency},
		"twoTimecode":   {1, 1, 2, 0, errkind.ErrConsistency},
		"twoAudio":      {1, 2, 1, 0, errkind.ErrConsistency},
		"noAudio":       {1, 0, 1, 0, nil},
		"oneAudio":      {1, 1, 1, 0, nil},
		"unclassified":  {1, 0, 1, 2, nil},
		"onlyUnrelated": {0, 0, 0, 1, errkind.ErrConsistency},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			opts := brawtest.DefaultOptions(brawtest.Frames(3))
			opts.VideoTracks = tc.video
			opts.AudioTracks = tc.audio
			opts.TimecodeTracks = tc.timecode
			opts.UnclassifiedTracks = tc.other

			clip, err := Parse(brawtest.Build(opts).Bytes)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Len(t, clip.Frames, 3)
			require.Equal(t, tc.audio == 1, clip.Tracks.HasAudio())
		})
	}
}

func TestTrackIndexes(t *testing.T) {
	opts := brawtest.DefaultOptions(brawtest.Frames(1))
	opts.AudioTracks = 0
	clip, err := Parse(brawtest.Build(opts).Bytes)
	require.NoError(t, err)
	require.Equal(t, Tracks{Video: 0, Audio: -1, Timecode: 1}, clip.Tracks)
}

func TestFrameTableMismatch(t *testing.T) {
	opts := brawtest.DefaultOptions(brawtest.Frames(4))
	opts.ExtraVideoOffset = 0x2000

	_, err := Parse(brawtest.Build(opts).Bytes)
	require.ErrorIs(t, err, errkind.ErrConsistency)
	require.Contains(t, err.Error(), "inconsistent number of entries")
}

func TestFrameBeyondEOF(t *testing.T) {
	src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(2)))

	_, co64, err := SampleTables(src.Tree, 0)
	require.NoError(t, err)
	require.NoError(t, co64.SetRecord(1, co64.NewRecord().With("offset", 1<<40)))

	meta, err := atom.Marshal(src.Tree)
	require.NoError(t, err)
	copy(src.Bytes[src.MetaOffset:], meta)

	_, err = Parse(src.Bytes)
	require.ErrorIs(t, err, errkind.ErrConsistency)
}

func TestOpen(t *testing.T) {
	src := brawtest.Build(brawtest.DefaultOptions(brawtest.Frames(5)))
	path := filepath.Join(t.TempDir(), "A001.braw")
	require.NoError(t, os.WriteFile(path, src.Bytes, 0o600))

	file, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, path, file.Path())
	require.Equal(t, src.Bytes, file.Bytes())

	clip, err := file.Parse()
	require.NoError(t, err)
	require.Len(t, clip.Frames, 5)

	require.NoError(t, file.Close())
	require.NoError(t, file.Close())
	require.Nil(t, file.Bytes())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.braw"))
	require.ErrorIs(t, err, errkind.ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)

	empty := filepath.Join(t.TempDir(), "empty.braw")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	file, err := Open(empty)
	require.NoError(t, err)
	defer file.Close()

	_, err = file.Parse()
	require.ErrorIs(t, err, errkind.ErrFormat)
}
