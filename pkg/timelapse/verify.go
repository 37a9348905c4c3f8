// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import (
	"bytes"
	"fmt"

	"brawtl/pkg/braw"
	"brawtl/pkg/errkind"

	"golang.org/x/crypto/blake2b"
)

// Verify reopens the written clip at path and checks it holds the
// planned frames of src, byte for byte.
func Verify(path string, src *braw.Clip, plan *Plan) error {
	file, err := braw.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	out, err := file.Parse()
	if err != nil {
		return fmt.Errorf("parse output: %w", err)
	}
	return verifyClip(out, src, plan)
}

func verifyClip(out *braw.Clip, src *braw.Clip, plan *Plan) error {
	if out.Pointer.Layout != braw.LayoutMdat64 {
		return errkind.Consistencyf("output uses the %v metadata pointer", out.Pointer.Layout)
	}
	if out.Pointer.Offset != plan.MetaOffset {
		return errkind.Consistencyf("output metadata at %#x, planned %#x",
			out.Pointer.Offset, plan.MetaOffset)
	}
	if out.Tracks.HasAudio() {
		return errkind.Consistencyf("output has an audio track")
	}
	if len(out.Frames) != len(plan.Selected) {
		return errkind.Consistencyf("output has %d frames, planned %d",
			len(out.Frames), len(plan.Selected))
	}

	for i, frame := range plan.Selected {
		want := blake2b.Sum256(src.FrameData(frame))
		got := blake2b.Sum256(out.FrameData(i))
		if want != got {
			return errkind.Consistencyf("output frame %d differs from source frame %d", i, frame)
		}
	}

	srcTimecode, err := src.Range(TimecodeOffset, TimecodeSize)
	if err != nil {
		return err
	}
	outTimecode, err := out.Range(TimecodeOffset, TimecodeSize)
	if err != nil {
		return err
	}
	if !bytes.Equal(srcTimecode, outTimecode) {
		return errkind.Consistencyf("output timecode differs from source")
	}
	return nil
}
