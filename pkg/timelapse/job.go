// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"brawtl/pkg/braw"
	"brawtl/pkg/errkind"
	"brawtl/pkg/log"
)

// FreeSpaceFunc returns an error if the filesystem that
// will hold path has less than need+margin bytes free.
type FreeSpaceFunc func(path string, need, margin uint64) error

// Job rebuilds one source clip into one destination clip.
type Job struct {
	ID          string
	Source      string
	Destination string
	Options     Options

	// Verify rereads the destination after writing.
	Verify bool

	// CheckFree is called before writing if set.
	CheckFree    FreeSpaceFunc
	MinFreeBytes uint64

	Log *log.Logger
}

// NewJobID returns the job id of a run on source at t.
func NewJobID(source string, t time.Time) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%v-%d", base, t.Unix())
}

func (j *Job) event(e *log.Event) *log.Event {
	return e.Src("timelapse").Job(j.ID)
}

// Run executes the job. The destination is never overwritten
// and is removed again if writing fails. The returned plan has no chunks.
func (j *Job) Run() (*Plan, error) {
	j.event(j.Log.Info()).Msgf("source %v, destination %v, stride %d, start %d",
		j.Source, j.Destination, j.Options.Stride, j.Options.Start)

	plan, err := j.run()
	if err != nil {
		j.event(j.Log.Error()).Msgf("failed: %v", err)
		return nil, err
	}

	j.event(j.Log.Info()).Msgf("wrote %d frames, %d bytes", len(plan.Selected), plan.Size)
	return plan, nil
}

func (j *Job) run() (*Plan, error) {
	if err := CheckDestination(j.Destination); err != nil {
		return nil, err
	}

	file, err := braw.Open(j.Source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	clip, err := file.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse %v: %w", j.Source, err)
	}
	j.event(j.Log.Debug()).Msgf("%d frames, %v pointer, tracks %+v",
		len(clip.Frames), clip.Pointer.Layout, clip.Tracks)
	if clip.Tracks.HasAudio() {
		j.event(j.Log.Debug()).Msgf("dropping audio track %d", clip.Tracks.Audio)
	}

	plan, err := Rebuild(clip, j.Options)
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	j.event(j.Log.Debug()).Msgf("selected %d frames, metadata at %#x", len(plan.Selected), plan.MetaOffset)

	if j.CheckFree != nil {
		if err := j.CheckFree(j.Destination, plan.Size, j.MinFreeBytes); err != nil {
			return nil, errkind.IO("preflight", err)
		}
	}

	if err := Write(j.Destination, plan.Chunks); err != nil {
		return nil, err
	}

	if j.Verify {
		if err := Verify(j.Destination, clip, plan); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		j.event(j.Log.Debug()).Msgf("verified %v", j.Destination)
	}

	// Frame chunks borrow the source mapping, which is closed on return.
	plan.Chunks = nil
	return plan, nil
}
