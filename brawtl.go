// SPDX-License-Identifier: GPL-2.0-or-later

// Package brawtl builds timelapse clips from BRAW clips.
package brawtl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"brawtl/pkg/atom"
	"brawtl/pkg/braw"
	"brawtl/pkg/config"
	"brawtl/pkg/log"
	"brawtl/pkg/system"
	"brawtl/pkg/timelapse"
)

const usage = `build a timelapse from every n'th frame of a BRAW clip
usage: brawtl [flags] source destination stride [start]
       brawtl -dump source
`

// ErrUsage invalid command line.
var ErrUsage = errors.New("invalid arguments")

type args struct {
	configPath string
	dump       bool
	verify     *bool

	source      string
	destination string
	stride      *int
	start       *int
}

func parseArgs(argv []string, stderr io.Writer) (*args, error) {
	fs := flag.NewFlagSet("brawtl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	var a args
	fs.StringVar(&a.configPath, "config", "", "path to config.yaml")
	fs.BoolVar(&a.dump, "dump", false, "print the atom tree of source and exit")
	verify := fs.Bool("verify", true, "reread the destination after writing")
	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "verify" {
			a.verify = verify
		}
	})

	pos := fs.Args()
	if a.dump {
		if len(pos) != 1 {
			return nil, fmt.Errorf("%w: -dump takes one source", ErrUsage)
		}
		a.source = pos[0]
		return &a, nil
	}
	if len(pos) < 3 || len(pos) > 4 {
		fs.Usage()
		return nil, fmt.Errorf("%w: expected 3 or 4 arguments, got %d", ErrUsage, len(pos))
	}
	a.source, a.destination = pos[0], pos[1]

	stride, err := strconv.Atoi(pos[2])
	if err != nil {
		return nil, fmt.Errorf("%w: stride: %v", ErrUsage, err)
	}
	a.stride = &stride
	if len(pos) == 4 {
		start, err := strconv.Atoi(pos[3])
		if err != nil {
			return nil, fmt.Errorf("%w: start: %v", ErrUsage, err)
		}
		a.start = &start
	}
	return &a, nil
}

// Run runs the command line argv, without the program name.
func Run(argv []string, stdout, stderr io.Writer) error {
	a, err := parseArgs(argv, stderr)
	if err != nil {
		return err
	}

	c, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if a.stride != nil {
		c.Stride = *a.stride
		c.Start = 0
	}
	if a.start != nil {
		c.Start = *a.start
	}
	if a.verify != nil {
		c.Verify = *a.verify
	}
	if err := c.Validate(); err != nil {
		return err
	}

	if a.dump {
		return dump(a.source, stdout)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	defer wg.Wait()
	defer cancel()

	logger := log.NewLogger()
	logger.LogToWriter(ctx, wg, stderr, c.Level())

	if c.LogDB != "" {
		logDB := log.NewDB(c.LogDB, wg)
		if err := logDB.Init(ctx); err != nil {
			return fmt.Errorf("could not initialize log database: %w", err)
		}
		logDB.SaveLogs(ctx, logger)
	}

	job := &timelapse.Job{
		ID:          timelapse.NewJobID(a.source, time.Now()),
		Source:      a.source,
		Destination: a.destination,
		Options: timelapse.Options{
			Stride: c.Stride,
			Start:  c.Start,
		},
		Verify:       c.Verify,
		CheckFree:    system.New().CheckFree,
		MinFreeBytes: c.MinFreeBytes,
		Log:          logger,
	}
	plan, err := job.Run()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%v: %d frames, %v\n",
		a.destination, len(plan.Selected), system.FormatBytes(float64(plan.Size)))
	return nil
}

func dump(path string, w io.Writer) error {
	file, err := braw.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	clip, err := file.Parse()
	if err != nil {
		return fmt.Errorf("parse %v: %w", path, err)
	}

	fmt.Fprintf(w, "pointer %v, metadata at %#x\n", clip.Pointer.Layout, clip.Pointer.Offset)
	fmt.Fprintf(w, "tracks video=%d audio=%d timecode=%d, %d frames\n",
		clip.Tracks.Video, clip.Tracks.Audio, clip.Tracks.Timecode, len(clip.Frames))
	return atom.Dump(w, clip.Tree)
}
