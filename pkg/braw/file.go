// SPDX-License-Identifier: GPL-2.0-or-later

package braw

import (
	"fmt"
	"os"

	"brawtl/pkg/errkind"

	"golang.org/x/sys/unix"
)

// File read-only memory mapped file.
type File struct {
	path   string
	data   []byte
	mapped bool
}

// Open maps the file at path. Caller must call Close when done,
// after which slices returned by Bytes are invalid.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.IO("open source", err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errkind.IO("stat source", err)
	}
	size := info.Size()
	if size == 0 {
		return &File{path: path}, nil
	}
	if int64(int(size)) != size {
		return nil, errkind.IO("map source", fmt.Errorf("%d bytes is not addressable", size))
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errkind.IO("map source", err)
	}
	return &File{path: path, data: data, mapped: true}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Bytes returns the mapped bytes.
func (f *File) Bytes() []byte { return f.data }

// Parse parses the mapped bytes.
func (f *File) Parse() (*Clip, error) {
	return Parse(f.data)
}

// Close unmaps the file.
func (f *File) Close() error {
	if !f.mapped {
		return nil
	}
	f.mapped = false
	data := f.data
	f.data = nil
	if err := unix.Munmap(data); err != nil {
		return errkind.IO("unmap source", err)
	}
	return nil
}
