// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"brawtl/pkg/errkind"
)

// ErrDestinationExists the destination path already exists.
var ErrDestinationExists = fmt.Errorf("destination: %w", fs.ErrExist)

// CheckDestination returns an io error if path exists.
func CheckDestination(path string) error {
	_, err := os.Lstat(path)
	if err == nil {
		return errkind.IO("refusing to overwrite "+path, ErrDestinationExists)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return errkind.IO("stat destination", err)
	}
	return nil
}

// Write writes chunks to a new file at path. An existing file is
// never touched. The file is removed if a write fails after it was created.
func Write(path string, chunks []Chunk) (err error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errkind.IO("refusing to overwrite "+path, ErrDestinationExists)
		}
		return errkind.IO("create destination", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(path)
		}
	}()

	for _, chunk := range chunks {
		if _, err := file.WriteAt(chunk.Data, int64(chunk.Offset)); err != nil {
			return errkind.IO(fmt.Sprintf("write chunk at %#x", chunk.Offset), err)
		}
	}
	if err := file.Sync(); err != nil {
		return errkind.IO("sync destination", err)
	}
	if err := file.Close(); err != nil {
		return errkind.IO("close destination", err)
	}
	return nil
}
