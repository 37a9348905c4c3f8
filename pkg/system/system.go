// SPDX-License-Identifier: GPL-2.0-or-later

package system

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskUsage of the filesystem holding a path, in bytes.
type DiskUsage struct {
	Free      uint64
	Total     uint64
	Percent   int
	Formatted string
}

type diskFunc func(string) (*disk.UsageStat, error)

// System queries the host.
type System struct {
	disk diskFunc
}

// New returns a new System.
func New() *System {
	return &System{disk: disk.Usage}
}

// DiskUsage returns usage of the filesystem that holds dir.
func (s *System) DiskUsage(dir string) (DiskUsage, error) {
	stat, err := s.disk(dir)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk usage: %v: %w", dir, err)
	}
	return DiskUsage{
		Free:      stat.Free,
		Total:     stat.Total,
		Percent:   int(stat.UsedPercent),
		Formatted: FormatBytes(float64(stat.Free)),
	}, nil
}

// ErrInsufficientSpace not enough free disk space.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// CheckFree returns ErrInsufficientSpace if the filesystem that will
// hold path has less than need+margin bytes free.
func (s *System) CheckFree(path string, need, margin uint64) error {
	usage, err := s.DiskUsage(filepath.Dir(path))
	if err != nil {
		return err
	}
	if usage.Free < need+margin {
		return fmt.Errorf("%w: need %v, %v free",
			ErrInsufficientSpace, FormatBytes(float64(need+margin)), usage.Formatted)
	}
	return nil
}

const (
	kilobyte float64 = 1000
	megabyte         = kilobyte * 1000
	gigabyte         = megabyte * 1000
	terabyte         = gigabyte * 1000
)

// FormatBytes formats a byte count for humans.
func FormatBytes(n float64) string {
	switch {
	case n < 1000*megabyte:
		return fmt.Sprintf("%.0fMB", n/megabyte)
	case n < 10*gigabyte:
		return fmt.Sprintf("%.2fGB", n/gigabyte)
	case n < 100*gigabyte:
		return fmt.Sprintf("%.1fGB", n/gigabyte)
	case n < 1000*gigabyte:
		return fmt.Sprintf("%.0fGB", n/gigabyte)
	case n < 10*terabyte:
		return fmt.Sprintf("%.2fTB", n/terabyte)
	case n < 100*terabyte:
		return fmt.Sprintf("%.1fTB", n/terabyte)
	default:
		return fmt.Sprintf("%.0fTB", n/terabyte)
	}
}
