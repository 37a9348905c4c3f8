// SPDX-License-Identifier: GPL-2.0-or-later

package system

import (
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/require"
)

func mockDisk(free uint64, err error) diskFunc {
	return func(string) (*disk.UsageStat, error) {
		if err != nil {
			return nil, err
		}
		return &disk.UsageStat{Free: free, Total: 4 * free, UsedPercent: 75}, nil
	}
}

func TestDiskUsage(t *testing.T) {
	s := &System{disk: mockDisk(uint64(2*gigabyte), nil)}
	usage, err := s.DiskUsage("/")
	require.NoError(t, err)
	require.Equal(t, DiskUsage{
		Free:      2000000000,
		Total:     8000000000,
		Percent:   75,
		Formatted: "2.00GB",
	}, usage)
}

func TestCheckFree(t *testing.T) {
	s := &System{disk: mockDisk(1000, nil)}

	require.NoError(t, s.CheckFree("/out/a.braw", 900, 100))
	require.ErrorIs(t, s.CheckFree("/out/a.braw", 901, 100), ErrInsufficientSpace)

	errMock := errors.New("mock")
	s = &System{disk: mockDisk(0, errMock)}
	require.ErrorIs(t, s.CheckFree("/out/a.braw", 1, 0), errMock)
}

func TestRealDisk(t *testing.T) {
	usage, err := New().DiskUsage(t.TempDir())
	require.NoError(t, err)
	require.NotZero(t, usage.Total)
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n        float64
		expected string
	}{
		{10 * megabyte, "10MB"},
		{2 * gigabyte, "2.00GB"},
		{20 * gigabyte, "20.0GB"},
		{200 * gigabyte, "200GB"},
		{2 * terabyte, "2.00TB"},
		{20 * terabyte, "20.0TB"},
		{200 * terabyte, "200TB"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.expected, FormatBytes(tc.n))
	}
}
