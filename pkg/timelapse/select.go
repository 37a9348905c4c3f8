// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import "brawtl/pkg/errkind"

// Select returns the indexes of every stride'th frame of n frames,
// beginning at start, in ascending order.
func Select(n, stride, start int) ([]int, error) {
	if stride < 1 {
		return nil, errkind.Consistencyf("stride must be at least 1, got %d", stride)
	}
	if start < 0 || start >= stride {
		return nil, errkind.Consistencyf("start must be in [0, %d), got %d", stride, start)
	}
	if start >= n {
		return []int{}, nil
	}
	selected := make([]int, 0, (n-start+stride-1)/stride)
	for i := start; i < n; i += stride {
		selected = append(selected, i)
	}
	return selected, nil
}
