// SPDX-License-Identifier: GPL-2.0-or-later

package timelapse

import "brawtl/pkg/errkind"

// PageSize alignment of placed chunks.
const PageSize = 4096

// Align rounds n up to the next page boundary.
func Align(n uint64) uint64 {
	return (n + PageSize - 1) &^ (PageSize - 1)
}

// Chunk bytes placed at an offset of the output file.
type Chunk struct {
	Offset uint64
	Data   []byte
}

// End returns the offset after the chunk.
func (c Chunk) End() uint64 { return c.Offset + uint64(len(c.Data)) }

// Layout places chunks in ascending, non overlapping, page aligned order.
type Layout struct {
	chunks []Chunk
	cursor uint64
}

// Add places data at the cursor and returns its offset.
func (l *Layout) Add(data []byte) uint64 {
	offset := l.cursor
	l.place(offset, data)
	return offset
}

// AddAt places data at a fixed offset, which must not
// be below the cursor.
func (l *Layout) AddAt(data []byte, offset uint64) error {
	if offset < l.cursor {
		return errkind.Consistencyf(
			"chunk at %#x overlaps already placed data ending at %#x", offset, l.cursor)
	}
	l.place(offset, data)
	return nil
}

func (l *Layout) place(offset uint64, data []byte) {
	l.chunks = append(l.chunks, Chunk{Offset: offset, Data: data})
	l.cursor = Align(offset + uint64(len(data)))
}

// Cursor returns the offset the next chunk will be placed at.
func (l *Layout) Cursor() uint64 { return l.cursor }

// Chunks returns the placed chunks in placement order.
func (l *Layout) Chunks() []Chunk {
	chunks := make([]Chunk, len(l.chunks))
	copy(chunks, l.chunks)
	return chunks
}

// Size returns the end of the last chunk.
func (l *Layout) Size() uint64 {
	if len(l.chunks) == 0 {
		return 0
	}
	return l.chunks[len(l.chunks)-1].End()
}
