// Package frameindex maps 1-based sample numbers to byte positions inside a
// stream of variable-length compressed samples.
//
// Offsets are stored uniformly as int64, so streams larger than 2 GiB need
// no secondary table. The index grows in fixed blocks of BlockSize entries
// and never shrinks. A writer appends one offset per sample and a final
// end-of-data offset on close, which makes Length well defined for the last
// sample.
package frameindex

import (
	"fmt"

	"mediakit/internal/mediaerr"
)

// BlockSize is the number of entries added whenever the index is full.
const BlockSize = 1024

// Index is a growable offset table. The zero value is an empty index; a nil
// *Index reports ErrNoFrameIndex from every lookup.
type Index struct {
	offsets []int64
}

// New returns an empty index with one block of capacity.
func New() *Index {
	return &Index{offsets: make([]int64, 0, BlockSize)}
}

// FromOffsets builds an index from previously persisted offsets.
func FromOffsets(offsets []int64) *Index {
	x := &Index{offsets: make([]int64, len(offsets), blocksFor(len(offsets)))}
	copy(x.offsets, offsets)
	return x
}

func blocksFor(n int) int {
	if n == 0 {
		return BlockSize
	}
	return ((n + BlockSize - 1) / BlockSize) * BlockSize
}

// Append records offset and returns its 1-based entry number.
func (x *Index) Append(offset int64) int64 {
	if len(x.offsets) == cap(x.offsets) {
		grown := make([]int64, len(x.offsets), cap(x.offsets)+BlockSize)
		copy(grown, x.offsets)
		x.offsets = grown
	}
	x.offsets = append(x.offsets, offset)
	return int64(len(x.offsets))
}

// Len returns the number of entries, including a trailing end-of-data
// offset if one was appended.
func (x *Index) Len() int64 {
	if x == nil {
		return 0
	}
	return int64(len(x.offsets))
}

// Cap returns the current capacity of the backing array.
func (x *Index) Cap() int {
	if x == nil {
		return 0
	}
	return cap(x.offsets)
}

// Populated reports whether any offset was ever recorded.
func (x *Index) Populated() bool {
	return x != nil && len(x.offsets) > 0
}

// Lookup returns the offset of sample n. Valid sample numbers are
// 1 <= n < Len(): the last entry terminates the data and is not a sample.
func (x *Index) Lookup(n int64) (int64, error) {
	if !x.Populated() {
		return 0, mediaerr.E(mediaerr.KindPosition, "frameindex.Lookup", mediaerr.ErrNoFrameIndex)
	}
	if n <= 0 || n >= int64(len(x.offsets)) {
		return 0, mediaerr.E(mediaerr.KindPosition, "frameindex.Lookup",
			fmt.Errorf("sample %d outside 1..%d: %w", n, len(x.offsets)-1, mediaerr.ErrBadFrameOffset))
	}
	return x.offsets[n-1], nil
}

// Length returns the byte length of sample n, offset[n+1] - offset[n].
func (x *Index) Length(n int64) (int64, error) {
	start, err := x.Lookup(n)
	if err != nil {
		return 0, err
	}
	end := x.offsets[n]
	if end < start {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "frameindex.Length",
			"sample %d ends at %d before it starts at %d", n, end, start)
	}
	return end - start, nil
}

// Span returns the offset of sample first and the total length of count
// consecutive samples starting there.
func (x *Index) Span(first, count int64) (int64, int64, error) {
	start, err := x.Lookup(first)
	if err != nil {
		return 0, 0, err
	}
	last := first + count - 1
	if _, err := x.Lookup(last); err != nil {
		return 0, 0, err
	}
	end := x.offsets[last]
	if end < start {
		return 0, 0, mediaerr.Errorf(mediaerr.KindFormat, "frameindex.Span",
			"samples %d..%d end at %d before %d", first, last, end, start)
	}
	return start, end - start, nil
}

// Offsets returns a copy of all entries.
func (x *Index) Offsets() []int64 {
	if x == nil {
		return nil
	}
	out := make([]int64, len(x.offsets))
	copy(out, x.offsets)
	return out
}

// Last returns the most recently appended offset.
func (x *Index) Last() (int64, bool) {
	if !x.Populated() {
		return 0, false
	}
	return x.offsets[len(x.offsets)-1], true
}

// Truncate drops entries beyond n. It is used when a writer discards a
// partially appended sample.
func (x *Index) Truncate(n int64) {
	if x == nil || n < 0 || n >= int64(len(x.offsets)) {
		return
	}
	x.offsets = x.offsets[:n]
}
