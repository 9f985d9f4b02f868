// Package chunk partitions block ranges into fixed-size work units for the
// extraction workers.
package chunk

import "fmt"

// Range is an inclusive block range.
type Range struct {
	Start uint64
	End   uint64
}

// Blocks returns the number of blocks covered by the range.
func (r Range) Blocks() uint64 {
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Validate reports whether the range is well formed.
func (r Range) Validate() error {
	if r.End < r.Start {
		return fmt.Errorf("invalid block range %d-%d: end before start", r.Start, r.End)
	}
	return nil
}

// Split partitions r into chunks of at most size blocks. The final chunk may
// be shorter. A size of 0 yields a single chunk covering the whole range.
func Split(r Range, size uint64) ([]Range, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if size == 0 {
		return []Range{r}, nil
	}

	chunks := make([]Range, 0, r.Blocks()/size+1)
	for start := r.Start; ; start += size {
		end := start + size - 1
		if end >= r.End || end < start {
			chunks = append(chunks, Range{Start: start, End: r.End})
			break
		}
		chunks = append(chunks, Range{Start: start, End: end})
	}
	return chunks, nil
}
