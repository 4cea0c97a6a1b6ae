package service

import "sync"

// BillSequence hands out monotonically increasing bill numbers. It is
// seeded at startup from both the database and the sales workbooks so
// numbering never goes backwards even if one side was wiped.
type BillSequence struct {
	mu   sync.Mutex
	last int64
}

func (b *BillSequence) Seed(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > b.last {
		b.last = n
	}
}

func (b *BillSequence) Next() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last++
	return b.last
}

func (b *BillSequence) Last() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
