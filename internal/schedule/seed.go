package schedule

// SeedCounter hands out match seeds. It is never reset between iterations,
// so seed N always designates the N-th match executed in a run.
type SeedCounter struct {
	next uint64
}

// NewSeedCounter starts counting at start.
func NewSeedCounter(start uint64) *SeedCounter {
	return &SeedCounter{next: start}
}

// Next returns the current seed and advances.
func (c *SeedCounter) Next() uint64 {
	s := c.next
	c.next++
	return s
}

// Peek returns the seed the next call to Next will hand out.
func (c *SeedCounter) Peek() uint64 { return c.next }
