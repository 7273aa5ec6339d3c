package updates

import (
	"sync/atomic"
	"time"
)

// IDSource allocates attempt identifiers. Every call to Next must return an
// id never handed out before by this source; the driver relies on that to
// tell overlapping attempts apart.
type IDSource interface {
	Next() uint64
}

// IDSourceFunc adapts a function to IDSource.
type IDSourceFunc func() uint64

// Next implements IDSource.
func (f IDSourceFunc) Next() uint64 {
	return f()
}

// counterIDSource is a monotonically increasing counter seeded once from the
// wall clock so that ids from separate process runs do not collide with
// states a host may have kept around.
type counterIDSource struct {
	last atomic.Uint64
}

// NewIDSource returns an IDSource counting up from seed.
func NewIDSource(seed uint64) IDSource {
	src := &counterIDSource{}
	src.last.Store(seed)
	return src
}

func (s *counterIDSource) Next() uint64 {
	return s.last.Add(1)
}

var defaultIDs = NewIDSource(uint64(time.Now().UnixMilli()))

// DefaultIDSource returns the process-wide id source used when a run does not
// inject its own.
func DefaultIDSource() IDSource {
	return defaultIDs
}
