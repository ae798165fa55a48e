package service

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces merchant-side identifiers such as receipts and
// transaction ids.
type IDGenerator interface {
	NewID(prefix string) string
}

// TimeIDGenerator builds ids from the wall clock, a process-wide counter and
// a random suffix, e.g. txn_17291234567890042_3f9a1c2e.
type TimeIDGenerator struct {
	now     func() time.Time
	counter atomic.Uint64
}

// NewTimeIDGenerator returns a generator backed by the wall clock
func NewTimeIDGenerator() *TimeIDGenerator {
	return &TimeIDGenerator{now: time.Now}
}

// NewID returns prefix_<epoch ms><4-digit sequence>_<8 hex chars>.
func (g *TimeIDGenerator) NewID(prefix string) string {
	seq := g.counter.Add(1) % 10000
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d%04d_%s", prefix, g.now().UnixMilli(), seq, suffix)
}
