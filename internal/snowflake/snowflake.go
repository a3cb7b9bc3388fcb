// Package snowflake generates time-ordered 64-bit message IDs.
//
// IDs are composed of a millisecond timestamp, a node discriminator and a
// per-millisecond sequence. Ordering is monotonic within one process; across
// processes IDs are only roughly time-sortable. Uniqueness across gateway
// instances relies on the randomly chosen node discriminator, not on
// coordination, so collisions remain possible but overwhelmingly unlikely.
package snowflake

import (
	"math/rand"
	"sync"
	"time"
)

const (
	nodeBits     = 10
	sequenceBits = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1
)

// epoch is 2020-01-01T00:00:00Z in Unix milliseconds.
const epoch int64 = 1577836800000

// Generator produces unique, time-ordered uint64 IDs.
// Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	node     uint64
	lastMs   int64
	sequence uint64
}

// New creates a Generator with a randomly chosen node discriminator.
// Multiple gateway instances may collide on the discriminator; the randomness
// only reduces the chance of duplicate IDs, it does not eliminate it.
func New() *Generator {
	return NewWithNode(uint64(rand.Intn(maxNode + 1)))
}

// NewWithNode creates a Generator with a fixed node discriminator.
// The discriminator is truncated to 10 bits.
func NewWithNode(node uint64) *Generator {
	return &Generator{node: node & maxNode}
}

// Node returns the generator's node discriminator.
func (g *Generator) Node() uint64 {
	return g.node
}

// Next returns the next ID. IDs from one Generator are strictly increasing.
func (g *Generator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < g.lastMs {
		// Clock went backwards; hold the last observed millisecond so the
		// sequence keeps the output monotonic.
		now = g.lastMs
	}

	if now == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond, spin to the next one.
			for now <= g.lastMs {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = now

	return uint64(now-epoch)<<(nodeBits+sequenceBits) | g.node<<sequenceBits | g.sequence
}
