// Package batch debounces multi-image messages.
//
// Chat platforms deliver an album as separate webhook events in quick
// succession. Replying to each one individually wastes provider calls and
// reads badly, so images are accumulated per identity and flushed as one
// batch once no new image has arrived for a quiet interval.
package batch

import (
	"sync"
	"time"

	"github.com/bdobrica/Kaimu/internal/kaimu/provider"
)

// DefaultQuiet is the debounce interval: a batch flushes after this long
// without a new image.
const DefaultQuiet = 2 * time.Second

// FlushFunc receives one identity's accumulated images. Called on its own
// goroutine after the pending record has already been removed, so a slow
// flush never blocks new accumulation.
type FlushFunc func(identity string, images []provider.Image)

// Collector accumulates images per identity with a reset-on-arrival timer.
type Collector struct {
	mu      sync.Mutex
	quiet   time.Duration
	flush   FlushFunc
	pending map[string]*pendingBatch
}

type pendingBatch struct {
	images []provider.Image
	timer  *time.Timer
	// gen increments on every Add so a timer that lost a Stop race can
	// recognize it is stale.
	gen int
}

// New creates a Collector. quiet <= 0 uses DefaultQuiet.
func New(quiet time.Duration, flush FlushFunc) *Collector {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Collector{
		quiet:   quiet,
		flush:   flush,
		pending: make(map[string]*pendingBatch),
	}
}

// Add appends one image to identity's pending batch and restarts its quiet
// timer.
func (c *Collector) Add(identity string, img provider.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, exists := c.pending[identity]
	if !exists {
		p = &pendingBatch{}
		c.pending[identity] = p
	} else {
		p.timer.Stop()
	}
	p.images = append(p.images, img)
	p.gen++
	gen := p.gen
	p.timer = time.AfterFunc(c.quiet, func() { c.fire(identity, p, gen) })
}

// fire flushes identity's batch if p is still the live record at the
// generation this timer was armed for. The record is removed before the
// flush callback runs so a concurrently arriving image starts a fresh
// batch instead of observing partial state.
func (c *Collector) fire(identity string, p *pendingBatch, gen int) {
	c.mu.Lock()
	current, exists := c.pending[identity]
	if !exists || current != p || p.gen != gen {
		// A newer Add superseded this timer; the stale one loses.
		c.mu.Unlock()
		return
	}
	delete(c.pending, identity)
	images := p.images
	c.mu.Unlock()

	c.flush(identity, images)
}

// Pending reports how many identities currently hold an unflushed batch.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
