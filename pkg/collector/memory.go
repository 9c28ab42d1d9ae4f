package collector

import (
	"sync"

	"github.com/holdfast-rpki/holdfast/pkg/log"
)

// Cleanup is an in-memory store.CollectorCleanup. Each pass starts with
// an empty retained set; RetainRRDPRepository and RetainRsyncModule add
// to it, and Commit diffs the new set against whatever was retained on
// the previous call, reporting everything that fell out as evicted.
type Cleanup struct {
	mu sync.Mutex

	// retained accumulates the current pass's retained repositories and
	// modules, keyed by URI.
	retained map[string]struct{}

	// previous is the set Commit last finalized. It starts nil, in
	// which case the very first Commit evicts nothing -- there is
	// nothing yet to have fallen out of.
	previous map[string]struct{}

	// onEvict, if set, is called once per URI that was retained on the
	// previous pass but not this one.
	onEvict func(uri string)
}

// New creates a Cleanup with an empty retained set.
func New() *Cleanup {
	return &Cleanup{retained: make(map[string]struct{})}
}

// OnEvict registers a callback invoked by Commit for every URI that
// fell out of the retained set since the previous pass.
func (c *Cleanup) OnEvict(fn func(uri string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

// RetainRRDPRepository implements store.CollectorCleanup.
func (c *Cleanup) RetainRRDPRepository(notifyURI string) {
	c.retain(notifyURI)
}

// RetainRsyncModule implements store.CollectorCleanup.
func (c *Cleanup) RetainRsyncModule(moduleURI string) {
	c.retain(moduleURI)
}

func (c *Cleanup) retain(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retained[uri] = struct{}{}
}

// Commit implements store.CollectorCleanup. It never fails on its own;
// the error return exists to satisfy the interface for implementations
// (such as one that has to touch disk) that can.
func (c *Cleanup) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for uri := range c.previous {
		if _, ok := c.retained[uri]; !ok {
			log.WithComponent("collector").Debug().Str("uri", uri).Msg("evicting repository no longer referenced")
			if c.onEvict != nil {
				c.onEvict(uri)
			}
		}
	}

	c.previous = c.retained
	c.retained = make(map[string]struct{})
	return nil
}

// Retained reports the set of URIs retained by the most recent
// RetainRRDPRepository/RetainRsyncModule calls since the last Commit.
// Intended for tests.
func (c *Cleanup) Retained() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.retained))
	for uri := range c.retained {
		out = append(out, uri)
	}
	return out
}
