package pipeline

import "sync"

// claims tracks source ids being processed in this process, so a mention
// arriving twice while its first run is still in flight is not picked up again.
type claims struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newClaims() *claims {
	return &claims{active: map[string]struct{}{}}
}

func (c *claims) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[key]; ok {
		return false
	}
	c.active[key] = struct{}{}
	return true
}

func (c *claims) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, key)
}
