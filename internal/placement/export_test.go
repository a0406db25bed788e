package placement

// size returns the number of stored entries, expired ones included.
func (c *MemoryCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
