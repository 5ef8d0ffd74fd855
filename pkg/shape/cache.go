package shape

// Cache memoizes resolved values of one shape instance, keyed by property
// name. It is never shared between shapes, so it needs no locking.
type Cache struct {
	values   map[string]any
	disabled bool
}

func newCache(disabled bool) Cache {
	return Cache{values: make(map[string]any), disabled: disabled}
}

// Get returns the memoized value for key.
func (c *Cache) Get(key string) (any, bool) {
	if c.disabled {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// Set memoizes v under key.
func (c *Cache) Set(key string, v any) {
	if c.disabled {
		return
	}
	c.values[key] = v
}

// Invalidate drops every memoized value.
func (c *Cache) Invalidate() {
	clear(c.values)
}

// Len returns the number of memoized values.
func (c *Cache) Len() int { return len(c.values) }
