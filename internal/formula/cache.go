package formula

import (
	"strings"
	"sync"
)

// Cache memoizes compiled expressions by source text and parameter names.
//
// Loaders share one Cache per load so that a b-tag CSV with thousands of
// rows but a handful of distinct formula strings compiles each once.
// Failed compilations are not cached.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	exprs map[string]*Expression
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{exprs: make(map[string]*Expression)}
}

// Compile returns the cached expression or compiles and caches it.
func (c *Cache) Compile(expression string, parameterNames []string) (*Expression, error) {
	key := expression + "\x00" + strings.Join(parameterNames, "\x00")

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.exprs[key]; ok {
		return e, nil
	}
	e, err := Compile(expression, parameterNames)
	if err != nil {
		return nil, err
	}
	c.exprs[key] = e
	return e, nil
}

// Len returns the number of distinct compiled expressions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.exprs)
}
