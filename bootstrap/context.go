package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"priceguard/config"
)

// Context carries shared state between hooks: the loaded config plus
// whatever a higher-priority hook stashed for a lower one to pick up (the
// store handle, the exchange registry, the kline manager, ...).
type Context struct {
	Config *config.Config
	Data   map[string]interface{}
	ctx    context.Context
	mu     sync.RWMutex
}

// NewContext builds an empty hook context around a loaded config.
func NewContext(cfg *config.Config) *Context {
	return &Context{
		Config: cfg,
		Data:   make(map[string]interface{}),
		ctx:    context.Background(),
	}
}

// Set stores a value for later hooks to retrieve by key.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Data[key] = value
}

// Get retrieves a value a prior hook stored, if any.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.Data[key]
	return val, ok
}

// MustGet retrieves a value a prior hook stored, panicking if absent —
// for hooks whose dependency ordering guarantees it's already there.
func (c *Context) MustGet(key string) interface{} {
	val, ok := c.Get(key)
	if !ok {
		panic(fmt.Sprintf("context key '%s' not found", key))
	}
	return val
}
