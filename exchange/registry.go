package exchange

import (
	"sync"

	"priceguard/xerr"
)

// Names is the closed set of supported venues. A registry maps name to
// adapter instance; an unknown name is an explicit typed error, never a
// default fallback.
var Names = []string{"binance", "bybit", "okx", "gate", "bitget", "mexc"}

// Registry maps exchange name to its Adapter instance.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry builds an empty registry; adapters are added with Register as
// the application constructs them (each needs a sink closure pointing back
// at the kline manager, so construction order is main.go's concern, not
// the registry's).
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register installs an adapter under its own Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get resolves an exchange name to its adapter, or a typed SymbolUnresolved-
// class error for names outside the closed set.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, xerr.New(xerr.KindSymbolUnresolved, "unknown exchange: "+name)
	}
	return a, nil
}

// All returns every registered adapter, for fan-out operations like
// graceful shutdown.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
