package bootstrap

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"priceguard/logger"
)

// Priority is the ordering tier a hook runs at: lower priorities run first.
const (
	PriorityInfrastructure = 10  // config, logging
	PriorityDatabase       = 20  // store.Open
	PriorityCore           = 50  // exchange registry, kline manager, resolver
	PriorityBusiness       = 100 // alert engine, push fabric, telegram bridge
	PriorityBackground     = 200 // long-running loops (sweep, adapter connect)
)

// ErrorPolicy controls how Run reacts to a failing hook.
type ErrorPolicy int

const (
	// FailFast stops at the first failing hook (default).
	FailFast ErrorPolicy = iota
	// ContinueOnError runs every hook regardless, collecting all errors.
	ContinueOnError
	// WarnOnError logs the failure and continues, treating it as non-fatal.
	WarnOnError
)

var (
	hooks   []Hook
	hooksMu sync.Mutex
)

// Register adds an initialization hook. name identifies the module in log
// output; priority controls ordering (lower runs first); fn does the work.
func Register(name string, priority int, fn func(*Context) error) *HookBuilder {
	hooksMu.Lock()
	defer hooksMu.Unlock()

	hook := Hook{
		Name:        name,
		Priority:    priority,
		Func:        fn,
		Enabled:     nil,
		ErrorPolicy: FailFast,
	}

	hooks = append(hooks, hook)
	return &HookBuilder{hook: &hooks[len(hooks)-1]}
}

// Run executes every registered hook in priority order under FailFast.
func Run(ctx *Context) error {
	return RunWithPolicy(ctx, FailFast)
}

// RunWithPolicy executes every registered hook in priority order, falling
// back to defaultPolicy for any hook that didn't set its own.
func RunWithPolicy(ctx *Context, defaultPolicy ErrorPolicy) error {
	hooksMu.Lock()
	hooksCopy := make([]Hook, len(hooks))
	copy(hooksCopy, hooks)
	hooksMu.Unlock()

	if len(hooksCopy) == 0 {
		log.Printf("no initialization hooks registered")
		return nil
	}

	sort.Slice(hooksCopy, func(i, j int) bool {
		return hooksCopy[i].Priority < hooksCopy[j].Priority
	})

	log.Printf("initializing %d modules...", len(hooksCopy))
	startTime := time.Now()

	var errs []error
	successCount := 0
	skippedCount := 0

	for i, hook := range hooksCopy {
		if hook.Enabled != nil && !hook.Enabled(ctx) {
			log.Printf("  [%d/%d] skip: %s (disabled)", i+1, len(hooksCopy), hook.Name)
			skippedCount++
			continue
		}

		log.Printf("  [%d/%d] init: %s (priority %d)", i+1, len(hooksCopy), hook.Name, hook.Priority)

		hookStart := time.Now()
		err := hook.Func(ctx)
		elapsed := time.Since(hookStart)

		if err != nil {
			errMsg := fmt.Errorf("[%s] init failed: %w", hook.Name, err)

			policy := hook.ErrorPolicy
			if policy == FailFast && defaultPolicy != FailFast {
				policy = defaultPolicy
			}

			switch policy {
			case FailFast:
				log.Printf("  failed: %s (%v)", hook.Name, elapsed)
				return errMsg
			case ContinueOnError:
				log.Printf("  failed: %s (%v) - continuing", hook.Name, elapsed)
				errs = append(errs, errMsg)
			case WarnOnError:
				log.Printf("  warning: %s (%v) - %v", hook.Name, elapsed, err)
			}
		} else {
			log.Printf("  done: %s (%v)", hook.Name, elapsed)
			successCount++
		}
	}

	totalElapsed := time.Since(startTime)

	if len(errs) > 0 {
		logger.Log.Warn().Int("failed", len(errs)).Dur("elapsed", totalElapsed).Msg("initialization completed with failures")
		log.Printf("summary: success=%d failed=%d skipped=%d", successCount, len(errs), skippedCount)
		return fmt.Errorf("modules failed to initialize: %v", errs)
	}

	log.Printf("all modules initialized (%v)", totalElapsed)
	log.Printf("summary: success=%d skipped=%d", successCount, skippedCount)
	return nil
}

// GetRegistered returns a snapshot of every registered hook, for diagnostics.
func GetRegistered() []Hook {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooksCopy := make([]Hook, len(hooks))
	copy(hooksCopy, hooks)
	return hooksCopy
}

// Clear removes every registered hook; used between tests.
func Clear() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = nil
}

// Count reports how many hooks are registered.
func Count() int {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	return len(hooks)
}
