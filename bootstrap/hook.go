package bootstrap

// Hook is one registered initialization step.
type Hook struct {
	Name        string
	Priority    int
	Func        func(*Context) error
	Enabled     func(*Context) bool
	ErrorPolicy ErrorPolicy
}

// HookBuilder lets Register's caller chain optional configuration onto the
// hook it just registered.
type HookBuilder struct {
	hook *Hook
}

// OnlyIf gates the hook behind a predicate evaluated at Run time (e.g. skip
// the Telegram bridge hook when no bot token is configured).
func (b *HookBuilder) OnlyIf(cond func(*Context) bool) *HookBuilder {
	b.hook.Enabled = cond
	return b
}

// WithErrorPolicy overrides this hook's error handling. A hook left at (or
// set to) FailFast takes RunWithPolicy's default policy when that default is
// not FailFast; any other policy set here is kept as is.
func (b *HookBuilder) WithErrorPolicy(p ErrorPolicy) *HookBuilder {
	b.hook.ErrorPolicy = p
	return b
}
