package bootstrap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceguard/config"
)

func freshContext() *Context {
	return NewContext(&config.Config{})
}

func TestRun_ExecutesHooksInPriorityOrder(t *testing.T) {
	Clear()
	defer Clear()

	var order []string
	Register("core", PriorityCore, func(c *Context) error {
		order = append(order, "core")
		return nil
	})
	Register("infra", PriorityInfrastructure, func(c *Context) error {
		order = append(order, "infra")
		return nil
	})
	Register("db", PriorityDatabase, func(c *Context) error {
		order = append(order, "db")
		return nil
	})

	require.NoError(t, Run(freshContext()))
	assert.Equal(t, []string{"infra", "db", "core"}, order)
}

func TestRun_FailFastStopsAtFirstError(t *testing.T) {
	Clear()
	defer Clear()

	ran := false
	Register("first", PriorityInfrastructure, func(c *Context) error {
		return errors.New("boom")
	})
	Register("second", PriorityDatabase, func(c *Context) error {
		ran = true
		return nil
	})

	err := Run(freshContext())
	assert.Error(t, err)
	assert.False(t, ran, "a later hook must not run once FailFast trips")
}

func TestRunWithPolicy_ContinueOnErrorRunsEveryHook(t *testing.T) {
	Clear()
	defer Clear()

	ran := false
	Register("first", PriorityInfrastructure, func(c *Context) error {
		return errors.New("boom")
	})
	Register("second", PriorityDatabase, func(c *Context) error {
		ran = true
		return nil
	})

	err := RunWithPolicy(freshContext(), ContinueOnError)
	assert.Error(t, err)
	assert.True(t, ran, "ContinueOnError must still run hooks after a failure")
}

func TestRegister_OnlyIfSkipsDisabledHook(t *testing.T) {
	Clear()
	defer Clear()

	ran := false
	Register("gated", PriorityCore, func(c *Context) error {
		ran = true
		return nil
	}).OnlyIf(func(c *Context) bool { return false })

	require.NoError(t, Run(freshContext()))
	assert.False(t, ran)
}

func TestContext_SetGetMustGet(t *testing.T) {
	c := freshContext()
	c.Set("key", 42)

	v, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { c.MustGet("missing") })
	assert.NotPanics(t, func() { c.MustGet("key") })
}

func TestCount_ReflectsRegisteredHooks(t *testing.T) {
	Clear()
	defer Clear()
	assert.Equal(t, 0, Count())
	Register("a", PriorityCore, func(c *Context) error { return nil })
	Register("b", PriorityCore, func(c *Context) error { return nil })
	assert.Equal(t, 2, Count())
}
