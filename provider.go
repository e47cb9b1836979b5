package infuse

import (
	"reflect"
	"time"
)

// ProviderConfig describes how to produce an instance for a token.
// Exactly one of Value, Factory, or Constructor must be set.
type ProviderConfig struct {
	// Value is a precomputed instance returned as-is on every
	// resolution. Values are never cached because they already are
	// instances.
	Value any

	// Factory produces an instance from the resolved dependencies,
	// passed positionally in the order declared in Dependencies.
	Factory func(deps ...any) (any, error)

	// Constructor is an arbitrary function invoked via reflection with
	// the resolved dependencies as positional arguments. The first
	// non-error return value becomes the instance; a trailing error
	// return aborts the resolution.
	Constructor any

	// Lifecycle determines caching behavior. The zero value is
	// Singleton.
	Lifecycle Lifecycle

	// TTL is the maximum idle time for a cached instance. An instance
	// unused for longer than TTL is treated as a cache miss on the next
	// read and re-instantiated. Zero means no expiry.
	TTL time.Duration

	// Dependencies are the tokens injected positionally into Factory or
	// Constructor, resolved in declared order.
	Dependencies []Token
}

// validate checks the one-of-three strategy invariant and the lifecycle
// value. Dependency tokens are not validated here; a missing dependency
// surfaces as NotRegisteredError at resolution time.
func (c *ProviderConfig) validate(token Token) error {
	if c == nil {
		return InvalidProviderConfigError{Token: token, Reason: "config is nil"}
	}

	strategies := 0
	if c.Value != nil {
		strategies++
	}
	if c.Factory != nil {
		strategies++
	}
	if c.Constructor != nil {
		strategies++
	}

	switch {
	case strategies == 0:
		return InvalidProviderConfigError{
			Token:  token,
			Reason: "one of Value, Factory, or Constructor must be set",
		}
	case strategies > 1:
		return InvalidProviderConfigError{
			Token:  token,
			Reason: "Value, Factory, and Constructor are mutually exclusive",
		}
	}

	if c.Constructor != nil && reflect.TypeOf(c.Constructor).Kind() != reflect.Func {
		return InvalidProviderConfigError{
			Token:  token,
			Reason: "Constructor must be a function",
		}
	}

	if !c.Lifecycle.IsValid() {
		return InvalidProviderConfigError{
			Token:  token,
			Reason: LifecycleError{Value: c.Lifecycle}.Error(),
		}
	}

	return nil
}

// clone returns a copy safe to hand to another registry. The dependency
// slice is copied; the strategy fields are shared by design.
func (c *ProviderConfig) clone() *ProviderConfig {
	dup := *c
	if len(c.Dependencies) > 0 {
		dup.Dependencies = make([]Token, len(c.Dependencies))
		copy(dup.Dependencies, c.Dependencies)
	}
	return &dup
}
