package infuse

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. These are wrapped by or compared against the typed
// errors below; resolution failures always carry a typed error with the
// offending token attached.
var (
	ErrTokenNil        = errors.New("token cannot be nil")
	ErrProviderNil     = errors.New("provider config cannot be nil")
	ErrContainerNil    = errors.New("container cannot be nil")
	ErrContainerClosed = errors.New("container has been closed")
	ErrNotRegistered   = errors.New("token not registered")
)

var (
	_ error = NotRegisteredError{}
	_ error = CircularDependencyError{}
	_ error = InstantiationError{}
	_ error = InvalidProviderConfigError{}
	_ error = LifecycleError{}
	_ error = MaxDepthError{}
)

// NotRegisteredError indicates a token has no provider in the registry
// (nor in any parent container consulted during fallback).
type NotRegisteredError struct {
	Token Token
}

func (e NotRegisteredError) Error() string {
	return fmt.Sprintf("no provider registered for token %s", tokenString(e.Token))
}

func (e NotRegisteredError) Is(target error) bool {
	return target == ErrNotRegistered
}

// CircularDependencyError indicates a token was re-entered during its own
// resolution. Chain holds the active resolution path leading back to the
// token, so the message shows the full cycle.
type CircularDependencyError struct {
	Token Token
	Chain []Token
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected")

	if len(e.Chain) > 0 {
		parts := make([]string, 0, len(e.Chain)+1)
		for _, t := range e.Chain {
			parts = append(parts, tokenString(t))
		}
		parts = append(parts, tokenString(e.Token))
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, " -> "))
	} else {
		b.WriteString(": ")
		b.WriteString(tokenString(e.Token))
	}

	return b.String()
}

// InstantiationError wraps a failure inside a factory or constructor,
// including recovered panics.
type InstantiationError struct {
	Token Token
	Cause error
}

func (e InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate %s: %v", tokenString(e.Token), e.Cause)
}

func (e InstantiationError) Unwrap() error {
	return e.Cause
}

// InvalidProviderConfigError indicates a provider configuration that does
// not declare exactly one instantiation strategy, or is otherwise
// malformed.
type InvalidProviderConfigError struct {
	Token  Token
	Reason string
}

func (e InvalidProviderConfigError) Error() string {
	return fmt.Sprintf("invalid provider config for %s: %s", tokenString(e.Token), e.Reason)
}

// LifecycleError indicates an invalid lifecycle value.
type LifecycleError struct {
	Value any
}

func (e LifecycleError) Error() string {
	return fmt.Sprintf("invalid lifecycle: %v", e.Value)
}

// MaxDepthError indicates a resolution exceeded the configured maximum
// depth. The active-resolution set catches true cycles; this guard exists
// for pathologically deep graphs.
type MaxDepthError struct {
	Token Token
	Depth int
}

func (e MaxDepthError) Error() string {
	return fmt.Sprintf("resolution of %s exceeded maximum depth %d", tokenString(e.Token), e.Depth)
}
