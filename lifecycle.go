package infuse

import (
	"encoding/json"
	"fmt"
)

// Lifecycle specifies how resolved instances are cached.
// The zero value is Singleton, which is also the default for provider
// configurations that leave the field unset.
type Lifecycle int

const (
	// Singleton caches a single instance in the long-lived instance map.
	// The instance is created on first resolution and shared by every
	// caller until it is invalidated, evicted by the GC sweep, or its
	// TTL expires.
	Singleton Lifecycle = iota

	// Scoped caches one instance per request scope. Scoped instances are
	// dropped when the scope is cleared via ClearRequestScope.
	Scoped

	// Transient never caches; every resolution produces a new instance.
	Transient
)

// String returns the string representation of the Lifecycle.
func (l Lifecycle) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifecycle is one of the defined values.
func (l Lifecycle) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifecycle) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Singleton", "singleton":
		*l = Singleton
	case "Scoped", "scoped":
		*l = Scoped
	case "Transient", "transient":
		*l = Transient
	default:
		return LifecycleError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifecycle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
