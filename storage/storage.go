package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// envelope is the persisted entry layout. When Compressed is set, Value
// holds the gzip-compressed JSON payload as a base64 string.
type envelope struct {
	Value      json.RawMessage `json:"value"`
	Timestamp  int64           `json:"timestamp"` // unix milliseconds
	TTL        int64           `json:"ttl,omitempty"`
	Compressed bool            `json:"compressed,omitempty"`
}

func (e *envelope) expired(now time.Time) bool {
	return e.TTL > 0 && now.UnixMilli()-e.Timestamp > e.TTL
}

// Store wraps a Backend with JSON envelopes under a key prefix. Expired
// entries read as misses and are removed.
type Store struct {
	backend Backend
	prefix  string
	now     func() time.Time
	log     zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key the store touches.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for storage diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a store over the given backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

type entryOptions struct {
	ttl      time.Duration
	compress bool
}

// EntryOption configures a single Set call.
type EntryOption func(*entryOptions)

// WithTTL sets the entry's time to live. Expired entries read as misses
// and are removed on access.
func WithTTL(ttl time.Duration) EntryOption {
	return func(o *entryOptions) { o.ttl = ttl }
}

// WithCompression gzip-compresses the entry's payload. Compression is
// explicit per entry; the store never decides on its own.
func WithCompression() EntryOption {
	return func(o *entryOptions) { o.compress = true }
}

// Set marshals v into an envelope and stores it under the prefixed key.
func (s *Store) Set(key string, v any, opts ...EntryOption) error {
	var eo entryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&eo)
		}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal value for %q: %w", key, err)
	}

	env := envelope{Timestamp: s.now().UnixMilli()}
	if eo.ttl > 0 {
		env.TTL = eo.ttl.Milliseconds()
	}

	if eo.compress {
		compressed, err := compressPayload(payload)
		if err != nil {
			return fmt.Errorf("compress value for %q: %w", key, err)
		}
		// Marshal of a []byte yields a base64 JSON string.
		env.Value, _ = json.Marshal(compressed)
		env.Compressed = true
	} else {
		env.Value = payload
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope for %q: %w", key, err)
	}

	return s.backend.Set(s.prefix+key, raw)
}

// Get unmarshals the value stored under the key into out. The boolean is
// false when the key is absent or expired; expired entries are removed.
// A nil out checks presence without decoding.
func (s *Store) Get(key string, out any) (bool, error) {
	raw, ok, err := s.backend.Get(s.prefix + key)
	if err != nil || !ok {
		return false, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("decode envelope for %q: %w", key, err)
	}

	if env.expired(s.now()) {
		if derr := s.backend.Delete(s.prefix + key); derr != nil {
			s.log.Warn().Str("key", key).Err(derr).Msg("failed to remove expired entry")
		}
		return false, nil
	}

	payload := []byte(env.Value)
	if env.Compressed {
		var compressed []byte
		if err := json.Unmarshal(env.Value, &compressed); err != nil {
			return false, fmt.Errorf("decode compressed payload for %q: %w", key, err)
		}
		if payload, err = decompressPayload(compressed); err != nil {
			return false, fmt.Errorf("decompress value for %q: %w", key, err)
		}
	}

	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("decode value for %q: %w", key, err)
	}
	return true, nil
}

// Remove deletes the entry under the prefixed key.
func (s *Store) Remove(key string) error {
	return s.backend.Delete(s.prefix + key)
}

// Keys returns the store's keys with the prefix stripped. Keys outside
// the prefix are invisible.
func (s *Store) Keys() ([]string, error) {
	all, err := s.backend.Keys()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(all))
	for _, key := range all {
		if strings.HasPrefix(key, s.prefix) {
			keys = append(keys, strings.TrimPrefix(key, s.prefix))
		}
	}
	return keys, nil
}

// Clear removes every entry under the store's prefix.
func (s *Store) Clear() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.backend.Delete(s.prefix + key); err != nil {
			return err
		}
	}
	return nil
}

func compressPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressPayload(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
