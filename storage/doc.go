// Package storage wraps a string-keyed byte store with JSON envelopes,
// per-entry TTLs, optional gzip compression, and lazy-loading helpers.
//
// Entries are persisted as envelopes of the form
//
//	{"value": ..., "timestamp": ..., "ttl": ..., "compressed": ...}
//
// under a configurable key prefix. The backing store is any
// implementation of the Backend interface; MemoryBackend and FileBackend
// are provided.
package storage
