// Package draftstore persists drafts in a namespaced key-value medium. Keys
// follow "<reportType>_draft_<id>" and values are JSON-encoded drafts, so any
// backend holding bytes by key can serve.
package draftstore

import "context"

// KV is one raw entry returned by a prefix scan.
type KV struct {
	Key   string
	Value []byte
}

// Backend is the byte-level medium underneath Store.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Get returns the value under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan returns every entry whose key starts with prefix, ordered by key.
	Scan(ctx context.Context, prefix string) ([]KV, error)
}
