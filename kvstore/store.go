// Package kvstore provides the small durable key-value stores that hold
// identity keys and wallet contents.
package kvstore

import "context"

// Store is a string key-value store. Get reports whether the key exists.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
