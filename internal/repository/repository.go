// Package repository defines local persistence used by the info modules: a
// cache of shaped query results keyed by query fingerprint, so repeated runs
// within a freshness window skip the remote round trip.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// QueryCache stores shaped query results keyed by fingerprint.
type QueryCache interface {
	// Get returns the cached payload when one exists and is younger than
	// maxAge. The second result reports a hit.
	Get(ctx context.Context, fingerprint string, maxAge time.Duration) ([]byte, bool, error)

	// Put stores or refreshes the payload for a fingerprint.
	Put(ctx context.Context, fingerprint string, payload []byte) error

	Close() error
}

// Fingerprint derives a stable cache key from the parts that determine a
// query's result: endpoint, generated SWQL, and any shaping parameters.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
