package domain

import "context"

// BaselineCache is a TTL-bound keyed store of per-wager baseline snapshots.
// One instance exists per mode, namespaced by a key prefix. Values round-trip
// through JSON. Fairness depends on the original capture instant, so PutNX is
// the capture primitive: it never overwrites an existing baseline.
type BaselineCache interface {
	// Get reads the baseline into dest. The bool is false when no baseline
	// exists. A backend failure is returned as an error; callers treat it the
	// same as "no baseline yet".
	Get(ctx context.Context, wagerID string, dest any) (bool, error)
	// PutNX stores v only when no baseline exists. The bool reports whether
	// this call created the entry.
	PutNX(ctx context.Context, wagerID string, v any) (bool, error)
	// Put unconditionally overwrites the baseline.
	Put(ctx context.Context, wagerID string, v any) error
	// Delete removes the baseline. Failures are returned for logging only;
	// the TTL is the real leak guard.
	Delete(ctx context.Context, wagerID string) error
}
