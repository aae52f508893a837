package domain

import "errors"

var (
	// ErrNotFound: the referenced position or user is missing. The
	// settlement is aborted and not retried automatically.
	ErrNotFound = errors.New("not found")

	// ErrAlreadySettled: the position is no longer ACTIVE. Benign; the
	// caller no-ops.
	ErrAlreadySettled = errors.New("position already settled")

	// ErrConcurrencyConflict: optimistic version mismatch on the balance
	// write. The whole settlement transaction rolls back and the position
	// stays ACTIVE for the next scan.
	ErrConcurrencyConflict = errors.New("concurrent balance modification")

	// ErrUpstreamUnavailable: price lookup or commentary generation failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSchemaDrift: storage is missing an expected column, e.g.
	// mid-migration. The current scan batch is skipped.
	ErrSchemaDrift = errors.New("storage schema drift")
)
