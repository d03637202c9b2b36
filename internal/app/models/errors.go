package models

import "errors"

// Domain specific errors surfaced by the feed and ledger services.
var (
	ErrNotFound   = errors.New("requested item not found")
	ErrValidation = errors.New("validation failed")

	// ErrNoEventsInRadius marks an exhausted geography: zero candidates
	// satisfied the radius/filter predicate, as opposed to an empty pool.
	ErrNoEventsInRadius = errors.New("no events within radius")
)
