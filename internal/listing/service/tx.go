package service

import "context"

// Stores is the set of stores bound to one unit of work.
type Stores struct {
	Listings ListingStore
	Versions VersionStore
}

// StoreTx provides the transactional boundary for listing mutations. Writes
// made through the Stores handed to fn commit together or not at all.
// Implementations surface optimistic conflicts as sentinel.ErrConflict.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
