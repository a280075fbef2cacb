package cardstore

import "errors"

// Sentinel errors for the cardstore package.
// Use errors.Is to check: errors.Is(err, cardstore.ErrNotFound)
var (
	// ErrNotFound means the requested card id is not in the collection.
	ErrNotFound = errors.New("cardstore: card not found")
	// ErrPersistence means the document could not be read, decoded or written.
	ErrPersistence = errors.New("cardstore: persistence failure")
	// ErrInvalidQuality means a rating outside 0..5 reached the store.
	ErrInvalidQuality = errors.New("cardstore: invalid quality")
)
