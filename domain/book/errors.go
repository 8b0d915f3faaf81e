package book

import "github.com/cockroachdb/errors"

var (
	// ErrBoundExceeded: a quantity, identifier, price or per-level counter
	// is over its field-width limit. Nothing was mutated.
	ErrBoundExceeded = errors.New("book: bound exceeded")

	// ErrBelowMinimum: a new order's quantity is under the resting floor.
	ErrBelowMinimum = errors.New("book: quantity below minimum")

	// ErrNotFound: the identifier is not resting in the book.
	ErrNotFound = errors.New("book: order not found")

	// ErrUnauthorized: the caller does not own the order.
	ErrUnauthorized = errors.New("book: caller does not own order")

	// ErrReentrant: a collaborator callback re-entered a public entry point.
	ErrReentrant = errors.New("book: reentrant call")
)
