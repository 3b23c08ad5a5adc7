package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced product, variant or cart line is absent
	ErrNotFound = errors.New("not found")
	// ErrOutOfStock means managed inventory cannot satisfy the request
	ErrOutOfStock = errors.New("out of stock")
	// ErrSourceUnavailable means a record source call failed or timed out
	ErrSourceUnavailable = errors.New("record source unavailable")
	// ErrPersistence means a local mutation succeeded but the backing write failed
	ErrPersistence = errors.New("persistence failed")

	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrNotPurchasable  = errors.New("product is not purchasable")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrEmptyCart       = errors.New("cart is empty")
)

// PersistenceError reports a failed backing-store write for an operation whose
// in-memory effect has already been applied.
type PersistenceError struct {
	Op  string
	Key LineKey
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == (LineKey{}) {
		return fmt.Sprintf("%s: %v: %v", e.Op, ErrPersistence, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v: %v", e.Op, e.Key.ProductID, e.Key.VariantID, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Retriable reports whether the error kind may succeed on a later attempt
func Retriable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrPersistence)
}
