package domain

import "errors"

var (
	// ErrNoPrice is returned when a price source has no quote for a symbol and date
	ErrNoPrice = errors.New("no price available")
	// ErrNotFound is returned by repositories when a row does not exist
	ErrNotFound = errors.New("not found")
)
