package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Ledger errors. All are recoverable by the caller: a transaction that
// fails with one of these is reverted in full and the ledger is unchanged.
var (
	// ErrInsufficientFunds - free balance below the amount to reserve.
	ErrInsufficientFunds = errors.New("insufficient free balance")

	// ErrInvalidKittyID - referenced kitty does not exist, or the id
	// counter is exhausted.
	ErrInvalidKittyID = errors.New("invalid kitty id")

	// ErrKittyIDOverflow - the id counter reached its configured ceiling.
	ErrKittyIDOverflow = errors.New("kitty id overflow")

	// ErrSameKittyID - breed called with the same kitty for both parents.
	ErrSameKittyID = errors.New("cannot breed a kitty with itself")

	// ErrNotOwner - transfer attempted by an account that does not own
	// the kitty.
	ErrNotOwner = errors.New("sender does not own this kitty")

	// ErrOwnTooManyKitties - the destination account already holds the
	// configured maximum number of kitties.
	ErrOwnTooManyKitties = errors.New("own too many kitties")
)
