package core

import "errors"

// Sentinel errors shared across the core, ledgerstate, contract and app
// packages. Wrap these with fmt.Errorf("%w: ...") to attach a
// human-readable detail while still letting callers errors.Is against
// the sentinel.
var (
	// ErrAlreadySpent is returned by UTXO.CoinsAtIndex when the requested
	// output position has already been tombstoned.
	ErrAlreadySpent = errors.New("already spent")

	// ErrAlreadyDeleted is returned by UTXO.SpendCoins when the position
	// was already tombstoned by an earlier call.
	ErrAlreadyDeleted = errors.New("already deleted")

	// ErrNotFound is returned when an output index was never present.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddressLength is returned by AddressFromBytes.
	ErrInvalidAddressLength = errors.New("invalid address length")
)
