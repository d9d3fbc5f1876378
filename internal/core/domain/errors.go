package domain

import "errors"

var (
	// ErrInvalidSeed is returned when a seed string cannot be used as key
	// derivation input.
	ErrInvalidSeed = errors.New("invalid seed encoding")

	// ErrInvalidOutputIndex is returned by the tx builder when a transfer
	// references an output that is not present on the prior transaction.
	ErrInvalidOutputIndex = errors.New("output index out of range")

	// ErrTransactionNotFound is returned when a referenced transaction id is
	// absent from the ledger.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrIllegalTransition is returned by the custody state machine when the
	// requested status change is not allowed from the asset's current status.
	// The ledger treats status as opaque metadata, so this is the only place
	// the lifecycle is enforced.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrLedgerSubmit is returned when the ledger rejects or fails to commit
	// a transaction, e.g. on a double spend or a bad signature.
	ErrLedgerSubmit = errors.New("ledger rejected transaction")

	// ErrLedgerRead is returned on transient read failures.
	ErrLedgerRead = errors.New("ledger read failed")

	// ErrLedgerTimeout is returned when a ledger call exceeds its deadline.
	// No implicit retry is ever issued.
	ErrLedgerTimeout = errors.New("ledger call timed out")
)
