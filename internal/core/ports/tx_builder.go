package ports

import (
	"github.com/buffalonetwork/custodyd/internal/core/domain"
)

// TxBuilder constructs and signs custody transactions. Implementations are
// pure: no I/O, no ledger access.
type TxBuilder interface {
	// BuildCreate produces an unsigned CREATE transaction introducing the
	// asset, with a single output bound to the creator's public key and
	// status unavailable.
	BuildCreate(asset domain.Asset, creatorPublicKey string) (*domain.Transaction, error)

	// BuildTransfer produces an unsigned TRANSFER consuming the given output
	// of the prior transaction, with a single output bound to the new
	// owner's public key. An out-of-range index fails with
	// domain.ErrInvalidOutputIndex.
	BuildTransfer(
		prior *domain.Transaction, outputIndex int,
		newOwnerPublicKey string, status domain.Status, seed string,
	) (*domain.Transaction, error)

	// Sign returns a signed copy of the transaction with its id filled in.
	// It does not check that the key matches the consumed output; the ledger
	// rejects mismatches.
	Sign(tx *domain.Transaction, privateKey string) (*domain.Transaction, error)
}
