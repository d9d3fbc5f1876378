package ports

import (
	"context"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
)

// OutputRef points at one spendable output on the ledger.
type OutputRef struct {
	TxID        string `json:"transaction_id"`
	OutputIndex int    `json:"output_index"`
}

// AssetRef is a search result: the originating transaction id plus the
// immutable asset payload.
type AssetRef struct {
	ID    string       `json:"id"`
	Asset domain.Asset `json:"asset"`
}

// LedgerClient abstracts the append-only ledger node. Implementations are
// stateless across calls and safe for concurrent use; every method honors
// the caller's context and surfaces deadline expiry as
// domain.ErrLedgerTimeout. The ledger, not this daemon, enforces signatures
// and single-spend.
type LedgerClient interface {
	// SubmitAndCommit posts a signed transaction and waits for it to be
	// committed. Rejections surface as domain.ErrLedgerSubmit.
	SubmitAndCommit(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)

	// GetTransaction fetches a transaction by id.
	GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error)

	// ListHistory returns the full transaction chain of an asset in causal
	// order, oldest first.
	ListHistory(ctx context.Context, assetID string) ([]*domain.Transaction, error)

	// ListUnspentOutputs returns the outputs currently spendable by a
	// base58 public key.
	ListUnspentOutputs(ctx context.Context, publicKey string) ([]OutputRef, error)

	// SearchAssetsByType returns all assets created with the given type tag.
	SearchAssetsByType(ctx context.Context, typeTag string) ([]AssetRef, error)
}
