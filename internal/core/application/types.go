package application

import (
	"context"
	"encoding/json"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
)

// CustodyService drives the asset custody state machine by chaining signed
// TRANSFER transactions onto the latest unspent output of an asset. Every
// operation issues exactly one submit to the ledger and performs no retries;
// concurrent transitions on the same chain are arbitrated by the ledger's
// single-spend enforcement.
type CustodyService interface {
	// RegisterAsset introduces a new asset owned by the identity derived
	// from ownerSeed, with status unavailable. Returns the CREATE tx id.
	RegisterAsset(ctx context.Context, ownerSeed string, item json.RawMessage) (string, error)

	// Offer marks the asset available, keeping the same owner. The owner's
	// seed is recorded in the transfer metadata so later steps can act on
	// the owner's behalf.
	Offer(ctx context.Context, ownerSeed, txID string) (string, error)

	// Reserve marks an available asset pending, re-deriving the acting
	// owner from the metadata-recorded seed.
	Reserve(ctx context.Context, txID string) (string, error)

	// Confirm finalizes the transfer: the output moves to the identity
	// derived from newOwnerSeed and the status returns to unavailable. This
	// is the only operation that changes the bound public key.
	Confirm(ctx context.Context, newOwnerSeed, txID string) (string, error)
}

// AssetSummary identifies an asset by its originating CREATE transaction
// together with the immutable item payload.
type AssetSummary struct {
	AssetID string          `json:"id"`
	Item    json.RawMessage `json:"item"`
}

// UserAssets groups the latest transactions of one identity's assets by
// current status.
type UserAssets struct {
	Unavailable []*domain.Transaction `json:"unavailable"`
	Available   []*domain.Transaction `json:"available"`
	Pending     []*domain.Transaction `json:"pending"`
}

// QueryService is the read side: it reconstructs current status and
// ownership from the full transaction history, never writing to the ledger.
type QueryService interface {
	// CurrentStatus resolves the current status of the asset chain the
	// given transaction belongs to.
	CurrentStatus(ctx context.Context, txID string) (domain.Status, error)

	// AssetsByStatus filters assets to those whose current status matches,
	// returning each matching asset's latest transaction. History fetches
	// fan out concurrently; a single failed fetch skips that asset only.
	AssetsByStatus(ctx context.Context, assetIDs []string, status domain.Status) ([]*domain.Transaction, error)

	// AssetsOwnedBy lists the assets whose latest unspent output is bound
	// to the identity derived from seed.
	AssetsOwnedBy(ctx context.Context, seed string) ([]AssetSummary, error)

	// AllAssetsByType delegates to the ledger's asset search.
	AllAssetsByType(ctx context.Context, typeTag string) ([]ports.AssetRef, error)

	// UserAssets resolves one identity's assets grouped by current status.
	UserAssets(ctx context.Context, seed string) (*UserAssets, error)
}
