package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
	log "github.com/sirupsen/logrus"
)

// Transfers always consume output 0: the single-owner model produces exactly
// one output per transaction.
const ownerOutputIndex = 0

type custodyService struct {
	ledger    ports.LedgerClient
	builder   ports.TxBuilder
	assetType string
}

func NewCustodyService(
	ledger ports.LedgerClient, builder ports.TxBuilder, assetType string,
) CustodyService {
	return &custodyService{
		ledger:    ledger,
		builder:   builder,
		assetType: assetType,
	}
}

func (s *custodyService) RegisterAsset(
	ctx context.Context, ownerSeed string, item json.RawMessage,
) (string, error) {
	owner, err := domain.NewKeypair(ownerSeed)
	if err != nil {
		return "", err
	}

	tx, err := s.builder.BuildCreate(
		domain.Asset{Type: s.assetType, Item: item}, owner.PublicKey,
	)
	if err != nil {
		return "", err
	}

	signedTx, err := s.builder.Sign(tx, owner.PrivateKey)
	if err != nil {
		return "", err
	}

	committed, err := s.ledger.SubmitAndCommit(ctx, signedTx)
	if err != nil {
		return "", err
	}

	log.WithField("tx", committed.ID).Debug("registered new asset")
	return committed.ID, nil
}

func (s *custodyService) Offer(ctx context.Context, ownerSeed, txID string) (string, error) {
	latest, err := s.latestTransaction(ctx, txID)
	if err != nil {
		return "", err
	}
	if err := guardTransition(latest, domain.StatusAvailable); err != nil {
		return "", err
	}

	owner, err := domain.NewKeypair(ownerSeed)
	if err != nil {
		return "", err
	}

	// Record the seed so reserve/confirm can act on the owner's behalf.
	return s.transfer(ctx, latest, owner, owner.PublicKey, domain.StatusAvailable, ownerSeed)
}

func (s *custodyService) Reserve(ctx context.Context, txID string) (string, error) {
	latest, err := s.latestTransaction(ctx, txID)
	if err != nil {
		return "", err
	}
	if err := guardTransition(latest, domain.StatusPending); err != nil {
		return "", err
	}

	owner, err := s.actingOwner(latest)
	if err != nil {
		return "", err
	}

	return s.transfer(ctx, latest, owner, owner.PublicKey, domain.StatusPending, latest.Metadata.Seed)
}

func (s *custodyService) Confirm(
	ctx context.Context, newOwnerSeed, txID string,
) (string, error) {
	latest, err := s.latestTransaction(ctx, txID)
	if err != nil {
		return "", err
	}
	if err := guardTransition(latest, domain.StatusUnavailable); err != nil {
		return "", err
	}

	owner, err := s.actingOwner(latest)
	if err != nil {
		return "", err
	}
	newOwner, err := domain.NewKeypair(newOwnerSeed)
	if err != nil {
		return "", err
	}

	// The previous owner signs, the new owner receives the output. The seed
	// is not carried past the handover.
	return s.transfer(ctx, latest, owner, newOwner.PublicKey, domain.StatusUnavailable, "")
}

// latestTransaction resolves any transaction id of a chain to the chain's
// newest transaction, the one holding the current unspent output.
func (s *custodyService) latestTransaction(
	ctx context.Context, txID string,
) (*domain.Transaction, error) {
	tx, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	history, err := s.ledger.ListHistory(ctx, tx.AssetID())
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty history for asset %s", domain.ErrTransactionNotFound, tx.AssetID())
	}
	return history[len(history)-1], nil
}

func (s *custodyService) transfer(
	ctx context.Context, prior *domain.Transaction, signer domain.Keypair,
	recipientPublicKey string, status domain.Status, seed string,
) (string, error) {
	tx, err := s.builder.BuildTransfer(prior, ownerOutputIndex, recipientPublicKey, status, seed)
	if err != nil {
		return "", err
	}

	signedTx, err := s.builder.Sign(tx, signer.PrivateKey)
	if err != nil {
		return "", err
	}

	committed, err := s.ledger.SubmitAndCommit(ctx, signedTx)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"tx":     committed.ID,
		"asset":  committed.Asset.ID,
		"status": status,
	}).Debug("custody transition committed")
	return committed.ID, nil
}

// actingOwner re-derives the signing identity from the seed a prior offer
// recorded in plaintext metadata.
func (s *custodyService) actingOwner(latest *domain.Transaction) (domain.Keypair, error) {
	if latest.Metadata.Seed == "" {
		return domain.Keypair{}, fmt.Errorf(
			"%w: no acting owner seed recorded on transaction %s",
			domain.ErrInvalidSeed, latest.ID,
		)
	}
	return domain.NewKeypair(latest.Metadata.Seed)
}

// guardTransition enforces the lifecycle locally: the ledger stores status
// as opaque metadata and accepts any value.
func guardTransition(latest *domain.Transaction, next domain.Status) error {
	current := latest.Metadata.Status
	if !current.Next(next) {
		return fmt.Errorf(
			"%w: %s -> %s on asset %s",
			domain.ErrIllegalTransition, current, next, latest.AssetID(),
		)
	}
	return nil
}
