package txbuilder

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
	"github.com/mr-tron/base58"
)

type txBuilder struct{}

func NewTxBuilder() ports.TxBuilder {
	return &txBuilder{}
}

func (b *txBuilder) BuildCreate(
	asset domain.Asset, creatorPublicKey string,
) (*domain.Transaction, error) {
	if _, err := domain.DecodePublicKey(creatorPublicKey); err != nil {
		return nil, err
	}
	if asset.Type == "" {
		return nil, fmt.Errorf("missing asset type tag")
	}

	return &domain.Transaction{
		Operation: domain.OperationCreate,
		Asset: domain.Asset{
			Type: asset.Type,
			Item: asset.Item,
		},
		Metadata: domain.Metadata{
			Status: domain.StatusUnavailable,
			Date:   time.Now().UTC(),
		},
		Outputs: []domain.Output{{PublicKey: creatorPublicKey}},
	}, nil
}

func (b *txBuilder) BuildTransfer(
	prior *domain.Transaction, outputIndex int,
	newOwnerPublicKey string, status domain.Status, seed string,
) (*domain.Transaction, error) {
	if outputIndex < 0 || outputIndex >= len(prior.Outputs) {
		return nil, fmt.Errorf(
			"%w: index %d on transaction %s with %d output(s)",
			domain.ErrInvalidOutputIndex, outputIndex, prior.ID, len(prior.Outputs),
		)
	}
	if _, err := domain.DecodePublicKey(newOwnerPublicKey); err != nil {
		return nil, err
	}

	return &domain.Transaction{
		Operation: domain.OperationTransfer,
		Asset:     domain.Asset{ID: prior.AssetID()},
		Metadata: domain.Metadata{
			Status: status,
			Seed:   seed,
			Date:   time.Now().UTC(),
		},
		Inputs:  []domain.Input{{TxID: prior.ID, OutputIndex: outputIndex}},
		Outputs: []domain.Output{{PublicKey: newOwnerPublicKey}},
	}, nil
}

func (b *txBuilder) Sign(
	tx *domain.Transaction, privateKey string,
) (*domain.Transaction, error) {
	key, err := domain.DecodePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	signed := *tx
	buf, err := signed.Canonical()
	if err != nil {
		return nil, err
	}
	signed.Signature = base58.Encode(ed25519.Sign(key, buf))

	id, err := signed.ComputeID()
	if err != nil {
		return nil, err
	}
	signed.ID = id
	return &signed, nil
}
