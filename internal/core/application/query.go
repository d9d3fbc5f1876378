package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

const (
	// maxConcurrentFetches bounds the per-asset fan-out against the ledger.
	maxConcurrentFetches = 8

	createCacheTTL     = 10 * time.Minute
	createCacheCleanup = 30 * time.Minute
)

type queryService struct {
	ledger ports.LedgerClient

	// CREATE transactions are immutable, so resolving an asset id back to
	// its originating transaction is safe to cache.
	createCache *cache.Cache
}

func NewQueryService(ledger ports.LedgerClient) QueryService {
	return &queryService{
		ledger:      ledger,
		createCache: cache.New(createCacheTTL, createCacheCleanup),
	}
}

func (s *queryService) CurrentStatus(ctx context.Context, txID string) (domain.Status, error) {
	tx, err := s.ledger.GetTransaction(ctx, txID)
	if err != nil {
		return "", err
	}

	latest, err := s.latestTransaction(ctx, tx.AssetID())
	if err != nil {
		return "", err
	}
	return latest.Metadata.Status, nil
}

func (s *queryService) AssetsByStatus(
	ctx context.Context, assetIDs []string, status domain.Status,
) ([]*domain.Transaction, error) {
	latest := s.fanOutLatest(ctx, assetIDs)

	matches := make([]*domain.Transaction, 0, len(assetIDs))
	for _, tx := range latest {
		if tx != nil && tx.Metadata.Status == status {
			matches = append(matches, tx)
		}
	}
	return matches, nil
}

func (s *queryService) AssetsOwnedBy(ctx context.Context, seed string) ([]AssetSummary, error) {
	owner, err := domain.NewKeypair(seed)
	if err != nil {
		return nil, err
	}

	outputs, err := s.ledger.ListUnspentOutputs(ctx, owner.PublicKey)
	if err != nil {
		return nil, err
	}

	summaries := make([]AssetSummary, len(outputs))
	found := make([]bool, len(outputs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFetches)
	for i, ref := range outputs {
		wg.Add(1)
		go func(i int, ref ports.OutputRef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			summary, err := s.resolveOutput(ctx, ref)
			if err != nil {
				// A single unresolvable output must not fail the listing.
				log.WithError(err).WithField("tx", ref.TxID).
					Warn("skipping unresolvable unspent output")
				return
			}
			summaries[i] = summary
			found[i] = true
		}(i, ref)
	}
	wg.Wait()

	resolved := make([]AssetSummary, 0, len(outputs))
	for i, ok := range found {
		if ok {
			resolved = append(resolved, summaries[i])
		}
	}
	return resolved, nil
}

func (s *queryService) AllAssetsByType(
	ctx context.Context, typeTag string,
) ([]ports.AssetRef, error) {
	return s.ledger.SearchAssetsByType(ctx, typeTag)
}

func (s *queryService) UserAssets(ctx context.Context, seed string) (*UserAssets, error) {
	owned, err := s.AssetsOwnedBy(ctx, seed)
	if err != nil {
		return nil, err
	}

	assetIDs := make([]string, 0, len(owned))
	for _, summary := range owned {
		assetIDs = append(assetIDs, summary.AssetID)
	}

	grouped := &UserAssets{
		Unavailable: make([]*domain.Transaction, 0),
		Available:   make([]*domain.Transaction, 0),
		Pending:     make([]*domain.Transaction, 0),
	}
	for _, tx := range s.fanOutLatest(ctx, assetIDs) {
		if tx == nil {
			continue
		}
		switch tx.Metadata.Status {
		case domain.StatusUnavailable:
			grouped.Unavailable = append(grouped.Unavailable, tx)
		case domain.StatusAvailable:
			grouped.Available = append(grouped.Available, tx)
		case domain.StatusPending:
			grouped.Pending = append(grouped.Pending, tx)
		}
	}
	return grouped, nil
}

// fanOutLatest fetches each asset's latest transaction concurrently, one
// slot per asset. Failed fetches leave a nil slot instead of failing the
// batch, so the aggregate latency is the slowest fetch, not the sum.
func (s *queryService) fanOutLatest(
	ctx context.Context, assetIDs []string,
) []*domain.Transaction {
	latest := make([]*domain.Transaction, len(assetIDs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFetches)
	for i, assetID := range assetIDs {
		wg.Add(1)
		go func(i int, assetID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			tx, err := s.latestTransaction(ctx, assetID)
			if err != nil {
				log.WithError(err).WithField("asset", assetID).
					Warn("skipping asset with unresolvable history")
				return
			}
			latest[i] = tx
		}(i, assetID)
	}
	wg.Wait()

	return latest
}

// latestTransaction trusts the ledger contract that history comes back in
// causal order, oldest first, and takes the last element.
func (s *queryService) latestTransaction(
	ctx context.Context, assetID string,
) (*domain.Transaction, error) {
	history, err := s.ledger.ListHistory(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty history for asset %s", domain.ErrTransactionNotFound, assetID)
	}
	return history[len(history)-1], nil
}

// resolveOutput walks an unspent output back to the originating CREATE
// transaction of its asset. CREATE transactions resolve directly; TRANSFER
// transactions resolve via their referenced asset id.
func (s *queryService) resolveOutput(
	ctx context.Context, ref ports.OutputRef,
) (AssetSummary, error) {
	tx, err := s.ledger.GetTransaction(ctx, ref.TxID)
	if err != nil {
		return AssetSummary{}, err
	}

	createTx, err := s.originatingCreate(ctx, tx.AssetID())
	if err != nil {
		return AssetSummary{}, err
	}
	return AssetSummary{AssetID: createTx.ID, Item: createTx.Asset.Item}, nil
}

func (s *queryService) originatingCreate(
	ctx context.Context, assetID string,
) (*domain.Transaction, error) {
	if cached, ok := s.createCache.Get(assetID); ok {
		return cached.(*domain.Transaction), nil
	}

	tx, err := s.ledger.GetTransaction(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if tx.Operation != domain.OperationCreate {
		return nil, fmt.Errorf("transaction %s is not an asset root", assetID)
	}

	s.createCache.SetDefault(assetID, tx)
	return tx, nil
}
