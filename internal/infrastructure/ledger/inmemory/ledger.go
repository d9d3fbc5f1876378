package inmemoryledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
)

// ledgerClient is a process-local ledger used by tests and dev mode. It
// enforces the same rules a real ledger node would: id integrity, signature
// verification against the consumed output, and single-spend rejection.
type ledgerClient struct {
	lock *sync.RWMutex

	txs     map[string]*domain.Transaction
	history map[string][]*domain.Transaction // asset id -> chain, oldest first
	spent   map[string]struct{}              // "txid:index"
	unspent map[string][]ports.OutputRef     // public key -> spendable outputs
	creates []*domain.Transaction            // insertion order, for search
}

func NewLedgerClient() ports.LedgerClient {
	return &ledgerClient{
		lock:    &sync.RWMutex{},
		txs:     make(map[string]*domain.Transaction),
		history: make(map[string][]*domain.Transaction),
		spent:   make(map[string]struct{}),
		unspent: make(map[string][]ports.OutputRef),
	}
}

func (l *ledgerClient) SubmitAndCommit(
	ctx context.Context, tx *domain.Transaction,
) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerTimeout, err)
	}

	if err := l.validate(tx); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerSubmit, err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.txs[tx.ID]; ok {
		return nil, fmt.Errorf("%w: duplicate transaction %s", domain.ErrLedgerSubmit, tx.ID)
	}

	switch tx.Operation {
	case domain.OperationCreate:
		if err := tx.Verify(tx.Outputs[0].PublicKey); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrLedgerSubmit, err)
		}
		l.creates = append(l.creates, tx)
		l.history[tx.ID] = []*domain.Transaction{tx}

	case domain.OperationTransfer:
		in := tx.Inputs[0]
		prior, ok := l.txs[in.TxID]
		if !ok {
			return nil, fmt.Errorf(
				"%w: input transaction %s not found", domain.ErrLedgerSubmit, in.TxID,
			)
		}
		if in.OutputIndex < 0 || in.OutputIndex >= len(prior.Outputs) {
			return nil, fmt.Errorf(
				"%w: input output index %d out of range", domain.ErrLedgerSubmit, in.OutputIndex,
			)
		}
		outpoint := outpointKey(in.TxID, in.OutputIndex)
		if _, ok := l.spent[outpoint]; ok {
			return nil, fmt.Errorf(
				"%w: output %s already spent", domain.ErrLedgerSubmit, outpoint,
			)
		}

		consumed := prior.Outputs[in.OutputIndex]
		if err := tx.Verify(consumed.PublicKey); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrLedgerSubmit, err)
		}

		chain, ok := l.history[tx.Asset.ID]
		if !ok {
			return nil, fmt.Errorf(
				"%w: unknown asset %s", domain.ErrLedgerSubmit, tx.Asset.ID,
			)
		}

		l.spent[outpoint] = struct{}{}
		l.removeUnspent(consumed.PublicKey, ports.OutputRef{
			TxID: in.TxID, OutputIndex: in.OutputIndex,
		})
		l.history[tx.Asset.ID] = append(chain, tx)
	}

	l.txs[tx.ID] = tx
	for i, out := range tx.Outputs {
		l.unspent[out.PublicKey] = append(l.unspent[out.PublicKey], ports.OutputRef{
			TxID: tx.ID, OutputIndex: i,
		})
	}
	return tx, nil
}

func (l *ledgerClient) GetTransaction(
	ctx context.Context, txID string,
) (*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerTimeout, err)
	}

	l.lock.RLock()
	defer l.lock.RUnlock()

	tx, ok := l.txs[txID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, txID)
	}
	return tx, nil
}

func (l *ledgerClient) ListHistory(
	ctx context.Context, assetID string,
) ([]*domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerTimeout, err)
	}

	l.lock.RLock()
	defer l.lock.RUnlock()

	chain, ok := l.history[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown asset %s", domain.ErrTransactionNotFound, assetID)
	}
	history := make([]*domain.Transaction, len(chain))
	copy(history, chain)
	return history, nil
}

func (l *ledgerClient) ListUnspentOutputs(
	ctx context.Context, publicKey string,
) ([]ports.OutputRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerTimeout, err)
	}

	l.lock.RLock()
	defer l.lock.RUnlock()

	outputs := make([]ports.OutputRef, len(l.unspent[publicKey]))
	copy(outputs, l.unspent[publicKey])
	return outputs, nil
}

func (l *ledgerClient) SearchAssetsByType(
	ctx context.Context, typeTag string,
) ([]ports.AssetRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerTimeout, err)
	}

	l.lock.RLock()
	defer l.lock.RUnlock()

	refs := make([]ports.AssetRef, 0)
	for _, tx := range l.creates {
		if tx.Asset.Type == typeTag {
			refs = append(refs, ports.AssetRef{ID: tx.ID, Asset: tx.Asset})
		}
	}
	return refs, nil
}

// validate checks the structural rules common to both operations before
// taking the write lock.
func (l *ledgerClient) validate(tx *domain.Transaction) error {
	if len(tx.Outputs) != 1 {
		return fmt.Errorf("want exactly 1 output, got %d", len(tx.Outputs))
	}

	id, err := tx.ComputeID()
	if err != nil {
		return err
	}
	if tx.ID != id {
		return fmt.Errorf("transaction id mismatch: declared %s, computed %s", tx.ID, id)
	}

	switch tx.Operation {
	case domain.OperationCreate:
		if len(tx.Inputs) != 0 {
			return fmt.Errorf("create transaction must not have inputs")
		}
	case domain.OperationTransfer:
		if len(tx.Inputs) != 1 {
			return fmt.Errorf("want exactly 1 input, got %d", len(tx.Inputs))
		}
		if tx.Asset.ID == "" {
			return fmt.Errorf("transfer transaction missing asset id")
		}
	default:
		return fmt.Errorf("unknown operation %q", tx.Operation)
	}
	return nil
}

func (l *ledgerClient) removeUnspent(publicKey string, ref ports.OutputRef) {
	outputs := l.unspent[publicKey]
	for i, candidate := range outputs {
		if candidate == ref {
			l.unspent[publicKey] = append(outputs[:i], outputs[i+1:]...)
			return
		}
	}
}

func outpointKey(txID string, index int) string {
	return fmt.Sprintf("%s:%d", txID, index)
}
