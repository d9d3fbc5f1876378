package httpledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL is the ledger node root, e.g. http://localhost:9984.
	BaseURL string
	// Timeout caps every ledger call unless the caller's context carries an
	// earlier deadline.
	Timeout time.Duration
}

type ledgerClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewLedgerClient returns a LedgerClient speaking the ledger node's REST
// API. The client is stateless across calls and safe for concurrent use.
func NewLedgerClient(cfg Config) (ports.LedgerClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing ledger url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ledgerClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}, nil
}

func (l *ledgerClient) SubmitAndCommit(
	ctx context.Context, tx *domain.Transaction,
) (*domain.Transaction, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	resp, err := l.do(ctx, http.MethodPost, "/v1/transactions?mode=commit", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf(
			"%w: node answered %d: %s", domain.ErrLedgerSubmit, resp.StatusCode, readBody(resp),
		)
	}

	committed := &domain.Transaction{}
	if err := json.NewDecoder(resp.Body).Decode(committed); err != nil {
		return nil, fmt.Errorf("%w: decode commit response: %s", domain.ErrLedgerSubmit, err)
	}
	return committed, nil
}

func (l *ledgerClient) GetTransaction(
	ctx context.Context, txID string,
) (*domain.Transaction, error) {
	resp, err := l.do(ctx, http.MethodGet, "/v1/transactions/"+url.PathEscape(txID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, txID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readErr(resp)
	}

	tx := &domain.Transaction{}
	if err := json.NewDecoder(resp.Body).Decode(tx); err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %s", domain.ErrLedgerRead, err)
	}
	return tx, nil
}

func (l *ledgerClient) ListHistory(
	ctx context.Context, assetID string,
) ([]*domain.Transaction, error) {
	resp, err := l.do(
		ctx, http.MethodGet, "/v1/transactions?asset_id="+url.QueryEscape(assetID), nil,
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: unknown asset %s", domain.ErrTransactionNotFound, assetID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, readErr(resp)
	}

	// The node returns the chain in causal order, oldest first.
	history := make([]*domain.Transaction, 0)
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("%w: decode history: %s", domain.ErrLedgerRead, err)
	}
	return history, nil
}

func (l *ledgerClient) ListUnspentOutputs(
	ctx context.Context, publicKey string,
) ([]ports.OutputRef, error) {
	resp, err := l.do(
		ctx, http.MethodGet,
		"/v1/outputs?spent=false&public_key="+url.QueryEscape(publicKey), nil,
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readErr(resp)
	}

	outputs := make([]ports.OutputRef, 0)
	if err := json.NewDecoder(resp.Body).Decode(&outputs); err != nil {
		return nil, fmt.Errorf("%w: decode outputs: %s", domain.ErrLedgerRead, err)
	}
	return outputs, nil
}

func (l *ledgerClient) SearchAssetsByType(
	ctx context.Context, typeTag string,
) ([]ports.AssetRef, error) {
	resp, err := l.do(ctx, http.MethodGet, "/v1/assets?search="+url.QueryEscape(typeTag), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readErr(resp)
	}

	refs := make([]ports.AssetRef, 0)
	if err := json.NewDecoder(resp.Body).Decode(&refs); err != nil {
		return nil, fmt.Errorf("%w: decode assets: %s", domain.ErrLedgerRead, err)
	}
	return refs, nil
}

func (l *ledgerClient) do(
	ctx context.Context, method, path string, body []byte,
) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", domain.ErrLedgerTimeout, method, path)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerRead, err)
	}
	// The response body must outlive the per-call context.
	buf, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", domain.ErrLedgerTimeout, method, path)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrLedgerRead, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return resp, nil
}

func readErr(resp *http.Response) error {
	return fmt.Errorf(
		"%w: node answered %d: %s", domain.ErrLedgerRead, resp.StatusCode, readBody(resp),
	)
}

func readBody(resp *http.Response) string {
	buf, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(buf))
}
