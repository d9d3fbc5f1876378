package application_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/buffalonetwork/custodyd/internal/core/application"
	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
	inmemoryledger "github.com/buffalonetwork/custodyd/internal/infrastructure/ledger/inmemory"
	txbuilder "github.com/buffalonetwork/custodyd/internal/infrastructure/tx-builder/ed25519"
	"github.com/stretchr/testify/require"
)

const testAssetType = "pallet"

func TestRegisterAsset(t *testing.T) {
	svc, query, _ := newTestServices(t)
	ctx := context.Background()

	txID, err := svc.RegisterAsset(ctx, "alice", json.RawMessage(`{"name":"pallet-12"}`))
	require.NoError(t, err)
	require.NotEmpty(t, txID)

	status, err := query.CurrentStatus(ctx, txID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnavailable, status)

	owned, err := query.AssetsOwnedBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, txID, owned[0].AssetID)
	require.JSONEq(t, `{"name":"pallet-12"}`, string(owned[0].Item))
}

func TestFullLifecycle(t *testing.T) {
	svc, query, ledger := newTestServices(t)
	ctx := context.Background()

	createID, err := svc.RegisterAsset(ctx, "alice", json.RawMessage(`{"name":"pallet-12"}`))
	require.NoError(t, err)

	offerID, err := svc.Offer(ctx, "alice", createID)
	require.NoError(t, err)
	requireStatus(t, query, offerID, domain.StatusAvailable)

	reserveID, err := svc.Reserve(ctx, offerID)
	require.NoError(t, err)
	requireStatus(t, query, reserveID, domain.StatusPending)

	confirmID, err := svc.Confirm(ctx, "bob", reserveID)
	require.NoError(t, err)
	requireStatus(t, query, confirmID, domain.StatusUnavailable)

	// ownership moved to bob
	bobAssets, err := query.AssetsOwnedBy(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobAssets, 1)
	require.Equal(t, createID, bobAssets[0].AssetID)

	aliceAssets, err := query.AssetsOwnedBy(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, aliceAssets)

	// the unspent output is bound to bob's derived key
	bob, err := domain.NewKeypair("bob")
	require.NoError(t, err)
	outputs, err := ledger.ListUnspentOutputs(ctx, bob.PublicKey)
	require.NoError(t, err)
	require.Equal(t, []ports.OutputRef{{TxID: confirmID, OutputIndex: 0}}, outputs)
}

func TestOperationsAcceptAnyChainTxID(t *testing.T) {
	svc, _, _ := newTestServices(t)
	ctx := context.Background()

	createID, err := svc.RegisterAsset(ctx, "alice", json.RawMessage(`{"name":"pallet-12"}`))
	require.NoError(t, err)

	_, err = svc.Offer(ctx, "alice", createID)
	require.NoError(t, err)

	// reserve addressed via the CREATE id still chains onto the latest tx
	reserveID, err := svc.Reserve(ctx, createID)
	require.NoError(t, err)
	require.NotEmpty(t, reserveID)
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(t *testing.T, svc application.CustodyService, createID string) error
	}{
		{
			name: "offer twice",
			run: func(t *testing.T, svc application.CustodyService, createID string) error {
				_, err := svc.Offer(ctx, "alice", createID)
				require.NoError(t, err)
				_, err = svc.Offer(ctx, "alice", createID)
				return err
			},
		},
		{
			name: "reserve before offer",
			run: func(t *testing.T, svc application.CustodyService, createID string) error {
				_, err := svc.Reserve(ctx, createID)
				return err
			},
		},
		{
			name: "confirm before reserve",
			run: func(t *testing.T, svc application.CustodyService, createID string) error {
				_, err := svc.Offer(ctx, "alice", createID)
				require.NoError(t, err)
				_, err = svc.Confirm(ctx, "bob", createID)
				return err
			},
		},
		{
			name: "reserve twice",
			run: func(t *testing.T, svc application.CustodyService, createID string) error {
				_, err := svc.Offer(ctx, "alice", createID)
				require.NoError(t, err)
				_, err = svc.Reserve(ctx, createID)
				require.NoError(t, err)
				_, err = svc.Reserve(ctx, createID)
				return err
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ledger := &countingLedger{LedgerClient: inmemoryledger.NewLedgerClient()}
			svc := application.NewCustodyService(ledger, txbuilder.NewTxBuilder(), testAssetType)

			createID, err := svc.RegisterAsset(ctx, "alice", json.RawMessage(`{"name":"pallet-12"}`))
			require.NoError(t, err)

			submitsBefore := ledger.submits.Load()
			err = test.run(t, svc, createID)
			require.ErrorIs(t, err, domain.ErrIllegalTransition)

			// the guard fires before any transaction is built: the failing
			// step must not have reached the ledger
			submitsAfter := ledger.submits.Load()
			require.Equal(t, countLegalSubmits(test.name), submitsAfter-submitsBefore)
		})
	}
}

func TestOfferUnknownTransaction(t *testing.T) {
	svc, _, _ := newTestServices(t)

	_, err := svc.Offer(context.Background(), "alice", "no-such-tx")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestReserveWithoutRecordedSeed(t *testing.T) {
	ledger := inmemoryledger.NewLedgerClient()
	builder := txbuilder.NewTxBuilder()
	svc := application.NewCustodyService(ledger, builder, testAssetType)
	ctx := context.Background()

	createID, err := svc.RegisterAsset(ctx, "alice", json.RawMessage(`{"name":"pallet-12"}`))
	require.NoError(t, err)

	// hand-craft an available transition that omits the seed
	alice, err := domain.NewKeypair("alice")
	require.NoError(t, err)
	createTx, err := ledger.GetTransaction(ctx, createID)
	require.NoError(t, err)
	transferTx, err := builder.BuildTransfer(
		createTx, 0, alice.PublicKey, domain.StatusAvailable, "",
	)
	require.NoError(t, err)
	signedTx, err := builder.Sign(transferTx, alice.PrivateKey)
	require.NoError(t, err)
	_, err = ledger.SubmitAndCommit(ctx, signedTx)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, createID)
	require.ErrorIs(t, err, domain.ErrInvalidSeed)
}

func TestInvalidOwnerSeed(t *testing.T) {
	svc, _, _ := newTestServices(t)

	_, err := svc.RegisterAsset(
		context.Background(), string([]byte{0xff, 0xfe}), json.RawMessage(`{}`),
	)
	require.ErrorIs(t, err, domain.ErrInvalidSeed)
}

// countingLedger wraps a LedgerClient and counts submits.
type countingLedger struct {
	ports.LedgerClient
	submits atomic.Int64
}

func (l *countingLedger) SubmitAndCommit(
	ctx context.Context, tx *domain.Transaction,
) (*domain.Transaction, error) {
	l.submits.Add(1)
	return l.LedgerClient.SubmitAndCommit(ctx, tx)
}

func countLegalSubmits(testName string) int64 {
	switch testName {
	case "offer twice", "confirm before reserve":
		return 1 // the initial legal offer
	case "reserve twice":
		return 2 // offer + first reserve
	default:
		return 0
	}
}

func requireStatus(
	t *testing.T, query application.QueryService, txID string, want domain.Status,
) {
	t.Helper()

	status, err := query.CurrentStatus(context.Background(), txID)
	require.NoError(t, err)
	require.Equal(t, want, status)
}

func newTestServices(t *testing.T) (
	application.CustodyService, application.QueryService, ports.LedgerClient,
) {
	t.Helper()

	ledger := inmemoryledger.NewLedgerClient()
	builder := txbuilder.NewTxBuilder()
	return application.NewCustodyService(ledger, builder, testAssetType),
		application.NewQueryService(ledger), ledger
}
