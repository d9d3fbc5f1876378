package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buffalonetwork/custodyd/internal/core/application"
	"github.com/buffalonetwork/custodyd/internal/core/domain"
	inmemoryledger "github.com/buffalonetwork/custodyd/internal/infrastructure/ledger/inmemory"
	txbuilder "github.com/buffalonetwork/custodyd/internal/infrastructure/tx-builder/ed25519"
	"github.com/stretchr/testify/require"
)

const testAssetType = "pallet"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ledger := inmemoryledger.NewLedgerClient()
	builder := txbuilder.NewTxBuilder()
	custodySvc := application.NewCustodyService(ledger, builder, testAssetType)
	querySvc := application.NewQueryService(ledger)

	srv := httptest.NewServer(newRouter(newHandler(custodySvc, querySvc, testAssetType)))
	t.Cleanup(srv.Close)
	return srv
}

func TestGiveProduct(t *testing.T) {
	srv := newTestServer(t)

	id := postOK(t, srv, "/api/product/give", `{"seed":"alice","product":{"name":"pallet-12"}}`)
	require.NotEmpty(t, id)

	// give registers and immediately offers, so the asset shows up available
	assets := getUserAssets(t, srv, "alice")
	require.Len(t, assets.Available, 1)
	require.Empty(t, assets.Unavailable)
	require.Empty(t, assets.Pending)
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	offerID := postOK(t, srv, "/api/product/give", `{"seed":"alice","product":{"name":"pallet-12"}}`)

	pendingID := postOK(t, srv, "/api/product/pending",
		fmt.Sprintf(`{"transactionId":%q}`, offerID))
	assets := getUserAssets(t, srv, "alice")
	require.Len(t, assets.Pending, 1)

	confirmID := postOK(t, srv, "/api/product/confirm",
		fmt.Sprintf(`{"newOwner":"bob","transactionId":%q}`, pendingID))
	require.NotEmpty(t, confirmID)

	bobAssets := getUserAssets(t, srv, "bob")
	require.Len(t, bobAssets.Unavailable, 1)
	aliceAssets := getUserAssets(t, srv, "alice")
	require.Empty(t, aliceAssets.Unavailable)
	require.Empty(t, aliceAssets.Available)
	require.Empty(t, aliceAssets.Pending)

	// return puts the asset back on offer, now under bob's custody
	returnID := postOK(t, srv, "/api/product/return",
		fmt.Sprintf(`{"seed":"bob","transactionId":%q}`, confirmID))
	require.NotEmpty(t, returnID)
	bobAssets = getUserAssets(t, srv, "bob")
	require.Len(t, bobAssets.Available, 1)
}

func TestAvailableProducts(t *testing.T) {
	srv := newTestServer(t)

	postOK(t, srv, "/api/product/give", `{"seed":"alice","product":{"name":"pallet-1"}}`)
	postOK(t, srv, "/api/product/give", `{"seed":"bob","product":{"name":"pallet-2"}}`)

	resp, err := http.Get(srv.URL + "/api/products/available")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	available := make([]*domain.Transaction, 0)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&available))
	require.Len(t, available, 2)
}

func TestUserKeypair(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/user/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	kp := domain.Keypair{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&kp))

	expected, err := domain.NewKeypair("alice")
	require.NoError(t, err)
	require.Equal(t, expected, kp)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	offerID := postOK(t, srv, "/api/product/give", `{"seed":"alice","product":{"name":"pallet-12"}}`)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{
			name:       "unknown transaction",
			path:       "/api/product/pending",
			body:       `{"transactionId":"no-such-tx"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "illegal transition",
			path:       "/api/product/return",
			body:       fmt.Sprintf(`{"seed":"alice","transactionId":%q}`, offerID),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "malformed body",
			path:       "/api/product/give",
			body:       `{"seed":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing product",
			path:       "/api/product/give",
			body:       `{"seed":"alice"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resp, err := http.Post(
				srv.URL+test.path, "application/json", bytes.NewReader([]byte(test.body)),
			)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, test.wantStatus, resp.StatusCode)
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/user/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/user/alice", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "my-id")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "my-id", resp.Header.Get("X-Request-Id"))
}

func postOK(t *testing.T, srv *httptest.Server, path, body string) string {
	t.Helper()

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := transactionResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res.ID
}

func getUserAssets(t *testing.T, srv *httptest.Server, seed string) *application.UserAssets {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/products/" + seed)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assets := &application.UserAssets{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(assets))
	return assets
}
