package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/buffalonetwork/custodyd/internal/core/application"
	"github.com/buffalonetwork/custodyd/internal/core/domain"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type handler struct {
	custody   application.CustodyService
	query     application.QueryService
	assetType string
}

func newHandler(
	custodySvc application.CustodyService, querySvc application.QueryService,
	assetType string,
) *handler {
	return &handler{custody: custodySvc, query: querySvc, assetType: assetType}
}

type giveRequest struct {
	Seed    string          `json:"seed"`
	Product json.RawMessage `json:"product"`
}

type returnRequest struct {
	Seed          string `json:"seed"`
	TransactionID string `json:"transactionId"`
}

type pendingRequest struct {
	TransactionID string `json:"transactionId"`
}

type confirmRequest struct {
	NewOwner      string `json:"newOwner"`
	TransactionID string `json:"transactionId"`
}

type transactionResponse struct {
	ID string `json:"id"`
}

// giveProduct registers a new asset and immediately marks it available.
func (h *handler) giveProduct(w http.ResponseWriter, r *http.Request) {
	req := giveRequest{}
	if !decodeRequest(w, r, &req) {
		return
	}
	if len(req.Product) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("missing product"))
		return
	}

	createID, err := h.custody.RegisterAsset(r.Context(), req.Seed, req.Product)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	offerID, err := h.custody.Offer(r.Context(), req.Seed, createID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{ID: offerID})
}

func (h *handler) returnProduct(w http.ResponseWriter, r *http.Request) {
	req := returnRequest{}
	if !decodeRequest(w, r, &req) {
		return
	}

	offerID, err := h.custody.Offer(r.Context(), req.Seed, req.TransactionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{ID: offerID})
}

func (h *handler) pendingProduct(w http.ResponseWriter, r *http.Request) {
	req := pendingRequest{}
	if !decodeRequest(w, r, &req) {
		return
	}

	reserveID, err := h.custody.Reserve(r.Context(), req.TransactionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{ID: reserveID})
}

func (h *handler) confirmProduct(w http.ResponseWriter, r *http.Request) {
	req := confirmRequest{}
	if !decodeRequest(w, r, &req) {
		return
	}

	confirmID, err := h.custody.Confirm(r.Context(), req.NewOwner, req.TransactionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionResponse{ID: confirmID})
}

func (h *handler) userProducts(w http.ResponseWriter, r *http.Request) {
	seed := mux.Vars(r)["seed"]

	assets, err := h.query.UserAssets(r.Context(), seed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handler) availableProducts(w http.ResponseWriter, r *http.Request) {
	refs, err := h.query.AllAssetsByType(r.Context(), h.assetType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	assetIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		assetIDs = append(assetIDs, ref.ID)
	}

	available, err := h.query.AssetsByStatus(r.Context(), assetIDs, domain.StatusAvailable)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, available)
}

func (h *handler) userKeypair(w http.ResponseWriter, r *http.Request) {
	keypair, err := domain.NewKeypair(mux.Vars(r)["seed"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keypair)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

// writeServiceError translates the core error taxonomy into HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidSeed),
		errors.Is(err, domain.ErrInvalidOutputIndex):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrIllegalTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrLedgerTimeout):
		writeError(w, http.StatusGatewayTimeout, err)
	case errors.Is(err, domain.ErrLedgerSubmit),
		errors.Is(err, domain.ErrLedgerRead):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}
