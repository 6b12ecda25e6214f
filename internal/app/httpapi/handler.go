// Package httpapi exposes the engine over REST. Handlers stay thin: decode,
// delegate to a service, encode.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	debtdomain "github.com/terangapay/ledger-engine/internal/app/domain/debt"
	feedomain "github.com/terangapay/ledger-engine/internal/app/domain/fee"
	journaldomain "github.com/terangapay/ledger-engine/internal/app/domain/journal"
	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/identity"
	"github.com/terangapay/ledger-engine/internal/app/metrics"
	"github.com/terangapay/ledger-engine/internal/app/services/debts"
	"github.com/terangapay/ledger-engine/internal/app/services/tontine"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage"
	"github.com/terangapay/ledger-engine/pkg/logger"
)

// Config tunes the API surface.
type Config struct {
	RateLimit float64
	RateBurst int
}

// Handler owns the router and its collaborators.
type Handler struct {
	store    storage.Store
	transfer *transfer.Service
	tontines *tontine.Service
	debts    *debts.Service
	verifier *identity.Verifier
	limiter  *rate.Limiter
	log      *logger.Logger
}

// New wires the REST surface.
func New(store storage.Store, transferSvc *transfer.Service, tontineSvc *tontine.Service,
	debtSvc *debts.Service, verifier *identity.Verifier, cfg Config, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		store:    store,
		transfer: transferSvc,
		tontines: tontineSvc,
		debts:    debtSvc,
		verifier: verifier,
		limiter:  newLimiter(cfg.RateLimit, cfg.RateBurst),
		log:      log,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(h.logRequests), mux.MiddlewareFunc(h.throttle))

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(mux.MiddlewareFunc(h.authenticate))

	api.HandleFunc("/wallets", h.createWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{id}", h.getWallet).Methods(http.MethodGet)
	api.HandleFunc("/wallets/{id}/credit", h.creditWallet).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{id}/debit", h.debitWallet).Methods(http.MethodPost)

	api.HandleFunc("/transfers", h.createTransfer).Methods(http.MethodPost)
	api.HandleFunc("/merchant-payments", h.createMerchantPayment).Methods(http.MethodPost)
	api.HandleFunc("/journal", h.listJournal).Methods(http.MethodGet)

	api.HandleFunc("/debts", h.listDebts).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id}/rejections", h.recordRejection).Methods(http.MethodPost)

	h.tontineRoutes(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(h.requireAdmin))
	admin.HandleFunc("/tiers", h.createTier).Methods(http.MethodPost)
	admin.HandleFunc("/tiers", h.listTiers).Methods(http.MethodGet)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- wallets ---

type createWalletRequest struct {
	OwnerID   string `json:"owner_id"`
	OwnerKind string `json:"owner_kind"`
	Reference string `json:"reference"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
}

func (h *Handler) createWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	balance := decimal.Zero
	if req.Balance != "" {
		var err error
		if balance, err = decimal.NewFromString(req.Balance); err != nil {
			badRequest(w, err)
			return
		}
	}
	kind := wallet.OwnerKind(req.OwnerKind)
	if kind == "" {
		kind = wallet.OwnerUser
	}
	created, err := h.store.CreateWallet(r.Context(), wallet.Wallet{
		OwnerID:   req.OwnerID,
		OwnerKind: kind,
		Reference: req.Reference,
		Balance:   balance,
		Currency:  req.Currency,
		Status:    wallet.StatusActive,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	found, err := h.transfer.Wallet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

type movementRequest struct {
	Amount   string `json:"amount"`
	Type     string `json:"type"`
	Method   string `json:"method"`
	Provider string `json:"provider"`
}

func (h *Handler) creditWallet(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.transfer.CreditWallet)
}

func (h *Handler) debitWallet(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.transfer.DebitWallet)
}

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request,
	move func(ctx context.Context, walletID string, amount decimal.Decimal, opts transfer.Options) (transfer.Result, error)) {
	var req movementRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := move(r.Context(), mux.Vars(r)["id"], amount, transfer.Options{
		Type:     journaldomain.EntryType(req.Type),
		Method:   req.Method,
		Provider: req.Provider,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- transfers ---

type transferRequest struct {
	FromWalletID string `json:"from_wallet_id"`
	ToWalletID   string `json:"to_wallet_id"`
	Amount       string `json:"amount"`
	Type         string `json:"type"`
	Method       string `json:"method"`
	Provider     string `json:"provider"`
	ChargeFee    bool   `json:"charge_fee"`
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := h.transfer.Transfer(r.Context(), req.FromWalletID, req.ToWalletID, amount, transfer.Options{
		Type:      journaldomain.EntryType(req.Type),
		Method:    req.Method,
		Provider:  req.Provider,
		ChargeFee: req.ChargeFee,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createMerchantPayment(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}
	result, err := h.transfer.TransferFromMerchant(r.Context(), req.FromWalletID, req.ToWalletID, amount, transfer.Options{
		Type:     journaldomain.EntryType(req.Type),
		Method:   req.Method,
		Provider: req.Provider,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- journal ---

func (h *Handler) listJournal(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFrom(r.Context())
	q := r.URL.Query()

	f := journaldomain.Filter{
		ActorID: actor.UserID,
		Type:    journaldomain.EntryType(q.Get("type")),
		Status:  journaldomain.EntryStatus(q.Get("status")),
	}
	// admins may audit any actor
	if actor.Admin() && q.Get("actor_id") != "" {
		f.ActorID = q.Get("actor_id")
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, err)
			return
		}
		f.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, err)
			return
		}
		f.To = t
	}

	entries, err := h.transfer.Journal(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- debts ---

func (h *Handler) listDebts(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFrom(r.Context())
	userID := actor.UserID
	if actor.Admin() && r.URL.Query().Get("user_id") != "" {
		userID = r.URL.Query().Get("user_id")
	}
	list, err := h.debts.List(r.Context(), h.store, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type rejectionRequest struct {
	Amount string `json:"amount"`
	Label  string `json:"label"`
}

func (h *Handler) recordRejection(w http.ResponseWriter, r *http.Request) {
	var req rejectionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(w, err)
		return
	}

	cardID := mux.Vars(r)["id"]
	var created debtdomain.Debt
	err = h.store.Atomic(r.Context(), func(ctx context.Context, tx storage.Tx) error {
		created, err = h.debts.RecordRejectedPayment(ctx, tx, cardID, amount, req.Label)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// --- commission tiers ---

type tierRequest struct {
	Min     string `json:"min"`
	Max     string `json:"max"`
	Percent string `json:"percent"`
	Flat    string `json:"flat"`
}

func (h *Handler) createTier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	tier := feedomain.CommissionTier{}
	var err error
	if tier.Min, err = decimal.NewFromString(req.Min); err != nil {
		badRequest(w, err)
		return
	}
	if tier.Max, err = decimal.NewFromString(req.Max); err != nil {
		badRequest(w, err)
		return
	}
	if req.Percent != "" {
		if tier.Percent, err = decimal.NewFromString(req.Percent); err != nil {
			badRequest(w, err)
			return
		}
	}
	if req.Flat != "" {
		if tier.Flat, err = decimal.NewFromString(req.Flat); err != nil {
			badRequest(w, err)
			return
		}
	}
	created, err := h.store.CreateTier(r.Context(), tier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.store.ListTiers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}
