package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/terangapay/ledger-engine/internal/app/domain/wallet"
	"github.com/terangapay/ledger-engine/internal/app/identity"
	"github.com/terangapay/ledger-engine/internal/app/services/debts"
	"github.com/terangapay/ledger-engine/internal/app/services/fees"
	"github.com/terangapay/ledger-engine/internal/app/services/journal"
	"github.com/terangapay/ledger-engine/internal/app/services/ledger"
	"github.com/terangapay/ledger-engine/internal/app/services/tontine"
	"github.com/terangapay/ledger-engine/internal/app/services/transfer"
	"github.com/terangapay/ledger-engine/internal/app/storage/memory"
	"github.com/terangapay/ledger-engine/internal/config"
)

type apiFixture struct {
	store    *memory.Store
	verifier *identity.Verifier
	server   *httptest.Server
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.New()
	cfg := &config.Config{Values: map[string]string{
		config.KeyTransferPercent: "2",
	}}

	ledgerSvc := ledger.New(nil)
	journalSvc := journal.New(nil)
	feeResolver := fees.New(cfg)
	debtSvc := debts.New(ledgerSvc, journalSvc, nil)
	transferSvc := transfer.New(store, ledgerSvc, journalSvc, feeResolver, debtSvc, nil, nil)
	tontineSvc := tontine.New(store, transferSvc, feeResolver, nil, nil)
	verifier := identity.NewVerifier("test-secret")

	h := New(store, transferSvc, tontineSvc, debtSvc, verifier, Config{}, nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &apiFixture{store: store, verifier: verifier, server: srv}
}

func (f *apiFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	raw, err := f.verifier.Sign(identity.Actor{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return raw
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAPIRejectsMissingToken(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/api/v1/journal", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if body.Code != "UNAUTHENTICATED" {
		t.Fatalf("code = %s, want UNAUTHENTICATED", body.Code)
	}
}

func TestCreateAndFetchWallet(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "alice", identity.RoleUser)

	resp := f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "alice",
		"currency": "XOF",
		"balance":  "500",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created wallet.Wallet
	decodeBody(t, resp, &created)
	if created.ID == "" || !created.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("created = %+v", created)
	}

	resp = f.do(t, http.MethodGet, "/api/v1/wallets/"+created.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetWalletNotFound(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "alice", identity.RoleUser)

	resp := f.do(t, http.MethodGet, "/api/v1/wallets/missing", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if body.Code != "WALLET_NOT_FOUND" {
		t.Fatalf("code = %s, want WALLET_NOT_FOUND", body.Code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "alice", identity.RoleUser)

	var sender, receiver wallet.Wallet
	resp := f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "alice", "currency": "XOF", "balance": "1000",
	})
	decodeBody(t, resp, &sender)
	resp = f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "bob", "currency": "XOF",
	})
	decodeBody(t, resp, &receiver)

	resp = f.do(t, http.MethodPost, "/api/v1/transfers", token, map[string]any{
		"from_wallet_id": sender.ID,
		"to_wallet_id":   receiver.ID,
		"amount":         "300",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/v1/wallets/"+receiver.ID, token, nil)
	var got wallet.Wallet
	decodeBody(t, resp, &got)
	if !got.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("receiver balance = %s, want 300", got.Balance)
	}
}

func TestTransferInsufficientFundsMapsTo422(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "alice", identity.RoleUser)

	var sender, receiver wallet.Wallet
	resp := f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "alice", "currency": "XOF", "balance": "10",
	})
	decodeBody(t, resp, &sender)
	resp = f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "bob", "currency": "XOF",
	})
	decodeBody(t, resp, &receiver)

	resp = f.do(t, http.MethodPost, "/api/v1/transfers", token, map[string]any{
		"from_wallet_id": sender.ID,
		"to_wallet_id":   receiver.ID,
		"amount":         "300",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body errorBody
	decodeBody(t, resp, &body)
	if body.Code != "INSUFFICIENT_FUNDS" || body.Retryable {
		t.Fatalf("body = %+v", body)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	f := newAPI(t)
	token := f.token(t, "alice", identity.RoleUser)

	resp := f.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]string{
		"owner_id": "alice", "currency": "XOF", "surprise": "field",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newAPI(t)

	userToken := f.token(t, "alice", identity.RoleUser)
	resp := f.do(t, http.MethodGet, "/api/v1/admin/tiers", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for plain user", resp.StatusCode)
	}

	adminToken := f.token(t, "root", identity.RoleAdmin)
	resp = f.do(t, http.MethodPost, "/api/v1/admin/tiers", adminToken, map[string]string{
		"min": "0", "max": "10000", "percent": "2", "flat": "5",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp = f.do(t, http.MethodGet, "/api/v1/admin/tiers", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
