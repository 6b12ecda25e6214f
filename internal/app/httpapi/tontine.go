package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	tontinedomain "github.com/terangapay/ledger-engine/internal/app/domain/tontine"
	"github.com/terangapay/ledger-engine/internal/app/identity"
	"github.com/terangapay/ledger-engine/internal/app/services/tontine"
	"github.com/terangapay/ledger-engine/internal/app/storage"
)

func (h *Handler) tontineRoutes(api *mux.Router) {
	api.HandleFunc("/tontines", h.createTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/join", h.joinTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}", h.getTontine).Methods(http.MethodGet)
	api.HandleFunc("/tontines/{id}/members", h.listTontineMembers).Methods(http.MethodGet)
	api.HandleFunc("/tontines/{id}/start", h.startTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/suspend", h.suspendTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/reactivate", h.reactivateTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/close", h.closeTontine).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/rounds/current", h.currentRound).Methods(http.MethodGet)
	api.HandleFunc("/tontines/{id}/distribute", h.distributeRound).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/contributions", h.submitContribution).Methods(http.MethodPost)
	api.HandleFunc("/tontines/{id}/penalties", h.listPenalties).Methods(http.MethodGet)

	api.HandleFunc("/members/{id}/approve", h.memberTransition(h.tontines.ApproveMember)).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}/reject", h.memberTransition(h.tontines.RejectMember)).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}/suspend", h.memberTransition(h.tontines.SuspendMember)).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}/reinstate", h.memberTransition(h.tontines.ReinstateMember)).Methods(http.MethodPost)
	api.HandleFunc("/members/{id}/exclude", h.memberTransition(h.tontines.ExcludeMember)).Methods(http.MethodPost)

	api.HandleFunc("/contributions/{id}/validate", h.validateContribution).Methods(http.MethodPost)
	api.HandleFunc("/contributions/{id}/reject", h.rejectContribution).Methods(http.MethodPost)
	api.HandleFunc("/rounds/{id}/unblock", h.unblockRound).Methods(http.MethodPost)
	api.HandleFunc("/penalties/{id}/pay", h.payPenalty).Methods(http.MethodPost)
}

type createTontineRequest struct {
	Name         string `json:"name"`
	Contribution string `json:"contribution"`
	Currency     string `json:"currency"`
	Frequency    string `json:"frequency"`
	RotationMode string `json:"rotation_mode"`
	PayoutPolicy string `json:"payout_policy"`
	MemberTarget int    `json:"member_target"`
}

func (h *Handler) createTontine(w http.ResponseWriter, r *http.Request) {
	var req createTontineRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	actor, _ := identity.ActorFrom(r.Context())
	created, err := h.tontines.Create(r.Context(), tontine.CreateSpec{
		Name:         req.Name,
		Contribution: req.Contribution,
		Currency:     req.Currency,
		Frequency:    tontinedomain.Frequency(req.Frequency),
		RotationMode: tontinedomain.RotationMode(req.RotationMode),
		PayoutPolicy: tontinedomain.PayoutPolicy(req.PayoutPolicy),
		MemberTarget: req.MemberTarget,
		AdminUserID:  actor.UserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

func (h *Handler) joinTontine(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	actor, _ := identity.ActorFrom(r.Context())
	member, err := h.tontines.Join(r.Context(), req.InviteCode, actor.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) getTontine(w http.ResponseWriter, r *http.Request) {
	t, err := h.tontines.Tontine(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) listTontineMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.tontines.Members(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type startRequest struct {
	VoteOrder []string `json:"vote_order"`
}

func (h *Handler) startTontine(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	started, err := h.tontines.Start(r.Context(), mux.Vars(r)["id"], req.VoteOrder)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (h *Handler) suspendTontine(w http.ResponseWriter, r *http.Request) {
	h.tontineTransition(w, r, h.tontines.Suspend)
}

func (h *Handler) reactivateTontine(w http.ResponseWriter, r *http.Request) {
	h.tontineTransition(w, r, h.tontines.Reactivate)
}

func (h *Handler) closeTontine(w http.ResponseWriter, r *http.Request) {
	h.tontineTransition(w, r, h.tontines.Close)
}

func (h *Handler) tontineTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, tontineID string) (tontinedomain.Tontine, error)) {
	t, err := fn(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) memberTransition(
	fn func(ctx context.Context, memberID string) (tontinedomain.Member, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := fn(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, member)
	}
}

func (h *Handler) currentRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.tontines.CurrentRound(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) distributeRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.tontines.DistributeRound(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

type contributionRequest struct {
	ProofRef string `json:"proof_ref"`
}

func (h *Handler) submitContribution(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	actor, _ := identity.ActorFrom(r.Context())
	c, err := h.tontines.SubmitContribution(r.Context(), mux.Vars(r)["id"], actor.UserID, req.ProofRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) validateContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.tontines.ValidateContribution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) rejectContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.tontines.RejectContribution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) unblockRound(w http.ResponseWriter, r *http.Request) {
	round, err := h.tontines.UnblockRound(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (h *Handler) listPenalties(w http.ResponseWriter, r *http.Request) {
	f := storage.PenaltyFilter{
		TontineID: mux.Vars(r)["id"],
		MemberID:  r.URL.Query().Get("member_id"),
		State:     tontinedomain.PenaltyState(r.URL.Query().Get("state")),
	}
	penalties, err := h.tontines.Penalties(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, penalties)
}

func (h *Handler) payPenalty(w http.ResponseWriter, r *http.Request) {
	p, err := h.tontines.PayPenalty(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
