// internal/app/features/referrals/handler.go
package referrals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	uierrors "github.com/amanahtour/safarhub/internal/app/features/errors"
	balancestore "github.com/amanahtour/safarhub/internal/app/store/balances"
	codestore "github.com/amanahtour/safarhub/internal/app/store/referralcodes"
	"github.com/amanahtour/safarhub/internal/app/system/auditlog"
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/timeouts"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Codes    *codestore.Store
	Balances *balancestore.Store
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(
	codes *codestore.Store,
	balances *balancestore.Store,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Codes:    codes,
		Balances: balances,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// sessionOwner resolves the signed-in user's id and role.
func sessionOwner(r *http.Request) (primitive.ObjectID, string, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, "", false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, "", false
	}
	return id, u.Role, true
}

// HandleMyCode handles GET /referrals/my-code.
// 404 means the account holds no code yet (not eligible, or not yet issued).
func (h *Handler) HandleMyCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ownerID, role, ok := sessionOwner(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	rc, err := h.Codes.GetByOwner(ctx, ownerID, role)
	if err != nil {
		switch {
		case errors.Is(err, codestore.ErrNotEligible):
			uierrors.WriteError(w, http.StatusNotFound, "This account is not eligible for a referral code.")
		case errors.Is(err, mongo.ErrNoDocuments):
			uierrors.WriteError(w, http.StatusNotFound, "No referral code issued yet.")
		default:
			h.ErrLog.LogServerError(w, r, "load referral code failed", err, "Unable to load the referral code.")
		}
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, rc)
}

// HandleMyBalance handles GET /referrals/my-balance.
// An owner without a ledger row yet reads as zero, not as an error.
func (h *Handler) HandleMyBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ownerID, _, ok := sessionOwner(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	b, err := h.Balances.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			uierrors.WriteJSON(w, http.StatusOK, models.ReferralBalance{OwnerID: ownerID})
			return
		}
		h.ErrLog.LogServerError(w, r, "load balance failed", err, "Unable to load the balance.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, b)
}

// validateResponse answers code validation without exposing the owner's
// email or balance to the caller.
type validateResponse struct {
	Valid     bool   `json:"valid"`
	Code      string `json:"code"`
	OwnerName string `json:"owner_name,omitempty"`
	OwnerRole string `json:"owner_role,omitempty"`
}

// HandleValidate handles GET /referrals/validate?code=…
// Open to unauthenticated callers so the signup form can pre-check a code.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	code := normalize.ReferralCode(r.URL.Query().Get("code"))
	if code == "" {
		uierrors.WriteError(w, http.StatusBadRequest, "A code query parameter is required.")
		return
	}

	rc, err := h.Codes.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			uierrors.WriteJSON(w, http.StatusOK, validateResponse{Valid: false, Code: code})
			return
		}
		h.ErrLog.LogServerError(w, r, "resolve referral code failed", err, "Unable to validate the code.")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:     true,
		Code:      rc.ReferralCode,
		OwnerName: rc.OwnerName,
		OwnerRole: rc.OwnerRole,
	})
}

// HandleCredit handles POST /admin/referrals/{id}/credit.
// {id} is the code owner's user id; the amount is in rupiah.
func (h *Handler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	adminID, _, ok := sessionOwner(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	ownerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid owner id.")
		return
	}

	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode credit body failed", err, "Invalid request body.")
		return
	}

	b, err := h.Balances.Credit(ctx, ownerID, body.Amount)
	if err != nil {
		if errors.Is(err, balancestore.ErrNonPositiveAmount) {
			uierrors.WriteError(w, http.StatusBadRequest, "Amount must be a positive number.")
			return
		}
		h.ErrLog.LogServerError(w, r, "credit commission failed", err, "Unable to credit the commission.")
		return
	}

	h.AuditLog.CommissionCredited(ctx, r, adminID, ownerID, body.Amount)
	uierrors.WriteJSON(w, http.StatusOK, b)
}
