// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	uierrors "github.com/amanahtour/safarhub/internal/app/features/errors"
	"github.com/amanahtour/safarhub/internal/app/referral"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/auditlog"
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/amanahtour/safarhub/internal/app/system/authutil"
	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/timeouts"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users     *userstore.Store
	Referrals *referral.Engine
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(
	users *userstore.Store,
	referrals *referral.Engine,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:     users,
		Referrals: referrals,
		AuditLog:  audit,
		ErrLog:    errLog,
		Log:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User models.User `json:"user"`
	// ReferralCode is set when this login minted or confirmed the user's code.
	ReferralCode string `json:"referral_code,omitempty"`
}

// HandleLogin handles POST /login.
//
// Credentials are checked first. A rejected account is then refused with the
// stored rejection reason verbatim, so the caller can show the user exactly
// what the reviewer wrote. On success the session is saved and, for eligible
// accounts, referral code issuance runs as a best-effort co-effect.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode login body failed", err, "Invalid request body.")
		return
	}
	email := normalize.Email(req.Email)

	user, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.AuditLog.LoginFailed(ctx, r, email, "unknown email")
			uierrors.WriteError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		h.ErrLog.LogServerError(w, r, "load user for login failed", err, "Unable to sign in.")
		return
	}

	if user.PasswordHash == nil || !authutil.CheckPassword(req.Password, *user.PasswordHash) {
		h.AuditLog.LoginFailed(ctx, r, email, "wrong password")
		uierrors.WriteError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	if user.ApprovalStatus == models.ApprovalRejected {
		h.AuditLog.LoginBlockedRejected(ctx, r, user.ID, user.Email, user.RejectionReason)
		uierrors.WriteError(w, http.StatusForbidden,
			fmt.Sprintf("Your account application was rejected: %s", user.RejectionReason))
		return
	}

	if err := auth.SaveSessionUser(w, r, auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.FullName,
		Email: user.Email,
		Role:  user.Role,
	}); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Unable to sign in.")
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, user.ID, user.Email, "password")

	resp := loginResponse{User: *user}
	if code := h.ensureReferralCode(ctx, r, user); code != "" {
		resp.ReferralCode = code
		resp.User.ReferralCode = code
	}

	uierrors.WriteJSON(w, http.StatusOK, resp)
}

// ensureReferralCode runs issuance for an eligible account. Failures are
// logged and swallowed; the login already succeeded and the next one retries.
func (h *Handler) ensureReferralCode(ctx context.Context, r *http.Request, user *models.User) string {
	rc, created, err := h.Referrals.EnsureCode(ctx, user)
	if err != nil {
		h.Log.Error("referral code issuance failed",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return ""
	}
	if rc == nil {
		return ""
	}
	if created {
		h.AuditLog.ReferralCodeIssued(ctx, r, user.ID, rc.ReferralCode, rc.OwnerRole)
	}
	return rc.ReferralCode
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := auth.ClearSession(w, r); err != nil {
		h.ErrLog.LogServerError(w, r, "clear session failed", err, "Unable to sign out.")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
