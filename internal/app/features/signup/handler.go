// internal/app/features/signup/handler.go
package signup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	uierrors "github.com/amanahtour/safarhub/internal/app/features/errors"
	"github.com/amanahtour/safarhub/internal/app/referral"
	applicationstore "github.com/amanahtour/safarhub/internal/app/store/applications"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/auditlog"
	"github.com/amanahtour/safarhub/internal/app/system/authutil"
	"github.com/amanahtour/safarhub/internal/app/system/htmlsanitize"
	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/app/system/timeouts"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Users        *userstore.Store
	Applications *applicationstore.Store
	Referrals    *referral.Engine
	AuditLog     *auditlog.Logger
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

func NewHandler(
	users *userstore.Store,
	applications *applicationstore.Store,
	referrals *referral.Engine,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:        users,
		Applications: applications,
		Referrals:    referrals,
		AuditLog:     audit,
		ErrLog:       errLog,
		Log:          logger,
	}
}

// signupRequest is the POST /signup body.
type signupRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code,omitempty"`
	// ApplicationData carries the supporting fields for approval-gated roles
	// (company name, guide license, CV link, ...).
	ApplicationData map[string]string `json:"application_data,omitempty"`
}

// signupResponse reports the created account. Warnings carry non-fatal
// problems (an unrecognized referral code) that did not block the signup.
type signupResponse struct {
	User     models.User `json:"user"`
	Warnings []string    `json:"warnings,omitempty"`
}

// HandleSignup handles POST /signup.
//
// Creating the account always succeeds or fails on its own merits; referral
// attribution and the application record are co-effects. A bad referral code
// degrades to a warning, never a failed signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode signup body failed", err, "Invalid request body.")
		return
	}

	req.FullName = normalize.Name(req.FullName)
	req.Email = normalize.Email(req.Email)
	req.Role = roles.Canonical(req.Role)

	if req.FullName == "" || req.Email == "" {
		uierrors.WriteError(w, http.StatusBadRequest, "Full name and email are required.")
		return
	}
	if !roles.Valid(req.Role) {
		uierrors.WriteError(w, http.StatusBadRequest, "Unknown role.")
		return
	}
	if roles.IsManagement(req.Role) {
		// Staff accounts are provisioned by an admin, never self-registered.
		uierrors.WriteError(w, http.StatusForbidden, "This role cannot be self-registered.")
		return
	}
	if err := authutil.ValidatePassword(req.Password); err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "Unable to create the account.")
		return
	}

	user, err := h.Users.Create(ctx, models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: &hash,
		AuthMethod:   "password",
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			h.ErrLog.LogConflict(w, r, "signup with existing email", err, "An account with this email already exists.")
			return
		}
		h.ErrLog.LogServerError(w, r, "create user failed", err, "Unable to create the account.")
		return
	}

	var warnings []string

	// Approval-gated roles also get their review application on file.
	if roles.RequiresApproval(user.Role) {
		_, err := h.Applications.Submit(ctx, models.AccountApplication{
			UserID:          user.ID,
			RequestedRole:   user.Role,
			CurrentRole:     user.Role,
			ApplicationData: htmlsanitize.SanitizeMap(req.ApplicationData),
		})
		if err != nil && !errors.Is(err, applicationstore.ErrDuplicateApplication) {
			h.Log.Error("submit application at signup failed",
				zap.String("user_id", user.ID.Hex()), zap.Error(err))
			warnings = append(warnings, "application could not be recorded; contact support")
		}
	}

	// Referral attribution is best effort and never blocks the signup.
	if req.ReferralCode != "" {
		res, err := h.Referrals.Attribute(ctx, user.ID, req.ReferralCode)
		switch {
		case err != nil:
			h.Log.Error("referral attribution failed",
				zap.String("user_id", user.ID.Hex()), zap.Error(err))
			warnings = append(warnings, "referral could not be recorded")
		case res.Warning != "":
			warnings = append(warnings, res.Warning)
		case res.Applied:
			user.ReferredBy = res.Code
			h.AuditLog.ReferralAttributed(ctx, r, user.ID, res.OwnerID, res.Code)
		}
	}

	h.AuditLog.Signup(ctx, r, user.ID, user.Role, user.Email, roles.RequiresApproval(user.Role))

	uierrors.WriteJSON(w, http.StatusCreated, signupResponse{User: user, Warnings: warnings})
}
