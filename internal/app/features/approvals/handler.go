// internal/app/features/approvals/handler.go
package approvals

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
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/amanahtour/safarhub/internal/app/system/timeouts"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the admin review surface: application approval and
// rejection, verification-request review, and the set-as-pending recovery
// action. Every review resolves exactly once; the losing side of a double
// review gets the settled record back with applied=false.
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

// reviewResponse is the common shape for review outcomes. Applied is false
// when the record was already settled by an earlier review.
type reviewResponse struct {
	Applied     bool                       `json:"applied"`
	Application *models.AccountApplication `json:"application,omitempty"`
	User        *models.User               `json:"user,omitempty"`
}

// actorID resolves the signed-in admin's ObjectID from the session.
func actorID(r *http.Request) (primitive.ObjectID, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// urlObjectID parses the {id} chi URL parameter.
func urlObjectID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
}

// HandleList handles GET /admin/applications?status=pending.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ApprovalPending
	}

	apps, err := h.Applications.ListByStatus(ctx, status)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list applications failed", err, "Unable to load applications.")
		return
	}
	if apps == nil {
		apps = []models.AccountApplication{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// HandleApprove handles POST /admin/applications/{id}/approve.
//
// The application settles first, then the user record's gate opens with the
// same conflict-as-no-op discipline. For a newly-approved agen, referral code
// issuance runs eagerly so the code is ready before their next login; the
// login co-effect covers any failure here.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	admin, ok := actorID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}
	appID, err := urlObjectID(r)
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid application id.")
		return
	}

	var body struct {
		Notes string `json:"notes"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	applied, app, err := h.Applications.Approve(ctx, appID, admin, body.Notes)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.LogNotFound(w, r, "application not found", err, "Application not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, "approve application failed", err, "Unable to approve the application.")
		return
	}

	// Open the user's gate and lock in the requested role. Idempotent, so a
	// replay after a crash between the two writes converges.
	_, user, err := h.Users.Approve(ctx, app.UserID, app.RequestedRole)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "approve user failed", err, "Unable to approve the account.")
		return
	}

	if applied {
		h.AuditLog.ApplicationApproved(ctx, r, admin, app.UserID, app.RequestedRole)

		if rc, created, err := h.Referrals.EnsureCode(ctx, user); err != nil {
			h.Log.Error("referral code issuance after approval failed",
				zap.String("user_id", user.ID.Hex()), zap.Error(err))
		} else if created {
			h.AuditLog.ReferralCodeIssued(ctx, r, user.ID, rc.ReferralCode, rc.OwnerRole)
			user.ReferralCode = rc.ReferralCode
		}
	}

	uierrors.WriteJSON(w, http.StatusOK, reviewResponse{Applied: applied, Application: app, User: user})
}

// HandleReject handles POST /admin/applications/{id}/reject.
// The reason is mandatory and is stored verbatim on both the application and
// the user record, where the login path surfaces it.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	admin, ok := actorID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}
	appID, err := urlObjectID(r)
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid application id.")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode reject body failed", err, "Invalid request body.")
		return
	}

	applied, app, err := h.Applications.Reject(ctx, appID, admin, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, applicationstore.ErrEmptyReason):
			uierrors.WriteError(w, http.StatusBadRequest, "A rejection reason is required.")
		case errors.Is(err, mongo.ErrNoDocuments):
			h.ErrLog.LogNotFound(w, r, "application not found", err, "Application not found.")
		default:
			h.ErrLog.LogServerError(w, r, "reject application failed", err, "Unable to reject the application.")
		}
		return
	}

	_, user, err := h.Users.Reject(ctx, app.UserID, body.Reason)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "reject user failed", err, "Unable to reject the account.")
		return
	}

	if applied {
		h.AuditLog.ApplicationRejected(ctx, r, admin, app.UserID, app.RequestedRole, body.Reason)
	}

	uierrors.WriteJSON(w, http.StatusOK, reviewResponse{Applied: applied, Application: app, User: user})
}

// HandleSetPending handles POST /admin/users/{id}/set-pending.
// Recovery action for gated-role records missing their approval_status.
func (h *Handler) HandleSetPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	admin, ok := actorID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}
	userID, err := urlObjectID(r)
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	applied, err := h.Users.SetPending(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.LogNotFound(w, r, "user not found", err, "User not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, "set pending failed", err, "Unable to update the account.")
		return
	}

	h.AuditLog.ApprovalReset(ctx, r, admin, userID, applied)
	uierrors.WriteJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// HandleVerificationApprove handles POST /admin/users/{id}/verification/approve.
func (h *Handler) HandleVerificationApprove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	admin, ok := actorID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}
	userID, err := urlObjectID(r)
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	applied, user, err := h.Users.ApproveVerification(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrNoPendingRequest):
			h.ErrLog.LogConflict(w, r, "no pending verification request", err, "No pending verification request.")
		case errors.Is(err, mongo.ErrNoDocuments):
			h.ErrLog.LogNotFound(w, r, "user not found", err, "User not found.")
		default:
			h.ErrLog.LogServerError(w, r, "approve verification failed", err, "Unable to approve the request.")
		}
		return
	}

	if applied {
		h.AuditLog.VerificationReviewed(ctx, r, admin, userID, true, "")
	}
	uierrors.WriteJSON(w, http.StatusOK, reviewResponse{Applied: applied, User: user})
}

// HandleVerificationReject handles POST /admin/users/{id}/verification/reject.
func (h *Handler) HandleVerificationReject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	admin, ok := actorID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}
	userID, err := urlObjectID(r)
	if err != nil {
		uierrors.WriteError(w, http.StatusBadRequest, "Invalid user id.")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode reject body failed", err, "Invalid request body.")
		return
	}

	applied, user, err := h.Users.RejectVerification(ctx, userID, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, userstore.ErrEmptyReason):
			uierrors.WriteError(w, http.StatusBadRequest, "A rejection reason is required.")
		case errors.Is(err, userstore.ErrNoPendingRequest):
			h.ErrLog.LogConflict(w, r, "no pending verification request", err, "No pending verification request.")
		case errors.Is(err, mongo.ErrNoDocuments):
			h.ErrLog.LogNotFound(w, r, "user not found", err, "User not found.")
		default:
			h.ErrLog.LogServerError(w, r, "reject verification failed", err, "Unable to reject the request.")
		}
		return
	}

	if applied {
		h.AuditLog.VerificationReviewed(ctx, r, admin, userID, false, body.Reason)
	}
	uierrors.WriteJSON(w, http.StatusOK, reviewResponse{Applied: applied, User: user})
}
