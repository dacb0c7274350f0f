// internal/app/features/account/handler.go
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	uierrors "github.com/amanahtour/safarhub/internal/app/features/errors"
	applicationstore "github.com/amanahtour/safarhub/internal/app/store/applications"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/auth"
	"github.com/amanahtour/safarhub/internal/app/system/htmlsanitize"
	"github.com/amanahtour/safarhub/internal/app/system/timeouts"
	"github.com/amanahtour/safarhub/internal/app/system/watch"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's own account surface.
type Handler struct {
	Users        *userstore.Store
	Applications *applicationstore.Store
	ErrLog       *uierrors.ErrorLogger
	Log          *zap.Logger
}

func NewHandler(
	users *userstore.Store,
	applications *applicationstore.Store,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:        users,
		Applications: applications,
		ErrLog:       errLog,
		Log:          logger,
	}
}

// sessionUserID resolves the signed-in user's ObjectID.
func sessionUserID(r *http.Request) (primitive.ObjectID, bool) {
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

// accountResponse is the GET /account body: the user's record plus their
// application history.
type accountResponse struct {
	User         models.User                 `json:"user"`
	Applications []models.AccountApplication `json:"applications,omitempty"`
}

// HandleGet handles GET /account.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	userID, ok := sessionUserID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.ErrLog.LogNotFound(w, r, "session user missing", err, "Account not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, "load account failed", err, "Unable to load the account.")
		return
	}

	apps, err := h.Applications.ListByUser(ctx, userID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load applications failed", err, "Unable to load the account.")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, accountResponse{User: *user, Applications: apps})
}

// verificationRequestBody is the POST /account/verification-request body.
type verificationRequestBody struct {
	Type       string `json:"type"` // upgrade-to-current | upgrade-to-alumni
	ProofImage string `json:"proof_image,omitempty"`
	Message    string `json:"message,omitempty"`
}

// HandleSubmitVerification handles POST /account/verification-request.
// One request in flight per account; the free-form message is sanitized
// before it reaches an admin's screen.
func (h *Handler) HandleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	userID, ok := sessionUserID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	var body verificationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ErrLog.LogBadRequest(w, r, "decode verification body failed", err, "Invalid request body.")
		return
	}
	if body.Type != models.UpgradeToCurrent && body.Type != models.UpgradeToAlumni {
		uierrors.WriteError(w, http.StatusBadRequest, "Unknown verification request type.")
		return
	}

	req := models.VerificationRequest{
		ID:         uuid.NewString(),
		Type:       body.Type,
		ProofImage: htmlsanitize.Sanitize(body.ProofImage),
		Message:    htmlsanitize.Sanitize(body.Message),
	}

	if err := h.Users.SubmitVerificationRequest(ctx, userID, req); err != nil {
		switch {
		case errors.Is(err, userstore.ErrRequestInFlight):
			h.ErrLog.LogConflict(w, r, "verification request already pending", err, "A verification request is already pending.")
		case errors.Is(err, mongo.ErrNoDocuments):
			h.ErrLog.LogNotFound(w, r, "session user missing", err, "Account not found.")
		default:
			h.ErrLog.LogServerError(w, r, "submit verification request failed", err, "Unable to submit the request.")
		}
		return
	}

	uierrors.WriteJSON(w, http.StatusAccepted, map[string]string{"request_id": req.ID, "status": models.ApprovalPending})
}

// HandleWatch handles GET /account/watch.
//
// Streams the user's own record as server-sent events whenever it changes,
// so a pending partner sees their approval land without polling. On
// deployments without change streams the endpoint answers 501 and the client
// falls back to refreshing GET /account.
func (h *Handler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUserID(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "Sign in required.")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		uierrors.WriteError(w, http.StatusInternalServerError, "Streaming unsupported.")
		return
	}

	events := make(chan []byte, 4)
	unsubscribe, err := watch.Document(r.Context(), h.Users.Collection(), userID, h.Log, func(raw bson.Raw) {
		var u models.User
		if err := bson.Unmarshal(raw, &u); err != nil {
			h.Log.Warn("decode watched user failed", zap.Error(err))
			return
		}
		payload, err := json.Marshal(u)
		if err != nil {
			return
		}
		select {
		case events <- payload:
		default:
			// Client is not draining; drop the intermediate state. The next
			// event carries the full document anyway.
		}
	})
	if err != nil {
		h.Log.Warn("change stream unavailable", zap.Error(err))
		uierrors.WriteError(w, http.StatusNotImplemented, "Live updates are not available; poll /account instead.")
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload := <-events:
			fmt.Fprintf(w, "event: account\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
