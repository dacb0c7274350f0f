// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amanahtour/safarhub/internal/app/store/audit"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (signup, login,
	// rejected-login blocks). Values: "all" (MongoDB + zap), "db", "log", "off".
	Auth string
	// Admin controls logging for admin review events (application approve /
	// reject, verification review, commission credits). Same values.
	Admin string
}

// Logger provides convenience methods for recording audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if event.RequestID == "" {
		event.RequestID = uuid.NewString()
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication events ---

// Signup logs an account creation.
func (l *Logger) Signup(ctx context.Context, r *http.Request, userID primitive.ObjectID, role, email string, pendingApproval bool) {
	details := map[string]string{"role": role, "email": email}
	if pendingApproval {
		details["approval_status"] = "pending"
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignup,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, authMethod string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"auth_method": authMethod,
			"email":       email,
		},
	})
}

// LoginFailed logs a failed login attempt.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"email": email},
	})
}

// LoginBlockedRejected logs a sign-in refused because the account's role
// application was rejected.
func (l *Logger) LoginBlockedRejected(ctx context.Context, r *http.Request, userID primitive.ObjectID, email, rejectionReason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginBlockedRejected,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "account rejected",
		Details: map[string]string{
			"email":            email,
			"rejection_reason": rejectionReason,
		},
	})
}

// --- Admin review events ---

// ApplicationApproved logs an application approval.
func (l *Logger) ApplicationApproved(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, requestedRole string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventApplicationApproved,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"requested_role": requestedRole},
	})
}

// ApplicationRejected logs an application rejection with the stored reason.
func (l *Logger) ApplicationRejected(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, requestedRole, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventApplicationRejected,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"requested_role": requestedRole,
			"reason":         reason,
		},
	})
}

// ApprovalReset logs the idempotent set-as-pending recovery action.
func (l *Logger) ApprovalReset(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, applied bool) {
	details := map[string]string{"applied": "false"}
	if applied {
		details["applied"] = "true"
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventApprovalReset,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// VerificationReviewed logs a verification-request review outcome.
func (l *Logger) VerificationReviewed(ctx context.Context, r *http.Request, actorID, userID primitive.ObjectID, approved bool, reason string) {
	eventType := audit.EventVerificationApproved
	details := map[string]string{}
	if !approved {
		eventType = audit.EventVerificationRejected
		details["reason"] = reason
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    &userID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

// ReferralAttributed logs a successful signup attribution.
func (l *Logger) ReferralAttributed(ctx context.Context, r *http.Request, userID, ownerID primitive.ObjectID, code string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventReferralAttributed,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"referral_code": code,
			"owner_id":      ownerID.Hex(),
		},
	})
}

// ReferralCodeIssued logs a successful code issuance.
func (l *Logger) ReferralCodeIssued(ctx context.Context, r *http.Request, ownerID primitive.ObjectID, code, ownerRole string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventReferralCodeIssued,
		UserID:    &ownerID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"referral_code": code,
			"owner_role":    ownerRole,
		},
	})
}

// CommissionCredited logs a commission credit by an admin.
func (l *Logger) CommissionCredited(ctx context.Context, r *http.Request, actorID, ownerID primitive.ObjectID, amount int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventCommissionCredited,
		UserID:    &ownerID,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"amount": strconv.FormatInt(amount, 10)},
	})
}
