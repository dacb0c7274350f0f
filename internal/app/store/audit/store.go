// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Event categories.
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Event types.
const (
	EventLoginSuccess         = "login_success"
	EventLoginFailed          = "login_failed"
	EventLoginBlockedRejected = "login_blocked_rejected"
	EventSignup               = "signup"
	EventApplicationApproved  = "application_approved"
	EventApplicationRejected  = "application_rejected"
	EventApprovalReset        = "approval_reset_pending"
	EventVerificationApproved = "verification_approved"
	EventVerificationRejected = "verification_rejected"
	EventReferralAttributed   = "referral_attributed"
	EventReferralCodeIssued   = "referral_code_issued"
	EventCommissionCredited   = "commission_credited"
)

// Event is one audit record.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	RequestID string              `bson:"request_id,omitempty"`
	Category  string              `bson:"category"`
	EventType string              `bson:"event_type"`
	UserID    *primitive.ObjectID `bson:"user_id,omitempty"`  // subject of the event
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty"` // admin who performed it
	IP        string              `bson:"ip,omitempty"`
	UserAgent string              `bson:"user_agent,omitempty"`
	Success   bool                `bson:"success"`
	// FailureReason is set on unsuccessful events.
	FailureReason string            `bson:"failure_reason,omitempty"`
	Details       map[string]string `bson:"details,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
}

// Store persists audit events.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log inserts the event, stamping CreatedAt if unset.
func (s *Store) Log(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}
