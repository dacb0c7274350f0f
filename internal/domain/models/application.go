// internal/domain/models/application.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountApplication is one role-application submission. The applicant creates
// it and never mutates it afterward; only admin review moves it out of
// pending. Resubmission after a rejection means a new record.
type AccountApplication struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	RequestedRole string             `bson:"requested_role" json:"requested_role"`
	CurrentRole   string             `bson:"current_role" json:"current_role"`

	// ApplicationData holds free-form supporting fields (company name,
	// guide license number, CV link, ...), sanitized before storage.
	ApplicationData map[string]string `bson:"application_data,omitempty" json:"application_data,omitempty"`

	Status         string              `bson:"status" json:"status"` // pending | approved | rejected
	AppliedAt      time.Time           `bson:"applied_at" json:"applied_at"`
	ReviewNotes    string              `bson:"review_notes,omitempty" json:"review_notes,omitempty"`
	RejectedReason string              `bson:"rejected_reason,omitempty" json:"rejected_reason,omitempty"`
	ReviewedBy     *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ApprovedAt     *time.Time          `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt     *time.Time          `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
