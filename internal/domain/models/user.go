// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Approval status values for approval-gated roles and for applications.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// User represents one portal identity: jamaah, partners, and staff.
//
// ApprovalStatus is present only while the role is approval-gated
// (tour-leader, mutawwif, agen); self-serve and management roles never
// carry it. ReferredBy and ReferralCode are write-once.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	Role       string             `bson:"role" json:"role"`

	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`
	AuthMethod   string  `bson:"auth_method,omitempty" json:"auth_method,omitempty"` // password | google

	ApprovalStatus      string     `bson:"approval_status,omitempty" json:"approval_status,omitempty"`
	ApprovalRequestedAt *time.Time `bson:"approval_requested_at,omitempty" json:"approval_requested_at,omitempty"`
	ApprovedAt          *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt          *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectionReason     string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`

	// ReferredBy holds the referral code supplied at signup, set at most once.
	ReferredBy string `bson:"referred_by,omitempty" json:"referred_by,omitempty"`
	// ReferralCode is this user's own code, set once by issuance.
	ReferralCode string `bson:"referral_code,omitempty" json:"referral_code,omitempty"`

	// VerificationRequest is the at-most-one in-flight role-upgrade request.
	VerificationRequest *VerificationRequest `bson:"verification_request,omitempty" json:"verification_request,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Verification request upgrade types.
const (
	UpgradeToCurrent = "upgrade-to-current"
	UpgradeToAlumni  = "upgrade-to-alumni"
)

// VerificationRequest is a role-upgrade request nested under a user record.
// Its id is an opaque UUID so reviews can reference the exact request they
// acted on even after the user submits a new one.
type VerificationRequest struct {
	ID              string     `bson:"id" json:"id"`
	Type            string     `bson:"type" json:"type"` // upgrade-to-current | upgrade-to-alumni
	ProofImage      string     `bson:"proof_image,omitempty" json:"proof_image,omitempty"`
	Message         string     `bson:"message,omitempty" json:"message,omitempty"`
	RequestedAt     time.Time  `bson:"requested_at" json:"requested_at"`
	Status          string     `bson:"status" json:"status"` // pending | approved | rejected
	ApprovedAt      *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt      *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectionReason string     `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
}
