// internal/domain/models/referral.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferralCode is one code record, keyed by its owner. Codes live in a
// collection per owner role (alumni_referral_codes, agen_referral_codes) and
// are created exactly once, never deleted, never re-minted.
type ReferralCode struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReferralCode string             `bson:"referral_code" json:"referral_code"`
	OwnerID      primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	OwnerName    string             `bson:"owner_name" json:"owner_name"`
	OwnerEmail   string             `bson:"owner_email" json:"owner_email"`
	OwnerRole    string             `bson:"owner_role" json:"owner_role"`

	// TotalReferrals counts successful attributions; it never decreases.
	TotalReferrals int64 `bson:"total_referrals" json:"total_referrals"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ReferralBalance is the commission ledger row for one code owner.
// Balance holds pending commission, TotalEarned the lifetime total.
// Both are credited together and never debited here; payout is an
// out-of-band admin process.
type ReferralBalance struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Balance     int64              `bson:"balance" json:"balance"`
	TotalEarned int64              `bson:"total_earned" json:"total_earned"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
