// Package balancestore persists referral commission balances.
//
// One row per code owner, created alongside the owner's referral code. The
// balance and the running total are mutated only through $inc, so concurrent
// credits never lose an update.
package balancestore

import (
	"context"
	"errors"
	"time"

	"github.com/amanahtour/safarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNonPositiveAmount is returned when a credit amount is zero or negative.
var ErrNonPositiveAmount = errors.New("credit amount must be positive")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("referral_balances")}
}

// Get returns the owner's balance row, or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, ownerID primitive.ObjectID) (*models.ReferralBalance, error) {
	var b models.ReferralBalance
	if err := s.c.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// EnsureRow upserts a zero-balance row for the owner. Called when the owner's
// referral code is minted; a later call for an existing owner changes nothing.
func (s *Store) EnsureRow(ctx context.Context, ownerID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{
			"$setOnInsert": bson.M{
				"_id":          primitive.NewObjectID(),
				"owner_id":     ownerID,
				"balance":      int64(0),
				"total_earned": int64(0),
				"created_at":   now,
				"updated_at":   now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Credit adds a positive commission amount to the owner's balance and running
// total. Missing rows are upserted so a credit never silently vanishes.
func (s *Store) Credit(ctx context.Context, ownerID primitive.ObjectID, amount int64) (*models.ReferralBalance, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}

	now := time.Now().UTC()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{
			"$inc": bson.M{
				"balance":      amount,
				"total_earned": amount,
			},
			"$set": bson.M{"updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"owner_id":   ownerID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, ownerID)
}
