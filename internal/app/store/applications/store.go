// Package applicationstore persists account approval applications.
//
// An application is created by the applicant and afterward mutated only by
// admin review. Approve and reject carry their pending-status precondition in
// the update filter, so concurrent double-review applies exactly once and the
// loser gets the already-settled record back (conflict-as-no-op).
package applicationstore

import (
	"context"
	"errors"
	"time"

	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("account_applications")}
}

var (
	// ErrDuplicateApplication is returned when the user already has a pending
	// or approved application.
	ErrDuplicateApplication = errors.New("an application for this user is already pending or approved")
	// ErrEmptyReason is returned when a rejection is attempted without a reason.
	ErrEmptyReason = errors.New("a rejection requires a non-empty reason")

	errBadRole = errors.New("requested role is not approval-gated")
)

// GetByID loads one application.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AccountApplication, error) {
	var a models.AccountApplication
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Submit creates a new application for an approval-gated role.
//
// An existing pending or approved application for the same user blocks the
// submission; a rejected one does not (resubmission means a new record).
func (s *Store) Submit(ctx context.Context, a models.AccountApplication) (models.AccountApplication, error) {
	a.RequestedRole = roles.Canonical(a.RequestedRole)
	if !roles.RequiresApproval(a.RequestedRole) {
		return models.AccountApplication{}, errBadRole
	}

	err := s.c.FindOne(ctx, bson.M{
		"user_id": a.UserID,
		"status":  bson.M{"$in": bson.A{models.ApprovalPending, models.ApprovalApproved}},
	}).Err()
	if err == nil {
		return models.AccountApplication{}, ErrDuplicateApplication
	}
	if err != mongo.ErrNoDocuments {
		return models.AccountApplication{}, err
	}

	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	a.Status = models.ApprovalPending
	if a.AppliedAt.IsZero() {
		a.AppliedAt = now
	}
	a.RejectedReason = ""
	a.ReviewedBy = nil
	a.ApprovedAt = nil
	a.RejectedAt = nil
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.AccountApplication{}, err
	}
	return a, nil
}

// Approve settles a pending application as approved. A non-pending
// application is left untouched and returned as-is with applied=false.
func (s *Store) Approve(ctx context.Context, id, reviewerID primitive.ObjectID, notes string) (applied bool, a *models.AccountApplication, err error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":      models.ApprovalApproved,
		"reviewed_by": reviewerID,
		"approved_at": now,
		"updated_at":  now,
	}
	if notes != "" {
		set["review_notes"] = notes
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ApprovalPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, nil, err
	}

	a, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, a, nil
}

// Reject settles a pending application as rejected with a required reason.
func (s *Store) Reject(ctx context.Context, id, reviewerID primitive.ObjectID, reason string) (applied bool, a *models.AccountApplication, err error) {
	if normalize.Name(reason) == "" {
		return false, nil, ErrEmptyReason
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"status":          models.ApprovalRejected,
			"rejected_reason": reason,
			"reviewed_by":     reviewerID,
			"rejected_at":     now,
			"updated_at":      now,
		}},
	)
	if err != nil {
		return false, nil, err
	}

	a, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, a, nil
}

// ListByStatus returns applications with the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status string) ([]models.AccountApplication, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"status": normalize.Status(status)},
		options.Find().SetSort(bson.D{{Key: "applied_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AccountApplication
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns every application the user ever submitted, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.AccountApplication, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "applied_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AccountApplication
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
