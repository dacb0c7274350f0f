package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Collection exposes the underlying collection for change-stream watches.
func (s *Store) Collection() *mongo.Collection {
	return s.c
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	// ErrEmptyReason is returned when a rejection is attempted without a reason.
	ErrEmptyReason = errors.New("a rejection requires a non-empty reason")
	// ErrNoPendingRequest is returned when a verification review targets a
	// request that is not pending (or does not exist).
	ErrNoPendingRequest = errors.New("no pending verification request")
	// ErrRequestInFlight is returned when a user submits a verification
	// request while another one is still pending.
	ErrRequestInFlight = errors.New("a verification request is already pending")

	errBadRole = errors.New("role is not in the known role set")
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by normalized email. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing & validating fields.
//
// The approval gate is applied here: approval-gated roles get
// approval_status=pending stamped at creation, everything else never carries
// the field. Referral fields are never set at creation.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = normalize.NameCI(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Role = roles.Canonical(u.Role)

	if !roles.Valid(u.Role) {
		return models.User{}, errBadRole
	}

	now := time.Now().UTC()
	if roles.RequiresApproval(u.Role) {
		u.ApprovalStatus = models.ApprovalPending
		u.ApprovalRequestedAt = &now
	} else {
		u.ApprovalStatus = ""
		u.ApprovalRequestedAt = nil
	}
	u.ApprovedAt = nil
	u.RejectedAt = nil
	u.RejectionReason = ""
	u.ReferredBy = ""
	u.ReferralCode = ""
	u.VerificationRequest = nil

	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// Approve moves a user's approval status from pending to approved and locks
// in the requested role. The status precondition rides in the update filter,
// so a concurrent double-approve applies exactly once; the loser observes
// applied=false and the already-approved record.
//
// Users that never had the gate stamped (legacy records) are approved too:
// the filter accepts a missing approval_status.
func (s *Store) Approve(ctx context.Context, id primitive.ObjectID, role string) (applied bool, u *models.User, err error) {
	role = roles.Canonical(role)
	if !roles.Valid(role) {
		return false, nil, errBadRole
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":             id,
			"approval_status": bson.M{"$in": bson.A{models.ApprovalPending, nil}},
		},
		bson.M{"$set": bson.M{
			"role":            role,
			"approval_status": models.ApprovalApproved,
			"approved_at":     now,
			"updated_at":      now,
		}},
	)
	if err != nil {
		return false, nil, err
	}

	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, u, nil
}

// Reject moves a user's approval status from pending to rejected with the
// given reason. Rejection is terminal and requires a non-empty reason.
// A non-pending record is left untouched (applied=false, current returned).
func (s *Store) Reject(ctx context.Context, id primitive.ObjectID, reason string) (applied bool, u *models.User, err error) {
	if normalize.Name(reason) == "" {
		return false, nil, ErrEmptyReason
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "approval_status": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"approval_status":  models.ApprovalRejected,
			"rejection_reason": reason,
			"rejected_at":      now,
			"updated_at":       now,
		}},
	)
	if err != nil {
		return false, nil, err
	}

	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, u, nil
}

// SetPending stamps approval_status=pending on a record that lacks the field
// despite holding an approval-gated role. Recovery path for records created
// before the gate existed or written inconsistently. Idempotent: a record
// already pending/approved/rejected is untouched.
func (s *Store) SetPending(ctx context.Context, id primitive.ObjectID) (applied bool, err error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !roles.RequiresApproval(u.Role) {
		return false, nil
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "approval_status": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"approval_status":       models.ApprovalPending,
			"approval_requested_at": now,
			"updated_at":            now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetReferredBy records which referral code the user signed up with.
// First write wins: the guard is part of the filter, so a second attribution
// attempt (even with a different valid code) matches nothing.
func (s *Store) SetReferredBy(ctx context.Context, id primitive.ObjectID, code string) (applied bool, err error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "referred_by": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"referred_by": code,
			"updated_at":  time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SetReferralCode records the user's own minted code, once.
func (s *Store) SetReferralCode(ctx context.Context, id primitive.ObjectID, code string) (applied bool, err error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "referral_code": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			"referral_code": code,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// SubmitVerificationRequest attaches a role-upgrade request to the user.
// Only one request may be in flight: submitting while one is pending returns
// ErrRequestInFlight.
func (s *Store) SubmitVerificationRequest(ctx context.Context, id primitive.ObjectID, req models.VerificationRequest) error {
	req.Status = models.ApprovalPending
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.ApprovedAt = nil
	req.RejectedAt = nil
	req.RejectionReason = ""

	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"verification_request.status": bson.M{"$ne": models.ApprovalPending},
		},
		bson.M{"$set": bson.M{
			"verification_request": req,
			"updated_at":           time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the user does not exist or a request is pending.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrRequestInFlight
	}
	return nil
}

// upgradeTarget maps a verification request type to the role it grants.
func upgradeTarget(reqType string) (string, bool) {
	switch reqType {
	case models.UpgradeToCurrent:
		return roles.CurrentJamaah, true
	case models.UpgradeToAlumni:
		return roles.Alumni, true
	}
	return "", false
}

// ApproveVerification approves the pending verification request and applies
// the role upgrade in the same write. The request id and pending status ride
// in the filter, so a concurrent review of the same request applies once.
func (s *Store) ApproveVerification(ctx context.Context, id primitive.ObjectID) (applied bool, u *models.User, err error) {
	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	vr := u.VerificationRequest
	if vr == nil || vr.Status != models.ApprovalPending {
		return false, u, ErrNoPendingRequest
	}
	newRole, ok := upgradeTarget(vr.Type)
	if !ok {
		return false, u, ErrNoPendingRequest
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                         id,
			"verification_request.id":     vr.ID,
			"verification_request.status": models.ApprovalPending,
		},
		bson.M{"$set": bson.M{
			"role":                             newRole,
			"verification_request.status":      models.ApprovalApproved,
			"verification_request.approved_at": now,
			"updated_at":                       now,
		}},
	)
	if err != nil {
		return false, nil, err
	}

	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, u, nil
}

// RejectVerification rejects the pending verification request with a reason.
func (s *Store) RejectVerification(ctx context.Context, id primitive.ObjectID, reason string) (applied bool, u *models.User, err error) {
	if normalize.Name(reason) == "" {
		return false, nil, ErrEmptyReason
	}

	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	vr := u.VerificationRequest
	if vr == nil || vr.Status != models.ApprovalPending {
		return false, u, ErrNoPendingRequest
	}

	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":                         id,
			"verification_request.id":     vr.ID,
			"verification_request.status": models.ApprovalPending,
		},
		bson.M{"$set": bson.M{
			"verification_request.status":           models.ApprovalRejected,
			"verification_request.rejected_at":      now,
			"verification_request.rejection_reason": reason,
			"updated_at":                            now,
		}},
	)
	if err != nil {
		return false, nil, err
	}

	u, err = s.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount == 1, u, nil
}
