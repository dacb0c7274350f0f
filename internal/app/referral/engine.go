// Package referral coordinates referral attribution and code issuance across
// the user, code, and balance stores.
//
// Attribution runs inside a MongoDB transaction when the deployment supports
// one; on a standalone server it falls back to the same writes unguarded by a
// session, which stay safe because the referred_by write is first-write-wins
// at the filter level. Issuance is idempotent and retried on the next login
// when any step fails.
package referral

import (
	"context"
	"errors"

	balancestore "github.com/amanahtour/safarhub/internal/app/store/balances"
	codestore "github.com/amanahtour/safarhub/internal/app/store/referralcodes"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/app/system/txn"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Warning strings surfaced to callers when attribution is skipped. The signup
// itself always proceeds; these explain why no attribution happened.
const (
	WarnUnknownCode       = "referral code not recognized"
	WarnAlreadyAttributed = "account already has a referrer"
)

type Engine struct {
	client   *mongo.Client
	users    *userstore.Store
	codes    *codestore.Store
	balances *balancestore.Store
	logger   *zap.Logger
}

func NewEngine(client *mongo.Client, users *userstore.Store, codes *codestore.Store, balances *balancestore.Store, logger *zap.Logger) *Engine {
	return &Engine{
		client:   client,
		users:    users,
		codes:    codes,
		balances: balances,
		logger:   logger,
	}
}

// AttributionResult reports what Attribute did. Warning is set when the
// attribution was skipped for a non-fatal reason.
type AttributionResult struct {
	Applied bool               `json:"applied"`
	Code    string             `json:"code,omitempty"`
	OwnerID primitive.ObjectID `json:"owner_id,omitempty"`
	Warning string             `json:"warning,omitempty"`
}

// Attribute links a freshly created account to the owner of the supplied
// referral code and bumps the owner's counter, exactly once.
//
// An unknown code is not an error: the result carries a warning and the
// caller's signup flow continues. A second attribution attempt for the same
// account is a no-op because the referred_by write is first-write-wins; the
// counter is only incremented when that write applied, so one signup never
// counts twice.
func (e *Engine) Attribute(ctx context.Context, userID primitive.ObjectID, rawCode string) (AttributionResult, error) {
	code := normalize.ReferralCode(rawCode)
	if code == "" {
		return AttributionResult{}, nil
	}

	rc, err := e.codes.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return AttributionResult{Code: code, Warning: WarnUnknownCode}, nil
		}
		return AttributionResult{}, err
	}

	apply := func(ctx context.Context) (AttributionResult, error) {
		applied, err := e.users.SetReferredBy(ctx, userID, rc.ReferralCode)
		if err != nil {
			return AttributionResult{}, err
		}
		if !applied {
			return AttributionResult{Code: rc.ReferralCode, OwnerID: rc.OwnerID, Warning: WarnAlreadyAttributed}, nil
		}
		if err := e.codes.IncrementReferrals(ctx, rc.OwnerID, rc.OwnerRole); err != nil {
			return AttributionResult{}, err
		}
		return AttributionResult{Applied: true, Code: rc.ReferralCode, OwnerID: rc.OwnerID}, nil
	}

	out, err := txn.WithTransaction(ctx, e.client, func(sc mongo.SessionContext) (interface{}, error) {
		return apply(sc)
	})
	if err == nil {
		return out.(AttributionResult), nil
	}
	if !txn.IsNotSupported(err) {
		return AttributionResult{}, err
	}

	// Standalone deployment. The two writes run unbundled; the filter guard
	// on referred_by still makes the pair apply at most once.
	e.logger.Debug("transactions unavailable, attributing without a session",
		zap.String("user_id", userID.Hex()))
	return apply(ctx)
}

// codeEligible reports whether the account may hold a referral code right
// now. Role eligibility alone is not enough: approval-gated roles must have
// cleared review first.
func codeEligible(u *models.User) bool {
	if !roles.CodeEligible(u.Role) {
		return false
	}
	if roles.RequiresApproval(u.Role) && u.ApprovalStatus != models.ApprovalApproved {
		return false
	}
	return true
}

// EnsureCode issues the account's referral code if it is eligible and does
// not have one yet. Safe to call on every login: for an account that already
// holds a code this returns the existing record with created=false.
//
// Issuance also seeds the owner's commission balance row and mirrors the code
// onto the user record. Any failure leaves the account codeless and the whole
// operation is retried on the next login.
func (e *Engine) EnsureCode(ctx context.Context, u *models.User) (rc *models.ReferralCode, created bool, err error) {
	if u == nil || !codeEligible(u) {
		return nil, false, nil
	}

	rc, created, err = e.codes.Ensure(ctx, u.ID, u.Role, u.FullName, u.Email)
	if err != nil {
		return nil, false, err
	}

	if created {
		if err := e.balances.EnsureRow(ctx, u.ID); err != nil {
			e.logger.Error("failed to seed referral balance row",
				zap.String("owner_id", u.ID.Hex()), zap.Error(err))
		}
	}

	// Mirror onto the user record; first write wins, so a concurrent login
	// landing first is fine.
	if u.ReferralCode == "" {
		if _, err := e.users.SetReferralCode(ctx, u.ID, rc.ReferralCode); err != nil {
			e.logger.Error("failed to mirror referral code onto user",
				zap.String("owner_id", u.ID.Hex()), zap.Error(err))
		}
	}
	return rc, created, nil
}
