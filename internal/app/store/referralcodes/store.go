// Package codestore persists referral code records.
//
// Codes live in one collection per owner role (alumni, agen). A code record
// is created exactly once per owner and never deleted. Ensure is the
// idempotency boundary: it checks for an existing record before writing and
// returns whatever is already there. Unique indexes on referral_code back up
// the check-then-write against the low-probability concurrent double mint.
package codestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/amanahtour/safarhub/internal/app/system/normalize"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names per owner role.
const (
	AlumniCollection = "alumni_referral_codes"
	AgenCollection   = "agen_referral_codes"
)

// Code prefixes per owner role.
const (
	alumniPrefix = "ALM"
	agenPrefix   = "AGN"
)

// codeAlphabet is the character set for the random code suffix.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// suffixLength is the number of random characters after the prefix.
const suffixLength = 8

// maxMintAttempts bounds collision retries before Ensure fails closed.
const maxMintAttempts = 5

var (
	// ErrNotEligible is returned when the owner role cannot hold a code.
	ErrNotEligible = errors.New("role is not eligible for a referral code")
	// ErrExhausted is returned when every mint attempt collided.
	ErrExhausted = errors.New("could not mint a unique referral code")
)

type Store struct {
	db *mongo.Database
}

func New(db *mongo.Database) *Store {
	return &Store{db: db}
}

// collectionFor returns the code collection for an owner role.
func (s *Store) collectionFor(role string) (*mongo.Collection, string, error) {
	switch roles.Canonical(role) {
	case roles.Alumni:
		return s.db.Collection(AlumniCollection), alumniPrefix, nil
	case roles.Agen:
		return s.db.Collection(AgenCollection), agenPrefix, nil
	}
	return nil, "", ErrNotEligible
}

// GetByOwner returns the owner's code record from the role-appropriate
// collection, or mongo.ErrNoDocuments.
func (s *Store) GetByOwner(ctx context.Context, ownerID primitive.ObjectID, ownerRole string) (*models.ReferralCode, error) {
	coll, _, err := s.collectionFor(ownerRole)
	if err != nil {
		return nil, err
	}
	var rc models.ReferralCode
	if err := coll.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Resolve looks a normalized code up across both code-owning collections.
// Returns mongo.ErrNoDocuments when the code exists nowhere.
func (s *Store) Resolve(ctx context.Context, code string) (*models.ReferralCode, error) {
	code = normalize.ReferralCode(code)

	for _, name := range []string{AlumniCollection, AgenCollection} {
		var rc models.ReferralCode
		err := s.db.Collection(name).FindOne(ctx, bson.M{"referral_code": code}).Decode(&rc)
		if err == nil {
			return &rc, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}
	}
	return nil, mongo.ErrNoDocuments
}

// Ensure returns the owner's code record, minting it on first call.
//
// Idempotent and safe to call on every login: an existing record is returned
// with created=false and no write happens. On a detected code collision the
// candidate is regenerated a bounded number of times; if every attempt
// collides, Ensure fails closed with ErrExhausted and the owner keeps no
// code (the next invocation retries from scratch).
func (s *Store) Ensure(ctx context.Context, ownerID primitive.ObjectID, ownerRole, ownerName, ownerEmail string) (rc *models.ReferralCode, created bool, err error) {
	coll, prefix, err := s.collectionFor(ownerRole)
	if err != nil {
		return nil, false, err
	}

	var existing models.ReferralCode
	err = coll.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&existing)
	if err == nil {
		return &existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		code, err := mintCode(prefix)
		if err != nil {
			return nil, false, err
		}

		// The store has no cross-collection constraint, so check both
		// collections before writing; the unique index still backstops a
		// same-collection race.
		switch _, err := s.Resolve(ctx, code); err {
		case mongo.ErrNoDocuments:
			// free to use
		case nil:
			continue
		default:
			return nil, false, err
		}

		record := models.ReferralCode{
			ID:             primitive.NewObjectID(),
			ReferralCode:   code,
			OwnerID:        ownerID,
			OwnerName:      ownerName,
			OwnerEmail:     normalize.Email(ownerEmail),
			OwnerRole:      roles.Canonical(ownerRole),
			TotalReferrals: 0,
			CreatedAt:      time.Now().UTC(),
		}

		if _, err := coll.InsertOne(ctx, record); err != nil {
			if wafflemongo.IsDup(err) {
				// Either the code collided or a concurrent login minted the
				// owner's record first; re-read and return theirs.
				var winner models.ReferralCode
				if ferr := coll.FindOne(ctx, bson.M{"owner_id": ownerID}).Decode(&winner); ferr == nil {
					return &winner, false, nil
				}
				continue
			}
			return nil, false, err
		}
		return &record, true, nil
	}

	return nil, false, ErrExhausted
}

// IncrementReferrals bumps the owner's attribution counter by one.
func (s *Store) IncrementReferrals(ctx context.Context, ownerID primitive.ObjectID, ownerRole string) error {
	coll, _, err := s.collectionFor(ownerRole)
	if err != nil {
		return err
	}
	res, err := coll.UpdateOne(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{"$inc": bson.M{"total_referrals": 1}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// mintCode builds a candidate code: PREFIX-XXXXXXXX, uppercase alphanumeric.
func mintCode(prefix string) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return fmt.Sprintf("%s-%s", prefix, buf), nil
}
