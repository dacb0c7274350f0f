package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// TestPassword is the plaintext password every fixture user gets.
const TestPassword = "jamaah-pass1"

func (f *Fixtures) hash(password string) *string {
	f.t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}
	s := string(h)
	return &s
}

// CreateUser creates a test user with the given role and no approval gate.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        email,
		Role:         role,
		PasswordHash: f.hash(TestPassword),
		AuthMethod:   "password",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "admin")
}

// CreateAlumni creates a test alumni user (code eligible, no gate).
func (f *Fixtures) CreateAlumni(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "alumni")
}

// CreateGatedUser creates a test user in an approval-gated role with the
// given approval status already stamped.
func (f *Fixtures) CreateGatedUser(ctx context.Context, fullName, email, role, approvalStatus string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                  primitive.NewObjectID(),
		FullName:            fullName,
		FullNameCI:          text.Fold(fullName),
		Email:               email,
		Role:                role,
		PasswordHash:        f.hash(TestPassword),
		AuthMethod:          "password",
		ApprovalStatus:      approvalStatus,
		ApprovalRequestedAt: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if approvalStatus == models.ApprovalApproved {
		user.ApprovedAt = &now
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create gated test user: %v", err)
	}
	return user
}

// CreateRejectedUser creates a gated user already rejected with the reason.
func (f *Fixtures) CreateRejectedUser(ctx context.Context, fullName, email, role, reason string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:                  primitive.NewObjectID(),
		FullName:            fullName,
		FullNameCI:          text.Fold(fullName),
		Email:               email,
		Role:                role,
		PasswordHash:        f.hash(TestPassword),
		AuthMethod:          "password",
		ApprovalStatus:      models.ApprovalRejected,
		ApprovalRequestedAt: &now,
		RejectedAt:          &now,
		RejectionReason:     reason,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create rejected test user: %v", err)
	}
	return user
}

// CreateReferralCode inserts a code record for the owner into the
// role-appropriate collection.
func (f *Fixtures) CreateReferralCode(ctx context.Context, owner models.User, code string) models.ReferralCode {
	f.t.Helper()

	collection := "alumni_referral_codes"
	if owner.Role == "agen" || owner.Role == "agent" {
		collection = "agen_referral_codes"
	}

	rc := models.ReferralCode{
		ID:           primitive.NewObjectID(),
		ReferralCode: code,
		OwnerID:      owner.ID,
		OwnerName:    owner.FullName,
		OwnerEmail:   owner.Email,
		OwnerRole:    owner.Role,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := f.db.Collection(collection).InsertOne(ctx, rc); err != nil {
		f.t.Fatalf("failed to create test referral code: %v", err)
	}
	return rc
}

// CreateApplication inserts a pending account application for the user.
func (f *Fixtures) CreateApplication(ctx context.Context, user models.User, requestedRole string) models.AccountApplication {
	f.t.Helper()

	now := time.Now().UTC()
	app := models.AccountApplication{
		ID:            primitive.NewObjectID(),
		UserID:        user.ID,
		RequestedRole: requestedRole,
		CurrentRole:   user.Role,
		Status:        models.ApprovalPending,
		AppliedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("account_applications").InsertOne(ctx, app); err != nil {
		f.t.Fatalf("failed to create test application: %v", err)
	}
	return app
}
