package userstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/amanahtour/safarhub/internal/testutil"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureEmailIndex creates the unique email index the bootstrap normally
// installs, so duplicate detection behaves like production.
func ensureEmailIndex(t *testing.T, ctx context.Context, db *mongo.Database) {
	t.Helper()
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("failed to create email index: %v", err)
	}
}

func TestCreate_GatedRoleStartsPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Budi Santoso",
		Email:    "Budi@Example.com",
		Role:     "tour-leader",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if u.ApprovalStatus != models.ApprovalPending {
		t.Errorf("approval status: got %q, want %q", u.ApprovalStatus, models.ApprovalPending)
	}
	if u.ApprovalRequestedAt == nil {
		t.Error("expected approval_requested_at to be stamped")
	}
	if u.Email != "budi@example.com" {
		t.Errorf("email not normalized: got %q", u.Email)
	}
	if u.ReferralCode != "" || u.ReferredBy != "" {
		t.Error("referral fields must be empty at creation")
	}
}

func TestCreate_SelfServeRoleHasNoGate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Siti Rahma",
		Email:    "siti@example.com",
		Role:     roles.ProspectiveJamaah,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if u.ApprovalStatus != "" {
		t.Errorf("self-serve role must not carry approval status, got %q", u.ApprovalStatus)
	}
	if u.ApprovalRequestedAt != nil {
		t.Error("self-serve role must not carry approval_requested_at")
	}
}

func TestCreate_LegacyAliasCanonicalized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Pak Agen",
		Email:    "agen@example.com",
		Role:     "agent",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.Role != roles.Agen {
		t.Errorf("role: got %q, want %q", u.Role, roles.Agen)
	}
	if u.ApprovalStatus != models.ApprovalPending {
		t.Errorf("agen must start pending, got %q", u.ApprovalStatus)
	}
}

func TestApprove_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Budi Santoso",
		Email:    "budi@example.com",
		Role:     roles.Mutawwif,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	applied, got, err := store.Approve(ctx, u.ID, roles.Mutawwif)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !applied {
		t.Fatal("first approve should apply")
	}
	if got.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("status: got %q, want approved", got.ApprovalStatus)
	}
	if got.ApprovedAt == nil {
		t.Error("expected approved_at to be stamped")
	}

	applied, got, err = store.Approve(ctx, u.ID, roles.Mutawwif)
	if err != nil {
		t.Fatalf("second Approve failed: %v", err)
	}
	if applied {
		t.Error("second approve must be a no-op")
	}
	if got.ApprovalStatus != models.ApprovalApproved {
		t.Errorf("status after no-op: got %q, want approved", got.ApprovalStatus)
	}
}

func TestApprove_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Budi Santoso",
		Email:    "budi@example.com",
		Role:     roles.TourLeader,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const n = 8
	results := make(chan bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, _, err := store.Approve(ctx, u.ID, roles.TourLeader)
			if err != nil {
				t.Errorf("Approve failed: %v", err)
				return
			}
			results <- applied
		}()
	}
	wg.Wait()
	close(results)

	appliedCount := 0
	for applied := range results {
		if applied {
			appliedCount++
		}
	}
	if appliedCount != 1 {
		t.Errorf("expected exactly one approve to apply, got %d", appliedCount)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Budi Santoso",
		Email:    "budi@example.com",
		Role:     roles.TourLeader,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, _, err := store.Reject(ctx, u.ID, "   "); !errors.Is(err, userstore.ErrEmptyReason) {
		t.Errorf("blank reason: got %v, want ErrEmptyReason", err)
	}

	applied, got, err := store.Reject(ctx, u.ID, "Incomplete CV")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if !applied {
		t.Fatal("reject of a pending user should apply")
	}
	if got.ApprovalStatus != models.ApprovalRejected {
		t.Errorf("status: got %q, want rejected", got.ApprovalStatus)
	}
	if got.RejectionReason != "Incomplete CV" {
		t.Errorf("reason: got %q, want %q", got.RejectionReason, "Incomplete CV")
	}

	// Rejection is terminal; a late approve must not resurrect the account.
	applied, got, err = store.Approve(ctx, u.ID, roles.TourLeader)
	if err != nil {
		t.Fatalf("Approve after reject failed: %v", err)
	}
	if applied {
		t.Error("approve after reject must be a no-op")
	}
	if got.ApprovalStatus != models.ApprovalRejected {
		t.Errorf("status after late approve: got %q, want rejected", got.ApprovalStatus)
	}
}

func TestDuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ensureEmailIndex(t, ctx, db)

	if _, err := store.Create(ctx, models.User{
		FullName: "First", Email: "same@example.com", Role: roles.Alumni,
	}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	_, err := store.Create(ctx, models.User{
		FullName: "Second", Email: "SAME@example.com", Role: roles.Alumni,
	})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}
}

func TestSetReferredBy_FirstWriteWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Siti Rahma",
		Email:    "siti@example.com",
		Role:     roles.ProspectiveJamaah,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	applied, err := store.SetReferredBy(ctx, u.ID, "ALM-AAAA1111")
	if err != nil {
		t.Fatalf("SetReferredBy failed: %v", err)
	}
	if !applied {
		t.Fatal("first write should apply")
	}

	applied, err = store.SetReferredBy(ctx, u.ID, "AGN-BBBB2222")
	if err != nil {
		t.Fatalf("second SetReferredBy failed: %v", err)
	}
	if applied {
		t.Error("second write must not apply")
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ReferredBy != "ALM-AAAA1111" {
		t.Errorf("referred_by: got %q, want the first code", got.ReferredBy)
	}
}

func TestVerificationRequest_Lifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Siti Rahma",
		Email:    "siti@example.com",
		Role:     roles.CurrentJamaah,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	req := models.VerificationRequest{
		ID:      uuid.NewString(),
		Type:    models.UpgradeToAlumni,
		Message: "Returned from the March departure",
	}
	if err := store.SubmitVerificationRequest(ctx, u.ID, req); err != nil {
		t.Fatalf("SubmitVerificationRequest failed: %v", err)
	}

	// Only one request may be in flight.
	err = store.SubmitVerificationRequest(ctx, u.ID, models.VerificationRequest{
		ID: uuid.NewString(), Type: models.UpgradeToAlumni,
	})
	if !errors.Is(err, userstore.ErrRequestInFlight) {
		t.Errorf("second submit: got %v, want ErrRequestInFlight", err)
	}

	applied, got, err := store.ApproveVerification(ctx, u.ID)
	if err != nil {
		t.Fatalf("ApproveVerification failed: %v", err)
	}
	if !applied {
		t.Fatal("approve of a pending request should apply")
	}
	if got.Role != roles.Alumni {
		t.Errorf("role after upgrade: got %q, want alumni", got.Role)
	}
	if got.VerificationRequest.Status != models.ApprovalApproved {
		t.Errorf("request status: got %q, want approved", got.VerificationRequest.Status)
	}

	// A second review of the settled request reports no pending request.
	if _, _, err := store.ApproveVerification(ctx, u.ID); !errors.Is(err, userstore.ErrNoPendingRequest) {
		t.Errorf("second review: got %v, want ErrNoPendingRequest", err)
	}

	// After settlement a new request may be submitted again.
	if err := store.SubmitVerificationRequest(ctx, u.ID, models.VerificationRequest{
		ID: uuid.NewString(), Type: models.UpgradeToAlumni,
	}); err != nil {
		t.Errorf("submit after settlement failed: %v", err)
	}
}

func TestRejectVerification_KeepsRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, models.User{
		FullName: "Siti Rahma",
		Email:    "siti@example.com",
		Role:     roles.ProspectiveJamaah,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SubmitVerificationRequest(ctx, u.ID, models.VerificationRequest{
		ID: uuid.NewString(), Type: models.UpgradeToCurrent,
	}); err != nil {
		t.Fatalf("SubmitVerificationRequest failed: %v", err)
	}

	applied, got, err := store.RejectVerification(ctx, u.ID, "Proof image unreadable")
	if err != nil {
		t.Fatalf("RejectVerification failed: %v", err)
	}
	if !applied {
		t.Fatal("reject of a pending request should apply")
	}
	if got.Role != roles.ProspectiveJamaah {
		t.Errorf("role must be unchanged on rejection, got %q", got.Role)
	}
	if got.VerificationRequest.RejectionReason != "Proof image unreadable" {
		t.Errorf("reason: got %q", got.VerificationRequest.RejectionReason)
	}
}
