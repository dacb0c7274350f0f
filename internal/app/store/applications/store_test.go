package applicationstore_test

import (
	"errors"
	"testing"
	"time"

	applicationstore "github.com/amanahtour/safarhub/internal/app/store/applications"
	"github.com/amanahtour/safarhub/internal/app/system/roles"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/amanahtour/safarhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSubmit_AndDuplicateBlock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fixtures.CreateUser(ctx, "Budi Santoso", "budi@example.com", roles.CurrentJamaah)

	app, err := store.Submit(ctx, models.AccountApplication{
		UserID:        user.ID,
		RequestedRole: roles.TourLeader,
		CurrentRole:   user.Role,
		ApplicationData: map[string]string{
			"guide_license": "TL-2024-0817",
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if app.Status != models.ApprovalPending {
		t.Errorf("status: got %q, want pending", app.Status)
	}

	// A second submission while one is pending is blocked.
	_, err = store.Submit(ctx, models.AccountApplication{
		UserID:        user.ID,
		RequestedRole: roles.Mutawwif,
		CurrentRole:   user.Role,
	})
	if !errors.Is(err, applicationstore.ErrDuplicateApplication) {
		t.Errorf("second submit: got %v, want ErrDuplicateApplication", err)
	}
}

func TestSubmit_RejectsSelfServeRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Submit(ctx, models.AccountApplication{
		UserID:        primitive.NewObjectID(),
		RequestedRole: roles.Alumni,
	})
	if err == nil {
		t.Error("submitting an application for a self-serve role must fail")
	}
}

func TestApprove_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fixtures.CreateUser(ctx, "Budi Santoso", "budi@example.com", roles.CurrentJamaah)
	admin := fixtures.CreateAdmin(ctx, "Test Admin", "admin@example.com")
	app := fixtures.CreateApplication(ctx, user, roles.Agen)

	applied, got, err := store.Approve(ctx, app.ID, admin.ID, "docs verified")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !applied {
		t.Fatal("first approve should apply")
	}
	if got.Status != models.ApprovalApproved {
		t.Errorf("status: got %q, want approved", got.Status)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != admin.ID {
		t.Error("reviewed_by not recorded")
	}

	applied, got, err = store.Approve(ctx, app.ID, admin.ID, "")
	if err != nil {
		t.Fatalf("second Approve failed: %v", err)
	}
	if applied {
		t.Error("second approve must be a no-op")
	}
	if got.Status != models.ApprovalApproved {
		t.Errorf("status after no-op: got %q", got.Status)
	}
}

func TestReject_RequiresReason_ThenAllowsResubmit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := fixtures.CreateUser(ctx, "Budi Santoso", "budi@example.com", roles.CurrentJamaah)
	admin := fixtures.CreateAdmin(ctx, "Test Admin", "admin@example.com")
	app := fixtures.CreateApplication(ctx, user, roles.TourLeader)

	if _, _, err := store.Reject(ctx, app.ID, admin.ID, ""); !errors.Is(err, applicationstore.ErrEmptyReason) {
		t.Errorf("blank reason: got %v, want ErrEmptyReason", err)
	}

	applied, got, err := store.Reject(ctx, app.ID, admin.ID, "Incomplete CV")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if !applied {
		t.Fatal("reject should apply")
	}
	if got.RejectedReason != "Incomplete CV" {
		t.Errorf("reason: got %q", got.RejectedReason)
	}

	// A rejected application does not block resubmission.
	if _, err := store.Submit(ctx, models.AccountApplication{
		UserID:        user.ID,
		RequestedRole: roles.TourLeader,
		CurrentRole:   user.Role,
	}); err != nil {
		t.Errorf("resubmit after rejection failed: %v", err)
	}
}

func TestListByStatus_OldestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := applicationstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first := fixtures.CreateUser(ctx, "First", "first@example.com", roles.CurrentJamaah)
	second := fixtures.CreateUser(ctx, "Second", "second@example.com", roles.CurrentJamaah)
	fixtures.CreateApplication(ctx, first, roles.TourLeader)
	time.Sleep(5 * time.Millisecond) // applied_at has millisecond precision
	fixtures.CreateApplication(ctx, second, roles.Agen)

	apps, err := store.ListByStatus(ctx, "Pending")
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}
	if apps[0].UserID != first.ID {
		t.Error("expected oldest application first")
	}
}
