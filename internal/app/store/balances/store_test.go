package balancestore_test

import (
	"errors"
	"testing"

	balancestore "github.com/amanahtour/safarhub/internal/app/store/balances"
	"github.com/amanahtour/safarhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCredit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	if err := store.EnsureRow(ctx, ownerID); err != nil {
		t.Fatalf("EnsureRow failed: %v", err)
	}

	b, err := store.Credit(ctx, ownerID, 250_000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if b.Balance != 250_000 || b.TotalEarned != 250_000 {
		t.Errorf("after first credit: balance=%d total=%d", b.Balance, b.TotalEarned)
	}

	b, err = store.Credit(ctx, ownerID, 100_000)
	if err != nil {
		t.Fatalf("second Credit failed: %v", err)
	}
	if b.Balance != 350_000 || b.TotalEarned != 350_000 {
		t.Errorf("after second credit: balance=%d total=%d", b.Balance, b.TotalEarned)
	}
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, amount := range []int64{0, -500} {
		if _, err := store.Credit(ctx, primitive.NewObjectID(), amount); !errors.Is(err, balancestore.ErrNonPositiveAmount) {
			t.Errorf("Credit(%d): got %v, want ErrNonPositiveAmount", amount, err)
		}
	}
}

func TestCredit_UpsertsMissingRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	b, err := store.Credit(ctx, ownerID, 75_000)
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if b.Balance != 75_000 {
		t.Errorf("balance: got %d, want 75000", b.Balance)
	}
}

func TestEnsureRow_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ownerID := primitive.NewObjectID()
	if err := store.EnsureRow(ctx, ownerID); err != nil {
		t.Fatalf("EnsureRow failed: %v", err)
	}
	if _, err := store.Credit(ctx, ownerID, 50_000); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := store.EnsureRow(ctx, ownerID); err != nil {
		t.Fatalf("second EnsureRow failed: %v", err)
	}

	b, err := store.Get(ctx, ownerID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.Balance != 50_000 {
		t.Errorf("EnsureRow must not reset the balance, got %d", b.Balance)
	}
}

func TestGet_Missing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Get(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("got %v, want ErrNoDocuments", err)
	}
}
