package signup_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	uierrors "github.com/amanahtour/safarhub/internal/app/features/errors"
	"github.com/amanahtour/safarhub/internal/app/features/signup"
	"github.com/amanahtour/safarhub/internal/app/referral"
	applicationstore "github.com/amanahtour/safarhub/internal/app/store/applications"
	balancestore "github.com/amanahtour/safarhub/internal/app/store/balances"
	codestore "github.com/amanahtour/safarhub/internal/app/store/referralcodes"
	userstore "github.com/amanahtour/safarhub/internal/app/store/users"
	"github.com/amanahtour/safarhub/internal/domain/models"
	"github.com/amanahtour/safarhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func emailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
}

func newTestHandler(t *testing.T) (*signup.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	users := userstore.New(db)
	applications := applicationstore.New(db)
	engine := referral.NewEngine(db.Client(), users, codestore.New(db), balancestore.New(db), logger)

	handler := signup.NewHandler(users, applications, engine, nil, uierrors.NewErrorLogger(logger), logger)
	return handler, testutil.NewFixtures(t, db)
}

func postSignup(t *testing.T, handler *signup.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.HandleSignup(rec, req)
	return rec
}

func TestHandleSignup_SelfServe(t *testing.T) {
	handler, fixtures := newTestHandler(t)

	rec := postSignup(t, handler, `{
		"full_name": "Siti Rahma",
		"email": "siti@example.com",
		"password": "jamaah-pass1",
		"role": "prospective-jamaah"
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		User     models.User `json:"user"`
		Warnings []string    `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Role != "prospective-jamaah" {
		t.Errorf("role: got %q", resp.User.Role)
	}
	if resp.User.ApprovalStatus != "" {
		t.Errorf("self-serve signup must not be gated, got %q", resp.User.ApprovalStatus)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", resp.Warnings)
	}

	// The password hash never leaves the server.
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("response leaks password_hash")
	}

	_ = fixtures
}

func TestHandleSignup_GatedRoleFilesApplication(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := postSignup(t, handler, `{
		"full_name": "Budi Santoso",
		"email": "budi@example.com",
		"password": "jamaah-pass1",
		"role": "tour-leader",
		"application_data": {"guide_license": "TL-2024-0817"}
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		User models.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ApprovalStatus != models.ApprovalPending {
		t.Errorf("gated signup must start pending, got %q", resp.User.ApprovalStatus)
	}

	count, err := fixtures.DB().Collection("account_applications").CountDocuments(ctx, bson.M{"user_id": resp.User.ID})
	if err != nil {
		t.Fatalf("count applications: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one application on file, got %d", count)
	}
}

func TestHandleSignup_UnknownReferralCodeWarns(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := postSignup(t, handler, `{
		"full_name": "Siti Rahma",
		"email": "siti@example.com",
		"password": "jamaah-pass1",
		"role": "prospective-jamaah",
		"referral_code": "ALM-NOSUCH00"
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("bad referral code must not block signup: got %d", rec.Code)
	}

	var resp struct {
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0] != referral.WarnUnknownCode {
		t.Errorf("warnings: got %v, want [%q]", resp.Warnings, referral.WarnUnknownCode)
	}
}

func TestHandleSignup_ValidReferralAttributes(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fixtures.CreateAlumni(ctx, "Siti Rahma", "siti@example.com")
	fixtures.CreateReferralCode(ctx, owner, "ALM-TEST0001")

	rec := postSignup(t, handler, `{
		"full_name": "Budi Santoso",
		"email": "budi@example.com",
		"password": "jamaah-pass1",
		"role": "prospective-jamaah",
		"referral_code": "alm-test0001"
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		User     models.User `json:"user"`
		Warnings []string    `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ReferredBy != "ALM-TEST0001" {
		t.Errorf("referred_by: got %q", resp.User.ReferredBy)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", resp.Warnings)
	}
}

func TestHandleSignup_DuplicateEmail(t *testing.T) {
	handler, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// The unique index backs duplicate detection.
	fixtures.CreateUser(ctx, "First", "taken@example.com", "alumni")
	if _, err := fixtures.DB().Collection("users").Indexes().CreateOne(ctx, emailIndex()); err != nil {
		t.Fatalf("create email index: %v", err)
	}

	rec := postSignup(t, handler, `{
		"full_name": "Second",
		"email": "taken@example.com",
		"password": "jamaah-pass1",
		"role": "alumni"
	}`)

	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestHandleSignup_ManagementRoleRefused(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := postSignup(t, handler, `{
		"full_name": "Mallory",
		"email": "mallory@example.com",
		"password": "jamaah-pass1",
		"role": "admin"
	}`)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", rec.Code)
	}
}

func TestHandleSignup_WeakPassword(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := postSignup(t, handler, `{
		"full_name": "Siti Rahma",
		"email": "siti@example.com",
		"password": "short",
		"role": "alumni"
	}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}
