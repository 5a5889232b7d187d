package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
)

func seedAccount(t *testing.T, repo AccountRepository, username, email string, verified bool) *domain.Account {
	t.Helper()
	a := &domain.Account{
		Name:         "Test " + username,
		Username:     username,
		Email:        email,
		PasswordHash: "hash",
		IsVerified:   verified,
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return a
}

func TestAccountRepositoryCreateNormalizesAndDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))

	a := seedAccount(t, repo, "jane", "  Jane@Example.COM ", false)
	if a.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	got, err := repo.FindByEmail(ctx, "JANE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if got.Email != "jane@example.com" {
		t.Fatalf("email not normalized: %q", got.Email)
	}
	if !got.Roles.Has(domain.RoleUser) || got.Status != domain.AccountStatusActive {
		t.Fatalf("unexpected defaults: roles=%v status=%q", got.Roles, got.Status)
	}
}

func TestAccountRepositoryCreateDuplicateEmail(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "a", "dup@example.com", false)

	err := repo.Create(context.Background(), &domain.Account{Name: "B", Username: "b", Email: "DUP@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrAccountConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAccountRepositoryFindByUsernameVerifiedOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	seedAccount(t, repo, "sam", "sam1@example.com", false)

	if _, err := repo.FindByUsername(ctx, "sam", true); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected unverified account hidden, got %v", err)
	}
	if _, err := repo.FindByUsername(ctx, "sam", false); err != nil {
		t.Fatalf("expected unverified account visible without filter: %v", err)
	}

	verified := seedAccount(t, repo, "sam", "sam2@example.com", true)
	got, err := repo.FindByUsername(ctx, " SAM ", true)
	if err != nil {
		t.Fatalf("find verified: %v", err)
	}
	if got.ID != verified.ID {
		t.Fatalf("expected verified account %d, got %d", verified.ID, got.ID)
	}
}

func TestAccountRepositoryUpdateByID(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	a := seedAccount(t, repo, "kim", "kim@example.com", false)

	code := "123456"
	expiry := time.Now().Add(10 * time.Minute)
	got, err := repo.UpdateByID(ctx, a.ID, AccountUpdate{VerificationCode: &code, VerificationCodeExpiry: &expiry})
	if err != nil {
		t.Fatalf("set code: %v", err)
	}
	if !got.HasPendingCode() || *got.VerificationCode != code {
		t.Fatalf("code not stored: %+v", got)
	}

	verified := true
	got, err = repo.UpdateByID(ctx, a.ID, AccountUpdate{IsVerified: &verified, ClearCode: true})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.IsVerified || got.VerificationCode != nil || got.VerificationCodeExpiry != nil {
		t.Fatalf("expected verified with cleared code: %+v", got)
	}
}

func TestAccountRepositoryUpdateByIDRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	a := seedAccount(t, repo, "lee", "lee@example.com", false)

	code := "654321"
	bad := domain.AccountStatus("banned")
	cases := map[string]AccountUpdate{
		"empty":           {},
		"code no expiry":  {VerificationCode: &code},
		"clear with code": {VerificationCode: &code, ClearCode: true},
		"unknown status":  {Status: &bad},
	}
	for name, update := range cases {
		if _, err := repo.UpdateByID(ctx, a.ID, update); !errors.Is(err, ErrInvalidUpdate) {
			t.Fatalf("%s: expected invalid update, got %v", name, err)
		}
	}

	name := "Nobody"
	if _, err := repo.UpdateByID(ctx, a.ID+100, AccountUpdate{Name: &name}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAccountRepositoryListPagedSearch(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	for i := 0; i < 12; i++ {
		seedAccount(t, repo, fmt.Sprintf("member%02d", i), fmt.Sprintf("member%02d@example.com", i), true)
	}
	seedAccount(t, repo, "outsider", "outsider@other.org", true)

	page, err := repo.ListPaged(ctx, AccountListQuery{PageRequest: PageRequest{Page: 2, PageSize: 5}, Search: "MEMBER"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 12 || page.TotalPages != 3 || len(page.Items) != 5 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}

	all, err := repo.ListPaged(ctx, AccountListQuery{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.Total != 13 || all.PageSize != DefaultPageSize {
		t.Fatalf("unexpected defaults: total=%d size=%d", all.Total, all.PageSize)
	}
}

func TestAccountRepositoryVerifiedUsernameIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	first := seedAccount(t, repo, "river", "river1@example.com", false)
	second := seedAccount(t, repo, "river", "river2@example.com", false)

	verified := true
	if _, err := repo.UpdateByID(ctx, first.ID, AccountUpdate{IsVerified: &verified, ClearCode: true}); err != nil {
		t.Fatalf("verify first: %v", err)
	}
	_, err := repo.UpdateByID(ctx, second.ID, AccountUpdate{IsVerified: &verified, ClearCode: true})
	if !errors.Is(err, ErrAccountConflict) {
		t.Fatalf("expected conflict for second verified holder, got %v", err)
	}
	got, err := repo.FindByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("reload second: %v", err)
	}
	if got.IsVerified {
		t.Fatal("second account must stay unverified")
	}

	if err := repo.Create(ctx, &domain.Account{Name: "R", Username: "RIVER", Email: "river3@example.com", PasswordHash: "x", IsVerified: true}); !errors.Is(err, ErrAccountConflict) {
		t.Fatalf("expected conflict creating verified duplicate, got %v", err)
	}
}

func TestAccountRepositoryUpdatesProfileFields(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(newTestDB(t))
	a := seedAccount(t, repo, "ivy", "ivy@example.com", true)

	fresh, err := repo.FindByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fresh.Bio != "" || len(fresh.Interests) != 0 {
		t.Fatalf("expected empty profile, got bio=%q interests=%v", fresh.Bio, fresh.Interests)
	}

	bio := "climbs trees"
	interests := domain.StringList{"botany", "go, mostly"}
	got, err := repo.UpdateByID(ctx, a.ID, AccountUpdate{Bio: &bio, Interests: &interests})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Bio != bio || len(got.Interests) != 2 || got.Interests[1] != "go, mostly" {
		t.Fatalf("profile not stored: bio=%q interests=%v", got.Bio, got.Interests)
	}
}
