package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"community-aid/internal/domain"
)

func seedAccount(t *testing.T, repo *MemoryAccountRepository) domain.Account {
	t.Helper()
	a := domain.Account{
		ID:                     "acc-1",
		Name:                   "Alice",
		Email:                  "alice@x.com",
		Phone:                  "+15550100",
		Role:                   domain.RoleCitizen,
		EmailVerificationToken: "digest-1",
		CreatedAt:              time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestMemoryRepo_CreateRejectsDuplicates(t *testing.T) {
	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)

	err := repo.Create(context.Background(), domain.Account{ID: "acc-2", Email: "alice@x.com", Phone: "+15550199"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	err = repo.Create(context.Background(), domain.Account{ID: "acc-3", Email: "bob@x.com", Phone: "+15550100"})
	if !errors.Is(err, ErrDuplicatePhone) {
		t.Fatalf("expected ErrDuplicatePhone, got %v", err)
	}
}

func TestMemoryRepo_Lookups(t *testing.T) {
	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)
	ctx := context.Background()

	if _, err := repo.GetByEmail(ctx, "alice@x.com"); err != nil {
		t.Fatalf("by email: %v", err)
	}
	if _, err := repo.GetByPhone(ctx, "+15550100"); err != nil {
		t.Fatalf("by phone: %v", err)
	}
	if _, err := repo.GetByVerificationToken(ctx, "digest-1"); err != nil {
		t.Fatalf("by token: %v", err)
	}
	if _, err := repo.GetByResetToken(ctx, ""); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("empty lookup must miss, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestMemoryRepo_UpdateSemantics(t *testing.T) {
	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)
	ctx := context.Background()

	updated, err := repo.Update(ctx, ByVerificationToken("digest-1"), func(a *domain.Account) error {
		a.MarkEmailVerified()
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.EmailVerified {
		t.Fatalf("expected verified account")
	}
	if _, err := repo.GetByVerificationToken(ctx, "digest-1"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("consumed token must not resolve, got %v", err)
	}

	_, err = repo.Update(ctx, ByID("acc-1"), func(a *domain.Account) error {
		a.FailedLoginAttempts = 3
		return ErrSkipUpdate
	})
	if err != nil {
		t.Fatalf("skip update: %v", err)
	}
	stored, _ := repo.GetByID(ctx, "acc-1")
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("skipped update must not persist, got %d", stored.FailedLoginAttempts)
	}

	boom := errors.New("boom")
	if _, err := repo.Update(ctx, ByID("acc-1"), func(a *domain.Account) error {
		a.AccountLocked = true
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	stored, _ = repo.GetByID(ctx, "acc-1")
	if stored.AccountLocked {
		t.Fatalf("failed update must not persist")
	}

	if _, err := repo.Update(ctx, ByEmail("ghost@x.com"), func(*domain.Account) error { return nil }); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	repo := NewMemoryAccountRepository()
	seedAccount(t, repo)
	ctx := context.Background()

	if _, err := repo.Update(ctx, ByID("acc-1"), func(a *domain.Account) error {
		a.TwoFactorBackupCodes = []string{"a", "b"}
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetByID(ctx, "acc-1")
	got.TwoFactorBackupCodes[0] = "mutated"

	again, _ := repo.GetByID(ctx, "acc-1")
	if again.TwoFactorBackupCodes[0] != "a" {
		t.Fatalf("callers must not share backing arrays with the store")
	}
}

func TestMapUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}, ErrDuplicateEmail},
		{&pgconn.PgError{Code: "23505", ConstraintName: "accounts_phone_key"}, ErrDuplicatePhone},
	}
	for _, tc := range cases {
		if got := mapUniqueViolation(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, got)
		}
	}
	other := &pgconn.PgError{Code: "23503"}
	if got := mapUniqueViolation(other); got != error(other) {
		t.Fatalf("non-unique errors must pass through, got %v", got)
	}
}
