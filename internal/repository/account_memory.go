package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"community-aid/internal/domain"
)

// MemoryAccountRepository guarda cuentas en memoria. Se usa en tests y en
// modo desarrollo; un unico mutex serializa todas las transiciones.
type MemoryAccountRepository struct {
	mu    sync.Mutex
	items map[string]domain.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{items: make(map[string]domain.Account)}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Email == account.Email {
			return ErrDuplicateEmail
		}
		if existing.Phone == account.Phone {
			return ErrDuplicatePhone
		}
	}
	r.items[account.ID] = account.Clone()
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (domain.Account, error) {
	return r.find(ByID(id))
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (domain.Account, error) {
	return r.find(ByEmail(email))
}

func (r *MemoryAccountRepository) GetByPhone(_ context.Context, phone string) (domain.Account, error) {
	return r.find(Lookup{column: "phone", value: phone})
}

func (r *MemoryAccountRepository) GetByVerificationToken(_ context.Context, token string) (domain.Account, error) {
	return r.find(ByVerificationToken(token))
}

func (r *MemoryAccountRepository) GetByResetToken(_ context.Context, token string) (domain.Account, error) {
	return r.find(ByResetToken(token))
}

func (r *MemoryAccountRepository) Update(_ context.Context, l Lookup, fn func(*domain.Account) error) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.lookupLocked(l)
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	working := current.Clone()
	if err := fn(&working); err != nil {
		if errors.Is(err, ErrSkipUpdate) {
			return working, nil
		}
		return domain.Account{}, err
	}
	working.UpdatedAt = time.Now().UTC()
	r.items[working.ID] = working.Clone()
	return working, nil
}

func (r *MemoryAccountRepository) find(l Lookup) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.lookupLocked(l)
	if !ok {
		return domain.Account{}, pgx.ErrNoRows
	}
	return account.Clone(), nil
}

func (r *MemoryAccountRepository) lookupLocked(l Lookup) (domain.Account, bool) {
	if l.value == "" {
		return domain.Account{}, false
	}
	if l.column == "id" {
		account, ok := r.items[l.value]
		return account, ok
	}
	for _, account := range r.items {
		var field string
		switch l.column {
		case "email":
			field = account.Email
		case "phone":
			field = account.Phone
		case "email_verification_token":
			field = account.EmailVerificationToken
		case "password_reset_token":
			field = account.PasswordResetToken
		}
		if field == l.value {
			return account, true
		}
	}
	return domain.Account{}, false
}
