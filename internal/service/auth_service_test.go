package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/internal/service"
	"github.com/stocksim/paper-broker/lib/errs"
	"github.com/stocksim/paper-broker/lib/hashcrypto"
)

func TestRegister(t *testing.T) {
	testDB := setupTestDB(t)
	usersRepo := repository.NewUsersRepository(testDB)
	auth := service.NewAuthService(usersRepo, decimal.NewFromInt(10000))
	ctx := context.Background()

	t.Run("success_seeds_starting_cash", func(t *testing.T) {
		user, err := auth.Register(ctx, "auth_new_user", "s3cret", "s3cret")
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		if !user.Cash.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("Expected starting cash 10000, got %s", user.Cash)
		}
		if err := hashcrypto.CheckPwd([]byte(user.Hash), []byte("s3cret")); err != nil {
			t.Errorf("Stored hash does not verify against the password: %v", err)
		}
	})

	t.Run("duplicate_username", func(t *testing.T) {
		if _, err := auth.Register(ctx, "auth_duplicate", "s3cret", "s3cret"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		_, err := auth.Register(ctx, "auth_duplicate", "other", "other")
		if !errors.Is(err, errs.ErrAlreadyExists) {
			t.Fatalf("Expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("confirmation_mismatch", func(t *testing.T) {
		_, err := auth.Register(ctx, "auth_mismatch", "s3cret", "different")
		if !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
		if _, err := usersRepo.GetUserByUsername("auth_mismatch"); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Expected no user row after rejected registration, got %v", err)
		}
	})

	t.Run("empty_fields", func(t *testing.T) {
		if _, err := auth.Register(ctx, "", "s3cret", "s3cret"); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for empty username, got %v", err)
		}
		if _, err := auth.Register(ctx, "auth_nopass", "", ""); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for empty password, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	testDB := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(testDB), decimal.NewFromInt(10000))
	ctx := context.Background()

	if _, err := auth.Register(ctx, "auth_login", "s3cret", "s3cret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		user, err := auth.Login(ctx, "auth_login", "s3cret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if user.Username != "auth_login" {
			t.Errorf("Expected username auth_login, got %s", user.Username)
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := auth.Login(ctx, "auth_login", "wrong")
		if !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown_user", func(t *testing.T) {
		_, err := auth.Login(ctx, "auth_ghost", "s3cret")
		if !errors.Is(err, errs.ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})
}
