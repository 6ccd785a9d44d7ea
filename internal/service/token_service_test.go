package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/config"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/internal/service"
	"github.com/stocksim/paper-broker/lib/errs"
)

func newTestTokenService(t *testing.T) (service.TokenService, *gorm.DB) {
	t.Helper()

	testDB := setupTestDB(t)
	cfg := config.TokenConfig{
		Secret:       "test-secret",
		AccessToken:  15 * time.Minute,
		RefreshToken: time.Hour,
	}

	tokens := service.NewTokenService(
		repository.NewSessionsRepository(testDB),
		repository.NewUsersRepository(testDB),
		testDB,
		cfg,
	)

	return tokens, testDB
}

func TestGenerateTokens(t *testing.T) {
	tokens, testDB := newTestTokenService(t)

	user := createTestUser(t, testDB, "token_generate", 10000)

	accessToken, refreshToken, err := tokens.GenerateTokens(user.ID, user.Username)
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}
	if refreshToken == "" {
		t.Fatal("Expected a non-empty refresh token")
	}

	parsed, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("Access token does not verify: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("Expected map claims")
	}
	if claims["sub"] != user.ID.String() {
		t.Errorf("Expected sub claim %s, got %v", user.ID, claims["sub"])
	}
	if claims["name"] != "token_generate" {
		t.Errorf("Expected name claim token_generate, got %v", claims["name"])
	}
}

func TestRefreshToken(t *testing.T) {
	tokens, testDB := newTestTokenService(t)

	user := createTestUser(t, testDB, "token_refresh", 10000)

	_, refreshToken, err := tokens.GenerateTokens(user.ID, user.Username)
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	newAccessToken, newRefreshToken, err := tokens.RefreshToken(refreshToken)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if newAccessToken == "" || newRefreshToken == "" {
		t.Fatal("Expected a new token pair")
	}

	// Rotation invalidates the old refresh token.
	if _, _, err := tokens.RefreshToken(refreshToken); !errors.Is(err, errs.ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for a rotated token, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	tokens, testDB := newTestTokenService(t)

	user := createTestUser(t, testDB, "token_logout", 10000)

	_, refreshToken, err := tokens.GenerateTokens(user.ID, user.Username)
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	if err := tokens.Logout(refreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, _, err := tokens.RefreshToken(refreshToken); !errors.Is(err, errs.ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken after logout, got %v", err)
	}

	// Logging out twice is fine.
	if err := tokens.Logout(refreshToken); err != nil {
		t.Errorf("Expected idempotent logout, got %v", err)
	}
}
