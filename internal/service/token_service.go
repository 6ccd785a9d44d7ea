package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/config"
	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/lib/errs"
	"github.com/stocksim/paper-broker/lib/hashcrypto"
)

type TokenService interface {
	GenerateTokens(userID uuid.UUID, username string) (string, string, error)
	RefreshToken(refreshToken string) (newAccessToken string, newRefreshToken string, err error)
	Logout(refreshToken string) error
	DeleteExpiredSessions() error
}

type tokenService struct {
	sessionsRepo repository.SessionsRepository
	usersRepo    repository.UsersRepository
	db           *gorm.DB
	cfg          config.TokenConfig
}

func NewTokenService(sessionsRepo repository.SessionsRepository,
	usersRepo repository.UsersRepository,
	db *gorm.DB,
	cfg config.TokenConfig,
) TokenService {
	return &tokenService{
		sessionsRepo: sessionsRepo,
		usersRepo:    usersRepo,
		db:           db,
		cfg:          cfg,
	}
}

func (s *tokenService) GenerateTokens(userID uuid.UUID, username string) (string, string, error) {
	return s.generateTokensInTx(userID, username, s.sessionsRepo)
}

func (s *tokenService) RefreshToken(currentRefreshToken string) (string, string, error) {
	var newAccessToken, newRefreshToken string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		txSessionsRepo := repository.NewSessionsRepository(tx)
		txUsersRepo := repository.NewUsersRepository(tx)

		hashedToken := hashcrypto.HashToken(currentRefreshToken)
		session, err := txSessionsRepo.GetByTokenHash(hashedToken)
		if err != nil {
			return errs.ErrInvalidToken
		}

		if time.Now().After(session.ExpiresAt) {
			return errs.ErrInvalidToken
		}

		user, err := txUsersRepo.GetUserByID(session.UserID)
		if err != nil {
			return fmt.Errorf("inconsistent state: session found but user not: %w", err)
		}

		if err := txSessionsRepo.DeleteByTokenHash(hashedToken); err != nil {
			return fmt.Errorf("failed to delete old session: %w", err)
		}

		newAccessToken, newRefreshToken, err = s.generateTokensInTx(user.ID, user.Username, txSessionsRepo)
		if err != nil {
			return fmt.Errorf("failed to generate new tokens: %w", err)
		}

		return nil
	})

	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}

func (s *tokenService) generateTokensInTx(userID uuid.UUID, username string, repo repository.SessionsRepository) (string, string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"name": username,
		"exp":  time.Now().Add(s.cfg.AccessToken).Unix(),
		"iat":  time.Now().Unix(),
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedAccessToken, err := accessToken.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := hashcrypto.GenerateRandomString(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: hashcrypto.HashToken(refreshToken),
		ExpiresAt:    time.Now().Add(s.cfg.RefreshToken),
	}

	if err := repo.Store(session); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token session: %w", err)
	}

	return signedAccessToken, refreshToken, nil
}

func (s *tokenService) Logout(refreshToken string) error {
	hashedToken := hashcrypto.HashToken(refreshToken)

	if err := s.sessionsRepo.DeleteByTokenHash(hashedToken); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return nil
}

func (s *tokenService) DeleteExpiredSessions() error {
	return s.sessionsRepo.DeleteExpired()
}
