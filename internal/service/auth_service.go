package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/lib/errs"
	"github.com/stocksim/paper-broker/lib/hashcrypto"
)

type AuthService interface {
	Register(ctx context.Context, username, password, confirmation string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
}

type authService struct {
	usersRepo    repository.UsersRepository
	startingCash decimal.Decimal
}

func NewAuthService(usersRepo repository.UsersRepository, startingCash decimal.Decimal) AuthService {
	return &authService{
		usersRepo:    usersRepo,
		startingCash: startingCash,
	}
}

func (s *authService) Register(_ context.Context, username, password, confirmation string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username must not be empty", errs.ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", errs.ErrInvalidInput)
	}
	if password != confirmation {
		return nil, fmt.Errorf("%w: password confirmation does not match", errs.ErrInvalidInput)
	}

	_, err := s.usersRepo.GetUserByUsername(username)
	if err == nil {
		return nil, errs.ErrAlreadyExists
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := hashcrypto.HashPwd([]byte(password))
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Hash:     string(hashedPassword),
		Cash:     s.startingCash,
	}
	if err := s.usersRepo.CreateUser(user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) Login(_ context.Context, username, password string) (*models.User, error) {
	user, err := s.usersRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := hashcrypto.CheckPwd([]byte(user.Hash), []byte(password)); err != nil {
		return nil, errs.ErrInvalidCredentials
	}

	return user, nil
}
