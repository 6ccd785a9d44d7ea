package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/lib/errs"
)

type UsersRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(userID uuid.UUID) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	DebitCash(userID uuid.UUID, amount decimal.Decimal) error
	CreditCash(userID uuid.UUID, amount decimal.Decimal) error
}

type usersRepository struct {
	db *gorm.DB
}

func NewUsersRepository(db *gorm.DB) UsersRepository {
	return &usersRepository{db: db}
}

func (db *usersRepository) CreateUser(user *models.User) error {
	if err := db.db.Create(user).Error; err != nil {
		errorString := err.Error()
		if strings.Contains(errorString, "UNIQUE constraint failed") || strings.Contains(errorString, "duplicate key value violates unique constraint") {
			return errs.ErrAlreadyExists
		}

		return err
	}

	return nil
}

func (db *usersRepository) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

func (db *usersRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := db.db.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, err
	}
	return &user, nil
}

// DebitCash subtracts amount from the user's cash in a single guarded
// UPDATE. The statement only matches when the balance covers the amount,
// and it writes the user row, so inside a transaction it also takes the
// row lock that serializes concurrent trades for the same account.
func (db *usersRepository) DebitCash(userID uuid.UUID, amount decimal.Decimal) error {
	result := db.db.Model(&models.User{}).
		Where("id = ? AND cash >= ?", userID, amount).
		UpdateColumn("cash", gorm.Expr("cash - ?", amount))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := db.GetUserByID(userID); err != nil {
			return err
		}
		return errs.ErrInsufficientFunds
	}

	return nil
}

func (db *usersRepository) CreditCash(userID uuid.UUID, amount decimal.Decimal) error {
	result := db.db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("cash", gorm.Expr("cash + ?", amount))
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}
