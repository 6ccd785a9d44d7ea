package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/lib/errs"
)

type SessionsRepository interface {
	Store(session *models.Session) error
	GetByTokenHash(tokenHash string) (*models.Session, error)
	DeleteByTokenHash(tokenHash string) error
	DeleteExpired() error
}

type sessionsRepository struct {
	db *gorm.DB
}

func NewSessionsRepository(db *gorm.DB) SessionsRepository {
	return &sessionsRepository{db: db}
}

func (db *sessionsRepository) Store(session *models.Session) error {
	result := db.db.Create(session)

	if result.Error != nil {
		return fmt.Errorf("%w: %s", errs.ErrInternal, result.Error.Error())
	}

	return nil
}

func (db *sessionsRepository) GetByTokenHash(tokenHash string) (*models.Session, error) {
	var session models.Session

	if err := db.db.Where("refresh_token = ?", tokenHash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %s", errs.ErrInternal, err.Error())
	}

	return &session, nil
}

func (db *sessionsRepository) DeleteByTokenHash(tokenHash string) error {
	result := db.db.Where("refresh_token = ?", tokenHash).Delete(&models.Session{})

	if err := result.Error; err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInternal, err.Error())
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (db *sessionsRepository) DeleteExpired() error {
	result := db.db.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("%w: %s", errs.ErrInternal, result.Error.Error())
	}
	return nil
}
