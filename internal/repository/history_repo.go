package repository

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/models"
)

// HistoryRepository is the append-only trade ledger. Entries are never
// updated or deleted.
type HistoryRepository interface {
	Append(entry *models.HistoryEntry) error
	ListByUser(userID uuid.UUID) ([]models.HistoryEntry, error)
	PositionForSymbol(userID uuid.UUID, symbol string) (decimal.Decimal, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (db *historyRepository) Append(entry *models.HistoryEntry) error {
	return db.db.Create(entry).Error
}

func (db *historyRepository) ListByUser(userID uuid.UUID) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	if err := db.db.Where("user_id = ?", userID).Order("time ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// PositionForSymbol derives the net share count for one symbol by summing
// the signed ledger entries.
func (db *historyRepository) PositionForSymbol(userID uuid.UUID, symbol string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}

	err := db.db.Model(&models.HistoryEntry{}).
		Select("COALESCE(SUM(share), 0) AS total").
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}

	return row.Total, nil
}
