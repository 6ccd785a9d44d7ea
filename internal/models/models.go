package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

type User struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey;" json:"id"`
	Username string          `gorm:"unique;not null" json:"username"`
	Hash     string          `json:"-"`
	Cash     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cash"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

// HistoryEntry is one row of the trade ledger. Rows are append-only:
// nothing in the codebase updates or deletes them, and positions are
// always recomputed from the signed Share sums.
type HistoryEntry struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	Type   string          `gorm:"not null" json:"type"`
	Symbol string          `gorm:"not null;index" json:"symbol"`
	Name   string          `gorm:"not null" json:"name"`
	Share  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"share"`
	Price  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	Time   time.Time       `gorm:"not null" json:"time"`
}

type Session struct {
	ID           uint
	UserID       uuid.UUID `gorm:"type:uuid"`
	User         User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	RefreshToken string    `gorm:"unique"`
	ExpiresAt    time.Time
}
