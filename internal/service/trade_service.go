package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/quote"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/lib/errs"
)

// TradeService applies buys and sells against a user's cash balance and
// the trade ledger. Each trade fetches its quote exactly once and reuses
// that price for both validation and the recorded ledger row, and commits
// inside a single database transaction whose first statement writes the
// user row: concurrent trades for the same account serialize on that row,
// so a rejection never leaves partial state behind.
type TradeService interface {
	Buy(ctx context.Context, userID uuid.UUID, symbol string, shares decimal.Decimal) (*models.HistoryEntry, error)
	Sell(ctx context.Context, userID uuid.UUID, symbol string, shares decimal.Decimal) (*models.HistoryEntry, error)
}

type tradeService struct {
	provider quote.Provider
	db       *gorm.DB
}

func NewTradeService(provider quote.Provider, db *gorm.DB) TradeService {
	return &tradeService{
		provider: provider,
		db:       db,
	}
}

func (s *tradeService) Buy(ctx context.Context, userID uuid.UUID, symbol string, shares decimal.Decimal) (*models.HistoryEntry, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("%w: share count must be positive", errs.ErrInvalidInput)
	}

	q, err := s.provider.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	cost := q.Price.Mul(shares)

	var entry *models.HistoryEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUsers := repository.NewUsersRepository(tx)
		txHistory := repository.NewHistoryRepository(tx)

		if err := txUsers.DebitCash(userID, cost); err != nil {
			return err
		}

		entry = &models.HistoryEntry{
			UserID: userID,
			Type:   models.TradeTypeBuy,
			Symbol: q.Symbol,
			Name:   q.Name,
			Share:  shares,
			Price:  q.Price,
			Time:   time.Now(),
		}
		return txHistory.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (s *tradeService) Sell(ctx context.Context, userID uuid.UUID, symbol string, shares decimal.Decimal) (*models.HistoryEntry, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("%w: share count must be positive", errs.ErrInvalidInput)
	}

	q, err := s.provider.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	proceeds := q.Price.Mul(shares)

	var entry *models.HistoryEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUsers := repository.NewUsersRepository(tx)
		txHistory := repository.NewHistoryRepository(tx)

		// Credit first: writing the user row takes the lock that keeps
		// the position check below safe against concurrent sells. A
		// failed check rolls the credit back with the transaction.
		if err := txUsers.CreditCash(userID, proceeds); err != nil {
			return err
		}

		owned, err := txHistory.PositionForSymbol(userID, q.Symbol)
		if err != nil {
			return err
		}
		if shares.GreaterThan(owned) {
			return errs.ErrInsufficientShares
		}

		entry = &models.HistoryEntry{
			UserID: userID,
			Type:   models.TradeTypeSell,
			Symbol: q.Symbol,
			Name:   q.Name,
			Share:  shares.Neg(),
			Price:  q.Price,
			Time:   time.Now(),
		}
		return txHistory.Append(entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}
