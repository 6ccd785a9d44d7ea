package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/quote"
	"github.com/stocksim/paper-broker/internal/repository"
)

type Position struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

type PortfolioView struct {
	Cash      decimal.Decimal `json:"cash"`
	Positions []Position      `json:"positions"`
	Total     decimal.Decimal `json:"total"`
}

// PortfolioService derives holdings and valuation from the ledger. It
// never caches positions: every call recomputes them from the history
// rows, so the ledger stays the single source of truth.
type PortfolioService interface {
	Portfolio(ctx context.Context, userID uuid.UUID) (*PortfolioView, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.HistoryEntry, error)
}

type portfolioService struct {
	usersRepo   repository.UsersRepository
	historyRepo repository.HistoryRepository
	provider    quote.Provider
}

func NewPortfolioService(usersRepo repository.UsersRepository,
	historyRepo repository.HistoryRepository,
	provider quote.Provider,
) PortfolioService {
	return &portfolioService{
		usersRepo:   usersRepo,
		historyRepo: historyRepo,
		provider:    provider,
	}
}

func (s *portfolioService) Portfolio(ctx context.Context, userID uuid.UUID) (*PortfolioView, error) {
	user, err := s.usersRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.historyRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	type holding struct {
		name   string
		shares decimal.Decimal
	}

	// Entries come back oldest first, so the name seen last is the most
	// recent one recorded for the symbol.
	holdings := make(map[string]*holding)
	for _, entry := range entries {
		h, ok := holdings[entry.Symbol]
		if !ok {
			h = &holding{shares: decimal.Zero}
			holdings[entry.Symbol] = h
		}
		h.name = entry.Name
		h.shares = h.shares.Add(entry.Share)
	}

	symbols := make([]string, 0, len(holdings))
	for symbol, h := range holdings {
		if h.shares.IsZero() {
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	view := &PortfolioView{
		Cash:      user.Cash,
		Positions: make([]Position, 0, len(symbols)),
		Total:     user.Cash,
	}

	for _, symbol := range symbols {
		h := holdings[symbol]

		q, err := s.provider.Lookup(ctx, symbol)
		if err != nil {
			return nil, err
		}

		value := h.shares.Mul(q.Price)
		view.Positions = append(view.Positions, Position{
			Symbol: symbol,
			Name:   h.name,
			Shares: h.shares,
			Price:  q.Price,
			Value:  value,
		})
		view.Total = view.Total.Add(value)
	}

	return view, nil
}

func (s *portfolioService) History(_ context.Context, userID uuid.UUID) ([]models.HistoryEntry, error) {
	return s.historyRepo.ListByUser(userID)
}
