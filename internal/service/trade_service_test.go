package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stocksim/paper-broker/internal/models"
	"github.com/stocksim/paper-broker/internal/quote"
	"github.com/stocksim/paper-broker/internal/repository"
	"github.com/stocksim/paper-broker/internal/service"
	"github.com/stocksim/paper-broker/lib/errs"
)

type stubProvider struct {
	quotes map[string]*quote.Quote
}

func (p *stubProvider) Lookup(_ context.Context, symbol string) (*quote.Quote, error) {
	q, ok := p.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, errs.ErrUnknownSymbol
	}
	return q, nil
}

func (p *stubProvider) set(symbol, name string, price int64) {
	p.quotes[symbol] = &quote.Quote{
		Symbol: symbol,
		Name:   name,
		Price:  decimal.NewFromInt(price),
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.HistoryEntry{}, &models.Session{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, cash int64) *models.User {
	t.Helper()

	user := &models.User{
		ID:       uuid.New(),
		Username: username,
		Hash:     "not-a-real-hash",
		Cash:     decimal.NewFromInt(cash),
	}
	if err := repository.NewUsersRepository(db).CreateUser(user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	return user
}

func userCash(t *testing.T, db *gorm.DB, userID uuid.UUID) decimal.Decimal {
	t.Helper()

	user, err := repository.NewUsersRepository(db).GetUserByID(userID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	return user.Cash
}

func userLedger(t *testing.T, db *gorm.DB, userID uuid.UUID) []models.HistoryEntry {
	t.Helper()

	entries, err := repository.NewHistoryRepository(db).ListByUser(userID)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	return entries
}

func TestBuy(t *testing.T) {
	testDB := setupTestDB(t)
	provider := &stubProvider{quotes: map[string]*quote.Quote{}}
	provider.set("AAA", "Triple A Corp", 50)
	trades := service.NewTradeService(provider, testDB)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_buy_ok", 10000)

		entry, err := trades.Buy(ctx, user.ID, "AAA", decimal.NewFromInt(10))
		if err != nil {
			t.Fatalf("Buy failed: %v", err)
		}

		if entry.Type != models.TradeTypeBuy {
			t.Errorf("Expected BUY entry, got %s", entry.Type)
		}
		if !entry.Share.Equal(decimal.NewFromInt(10)) || !entry.Price.Equal(decimal.NewFromInt(50)) {
			t.Errorf("Expected share=10 price=50, got share=%s price=%s", entry.Share, entry.Price)
		}

		if cash := userCash(t, testDB, user.ID); !cash.Equal(decimal.NewFromInt(9500)) {
			t.Errorf("Expected cash 9500, got %s", cash)
		}

		ledger := userLedger(t, testDB, user.ID)
		if len(ledger) != 1 {
			t.Fatalf("Expected exactly one ledger row, got %d", len(ledger))
		}

		position, err := repository.NewHistoryRepository(testDB).PositionForSymbol(user.ID, "AAA")
		if err != nil {
			t.Fatalf("PositionForSymbol failed: %v", err)
		}
		if !position.Equal(decimal.NewFromInt(10)) {
			t.Errorf("Expected derived position 10, got %s", position)
		}
	})

	t.Run("insufficient_funds", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_buy_broke", 100)

		_, err := trades.Buy(ctx, user.ID, "AAA", decimal.NewFromInt(10))
		if !errors.Is(err, errs.ErrInsufficientFunds) {
			t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
		}

		if cash := userCash(t, testDB, user.ID); !cash.Equal(decimal.NewFromInt(100)) {
			t.Errorf("Expected cash unchanged at 100, got %s", cash)
		}
		if ledger := userLedger(t, testDB, user.ID); len(ledger) != 0 {
			t.Errorf("Expected zero ledger rows, got %d", len(ledger))
		}
	})

	t.Run("unknown_symbol", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_buy_unknown", 10000)

		_, err := trades.Buy(ctx, user.ID, "NOPE", decimal.NewFromInt(1))
		if !errors.Is(err, errs.ErrUnknownSymbol) {
			t.Fatalf("Expected ErrUnknownSymbol, got %v", err)
		}
		if ledger := userLedger(t, testDB, user.ID); len(ledger) != 0 {
			t.Errorf("Expected zero ledger rows, got %d", len(ledger))
		}
	})

	t.Run("non_positive_shares", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_buy_invalid", 10000)

		for _, shares := range []int64{0, -3} {
			_, err := trades.Buy(ctx, user.ID, "AAA", decimal.NewFromInt(shares))
			if !errors.Is(err, errs.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput for %d shares, got %v", shares, err)
			}
		}
		if cash := userCash(t, testDB, user.ID); !cash.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("Expected cash unchanged at 10000, got %s", cash)
		}
	})
}

func TestSell(t *testing.T) {
	testDB := setupTestDB(t)
	provider := &stubProvider{quotes: map[string]*quote.Quote{}}
	provider.set("AAA", "Triple A Corp", 50)
	trades := service.NewTradeService(provider, testDB)
	ctx := context.Background()

	t.Run("buy_then_sell_scenario", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_sell_ok", 10000)

		if _, err := trades.Buy(ctx, user.ID, "AAA", decimal.NewFromInt(10)); err != nil {
			t.Fatalf("Buy failed: %v", err)
		}

		// Price moved between the buy and the sell.
		provider.set("AAA", "Triple A Corp", 60)

		entry, err := trades.Sell(ctx, user.ID, "AAA", decimal.NewFromInt(4))
		if err != nil {
			t.Fatalf("Sell failed: %v", err)
		}

		if entry.Type != models.TradeTypeSell {
			t.Errorf("Expected SELL entry, got %s", entry.Type)
		}
		if !entry.Share.Equal(decimal.NewFromInt(-4)) || !entry.Price.Equal(decimal.NewFromInt(60)) {
			t.Errorf("Expected share=-4 price=60, got share=%s price=%s", entry.Share, entry.Price)
		}

		if cash := userCash(t, testDB, user.ID); !cash.Equal(decimal.NewFromInt(9740)) {
			t.Errorf("Expected cash 9740, got %s", cash)
		}

		position, err := repository.NewHistoryRepository(testDB).PositionForSymbol(user.ID, "AAA")
		if err != nil {
			t.Fatalf("PositionForSymbol failed: %v", err)
		}
		if !position.Equal(decimal.NewFromInt(6)) {
			t.Errorf("Expected derived position 6, got %s", position)
		}

		provider.set("AAA", "Triple A Corp", 50)
	})

	t.Run("sell_never_owned", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_sell_nothing", 10000)

		_, err := trades.Sell(ctx, user.ID, "AAA", decimal.NewFromInt(100))
		if !errors.Is(err, errs.ErrInsufficientShares) {
			t.Fatalf("Expected ErrInsufficientShares, got %v", err)
		}

		if cash := userCash(t, testDB, user.ID); !cash.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("Expected cash unchanged at 10000, got %s", cash)
		}
		if ledger := userLedger(t, testDB, user.ID); len(ledger) != 0 {
			t.Errorf("Expected zero ledger rows, got %d", len(ledger))
		}
	})

	t.Run("oversell_existing_position", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_oversell", 10000)

		if _, err := trades.Buy(ctx, user.ID, "AAA", decimal.NewFromInt(5)); err != nil {
			t.Fatalf("Buy failed: %v", err)
		}
		cashAfterBuy := userCash(t, testDB, user.ID)

		_, err := trades.Sell(ctx, user.ID, "AAA", decimal.NewFromInt(6))
		if !errors.Is(err, errs.ErrInsufficientShares) {
			t.Fatalf("Expected ErrInsufficientShares, got %v", err)
		}

		// The rejected sell must roll back completely, including the
		// cash credit issued before the position check.
		if cash := userCash(t, testDB, user.ID); !cash.Equal(cashAfterBuy) {
			t.Errorf("Expected cash unchanged at %s, got %s", cashAfterBuy, cash)
		}
		if ledger := userLedger(t, testDB, user.ID); len(ledger) != 1 {
			t.Errorf("Expected only the buy row in the ledger, got %d rows", len(ledger))
		}
	})

	t.Run("non_positive_shares", func(t *testing.T) {
		user := createTestUser(t, testDB, "trade_sell_invalid", 10000)

		_, err := trades.Sell(ctx, user.ID, "AAA", decimal.NewFromInt(-1))
		if !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput, got %v", err)
		}
	})
}
