package quote

import (
	"context"

	"github.com/shopspring/decimal"
)

// Quote is the current name and price for a ticker symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Provider resolves a ticker symbol to a current quote. Implementations
// return errs.ErrUnknownSymbol for symbols the market does not know and
// errs.ErrQuoteProvider for transport failures. Lookups are not retried.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}
