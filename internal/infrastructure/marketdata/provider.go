package marketdata

import (
	"context"

	"github.com/jmanzanog/instrument-registry/internal/domain"
)

// QuoteResult is the latest traded price of a symbol.
type QuoteResult struct {
	Symbol   string
	Price    domain.Decimal
	Currency string
	// Time is the quote time as reported by the provider, usually RFC 3339.
	Time string
}

// QuoteBatchResult carries either a quote or the error for one symbol.
type QuoteBatchResult struct {
	Symbol string
	Quote  *QuoteResult
	Error  error
}

type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*QuoteResult, error)
	// GetQuoteBatch never fails as a whole: transport errors are reported
	// once per requested symbol.
	GetQuoteBatch(ctx context.Context, symbols []string) []QuoteBatchResult
}
