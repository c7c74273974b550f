package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/marketdata"
)

// RefreshReport summarises one price refresh run. Counts are per instrument.
type RefreshReport struct {
	Symbols int `json:"symbols"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// PriceSync copies market quotes into last_price/last_price_date of every
// instrument that has a yahoo_symbol.
type PriceSync struct {
	repo   domain.InstrumentRepository
	quotes marketdata.QuoteProvider
	now    func() time.Time
	mu     sync.Mutex
}

func NewPriceSync(repo domain.InstrumentRepository, quotes marketdata.QuoteProvider) *PriceSync {
	return &PriceSync{
		repo:   repo,
		quotes: quotes,
		now:    time.Now,
	}
}

// RefreshPrices runs one refresh. Failures for individual symbols are
// counted and logged; only a failure to list instruments aborts the run.
func (s *PriceSync) RefreshPrices(ctx context.Context) (RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report RefreshReport

	instruments, err := s.repo.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list instruments: %w", err)
	}

	bySymbol := make(map[string][]domain.Instrument)
	for _, inst := range instruments {
		if inst.YahooSymbol == nil || strings.TrimSpace(*inst.YahooSymbol) == "" {
			continue
		}
		symbol := strings.TrimSpace(*inst.YahooSymbol)
		bySymbol[symbol] = append(bySymbol[symbol], inst)
	}
	if len(bySymbol) == 0 {
		return report, nil
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	report.Symbols = len(symbols)

	answered := make(map[string]bool, len(symbols))
	for _, result := range s.quotes.GetQuoteBatch(ctx, symbols) {
		targets, ok := bySymbol[result.Symbol]
		if !ok || answered[result.Symbol] {
			continue
		}
		answered[result.Symbol] = true

		if result.Error != nil || result.Quote == nil {
			slog.Warn("Failed to fetch quote", "symbol", result.Symbol, "error", result.Error)
			report.Failed += len(targets)
			continue
		}
		for _, inst := range targets {
			s.apply(ctx, inst, result.Quote, &report)
		}
	}

	for _, symbol := range symbols {
		if !answered[symbol] {
			slog.Warn("No quote returned", "symbol", symbol)
			report.Failed += len(bySymbol[symbol])
		}
	}

	return report, nil
}

func (s *PriceSync) apply(ctx context.Context, inst domain.Instrument, quote *marketdata.QuoteResult, report *RefreshReport) {
	if quote.Currency != "" && !strings.EqualFold(quote.Currency, string(inst.OriginalCurrency)) {
		slog.Warn("Quote currency does not match instrument currency",
			"instrument_id", inst.ID, "symbol", quote.Symbol,
			"quote_currency", quote.Currency, "original_currency", inst.OriginalCurrency)
		report.Skipped++
		return
	}

	patch := domain.InstrumentPatch{
		LastPrice:     domain.Some(quote.Price),
		LastPriceDate: domain.Some(s.quoteDate(quote.Time)),
	}
	_, found, err := s.repo.Update(ctx, inst.ID, patch)
	switch {
	case err != nil:
		slog.Error("Failed to store price", "instrument_id", inst.ID, "symbol", quote.Symbol, "error", err)
		report.Failed++
	case !found:
		report.Skipped++
	default:
		report.Updated++
	}
}

// quoteDate falls back to today when the provider time cannot be parsed.
func (s *PriceSync) quoteDate(raw string) domain.Date {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return domain.DateOf(t)
	}
	if d, err := domain.ParseDate(raw); err == nil {
		return d
	}
	return domain.DateOf(s.now())
}
