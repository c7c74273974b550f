package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidInstrumentType = errors.New("invalid instrument type")
	ErrInvalidCurrency       = errors.New("invalid currency")
	ErrInvalidInstrument     = errors.New("invalid instrument")
	ErrDuplicateInstrument   = errors.New("duplicate instrument")
	ErrInstrumentNotFound    = errors.New("instrument not found")
	ErrCorruptRow            = errors.New("corrupt instrument row")
)

type InstrumentType string

const (
	InstrumentTypeEquity InstrumentType = "Equity"
	InstrumentTypeBond   InstrumentType = "Bond"
	InstrumentTypeETF    InstrumentType = "ETF"
	InstrumentTypeFuture InstrumentType = "Future"
)

// InstrumentTypes lists the accepted instrument types in display order.
var InstrumentTypes = []InstrumentType{
	InstrumentTypeEquity,
	InstrumentTypeBond,
	InstrumentTypeETF,
	InstrumentTypeFuture,
}

func (t InstrumentType) IsValid() bool {
	switch t {
	case InstrumentTypeEquity, InstrumentTypeBond, InstrumentTypeETF, InstrumentTypeFuture:
		return true
	}
	return false
}

// ParseInstrumentType accepts only the canonical spelling.
func ParseInstrumentType(s string) (InstrumentType, error) {
	t := InstrumentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInstrumentType, s)
	}
	return t, nil
}

type Currency string

const (
	CurrencyCHF Currency = "CHF"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

var Currencies = []Currency{CurrencyCHF, CurrencyEUR, CurrencyUSD}

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyCHF, CurrencyEUR, CurrencyUSD:
		return true
	}
	return false
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// Instrument is a financial instrument record as stored in the instrument
// table. Nil pointers mean the column is NULL.
type Instrument struct {
	ID        int64   `json:"instrument_id"`
	ShortName string  `json:"short_name"`
	FullName  string  `json:"full_name"`
	ISIN      *string `json:"isin"`

	InstrumentType InstrumentType `json:"instrument_type"`
	Sector         *string        `json:"sector"`
	Industry       *string        `json:"industry"`
	Country        *string        `json:"country"`

	OriginalCurrency    Currency  `json:"original_currency"`
	InterestCurrency    Currency  `json:"interest_currency"`
	StatisticalCurrency *Currency `json:"statistical_currency"`

	InterestRate   *Decimal `json:"interest_rate"`
	InterestPeriod *int64   `json:"interest_period"`

	LastPrice     *Decimal `json:"last_price"`
	LastPriceDate *Date    `json:"last_price_date"`

	IssueDate           *Date    `json:"issue_date"`
	ExpirationDate      *Date    `json:"expiration_date"`
	FirstCallDate       *Date    `json:"first_call_date"`
	FirstCallPercentage *Decimal `json:"first_call_percentage"`

	CouponDate0 *Date `json:"coupon_date_0"`
	CouponDate1 *Date `json:"coupon_date_1"`
	CouponDate2 *Date `json:"coupon_date_2"`
	CouponDate3 *Date `json:"coupon_date_3"`

	PreferredExchange *string  `json:"preferred_exchange"`
	RestricedExchange *string  `json:"restriced_exchange"`
	ContractSize      *int64   `json:"contract_size"`
	InitialMargin     *Decimal `json:"initial_margin"`

	TelekursSymbol *string `json:"telekurs_symbol"`
	ReutersSymbol  *string `json:"reuters_symbol"`
	YahooSymbol    *string `json:"yahoo_symbol"`

	SectorAllocation *string `json:"sector_allocation"`

	FreeText0 *string `json:"free_text_0"`
	FreeText1 *string `json:"free_text_1"`
	FreeText2 *string `json:"free_text_2"`
	FreeText3 *string `json:"free_text_3"`

	// MetadataJSON is stored verbatim and never parsed.
	MetadataJSON *string `json:"metadata_json"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// NewInstrument builds an instrument carrying only the required fields.
func NewInstrument(shortName, fullName string, instrumentType InstrumentType, originalCurrency, interestCurrency Currency) Instrument {
	return Instrument{
		ShortName:        shortName,
		FullName:         fullName,
		InstrumentType:   instrumentType,
		OriginalCurrency: originalCurrency,
		InterestCurrency: interestCurrency,
	}
}

// Validate checks the fields that must hold before an instrument is stored.
func (i Instrument) Validate() error {
	var problems []string
	if strings.TrimSpace(i.ShortName) == "" {
		problems = append(problems, "short_name is required")
	}
	if strings.TrimSpace(i.FullName) == "" {
		problems = append(problems, "full_name is required")
	}
	if !i.InstrumentType.IsValid() {
		problems = append(problems, fmt.Sprintf("instrument_type %q is not one of %v", i.InstrumentType, InstrumentTypes))
	}
	if !i.OriginalCurrency.IsValid() {
		problems = append(problems, fmt.Sprintf("original_currency %q is not one of %v", i.OriginalCurrency, Currencies))
	}
	if !i.InterestCurrency.IsValid() {
		problems = append(problems, fmt.Sprintf("interest_currency %q is not one of %v", i.InterestCurrency, Currencies))
	}
	if i.StatisticalCurrency != nil && !i.StatisticalCurrency.IsValid() {
		problems = append(problems, fmt.Sprintf("statistical_currency %q is not one of %v", *i.StatisticalCurrency, Currencies))
	}
	if i.ISIN != nil {
		problems = appendISINProblem(problems, *i.ISIN)
	}
	problems = appendDecimalProblem(problems, "interest_rate", i.InterestRate)
	problems = appendDecimalProblem(problems, "last_price", i.LastPrice)
	problems = appendDecimalProblem(problems, "first_call_percentage", i.FirstCallPercentage)
	problems = appendDecimalProblem(problems, "initial_margin", i.InitialMargin)
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInstrument, strings.Join(problems, "; "))
	}
	return nil
}

// MaxISINLength is the width of the isin column.
const MaxISINLength = 12

func appendISINProblem(problems []string, isin string) []string {
	if n := utf8.RuneCountInString(isin); n > MaxISINLength {
		return append(problems, fmt.Sprintf("isin must be at most %d characters, got %d", MaxISINLength, n))
	}
	return problems
}

func appendDecimalProblem(problems []string, column string, d *Decimal) []string {
	if d == nil {
		return problems
	}
	if err := d.Check(); err != nil {
		return append(problems, column+": "+err.Error())
	}
	return problems
}

// RowError reports a stored row that cannot be converted into an Instrument.
type RowError struct {
	InstrumentID int64
	Column       string
	Value        any
	Err          error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("instrument %d: column %s: value %v: %v", e.InstrumentID, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Is makes every RowError match ErrCorruptRow.
func (e *RowError) Is(target error) bool { return target == ErrCorruptRow }
