package domain

import (
	"fmt"
	"strings"
)

// InstrumentPatch carries a partial update. Fields left unset are not
// touched; fields set to null clear the column.
type InstrumentPatch struct {
	ShortName Optional[string] `json:"short_name"`
	FullName  Optional[string] `json:"full_name"`
	ISIN      Optional[string] `json:"isin"`

	InstrumentType Optional[InstrumentType] `json:"instrument_type"`
	Sector         Optional[string]         `json:"sector"`
	Industry       Optional[string]         `json:"industry"`
	Country        Optional[string]         `json:"country"`

	OriginalCurrency    Optional[Currency] `json:"original_currency"`
	InterestCurrency    Optional[Currency] `json:"interest_currency"`
	StatisticalCurrency Optional[Currency] `json:"statistical_currency"`

	InterestRate   Optional[Decimal] `json:"interest_rate"`
	InterestPeriod Optional[int64]   `json:"interest_period"`

	LastPrice     Optional[Decimal] `json:"last_price"`
	LastPriceDate Optional[Date]    `json:"last_price_date"`

	IssueDate           Optional[Date]    `json:"issue_date"`
	ExpirationDate      Optional[Date]    `json:"expiration_date"`
	FirstCallDate       Optional[Date]    `json:"first_call_date"`
	FirstCallPercentage Optional[Decimal] `json:"first_call_percentage"`

	CouponDate0 Optional[Date] `json:"coupon_date_0"`
	CouponDate1 Optional[Date] `json:"coupon_date_1"`
	CouponDate2 Optional[Date] `json:"coupon_date_2"`
	CouponDate3 Optional[Date] `json:"coupon_date_3"`

	PreferredExchange Optional[string]  `json:"preferred_exchange"`
	RestricedExchange Optional[string]  `json:"restriced_exchange"`
	ContractSize      Optional[int64]   `json:"contract_size"`
	InitialMargin     Optional[Decimal] `json:"initial_margin"`

	TelekursSymbol Optional[string] `json:"telekurs_symbol"`
	ReutersSymbol  Optional[string] `json:"reuters_symbol"`
	YahooSymbol    Optional[string] `json:"yahoo_symbol"`

	SectorAllocation Optional[string] `json:"sector_allocation"`

	FreeText0 Optional[string] `json:"free_text_0"`
	FreeText1 Optional[string] `json:"free_text_1"`
	FreeText2 Optional[string] `json:"free_text_2"`
	FreeText3 Optional[string] `json:"free_text_3"`

	MetadataJSON Optional[string] `json:"metadata_json"`
}

// Validate rejects nulls on NOT NULL columns and values outside the enums.
func (p InstrumentPatch) Validate() error {
	var problems []string

	notNull := map[string]bool{
		"short_name":        p.ShortName.IsNull(),
		"full_name":         p.FullName.IsNull(),
		"instrument_type":   p.InstrumentType.IsNull(),
		"original_currency": p.OriginalCurrency.IsNull(),
		"interest_currency": p.InterestCurrency.IsNull(),
	}
	for _, column := range []string{"short_name", "full_name", "instrument_type", "original_currency", "interest_currency"} {
		if notNull[column] {
			problems = append(problems, column+" cannot be null")
		}
	}

	if p.ShortName.Valid && strings.TrimSpace(p.ShortName.Value) == "" {
		problems = append(problems, "short_name cannot be blank")
	}
	if p.FullName.Valid && strings.TrimSpace(p.FullName.Value) == "" {
		problems = append(problems, "full_name cannot be blank")
	}
	if p.InstrumentType.Valid && !p.InstrumentType.Value.IsValid() {
		problems = append(problems, fmt.Sprintf("instrument_type %q is not one of %v", p.InstrumentType.Value, InstrumentTypes))
	}
	currencies := []struct {
		column string
		value  Optional[Currency]
	}{
		{"original_currency", p.OriginalCurrency},
		{"interest_currency", p.InterestCurrency},
		{"statistical_currency", p.StatisticalCurrency},
	}
	for _, c := range currencies {
		if c.value.Valid && !c.value.Value.IsValid() {
			problems = append(problems, fmt.Sprintf("%s %q is not one of %v", c.column, c.value.Value, Currencies))
		}
	}

	if p.ISIN.Valid {
		problems = appendISINProblem(problems, p.ISIN.Value)
	}
	problems = appendDecimalProblem(problems, "interest_rate", p.InterestRate.Ptr())
	problems = appendDecimalProblem(problems, "last_price", p.LastPrice.Ptr())
	problems = appendDecimalProblem(problems, "first_call_percentage", p.FirstCallPercentage.Ptr())
	problems = appendDecimalProblem(problems, "initial_margin", p.InitialMargin.Ptr())

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInstrument, strings.Join(problems, "; "))
	}
	return nil
}

// IsEmpty reports whether no field was supplied.
func (p InstrumentPatch) IsEmpty() bool {
	return p == InstrumentPatch{}
}

// ApplyTo copies every supplied field onto inst. Identity and timestamps are
// left to the caller.
func (p InstrumentPatch) ApplyTo(inst *Instrument) {
	p.ShortName.applyTo(&inst.ShortName)
	p.FullName.applyTo(&inst.FullName)
	p.ISIN.applyToPtr(&inst.ISIN)
	p.InstrumentType.applyTo(&inst.InstrumentType)
	p.Sector.applyToPtr(&inst.Sector)
	p.Industry.applyToPtr(&inst.Industry)
	p.Country.applyToPtr(&inst.Country)
	p.OriginalCurrency.applyTo(&inst.OriginalCurrency)
	p.InterestCurrency.applyTo(&inst.InterestCurrency)
	p.StatisticalCurrency.applyToPtr(&inst.StatisticalCurrency)
	p.InterestRate.applyToPtr(&inst.InterestRate)
	p.InterestPeriod.applyToPtr(&inst.InterestPeriod)
	p.LastPrice.applyToPtr(&inst.LastPrice)
	p.LastPriceDate.applyToPtr(&inst.LastPriceDate)
	p.IssueDate.applyToPtr(&inst.IssueDate)
	p.ExpirationDate.applyToPtr(&inst.ExpirationDate)
	p.FirstCallDate.applyToPtr(&inst.FirstCallDate)
	p.FirstCallPercentage.applyToPtr(&inst.FirstCallPercentage)
	p.CouponDate0.applyToPtr(&inst.CouponDate0)
	p.CouponDate1.applyToPtr(&inst.CouponDate1)
	p.CouponDate2.applyToPtr(&inst.CouponDate2)
	p.CouponDate3.applyToPtr(&inst.CouponDate3)
	p.PreferredExchange.applyToPtr(&inst.PreferredExchange)
	p.RestricedExchange.applyToPtr(&inst.RestricedExchange)
	p.ContractSize.applyToPtr(&inst.ContractSize)
	p.InitialMargin.applyToPtr(&inst.InitialMargin)
	p.TelekursSymbol.applyToPtr(&inst.TelekursSymbol)
	p.ReutersSymbol.applyToPtr(&inst.ReutersSymbol)
	p.YahooSymbol.applyToPtr(&inst.YahooSymbol)
	p.SectorAllocation.applyToPtr(&inst.SectorAllocation)
	p.FreeText0.applyToPtr(&inst.FreeText0)
	p.FreeText1.applyToPtr(&inst.FreeText1)
	p.FreeText2.applyToPtr(&inst.FreeText2)
	p.FreeText3.applyToPtr(&inst.FreeText3)
	p.MetadataJSON.applyToPtr(&inst.MetadataJSON)
}
