package http

import (
	"github.com/jmanzanog/instrument-registry/internal/application"
	"github.com/jmanzanog/instrument-registry/internal/domain"
)

// CreateInstrumentRequest is the body of POST /instruments. Server-assigned
// fields (id and timestamps) are not accepted.
type CreateInstrumentRequest struct {
	ShortName string  `json:"short_name" binding:"required"`
	FullName  string  `json:"full_name" binding:"required"`
	ISIN      *string `json:"isin" binding:"omitempty,max=12"`

	InstrumentType domain.InstrumentType `json:"instrument_type" binding:"required,instrument_type"`
	Sector         *string               `json:"sector"`
	Industry       *string               `json:"industry"`
	Country        *string               `json:"country"`

	OriginalCurrency    domain.Currency  `json:"original_currency" binding:"required,currency"`
	InterestCurrency    domain.Currency  `json:"interest_currency" binding:"required,currency"`
	StatisticalCurrency *domain.Currency `json:"statistical_currency" binding:"omitempty,currency"`

	InterestRate   *domain.Decimal `json:"interest_rate"`
	InterestPeriod *int64          `json:"interest_period"`

	LastPrice     *domain.Decimal `json:"last_price"`
	LastPriceDate *domain.Date    `json:"last_price_date"`

	IssueDate           *domain.Date    `json:"issue_date"`
	ExpirationDate      *domain.Date    `json:"expiration_date"`
	FirstCallDate       *domain.Date    `json:"first_call_date"`
	FirstCallPercentage *domain.Decimal `json:"first_call_percentage"`

	CouponDate0 *domain.Date `json:"coupon_date_0"`
	CouponDate1 *domain.Date `json:"coupon_date_1"`
	CouponDate2 *domain.Date `json:"coupon_date_2"`
	CouponDate3 *domain.Date `json:"coupon_date_3"`

	PreferredExchange *string         `json:"preferred_exchange"`
	RestricedExchange *string         `json:"restriced_exchange"`
	ContractSize      *int64          `json:"contract_size"`
	InitialMargin     *domain.Decimal `json:"initial_margin"`

	TelekursSymbol *string `json:"telekurs_symbol"`
	ReutersSymbol  *string `json:"reuters_symbol"`
	YahooSymbol    *string `json:"yahoo_symbol"`

	SectorAllocation *string `json:"sector_allocation"`

	FreeText0 *string `json:"free_text_0"`
	FreeText1 *string `json:"free_text_1"`
	FreeText2 *string `json:"free_text_2"`
	FreeText3 *string `json:"free_text_3"`

	MetadataJSON *string `json:"metadata_json"`
}

func (r CreateInstrumentRequest) toInstrument() domain.Instrument {
	return domain.Instrument{
		ShortName:           r.ShortName,
		FullName:            r.FullName,
		ISIN:                r.ISIN,
		InstrumentType:      r.InstrumentType,
		Sector:              r.Sector,
		Industry:            r.Industry,
		Country:             r.Country,
		OriginalCurrency:    r.OriginalCurrency,
		InterestCurrency:    r.InterestCurrency,
		StatisticalCurrency: r.StatisticalCurrency,
		InterestRate:        r.InterestRate,
		InterestPeriod:      r.InterestPeriod,
		LastPrice:           r.LastPrice,
		LastPriceDate:       r.LastPriceDate,
		IssueDate:           r.IssueDate,
		ExpirationDate:      r.ExpirationDate,
		FirstCallDate:       r.FirstCallDate,
		FirstCallPercentage: r.FirstCallPercentage,
		CouponDate0:         r.CouponDate0,
		CouponDate1:         r.CouponDate1,
		CouponDate2:         r.CouponDate2,
		CouponDate3:         r.CouponDate3,
		PreferredExchange:   r.PreferredExchange,
		RestricedExchange:   r.RestricedExchange,
		ContractSize:        r.ContractSize,
		InitialMargin:       r.InitialMargin,
		TelekursSymbol:      r.TelekursSymbol,
		ReutersSymbol:       r.ReutersSymbol,
		YahooSymbol:         r.YahooSymbol,
		SectorAllocation:    r.SectorAllocation,
		FreeText0:           r.FreeText0,
		FreeText1:           r.FreeText1,
		FreeText2:           r.FreeText2,
		FreeText3:           r.FreeText3,
		MetadataJSON:        r.MetadataJSON,
	}
}

// ListInstrumentsQuery holds the query parameters of GET /instruments.
type ListInstrumentsQuery struct {
	InstrumentType string `form:"instrument_type" binding:"omitempty,instrument_type"`
	Sector         string `form:"sector"`
	Country        string `form:"country"`
	Limit          int    `form:"limit,default=100" binding:"min=1,max=1000"`
	Offset         int    `form:"offset,default=0" binding:"min=0"`
}

func (q ListInstrumentsQuery) toFilter() application.ListFilter {
	return application.ListFilter{
		InstrumentType: domain.InstrumentType(q.InstrumentType),
		Sector:         q.Sector,
		Country:        q.Country,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
}
