package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmanzanog/instrument-registry/internal/domain"
)

const idColumn = "instrument_id"

// writableColumns is the fixed column order used by INSERT and UPDATE.
var writableColumns = []string{
	"short_name", "full_name", "isin",
	"instrument_type", "sector", "industry", "country",
	"original_currency", "interest_currency", "statistical_currency",
	"interest_rate", "interest_period",
	"last_price", "last_price_date",
	"issue_date", "expiration_date", "first_call_date", "first_call_percentage",
	"coupon_date_0", "coupon_date_1", "coupon_date_2", "coupon_date_3",
	"preferred_exchange", "restriced_exchange", "contract_size", "initial_margin",
	"telekurs_symbol", "reuters_symbol", "yahoo_symbol",
	"sector_allocation",
	"free_text_0", "free_text_1", "free_text_2", "free_text_3",
	"metadata_json",
}

var selectColumns = idColumn + ", " + strings.Join(writableColumns, ", ") + ", created_at, updated_at"

// InstrumentRepository implements domain.InstrumentRepository on top of DB.
type InstrumentRepository struct {
	db *DB
}

var _ domain.InstrumentRepository = (*InstrumentRepository)(nil)

func NewInstrumentRepository(db *DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

func (r *InstrumentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *InstrumentRepository) List(ctx context.Context) ([]domain.Instrument, error) {
	rows, err := r.db.RunQuery(ctx, "SELECT "+selectColumns+" FROM instrument ORDER BY "+idColumn)
	if err != nil {
		return nil, fmt.Errorf("listing instruments: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(rows))
	for _, row := range rows {
		inst, err := instrumentFromRow(row)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

func (r *InstrumentRepository) FindByID(ctx context.Context, id int64) (domain.Instrument, bool, error) {
	rows, err := r.db.RunQuery(ctx, "SELECT "+selectColumns+" FROM instrument WHERE "+idColumn+" = ?", id)
	if err != nil {
		return domain.Instrument{}, false, fmt.Errorf("finding instrument %d: %w", id, err)
	}
	if len(rows) == 0 {
		return domain.Instrument{}, false, nil
	}

	inst, err := instrumentFromRow(rows[0])
	if err != nil {
		return domain.Instrument{}, false, err
	}
	return inst, true, nil
}

// Create inserts inst and returns the stored record, including the id and
// timestamps assigned by the engine.
func (r *InstrumentRepository) Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	if err := inst.Validate(); err != nil {
		return domain.Instrument{}, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(writableColumns)), ", ")
	query := "INSERT INTO instrument (" + strings.Join(writableColumns, ", ") + ") VALUES (" + placeholders + ")"

	id, err := r.db.RunInsert(ctx, query, idColumn, insertArgs(inst)...)
	if err != nil {
		return domain.Instrument{}, translateWriteError(err, "creating instrument")
	}

	created, found, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.Instrument{}, err
	}
	if !found {
		return domain.Instrument{}, fmt.Errorf("instrument %d vanished after insert", id)
	}
	return created, nil
}

// Update writes only the supplied fields of patch. An empty patch is a no-op
// that returns the current record.
func (r *InstrumentRepository) Update(ctx context.Context, id int64, patch domain.InstrumentPatch) (domain.Instrument, bool, error) {
	if err := patch.Validate(); err != nil {
		return domain.Instrument{}, false, err
	}
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	columns, args := patchAssignments(patch)
	sets := make([]string, 0, len(columns)+1)
	for _, column := range columns {
		sets = append(sets, column+" = ?")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	query := "UPDATE instrument SET " + strings.Join(sets, ", ") + " WHERE " + idColumn + " = ?"

	affected, err := r.db.RunUpdate(ctx, query, append(args, id)...)
	if err != nil {
		return domain.Instrument{}, false, translateWriteError(err, fmt.Sprintf("updating instrument %d", id))
	}
	if affected == 0 {
		return domain.Instrument{}, false, nil
	}
	return r.FindByID(ctx, id)
}

// Delete removes the instrument and reports whether it existed.
func (r *InstrumentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	_, found, err := r.FindByID(ctx, id)
	if err != nil {
		var rowErr *domain.RowError
		if !errors.As(err, &rowErr) {
			return false, err
		}
		found = true
	}
	if !found {
		return false, nil
	}

	if _, err := r.db.RunUpdate(ctx, "DELETE FROM instrument WHERE "+idColumn+" = ?", id); err != nil {
		return false, fmt.Errorf("deleting instrument %d: %w", id, err)
	}
	return true, nil
}

func translateWriteError(err error, action string) error {
	if errors.Is(err, ErrUniqueViolation) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateInstrument, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func instrumentFromRow(row Row) (domain.Instrument, error) {
	r := &rowReader{row: row}
	id := r.optInt64(idColumn)
	if id == nil {
		return domain.Instrument{}, &domain.RowError{Column: idColumn, Value: row[idColumn], Err: errMissingValue}
	}
	r.id = *id

	inst := domain.Instrument{
		ID:                  *id,
		ShortName:           r.requiredString("short_name"),
		FullName:            r.requiredString("full_name"),
		ISIN:                r.optString("isin"),
		InstrumentType:      r.instrumentType("instrument_type"),
		Sector:              r.optString("sector"),
		Industry:            r.optString("industry"),
		Country:             r.optString("country"),
		OriginalCurrency:    r.currency("original_currency"),
		InterestCurrency:    r.currency("interest_currency"),
		StatisticalCurrency: r.optionalCurrency("statistical_currency"),
		InterestRate:        r.optDecimal("interest_rate"),
		InterestPeriod:      r.optInt64("interest_period"),
		LastPrice:           r.optDecimal("last_price"),
		LastPriceDate:       r.optDate("last_price_date"),
		IssueDate:           r.optDate("issue_date"),
		ExpirationDate:      r.optDate("expiration_date"),
		FirstCallDate:       r.optDate("first_call_date"),
		FirstCallPercentage: r.optDecimal("first_call_percentage"),
		CouponDate0:         r.optDate("coupon_date_0"),
		CouponDate1:         r.optDate("coupon_date_1"),
		CouponDate2:         r.optDate("coupon_date_2"),
		CouponDate3:         r.optDate("coupon_date_3"),
		PreferredExchange:   r.optString("preferred_exchange"),
		RestricedExchange:   r.optString("restriced_exchange"),
		ContractSize:        r.optInt64("contract_size"),
		InitialMargin:       r.optDecimal("initial_margin"),
		TelekursSymbol:      r.optString("telekurs_symbol"),
		ReutersSymbol:       r.optString("reuters_symbol"),
		YahooSymbol:         r.optString("yahoo_symbol"),
		SectorAllocation:    r.optString("sector_allocation"),
		FreeText0:           r.optString("free_text_0"),
		FreeText1:           r.optString("free_text_1"),
		FreeText2:           r.optString("free_text_2"),
		FreeText3:           r.optString("free_text_3"),
		MetadataJSON:        r.optString("metadata_json"),
		CreatedAt:           r.optTimestamp("created_at"),
		UpdatedAt:           r.optTimestamp("updated_at"),
	}
	if r.err != nil {
		return domain.Instrument{}, r.err
	}
	return inst, nil
}

// insertArgs lists inst's values in writableColumns order.
func insertArgs(inst domain.Instrument) []any {
	return []any{
		inst.ShortName, inst.FullName, nullable(inst.ISIN),
		string(inst.InstrumentType), nullable(inst.Sector), nullable(inst.Industry), nullable(inst.Country),
		string(inst.OriginalCurrency), string(inst.InterestCurrency), nullableCurrency(inst.StatisticalCurrency),
		nullableDecimal(inst.InterestRate), nullable(inst.InterestPeriod),
		nullableDecimal(inst.LastPrice), nullable(inst.LastPriceDate),
		nullable(inst.IssueDate), nullable(inst.ExpirationDate), nullable(inst.FirstCallDate), nullableDecimal(inst.FirstCallPercentage),
		nullable(inst.CouponDate0), nullable(inst.CouponDate1), nullable(inst.CouponDate2), nullable(inst.CouponDate3),
		nullable(inst.PreferredExchange), nullable(inst.RestricedExchange), nullable(inst.ContractSize), nullableDecimal(inst.InitialMargin),
		nullable(inst.TelekursSymbol), nullable(inst.ReutersSymbol), nullable(inst.YahooSymbol),
		nullable(inst.SectorAllocation),
		nullable(inst.FreeText0), nullable(inst.FreeText1), nullable(inst.FreeText2), nullable(inst.FreeText3),
		nullable(inst.MetadataJSON),
	}
}

// patchAssignments returns the supplied columns of p in writableColumns
// order together with their values.
func patchAssignments(p domain.InstrumentPatch) ([]string, []any) {
	a := &assignments{}
	assign(a, "short_name", p.ShortName, identity[string])
	assign(a, "full_name", p.FullName, identity[string])
	assign(a, "isin", p.ISIN, identity[string])
	assign(a, "instrument_type", p.InstrumentType, func(t domain.InstrumentType) any { return string(t) })
	assign(a, "sector", p.Sector, identity[string])
	assign(a, "industry", p.Industry, identity[string])
	assign(a, "country", p.Country, identity[string])
	assign(a, "original_currency", p.OriginalCurrency, currencyText)
	assign(a, "interest_currency", p.InterestCurrency, currencyText)
	assign(a, "statistical_currency", p.StatisticalCurrency, currencyText)
	assign(a, "interest_rate", p.InterestRate, decimalText)
	assign(a, "interest_period", p.InterestPeriod, identity[int64])
	assign(a, "last_price", p.LastPrice, decimalText)
	assign(a, "last_price_date", p.LastPriceDate, identity[domain.Date])
	assign(a, "issue_date", p.IssueDate, identity[domain.Date])
	assign(a, "expiration_date", p.ExpirationDate, identity[domain.Date])
	assign(a, "first_call_date", p.FirstCallDate, identity[domain.Date])
	assign(a, "first_call_percentage", p.FirstCallPercentage, decimalText)
	assign(a, "coupon_date_0", p.CouponDate0, identity[domain.Date])
	assign(a, "coupon_date_1", p.CouponDate1, identity[domain.Date])
	assign(a, "coupon_date_2", p.CouponDate2, identity[domain.Date])
	assign(a, "coupon_date_3", p.CouponDate3, identity[domain.Date])
	assign(a, "preferred_exchange", p.PreferredExchange, identity[string])
	assign(a, "restriced_exchange", p.RestricedExchange, identity[string])
	assign(a, "contract_size", p.ContractSize, identity[int64])
	assign(a, "initial_margin", p.InitialMargin, decimalText)
	assign(a, "telekurs_symbol", p.TelekursSymbol, identity[string])
	assign(a, "reuters_symbol", p.ReutersSymbol, identity[string])
	assign(a, "yahoo_symbol", p.YahooSymbol, identity[string])
	assign(a, "sector_allocation", p.SectorAllocation, identity[string])
	assign(a, "free_text_0", p.FreeText0, identity[string])
	assign(a, "free_text_1", p.FreeText1, identity[string])
	assign(a, "free_text_2", p.FreeText2, identity[string])
	assign(a, "free_text_3", p.FreeText3, identity[string])
	assign(a, "metadata_json", p.MetadataJSON, identity[string])
	return a.columns, a.args
}

type assignments struct {
	columns []string
	args    []any
}

func assign[T any](a *assignments, column string, o domain.Optional[T], toArg func(T) any) {
	if !o.Set {
		return
	}
	a.columns = append(a.columns, column)
	if !o.Valid {
		a.args = append(a.args, nil)
		return
	}
	a.args = append(a.args, toArg(o.Value))
}

func identity[T any](v T) any { return v }

func currencyText(c domain.Currency) any { return string(c) }

func decimalText(d domain.Decimal) any { return d.String() }

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableCurrency(c *domain.Currency) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func nullableDecimal(d *domain.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
