package sqldb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmanzanog/instrument-registry/internal/domain"
)

var errMissingValue = errors.New("missing value")

// timestampLayouts are tried in order after RFC 3339. The last one is the
// engine default text encoding of CURRENT_TIMESTAMP.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// rowReader decodes named columns of a Row. Optional dates, timestamps and
// integers that cannot be decoded read as absent; required columns and
// decimals record the first failure in err.
type rowReader struct {
	row Row
	id  int64
	err error
}

func (r *rowReader) fail(column string, value any, err error) {
	if r.err == nil {
		r.err = &domain.RowError{InstrumentID: r.id, Column: column, Value: value, Err: err}
	}
}

func (r *rowReader) requiredString(column string) string {
	s := asString(r.row[column])
	if s == nil || strings.TrimSpace(*s) == "" {
		r.fail(column, r.row[column], errMissingValue)
		return ""
	}
	return *s
}

func (r *rowReader) instrumentType(column string) domain.InstrumentType {
	raw := r.row[column]
	s := asString(raw)
	if s == nil {
		r.fail(column, raw, domain.ErrInvalidInstrumentType)
		return ""
	}
	t, err := domain.ParseInstrumentType(*s)
	if err != nil {
		r.fail(column, raw, err)
	}
	return t
}

func (r *rowReader) currency(column string) domain.Currency {
	raw := r.row[column]
	s := asString(raw)
	if s == nil {
		r.fail(column, raw, domain.ErrInvalidCurrency)
		return ""
	}
	c, err := domain.ParseCurrency(*s)
	if err != nil {
		r.fail(column, raw, err)
	}
	return c
}

// optionalCurrency reads an unknown code as absent.
func (r *rowReader) optionalCurrency(column string) *domain.Currency {
	s := asString(r.row[column])
	if s == nil {
		return nil
	}
	c, err := domain.ParseCurrency(*s)
	if err != nil {
		return nil
	}
	return &c
}

func (r *rowReader) optString(column string) *string { return asString(r.row[column]) }

func (r *rowReader) optInt64(column string) *int64 { return asInt64(r.row[column]) }

// optDecimal fails the row when a stored value is not a finite number in
// range, since such a value cannot be rendered.
func (r *rowReader) optDecimal(column string) *domain.Decimal {
	raw := r.row[column]
	d := asDecimal(raw)
	if d == nil && raw != nil {
		r.fail(column, raw, domain.ErrInvalidDecimal)
	}
	return d
}

func (r *rowReader) optDate(column string) *domain.Date { return asDate(r.row[column]) }

func (r *rowReader) optTimestamp(column string) *time.Time { return asTimestamp(r.row[column]) }

func asString(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	return &s
}

func asInt64(v any) *int64 {
	var n int64
	switch val := v.(type) {
	case nil:
		return nil
	case int64:
		n = val
	case int32:
		n = int64(val)
	case int:
		n = int64(val)
	case float64:
		if val != float64(int64(val)) {
			return nil
		}
		n = int64(val)
	case string, []byte:
		parsed, err := strconv.ParseInt(strings.TrimSpace(*asString(val)), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func asDecimal(v any) *domain.Decimal {
	if v == nil {
		return nil
	}
	var d domain.Decimal
	if err := d.Scan(v); err != nil {
		s := asString(v)
		parsed, perr := domain.NewDecimalFromString(strings.TrimSpace(*s))
		if perr != nil {
			return nil
		}
		d = parsed
	}
	return &d
}

func asDate(v any) *domain.Date {
	switch val := v.(type) {
	case time.Time:
		d := domain.DateOf(val)
		return &d
	case string, []byte:
		s := strings.TrimSpace(*asString(val))
		if len(s) > len(domain.DateLayout) {
			// Some drivers render DATE columns as midnight timestamps.
			if ts := asTimestamp(s); ts != nil {
				d := domain.DateOf(*ts)
				return &d
			}
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}

func asTimestamp(v any) *time.Time {
	switch val := v.(type) {
	case time.Time:
		t := val
		return &t
	case string, []byte:
		s := strings.TrimSpace(*asString(val))
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}
