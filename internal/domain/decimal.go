package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// ErrInvalidDecimal reports NaN, infinities and values whose plain text form
// would not fit the decimal columns.
var ErrInvalidDecimal = errors.New("invalid decimal")

// Bounds on coefficient digits and exponent. Within them Text('f') stays
// under the 64 characters the Oracle column holds.
const (
	maxDecimalDigits   = 30
	maxDecimalExponent = 30
)

// Decimal is a wrapper around apd.Decimal used for prices, rates and margins.
// It serialises to the database as its exact string form and to JSON as a
// bare number.
type Decimal struct {
	apd.Decimal
}

// NewDecimalFromInt creates a Decimal from an int64
func NewDecimalFromInt(v int64) Decimal {
	d := Decimal{}
	d.SetInt64(v)
	return d
}

// NewDecimalFromString creates a Decimal from a string
func NewDecimalFromString(v string) (Decimal, error) {
	d := Decimal{}
	_, _, err := d.SetString(v)
	if err != nil {
		return d, fmt.Errorf("invalid decimal string %s: %w", v, err)
	}
	if err := d.Check(); err != nil {
		return Decimal{}, err
	}
	return d, nil
}

// Check rejects values that cannot be stored or rendered as a plain number.
func (d Decimal) Check() error {
	if d.Form != apd.Finite {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidDecimal, d.Decimal.String())
	}
	if d.Exponent > maxDecimalExponent || d.Exponent < -maxDecimalExponent || d.NumDigits() > maxDecimalDigits {
		return fmt.Errorf("%w: %s is out of range", ErrInvalidDecimal, d.Decimal.String())
	}
	return nil
}

// NewDecimalFromFloat creates a Decimal from the shortest representation of v.
func NewDecimalFromFloat(v float64) (Decimal, error) {
	return NewDecimalFromString(strconv.FormatFloat(v, 'f', -1, 64))
}

// MustDecimal is NewDecimalFromString for literals known to be valid.
func MustDecimal(v string) Decimal {
	d, err := NewDecimalFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

// String implements the fmt.Stringer interface.
func (d Decimal) String() string {
	return d.Decimal.Text('f')
}

// Value implements the driver.Valuer interface for database serialization.
func (d Decimal) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (d *Decimal) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		d.SetInt64(0)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	case int64:
		d.SetInt64(v)
		return nil
	case float64:
		parsed, err := NewDecimalFromFloat(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("unsupported type for Decimal scan: %T", value)
	}
}

func (d *Decimal) scanString(s string) error {
	parsed, err := NewDecimalFromString(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Decimal) Equal(other Decimal) bool {
	return d.Decimal.Cmp(&other.Decimal) == 0
}

func (d Decimal) Cmp(other Decimal) int {
	return d.Decimal.Cmp(&other.Decimal)
}

// MarshalJSON implements the json.Marshaler interface.
func (d Decimal) MarshalJSON() ([]byte, error) {
	if err := d.Check(); err != nil {
		return nil, err
	}
	return []byte(d.String()), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	// Remove quotes if present
	s := string(data)
	if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewDecimalFromString(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
