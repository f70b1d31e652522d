package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// U64 is a token amount or rate column covering the full uint64 range.
// database/sql only carries int64, so values above math.MaxInt64 travel as
// decimal strings.
type U64 uint64

func (u U64) Value() (driver.Value, error) {
	if uint64(u) <= math.MaxInt64 {
		return int64(u), nil
	}
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *U64) Scan(src interface{}) error {
	var d decimal.Decimal
	switch v := src.(type) {
	case nil:
		*u = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("scan U64: negative value %d", v)
		}
		*u = U64(v)
		return nil
	case uint64:
		*u = U64(v)
		return nil
	case float64:
		d = decimal.NewFromFloat(v)
	case []byte:
		parsed, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("scan U64: %w", err)
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("scan U64: %w", err)
		}
		d = parsed
	default:
		return fmt.Errorf("scan U64: unsupported type %T", src)
	}

	if !d.IsInteger() || d.IsNegative() || !d.BigInt().IsUint64() {
		return fmt.Errorf("scan U64: %s is not a uint64", d)
	}
	*u = U64(d.BigInt().Uint64())
	return nil
}

// GormDBDataType keeps sqlite from coercing large values to REAL: a blob
// column stores integers and decimal strings as given.
func (U64) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "blob"
	}
	return "numeric(20,0)"
}
