package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/scholar/helper"
)

// Metadata holds free-form paper attributes stored as JSONB.
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return m.decode(v)
	case string:
		return m.decode([]byte(v))
	case Metadata:
		*m = v
		return nil
	default:
		return helper.NewError("metadata scan", fmt.Errorf("unsupported type %T", value))
	}
}

func (m *Metadata) decode(b []byte) error {
	decoded := Metadata{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &decoded); err != nil {
			return helper.NewError("metadata unmarshal", err)
		}
	}
	*m = decoded
	return nil
}

// String returns the value at key if it is a string.
func (m Metadata) String(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
