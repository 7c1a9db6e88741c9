package jobkey

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Type tags the stored form of a parameter value.
type Type string

const (
	TypeString Type = "STRING"
	TypeLong   Type = "LONG"
	TypeDouble Type = "DOUBLE"
	TypeDate   Type = "DATE"
	TypeBool   Type = "BOOLEAN"
)

// Stored is the backend-neutral form of a Parameter. Value holds the same
// rendering the key is computed from, so a decoded parameter set yields the
// key it was stored under.
type Stored struct {
	Type        Type   `json:"type"`
	Value       string `json:"value"`
	Identifying bool   `json:"identifying"`
}

// Stored returns the storage form of p.
func (p Parameter) Stored() Stored {
	return Stored{Type: typeOf(p.Value), Value: render(p.Value), Identifying: p.Identifying}
}

// Parameter decodes s. Integral values come back as int64, floating point
// as float64, dates as UTC time.Time.
func (s Stored) Parameter() (Parameter, error) {
	p := Parameter{Identifying: s.Identifying}
	switch s.Type {
	case TypeString, "":
		p.Value = s.Value
	case TypeLong:
		v, err := strconv.ParseInt(s.Value, 10, 64)
		if err != nil {
			return Parameter{}, fmt.Errorf("jobkey: decode %s %q: %w", s.Type, s.Value, err)
		}
		p.Value = v
	case TypeDouble:
		v, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return Parameter{}, fmt.Errorf("jobkey: decode %s %q: %w", s.Type, s.Value, err)
		}
		p.Value = v
	case TypeDate:
		v, err := time.Parse(time.RFC3339Nano, s.Value)
		if err != nil {
			return Parameter{}, fmt.Errorf("jobkey: decode %s %q: %w", s.Type, s.Value, err)
		}
		p.Value = v.UTC()
	case TypeBool:
		v, err := strconv.ParseBool(s.Value)
		if err != nil {
			return Parameter{}, fmt.Errorf("jobkey: decode %s %q: %w", s.Type, s.Value, err)
		}
		p.Value = v
	default:
		return Parameter{}, fmt.Errorf("jobkey: unknown parameter type %q", s.Type)
	}
	return p, nil
}

// MarshalJSON encodes p in its stored form.
func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Stored())
}

// UnmarshalJSON decodes the stored form.
func (p *Parameter) UnmarshalJSON(b []byte) error {
	var s Stored
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := s.Parameter()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Encode renders params as a JSON object. Nil and empty sets encode as
// "{}".
func Encode(params Parameters) (string, error) {
	if len(params) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("jobkey: encode parameters: %w", err)
	}
	return string(b), nil
}

// Decode parses the output of Encode. An empty string yields nil.
func Decode(s string) (Parameters, error) {
	if s == "" || s == "{}" || s == "null" {
		return nil, nil
	}
	var params Parameters
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return nil, fmt.Errorf("jobkey: decode parameters: %w", err)
	}
	return params, nil
}

// Value implements driver.Valuer with the Encode form.
func (params Parameters) Value() (driver.Value, error) {
	return Encode(params)
}

// Scan implements sql.Scanner for columns written by Value.
func (params *Parameters) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("jobkey: cannot scan %T into Parameters", src)
	}
	decoded, err := Decode(s)
	if err != nil {
		return err
	}
	*params = decoded
	return nil
}

// Clone returns a copy of params that shares no map with the original.
func (params Parameters) Clone() Parameters {
	if params == nil {
		return nil
	}
	out := make(Parameters, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func typeOf(v any) Type {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return TypeLong
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return TypeLong
		}
	case uint64:
		if x <= math.MaxInt64 {
			return TypeLong
		}
	case float32, float64:
		return TypeDouble
	case time.Time:
		return TypeDate
	case bool:
		return TypeBool
	}
	return TypeString
}
