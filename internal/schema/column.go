// Package schema declares the columns of every EDA entity kind and dataset
// table, and validates records against them with JSON Schema.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the declared type of a column
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Column declares one named field
type Column struct {
	Name     string
	Type     Type
	Nullable bool     // null or absent is allowed
	Enum     []string // allowed values for string columns
	Minimum  *float64 // inclusive lower bound for numeric columns
	Unit     string   // documentation only, never converted
}

func str(name string) Column { return Column{Name: name, Type: TypeString} }

func num(name, unit string) Column { return Column{Name: name, Type: TypeNumber, Unit: unit} }

func optNum(name, unit string) Column {
	return Column{Name: name, Type: TypeNumber, Nullable: true, Unit: unit}
}

func boolean(name string) Column { return Column{Name: name, Type: TypeBoolean} }

var zero = 0.0

func count(name string) Column {
	return Column{Name: name, Type: TypeInteger, Minimum: &zero}
}

func enum(name string, values ...string) Column {
	return Column{Name: name, Type: TypeString, Enum: values}
}

// jsonSchema returns the JSON Schema property for the column.
func (c Column) jsonSchema() map[string]any {
	prop := map[string]any{}
	if c.Nullable {
		prop["type"] = []string{string(c.Type), "null"}
	} else {
		prop["type"] = string(c.Type)
	}
	if len(c.Enum) > 0 {
		values := make([]any, 0, len(c.Enum)+1)
		for _, v := range c.Enum {
			values = append(values, v)
		}
		if c.Nullable {
			values = append(values, nil)
		}
		prop["enum"] = values
	}
	if c.Minimum != nil {
		prop["minimum"] = *c.Minimum
	}
	return prop
}

// Coerce converts v to the canonical Go representation of the column type:
// string, float64, int64, bool or nil. Storage backends hand back values in
// their own representations (CSV text, BSON int32, JSON float64) and Coerce
// is what makes rows compare equal across them.
func (c Column) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch c.Type {
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case fmt.Stringer:
			return s.String(), nil
		}
	case TypeNumber:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case TypeInteger:
		if f, ok := toFloat(v); ok {
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("column %s: %v is not an integer", c.Name, v)
			}
			return int64(f), nil
		}
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err == nil {
				return parsed, nil
			}
		case int64:
			return b != 0, nil
		case int32:
			return b != 0, nil
		case int:
			return b != 0, nil
		}
	}
	return nil, fmt.Errorf("column %s: cannot use %v (%T) as %s", c.Name, v, v, c.Type)
}

// ParseText converts the text form used by the file backend. The empty
// string means null.
func (c Column) ParseText(s string) (any, error) {
	if s == "" {
		if c.Type == TypeString && !c.Nullable {
			return "", nil
		}
		return nil, nil
	}
	if c.Type == TypeString {
		return s, nil
	}
	if c.Type == TypeBoolean {
		return c.Coerce(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %q is not a number", c.Name, s)
	}
	return c.Coerce(f)
}

// FormatText is the inverse of ParseText.
func (c Column) FormatText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
