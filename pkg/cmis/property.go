package cmis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PropertyType is the CMIS property type of a single value.
type PropertyType string

const (
	TypeString   PropertyType = "string"
	TypeID       PropertyType = "id"
	TypeBoolean  PropertyType = "boolean"
	TypeInteger  PropertyType = "integer"
	TypeDecimal  PropertyType = "decimal"
	TypeDateTime PropertyType = "datetime"
	TypeURI      PropertyType = "uri"
	TypeHTML     PropertyType = "html"
)

// DateTimeLayout is the wire format for datetimes the DMS accepts on write.
const DateTimeLayout = "2006-01-02T15:04:05.000Z"

var soapNames = map[PropertyType]string{
	TypeString:   "propertyString",
	TypeID:       "propertyId",
	TypeBoolean:  "propertyBoolean",
	TypeInteger:  "propertyInteger",
	TypeDecimal:  "propertyDecimal",
	TypeDateTime: "propertyDateTime",
	TypeURI:      "propertyUri",
	TypeHTML:     "propertyHtml",
}

// SOAPName returns the element name used by the webservice binding.
func (t PropertyType) SOAPName() string {
	if name, ok := soapNames[t]; ok {
		return name
	}
	return soapNames[TypeString]
}

// PropertyTypeFromSOAP maps an element local name such as propertyDateTime back
// to its type. Unknown names are treated as strings.
func PropertyTypeFromSOAP(localName string) PropertyType {
	for t, name := range soapNames {
		if strings.EqualFold(name, localName) {
			return t
		}
	}
	return TypeString
}

// Property is a single typed value of a property bag. Value holds nil, string,
// bool, int64, decimal.Decimal or time.Time.
type Property struct {
	Type  PropertyType
	Value interface{}
}

// NewProperty builds a property of the given type, converting the value when
// it is handed over in a looser representation (a string date, an int for a
// decimal, ...).
func NewProperty(t PropertyType, value interface{}) (Property, error) {
	if value == nil {
		return Property{Type: t}, nil
	}
	if s, ok := value.(string); ok {
		return ParseProperty(t, s)
	}

	switch t {
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			return Property{Type: t, Value: b}, nil
		}
	case TypeInteger:
		switch v := value.(type) {
		case int:
			return Property{Type: t, Value: int64(v)}, nil
		case int32:
			return Property{Type: t, Value: int64(v)}, nil
		case int64:
			return Property{Type: t, Value: v}, nil
		}
	case TypeDecimal:
		switch v := value.(type) {
		case decimal.Decimal:
			return Property{Type: t, Value: v}, nil
		case int:
			return Property{Type: t, Value: decimal.NewFromInt(int64(v))}, nil
		case int64:
			return Property{Type: t, Value: decimal.NewFromInt(v)}, nil
		case float64:
			return Property{Type: t, Value: decimal.NewFromFloat(v)}, nil
		}
	case TypeDateTime:
		if v, ok := value.(time.Time); ok {
			return Property{Type: t, Value: v}, nil
		}
	default:
		return Property{Type: t, Value: fmt.Sprintf("%v", value)}, nil
	}
	return Property{}, fmt.Errorf("cannot use %T as a %s property", value, t)
}

// ParseProperty parses the textual wire representation of a value.
func ParseProperty(t PropertyType, raw string) (Property, error) {
	switch t {
	case TypeBoolean:
		if raw == "" {
			return Property{Type: t}, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Property{}, fmt.Errorf("parse boolean %q: %w", raw, err)
		}
		return Property{Type: t, Value: b}, nil
	case TypeInteger:
		if raw == "" {
			return Property{Type: t}, nil
		}
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Property{}, fmt.Errorf("parse integer %q: %w", raw, err)
		}
		return Property{Type: t, Value: i}, nil
	case TypeDecimal:
		if raw == "" {
			return Property{Type: t}, nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Property{}, fmt.Errorf("parse decimal %q: %w", raw, err)
		}
		return Property{Type: t, Value: d}, nil
	case TypeDateTime:
		if raw == "" {
			return Property{Type: t}, nil
		}
		ts, err := ParseDateTime(raw)
		if err != nil {
			return Property{}, err
		}
		return Property{Type: t, Value: ts}, nil
	default:
		return Property{Type: t, Value: raw}, nil
	}
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDateTime accepts the datetime and date notations the DMS and the
// callers use.
func ParseDateTime(raw string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse datetime %q: unsupported layout", raw)
}

// IsZero reports a property without a value.
func (p Property) IsZero() bool {
	if p.Value == nil {
		return true
	}
	s, ok := p.Value.(string)
	return ok && s == ""
}

// String renders the value in its wire form. Datetimes are sent in UTC.
func (p Property) String() string {
	switch v := p.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return v.UTC().Format(DateTimeLayout)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal compares two values of the same property.
func (p Property) Equal(other Property) bool {
	switch v := p.Value.(type) {
	case decimal.Decimal:
		o, ok := other.Value.(decimal.Decimal)
		return ok && v.Equal(o)
	case time.Time:
		o, ok := other.Value.(time.Time)
		return ok && v.Equal(o)
	}
	if p.IsZero() && other.IsZero() {
		return true
	}
	return p.String() == other.String()
}

// Properties is a property bag keyed by CMIS property id.
type Properties map[string]Property

// Clone returns a shallow copy. All values are immutable so that is enough.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Has reports whether the bag carries the property, even when empty.
func (p Properties) Has(id string) bool {
	_, ok := p[id]
	return ok
}

// String returns the textual value of a property.
func (p Properties) String(id string) string {
	prop, ok := p[id]
	if !ok {
		return ""
	}
	return prop.String()
}

// Bool returns a boolean property. Missing values are false.
func (p Properties) Bool(id string) bool {
	if b, ok := p[id].Value.(bool); ok {
		return b
	}
	return strings.EqualFold(p.String(id), "true")
}

// Int returns an integer property. Missing or unparsable values are 0.
func (p Properties) Int(id string) int64 {
	switch v := p[id].Value.(type) {
	case int64:
		return v
	case decimal.Decimal:
		return v.IntPart()
	}
	i, _ := strconv.ParseInt(p.String(id), 10, 64)
	return i
}

// Decimal returns a decimal property.
func (p Properties) Decimal(id string) decimal.Decimal {
	switch v := p[id].Value.(type) {
	case decimal.Decimal:
		return v
	case int64:
		return decimal.NewFromInt(v)
	}
	d, err := decimal.NewFromString(p.String(id))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Time returns a datetime property, or nil when it is not set.
func (p Properties) Time(id string) *time.Time {
	if v, ok := p[id].Value.(time.Time); ok {
		return &v
	}
	return nil
}

// Diff returns the entries of next that differ from p.
func (p Properties) Diff(next Properties) Properties {
	out := Properties{}
	for id, prop := range next {
		current, ok := p[id]
		if ok && current.Equal(prop) {
			continue
		}
		out[id] = prop
	}
	return out
}
