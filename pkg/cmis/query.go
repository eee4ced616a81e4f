package cmis

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Query is a CMIS SQL template with %s placeholders.
type Query struct {
	template string
}

// NewQuery returns a query for the template.
func NewQuery(template string) Query {
	return Query{template: template}
}

var literalEscaper = strings.NewReplacer(`'`, `\'`, `"`, `\"`)

// Escape backslash-escapes the quotes of a literal.
func Escape(s string) string {
	return literalEscaper.Replace(s)
}

// Format substitutes the arguments. Strings are escaped, everything else is
// printed as is. A mismatching argument count shows up in the result the way
// fmt reports it.
func (q Query) Format(args ...interface{}) string {
	escaped := make([]interface{}, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			escaped[i] = Escape(v)
		case fmt.Stringer:
			escaped[i] = Escape(v.String())
		default:
			escaped[i] = arg
		}
	}
	return fmt.Sprintf(q.template, escaped...)
}

func (q Query) String() string { return q.template }

// NullCheck is a filter value that tests for presence instead of equality.
// A string "NULL" is compared as text.
type NullCheck string

// Null and NotNull render as IS NULL / IS NOT NULL.
const (
	Null    NullCheck = "NULL"
	NotNull NullCheck = "NOT NULL"
)

// Filter is one predicate on a CMIS property. Value may be a string, a
// decimal.Decimal (rendered unquoted), a []string (rendered as an OR group),
// or Null / NotNull.
type Filter struct {
	Property string
	Value    interface{}
}

// Eq is a Filter constructor for the common case.
func Eq(property string, value interface{}) Filter {
	return Filter{Property: property, Value: value}
}

// BuildFilters renders the filters as an AND-joined predicate. Empty values and
// empty lists are skipped.
func BuildFilters(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if clause := renderFilter(f); clause != "" {
			parts = append(parts, clause)
		}
	}
	return strings.Join(parts, " AND ")
}

func renderFilter(f Filter) string {
	switch v := f.Value.(type) {
	case nil:
		return ""
	case NullCheck:
		return fmt.Sprintf("%s IS %s", f.Property, string(v))
	case string:
		if v == "" {
			return ""
		}
		return NewQuery(f.Property + " = '%s'").Format(v)
	case decimal.Decimal:
		return fmt.Sprintf("%s = %s", f.Property, v.String())
	case []string:
		if len(v) == 0 {
			return ""
		}
		items := make([]string, 0, len(v))
		for _, item := range v {
			if clause := renderFilter(Filter{Property: f.Property, Value: item}); clause != "" {
				items = append(items, clause)
			}
		}
		if len(items) == 0 {
			return ""
		}
		return "( " + strings.Join(items, " OR ") + " )"
	default:
		return NewQuery(f.Property + " = '%s'").Format(fmt.Sprintf("%v", v))
	}
}

// Select builds "SELECT * FROM table [WHERE filters]".
func Select(table string, filters ...Filter) string {
	where := BuildFilters(filters)
	if where == "" {
		return fmt.Sprintf("SELECT * FROM %s", table)
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE %s", table, where)
}

// InFolder builds the children query of a folder.
func InFolder(table, folderID string) string {
	return NewQuery("SELECT * FROM " + table + " WHERE IN_FOLDER('%s')").Format(folderID)
}
