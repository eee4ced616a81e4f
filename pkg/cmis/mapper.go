package cmis

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	cmiserr "drccmis/pkg/errors"
)

// Mapper translates domain field names to CMIS property ids and back, per
// object type. A Mapper is immutable once built and safe for concurrent use.
type Mapper struct {
	forward map[ObjectType]map[string]string
	reverse map[ObjectType]map[string]string
}

// MappingTables holds the forward tables as they are read from a mapping file.
// A nil value marks a field that still needs a property id.
type MappingTables map[ObjectType]map[string]*string

// NewMapper validates the tables against the known schemas and derives the
// reverse tables. Every schema field must resolve to a property id.
func NewMapper(tables MappingTables) (*Mapper, error) {
	m := &Mapper{
		forward: make(map[ObjectType]map[string]string, len(MappedTypes)),
		reverse: make(map[ObjectType]map[string]string, len(MappedTypes)),
	}

	var unresolved, unknown []string
	for _, t := range MappedTypes {
		table := tables[t]
		fwd := make(map[string]string, len(schemas[t]))
		rev := make(map[string]string, len(schemas[t]))
		for _, f := range schemas[t] {
			value, ok := table[f.Name]
			if !ok || value == nil || *value == "" {
				unresolved = append(unresolved, fmt.Sprintf("%s.%s", t, f.Name))
				continue
			}
			fwd[f.Name] = *value
			rev[*value] = f.Name
		}
		for name := range table {
			if _, ok := FieldOf(t, name); !ok {
				unknown = append(unknown, fmt.Sprintf("%s.%s", t, name))
			}
		}
		m.forward[t] = fwd
		m.reverse[t] = rev
	}
	for t := range tables {
		if _, ok := schemas[t]; !ok {
			unknown = append(unknown, string(t))
		}
	}

	if len(unresolved) > 0 || len(unknown) > 0 {
		sort.Strings(unresolved)
		sort.Strings(unknown)
		return nil, cmiserr.Errorf(cmiserr.ErrUnresolvedMapping,
			"property mapping is incomplete: unresolved [%s], unknown [%s]",
			strings.Join(unresolved, ", "), strings.Join(unknown, ", "))
	}
	return m, nil
}

// DefaultTables returns the conventional drc: property ids.
func DefaultTables() MappingTables {
	tables := MappingTables{}
	for _, t := range MappedTypes {
		table := map[string]*string{}
		for _, f := range schemas[t] {
			name := fmt.Sprintf("drc:%s__%s", t, f.Name)
			table[f.Name] = &name
		}
		tables[t] = table
	}

	set := func(t ObjectType, field, value string) { tables[t][field] = &value }
	set(ObjectDocument, "kopie_van", "drc:kopie_van")
	set(ObjectZaak, "zaaktype", "drc:zaak__zaaktypeurl")
	set(ObjectConnection, "object", "drc:connectie__zaakurl")
	set(ObjectConnection, "object_type", "drc:connectie__objecttype")
	set(ObjectConnection, "aard_relatie", "drc:connectie__aardrelatieweergave")
	set(ObjectConnection, "titel", "drc:connectie__titel")
	set(ObjectConnection, "beschrijving", "drc:connectie__beschrijving")
	set(ObjectConnection, "registratiedatum", "drc:connectie__registratiedatum")
	return tables
}

// DefaultMapper returns a Mapper over DefaultTables.
func DefaultMapper() *Mapper {
	m, err := NewMapper(DefaultTables())
	if err != nil {
		panic(err)
	}
	return m
}

// LoadMapper reads a YAML mapping file. The file lists, per object type, the
// property id of each field:
//
//	document:
//	  titel: drc:document__titel
//
// Fields left out or set to null are reported as unresolved.
func LoadMapper(path string) (*Mapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	return ParseMapper(data)
}

// ParseMapper is LoadMapper on an in-memory document.
func ParseMapper(data []byte) (*Mapper, error) {
	var tables MappingTables
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, cmiserr.Wrap(cmiserr.ErrUnresolvedMapping, err, "parse mapping file: %v", err)
	}
	return NewMapper(tables)
}

// ToCMIS returns the property id of a domain field.
func (m *Mapper) ToCMIS(field string, t ObjectType) (string, bool) {
	name, ok := m.forward[MappedType(t)][field]
	return name, ok
}

// ToField returns the domain field of a property id.
func (m *Mapper) ToField(cmisName string, t ObjectType) (string, bool) {
	name, ok := m.reverse[MappedType(t)][cmisName]
	return name, ok
}

// MustCMIS is ToCMIS for fields that are part of the schema. NewMapper
// guarantees those resolve.
func (m *Mapper) MustCMIS(field string, t ObjectType) string {
	name, ok := m.ToCMIS(field, t)
	if !ok {
		panic(fmt.Sprintf("cmis: field %s.%s is not part of the schema", t, field))
	}
	return name
}

// ToCMISAny resolves a field against the document, connection, gebruiksrechten
// and oio tables in that order, for filters that do not name their type.
func (m *Mapper) ToCMISAny(field string) (string, bool) {
	for _, t := range []ObjectType{ObjectDocument, ObjectConnection, ObjectGebruiksrechten, ObjectOIO} {
		if name, ok := m.ToCMIS(field, t); ok {
			return name, true
		}
	}
	return "", false
}
