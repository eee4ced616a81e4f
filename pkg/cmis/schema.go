package cmis

import "fmt"

// ObjectType names a DRC object type. The mapped types have a property table in
// the Mapper; the folder types only serve as query return types.
type ObjectType string

const (
	ObjectDocument        ObjectType = "document"
	ObjectZaak            ObjectType = "zaak"
	ObjectZaakType        ObjectType = "zaaktype"
	ObjectGebruiksrechten ObjectType = "gebruiksrechten"
	ObjectOIO             ObjectType = "oio"
	ObjectConnection      ObjectType = "connection"

	ObjectFolder         ObjectType = "folder"
	ObjectZaakFolder     ObjectType = "zaakfolder"
	ObjectZaakTypeFolder ObjectType = "zaaktypefolder"
)

// MappedTypes lists every object type with a property table.
var MappedTypes = []ObjectType{
	ObjectDocument,
	ObjectZaak,
	ObjectZaakType,
	ObjectGebruiksrechten,
	ObjectOIO,
	ObjectConnection,
}

// Field is one domain field of an object type.
type Field struct {
	Name string
	Type PropertyType
	// URL fields are shortened before they are written to vendors with a
	// maximum property length.
	URL bool
}

var schemas = map[ObjectType][]Field{
	ObjectDocument: {
		{Name: "uuid", Type: TypeString},
		{Name: "identificatie", Type: TypeString},
		{Name: "bronorganisatie", Type: TypeString},
		{Name: "creatiedatum", Type: TypeDateTime},
		{Name: "titel", Type: TypeString},
		{Name: "vertrouwelijkheidaanduiding", Type: TypeString},
		{Name: "auteur", Type: TypeString},
		{Name: "status", Type: TypeString},
		{Name: "beschrijving", Type: TypeString},
		{Name: "ontvangstdatum", Type: TypeDateTime},
		{Name: "verzenddatum", Type: TypeDateTime},
		{Name: "indicatie_gebruiksrecht", Type: TypeString},
		{Name: "ondertekening_soort", Type: TypeString},
		{Name: "ondertekening_datum", Type: TypeDateTime},
		{Name: "informatieobjecttype", Type: TypeString, URL: true},
		{Name: "formaat", Type: TypeString},
		{Name: "taal", Type: TypeString},
		{Name: "bestandsnaam", Type: TypeString},
		{Name: "bestandsomvang", Type: TypeInteger},
		{Name: "versie", Type: TypeDecimal},
		{Name: "link", Type: TypeString, URL: true},
		{Name: "integriteit_algoritme", Type: TypeString},
		{Name: "integriteit_waarde", Type: TypeString},
		{Name: "integriteit_datum", Type: TypeDateTime},
		{Name: "verwijderd", Type: TypeBoolean},
		{Name: "begin_registratie", Type: TypeDateTime},
		{Name: "lock", Type: TypeString},
		{Name: "kopie_van", Type: TypeString},
	},
	ObjectGebruiksrechten: {
		{Name: "uuid", Type: TypeString},
		{Name: "informatieobject", Type: TypeString, URL: true},
		{Name: "omschrijving_voorwaarden", Type: TypeString},
		{Name: "startdatum", Type: TypeDateTime},
		{Name: "einddatum", Type: TypeDateTime},
		{Name: "kopie_van", Type: TypeString},
	},
	ObjectOIO: {
		{Name: "uuid", Type: TypeString},
		{Name: "informatieobject", Type: TypeString, URL: true},
		{Name: "object_type", Type: TypeString},
		{Name: "zaak", Type: TypeString, URL: true},
		{Name: "besluit", Type: TypeString, URL: true},
	},
	ObjectZaak: {
		{Name: "url", Type: TypeString, URL: true},
		{Name: "identificatie", Type: TypeString},
		{Name: "zaaktype", Type: TypeString, URL: true},
		{Name: "bronorganisatie", Type: TypeString},
	},
	ObjectZaakType: {
		{Name: "url", Type: TypeString, URL: true},
		{Name: "identificatie", Type: TypeString},
	},
	ObjectConnection: {
		{Name: "object", Type: TypeString, URL: true},
		{Name: "object_type", Type: TypeString},
		{Name: "aard_relatie", Type: TypeString},
		{Name: "titel", Type: TypeString},
		{Name: "beschrijving", Type: TypeString},
		{Name: "registratiedatum", Type: TypeDateTime},
	},
}

// Fields returns the schema of a mapped object type.
func Fields(t ObjectType) []Field {
	return schemas[t]
}

// FieldOf looks up a single field.
func FieldOf(t ObjectType, name string) (Field, bool) {
	for _, f := range schemas[t] {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Table returns the CMIS type a query selects from for the given object type.
func Table(t ObjectType) string {
	switch t {
	case ObjectFolder:
		return "cmis:folder"
	case ObjectZaak, ObjectZaakFolder:
		return "drc:zaakfolder"
	case ObjectZaakType, ObjectZaakTypeFolder:
		return "drc:zaaktypefolder"
	default:
		return fmt.Sprintf("drc:%s", t)
	}
}

// MappedType returns the property table used to decode objects of t.
func MappedType(t ObjectType) ObjectType {
	switch t {
	case ObjectZaakFolder:
		return ObjectZaak
	case ObjectZaakTypeFolder:
		return ObjectZaakType
	}
	return t
}
