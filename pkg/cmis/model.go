package cmis

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Data carries domain field values keyed by field name, as the host hands
// them over. Values may be strings, booleans, numbers, decimals or times.
type Data map[string]interface{}

// Codec turns domain data into property bags and property bags into the typed
// domain objects below. It combines the property mapper with the optional URL
// mapper.
type Codec struct {
	Mapper *Mapper
	URLs   *URLMapper
}

// Properties builds the property bag for the given object type. Fields the
// mapper does not know are skipped. Nil values are kept only when keepNil is
// set, so updates can clear a property.
func (c Codec) Properties(t ObjectType, data Data, keepNil bool) (Properties, error) {
	props := Properties{}
	for name, value := range data {
		id, ok := c.Mapper.ToCMIS(name, t)
		if !ok {
			continue
		}
		field, _ := FieldOf(MappedType(t), name)
		if value == nil && !keepNil {
			continue
		}
		if field.URL && c.URLs.Enabled() {
			if s, ok := value.(string); ok && s != "" {
				short, err := c.URLs.Shrink(s)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", name, err)
				}
				value = short
			}
		}
		prop, err := NewProperty(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		props[id] = prop
	}
	return props, nil
}

// Property builds a single mapped property.
func (c Codec) Property(t ObjectType, field string, value interface{}) (string, Property, error) {
	props, err := c.Properties(t, Data{field: value}, true)
	if err != nil {
		return "", Property{}, err
	}
	id, ok := c.Mapper.ToCMIS(field, t)
	if !ok {
		return "", Property{}, fmt.Errorf("field %s.%s is not mapped", t, field)
	}
	return id, props[id], nil
}

// Filter builds a query filter on a mapped field, shortening URL values the
// same way writes do.
func (c Codec) Filter(t ObjectType, field string, value interface{}) (Filter, error) {
	id, ok := c.Mapper.ToCMIS(field, t)
	if !ok {
		return Filter{}, fmt.Errorf("field %s.%s is not mapped", t, field)
	}
	f, _ := FieldOf(MappedType(t), field)
	if s, isString := value.(string); isString && f.URL && c.URLs.Enabled() && s != "" {
		short, err := c.URLs.Shrink(s)
		if err != nil {
			return Filter{}, err
		}
		value = short
	}
	return Eq(id, value), nil
}

type fieldReader struct {
	codec Codec
	props Properties
	t     ObjectType
}

func (c Codec) reader(o *Object, t ObjectType) fieldReader {
	return fieldReader{codec: c, props: o.Properties, t: MappedType(t)}
}

func (r fieldReader) id(name string) string {
	id, _ := r.codec.Mapper.ToCMIS(name, r.t)
	return id
}

func (r fieldReader) str(name string) string {
	v := r.props.String(r.id(name))
	if f, ok := FieldOf(r.t, name); ok && f.URL && v != "" && r.codec.URLs.Enabled() {
		if long, err := r.codec.URLs.Expand(v); err == nil {
			v = long
		}
	}
	return v
}

func (r fieldReader) time(name string) *time.Time { return r.props.Time(r.id(name)) }
func (r fieldReader) bool(name string) bool       { return r.props.Bool(r.id(name)) }
func (r fieldReader) int(name string) int64       { return r.props.Int(r.id(name)) }
func (r fieldReader) dec(name string) decimal.Decimal {
	return r.props.Decimal(r.id(name))
}

// Document is a drc:document (enkelvoudig informatieobject) version.
type Document struct {
	*Object

	UUID                        string
	Identificatie               string
	Bronorganisatie             string
	Creatiedatum                *time.Time
	Titel                       string
	Vertrouwelijkheidaanduiding string
	Auteur                      string
	Status                      string
	Beschrijving                string
	Ontvangstdatum              *time.Time
	Verzenddatum                *time.Time
	IndicatieGebruiksrecht      string
	OndertekeningSoort          string
	OndertekeningDatum          *time.Time
	Informatieobjecttype        string
	Formaat                     string
	Taal                        string
	Bestandsnaam                string
	Bestandsomvang              int64
	Versie                      decimal.Decimal
	Link                        string
	IntegriteitAlgoritme        string
	IntegriteitWaarde           string
	IntegriteitDatum            *time.Time
	Verwijderd                  bool
	BeginRegistratie            *time.Time
	Lock                        string
	KopieVan                    string
}

// Locked reports whether the version series has an open checkout.
func (d *Document) Locked() bool {
	return d.IsVersionSeriesCheckedOut() || d.VersionSeriesCheckedOutID() != ""
}

// IsCopy reports whether the document was copied from another document.
func (d *Document) IsCopy() bool { return d.KopieVan != "" }

// Document decodes a document object.
func (c Codec) Document(o *Object) *Document {
	r := c.reader(o, ObjectDocument)
	return &Document{
		Object:                      o,
		UUID:                        r.str("uuid"),
		Identificatie:               r.str("identificatie"),
		Bronorganisatie:             r.str("bronorganisatie"),
		Creatiedatum:                r.time("creatiedatum"),
		Titel:                       r.str("titel"),
		Vertrouwelijkheidaanduiding: r.str("vertrouwelijkheidaanduiding"),
		Auteur:                      r.str("auteur"),
		Status:                      r.str("status"),
		Beschrijving:                r.str("beschrijving"),
		Ontvangstdatum:              r.time("ontvangstdatum"),
		Verzenddatum:                r.time("verzenddatum"),
		IndicatieGebruiksrecht:      r.str("indicatie_gebruiksrecht"),
		OndertekeningSoort:          r.str("ondertekening_soort"),
		OndertekeningDatum:          r.time("ondertekening_datum"),
		Informatieobjecttype:        r.str("informatieobjecttype"),
		Formaat:                     r.str("formaat"),
		Taal:                        r.str("taal"),
		Bestandsnaam:                r.str("bestandsnaam"),
		Bestandsomvang:              r.int("bestandsomvang"),
		Versie:                      r.dec("versie"),
		Link:                        r.str("link"),
		IntegriteitAlgoritme:        r.str("integriteit_algoritme"),
		IntegriteitWaarde:           r.str("integriteit_waarde"),
		IntegriteitDatum:            r.time("integriteit_datum"),
		Verwijderd:                  r.bool("verwijderd"),
		BeginRegistratie:            r.time("begin_registratie"),
		Lock:                        r.str("lock"),
		KopieVan:                    r.str("kopie_van"),
	}
}

// Gebruiksrechten is a usage-rights record of a document.
type Gebruiksrechten struct {
	*Object

	UUID                    string
	Informatieobject        string
	OmschrijvingVoorwaarden string
	Startdatum              *time.Time
	Einddatum               *time.Time
	KopieVan                string
}

// Gebruiksrechten decodes a gebruiksrechten object.
func (c Codec) Gebruiksrechten(o *Object) *Gebruiksrechten {
	r := c.reader(o, ObjectGebruiksrechten)
	return &Gebruiksrechten{
		Object:                  o,
		UUID:                    r.str("uuid"),
		Informatieobject:        r.str("informatieobject"),
		OmschrijvingVoorwaarden: r.str("omschrijving_voorwaarden"),
		Startdatum:              r.time("startdatum"),
		Einddatum:               r.time("einddatum"),
		KopieVan:                r.str("kopie_van"),
	}
}

// ObjectInformatieObject links a document to a zaak or a besluit.
type ObjectInformatieObject struct {
	*Object

	UUID             string
	Informatieobject string
	ObjectType       string
	Zaak             string
	Besluit          string
}

// ObjectInformatieObject decodes an oio.
func (c Codec) ObjectInformatieObject(o *Object) *ObjectInformatieObject {
	r := c.reader(o, ObjectOIO)
	return &ObjectInformatieObject{
		Object:           o,
		UUID:             r.str("uuid"),
		Informatieobject: r.str("informatieobject"),
		ObjectType:       r.str("object_type"),
		Zaak:             r.str("zaak"),
		Besluit:          r.str("besluit"),
	}
}

// Folder is a plain cmis:folder.
type Folder struct {
	*Object
}

// ParentID is the id of the folder's parent, when the DMS reports it.
func (f *Folder) ParentID() string { return f.Properties.String(PropParentID) }

// ZaakFolder is the folder of a single zaak.
type ZaakFolder struct {
	Folder

	URL             string
	Identificatie   string
	Zaaktype        string
	Bronorganisatie string
}

// ZaakFolder decodes a zaak folder.
func (c Codec) ZaakFolder(o *Object) *ZaakFolder {
	r := c.reader(o, ObjectZaak)
	return &ZaakFolder{
		Folder:          Folder{Object: o},
		URL:             r.str("url"),
		Identificatie:   r.str("identificatie"),
		Zaaktype:        r.str("zaaktype"),
		Bronorganisatie: r.str("bronorganisatie"),
	}
}

// ZaakTypeFolder groups the zaak folders of one zaaktype.
type ZaakTypeFolder struct {
	Folder

	URL           string
	Identificatie string
}

// ZaakTypeFolder decodes a zaaktype folder.
func (c Codec) ZaakTypeFolder(o *Object) *ZaakTypeFolder {
	r := c.reader(o, ObjectZaakType)
	return &ZaakTypeFolder{
		Folder:        Folder{Object: o},
		URL:           r.str("url"),
		Identificatie: r.str("identificatie"),
	}
}

// Zaak is the case data needed to file a document in its zaak folder.
type Zaak struct {
	URL             string
	Identificatie   string
	Zaaktype        string
	Bronorganisatie string
}

func (z Zaak) data() Data {
	return Data{
		"url":             z.URL,
		"identificatie":   z.Identificatie,
		"zaaktype":        z.Zaaktype,
		"bronorganisatie": z.Bronorganisatie,
	}
}

// ZaakType is the case type data needed to name the zaaktype folder.
type ZaakType struct {
	URL           string
	Identificatie string
	Omschrijving  string
}

func (z ZaakType) data() Data {
	return Data{
		"url":           z.URL,
		"identificatie": z.Identificatie,
	}
}

// OIO is the input of CreateOIO.
type OIO struct {
	Informatieobject string
	// ObjectType is "zaak" or "besluit".
	ObjectType string
	Zaak       string
	Besluit    string
}

func (o OIO) data() Data {
	d := Data{
		"informatieobject": o.Informatieobject,
		"object_type":      o.ObjectType,
	}
	if o.Zaak != "" {
		d["zaak"] = o.Zaak
	}
	if o.Besluit != "" {
		d["besluit"] = o.Besluit
	}
	return d
}

// GebruiksrechtenInput is the input of CreateGebruiksrechten.
type GebruiksrechtenInput struct {
	Informatieobject        string
	OmschrijvingVoorwaarden string
	Startdatum              *time.Time
	Einddatum               *time.Time
}

func (g GebruiksrechtenInput) data() Data {
	d := Data{
		"informatieobject":         g.Informatieobject,
		"omschrijving_voorwaarden": g.OmschrijvingVoorwaarden,
	}
	if g.Startdatum != nil {
		d["startdatum"] = *g.Startdatum
	}
	if g.Einddatum != nil {
		d["einddatum"] = *g.Einddatum
	}
	return d
}
