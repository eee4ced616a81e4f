package cmis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	cmiserr "drccmis/pkg/errors"
)

// Values of the oio object_type field.
const (
	OIOZaak    = "zaak"
	OIOBesluit = "besluit"
)

func checkContentType(t ObjectType) error {
	if t != ObjectGebruiksrechten && t != ObjectOIO {
		return fmt.Errorf("object type %q is not a content object", t)
	}
	return nil
}

// CreateContentObject creates a gebruiksrechten or oio in folder. Without a
// folder the "Related data" folder of the other folder path is used.
func (c *Client) CreateContentObject(ctx context.Context, t ObjectType, data Data, folder *Folder) (*Object, error) {
	if err := checkContentType(t); err != nil {
		return nil, err
	}
	if folder == nil {
		other, err := c.GetOrCreateOtherFolder(ctx)
		if err != nil {
			return nil, err
		}
		if folder, err = c.GetOrCreateFolder(ctx, RelatedDataFolder, other, nil); err != nil {
			return nil, err
		}
	}

	props, err := c.codec.Properties(t, data, false)
	if err != nil {
		return nil, fmt.Errorf("build %s properties: %w", t, err)
	}
	typeID, err := c.objectTypeID(ctx, t)
	if err != nil {
		return nil, err
	}
	props[PropObjectTypeID] = typeID
	props[PropName] = Property{Type: TypeString, Value: randomString(6)}
	props[c.prop(t, "uuid")] = Property{Type: TypeString, Value: uuid.NewString()}

	c.log.WithContext(ctx).Debugf("create %s in %s", t, folder.ID())
	obj, err := c.binding.CreateDocument(ctx, folder.ID(), props, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	return obj, nil
}

// GetContentObject returns the gebruiksrechten or oio with the given uuid.
func (c *Client) GetContentObject(ctx context.Context, contentUUID string, t ObjectType) (*Object, error) {
	if err := checkContentType(t); err != nil {
		return nil, err
	}
	if contentUUID == "" {
		return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotFound, "no %s uuid given", t)
	}
	objects, err := c.Query(ctx, t, Eq(c.prop(t, "uuid"), contentUUID))
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotFound, "%s %s does not exist", t, contentUUID)
	}
	return objects[0], nil
}

// DeleteContentObject removes a gebruiksrechten or oio. Deleting an oio of a
// zaak moves the related document out of the zaak folder first.
func (c *Client) DeleteContentObject(ctx context.Context, contentUUID string, t ObjectType) error {
	if t == ObjectOIO {
		return c.DeleteOIO(ctx, contentUUID)
	}
	obj, err := c.GetContentObject(ctx, contentUUID, t)
	if err != nil {
		return err
	}
	return c.deleteObject(ctx, obj)
}

func (c *Client) deleteObject(ctx context.Context, obj *Object) error {
	c.log.WithContext(ctx).Debugf("delete object %s", obj.ID())
	if err := c.binding.DeleteObject(ctx, obj.ID()); err != nil {
		return fmt.Errorf("delete %s: %w", obj.ID(), err)
	}
	return nil
}

// CreateGebruiksrechten creates the gebruiksrechten in the "Related data"
// folder next to its document.
func (c *Client) CreateGebruiksrechten(ctx context.Context, in GebruiksrechtenInput) (*Gebruiksrechten, error) {
	doc, err := c.GetDocument(ctx, UUIDFromURL(in.Informatieobject))
	if err != nil {
		return nil, err
	}
	parent, err := c.parent(ctx, doc.Object)
	if err != nil {
		return nil, err
	}
	related, err := c.GetOrCreateFolder(ctx, RelatedDataFolder, parent, nil)
	if err != nil {
		return nil, err
	}
	obj, err := c.CreateContentObject(ctx, ObjectGebruiksrechten, in.data(), related)
	if err != nil {
		return nil, err
	}
	return c.codec.Gebruiksrechten(obj), nil
}

// GetGebruiksrechten returns a gebruiksrechten by uuid.
func (c *Client) GetGebruiksrechten(ctx context.Context, gebruiksrechtenUUID string) (*Gebruiksrechten, error) {
	obj, err := c.GetContentObject(ctx, gebruiksrechtenUUID, ObjectGebruiksrechten)
	if err != nil {
		return nil, err
	}
	return c.codec.Gebruiksrechten(obj), nil
}

// UpdateGebruiksrechten writes the changed fields of a gebruiksrechten.
func (c *Client) UpdateGebruiksrechten(ctx context.Context, gebruiksrechtenUUID string, data Data) (*Gebruiksrechten, error) {
	current, err := c.GetContentObject(ctx, gebruiksrechtenUUID, ObjectGebruiksrechten)
	if err != nil {
		return nil, err
	}
	fields := Data{}
	for k, v := range data {
		if k != "uuid" {
			fields[k] = v
		}
	}
	next, err := c.codec.Properties(ObjectGebruiksrechten, fields, true)
	if err != nil {
		return nil, fmt.Errorf("build gebruiksrechten properties: %w", err)
	}
	updated, err := c.UpdateProperties(ctx, current, current.Properties.Diff(next))
	if err != nil {
		return nil, err
	}
	return c.codec.Gebruiksrechten(updated), nil
}

// CopyGebruiksrechten stores a copy of g in folder with kopie_van set to the
// object id of g.
func (c *Client) CopyGebruiksrechten(ctx context.Context, g *Gebruiksrechten, folder *Folder) (*Gebruiksrechten, error) {
	props := Properties{}
	for id, prop := range g.Properties {
		if strings.HasPrefix(id, "cmis:") || prop.IsZero() {
			continue
		}
		props[id] = prop
	}
	props[PropObjectTypeID] = Property{Type: TypeID, Value: g.ObjectTypeID()}
	props[PropName] = Property{Type: TypeString, Value: randomString(6)}
	props[c.prop(ObjectGebruiksrechten, "kopie_van")] = Property{Type: TypeString, Value: g.ID()}
	props[c.prop(ObjectGebruiksrechten, "uuid")] = Property{Type: TypeString, Value: uuid.NewString()}

	c.log.WithContext(ctx).Debugf("copy gebruiksrechten %s to %s", g.UUID, folder.ID())
	obj, err := c.binding.CreateDocument(ctx, folder.ID(), props, nil)
	if err != nil {
		return nil, fmt.Errorf("copy gebruiksrechten %s: %w", g.UUID, err)
	}
	return c.codec.Gebruiksrechten(obj), nil
}

// FilterGebruiksrechten queries gebruiksrechten.
func (c *Client) FilterGebruiksrechten(ctx context.Context, filters ...Filter) ([]*Gebruiksrechten, error) {
	objects, err := c.Query(ctx, ObjectGebruiksrechten, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]*Gebruiksrechten, 0, len(objects))
	for _, obj := range objects {
		out = append(out, c.codec.Gebruiksrechten(obj))
	}
	return out, nil
}

// GetOIO returns an oio by uuid.
func (c *Client) GetOIO(ctx context.Context, oioUUID string) (*ObjectInformatieObject, error) {
	obj, err := c.GetContentObject(ctx, oioUUID, ObjectOIO)
	if err != nil {
		return nil, err
	}
	return c.codec.ObjectInformatieObject(obj), nil
}

func (c *Client) queryOIOs(ctx context.Context, filters ...Filter) ([]*ObjectInformatieObject, error) {
	objects, err := c.Query(ctx, ObjectOIO, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]*ObjectInformatieObject, 0, len(objects))
	for _, obj := range objects {
		out = append(out, c.codec.ObjectInformatieObject(obj))
	}
	return out, nil
}

// FilterOIOs queries oios. With a cache configured the related documents are
// fetched in one query and cached by uuid, so that looking them up afterwards
// does not hit the DMS.
func (c *Client) FilterOIOs(ctx context.Context, filters ...Filter) ([]*ObjectInformatieObject, error) {
	oios, err := c.queryOIOs(ctx, filters...)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.CacheRelatedDocuments(ctx, oios)
	}
	return oios, nil
}

func (c *Client) relatedDocuments(ctx context.Context, informatieobject string) ([]*ObjectInformatieObject, []*Gebruiksrechten, error) {
	oioFilter, err := c.filter(ObjectOIO, "informatieobject", informatieobject)
	if err != nil {
		return nil, nil, err
	}
	oios, err := c.queryOIOs(ctx, oioFilter)
	if err != nil {
		return nil, nil, err
	}
	grFilter, err := c.filter(ObjectGebruiksrechten, "informatieobject", informatieobject)
	if err != nil {
		return nil, nil, err
	}
	gebruiksrechten, err := c.FilterGebruiksrechten(ctx, grFilter)
	if err != nil {
		return nil, nil, err
	}
	return oios, gebruiksrechten, nil
}

func sameTarget(existing *ObjectInformatieObject, in OIO) bool {
	if existing.ObjectType != in.ObjectType {
		return false
	}
	switch in.ObjectType {
	case OIOZaak:
		return in.Zaak != "" && existing.Zaak == in.Zaak
	case OIOBesluit:
		return in.Besluit != "" && existing.Besluit == in.Besluit
	}
	return false
}

// CreateOIO relates a document to a zaak or besluit.
//
// The destination is the zaak folder, or the other folder for a besluit
// without zaak. A document without relations is moved there together with its
// gebruiksrechten. A document that is already related keeps its place and a
// copy is stored in the destination instead, with copies of its
// gebruiksrechten. Relating a document to the same zaak or besluit twice
// returns the existing oio.
func (c *Client) CreateOIO(ctx context.Context, in OIO, zaak *Zaak, zaaktype *ZaakType) (*ObjectInformatieObject, error) {
	if in.ObjectType != OIOZaak && in.ObjectType != OIOBesluit {
		return nil, fmt.Errorf("unknown oio object type %q", in.ObjectType)
	}
	doc, err := c.GetDocument(ctx, UUIDFromURL(in.Informatieobject))
	if err != nil {
		return nil, err
	}

	oios, gebruiksrechten, err := c.relatedDocuments(ctx, in.Informatieobject)
	if err != nil {
		return nil, err
	}
	for _, existing := range oios {
		if sameTarget(existing, in) {
			c.log.WithContext(ctx).Debugf("document %s is already related to %s", doc.UUID, in.Zaak+in.Besluit)
			return existing, nil
		}
	}

	var destination *Folder
	if zaak == nil {
		destination, err = c.GetOrCreateOtherFolder(ctx)
	} else {
		if zaaktype == nil {
			return nil, fmt.Errorf("zaaktype of zaak %s is required", zaak.URL)
		}
		destination, err = c.GetOrCreateZaakFolder(ctx, *zaaktype, *zaak)
	}
	if err != nil {
		return nil, err
	}
	related, err := c.GetOrCreateFolder(ctx, RelatedDataFolder, destination, nil)
	if err != nil {
		return nil, err
	}

	if len(oios) > 0 {
		if _, err := c.CopyDocument(ctx, doc, destination); err != nil {
			return nil, err
		}
		for _, g := range gebruiksrechten {
			if g.KopieVan != "" {
				continue
			}
			if _, err := c.CopyGebruiksrechten(ctx, g, related); err != nil {
				return nil, err
			}
		}
	} else {
		if _, err := c.Move(ctx, doc.Object, destination); err != nil {
			return nil, err
		}
		for _, g := range gebruiksrechten {
			if _, err := c.Move(ctx, g.Object, related); err != nil {
				return nil, err
			}
		}
	}

	obj, err := c.CreateContentObject(ctx, ObjectOIO, in.data(), related)
	if err != nil {
		return nil, err
	}
	return c.codec.ObjectInformatieObject(obj), nil
}

// DeleteOIO removes an oio. For an oio of a zaak the document leaves the zaak
// folder: a copy is deleted with its gebruiksrechten, the original moves back
// to the other folder with its gebruiksrechten.
func (c *Client) DeleteOIO(ctx context.Context, oioUUID string) error {
	oio, err := c.GetOIO(ctx, oioUUID)
	if err != nil {
		return err
	}
	if oio.ObjectType == OIOZaak {
		if err := c.rearrangeOnDelete(ctx, oio); err != nil {
			return err
		}
	}
	return c.deleteObject(ctx, oio.Object)
}

func sameFolder(a, b *Folder) bool {
	return StripVersion(a.ID()) == StripVersion(b.ID())
}

func (c *Client) rearrangeOnDelete(ctx context.Context, oio *ObjectInformatieObject) error {
	related, err := c.parent(ctx, oio.Object)
	if err != nil {
		return err
	}
	zaakFolder, err := c.parent(ctx, related.Object)
	if err != nil {
		return err
	}

	doc, err := c.documentInFolder(ctx, UUIDFromURL(oio.Informatieobject), zaakFolder)
	if err != nil {
		return err
	}
	if doc == nil {
		c.log.WithContext(ctx).Warnf("no document of oio %s found in %s, nothing to rearrange", oio.UUID, zaakFolder.ID())
		return nil
	}

	grFilter, err := c.filter(ObjectGebruiksrechten, "informatieobject", oio.Informatieobject)
	if err != nil {
		return err
	}
	candidates, err := c.FilterGebruiksrechten(ctx, grFilter)
	if err != nil {
		return err
	}
	var gebruiksrechten []*Gebruiksrechten
	for _, g := range candidates {
		parent, err := c.parent(ctx, g.Object)
		if err != nil {
			return err
		}
		if sameFolder(parent, related) {
			gebruiksrechten = append(gebruiksrechten, g)
		}
	}

	if doc.IsCopy() {
		if err := c.deleteDocument(ctx, doc); err != nil {
			return err
		}
		for _, g := range gebruiksrechten {
			if err := c.deleteObject(ctx, g.Object); err != nil {
				return err
			}
		}
		return nil
	}

	other, err := c.GetOrCreateOtherFolder(ctx)
	if err != nil {
		return err
	}
	if _, err := c.Move(ctx, doc.Object, other); err != nil {
		return err
	}
	if len(gebruiksrechten) == 0 {
		return nil
	}
	otherRelated, err := c.GetOrCreateFolder(ctx, RelatedDataFolder, other, nil)
	if err != nil {
		return err
	}
	for _, g := range gebruiksrechten {
		if _, err := c.Move(ctx, g.Object, otherRelated); err != nil {
			return err
		}
	}
	return nil
}

// documentInFolder finds the document with the given uuid, or a copy of it,
// that is filed in folder.
func (c *Client) documentInFolder(ctx context.Context, documentUUID string, folder *Folder) (*Document, error) {
	var objects []*Object
	for _, field := range []string{"uuid", "kopie_van"} {
		found, err := c.Query(ctx, ObjectDocument, Eq(c.prop(ObjectDocument, field), documentUUID))
		if err != nil {
			return nil, err
		}
		objects = append(objects, found...)
	}

	for _, obj := range objects {
		if obj.IsPrivateWorkingCopy() {
			continue
		}
		parent, err := c.parent(ctx, obj)
		if err != nil {
			return nil, err
		}
		if sameFolder(parent, folder) {
			return c.codec.Document(obj), nil
		}
	}
	return nil, nil
}
