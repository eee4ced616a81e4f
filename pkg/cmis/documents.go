package cmis

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	cmiserr "drccmis/pkg/errors"
)

// CreateDocument creates a document in the other folder path. The pair of
// identification and bronorganisatie must be unique. A nil content creates an
// empty content stream.
func (c *Client) CreateDocument(ctx context.Context, identification, bronorganisatie string, data Data, content io.Reader) (*Document, error) {
	c.log.WithContext(ctx).Debugf("create document %s (%s)", identification, bronorganisatie)

	if err := c.CheckDocumentExists(ctx, identification, bronorganisatie); err != nil {
		return nil, err
	}

	fields := Data{}
	for k, v := range data {
		fields[k] = v
	}
	if _, ok := fields["versie"]; !ok {
		fields["versie"] = 1
	}
	fields["identificatie"] = identification
	if bronorganisatie != "" {
		fields["bronorganisatie"] = bronorganisatie
	}
	fields["uuid"] = uuid.NewString()

	props, err := c.codec.Properties(ObjectDocument, fields, false)
	if err != nil {
		return nil, fmt.Errorf("build document properties: %w", err)
	}
	typeID, err := c.objectTypeID(ctx, ObjectDocument)
	if err != nil {
		return nil, err
	}
	props[PropObjectTypeID] = typeID
	props[PropName] = Property{Type: TypeString, Value: documentName(stringField(fields, "titel"))}

	folder, err := c.GetOrCreateOtherFolder(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := readContent(content, stringField(fields, "bestandsnaam"), props.String(PropName))
	if err != nil {
		return nil, err
	}
	obj, err := c.binding.CreateDocument(ctx, folder.ID(), props, stream)
	if err != nil {
		return nil, fmt.Errorf("create document %s: %w", identification, err)
	}
	return c.codec.Document(obj), nil
}

func stringField(data Data, name string) string {
	switch v := data[name].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func documentName(title string) string {
	if title == "" {
		return randomString(6)
	}
	return fmt.Sprintf("%s-%s", title, randomString(6))
}

func readContent(content io.Reader, fileName, fallbackName string) (*ContentStream, error) {
	stream := &ContentStream{Data: []byte{}, FileName: fileName}
	if content != nil {
		data, err := io.ReadAll(content)
		if err != nil {
			return nil, fmt.Errorf("read content: %w", err)
		}
		stream.Data = data
	}
	if stream.FileName == "" {
		stream.FileName = fallbackName
	}
	stream.MimeType = GuessMimeType(stream.FileName)
	return stream, nil
}

// CheckDocumentExists fails with ErrDocumentExists when a document with the
// identification and bronorganisatie is already stored.
func (c *Client) CheckDocumentExists(ctx context.Context, identification, bronorganisatie string) error {
	idFilter, err := c.filter(ObjectDocument, "identificatie", identification)
	if err != nil {
		return err
	}
	bronFilter, err := c.filter(ObjectDocument, "bronorganisatie", bronorganisatie)
	if err != nil {
		return err
	}
	objects, err := c.Query(ctx, ObjectDocument, idFilter, bronFilter)
	if err != nil {
		return err
	}
	if len(objects) > 0 {
		return cmiserr.Errorf(cmiserr.ErrDocumentExists,
			"document identificatie %s is not unique for bronorganisatie %s", identification, bronorganisatie)
	}
	return nil
}

// GetDocument returns the latest checked-in version of the document with the
// given uuid. Extra filters narrow the query.
func (c *Client) GetDocument(ctx context.Context, documentUUID string, filters ...Filter) (*Document, error) {
	if documentUUID == "" {
		return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotFound, "no document uuid given")
	}
	objects, err := c.Query(ctx, ObjectDocument, append([]Filter{Eq(c.prop(ObjectDocument, "uuid"), documentUUID)}, filters...)...)
	if err != nil {
		return nil, err
	}
	obj, err := LatestNotPWC(objects)
	if err != nil {
		return nil, cmiserr.Wrap(cmiserr.ErrDocumentNotFound, err, "document %s does not exist", documentUUID)
	}
	return c.codec.Document(obj), nil
}

// GetLatestVersion returns the latest version of the document, which is the
// private working copy while the document is checked out.
func (c *Client) GetLatestVersion(ctx context.Context, doc *Document) (*Document, error) {
	objects, err := c.Query(ctx, ObjectDocument, Eq(c.prop(ObjectDocument, "uuid"), doc.UUID))
	if err != nil {
		return nil, err
	}
	obj, err := ExtractLatestVersion(objects)
	if err != nil {
		return nil, fmt.Errorf("latest version of %s: %w", doc.UUID, err)
	}
	return c.codec.Document(obj), nil
}

// GetAllVersions returns every version of the document, the private working
// copy first when there is one.
func (c *Client) GetAllVersions(ctx context.Context, doc *Document) ([]*Document, error) {
	objects, err := c.binding.GetAllVersions(ctx, doc.ID())
	if err != nil {
		return nil, fmt.Errorf("get versions of %s: %w", doc.ID(), err)
	}
	docs := make([]*Document, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, c.codec.Document(obj))
	}
	return docs, nil
}

// GetPrivateWorkingCopy returns the PWC of a checked out document, or
// ErrDocumentNotLocked.
func (c *Client) GetPrivateWorkingCopy(ctx context.Context, doc *Document) (*Document, error) {
	if doc.IsPrivateWorkingCopy() {
		return doc, nil
	}
	if id := doc.VersionSeriesCheckedOutID(); id != "" {
		obj, err := c.binding.GetObject(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get private working copy %s: %w", id, err)
		}
		return c.codec.Document(obj), nil
	}

	versions, err := c.GetAllVersions(ctx, doc)
	if err != nil {
		return nil, err
	}
	for _, version := range versions {
		if version.IsPrivateWorkingCopy() {
			return version, nil
		}
	}
	return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotLocked, "document %s is not checked out", doc.UUID)
}

// Checkout creates the private working copy of a document.
func (c *Client) Checkout(ctx context.Context, doc *Document) (*Document, error) {
	c.log.WithContext(ctx).Debugf("checkout %s", doc.ID())
	obj, err := c.binding.CheckOut(ctx, doc.ID())
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", doc.ID(), err)
	}
	return c.codec.Document(obj), nil
}

// Checkin turns the private working copy into a new version.
func (c *Client) Checkin(ctx context.Context, pwc *Document, comment string, major bool) (*Document, error) {
	c.log.WithContext(ctx).Debugf("checkin %s (major: %t)", pwc.ID(), major)
	obj, err := c.binding.CheckIn(ctx, pwc.ID(), comment, major)
	if err != nil {
		return nil, fmt.Errorf("checkin %s: %w", pwc.ID(), err)
	}
	return c.codec.Document(obj), nil
}

// CancelCheckout discards the private working copy of a document.
func (c *Client) CancelCheckout(ctx context.Context, doc *Document) error {
	pwc, err := c.GetPrivateWorkingCopy(ctx, doc)
	if err != nil {
		return err
	}
	c.log.WithContext(ctx).Debugf("cancel checkout %s", pwc.ID())
	if err := c.binding.CancelCheckOut(ctx, pwc.ID()); err != nil {
		return fmt.Errorf("cancel checkout %s: %w", pwc.ID(), err)
	}
	return nil
}

// GetContentStream reads the content of a document version.
func (c *Client) GetContentStream(ctx context.Context, doc *Document) ([]byte, error) {
	data, err := c.binding.GetContentStream(ctx, doc.ID())
	if err != nil {
		return nil, fmt.Errorf("get content of %s: %w", doc.ID(), err)
	}
	return data, nil
}

// SetContentStream replaces the content of a document. The file name decides the
// mime type and defaults to the document name.
func (c *Client) SetContentStream(ctx context.Context, doc *Document, content io.Reader, fileName string) (*Document, error) {
	stream, err := readContent(content, fileName, doc.Name())
	if err != nil {
		return nil, err
	}
	obj, err := c.binding.SetContentStream(ctx, doc.ID(), *stream)
	if err != nil {
		return nil, fmt.Errorf("set content of %s: %w", doc.ID(), err)
	}
	return c.codec.Document(obj), nil
}

// UpdateProperties writes props to an object, skipping the object type id which
// cannot change.
func (c *Client) UpdateProperties(ctx context.Context, obj *Object, props Properties) (*Object, error) {
	update := props.Clone()
	delete(update, PropObjectTypeID)
	if len(update) == 0 {
		return obj, nil
	}
	updated, err := c.binding.UpdateProperties(ctx, obj.ID(), update)
	if err != nil {
		return nil, fmt.Errorf("update properties of %s: %w", obj.ID(), err)
	}
	return updated, nil
}

// Parents returns the folders an object is filed in. The first one is treated
// as the canonical location.
func (c *Client) Parents(ctx context.Context, obj *Object) ([]*Folder, error) {
	objects, err := c.binding.GetObjectParents(ctx, obj.ID())
	if err != nil {
		return nil, fmt.Errorf("get parents of %s: %w", obj.ID(), err)
	}
	folders := make([]*Folder, 0, len(objects))
	for _, o := range objects {
		folders = append(folders, &Folder{Object: o})
	}
	return folders, nil
}

func (c *Client) parent(ctx context.Context, obj *Object) (*Folder, error) {
	parents, err := c.Parents(ctx, obj)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return nil, cmiserr.Errorf(cmiserr.ErrFolderNotFound, "object %s is not filed", obj.ID())
	}
	return parents[0], nil
}

// Move moves an object from its first parent into target. An object that is
// already in target is returned as is.
func (c *Client) Move(ctx context.Context, obj *Object, target *Folder) (*Object, error) {
	source, err := c.parent(ctx, obj)
	if err != nil {
		return nil, err
	}
	if sameFolder(source, target) {
		return obj, nil
	}
	c.log.WithContext(ctx).Debugf("move %s from %s to %s", obj.ID(), source.ID(), target.ID())
	moved, err := c.binding.MoveObject(ctx, obj.ID(), source.ID(), target.ID())
	if err != nil {
		return nil, fmt.Errorf("move %s: %w", obj.ID(), err)
	}
	return moved, nil
}

// LockDocument checks the document out and stores lock on the private working
// copy. Locking a document that is already checked out fails with
// ErrDocumentLocked.
func (c *Client) LockDocument(ctx context.Context, documentUUID, lock string) error {
	doc, err := c.GetDocument(ctx, documentUUID)
	if err != nil {
		return err
	}

	pwcObj, err := c.binding.CheckOut(ctx, doc.ID())
	if err != nil {
		if cmiserr.IsUpdateConflict(err) {
			return cmiserr.Wrap(cmiserr.ErrDocumentLocked, err, "document %s was already checked out", documentUUID)
		}
		return fmt.Errorf("checkout %s: %w", documentUUID, err)
	}
	pwc := c.codec.Document(pwcObj)
	if !pwc.IsPrivateWorkingCopy() {
		return fmt.Errorf("checkout of %s did not return a private working copy", documentUUID)
	}
	if pwc.Lock != "" {
		return cmiserr.Errorf(cmiserr.ErrDocumentLocked, "document %s was already checked out", documentUUID)
	}

	id, lockProp, err := c.codec.Property(ObjectDocument, "lock", lock)
	if err != nil {
		return err
	}
	if _, err := c.UpdateProperties(ctx, pwc.Object, Properties{id: lockProp}); err != nil {
		if cmiserr.IsUpdateConflict(err) {
			return cmiserr.Wrap(cmiserr.ErrDocumentLocked, err, "document %s was already checked out", documentUUID)
		}
		return err
	}
	c.log.WithContext(ctx).Debugf("locked document %s", documentUUID)
	return nil
}

// UnlockDocument clears the lock and checks the private working copy in. The
// lock must match the one given to LockDocument unless force is set.
func (c *Client) UnlockDocument(ctx context.Context, documentUUID, lock string, force bool) (*Document, error) {
	doc, err := c.GetDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	pwc, err := c.GetPrivateWorkingCopy(ctx, doc)
	if err != nil {
		return nil, err
	}

	if !force && subtle.ConstantTimeCompare([]byte(pwc.Lock), []byte(lock)) != 1 {
		return nil, cmiserr.Errorf(cmiserr.ErrLockDidNotMatch, "lock did not match for document %s", documentUUID)
	}

	policy := c.VersionPolicy()
	id, cleared, err := c.codec.Property(ObjectDocument, "lock", "")
	if err != nil {
		return nil, err
	}
	updated, err := c.UpdateProperties(ctx, pwc.Object, Properties{id: cleared})
	if err != nil {
		return nil, err
	}
	newDoc, err := c.Checkin(ctx, c.codec.Document(updated), policy.CheckinComment, policy.MajorCheckin)
	if err != nil {
		return nil, err
	}
	c.log.WithContext(ctx).Debugf("unlocked document %s (forced: %t)", documentUUID, force)
	return newDoc, nil
}

// UpdateDocument writes the changed fields to the private working copy of a
// locked document and replaces its content when given.
func (c *Client) UpdateDocument(ctx context.Context, documentUUID, lock string, data Data, content io.Reader) (*Document, error) {
	c.log.WithContext(ctx).Debugf("update document %s", documentUUID)
	doc, err := c.GetDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if !doc.IsVersionSeriesCheckedOut() {
		return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotLocked, "document %s is not checked out and/or locked", documentUUID)
	}
	pwc, err := c.GetPrivateWorkingCopy(ctx, doc)
	if err != nil {
		return nil, err
	}
	if pwc.Lock == "" {
		return nil, cmiserr.Errorf(cmiserr.ErrDocumentNotLocked, "document %s is not checked out and/or locked", documentUUID)
	}
	if subtle.ConstantTimeCompare([]byte(lock), []byte(pwc.Lock)) != 1 {
		return nil, cmiserr.Errorf(cmiserr.ErrLockConflict, "wrong lock given for document %s", documentUUID)
	}

	fields := Data{}
	for k, v := range data {
		if k == "uuid" {
			continue
		}
		fields[k] = v
	}
	next, err := c.codec.Properties(ObjectDocument, fields, true)
	if err != nil {
		return nil, fmt.Errorf("build document properties: %w", err)
	}

	updatedObj, err := c.UpdateProperties(ctx, pwc.Object, doc.Properties.Diff(next))
	if err != nil {
		if cmiserr.IsUpdateConflict(err) {
			return nil, cmiserr.Wrap(cmiserr.ErrDocumentConflict, err, "document %s was updated concurrently", documentUUID)
		}
		return nil, err
	}
	updated := c.codec.Document(updatedObj)

	if content != nil {
		fileName := updated.Bestandsnaam
		if name, ok := fields["bestandsnaam"].(string); ok && name != "" {
			fileName = name
		}
		updated, err = c.SetContentStream(ctx, updated, content, fileName)
		if err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// DeleteDocument removes every version of a document. An open checkout is
// cancelled first.
func (c *Client) DeleteDocument(ctx context.Context, documentUUID string) error {
	doc, err := c.GetDocument(ctx, documentUUID)
	if err != nil {
		return err
	}
	return c.deleteDocument(ctx, doc)
}

func (c *Client) deleteDocument(ctx context.Context, doc *Document) error {
	latest, err := c.GetLatestVersion(ctx, doc)
	if err != nil {
		return err
	}
	if latest.IsVersionSeriesCheckedOut() {
		if err := c.CancelCheckout(ctx, latest); err != nil {
			return err
		}
		if latest, err = c.GetLatestVersion(ctx, doc); err != nil {
			return err
		}
		if latest.IsVersionSeriesCheckedOut() {
			return cmiserr.Errorf(cmiserr.ErrDocumentLocked, "document %s is still checked out", doc.UUID)
		}
	}

	c.log.WithContext(ctx).Debugf("delete document %s", latest.ID())
	if err := c.binding.DeleteObject(ctx, latest.ID()); err != nil {
		return fmt.Errorf("delete document %s: %w", doc.UUID, err)
	}
	return nil
}

// CopyDocument stores a copy of doc in folder. The copy gets a new uuid, the
// title suffixed with " - copy" and kopie_van set to the uuid of doc. The
// content is read from doc and uploaded again.
func (c *Client) CopyDocument(ctx context.Context, doc *Document, folder *Folder) (*Document, error) {
	c.log.WithContext(ctx).Debugf("copy document %s to %s", doc.UUID, folder.ID())

	props := Properties{}
	for id, prop := range doc.Properties {
		if strings.HasPrefix(id, "cmis:") || prop.IsZero() {
			continue
		}
		props[id] = prop
	}
	props[PropObjectTypeID] = Property{Type: TypeID, Value: doc.ObjectTypeID()}
	props[PropName] = Property{Type: TypeString, Value: documentName(doc.Titel)}
	props[c.prop(ObjectDocument, "titel")] = Property{Type: TypeString, Value: fmt.Sprintf("%s - copy", doc.Titel)}
	props[c.prop(ObjectDocument, "kopie_van")] = Property{Type: TypeString, Value: doc.UUID}
	props[c.prop(ObjectDocument, "uuid")] = Property{Type: TypeString, Value: uuid.NewString()}
	delete(props, c.prop(ObjectDocument, "lock"))

	data, err := c.GetContentStream(ctx, doc)
	if err != nil {
		return nil, err
	}
	fileName := doc.Bestandsnaam
	if fileName == "" {
		fileName = doc.Properties.String(PropContentStreamFileName)
	}
	stream := &ContentStream{Data: data, FileName: fileName, MimeType: GuessMimeType(fileName)}

	obj, err := c.binding.CreateDocument(ctx, folder.ID(), props, stream)
	if err != nil {
		return nil, fmt.Errorf("copy document %s: %w", doc.UUID, err)
	}
	return c.codec.Document(obj), nil
}

// FilterDocuments queries documents on domain fields. Fields of the other
// types are resolved the way untyped filters are.
func (c *Client) FilterDocuments(ctx context.Context, fields Data) ([]*Document, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		if f, err := c.codec.Filter(ObjectDocument, name, fields[name]); err == nil {
			filters = append(filters, f)
			continue
		}
		if id, ok := c.codec.Mapper.ToCMISAny(name); ok {
			filters = append(filters, Eq(id, fields[name]))
		}
	}
	return c.QueryDocuments(ctx, filters...)
}
