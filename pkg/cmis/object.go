package cmis

import "strings"

// Standard CMIS property ids.
const (
	PropObjectID                  = "cmis:objectId"
	PropObjectTypeID              = "cmis:objectTypeId"
	PropBaseTypeID                = "cmis:baseTypeId"
	PropName                      = "cmis:name"
	PropVersionLabel              = "cmis:versionLabel"
	PropVersionSeriesID           = "cmis:versionSeriesId"
	PropIsPrivateWorkingCopy      = "cmis:isPrivateWorkingCopy"
	PropIsVersionSeriesCheckedOut = "cmis:isVersionSeriesCheckedOut"
	PropVersionSeriesCheckedOutID = "cmis:versionSeriesCheckedOutId"
	PropIsLatestVersion           = "cmis:isLatestVersion"
	PropCreationDate              = "cmis:creationDate"
	PropLastModificationDate      = "cmis:lastModificationDate"
	PropContentStreamLength       = "cmis:contentStreamLength"
	PropContentStreamMimeType     = "cmis:contentStreamMimeType"
	PropContentStreamFileName     = "cmis:contentStreamFileName"
	PropParentID                  = "cmis:parentId"
)

// PWCLabel is the version label of a private working copy.
const PWCLabel = "pwc"

// Object is a CMIS object as returned by the DMS: a property bag that is only
// ever replaced as a whole.
type Object struct {
	Properties Properties
}

// NewObject wraps a property bag.
func NewObject(props Properties) *Object {
	if props == nil {
		props = Properties{}
	}
	return &Object{Properties: props}
}

func (o *Object) ID() string           { return o.Properties.String(PropObjectID) }
func (o *Object) ObjectTypeID() string { return o.Properties.String(PropObjectTypeID) }
func (o *Object) BaseTypeID() string   { return o.Properties.String(PropBaseTypeID) }
func (o *Object) Name() string         { return o.Properties.String(PropName) }
func (o *Object) VersionLabel() string { return o.Properties.String(PropVersionLabel) }

// VersionSeriesID is the id shared by every version of a document.
func (o *Object) VersionSeriesID() string { return o.Properties.String(PropVersionSeriesID) }

// IsPrivateWorkingCopy reports whether the object is a PWC. Vendors that do not
// send the flag are recognised by their version label.
func (o *Object) IsPrivateWorkingCopy() bool {
	if o.Properties.Has(PropIsPrivateWorkingCopy) {
		return o.Properties.Bool(PropIsPrivateWorkingCopy)
	}
	return strings.EqualFold(o.VersionLabel(), PWCLabel)
}

func (o *Object) IsVersionSeriesCheckedOut() bool {
	return o.Properties.Bool(PropIsVersionSeriesCheckedOut)
}

func (o *Object) VersionSeriesCheckedOutID() string {
	return o.Properties.String(PropVersionSeriesCheckedOutID)
}

// StripVersion removes the ";1.0" style suffix some vendors add to object ids.
func StripVersion(objectID string) string {
	if i := strings.Index(objectID, ";"); i >= 0 {
		return objectID[:i]
	}
	return objectID
}

// StripTypePrefix drops the Alfresco "F:"/"D:" prefix of an object type id,
// which queries do not accept.
func StripTypePrefix(objectTypeID string) string {
	parts := strings.Split(objectTypeID, ":")
	if len(parts) > 2 {
		return strings.Join(parts[1:], ":")
	}
	return objectTypeID
}
