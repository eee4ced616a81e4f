package cmis

import "context"

// Binding is one wire binding of the CMIS standard. The browser binding and the
// webservice binding implement it; the Client only talks to a Binding.
//
// Object ids are passed as the DMS returned them. Operations that return an
// object return the fresh state from the DMS, never a modified copy of the
// input.
type Binding interface {
	// Name identifies the binding in logs and metrics.
	Name() string

	RepositoryInfo(ctx context.Context) (*RepositoryInfo, error)

	Query(ctx context.Context, statement string, paging Paging) (*QueryResult, error)
	GetObject(ctx context.Context, objectID string) (*Object, error)

	CreateFolder(ctx context.Context, parentID string, props Properties) (*Object, error)
	// CreateDocument creates a document in folderID. A nil content creates the
	// document without a content stream.
	CreateDocument(ctx context.Context, folderID string, props Properties, content *ContentStream) (*Object, error)
	UpdateProperties(ctx context.Context, objectID string, props Properties) (*Object, error)
	SetContentStream(ctx context.Context, objectID string, content ContentStream) (*Object, error)
	GetContentStream(ctx context.Context, objectID string) ([]byte, error)

	// CheckOut returns the private working copy.
	CheckOut(ctx context.Context, objectID string) (*Object, error)
	CheckIn(ctx context.Context, pwcID, comment string, major bool) (*Object, error)
	CancelCheckOut(ctx context.Context, pwcID string) error
	GetAllVersions(ctx context.Context, objectID string) ([]*Object, error)

	GetObjectParents(ctx context.Context, objectID string) ([]*Object, error)
	MoveObject(ctx context.Context, objectID, sourceFolderID, targetFolderID string) (*Object, error)
	// DeleteObject removes the object with all its versions.
	DeleteObject(ctx context.Context, objectID string) error
	DeleteTree(ctx context.Context, folderID string) error

	// NeedsURLShortening reports a binding whose vendors cap property values at
	// MaxURLLength characters.
	NeedsURLShortening() bool
}

// ContentStream is the content of a document.
type ContentStream struct {
	Data     []byte
	FileName string
	MimeType string
}

// Paging limits a query. Zero values leave the DMS defaults in place.
type Paging struct {
	MaxItems  int
	SkipCount int
}

// QueryResult is a single page of query results.
type QueryResult struct {
	Objects      []*Object
	NumItems     int
	HasMoreItems bool
}

// RepositoryInfo describes the repository the client works in.
type RepositoryInfo struct {
	ID                   string
	Name                 string
	Description          string
	VendorName           string
	ProductName          string
	ProductVersion       string
	RootFolderID         string
	CMISVersionSupported string
	// Capabilities holds the capability flags by name without the
	// "capability" prefix, e.g. "Multifiling" or "Changes".
	Capabilities map[string]string
}

// Capability returns a capability value, or "" when the DMS does not report it.
func (r *RepositoryInfo) Capability(name string) string {
	if r == nil || r.Capabilities == nil {
		return ""
	}
	return r.Capabilities[name]
}
