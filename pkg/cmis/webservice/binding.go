// Package webservice implements the CMIS 1.0 webservice binding: SOAP
// envelopes with WS-Security, framed as MTOM.
package webservice

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"drccmis/pkg/cmis"
	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/resilience"
)

// Options configures the webservice binding.
type Options struct {
	// BaseURL is the webservice root, e.g. http://localhost:8082/alfresco/cmisws
	BaseURL  string
	User     string
	Password string
	// RepositoryID is validated against the repositories of the DMS. Empty
	// uses the first repository.
	RepositoryID string
	// TimeZone converts received datetimes. Defaults to UTC.
	TimeZone *time.Location
	// Boundary overrides DefaultBoundary.
	Boundary   string
	HTTPClient *http.Client
	Breaker    *resilience.Breaker
	Logger     log.Logger
	// Now is the clock of the WS-Security timestamp.
	Now func() time.Time
}

// Binding talks to the DMS through the webservice binding. The repository id
// is resolved on first use and kept for the lifetime of the binding.
type Binding struct {
	t          *transport
	loc        *time.Location
	configured string
	log        *log.Helper

	mu       sync.Mutex
	repoID   string
	repoInfo map[string]*cmis.RepositoryInfo
}

var _ cmis.Binding = (*Binding)(nil)

// New returns a webservice binding. Nothing is sent until the first call.
func New(opts Options) (*Binding, error) {
	if opts.BaseURL == "" {
		return nil, cmiserr.Errorf(cmiserr.ErrInvalidBinding, "webservice binding needs a base url")
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if opts.Boundary == "" {
		opts.Boundary = DefaultBoundary
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger
	}
	return &Binding{
		t:          newTransport(opts),
		loc:        opts.TimeZone,
		configured: opts.RepositoryID,
		log:        log.NewHelper(log.With(opts.Logger, "module", "cmis/webservice")),
		repoInfo:   make(map[string]*cmis.RepositoryInfo),
	}, nil
}

// Name implements cmis.Binding.
func (b *Binding) Name() string { return bindingName }

// NeedsURLShortening implements cmis.Binding. Webservice vendors cap property
// values at cmis.MaxURLLength characters.
func (b *Binding) NeedsURLShortening() bool { return true }

// RepositoryID resolves the repository all requests go to.
func (b *Binding) RepositoryID(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.repositoryIDLocked(ctx)
}

func (b *Binding) repositoryIDLocked(ctx context.Context) (string, error) {
	if b.repoID != "" {
		return b.repoID, nil
	}
	resp, err := b.t.call(ctx, newRequest(RepositoryService, "getRepositories", ""), b.loc)
	if err != nil {
		return "", err
	}
	ids := resp.repositoryIDs()
	switch {
	case b.configured != "" && !slices.Contains(ids, b.configured):
		return "", cmiserr.Errorf(cmiserr.ErrRepositoryNotFound, "repository %s does not exist, the DMS has %s", b.configured, strings.Join(ids, ", "))
	case b.configured != "":
		b.repoID = b.configured
	case len(ids) == 0:
		return "", cmiserr.Errorf(cmiserr.ErrRepositoryNotFound, "the DMS lists no repositories")
	default:
		b.repoID = ids[0]
	}
	b.log.WithContext(ctx).Infof("using repository %s", b.repoID)
	return b.repoID, nil
}

// RepositoryInfo implements cmis.Binding. The info is cached per repository.
func (b *Binding) RepositoryInfo(ctx context.Context) (*cmis.RepositoryInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	repoID, err := b.repositoryIDLocked(ctx)
	if err != nil {
		return nil, err
	}
	if info, ok := b.repoInfo[repoID]; ok {
		return info, nil
	}
	resp, err := b.t.call(ctx, newRequest(RepositoryService, "getRepositoryInfo", repoID), b.loc)
	if err != nil {
		return nil, err
	}
	info := resp.repositoryInfo()
	if info == nil {
		return nil, cmiserr.NewNoValidResponse(http.StatusOK, b.t.baseURL, "no repositoryInfo in response")
	}
	if info.ID == "" {
		info.ID = repoID
	}
	b.repoInfo[repoID] = info
	return info, nil
}

func (b *Binding) request(ctx context.Context, service, action string) (*request, error) {
	repoID, err := b.RepositoryID(ctx)
	if err != nil {
		return nil, err
	}
	return newRequest(service, action, repoID), nil
}

// Query implements cmis.Binding. Without a page size all pages are fetched.
func (b *Binding) Query(ctx context.Context, statement string, paging cmis.Paging) (*cmis.QueryResult, error) {
	result := &cmis.QueryResult{}
	skip := paging.SkipCount
	for {
		req, err := b.request(ctx, DiscoveryService, "query")
		if err != nil {
			return nil, err
		}
		req.Statement = statement
		req.MaxItems = paging.MaxItems
		req.SkipCount = skip

		resp, err := b.t.call(ctx, req, b.loc)
		if cmiserr.IsNoResults(err) {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		objects, err := resp.objects()
		if err != nil {
			return nil, cmiserr.NewNoValidResponse(http.StatusOK, b.t.baseURL, err.Error())
		}

		result.Objects = append(result.Objects, objects...)
		result.NumItems = resp.numItems()
		result.HasMoreItems = resp.hasMoreItems()
		if paging.MaxItems > 0 || !result.HasMoreItems || len(objects) == 0 {
			return result, nil
		}
		skip += len(objects)
	}
}

// GetObject implements cmis.Binding.
func (b *Binding) GetObject(ctx context.Context, objectID string) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "getObject")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	return b.single(ctx, req)
}

// CreateFolder implements cmis.Binding.
func (b *Binding) CreateFolder(ctx context.Context, parentID string, props cmis.Properties) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "createFolder")
	if err != nil {
		return nil, err
	}
	props = props.Clone()
	if !props.Has(cmis.PropObjectTypeID) {
		props[cmis.PropObjectTypeID] = cmis.Property{Type: cmis.TypeID, Value: "cmis:folder"}
	}
	req.FolderID = parentID
	req.withProperties(props)
	return b.refetch(ctx, req, "")
}

// CreateDocument implements cmis.Binding.
func (b *Binding) CreateDocument(ctx context.Context, folderID string, props cmis.Properties, content *cmis.ContentStream) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "createDocument")
	if err != nil {
		return nil, err
	}
	req.FolderID = folderID
	req.withProperties(props)
	if content != nil {
		req.withContent(*content, props.String(cmis.PropName))
	}
	return b.refetch(ctx, req, "")
}

// UpdateProperties implements cmis.Binding. The object type id is never sent.
func (b *Binding) UpdateProperties(ctx context.Context, objectID string, props cmis.Properties) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "updateProperties")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	req.withProperties(props, cmis.PropObjectTypeID)
	return b.refetch(ctx, req, objectID)
}

// SetContentStream implements cmis.Binding.
func (b *Binding) SetContentStream(ctx context.Context, objectID string, content cmis.ContentStream) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "setContentStream")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	req.withContent(content, "")
	return b.refetch(ctx, req, objectID)
}

// GetContentStream implements cmis.Binding.
func (b *Binding) GetContentStream(ctx context.Context, objectID string) ([]byte, error) {
	req, err := b.request(ctx, ObjectService, "getContentStream")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	resp, err := b.t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	return extractContent(resp.ContentType, resp.Body, b.t.baseURL+"/"+ObjectService, resp.Status)
}

// CheckOut returns the private working copy. Some vendors answer 500 after
// the checkout went through; the working copy is then looked up instead.
func (b *Binding) CheckOut(ctx context.Context, objectID string) (*cmis.Object, error) {
	req, err := b.request(ctx, VersioningService, "checkOut")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID

	obj, err := b.refetch(ctx, req, "")
	if err == nil || !cmiserr.IsRuntime(err) {
		return obj, err
	}

	versions, verr := b.GetAllVersions(ctx, objectID)
	if verr != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.IsPrivateWorkingCopy() {
			b.log.WithContext(ctx).Warnf("checkout of %s failed with %v, but %s is checked out", objectID, err, v.ID())
			return b.GetObject(ctx, v.ID())
		}
	}
	return nil, err
}

// CheckIn implements cmis.Binding.
func (b *Binding) CheckIn(ctx context.Context, pwcID, comment string, major bool) (*cmis.Object, error) {
	req, err := b.request(ctx, VersioningService, "checkIn")
	if err != nil {
		return nil, err
	}
	req.ObjectID = pwcID
	req.Major = boolPtr(major)
	req.CheckinComment = comment
	return b.refetch(ctx, req, "")
}

// CancelCheckOut implements cmis.Binding.
func (b *Binding) CancelCheckOut(ctx context.Context, pwcID string) error {
	req, err := b.request(ctx, VersioningService, "cancelCheckOut")
	if err != nil {
		return err
	}
	req.ObjectID = pwcID
	_, err = b.t.call(ctx, req, b.loc)
	return err
}

// GetAllVersions implements cmis.Binding. The DMS expects the version series,
// so the version suffix is stripped from objectID.
func (b *Binding) GetAllVersions(ctx context.Context, objectID string) ([]*cmis.Object, error) {
	req, err := b.request(ctx, VersioningService, "getAllVersions")
	if err != nil {
		return nil, err
	}
	req.ObjectID = cmis.StripVersion(objectID)
	return b.list(ctx, req)
}

// GetObjectParents implements cmis.Binding.
func (b *Binding) GetObjectParents(ctx context.Context, objectID string) ([]*cmis.Object, error) {
	req, err := b.request(ctx, NavigationService, "getObjectParents")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	return b.list(ctx, req)
}

// MoveObject implements cmis.Binding.
func (b *Binding) MoveObject(ctx context.Context, objectID, sourceFolderID, targetFolderID string) (*cmis.Object, error) {
	req, err := b.request(ctx, ObjectService, "moveObject")
	if err != nil {
		return nil, err
	}
	req.ObjectID = objectID
	req.SourceFolderID = sourceFolderID
	req.TargetFolderID = targetFolderID
	return b.refetch(ctx, req, objectID)
}

// DeleteObject deletes all versions of an object.
func (b *Binding) DeleteObject(ctx context.Context, objectID string) error {
	req, err := b.request(ctx, ObjectService, "deleteObject")
	if err != nil {
		return err
	}
	req.ObjectID = objectID
	req.AllVersions = boolPtr(true)
	_, err = b.t.call(ctx, req, b.loc)
	return err
}

// DeleteTree implements cmis.Binding. Deletion goes on past failing children.
func (b *Binding) DeleteTree(ctx context.Context, folderID string) error {
	req, err := b.request(ctx, ObjectService, "deleteTree")
	if err != nil {
		return err
	}
	req.FolderID = folderID
	req.ContinueOnFailure = boolPtr(true)
	_, err = b.t.call(ctx, req, b.loc)
	return err
}

func (b *Binding) list(ctx context.Context, req *request) ([]*cmis.Object, error) {
	resp, err := b.t.call(ctx, req, b.loc)
	if err != nil {
		return nil, err
	}
	objects, err := resp.objects()
	if err != nil {
		return nil, cmiserr.NewNoValidResponse(http.StatusOK, b.t.baseURL+"/"+req.service, err.Error())
	}
	return objects, nil
}

func (b *Binding) single(ctx context.Context, req *request) (*cmis.Object, error) {
	objects, err := b.list(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, cmiserr.NewNoValidResponse(http.StatusOK, b.t.baseURL+"/"+req.service, "no object in "+req.action+" response")
	}
	return objects[0], nil
}

// refetch sends an action that answers with an object id and returns the
// fresh object. fallbackID is used when the answer carries no id.
func (b *Binding) refetch(ctx context.Context, req *request, fallbackID string) (*cmis.Object, error) {
	resp, err := b.t.call(ctx, req, b.loc)
	if err != nil {
		return nil, err
	}
	id := resp.objectID()
	if id == "" {
		id = fallbackID
	}
	if id == "" {
		return nil, cmiserr.NewNoValidResponse(http.StatusOK, b.t.baseURL+"/"+req.service, "no objectId in "+req.action+" response")
	}
	return b.GetObject(ctx, id)
}
