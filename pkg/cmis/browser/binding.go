// Package browser implements the CMIS 1.1 browser binding: form posts and GETs
// answered with JSON.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"drccmis/pkg/cmis"
	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/resilience"
)

// DefaultRepository is the key of the repository info the DMS lists first.
const DefaultRepository = "-default-"

// Options configures the browser binding.
type Options struct {
	// BaseURL is the browser binding root, e.g.
	// http://localhost:8082/alfresco/api/-default-/public/cmis/versions/1.1/browser
	BaseURL  string
	User     string
	Password string
	// TimeZone converts received datetimes. Defaults to UTC.
	TimeZone   *time.Location
	HTTPClient *http.Client
	Breaker    *resilience.Breaker
	Logger     log.Logger
}

// Binding talks to the DMS through the browser binding.
type Binding struct {
	baseURL   string
	rootURL   string
	transport *Transport
	dec       decoder
	log       *log.Helper
}

var _ cmis.Binding = (*Binding)(nil)

// New returns a browser binding. Nothing is sent until the first call.
func New(opts Options) (*Binding, error) {
	if opts.BaseURL == "" {
		return nil, cmiserr.Errorf(cmiserr.ErrInvalidBinding, "browser binding needs a base url")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, cmiserr.Wrap(cmiserr.ErrInvalidBinding, err, "invalid base url %q", opts.BaseURL)
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	return &Binding{
		baseURL:   base,
		rootURL:   base + "/root",
		transport: NewTransport(opts.HTTPClient, opts.User, opts.Password, opts.Breaker, opts.Logger),
		dec:       decoder{loc: opts.TimeZone},
		log:       log.NewHelper(log.With(opts.Logger, "module", "cmis/browser")),
	}, nil
}

// Name implements cmis.Binding.
func (b *Binding) Name() string { return bindingName }

// NeedsURLShortening implements cmis.Binding. Browser binding vendors accept
// long property values.
func (b *Binding) NeedsURLShortening() bool { return false }

// RepositoryInfo reads the default repository from the service document.
func (b *Binding) RepositoryInfo(ctx context.Context) (*cmis.RepositoryInfo, error) {
	resp, err := b.transport.Get(ctx, b.baseURL, nil)
	if err != nil {
		return nil, err
	}
	var repos map[string]jsonRepositoryInfo
	if err := b.decode(resp, b.baseURL, &repos); err != nil {
		return nil, err
	}
	repo, ok := repos[DefaultRepository]
	if !ok {
		return nil, cmiserr.Errorf(cmiserr.ErrRepositoryNotFound, "no %s repository at %s", DefaultRepository, b.baseURL)
	}
	info := repositoryInfo(repo)
	b.log.WithContext(ctx).Debugf("repository %s: %s %s", info.ID, info.VendorName, info.ProductVersion)
	return info, nil
}

// Query runs a CMIS-QL statement. Without a page size all pages are fetched.
func (b *Binding) Query(ctx context.Context, statement string, paging cmis.Paging) (*cmis.QueryResult, error) {
	result := &cmis.QueryResult{}
	skip := paging.SkipCount
	for {
		form := url.Values{
			"cmisaction": {"query"},
			"statement":  {statement},
		}
		if paging.MaxItems > 0 {
			form.Set("maxItems", strconv.Itoa(paging.MaxItems))
		}
		if skip > 0 {
			form.Set("skipCount", strconv.Itoa(skip))
		}

		resp, err := b.transport.Post(ctx, b.baseURL, form, nil)
		if err != nil {
			return nil, err
		}
		var page jsonQueryResult
		if err := b.decode(resp, b.baseURL, &page); err != nil {
			return nil, err
		}
		objects, err := b.dec.objects(page.Results)
		if err != nil {
			return nil, cmiserr.NewNoValidResponse(resp.Status, b.baseURL, err.Error())
		}

		result.Objects = append(result.Objects, objects...)
		result.NumItems = page.NumItems
		result.HasMoreItems = page.HasMoreItems
		if paging.MaxItems > 0 || !page.HasMoreItems || len(page.Results) == 0 {
			return result, nil
		}
		skip += len(page.Results)
	}
}

// GetObject fetches an object by id.
func (b *Binding) GetObject(ctx context.Context, objectID string) (*cmis.Object, error) {
	return b.getObject(ctx, url.Values{
		"objectId":     {objectID},
		"cmisselector": {"object"},
	})
}

// CreateFolder implements cmis.Binding.
func (b *Binding) CreateFolder(ctx context.Context, parentID string, props cmis.Properties) (*cmis.Object, error) {
	props = props.Clone()
	if !props.Has(cmis.PropObjectTypeID) {
		props[cmis.PropObjectTypeID] = cmis.Property{Type: cmis.TypeID, Value: "cmis:folder"}
	}
	form := url.Values{
		"objectId":   {parentID},
		"cmisaction": {"createFolder"},
	}
	setProperties(form, props)
	return b.postObject(ctx, form, nil)
}

// CreateDocument implements cmis.Binding.
func (b *Binding) CreateDocument(ctx context.Context, folderID string, props cmis.Properties, content *cmis.ContentStream) (*cmis.Object, error) {
	form := url.Values{
		"objectId":   {folderID},
		"cmisaction": {"createDocument"},
	}
	setProperties(form, props)

	var file *FilePart
	if content != nil {
		file = filePart(props.String(cmis.PropName), *content)
	}
	return b.postObject(ctx, form, file)
}

// UpdateProperties implements cmis.Binding. The object type id is never sent.
func (b *Binding) UpdateProperties(ctx context.Context, objectID string, props cmis.Properties) (*cmis.Object, error) {
	form := url.Values{
		"objectId":   {objectID},
		"cmisaction": {"update"},
	}
	setProperties(form, props, cmis.PropObjectTypeID)
	return b.postObject(ctx, form, nil)
}

// SetContentStream implements cmis.Binding.
func (b *Binding) SetContentStream(ctx context.Context, objectID string, content cmis.ContentStream) (*cmis.Object, error) {
	form := url.Values{
		"objectId":   {objectID},
		"cmisaction": {"setContent"},
	}
	return b.postObject(ctx, form, filePart(content.FileName, content))
}

// GetContentStream implements cmis.Binding.
func (b *Binding) GetContentStream(ctx context.Context, objectID string) ([]byte, error) {
	resp, err := b.transport.Get(ctx, b.rootURL, url.Values{
		"objectId":     {objectID},
		"cmisselector": {"content"},
	})
	if err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// CheckOut returns the private working copy.
func (b *Binding) CheckOut(ctx context.Context, objectID string) (*cmis.Object, error) {
	return b.postObject(ctx, url.Values{
		"objectId":   {objectID},
		"cmisaction": {"checkOut"},
	}, nil)
}

// CheckIn implements cmis.Binding.
func (b *Binding) CheckIn(ctx context.Context, pwcID, comment string, major bool) (*cmis.Object, error) {
	return b.postObject(ctx, url.Values{
		"objectId":       {pwcID},
		"cmisaction":     {"checkIn"},
		"checkinComment": {comment},
		"major":          {strconv.FormatBool(major)},
	}, nil)
}

// CancelCheckOut implements cmis.Binding.
func (b *Binding) CancelCheckOut(ctx context.Context, pwcID string) error {
	_, err := b.transport.Post(ctx, b.rootURL, url.Values{
		"objectId":   {pwcID},
		"cmisaction": {"cancelCheckOut"},
	}, nil)
	return err
}

// GetAllVersions implements cmis.Binding.
func (b *Binding) GetAllVersions(ctx context.Context, objectID string) ([]*cmis.Object, error) {
	resp, err := b.transport.Get(ctx, b.rootURL, url.Values{
		"objectId":     {objectID},
		"cmisselector": {"versions"},
	})
	if err != nil {
		return nil, err
	}
	var list []jsonObject
	if err := b.decode(resp, b.rootURL, &list); err != nil {
		return nil, err
	}
	objects, err := b.dec.objects(list)
	if err != nil {
		return nil, cmiserr.NewNoValidResponse(resp.Status, b.rootURL, err.Error())
	}
	return objects, nil
}

// GetObjectParents implements cmis.Binding.
func (b *Binding) GetObjectParents(ctx context.Context, objectID string) ([]*cmis.Object, error) {
	resp, err := b.transport.Get(ctx, b.rootURL, url.Values{
		"objectId":     {objectID},
		"cmisselector": {"parents"},
	})
	if err != nil {
		return nil, err
	}
	var parents []jsonParent
	if err := b.decode(resp, b.rootURL, &parents); err != nil {
		return nil, err
	}
	objects := make([]*cmis.Object, 0, len(parents))
	for _, p := range parents {
		obj, err := b.dec.object(p.Object)
		if err != nil {
			return nil, cmiserr.NewNoValidResponse(resp.Status, b.rootURL, err.Error())
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// MoveObject implements cmis.Binding.
func (b *Binding) MoveObject(ctx context.Context, objectID, sourceFolderID, targetFolderID string) (*cmis.Object, error) {
	return b.postObject(ctx, url.Values{
		"objectId":       {objectID},
		"cmisaction":     {"move"},
		"sourceFolderId": {sourceFolderID},
		"targetFolderId": {targetFolderID},
	}, nil)
}

// DeleteObject deletes all versions of an object.
func (b *Binding) DeleteObject(ctx context.Context, objectID string) error {
	_, err := b.transport.Post(ctx, b.rootURL, url.Values{
		"objectId":    {objectID},
		"cmisaction":  {"delete"},
		"allVersions": {"true"},
	}, nil)
	return err
}

// DeleteTree implements cmis.Binding.
func (b *Binding) DeleteTree(ctx context.Context, folderID string) error {
	_, err := b.transport.Post(ctx, b.rootURL, url.Values{
		"objectId":   {folderID},
		"cmisaction": {"deleteTree"},
	}, nil)
	return err
}

func (b *Binding) getObject(ctx context.Context, params url.Values) (*cmis.Object, error) {
	resp, err := b.transport.Get(ctx, b.rootURL, params)
	if err != nil {
		return nil, err
	}
	return b.responseObject(resp)
}

func (b *Binding) postObject(ctx context.Context, form url.Values, file *FilePart) (*cmis.Object, error) {
	resp, err := b.transport.Post(ctx, b.rootURL, form, file)
	if err != nil {
		return nil, err
	}
	return b.responseObject(resp)
}

func (b *Binding) responseObject(resp *Response) (*cmis.Object, error) {
	var o jsonObject
	if err := b.decode(resp, b.rootURL, &o); err != nil {
		return nil, err
	}
	obj, err := b.dec.object(o)
	if err != nil {
		return nil, cmiserr.NewNoValidResponse(resp.Status, b.rootURL, err.Error())
	}
	return obj, nil
}

func (b *Binding) decode(resp *Response, rawURL string, v interface{}) error {
	if isEmpty(resp) {
		return cmiserr.NewNoValidResponse(resp.Status, rawURL, "empty response")
	}
	if err := resp.JSON(v); err != nil {
		return cmiserr.NewNoValidResponse(resp.Status, rawURL, fmt.Sprintf("%s: %v", err, truncate(resp.Body)))
	}
	return nil
}

func filePart(name string, content cmis.ContentStream) *FilePart {
	fileName := content.FileName
	if fileName == "" {
		fileName = name
	}
	mimeType := content.MimeType
	if mimeType == "" {
		mimeType = cmis.GuessMimeType(fileName)
	}
	return &FilePart{
		FieldName: "content",
		FileName:  fileName,
		MimeType:  mimeType,
		Data:      content.Data,
	}
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
