package cmis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	cmiserr "drccmis/pkg/errors"
)

// Default folder paths, used when none are configured.
const (
	DefaultZaakFolderPath  = "/DRC/{{ zaaktype }}/{{ zaak }}/"
	DefaultOtherFolderPath = "/DRC/{{ year }}/{{ month }}/{{ day }}/"
)

// DefaultMimeType is sent when the file name does not tell the content type.
const DefaultMimeType = "application/binary"

// Cache stores serialized documents by uuid. GetBytes returns nil without an
// error on a miss. pkg/cache provides a Redis and an in-memory implementation.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Client.
type Options struct {
	Logger log.Logger
	// Mapper defaults to DefaultMapper.
	Mapper *Mapper
	// URLMappings are applied when the binding needs URL shortening.
	URLMappings []URLMapping
	// Cache enables the related-document cache when set.
	Cache    Cache
	CacheTTL time.Duration
	// TimeZone is used for the date folders. Defaults to UTC.
	TimeZone *time.Location
	// BaseFolder is the folder under the root folder that BaseFolder returns.
	BaseFolder      string
	ZaakFolderPath  string
	OtherFolderPath string
	// VersionPolicy overrides DefaultVersionPolicy.
	VersionPolicy *VersionPolicy
	// Now is the clock of the date folders.
	Now func() time.Time
}

// Client implements the DRC document operations on top of a Binding. It is safe
// for concurrent use.
type Client struct {
	binding  Binding
	codec    Codec
	cache    Cache
	cacheTTL time.Duration
	log      *log.Helper

	loc            *time.Location
	now            func() time.Time
	baseFolderName string
	zaakPath       []PathElement
	otherPath      []PathElement
	zaakPathRaw    string
	otherPathRaw   string
	policy         VersionPolicy

	mu       sync.Mutex
	repoInfo *RepositoryInfo
}

// NewClient validates the options and returns a client. Nothing is sent to the
// DMS until the first operation.
func NewClient(binding Binding, opts Options) (*Client, error) {
	if binding == nil {
		return nil, cmiserr.Errorf(cmiserr.ErrInvalidBinding, "no binding given")
	}
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger
	}
	if opts.Mapper == nil {
		opts.Mapper = DefaultMapper()
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ZaakFolderPath == "" {
		opts.ZaakFolderPath = DefaultZaakFolderPath
	}
	if opts.OtherFolderPath == "" {
		opts.OtherFolderPath = DefaultOtherFolderPath
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	if err := ValidateZaakFolderPath(opts.ZaakFolderPath); err != nil {
		return nil, fmt.Errorf("zaak folder path: %w", err)
	}
	if err := ValidateOtherFolderPath(opts.OtherFolderPath); err != nil {
		return nil, fmt.Errorf("other folder path: %w", err)
	}
	zaakPath, _ := ParseFolderPath(opts.ZaakFolderPath)
	otherPath, _ := ParseFolderPath(opts.OtherFolderPath)

	codec := Codec{Mapper: opts.Mapper}
	if binding.NeedsURLShortening() && len(opts.URLMappings) > 0 {
		codec.URLs = NewURLMapper(opts.URLMappings)
	}

	policy := DefaultVersionPolicy()
	if opts.VersionPolicy != nil {
		policy = opts.VersionPolicy.withDefaults()
	}

	return &Client{
		binding:        binding,
		codec:          codec,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		log:            log.NewHelper(log.With(opts.Logger, "module", "cmis/client", "binding", binding.Name())),
		loc:            opts.TimeZone,
		now:            opts.Now,
		baseFolderName: opts.BaseFolder,
		zaakPath:       zaakPath,
		otherPath:      otherPath,
		zaakPathRaw:    opts.ZaakFolderPath,
		otherPathRaw:   opts.OtherFolderPath,
		policy:         policy,
	}, nil
}

// Binding returns the binding the client talks through.
func (c *Client) Binding() Binding { return c.binding }

// Codec returns the codec used to build and decode property bags.
func (c *Client) Codec() Codec { return c.codec }

// RepositoryInfo returns the repository info, fetched once per client.
func (c *Client) RepositoryInfo(ctx context.Context) (*RepositoryInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repoInfo != nil {
		return c.repoInfo, nil
	}
	info, err := c.binding.RepositoryInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get repository info: %w", err)
	}
	c.repoInfo = info
	return info, nil
}

// RootFolderID returns the object id of the repository root folder.
func (c *Client) RootFolderID(ctx context.Context) (string, error) {
	info, err := c.RepositoryInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.RootFolderID, nil
}

// Vendor returns the DMS vendor name.
func (c *Client) Vendor(ctx context.Context) (string, error) {
	info, err := c.RepositoryInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.VendorName, nil
}

// ObjectTypeIDPrefix returns the prefix Alfresco requires on the object type id
// of custom types in create requests: "F:" for folders, "D:" for documents.
func (c *Client) ObjectTypeIDPrefix(ctx context.Context, t ObjectType) (string, error) {
	vendor, err := c.Vendor(ctx)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(vendor, "alfresco") {
		return "", nil
	}
	switch t {
	case ObjectZaakTypeFolder, ObjectZaakFolder, ObjectZaakType, ObjectZaak:
		return "F:", nil
	case ObjectDocument, ObjectOIO, ObjectGebruiksrechten:
		return "D:", nil
	}
	return "", nil
}

func (c *Client) objectTypeID(ctx context.Context, t ObjectType) (Property, error) {
	prefix, err := c.ObjectTypeIDPrefix(ctx, t)
	if err != nil {
		return Property{}, err
	}
	return Property{Type: TypeID, Value: prefix + Table(t)}, nil
}

// VersionPolicy returns the policy checkins are done with.
func (c *Client) VersionPolicy() VersionPolicy { return c.policy }

// Query runs "SELECT * FROM <table of t> WHERE <filters>" and returns the
// raw objects.
func (c *Client) Query(ctx context.Context, t ObjectType, filters ...Filter) ([]*Object, error) {
	statement := Select(Table(t), filters...)
	c.log.WithContext(ctx).Debugf("query: %s", statement)

	result, err := c.binding.Query(ctx, statement, Paging{})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t, err)
	}
	return result.Objects, nil
}

// Filter builds a filter on a domain field of t. URL values are shortened the
// same way they are when written.
func (c *Client) Filter(t ObjectType, field string, value interface{}) (Filter, error) {
	return c.codec.Filter(t, field, value)
}

func (c *Client) filter(t ObjectType, field string, value interface{}) (Filter, error) {
	f, err := c.codec.Filter(t, field, value)
	if err != nil {
		return Filter{}, fmt.Errorf("filter on %s.%s: %w", t, field, err)
	}
	return f, nil
}

func (c *Client) prop(t ObjectType, field string) string {
	return c.codec.Mapper.MustCMIS(field, t)
}

const randomAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString returns an uppercase alphanumeric suffix that makes cmis:name
// values unique within a folder.
func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = randomAlphabet[rand.IntN(len(randomAlphabet))]
	}
	return string(b)
}

// GuessMimeType returns the content type for a file name, or DefaultMimeType.
func GuessMimeType(fileName string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return DefaultMimeType
}

// UUIDFromURL returns the last path segment of a resource URL.
func UUIDFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
