package clients

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"drccmis/pkg/cache"
	"drccmis/pkg/cmis"
	"drccmis/pkg/cmis/browser"
	"drccmis/pkg/cmis/webservice"
	"drccmis/pkg/config"
	cmiserr "drccmis/pkg/errors"
	"drccmis/pkg/resilience"
)

// Deps are the collaborators that are not built from the configuration.
type Deps struct {
	Logger log.Logger
	// HTTPClient defaults to a client with the configured timeout.
	HTTPClient *http.Client
	// Cache enables the related-document cache. Nil disables it.
	Cache cache.Cache
}

// NewBinding builds the binding selected in cfg.Binding.
func NewBinding(cfg config.CMISConfig, breakerCfg config.BreakerConfig, deps Deps) (cmis.Binding, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", cfg.TimeZone, err)
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := newBreaker(cfg.Binding, breakerCfg)

	switch cfg.Binding {
	case config.BindingBrowser:
		b, err := browser.New(browser.Options{
			BaseURL:    cfg.URL,
			User:       cfg.User,
			Password:   cfg.Password,
			TimeZone:   loc,
			HTTPClient: httpClient,
			Breaker:    breaker,
			Logger:     deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BindingWebservice:
		b, err := webservice.New(webservice.Options{
			BaseURL:      cfg.URL,
			User:         cfg.User,
			Password:     cfg.Password,
			RepositoryID: cfg.RepositoryID,
			TimeZone:     loc,
			HTTPClient:   httpClient,
			Breaker:      breaker,
			Logger:       deps.Logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, cmiserr.Errorf(cmiserr.ErrInvalidBinding, "unknown CMIS binding %q", cfg.Binding)
	}
}

func newBreaker(name string, c config.BreakerConfig) *resilience.Breaker {
	if !c.Enabled {
		return nil
	}
	return resilience.NewBreaker(resilience.Config{
		Name:         name,
		FailureRatio: c.FailureRatio,
		MinRequests:  c.MinRequests,
		MaxRequests:  c.MaxRequests,
		Interval:     c.Interval,
		Timeout:      c.Timeout,
	})
}

// NewCMISClient builds a client from the configuration. Folder paths and the
// mapping file are validated here, so a bad configuration fails at startup.
func NewCMISClient(ctx context.Context, cfg *config.Config, deps Deps) (*cmis.Client, error) {
	if deps.Logger == nil {
		deps.Logger = log.DefaultLogger
	}

	mapper := cmis.DefaultMapper()
	if cfg.Mapper.File != "" {
		m, err := cmis.LoadMapper(cfg.Mapper.File)
		if err != nil {
			return nil, fmt.Errorf("mapper %s: %w", cfg.Mapper.File, err)
		}
		mapper = m
	}

	binding, err := NewBinding(cfg.CMIS, cfg.Breaker, deps)
	if err != nil {
		return nil, err
	}
	loc, _ := cfg.CMIS.Location()

	opts := cmis.Options{
		Logger:          deps.Logger,
		Mapper:          mapper,
		URLMappings:     cfg.CMIS.URLMappings,
		CacheTTL:        cfg.Cache.TTL,
		TimeZone:        loc,
		BaseFolder:      cfg.CMIS.BaseFolder,
		ZaakFolderPath:  cfg.CMIS.ZaakFolderPath,
		OtherFolderPath: cfg.CMIS.OtherFolderPath,
		VersionPolicy: &cmis.VersionPolicy{
			MajorCheckin:   cfg.CMIS.MajorCheckin,
			CheckinComment: cfg.CMIS.CheckinComment,
		},
	}
	if deps.Cache != nil {
		opts.Cache = deps.Cache
	}

	client, err := cmis.NewClient(binding, opts)
	if err != nil {
		return nil, err
	}
	log.NewHelper(deps.Logger).WithContext(ctx).Infof("cmis client ready: binding=%s url=%s", binding.Name(), cfg.CMIS.URL)
	return client, nil
}

// Manager 客户端管理器. It builds the CMIS client on first use and owns the
// resources the client depends on.
type Manager struct {
	cfg    *config.Config
	logger log.Logger

	client *cmis.Client
	cache  cache.Cache

	mu sync.RWMutex
}

// NewManager 创建客户端管理器
func NewManager(cfg *config.Config, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Manager{cfg: cfg, logger: logger}
}

// CMIS 获取 CMIS 客户端
func (m *Manager) CMIS(ctx context.Context) (*cmis.Client, error) {
	m.mu.RLock()
	if m.client != nil {
		m.mu.RUnlock()
		return m.client, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	c, err := cache.New(cache.CacheOptions{
		Backend:       m.cfg.Cache.Backend,
		RedisAddr:     m.cfg.Cache.RedisAddr,
		RedisPassword: m.cfg.Cache.RedisPassword,
		RedisDB:       m.cfg.Cache.RedisDB,
		DefaultTTL:    m.cfg.Cache.TTL,
		KeyPrefix:     m.cfg.Cache.Prefix,
		MaxSize:       m.cfg.Cache.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	client, err := NewCMISClient(ctx, m.cfg, Deps{Logger: m.logger, Cache: c})
	if err != nil {
		if c != nil {
			_ = c.Close()
		}
		return nil, err
	}

	m.client = client
	m.cache = c
	return client, nil
}

// Cache returns the cache of the client, nil when caching is off or the
// client was not built yet.
func (m *Manager) Cache() cache.Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache
}

// Close 关闭所有资源
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.cache != nil {
		err = m.cache.Close()
		m.cache = nil
	}
	m.client = nil
	return err
}
