package config

import (
	"time"

	"drccmis/pkg/cmis"
)

// Bindings selectable in cmis.binding.
const (
	BindingBrowser    = "browser"
	BindingWebservice = "webservice"
)

// Config is the complete configuration of the DRC CMIS client.
type Config struct {
	Service  ServiceConfig  `mapstructure:"service" yaml:"service"`
	CMIS     CMISConfig     `mapstructure:"cmis" yaml:"cmis"`
	Mapper   MapperConfig   `mapstructure:"mapper" yaml:"mapper"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Breaker  BreakerConfig  `mapstructure:"breaker" yaml:"breaker"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// ServiceConfig 服务信息, added to every log line and span.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Version     string `mapstructure:"version" yaml:"version"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// CMISConfig 连接 DMS 的配置
type CMISConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	Binding      string `mapstructure:"binding" yaml:"binding"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password"`
	RepositoryID string `mapstructure:"repository_id" yaml:"repository_id"`
	// TimeZone is an IANA name such as Europe/Amsterdam.
	TimeZone        string            `mapstructure:"time_zone" yaml:"time_zone"`
	BaseFolder      string            `mapstructure:"base_folder" yaml:"base_folder"`
	ZaakFolderPath  string            `mapstructure:"zaak_folder_path" yaml:"zaak_folder_path"`
	OtherFolderPath string            `mapstructure:"other_folder_path" yaml:"other_folder_path"`
	URLMappings     []cmis.URLMapping `mapstructure:"url_mappings" yaml:"url_mappings"`
	MajorCheckin    bool              `mapstructure:"major_checkin" yaml:"major_checkin"`
	CheckinComment  string            `mapstructure:"checkin_comment" yaml:"checkin_comment"`
	Timeout         time.Duration     `mapstructure:"timeout" yaml:"timeout"`
}

// Location resolves TimeZone. An empty zone is UTC.
func (c CMISConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// MapperConfig 属性映射文件. An empty file uses the built-in mapping.
type MapperConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// CacheConfig 文档缓存配置
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxSize       int64         `mapstructure:"max_size" yaml:"max_size"`
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	FailureRatio float64       `mapstructure:"failure_ratio" yaml:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests" yaml:"min_requests"`
	MaxRequests  uint32        `mapstructure:"max_requests" yaml:"max_requests"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DatabaseConfig 配置存储. An empty source leaves the database unused.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Source string `mapstructure:"source" yaml:"source"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string  `mapstructure:"endpoint" yaml:"endpoint"`
	Protocol     string  `mapstructure:"protocol" yaml:"protocol"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}
