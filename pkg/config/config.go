package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"drccmis/pkg/cmis"
)

// EnvPrefix 环境变量前缀: cmis.url is overridden by DRC_CMIS_CMIS_URL.
const EnvPrefix = "DRC_CMIS"

// Manager 配置管理器
type Manager struct {
	viper       *viper.Viper
	localConfig string
}

// NewManager 创建配置管理器. Defaults are registered up front so every key can
// be overridden from the environment, even when the file leaves it out.
func NewManager() *Manager {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return &Manager{viper: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "drc-cmis")
	v.SetDefault("service.version", "1.0.0")
	v.SetDefault("service.environment", "development")

	v.SetDefault("cmis.url", "http://localhost:8082/alfresco/api/-default-/public/cmis/versions/1.1/browser")
	v.SetDefault("cmis.binding", BindingBrowser)
	v.SetDefault("cmis.user", "admin")
	v.SetDefault("cmis.password", "admin")
	v.SetDefault("cmis.repository_id", "")
	v.SetDefault("cmis.time_zone", "UTC")
	v.SetDefault("cmis.base_folder", "")
	v.SetDefault("cmis.zaak_folder_path", cmis.DefaultZaakFolderPath)
	v.SetDefault("cmis.other_folder_path", cmis.DefaultOtherFolderPath)
	v.SetDefault("cmis.url_mappings", []map[string]string{})
	v.SetDefault("cmis.major_checkin", true)
	v.SetDefault("cmis.checkin_comment", "")
	v.SetDefault("cmis.timeout", 30*time.Second)

	v.SetDefault("mapper.file", "")

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "drc-cmis")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 1000)

	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("breaker.min_requests", 5)
	v.SetDefault("breaker.max_requests", 3)
	v.SetDefault("breaker.interval", 10*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.source", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.protocol", "grpc")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("log.level", "info")
}

// LoadConfig 从本地文件加载配置. An empty path only uses defaults and the
// environment.
func (m *Manager) LoadConfig(configPath string) error {
	if configPath == "" {
		return nil
	}
	m.localConfig = configPath
	m.viper.SetConfigFile(configPath)

	if err := m.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read local config failed: %w", err)
	}
	return nil
}

// Load reads configPath and returns the validated configuration.
func Load(configPath string) (*Config, error) {
	m := NewManager()
	if err := m.LoadConfig(configPath); err != nil {
		return nil, err
	}
	return m.Config()
}

// Config 解析并验证配置
func (m *Manager) Config() (*Config, error) {
	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	if err := DefaultValidator().Validate(m); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Unmarshal 解析配置到结构体
func (m *Manager) Unmarshal(rawVal interface{}) error {
	return m.viper.Unmarshal(rawVal)
}

// UnmarshalKey 解析指定key的配置到结构体
func (m *Manager) UnmarshalKey(key string, rawVal interface{}) error {
	return m.viper.UnmarshalKey(key, rawVal)
}

// GetString 获取字符串配置
func (m *Manager) GetString(key string) string {
	return m.viper.GetString(key)
}

// GetInt 获取整数配置
func (m *Manager) GetInt(key string) int {
	return m.viper.GetInt(key)
}

// GetBool 获取布尔配置
func (m *Manager) GetBool(key string) bool {
	return m.viper.GetBool(key)
}

// GetDuration 获取时间间隔配置
func (m *Manager) GetDuration(key string) time.Duration {
	return m.viper.GetDuration(key)
}

// IsSet 检查key是否被设置
func (m *Manager) IsSet(key string) bool {
	return m.viper.IsSet(key)
}

// ConfigFile returns the file the configuration was read from.
func (m *Manager) ConfigFile() string {
	return m.localConfig
}

// Viper 获取底层viper实例
func (m *Manager) Viper() *viper.Viper {
	return m.viper
}
