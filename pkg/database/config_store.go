package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"drccmis/pkg/cmis"
	"drccmis/pkg/config"
)

// ErrNoConfig is returned by Load before any configuration was saved.
var ErrNoConfig = errors.New("no CMIS configuration stored")

// singletonID is the primary key of the only configuration row.
const singletonID = 1

// CMISConfigModel is the stored connection configuration.
type CMISConfigModel struct {
	ID              uint              `gorm:"primaryKey"`
	ClientURL       string            `gorm:"column:client_url;size:200;not null"`
	Binding         string            `gorm:"column:binding;size:200;not null"`
	ClientUser      string            `gorm:"column:client_user;size:200;not null"`
	ClientPassword  string            `gorm:"column:client_password;size:200;not null"`
	ZaakFolderPath  string            `gorm:"column:zaak_folder_path;size:500"`
	OtherFolderPath string            `gorm:"column:other_folder_path;size:500"`
	MainRepoID      string            `gorm:"column:main_repo_id;size:200"`
	TimeZone        string            `gorm:"column:time_zone;size:200"`
	BaseFolder      string            `gorm:"column:base_folder;size:200"`
	MajorCheckin    bool              `gorm:"column:major_checkin"`
	URLMappings     []URLMappingModel `gorm:"foreignKey:ConfigID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 表名
func (CMISConfigModel) TableName() string {
	return "cmis_config"
}

// Validate checks the folder path templates and the binding.
func (m *CMISConfigModel) Validate() error {
	if m.Binding != config.BindingBrowser && m.Binding != config.BindingWebservice {
		return fmt.Errorf("invalid binding %q", m.Binding)
	}
	if m.ZaakFolderPath != "" {
		if err := cmis.ValidateZaakFolderPath(m.ZaakFolderPath); err != nil {
			return fmt.Errorf("zaak folder path: %w", err)
		}
	}
	if m.OtherFolderPath != "" {
		if err := cmis.ValidateOtherFolderPath(m.OtherFolderPath); err != nil {
			return fmt.Errorf("other folder path: %w", err)
		}
	}
	if m.TimeZone != "" {
		if _, err := time.LoadLocation(m.TimeZone); err != nil {
			return fmt.Errorf("time zone: %w", err)
		}
	}
	return nil
}

// ToClientConfig converts the stored row into the cmis section of the
// configuration, keeping base for everything the row does not store.
func (m *CMISConfigModel) ToClientConfig(base config.CMISConfig) config.CMISConfig {
	out := base
	out.URL = m.ClientURL
	out.Binding = m.Binding
	out.User = m.ClientUser
	out.Password = m.ClientPassword
	out.RepositoryID = m.MainRepoID
	out.BaseFolder = m.BaseFolder
	out.MajorCheckin = m.MajorCheckin
	if m.ZaakFolderPath != "" {
		out.ZaakFolderPath = m.ZaakFolderPath
	}
	if m.OtherFolderPath != "" {
		out.OtherFolderPath = m.OtherFolderPath
	}
	if m.TimeZone != "" {
		out.TimeZone = m.TimeZone
	}
	out.URLMappings = make([]cmis.URLMapping, 0, len(m.URLMappings))
	for _, um := range m.URLMappings {
		out.URLMappings = append(out.URLMappings, cmis.URLMapping{
			LongPattern:  um.LongPattern,
			ShortPattern: um.ShortPattern,
		})
	}
	return out
}

// URLMappingModel maps a long URL prefix to a short one.
type URLMappingModel struct {
	ID           uint   `gorm:"primaryKey"`
	ConfigID     uint   `gorm:"column:config_id;index;not null"`
	LongPattern  string `gorm:"column:long_pattern;size:1000;not null"`
	ShortPattern string `gorm:"column:short_pattern;size:1000;not null"`
}

// TableName 表名
func (URLMappingModel) TableName() string {
	return "cmis_urlmapping"
}

// ConfigStore persists the CMIS configuration.
type ConfigStore struct {
	db  *gorm.DB
	log *log.Helper
}

// NewConfigStore 创建配置存储
func NewConfigStore(db *gorm.DB, logger log.Logger) *ConfigStore {
	return &ConfigStore{
		db:  db,
		log: log.NewHelper(log.With(logger, "module", "database/config_store")),
	}
}

// AutoMigrate creates or updates the tables.
func (s *ConfigStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&CMISConfigModel{}, &URLMappingModel{}); err != nil {
		return fmt.Errorf("migrate cmis config: %w", err)
	}
	return nil
}

// Load returns the stored configuration with its URL mappings.
func (s *ConfigStore) Load(ctx context.Context) (*CMISConfigModel, error) {
	var m CMISConfigModel
	err := s.db.WithContext(ctx).Preload("URLMappings").First(&m, singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("load cmis config: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save replaces the stored configuration and its URL mappings.
func (s *ConfigStore) Save(ctx context.Context, m *CMISConfigModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.ID = singletonID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("URLMappings").Save(m).Error; err != nil {
			return err
		}
		if err := tx.Where("config_id = ?", m.ID).Delete(&URLMappingModel{}).Error; err != nil {
			return err
		}
		for i := range m.URLMappings {
			m.URLMappings[i].ID = 0
			m.URLMappings[i].ConfigID = m.ID
		}
		if len(m.URLMappings) > 0 {
			return tx.Create(&m.URLMappings).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save cmis config: %w", err)
	}
	s.log.WithContext(ctx).Infof("saved cmis config: binding=%s url=%s mappings=%d", m.Binding, m.ClientURL, len(m.URLMappings))
	return nil
}
