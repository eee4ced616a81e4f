package config

import (
	"fmt"
	"strings"
	"time"

	"drccmis/pkg/cmis"
)

// Source is the view of a loaded configuration the validator reads.
type Source interface {
	GetString(key string) string
	IsSet(key string) bool
}

// Validator 配置验证器
type Validator struct {
	rules []ValidationRule
}

// ValidationRule 验证规则
type ValidationRule struct {
	Key       string
	Required  bool
	Validator func(value string) error
}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{
		rules: make([]ValidationRule, 0),
	}
}

// DefaultValidator checks the keys the client cannot start without.
func DefaultValidator() *Validator {
	v := NewValidator()
	v.AddRule("cmis.url", true, ValidateURL)
	v.AddRule("cmis.binding", true, ValidateOneOf(BindingBrowser, BindingWebservice))
	v.AddRule("cmis.time_zone", false, ValidateTimeZone)
	v.AddRule("cmis.zaak_folder_path", false, cmis.ValidateZaakFolderPath)
	v.AddRule("cmis.other_folder_path", false, cmis.ValidateOtherFolderPath)
	v.AddRule("cache.backend", false, ValidateOneOf("none", "memory", "redis"))
	v.AddRule("tracing.protocol", false, ValidateOneOf("grpc", "http"))
	v.AddRule("database.driver", false, ValidateOneOf("postgres"))
	return v
}

// AddRule 添加验证规则
func (v *Validator) AddRule(key string, required bool, validator func(value string) error) {
	v.rules = append(v.rules, ValidationRule{
		Key:       key,
		Required:  required,
		Validator: validator,
	})
}

// Validate 验证配置
func (v *Validator) Validate(config Source) error {
	for _, rule := range v.rules {
		if rule.Required && (!config.IsSet(rule.Key) || strings.TrimSpace(config.GetString(rule.Key)) == "") {
			return fmt.Errorf("required config key '%s' is not set", rule.Key)
		}

		if config.IsSet(rule.Key) && rule.Validator != nil {
			if err := rule.Validator(config.GetString(rule.Key)); err != nil {
				return fmt.Errorf("validation failed for key '%s': %w", rule.Key, err)
			}
		}
	}
	return nil
}

// ValidateURL 验证 URL 格式
func ValidateURL(value string) error {
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		return fmt.Errorf("invalid URL format: %s", value)
	}
	return nil
}

// ValidateOneOf accepts one of the allowed values.
func ValidateOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", value, strings.Join(allowed, ", "))
	}
}

// ValidateTimeZone accepts IANA zone names.
func ValidateTimeZone(value string) error {
	if value == "" {
		return nil
	}
	_, err := time.LoadLocation(value)
	return err
}
