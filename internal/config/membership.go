package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RateLimitRule is a token bucket definition for one operation.
type RateLimitRule struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

// MembershipConfig holds the tunables of the invitation and membership lifecycle.
type MembershipConfig struct {
	DefaultExpiryMinutes int                      `mapstructure:"defaultExpiryMinutes"`
	MinExpiryMinutes     int                      `mapstructure:"minExpiryMinutes"`
	MaxExpiryMinutes     int                      `mapstructure:"maxExpiryMinutes"`
	MaxLinkUses          int                      `mapstructure:"maxLinkUses"`
	TokenBytes           int                      `mapstructure:"tokenBytes"`
	RateLimits           map[string]RateLimitRule `mapstructure:"rateLimits"`
}

func DefaultMembershipConfig() MembershipConfig {
	return MembershipConfig{
		DefaultExpiryMinutes: 7 * 24 * 60,
		MinExpiryMinutes:     15,
		MaxExpiryMinutes:     30 * 24 * 60,
		MaxLinkUses:          1000,
		TokenBytes:           32,
		RateLimits: map[string]RateLimitRule{
			"default":       {Rate: 1, Burst: 20},
			"invite.create": {Rate: 0.5, Burst: 10},
			"link.create":   {Rate: 0.5, Burst: 10},
			"invite.accept": {Rate: 0.2, Burst: 5},
			"link.accept":   {Rate: 0.2, Burst: 5},
			"invite.page":   {Rate: 1, Burst: 30},
		},
	}
}

// DefaultExpiry returns the default invite lifetime.
func (c MembershipConfig) DefaultExpiry() time.Duration {
	return time.Duration(c.DefaultExpiryMinutes) * time.Minute
}

// ClampExpiry bounds a requested lifetime in minutes to the allowed window.
// A nil or non-positive request yields the default.
func (c MembershipConfig) ClampExpiry(minutes *int) time.Duration {
	if minutes == nil || *minutes <= 0 {
		return c.DefaultExpiry()
	}
	value := *minutes
	if value < c.MinExpiryMinutes {
		value = c.MinExpiryMinutes
	}
	if value > c.MaxExpiryMinutes {
		value = c.MaxExpiryMinutes
	}
	return time.Duration(value) * time.Minute
}

// RateLimitFor returns the rule for an operation, falling back to "default".
func (c MembershipConfig) RateLimitFor(operation string) RateLimitRule {
	if rule, ok := c.RateLimits[operation]; ok && rule.Rate > 0 && rule.Burst > 0 {
		return rule
	}
	if rule, ok := c.RateLimits["default"]; ok && rule.Rate > 0 && rule.Burst > 0 {
		return rule
	}
	return RateLimitRule{Rate: 1, Burst: 20}
}

type MembershipConfigHolder struct {
	current atomic.Value // holds MembershipConfig
}

// NewStaticMembershipConfigHolder wraps a fixed config, mostly for tests.
func NewStaticMembershipConfigHolder(cfg MembershipConfig) *MembershipConfigHolder {
	holder := &MembershipConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewMembershipConfigHolder(log *zap.Logger) (*MembershipConfigHolder, error) {
	// Operation names contain dots, so viper must not split keys on them.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))

	v.SetConfigName("membership")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/ascend")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ASCEND")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_", ".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMembershipConfig()
	v.SetDefault("membership::defaultExpiryMinutes", defaults.DefaultExpiryMinutes)
	v.SetDefault("membership::minExpiryMinutes", defaults.MinExpiryMinutes)
	v.SetDefault("membership::maxExpiryMinutes", defaults.MaxExpiryMinutes)
	v.SetDefault("membership::maxLinkUses", defaults.MaxLinkUses)
	v.SetDefault("membership::tokenBytes", defaults.TokenBytes)
	v.SetDefault("membership::rateLimits", defaults.RateLimits)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg MembershipConfig
	if err := v.UnmarshalKey("membership", &cfg); err != nil {
		return nil, err
	}
	if err := validateMembershipConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticMembershipConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("membership.config")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MembershipConfig
		if err := v.UnmarshalKey("membership", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateMembershipConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *MembershipConfigHolder) Get() MembershipConfig {
	if h == nil {
		return DefaultMembershipConfig()
	}
	cfg, ok := h.current.Load().(MembershipConfig)
	if !ok {
		return DefaultMembershipConfig()
	}
	return cfg
}

func validateMembershipConfig(cfg MembershipConfig) error {
	if cfg.MinExpiryMinutes <= 0 || cfg.MaxExpiryMinutes < cfg.MinExpiryMinutes {
		return errors.New("membership expiry window is invalid")
	}
	if cfg.DefaultExpiryMinutes < cfg.MinExpiryMinutes || cfg.DefaultExpiryMinutes > cfg.MaxExpiryMinutes {
		return errors.New("membership.defaultExpiryMinutes must be inside the expiry window")
	}
	if cfg.MaxLinkUses <= 0 {
		return errors.New("membership.maxLinkUses must be positive")
	}
	if cfg.TokenBytes < 16 {
		return errors.New("membership.tokenBytes must be at least 16")
	}
	return nil
}
