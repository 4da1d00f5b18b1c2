package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestClampExpiry(t *testing.T) {
	cfg := DefaultMembershipConfig()

	assert.Equal(t, 7*24*time.Hour, cfg.ClampExpiry(nil))
	assert.Equal(t, 7*24*time.Hour, cfg.ClampExpiry(intPtr(0)))
	assert.Equal(t, 60*time.Minute, cfg.ClampExpiry(intPtr(60)))
	assert.Equal(t, 15*time.Minute, cfg.ClampExpiry(intPtr(1)))
	assert.Equal(t, 30*24*time.Hour, cfg.ClampExpiry(intPtr(90*24*60)))
}

func TestRateLimitForFallsBackToDefault(t *testing.T) {
	cfg := DefaultMembershipConfig()

	assert.Equal(t, cfg.RateLimits["link.accept"], cfg.RateLimitFor("link.accept"))
	assert.Equal(t, cfg.RateLimits["default"], cfg.RateLimitFor("member.remove"))

	cfg.RateLimits = nil
	assert.Equal(t, RateLimitRule{Rate: 1, Burst: 20}, cfg.RateLimitFor("member.remove"))
}

func TestValidateMembershipConfig(t *testing.T) {
	assert.NoError(t, validateMembershipConfig(DefaultMembershipConfig()))

	cfg := DefaultMembershipConfig()
	cfg.MaxLinkUses = 0
	assert.Error(t, validateMembershipConfig(cfg))

	cfg = DefaultMembershipConfig()
	cfg.DefaultExpiryMinutes = 5
	assert.Error(t, validateMembershipConfig(cfg))

	cfg = DefaultMembershipConfig()
	cfg.TokenBytes = 8
	assert.Error(t, validateMembershipConfig(cfg))
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *MembershipConfigHolder
	assert.Equal(t, DefaultMembershipConfig(), holder.Get())
}
