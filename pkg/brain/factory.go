package brain

import (
	"github.com/parleyhq/parley/pkg/config"
)

// NewPrimaryProvider builds the low-latency backend from config.
func NewPrimaryProvider(cfg config.BackendsConfig) Provider {
	return NewHTTPProvider(cfg.Primary.BaseURL, cfg.Primary.APIKey, cfg.Primary.Model)
}

// NewSecondaryProvider selects the secondary SDK by family.
func NewSecondaryProvider(cfg config.BackendsConfig) Provider {
	if cfg.SecondaryFamily == "anthropic" {
		return NewAnthropicProvider(cfg.Secondary.APIKey, cfg.Secondary.BaseURL, cfg.Secondary.Model)
	}
	return NewOpenAIProvider(cfg.Secondary.APIKey, cfg.Secondary.BaseURL, cfg.Secondary.Model)
}
