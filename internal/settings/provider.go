package settings

import (
	"fmt"

	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
)

// Store reads the persisted gateway settings document.
type Store interface {
	GetGatewaySettings() (*models.GatewaySettings, error)
}

// Cache holds a merged settings snapshot for a short TTL. Misses and
// failures are soft: the provider falls back to the store.
type Cache interface {
	GetSettings() (*gateway.Settings, bool)
	PutSettings(settings *gateway.Settings)
}

// Provider merges the stored settings row with site-level overrides from
// the environment. Site config wins wherever both define a value.
type Provider struct {
	store Store
	cache Cache
	conf  config.PaypalConfig
	log   *logger.Logger
}

func NewProvider(store Store, cache Cache, conf config.PaypalConfig, log *logger.Logger) *Provider {
	return &Provider{store: store, cache: cache, conf: conf, log: log}
}

func (p *Provider) GatewaySettings() (*gateway.Settings, error) {
	if p.cache != nil {
		if cached, ok := p.cache.GetSettings(); ok {
			return cached, nil
		}
	}

	stored, err := p.store.GetGatewaySettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load stored gateway settings: %w", err)
	}

	merged := &gateway.Settings{
		APIUsername: stored.APIUsername,
		APIPassword: stored.APIPassword,
		Signature:   stored.Signature,
		Sandbox:     stored.Sandbox,
	}

	if p.conf.Username != "" {
		merged.APIUsername = p.conf.Username
	}
	if p.conf.Password != "" {
		merged.APIPassword = p.conf.Password
	}
	if p.conf.Signature != "" {
		merged.Signature = p.conf.Signature
	}
	if sandbox, ok := p.conf.SandboxOverride(); ok {
		merged.Sandbox = sandbox
	}

	if merged.APIUsername == "" {
		p.log.Warn("CONFIG", "Gateway settings resolved without an API username")
	}

	if p.cache != nil {
		p.cache.PutSettings(merged)
	}
	return merged, nil
}
