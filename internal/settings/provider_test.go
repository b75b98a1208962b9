package settings_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-express-checkout/internal/config"
	"ms-express-checkout/internal/gateway"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
	"ms-express-checkout/internal/settings"
)

type stubStore struct {
	settings models.GatewaySettings
	err      error
	calls    int
}

func (s *stubStore) GetGatewaySettings() (*models.GatewaySettings, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := s.settings
	return &copied, nil
}

type stubCache struct {
	cached *gateway.Settings
	puts   int
}

func (c *stubCache) GetSettings() (*gateway.Settings, bool) {
	if c.cached == nil {
		return nil, false
	}
	return c.cached, true
}

func (c *stubCache) PutSettings(settings *gateway.Settings) {
	c.cached = settings
	c.puts++
}

func TestGatewaySettingsFromStore(t *testing.T) {
	store := &stubStore{settings: models.GatewaySettings{
		APIUsername: "stored-user",
		APIPassword: "stored-pass",
		Signature:   "stored-sig",
		Sandbox:     true,
	}}
	provider := settings.NewProvider(store, nil, config.PaypalConfig{}, logger.NewLogger())

	got, err := provider.GatewaySettings()
	require.NoError(t, err)

	assert.Equal(t, "stored-user", got.APIUsername)
	assert.Equal(t, "stored-pass", got.APIPassword)
	assert.Equal(t, "stored-sig", got.Signature)
	assert.True(t, got.Sandbox)
}

func TestGatewaySettingsSiteConfigWinsPerField(t *testing.T) {
	store := &stubStore{settings: models.GatewaySettings{
		APIUsername: "stored-user",
		APIPassword: "stored-pass",
		Signature:   "stored-sig",
		Sandbox:     true,
	}}
	conf := config.PaypalConfig{
		Username: "env-user",
		Sandbox:  "false",
	}
	provider := settings.NewProvider(store, nil, conf, logger.NewLogger())

	got, err := provider.GatewaySettings()
	require.NoError(t, err)

	// Overridden fields come from the environment, the rest stay stored
	assert.Equal(t, "env-user", got.APIUsername)
	assert.Equal(t, "stored-pass", got.APIPassword)
	assert.Equal(t, "stored-sig", got.Signature)
	assert.False(t, got.Sandbox)
}

func TestGatewaySettingsEmptySandboxLeavesStoredFlag(t *testing.T) {
	store := &stubStore{settings: models.GatewaySettings{Sandbox: true}}
	provider := settings.NewProvider(store, nil, config.PaypalConfig{Sandbox: ""}, logger.NewLogger())

	got, err := provider.GatewaySettings()
	require.NoError(t, err)
	assert.True(t, got.Sandbox)
}

func TestGatewaySettingsStoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	provider := settings.NewProvider(store, nil, config.PaypalConfig{}, logger.NewLogger())

	got, err := provider.GatewaySettings()
	assert.Nil(t, got)
	assert.Error(t, err)
}

func TestGatewaySettingsCacheHitSkipsStore(t *testing.T) {
	store := &stubStore{settings: models.GatewaySettings{APIUsername: "stored-user"}}
	cache := &stubCache{cached: &gateway.Settings{APIUsername: "cached-user"}}
	provider := settings.NewProvider(store, cache, config.PaypalConfig{}, logger.NewLogger())

	got, err := provider.GatewaySettings()
	require.NoError(t, err)

	assert.Equal(t, "cached-user", got.APIUsername)
	assert.Equal(t, 0, store.calls)
}

func TestGatewaySettingsCacheMissFillsCache(t *testing.T) {
	store := &stubStore{settings: models.GatewaySettings{APIUsername: "stored-user"}}
	cache := &stubCache{}
	provider := settings.NewProvider(store, cache, config.PaypalConfig{}, logger.NewLogger())

	got, err := provider.GatewaySettings()
	require.NoError(t, err)

	assert.Equal(t, "stored-user", got.APIUsername)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, cache.puts)
	require.NotNil(t, cache.cached)
	assert.Equal(t, "stored-user", cache.cached.APIUsername)
}
