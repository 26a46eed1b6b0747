package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "openweather", cfg.Weather.Provider)
	assert.Equal(t, 15*time.Minute, cfg.Poll.WeatherInterval)
	assert.Equal(t, 5*time.Minute, cfg.Poll.CryptoInterval)
	assert.Equal(t, 5*time.Minute, cfg.Poll.NewsInterval)
	assert.Equal(t, 30*time.Second, cfg.Poll.Timeout)
	assert.Equal(t, 24, cfg.Store.HistoryLimit)
	assert.Equal(t, 8*time.Second, cfg.Notify.TTL)
	assert.Equal(t, time.Duration(0), cfg.Notify.DedupWindow)
	assert.False(t, cfg.Stream.Reconnect)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "dashboard_alerts", cfg.Kafka.Topic)

	require.Len(t, cfg.Tracked.Cities, 3)
	assert.Equal(t, "Tokyo", cfg.Tracked.Cities[2].City)
	assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, cfg.AssetIDs())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POLL_WEATHER_INTERVAL", "1m")
	t.Setenv("POLL_CRYPTO_INTERVAL", "0")
	t.Setenv("OPENWEATHER_API_KEY", "secret")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("STREAM_RECONNECT", "true")
	t.Setenv("WATCHLIST_CITIES", "Paris,Berlin")
	t.Setenv("WATCHLIST_COUNTRIES", "FR,DE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, time.Minute, cfg.Poll.WeatherInterval)
	assert.Equal(t, time.Duration(0), cfg.Poll.CryptoInterval)
	assert.Equal(t, "secret", cfg.OpenWeather.APIKey)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Stream.Reconnect)

	require.Len(t, cfg.Tracked.Cities, 2)
	assert.Equal(t, "Berlin", cfg.Tracked.Cities[1].City)
	assert.Equal(t, "DE", cfg.Tracked.Cities[1].Country)
	assert.False(t, cfg.Tracked.Cities[1].HasCoordinates())
}

func TestLoad_WatchlistFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cities:
  - city: Sydney
    country: AU
    lat: -33.8688
    lon: 151.2093
assets:
  - id: cardano
    symbol: ADA
    name: Cardano
`), 0o600))
	t.Setenv("WATCHLIST_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Tracked.Cities, 1)
	assert.Equal(t, "Sydney", cfg.Tracked.Cities[0].City)
	require.True(t, cfg.Tracked.Cities[0].HasCoordinates())
	assert.Equal(t, -33.8688, *cfg.Tracked.Cities[0].Lat)
	assert.Equal(t, []string{"cardano"}, cfg.AssetIDs())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "unknown provider", env: map[string]string{"WEATHER_PROVIDER": "metoffice"}},
		{name: "zero history", env: map[string]string{"STORE_HISTORY_LIMIT": "0"}},
		{name: "negative interval", env: map[string]string{"POLL_NEWS_INTERVAL": "-1m"}},
		{name: "bad duration", env: map[string]string{"POLL_TIMEOUT": "soon"}},
		{name: "mismatched countries", env: map[string]string{"WATCHLIST_CITIES": "Paris,Rome", "WATCHLIST_COUNTRIES": "FR"}},
		{name: "duplicate city", env: map[string]string{"WATCHLIST_CITIES": "Paris,Paris"}},
		{name: "duplicate asset", file: "assets:\n  - id: bitcoin\n  - id: bitcoin\n"},
		{name: "city without name", file: "cities:\n  - country: FR\n"},
		{name: "missing file", env: map[string]string{"WATCHLIST_FILE": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "watchlist.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				t.Setenv("WATCHLIST_FILE", path)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
