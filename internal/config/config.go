package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

// Config holds all configuration for the application.
type Config struct {
	App         AppConfig     `mapstructure:"app"`
	OpenWeather APIKeyConfig  `mapstructure:"openweather"`
	WeatherAPI  APIKeyConfig  `mapstructure:"weatherapi"`
	CoinGecko   APIKeyConfig  `mapstructure:"coingecko"`
	NewsData    APIKeyConfig  `mapstructure:"newsdata"`
	Geocoder    APIKeyConfig  `mapstructure:"geocoder"`
	Weather     WeatherConfig `mapstructure:"weather"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Poll        PollConfig    `mapstructure:"poll"`
	Stream      StreamConfig  `mapstructure:"stream"`
	Store       StoreConfig   `mapstructure:"store"`
	Notify      NotifyConfig  `mapstructure:"notify"`
	Kafka       KafkaConfig   `mapstructure:"kafka"`
	Watchlist   WatchlistFile `mapstructure:"watchlist"`
	Log         LogConfig     `mapstructure:"log"`
	Tracked     Watchlist     `mapstructure:"-"`
}

type AppConfig struct {
	Port string `mapstructure:"port" validate:"required"`
}

// APIKeyConfig holds a provider credential. An empty key disables the
// provider's requests; the affected slots show as unavailable.
type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type WeatherConfig struct {
	Provider string `mapstructure:"provider" validate:"oneof=openweather weatherapi openmeteo"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// PollConfig sets the interval per domain. Zero disables the periodic job.
type PollConfig struct {
	WeatherInterval time.Duration `mapstructure:"weather_interval"`
	CryptoInterval  time.Duration `mapstructure:"crypto_interval"`
	NewsInterval    time.Duration `mapstructure:"news_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url" validate:"required"`
	Reconnect      bool          `mapstructure:"reconnect"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	Buffer         int           `mapstructure:"buffer" validate:"gt=0"`
}

type StoreConfig struct {
	HistoryLimit int `mapstructure:"history_limit" validate:"gt=0"`
}

type NotifyConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	Max         int           `mapstructure:"max" validate:"gt=0"`
	DedupWindow time.Duration `mapstructure:"dedup_window"`
	EventBuffer int           `mapstructure:"event_buffer" validate:"gt=0"`
}

// KafkaConfig enables the alert sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required"`
}

// WatchlistFile points at an optional YAML watchlist. Cities and Countries
// are comma-separated overrides used when no file is given.
type WatchlistFile struct {
	File      string `mapstructure:"file"`
	Cities    string `mapstructure:"cities"`
	Countries string `mapstructure:"countries"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Watchlist is the set of tracked cities and assets, fixed at startup.
type Watchlist struct {
	Cities []weather.Location `yaml:"cities" validate:"required,min=1,dive"`
	Assets []market.Asset     `yaml:"assets" validate:"required,min=1,dive"`
}

var keys = []string{
	"app.port",
	"openweather.api_key", "weatherapi.api_key", "coingecko.api_key", "newsdata.api_key", "geocoder.api_key",
	"weather.provider",
	"http.timeout",
	"poll.weather_interval", "poll.crypto_interval", "poll.news_interval", "poll.timeout",
	"stream.enabled", "stream.url", "stream.reconnect", "stream.reconnect_delay", "stream.buffer",
	"store.history_limit",
	"notify.ttl", "notify.max", "notify.dedup_window", "notify.event_buffer",
	"kafka.brokers", "kafka.topic",
	"watchlist.file", "watchlist.cities", "watchlist.countries",
	"log.level", "log.development",
}

// Load reads configuration from a .env file, environment variables and
// defaults, then loads and validates the watchlist.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	// "poll.weather_interval" <-> POLL_WEATHER_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	wl, err := loadWatchlist(cfg.Watchlist)
	if err != nil {
		return nil, err
	}
	cfg.Tracked = wl

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("weather.provider", "openweather")
	v.SetDefault("http.timeout", 10*time.Second)

	v.SetDefault("poll.weather_interval", 15*time.Minute)
	v.SetDefault("poll.crypto_interval", 5*time.Minute)
	v.SetDefault("poll.news_interval", 5*time.Minute)
	v.SetDefault("poll.timeout", 30*time.Second)

	v.SetDefault("stream.enabled", true)
	v.SetDefault("stream.url", "wss://ws.coincap.io/prices")
	v.SetDefault("stream.reconnect", false)
	v.SetDefault("stream.reconnect_delay", 5*time.Second)
	v.SetDefault("stream.buffer", 256)

	v.SetDefault("store.history_limit", market.DefaultHistoryLimit)

	v.SetDefault("notify.ttl", 8*time.Second)
	v.SetDefault("notify.max", 50)
	v.SetDefault("notify.dedup_window", time.Duration(0))
	v.SetDefault("notify.event_buffer", 64)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "dashboard_alerts")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks field constraints and watchlist uniqueness.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"poll.weather_interval": c.Poll.WeatherInterval,
		"poll.crypto_interval":  c.Poll.CryptoInterval,
		"poll.news_interval":    c.Poll.NewsInterval,
		"notify.dedup_window":   c.Notify.DedupWindow,
	} {
		if d < 0 {
			return fmt.Errorf("invalid config: %s must not be negative", name)
		}
	}
	if c.Poll.Timeout <= 0 || c.HTTP.Timeout <= 0 || c.Notify.TTL <= 0 {
		return errors.New("invalid config: poll.timeout, http.timeout and notify.ttl must be positive")
	}

	cities := make(map[string]bool)
	for _, loc := range c.Tracked.Cities {
		if cities[loc.Key()] {
			return fmt.Errorf("invalid config: duplicate city %q", loc.Key())
		}
		cities[loc.Key()] = true
	}
	assets := make(map[string]bool)
	for _, a := range c.Tracked.Assets {
		if assets[a.ID] {
			return fmt.Errorf("invalid config: duplicate asset %q", a.ID)
		}
		assets[a.ID] = true
	}
	return nil
}

// AssetIDs returns the tracked asset ids in watchlist order.
func (c *Config) AssetIDs() []string {
	ids := make([]string, 0, len(c.Tracked.Assets))
	for _, a := range c.Tracked.Assets {
		ids = append(ids, a.ID)
	}
	return ids
}

// DefaultWatchlist is used when no watchlist file or city override is set.
func DefaultWatchlist() Watchlist {
	return Watchlist{
		Cities: []weather.Location{
			{City: "New York", Country: "US", Lat: ptr(40.7128), Lon: ptr(-74.0060)},
			{City: "London", Country: "GB", Lat: ptr(51.5074), Lon: ptr(-0.1278)},
			{City: "Tokyo", Country: "JP", Lat: ptr(35.6762), Lon: ptr(139.6503)},
		},
		Assets: []market.Asset{
			{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
			{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
			{ID: "solana", Symbol: "SOL", Name: "Solana"},
		},
	}
}

func loadWatchlist(src WatchlistFile) (Watchlist, error) {
	wl := DefaultWatchlist()

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return Watchlist{}, fmt.Errorf("read watchlist: %w", err)
		}
		var fromFile Watchlist
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return Watchlist{}, fmt.Errorf("parse watchlist %s: %w", src.File, err)
		}
		if len(fromFile.Cities) > 0 {
			wl.Cities = fromFile.Cities
		}
		if len(fromFile.Assets) > 0 {
			wl.Assets = fromFile.Assets
		}
		return wl, nil
	}

	if src.Cities != "" {
		locs, err := parseCities(src.Cities, src.Countries)
		if err != nil {
			return Watchlist{}, err
		}
		wl.Cities = locs
	}
	return wl, nil
}

// parseCities pairs comma-separated city and country lists. Countries may be
// omitted entirely.
func parseCities(cityList, countryList string) ([]weather.Location, error) {
	cities := strings.Split(cityList, ",")
	var countries []string
	if countryList != "" {
		countries = strings.Split(countryList, ",")
		if len(cities) != len(countries) {
			return nil, fmt.Errorf("number of cities and countries must be the same")
		}
	}

	locs := make([]weather.Location, 0, len(cities))
	for i := range cities {
		loc := weather.Location{City: strings.TrimSpace(cities[i])}
		if countries != nil {
			loc.Country = strings.TrimSpace(countries[i])
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func ptr(f float64) *float64 { return &f }
