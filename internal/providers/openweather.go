package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

// forecastStride samples one entry per day from OpenWeather's 3-hourly list.
const forecastStride = 8

// msToKmh converts OpenWeather's metric wind speed (m/s) to km/h.
const msToKmh = 3.6

// OpenWeatherCondition is one entry of the "weather" array.
type OpenWeatherCondition struct {
	Main string `json:"main"`
	Icon string `json:"icon"`
}

// OpenWeatherCurrent is the /data/2.5/weather response.
type OpenWeatherCurrent struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []OpenWeatherCondition `json:"weather"`
}

// OpenWeatherForecast is the /data/2.5/forecast response.
type OpenWeatherForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []OpenWeatherCondition `json:"weather"`
	} `json:"list"`
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		client:  client,
		circuit: newBreaker("openweather"),
		now:     time.Now,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Current(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	body, err := p.get(ctx, "/weather", loc)
	if err != nil {
		return weather.Snapshot{}, err
	}

	var raw OpenWeatherCurrent
	if err := json.Unmarshal(body, &raw); err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return NormalizeWeather(loc.Key(), raw, p.now())
}

func (p *OpenWeatherProvider) Forecast(ctx context.Context, loc weather.Location) ([]weather.ForecastDay, error) {
	body, err := p.get(ctx, "/forecast", loc)
	if err != nil {
		return nil, err
	}

	var raw OpenWeatherForecast
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return NormalizeForecast(raw)
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, loc weather.Location) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", common.ErrNetwork)
	}

	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	if loc.HasCoordinates() {
		values.Set("lat", fmt.Sprintf("%f", *loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	return doRequest(ctx, p.client, p.circuit, p.baseURL+path+"?"+values.Encode(), nil)
}

// NormalizeWeather maps an OpenWeather current-conditions payload.
func NormalizeWeather(city string, raw OpenWeatherCurrent, fallback time.Time) (weather.Snapshot, error) {
	if raw.Main == nil || len(raw.Weather) == 0 {
		return weather.Snapshot{}, fmt.Errorf("%w: weather for %s lacks main or conditions", common.ErrInvalidShape, city)
	}

	var wind float64
	if raw.Wind != nil {
		wind = raw.Wind.Speed * msToKmh
	}

	return weather.Snapshot{
		City:       city,
		Temp:       raw.Main.Temp,
		Humidity:   raw.Main.Humidity,
		Conditions: raw.Weather[0].Main,
		WindSpeed:  wind,
		Pressure:   raw.Main.Pressure,
		Icon:       raw.Weather[0].Icon,
		ObservedAt: observedAt(raw.Dt, fallback),
	}, nil
}

// NormalizeForecast samples one entry per day and returns exactly
// weather.ForecastDays days.
func NormalizeForecast(raw OpenWeatherForecast) ([]weather.ForecastDay, error) {
	days := make([]weather.ForecastDay, 0, weather.ForecastDays)

	for i := 0; i < len(raw.List) && len(days) < weather.ForecastDays; i += forecastStride {
		entry := raw.List[i]
		if entry.Main == nil || len(entry.Weather) == 0 {
			return nil, fmt.Errorf("%w: forecast entry %d lacks main or conditions", common.ErrInvalidShape, i)
		}
		days = append(days, weather.ForecastDay{
			Date:       time.Unix(entry.Dt, 0).UTC().Format("2006-01-02"),
			Temp:       entry.Main.Temp,
			Conditions: entry.Weather[0].Main,
			Icon:       entry.Weather[0].Icon,
		})
	}

	if len(days) < weather.ForecastDays {
		return nil, fmt.Errorf("%w: forecast has %d days, want %d", common.ErrInvalidShape, len(days), weather.ForecastDays)
	}
	return days, nil
}
