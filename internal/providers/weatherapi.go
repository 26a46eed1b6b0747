package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

// WeatherAPICondition is WeatherAPI.com's condition object.
type WeatherAPICondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// WeatherAPICurrent is the /v1/current.json response.
type WeatherAPICurrent struct {
	Location struct {
		LocaltimeEpoch int64 `json:"localtime_epoch"`
	} `json:"location"`
	Current *struct {
		LastUpdatedEpoch int64                `json:"last_updated_epoch"`
		TempC            float64              `json:"temp_c"`
		Humidity         float64              `json:"humidity"`
		WindKph          float64              `json:"wind_kph"`
		PressureMb       float64              `json:"pressure_mb"`
		Condition        *WeatherAPICondition `json:"condition"`
	} `json:"current"`
}

// WeatherAPIForecast is the /v1/forecast.json response.
type WeatherAPIForecast struct {
	Forecast struct {
		Forecastday []struct {
			Date string `json:"date"`
			Day  *struct {
				AvgTempC  float64              `json:"avgtemp_c"`
				Condition *WeatherAPICondition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com. It is an
// alternative to OpenWeather selected by configuration.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		client:  client,
		circuit: newBreaker("weatherapi"),
		now:     time.Now,
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Current(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	body, err := p.get(ctx, "/current.json", loc, nil)
	if err != nil {
		return weather.Snapshot{}, err
	}

	var raw WeatherAPICurrent
	if err := json.Unmarshal(body, &raw); err != nil {
		return weather.Snapshot{}, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return NormalizeWeatherAPICurrent(loc.Key(), raw, p.now())
}

func (p *WeatherAPIProvider) Forecast(ctx context.Context, loc weather.Location) ([]weather.ForecastDay, error) {
	extra := url.Values{}
	extra.Set("days", strconv.Itoa(weather.ForecastDays))

	body, err := p.get(ctx, "/forecast.json", loc, extra)
	if err != nil {
		return nil, err
	}

	var raw WeatherAPIForecast
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return NormalizeWeatherAPIForecast(raw)
}

func (p *WeatherAPIProvider) get(ctx context.Context, path string, loc weather.Location, extra url.Values) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: weatherapi api key is not configured", common.ErrNetwork)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	if loc.HasCoordinates() {
		values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	} else {
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}

	return doRequest(ctx, p.client, p.circuit, p.baseURL+path+"?"+values.Encode(), nil)
}

// NormalizeWeatherAPICurrent maps a WeatherAPI.com current payload. Wind is
// already km/h.
func NormalizeWeatherAPICurrent(city string, raw WeatherAPICurrent, fallback time.Time) (weather.Snapshot, error) {
	if raw.Current == nil || raw.Current.Condition == nil {
		return weather.Snapshot{}, fmt.Errorf("%w: weatherapi payload for %s lacks current conditions", common.ErrInvalidShape, city)
	}

	ts := raw.Current.LastUpdatedEpoch
	if ts <= 0 {
		ts = raw.Location.LocaltimeEpoch
	}

	return weather.Snapshot{
		City:       city,
		Temp:       raw.Current.TempC,
		Humidity:   raw.Current.Humidity,
		Conditions: raw.Current.Condition.Text,
		WindSpeed:  raw.Current.WindKph,
		Pressure:   raw.Current.PressureMb,
		Icon:       raw.Current.Condition.Icon,
		ObservedAt: observedAt(ts, fallback),
	}, nil
}

// NormalizeWeatherAPIForecast maps the daily forecast; fewer than
// weather.ForecastDays days is an invalid shape.
func NormalizeWeatherAPIForecast(raw WeatherAPIForecast) ([]weather.ForecastDay, error) {
	days := make([]weather.ForecastDay, 0, weather.ForecastDays)
	for _, fd := range raw.Forecast.Forecastday {
		if len(days) == weather.ForecastDays {
			break
		}
		if fd.Day == nil || fd.Day.Condition == nil {
			return nil, fmt.Errorf("%w: forecast day %s lacks conditions", common.ErrInvalidShape, fd.Date)
		}
		days = append(days, weather.ForecastDay{
			Date:       fd.Date,
			Temp:       fd.Day.AvgTempC,
			Conditions: fd.Day.Condition.Text,
			Icon:       fd.Day.Condition.Icon,
		})
	}

	if len(days) < weather.ForecastDays {
		return nil, fmt.Errorf("%w: forecast has %d days, want %d", common.ErrInvalidShape, len(days), weather.ForecastDays)
	}
	return days, nil
}
