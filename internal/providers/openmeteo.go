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

// OpenMeteoResponse is the /v1/forecast response for the current and daily
// variables requested by OpenMeteoProvider.
type OpenMeteoResponse struct {
	Current *struct {
		Time             string   `json:"time"`
		Temperature      float64  `json:"temperature_2m"`
		RelativeHumidity float64  `json:"relative_humidity_2m"`
		WeatherCode      *int     `json:"weather_code"`
		WindSpeed        float64  `json:"wind_speed_10m"`
		SurfacePressure  *float64 `json:"surface_pressure"`
	} `json:"current"`
	Daily *struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weather_code"`
		TempMax     []float64 `json:"temperature_2m_max"`
		TempMin     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// OpenMeteoProvider implements weather.Provider for Open-Meteo. It needs no
// API key but only accepts locations with coordinates.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: newBreaker("openmeteo"),
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Current(ctx context.Context, loc weather.Location) (weather.Snapshot, error) {
	raw, err := p.fetch(ctx, loc, url.Values{
		"current": {"temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,surface_pressure"},
	})
	if err != nil {
		return weather.Snapshot{}, err
	}
	return NormalizeOpenMeteoCurrent(loc.Key(), raw, p.now())
}

func (p *OpenMeteoProvider) Forecast(ctx context.Context, loc weather.Location) ([]weather.ForecastDay, error) {
	raw, err := p.fetch(ctx, loc, url.Values{
		"daily":         {"weather_code,temperature_2m_max,temperature_2m_min"},
		"forecast_days": {strconv.Itoa(weather.ForecastDays)},
	})
	if err != nil {
		return nil, err
	}
	return NormalizeOpenMeteoForecast(raw)
}

func (p *OpenMeteoProvider) fetch(ctx context.Context, loc weather.Location, values url.Values) (OpenMeteoResponse, error) {
	if !loc.HasCoordinates() {
		return OpenMeteoResponse{}, fmt.Errorf("%w: openmeteo requires latitude and longitude for %s", common.ErrNetwork, loc.Key())
	}

	values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
	values.Set("timezone", "UTC")
	values.Set("wind_speed_unit", "kmh")

	body, err := doRequest(ctx, p.client, p.circuit, p.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return OpenMeteoResponse{}, err
	}

	var raw OpenMeteoResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return OpenMeteoResponse{}, fmt.Errorf("%w: %v", common.ErrInvalidShape, err)
	}
	return raw, nil
}

// NormalizeOpenMeteoCurrent maps the "current" block. Open-Meteo reports local
// ISO times without a zone; the request pins them to UTC.
func NormalizeOpenMeteoCurrent(city string, raw OpenMeteoResponse, fallback time.Time) (weather.Snapshot, error) {
	if raw.Current == nil || raw.Current.WeatherCode == nil {
		return weather.Snapshot{}, fmt.Errorf("%w: openmeteo payload for %s lacks current conditions", common.ErrInvalidShape, city)
	}

	observed := fallback.UTC()
	if ts, err := time.Parse("2006-01-02T15:04", raw.Current.Time); err == nil {
		observed = ts.UTC()
	}

	var pressure float64
	if raw.Current.SurfacePressure != nil {
		pressure = *raw.Current.SurfacePressure
	}

	cond, icon := openMeteoCondition(*raw.Current.WeatherCode)
	return weather.Snapshot{
		City:       city,
		Temp:       raw.Current.Temperature,
		Humidity:   raw.Current.RelativeHumidity,
		Conditions: cond,
		WindSpeed:  raw.Current.WindSpeed,
		Pressure:   pressure,
		Icon:       icon,
		ObservedAt: observed,
	}, nil
}

// NormalizeOpenMeteoForecast maps the daily arrays; the day's temperature is
// the midpoint of its min and max.
func NormalizeOpenMeteoForecast(raw OpenMeteoResponse) ([]weather.ForecastDay, error) {
	d := raw.Daily
	if d == nil {
		return nil, fmt.Errorf("%w: openmeteo payload lacks daily forecast", common.ErrInvalidShape)
	}

	n := min(len(d.Time), len(d.WeatherCode), len(d.TempMax), len(d.TempMin))
	if n < weather.ForecastDays {
		return nil, fmt.Errorf("%w: forecast has %d days, want %d", common.ErrInvalidShape, n, weather.ForecastDays)
	}

	days := make([]weather.ForecastDay, 0, weather.ForecastDays)
	for i := 0; i < weather.ForecastDays; i++ {
		cond, icon := openMeteoCondition(d.WeatherCode[i])
		days = append(days, weather.ForecastDay{
			Date:       d.Time[i],
			Temp:       (d.TempMax[i] + d.TempMin[i]) / 2,
			Conditions: cond,
			Icon:       icon,
		})
	}
	return days, nil
}

// openMeteoCondition maps WMO weather codes onto the OpenWeather labels and
// icon codes used elsewhere in the dashboard.
func openMeteoCondition(code int) (string, string) {
	switch {
	case code == 0:
		return "Clear", "01d"
	case code >= 1 && code <= 3:
		return "Clouds", "03d"
	case code == 45 || code == 48:
		return "Fog", "50d"
	case code >= 51 && code <= 57:
		return "Drizzle", "09d"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain", "10d"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow", "13d"
	case code >= 95:
		return "Thunderstorm", "11d"
	default:
		return "Unknown", ""
	}
}
