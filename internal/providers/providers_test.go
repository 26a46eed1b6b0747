package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/dashboard-aggregation/internal/common"
	"github.com/i474232898/dashboard-aggregation/internal/news"
	"github.com/i474232898/dashboard-aggregation/internal/weather"
)

func ptr(f float64) *float64 { return &f }

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeWeather(t *testing.T) {
	var raw OpenWeatherCurrent
	raw.Dt = 1714564800
	raw.Main = &struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	}{Temp: 21.5, Humidity: 60, Pressure: 1012}
	raw.Wind = &struct {
		Speed float64 `json:"speed"`
	}{Speed: 10}
	raw.Weather = []OpenWeatherCondition{{Main: "Clouds", Icon: "04d"}}

	snap, err := NormalizeWeather("London", raw, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "London", snap.City)
	assert.Equal(t, 21.5, snap.Temp)
	assert.Equal(t, "Clouds", snap.Conditions)
	assert.InDelta(t, 36.0, snap.WindSpeed, 1e-9)
	assert.Equal(t, time.Unix(1714564800, 0).UTC(), snap.ObservedAt)

	_, err = NormalizeWeather("London", OpenWeatherCurrent{}, fixedNow)
	assert.True(t, errors.Is(err, common.ErrInvalidShape))
}

func TestNormalizeForecast(t *testing.T) {
	build := func(n int) OpenWeatherForecast {
		var raw OpenWeatherForecast
		for i := 0; i < n; i++ {
			entry := struct {
				Dt   int64 `json:"dt"`
				Main *struct {
					Temp float64 `json:"temp"`
				} `json:"main"`
				Weather []OpenWeatherCondition `json:"weather"`
			}{
				Dt: fixedNow.Add(time.Duration(i) * 3 * time.Hour).Unix(),
				Main: &struct {
					Temp float64 `json:"temp"`
				}{Temp: float64(i)},
				Weather: []OpenWeatherCondition{{Main: "Clear", Icon: "01d"}},
			}
			raw.List = append(raw.List, entry)
		}
		return raw
	}

	tests := []struct {
		name    string
		entries int
		wantErr bool
	}{
		{"full five days", 40, false},
		{"exactly enough", 33, false},
		{"too short", 32, true},
		{"empty", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := NormalizeForecast(build(tt.entries))
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrInvalidShape))
				return
			}
			require.NoError(t, err)
			require.Len(t, days, weather.ForecastDays)
			assert.Equal(t, 0.0, days[0].Temp)
			assert.Equal(t, 8.0, days[1].Temp)
			assert.Equal(t, "2024-05-02", days[1].Date)
		})
	}
}

func TestOpenWeatherProvider_Current(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/weather", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dt":1714564800,"main":{"temp":18,"humidity":70,"pressure":1009},"wind":{"speed":5},"weather":[{"main":"Rain","icon":"10d"}]}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key")
	p.baseURL = srv.URL

	snap, err := p.Current(context.Background(), weather.Location{City: "Tokyo", Lat: ptr(35.6762), Lon: ptr(139.6503)})
	require.NoError(t, err)
	assert.Equal(t, "Tokyo", snap.City)
	assert.Equal(t, "Rain", snap.Conditions)
	assert.Contains(t, gotQuery, "units=metric")
	assert.Contains(t, gotQuery, "lat=35.676200")
}

func TestOpenWeatherProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{}`, common.ErrNetwork},
		{"rate limited", http.StatusTooManyRequests, `{}`, common.ErrNetwork},
		{"not found", http.StatusNotFound, `{}`, common.ErrNetwork},
		{"bad json", http.StatusOK, `not json`, common.ErrInvalidShape},
		{"missing main", http.StatusOK, `{"weather":[]}`, common.ErrInvalidShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenWeatherProvider(srv.Client(), "key")
			p.baseURL = srv.URL

			_, err := p.Current(context.Background(), weather.Location{City: "London"})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestOpenWeatherProvider_MissingKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "")
	_, err := p.Current(context.Background(), weather.Location{City: "London"})
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestWeatherAPIProvider_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast.json", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("days"))
		var b strings.Builder
		b.WriteString(`{"forecast":{"forecastday":[`)
		for i := 1; i <= 5; i++ {
			if i > 1 {
				b.WriteString(",")
			}
			b.WriteString(`{"date":"2024-05-0` + string(rune('0'+i)) + `","day":{"avgtemp_c":12.5,"condition":{"text":"Sunny","icon":"//x.png"}}}`)
		}
		b.WriteString(`]}}`)
		_, _ = w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "key")
	p.baseURL = srv.URL

	days, err := p.Forecast(context.Background(), weather.Location{City: "London", Country: "GB"})
	require.NoError(t, err)
	require.Len(t, days, 5)
	assert.Equal(t, "2024-05-01", days[0].Date)
	assert.Equal(t, "Sunny", days[4].Conditions)
}

func TestNormalizeWeatherAPICurrent_MissingCondition(t *testing.T) {
	_, err := NormalizeWeatherAPICurrent("Paris", WeatherAPICurrent{}, fixedNow)
	assert.True(t, errors.Is(err, common.ErrInvalidShape))
}

func TestNormalizeAssetList(t *testing.T) {
	raw := []CoinGeckoMarket{
		{ID: "ethereum", Symbol: "eth", Name: "Ethereum", CurrentPrice: ptr(3000), MarketCap: ptr(1e11)},
		{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", CurrentPrice: ptr(64000), PriceChangePercentage24h: ptr(-1.5)},
		{ID: "solana", Symbol: "sol", Name: "Solana", CurrentPrice: nil},
	}

	got := NormalizeAssetList(raw, []string{"bitcoin", "ethereum", "solana", "dogecoin"}, fixedNow)
	require.Len(t, got, 4)

	assert.Equal(t, "bitcoin", got[0].ID)
	assert.Equal(t, "BTC", got[0].Symbol)
	assert.Equal(t, -1.5, got[0].PriceChange24h)
	assert.False(t, got[0].Placeholder)

	assert.Equal(t, "ethereum", got[1].ID)
	assert.Equal(t, 1e11, got[1].MarketCap)

	assert.True(t, got[2].Placeholder)
	assert.Equal(t, "Solana", got[2].Name)
	assert.True(t, got[3].Placeholder)
	assert.Equal(t, "Dogecoin", got[3].Name)
	assert.Equal(t, 0.0, got[3].CurrentPrice)
}

func TestNormalizePriceSeries(t *testing.T) {
	base := fixedNow.UnixMilli()
	raw := [][]float64{
		{float64(base + 2*3600000), 3},
		{float64(base), 1},
		{float64(base + 3600000), 2},
		{float64(base + 3*3600000)},
		{float64(base + 4*3600000), -1},
	}

	got := NormalizePriceSeries(raw, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Price)
	assert.Equal(t, 3.0, got[1].Price)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestCoinGeckoProvider_MarketsBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"error":"unexpected"}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.Client(), "", 24, nil)
	p.baseURL = srv.URL

	got, err := p.Markets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Placeholder)
	assert.True(t, got[1].Placeholder)
}

func TestCoinGeckoProvider_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "hourly", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"prices":[[1714564800000,64000.5],[1714568400000,64100.25]]}`))
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.Client(), "demo", 24, nil)
	p.baseURL = srv.URL

	got, err := p.History(context.Background(), "bitcoin")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 64100.25, got[1].Price)
}

func TestCoinGeckoProvider_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewCoinGeckoProvider(srv.Client(), "", 24, nil)
	p.baseURL = srv.URL

	_, err := p.Markets(context.Background(), []string{"bitcoin"})
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestNormalizeNews(t *testing.T) {
	body := []byte(`{"status":"success","results":[
		{"title":"BTC rallies","description":"up","link":"https://x","pubDate":"2024-05-01 10:00:00","source_id":"wire","category":["business"]},
		{"title":"","description":null,"link":""}
	]}`)

	items := NormalizeNews(body)
	require.Len(t, items, 2)
	assert.Equal(t, "BTC rallies", items[0].Title)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), items[0].PubDate)
	assert.Equal(t, "No title available", items[1].Title)
	assert.Equal(t, "No description available", items[1].Description)
	assert.Equal(t, "#", items[1].Link)
	assert.True(t, items[1].PubDate.IsZero())

	assert.Empty(t, NormalizeNews([]byte(`garbage`)))
	assert.Empty(t, NormalizeNews([]byte(`{"status":"error"}`)))
}

func TestNewsDataProvider_Fetch(t *testing.T) {
	tests := []struct {
		feed     news.Feed
		size     string
		category string
	}{
		{news.FeedHeadlines, "8", "business,technology"},
		{news.FeedAnalysis, "3", "business"},
	}

	for _, tt := range tests {
		t.Run(string(tt.feed), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				assert.Equal(t, "key", q.Get("apikey"))
				assert.Equal(t, "en", q.Get("language"))
				assert.Equal(t, tt.size, q.Get("size"))
				assert.Equal(t, tt.category, q.Get("category"))
				_, _ = w.Write([]byte(`{"status":"success","results":[{"title":"t"}]}`))
			}))
			defer srv.Close()

			p := NewNewsDataProvider(srv.Client(), "key")
			p.baseURL = srv.URL

			items, err := p.Fetch(context.Background(), tt.feed)
			require.NoError(t, err)
			require.Len(t, items, 1)
		})
	}

	p := NewNewsDataProvider(http.DefaultClient, "key")
	_, err := p.Fetch(context.Background(), news.Feed("sports"))
	assert.Error(t, err)
}

func TestDecodeTicks(t *testing.T) {
	ticks, err := DecodeTicks([]byte(`{"solana":"150.5","bitcoin":"64000.12","ethereum":3000,"bad":"abc","neg":"-1"}`), fixedNow)
	require.NoError(t, err)
	require.Len(t, ticks, 3)
	assert.Equal(t, "bitcoin", ticks[0].AssetID)
	assert.Equal(t, 64000.12, ticks[0].Price)
	assert.Equal(t, "ethereum", ticks[1].AssetID)
	assert.Equal(t, 3000.0, ticks[1].Price)
	assert.Equal(t, "solana", ticks[2].AssetID)
	assert.Equal(t, fixedNow, ticks[2].At)

	_, err = DecodeTicks([]byte(`[1,2]`), fixedNow)
	assert.True(t, errors.Is(err, common.ErrInvalidShape))
}

func TestCoinCapStreamURL(t *testing.T) {
	assert.Equal(t, "wss://ws.coincap.io/prices?assets=bitcoin%2Cethereum",
		CoinCapStreamURL("", []string{"bitcoin", "ethereum"}))
	assert.Equal(t, "ws://host/p?x=1&assets=solana",
		CoinCapStreamURL("ws://host/p?x=1", []string{"solana"}))
}

func TestGeocoder_Resolve(t *testing.T) {
	calls := 0
	g := &Geocoder{lookup: func(a geocoder.Address) (geocoder.Location, error) {
		calls++
		if a.City == "Nowhere" {
			return geocoder.Location{}, errors.New("zero results")
		}
		return geocoder.Location{Latitude: 51.5074, Longitude: -0.1278}, nil
	}}

	loc, err := g.Resolve(weather.Location{City: "London"})
	require.NoError(t, err)
	require.True(t, loc.HasCoordinates())
	assert.Equal(t, 51.5074, *loc.Lat)

	_, err = g.Resolve(weather.Location{City: "Nowhere"})
	assert.Error(t, err)

	_, err = g.Resolve(weather.Location{City: "Tokyo", Lat: ptr(1), Lon: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestOpenMeteoProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "UTC", q.Get("timezone"))
		if q.Get("daily") != "" {
			_, _ = w.Write([]byte(`{"daily":{
				"time":["2024-05-01","2024-05-02","2024-05-03","2024-05-04","2024-05-05"],
				"weather_code":[0,3,61,71,95],
				"temperature_2m_max":[20,20,20,20,20],
				"temperature_2m_min":[10,10,10,10,10]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"current":{"time":"2024-05-01T12:00","temperature_2m":14.2,
			"relative_humidity_2m":81,"weather_code":63,"wind_speed_10m":18.5,"surface_pressure":1004.1}}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client())
	p.baseURL = srv.URL
	london := weather.Location{City: "London", Lat: ptr(51.5074), Lon: ptr(-0.1278)}

	snap, err := p.Current(context.Background(), london)
	require.NoError(t, err)
	assert.Equal(t, "Rain", snap.Conditions)
	assert.Equal(t, 18.5, snap.WindSpeed)
	assert.Equal(t, fixedNow, snap.ObservedAt)

	days, err := p.Forecast(context.Background(), london)
	require.NoError(t, err)
	require.Len(t, days, 5)
	assert.Equal(t, 15.0, days[0].Temp)
	assert.Equal(t, []string{"Clear", "Clouds", "Rain", "Snow", "Thunderstorm"},
		[]string{days[0].Conditions, days[1].Conditions, days[2].Conditions, days[3].Conditions, days[4].Conditions})

	_, err = p.Current(context.Background(), weather.Location{City: "Nowhere"})
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestNormalizeOpenMeteoForecast_Short(t *testing.T) {
	var raw OpenMeteoResponse
	_, err := NormalizeOpenMeteoForecast(raw)
	assert.True(t, errors.Is(err, common.ErrInvalidShape))
}
