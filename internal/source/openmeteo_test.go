package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misua/quake-monitor-web/internal/domain"
)

const forecastFixture = `{
	"utc_offset_seconds": 28800,
	"current": {
		"time": "2026-03-14T13:12",
		"temperature_2m": 31.4,
		"relative_humidity_2m": 74,
		"apparent_temperature": 36.8,
		"precipitation": 0.2,
		"weather_code": 80,
		"wind_speed_10m": 11.5,
		"wind_direction_10m": 210,
		"pressure_msl": 1008.3,
		"cloud_cover": 65
	}
}`

const airQualityFixture = `{
	"current": {"pm2_5": 18.5, "uv_index": 7.2, "european_aqi": 42}
}`

func TestOpenMeteoFetch(t *testing.T) {
	forecast := serveJSON(t, forecastFixture)
	air := serveJSON(t, airQualityFixture)

	o := NewOpenMeteo(newTestClient(t), 7.190708, 125.455338, time.Minute)
	o.forecast = forecast.URL
	o.airQuality = air.URL

	records, err := o.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, domain.KindWeather, rec.Kind)
	assert.Equal(t, "open-meteo", rec.SourceID)
	// 13:12 at UTC+8 is 05:12 UTC.
	assert.Equal(t, time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC), rec.ObservedAt)

	require.NotNil(t, rec.Weather)
	assert.Equal(t, 31.4, rec.Weather.TemperatureC)
	assert.Equal(t, 74.0, rec.Weather.HumidityPct)
	assert.Equal(t, 80, rec.Weather.WeatherCode)
	assert.Equal(t, "Rain Showers", rec.Weather.Condition)

	require.NotNil(t, rec.Weather.PM25)
	assert.Equal(t, 18.5, *rec.Weather.PM25)
	require.NotNil(t, rec.Weather.UVIndex)
	assert.Equal(t, 7.2, *rec.Weather.UVIndex)
	require.NotNil(t, rec.Weather.EuropeanAQI)
	assert.Equal(t, 42.0, *rec.Weather.EuropeanAQI)
}

func TestOpenMeteoAirQualityIsOptional(t *testing.T) {
	forecast := serveJSON(t, forecastFixture)
	brokenAir := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(brokenAir.Close)

	o := NewOpenMeteo(newTestClient(t), 7.190708, 125.455338, time.Minute)
	o.forecast = forecast.URL
	o.airQuality = brokenAir.URL

	records, err := o.Fetch(context.Background())
	require.NoError(t, err, "air-quality failure must not fail the reading")
	require.Len(t, records, 1)

	assert.Equal(t, 31.4, records[0].Weather.TemperatureC)
	assert.Nil(t, records[0].Weather.PM25)
	assert.Nil(t, records[0].Weather.UVIndex)
	assert.Nil(t, records[0].Weather.EuropeanAQI)
}

func TestOpenMeteoForecastFailureIsHard(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)
	air := serveJSON(t, airQualityFixture)

	o := NewOpenMeteo(newTestClient(t), 7.190708, 125.455338, time.Minute)
	o.forecast = broken.URL
	o.airQuality = air.URL

	_, err := o.Fetch(context.Background())
	require.Error(t, err)
}

func TestOpenMeteoMalformedTime(t *testing.T) {
	forecast := serveJSON(t, `{"utc_offset_seconds": 28800, "current": {"time": "yesterday-ish"}}`)

	o := NewOpenMeteo(newTestClient(t), 7.190708, 125.455338, time.Minute)
	o.forecast = forecast.URL

	_, err := o.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestParseOpenMeteoTime(t *testing.T) {
	at, err := parseOpenMeteoTime("2026-03-14T13:12", 28800)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC), at)

	at, err = parseOpenMeteoTime("2026-03-14T13:12", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 14, 13, 12, 0, 0, time.UTC), at)
}
