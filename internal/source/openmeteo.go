package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const (
	openMeteoForecastURL   = "https://api.open-meteo.com/v1/forecast"
	openMeteoAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// OpenMeteo merges the Open-Meteo forecast and air-quality feeds into one
// weather reading for the configured coordinates. The forecast feed is
// required; air quality is optional enrichment and its failure only leaves
// the UV/AQI/PM2.5 fields empty.
type OpenMeteo struct {
	client     *fetch.Client
	lat, lon   float64
	interval   time.Duration
	forecast   string
	airQuality string
}

func NewOpenMeteo(client *fetch.Client, lat, lon float64, interval time.Duration) *OpenMeteo {
	return &OpenMeteo{
		client:     client,
		lat:        lat,
		lon:        lon,
		interval:   interval,
		forecast:   openMeteoForecastURL,
		airQuality: openMeteoAirQualityURL,
	}
}

func (o *OpenMeteo) Name() string            { return "open-meteo" }
func (o *OpenMeteo) Kind() domain.Kind       { return domain.KindWeather }
func (o *OpenMeteo) Interval() time.Duration { return o.interval }

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Apparent      float64 `json:"apparent_temperature"`
		Precipitation float64 `json:"precipitation"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
		Pressure      float64 `json:"pressure_msl"`
		CloudCover    float64 `json:"cloud_cover"`
	} `json:"current"`
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
}

type airQualityResponse struct {
	Current struct {
		PM25        *float64 `json:"pm2_5"`
		UVIndex     *float64 `json:"uv_index"`
		EuropeanAQI *float64 `json:"european_aqi"`
	} `json:"current"`
}

func (o *OpenMeteo) Fetch(ctx context.Context) ([]domain.Record, error) {
	var forecast forecastResponse
	_, err := o.client.JSON(ctx, fetch.Request{
		URL:       o.forecastURL(),
		Operation: "fetch_weather",
		SourceID:  o.Name(),
	}, &forecast)
	if err != nil {
		return nil, err
	}

	observedAt, err := parseOpenMeteoTime(forecast.Current.Time, forecast.UTCOffsetSeconds)
	if err != nil {
		return nil, &ParseError{Source: o.Name(), Err: fmt.Errorf("current time: %w", err)}
	}

	reading := &domain.WeatherReading{
		TemperatureC:  forecast.Current.Temperature,
		ApparentC:     forecast.Current.Apparent,
		HumidityPct:   forecast.Current.Humidity,
		WindSpeedKPH:  forecast.Current.WindSpeed,
		WindDirDeg:    forecast.Current.WindDirection,
		PressureHPA:   forecast.Current.Pressure,
		CloudCoverPct: forecast.Current.CloudCover,
		PrecipMM:      forecast.Current.Precipitation,
		WeatherCode:   forecast.Current.WeatherCode,
		Condition:     domain.WeatherCondition(forecast.Current.WeatherCode),
	}

	// Air quality enrichment; a failed secondary fetch never fails the record.
	var air airQualityResponse
	if _, err := o.client.JSON(ctx, fetch.Request{
		URL:       o.airQualityURL(),
		Operation: "fetch_air_quality",
		SourceID:  o.Name(),
	}, &air); err == nil {
		reading.PM25 = air.Current.PM25
		reading.UVIndex = air.Current.UVIndex
		reading.EuropeanAQI = air.Current.EuropeanAQI
	}

	records := validRecords([]domain.Record{{
		Kind:       domain.KindWeather,
		SourceID:   o.Name(),
		ObservedAt: observedAt,
		Weather:    reading,
	}})
	if len(records) == 0 {
		return nil, &ParseError{Source: o.Name(), Err: fmt.Errorf("reading failed validation")}
	}
	return records, nil
}

func (o *OpenMeteo) forecastURL() string {
	q := url.Values{
		"latitude":  {fmt.Sprintf("%.6f", o.lat)},
		"longitude": {fmt.Sprintf("%.6f", o.lon)},
		"current": {"temperature_2m,relative_humidity_2m,apparent_temperature," +
			"precipitation,weather_code,wind_speed_10m,wind_direction_10m,pressure_msl,cloud_cover"},
		"timezone": {"Asia/Manila"},
	}
	return o.forecast + "?" + q.Encode()
}

func (o *OpenMeteo) airQualityURL() string {
	q := url.Values{
		"latitude":  {fmt.Sprintf("%.6f", o.lat)},
		"longitude": {fmt.Sprintf("%.6f", o.lon)},
		"current":   {"pm2_5,uv_index,european_aqi"},
		"timezone":  {"Asia/Manila"},
	}
	return o.airQuality + "?" + q.Encode()
}

// parseOpenMeteoTime decodes the API's local-time "2006-01-02T15:04" stamps
// using the response's UTC offset, so the record's ObservedAt is the reading
// time, not the fetch time.
func parseOpenMeteoTime(s string, offsetSeconds int) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.FixedZone("local", offsetSeconds))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
