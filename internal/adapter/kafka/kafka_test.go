package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/perf"
)

func TestQuakeMessage(t *testing.T) {
	observedAt := time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC)
	record := domain.Record{
		Kind:       domain.KindEarthquake,
		SourceID:   "phivolcs",
		ObservedAt: observedAt,
		Earthquake: &domain.EarthquakeEvent{
			ID:        "phivolcs-deadbeef01234567",
			Magnitude: 6.1,
			Epicenter: domain.Epicenter{Lat: 7.07, Lon: 125.61, Name: "Manay (Davao Oriental)"},
		},
	}

	msg, err := quakeMessage(record)
	require.NoError(t, err)

	assert.Equal(t, []byte("phivolcs-deadbeef01234567"), msg.Key)
	assert.Contains(t, string(msg.Value), `"magnitude":6.1`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "alert_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("earthquake"), msg.Headers[0].Value)
	assert.Equal(t, "source", msg.Headers[1].Key)
	assert.Equal(t, []byte("phivolcs"), msg.Headers[1].Value)
	assert.Equal(t, "observed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(observedAt.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestQuakeMessageRequiresEarthquakePayload(t *testing.T) {
	_, err := quakeMessage(domain.Record{
		Kind:     domain.KindWeather,
		SourceID: "open-meteo",
		Weather:  &domain.WeatherReading{TemperatureC: 31},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no earthquake payload")
}

func TestSampleMessage(t *testing.T) {
	msg, err := sampleMessage(perf.Sample{
		Operation:      "fetch_phivolcs_earthquakes",
		SourceID:       "phivolcs",
		DurationMS:     5400,
		Classification: perf.ClassCritical,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("phivolcs"), msg.Key)
	assert.Contains(t, string(msg.Value), `"duration_ms":5400`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, []byte("performance"), msg.Headers[0].Value)
	assert.Equal(t, "classification", msg.Headers[1].Key)
	assert.Equal(t, []byte("critical"), msg.Headers[1].Value)
}
