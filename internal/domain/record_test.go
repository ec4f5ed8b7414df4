package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testObservedAt = time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC)

func quakeRecord() Record {
	return Record{
		Kind:       KindEarthquake,
		SourceID:   "phivolcs",
		ObservedAt: testObservedAt,
		Earthquake: &EarthquakeEvent{
			ID:        "phivolcs-abc",
			Magnitude: 4.8,
			DepthKM:   10,
			Epicenter: Epicenter{Lat: 7.07, Lon: 125.61, Name: "009 km S 24 E of Manay (Davao Oriental)"},
		},
	}
}

func TestRecordValidate(t *testing.T) {
	t.Run("valid earthquake record", func(t *testing.T) {
		require.NoError(t, quakeRecord().Validate())
	})

	t.Run("missing source id", func(t *testing.T) {
		r := quakeRecord()
		r.SourceID = ""
		assert.ErrorContains(t, r.Validate(), "source id")
	})

	t.Run("missing observed-at", func(t *testing.T) {
		r := quakeRecord()
		r.ObservedAt = time.Time{}
		assert.ErrorContains(t, r.Validate(), "observed-at")
	})

	t.Run("no payload", func(t *testing.T) {
		r := quakeRecord()
		r.Earthquake = nil
		assert.ErrorContains(t, r.Validate(), "exactly one payload")
	})

	t.Run("two payloads", func(t *testing.T) {
		r := quakeRecord()
		r.Weather = &WeatherReading{TemperatureC: 31}
		assert.ErrorContains(t, r.Validate(), "exactly one payload")
	})

	t.Run("payload does not match kind", func(t *testing.T) {
		r := quakeRecord()
		r.Kind = KindWeather
		assert.ErrorContains(t, r.Validate(), "does not match kind")
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := quakeRecord()
		r.Kind = "volcanic"
		assert.ErrorContains(t, r.Validate(), "unknown record kind")
	})
}

func TestEarthquakeID(t *testing.T) {
	at := time.Date(2026, time.March, 14, 5, 12, 0, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		a := EarthquakeID("phivolcs", at, 4.8, "009 km S 24 E of Manay (Davao Oriental)")
		b := EarthquakeID("phivolcs", at, 4.8, "009 km S 24 E of Manay (Davao Oriental)")
		assert.Equal(t, a, b)
		assert.True(t, strings.HasPrefix(a, "phivolcs-"))
	})

	t.Run("timezone-insensitive", func(t *testing.T) {
		manila := at.In(time.FixedZone("PST", 8*60*60))
		a := EarthquakeID("phivolcs", at, 4.8, "Manay")
		b := EarthquakeID("phivolcs", manila, 4.8, "Manay")
		assert.Equal(t, a, b)
	})

	t.Run("any field change changes the id", func(t *testing.T) {
		base := EarthquakeID("phivolcs", at, 4.8, "Manay")
		assert.NotEqual(t, base, EarthquakeID("usgs", at, 4.8, "Manay"))
		assert.NotEqual(t, base, EarthquakeID("phivolcs", at.Add(time.Minute), 4.8, "Manay"))
		assert.NotEqual(t, base, EarthquakeID("phivolcs", at, 4.9, "Manay"))
		assert.NotEqual(t, base, EarthquakeID("phivolcs", at, 4.8, "Davao Gulf"))
	})
}

func TestEpicenterLabel(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
	}{
		{"parenthesized province", "009 km S 24 E of Manay (Davao Oriental)", "Davao Oriental"},
		{"parenthesized city", "012 km N 79 W of Davao City (Davao Del Sur)", "Davao Del Sur"},
		{"no parentheses", "Davao Gulf", "Davao Gulf"},
		{"empty parentheses fall back", "Somewhere ()", "Somewhere ()"},
		{"last pair wins", "Near (A) town (B)", "B"},
		{"surrounding whitespace", "  Davao Gulf  ", "Davao Gulf"},
		{"whitespace inside parentheses", "Offshore ( Surigao Del Sur )", "Surigao Del Sur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EpicenterLabel(tt.location))
		})
	}
}
