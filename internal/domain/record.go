package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the telemetry class a Record belongs to. Each kind has a
// fixed payload schema.
type Kind string

const (
	KindEarthquake Kind = "earthquake"
	KindWeather    Kind = "weather"
	KindTsunami    Kind = "tsunami"
	KindTyphoon    Kind = "typhoon"
	KindRainfall   Kind = "rainfall"
	KindSeaLevel   Kind = "sea_level"
	KindTide       Kind = "tide"
)

// Record is the normalized shape produced by every source adapter. Exactly
// one payload pointer is populated, matching Kind. ObservedAt is the time the
// reading or event is attributed to, never the fetch time.
type Record struct {
	Kind       Kind      `json:"kind"`
	SourceID   string    `json:"source_id"`
	ObservedAt time.Time `json:"observed_at"`

	Earthquake *EarthquakeEvent  `json:"earthquake,omitempty"`
	Weather    *WeatherReading   `json:"weather,omitempty"`
	Tsunami    *TsunamiBulletin  `json:"tsunami,omitempty"`
	Typhoon    *TyphoonAdvisory  `json:"typhoon,omitempty"`
	Rainfall   *RainfallAdvisory `json:"rainfall,omitempty"`
	SeaLevel   *SeaLevelReading  `json:"sea_level,omitempty"`
	Tide       *TideExtremes     `json:"tide,omitempty"`
}

// Validate reports whether the record carries exactly the payload its Kind
// requires. Adapters call this before emitting; a failing record is dropped.
func (r Record) Validate() error {
	if r.SourceID == "" {
		return fmt.Errorf("record missing source id")
	}
	if r.ObservedAt.IsZero() {
		return fmt.Errorf("record missing observed-at time")
	}

	populated := 0
	for _, p := range []bool{
		r.Earthquake != nil, r.Weather != nil, r.Tsunami != nil,
		r.Typhoon != nil, r.Rainfall != nil, r.SeaLevel != nil, r.Tide != nil,
	} {
		if p {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("record must carry exactly one payload, has %d", populated)
	}

	var ok bool
	switch r.Kind {
	case KindEarthquake:
		ok = r.Earthquake != nil
	case KindWeather:
		ok = r.Weather != nil
	case KindTsunami:
		ok = r.Tsunami != nil
	case KindTyphoon:
		ok = r.Typhoon != nil
	case KindRainfall:
		ok = r.Rainfall != nil
	case KindSeaLevel:
		ok = r.SeaLevel != nil
	case KindTide:
		ok = r.Tide != nil
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if !ok {
		return fmt.Errorf("payload does not match kind %q", r.Kind)
	}
	return nil
}

// Epicenter locates an earthquake.
type Epicenter struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`
}

// EarthquakeEvent is the payload for Kind "earthquake". Immutable once
// created; retained in the rolling cluster window keyed by the record's
// ObservedAt.
type EarthquakeEvent struct {
	ID        string    `json:"id"`
	Magnitude float64   `json:"magnitude"`
	DepthKM   float64   `json:"depth_km"`
	Epicenter Epicenter `json:"epicenter"`

	// USGS-only enrichment, zero-valued for PHIVOLCS events.
	TsunamiFlag bool   `json:"tsunami_flag,omitempty"`
	FeltReports int    `json:"felt_reports,omitempty"`
	AlertLevel  string `json:"alert_level,omitempty"` // green, yellow, orange, red
	DetailURL   string `json:"detail_url,omitempty"`
}

// WeatherReading is the payload for Kind "weather". Core fields come from the
// Open-Meteo forecast API; UV/AQI/PM2.5 come from the air-quality API and are
// nil when that feed is unavailable.
type WeatherReading struct {
	TemperatureC  float64 `json:"temperature_c"`
	ApparentC     float64 `json:"apparent_c"`
	HumidityPct   float64 `json:"humidity_pct"`
	WindSpeedKPH  float64 `json:"wind_speed_kph"`
	WindDirDeg    float64 `json:"wind_dir_deg"`
	PressureHPA   float64 `json:"pressure_hpa"`
	CloudCoverPct float64 `json:"cloud_cover_pct"`
	PrecipMM      float64 `json:"precip_mm"`
	WeatherCode   int     `json:"weather_code"`
	Condition     string  `json:"condition"`

	UVIndex     *float64 `json:"uv_index,omitempty"`
	EuropeanAQI *float64 `json:"european_aqi,omitempty"`
	PM25        *float64 `json:"pm2_5,omitempty"`
}

// TsunamiBulletin is the payload for Kind "tsunami". An empty feed is a
// legitimate "no current advisories" state, not an error.
type TsunamiBulletin struct {
	Magnitude float64 `json:"magnitude"`
	Location  string  `json:"location"`
	Advisory  string  `json:"advisory"`
}

// TyphoonAdvisory is the payload for Kind "typhoon".
type TyphoonAdvisory struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Location string `json:"location"`
	WindKPH  int    `json:"wind_kph"`
	Movement string `json:"movement"`
}

// RainfallAdvisory is the payload for Kind "rainfall".
type RainfallAdvisory struct {
	Status    string `json:"status"` // NONE, ADVISORY, WARNING
	Intensity string `json:"intensity"`
	FloodRisk string `json:"flood_risk"`
	Region    string `json:"region"`
	City      string `json:"city"`
}

// SeaLevelReading is the payload for Kind "sea_level". DeviationM is the
// difference between the latest detided level and the rolling mean over the
// fetched window; Alert derives from it via SeaLevelAlert.
type SeaLevelReading struct {
	Station    string  `json:"station"`
	LevelM     float64 `json:"level_m"`
	MeanM      float64 `json:"mean_m"`
	DeviationM float64 `json:"deviation_m"`
	Alert      string  `json:"alert"`
	Samples    int     `json:"samples"`
}

// TidePoint is a single predicted tide extreme.
type TidePoint struct {
	At      time.Time `json:"at"`
	HeightM float64   `json:"height_m"`
}

// TideExtremes is the payload for Kind "tide": the next high and low tide.
// Either may be nil near the end of the forecast horizon.
type TideExtremes struct {
	NextHigh *TidePoint `json:"next_high,omitempty"`
	NextLow  *TidePoint `json:"next_low,omitempty"`
}

// ClusterResult is one "most active location" group derived from the rolling
// earthquake window. Derived and recomputed, never persisted.
type ClusterResult struct {
	LocationName string            `json:"location_name"`
	EventCount   int               `json:"event_count"`
	MaxMagnitude float64           `json:"max_magnitude"`
	Events       []EarthquakeEvent `json:"events"` // newest first
}

// EarthquakeID produces a deterministic dedup key from the fields that
// identify an event at its source. Refetching an unchanged feed yields the
// same IDs, so repeated rows collapse in the rolling window.
func EarthquakeID(sourceID string, observedAt time.Time, magnitude float64, epicenter string) string {
	input := fmt.Sprintf("%s|%s|%g|%s", sourceID, observedAt.UTC().Format(time.RFC3339), magnitude, epicenter)
	hash := sha256.Sum256([]byte(input))
	return sourceID + "-" + hex.EncodeToString(hash[:8])
}

// EpicenterLabel normalizes a free-text epicenter description into the
// grouping key used by the clustering engine. PHIVOLCS labels end with the
// province or city in parentheses; when present that name is the label,
// otherwise the whole trimmed string is used. Grouping is exact-match on this
// label, not geospatial proximity.
func EpicenterLabel(location string) string {
	location = strings.TrimSpace(location)
	open := strings.LastIndex(location, "(")
	close := strings.LastIndex(location, ")")
	if open >= 0 && close > open {
		if inner := strings.TrimSpace(location[open+1 : close]); inner != "" {
			return inner
		}
	}
	return location
}
