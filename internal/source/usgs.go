package source

import (
	"context"
	"time"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

// usgsFeeds in fallback order: prefer significant recent events, widen the
// net when the region has been quiet.
var usgsFeeds = []string{
	"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_day.geojson",
	"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_week.geojson",
	"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/2.5_day.geojson",
}

// Philippines bounding box, approximate.
const (
	phMinLat = 4.0
	phMaxLat = 21.0
	phMinLon = 116.0
	phMaxLon = 127.0
)

const usgsMaxEvents = 200

// USGS reads the USGS GeoJSON summary feeds and keeps events inside the
// Philippines bounding box.
type USGS struct {
	client   *fetch.Client
	feeds    []string
	interval time.Duration
}

func NewUSGS(client *fetch.Client, interval time.Duration) *USGS {
	return &USGS{client: client, feeds: usgsFeeds, interval: interval}
}

func (u *USGS) Name() string            { return "usgs" }
func (u *USGS) Kind() domain.Kind       { return domain.KindEarthquake }
func (u *USGS) Interval() time.Duration { return u.interval }

// geoJSON mirrors the subset of the USGS feed schema the monitor consumes.
type geoJSON struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Mag     float64 `json:"mag"`
			Place   string  `json:"place"`
			Time    int64   `json:"time"` // epoch milliseconds
			Tsunami int     `json:"tsunami"`
			Felt    int     `json:"felt"`
			Alert   string  `json:"alert"`
			URL     string  `json:"url"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
		} `json:"geometry"`
	} `json:"features"`
}

// Fetch walks the feed fallback chain until one yields Philippine events.
// When any feed was readable but none carried Philippine events, the result
// is a soft ErrEmptyResult; a quiet region is not a failure.
func (u *USGS) Fetch(ctx context.Context) ([]domain.Record, error) {
	var lastErr error
	anyReadable := false
	for _, url := range u.feeds {
		var feed geoJSON
		_, err := u.client.JSON(ctx, fetch.Request{
			URL:       url,
			Operation: "fetch_usgs_earthquakes",
			SourceID:  u.Name(),
		}, &feed)
		if err != nil {
			lastErr = err
			continue
		}
		anyReadable = true
		if records := u.convert(feed); len(records) > 0 {
			return records, nil
		}
	}
	if anyReadable || lastErr == nil {
		return nil, ErrEmptyResult
	}
	return nil, lastErr
}

func (u *USGS) convert(feed geoJSON) []domain.Record {
	features := feed.Features
	if len(features) > usgsMaxEvents {
		features = features[:usgsMaxEvents]
	}

	var records []domain.Record
	for _, f := range features {
		if len(f.Geometry.Coordinates) < 3 {
			continue
		}
		lon, lat, depth := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], f.Geometry.Coordinates[2]
		if lat < phMinLat || lat > phMaxLat || lon < phMinLon || lon > phMaxLon {
			continue
		}
		if f.Properties.Mag < 0 || f.Properties.Place == "" || f.Properties.Time <= 0 {
			continue
		}
		observedAt := time.UnixMilli(f.Properties.Time).UTC()

		records = append(records, domain.Record{
			Kind:       domain.KindEarthquake,
			SourceID:   u.Name(),
			ObservedAt: observedAt,
			Earthquake: &domain.EarthquakeEvent{
				ID:          domain.EarthquakeID(u.Name(), observedAt, f.Properties.Mag, f.Properties.Place),
				Magnitude:   f.Properties.Mag,
				DepthKM:     depth,
				Epicenter:   domain.Epicenter{Lat: lat, Lon: lon, Name: f.Properties.Place},
				TsunamiFlag: f.Properties.Tsunami == 1,
				FeltReports: f.Properties.Felt,
				AlertLevel:  f.Properties.Alert,
				DetailURL:   f.Properties.URL,
			},
		})
	}
	return validRecords(records)
}
