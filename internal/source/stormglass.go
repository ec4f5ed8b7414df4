package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const stormglassTideURL = "https://api.stormglass.io/v2/tide/extremes/point"

// Stormglass fetches predicted tide extremes for the configured coordinates.
// The free tier allows ten requests per day, so this adapter belongs on the
// slowest schedule; the cache covers the gaps between fetches.
type Stormglass struct {
	client   *fetch.Client
	clock    clockwork.Clock
	apiKey   string
	lat, lon float64
	url      string
	interval time.Duration
}

func NewStormglass(client *fetch.Client, clock clockwork.Clock, apiKey string, lat, lon float64, interval time.Duration) *Stormglass {
	return &Stormglass{
		client:   client,
		clock:    clock,
		apiKey:   apiKey,
		lat:      lat,
		lon:      lon,
		url:      stormglassTideURL,
		interval: interval,
	}
}

func (s *Stormglass) Name() string            { return "stormglass" }
func (s *Stormglass) Kind() domain.Kind       { return domain.KindTide }
func (s *Stormglass) Interval() time.Duration { return s.interval }

type tideResponse struct {
	Data []struct {
		Time   time.Time `json:"time"`
		Height float64   `json:"height"`
		Type   string    `json:"type"` // "high" or "low"
	} `json:"data"`
}

func (s *Stormglass) Fetch(ctx context.Context) ([]domain.Record, error) {
	now := s.clock.Now().UTC()
	q := url.Values{
		"lat":   {fmt.Sprintf("%.6f", s.lat)},
		"lng":   {fmt.Sprintf("%.6f", s.lon)},
		"start": {now.Format(time.RFC3339)},
		"end":   {now.Add(24 * time.Hour).Format(time.RFC3339)},
	}

	var resp tideResponse
	_, err := s.client.JSON(ctx, fetch.Request{
		URL:       s.url + "?" + q.Encode(),
		Operation: "fetch_tide_extremes",
		SourceID:  s.Name(),
		Headers:   map[string]string{"Authorization": s.apiKey},
	}, &resp)
	if err != nil {
		return nil, err
	}

	extremes := &domain.TideExtremes{}
	for _, e := range resp.Data {
		if !e.Time.After(now) {
			continue
		}
		point := &domain.TidePoint{At: e.Time.UTC(), HeightM: e.Height}
		switch e.Type {
		case "high":
			if extremes.NextHigh == nil {
				extremes.NextHigh = point
			}
		case "low":
			if extremes.NextLow == nil {
				extremes.NextLow = point
			}
		}
		if extremes.NextHigh != nil && extremes.NextLow != nil {
			break
		}
	}
	if extremes.NextHigh == nil && extremes.NextLow == nil {
		return nil, ErrEmptyResult
	}

	records := validRecords([]domain.Record{{
		Kind:       domain.KindTide,
		SourceID:   s.Name(),
		ObservedAt: now,
		Tide:       extremes,
	}})
	if len(records) == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("tide record failed validation")}
	}
	return records, nil
}
