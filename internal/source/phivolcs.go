package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const (
	phivolcsURL     = "https://earthquake.phivolcs.dost.gov.ph/"
	phivolcsMaxRows = 64 // table rows decoded before the event cap applies
	phivolcsTopN    = 8  // most recent events kept per fetch
)

// phivolcsTimeLayout matches the bulletin format "02 January 2006 - 03:04 PM"
// in Philippine local time.
const phivolcsTimeLayout = "02 January 2006 - 03:04 PM"

var manilaTZ = time.FixedZone("PST", 8*60*60)

// PHIVOLCS scrapes the latest-earthquakes table published by the Philippine
// Institute of Volcanology and Seismology.
type PHIVOLCS struct {
	client   *fetch.Client
	url      string
	interval time.Duration
}

// NewPHIVOLCS builds the adapter. interval is the earthquake-class polling
// cadence.
func NewPHIVOLCS(client *fetch.Client, interval time.Duration) *PHIVOLCS {
	return &PHIVOLCS{client: client, url: phivolcsURL, interval: interval}
}

func (p *PHIVOLCS) Name() string            { return "phivolcs" }
func (p *PHIVOLCS) Kind() domain.Kind       { return domain.KindEarthquake }
func (p *PHIVOLCS) Interval() time.Duration { return p.interval }

// Fetch downloads the bulletin page and parses the earthquake table.
func (p *PHIVOLCS) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, _, err := p.client.HTML(ctx, fetch.Request{
		URL:       p.url,
		Operation: "fetch_phivolcs_earthquakes",
		SourceID:  p.Name(),
	})
	if err != nil {
		return nil, err
	}
	return p.parse(doc)
}

func (p *PHIVOLCS) parse(doc *html.Node) ([]domain.Record, error) {
	for _, table := range findAll(doc, "table") {
		rows := tableCells(table, phivolcsMaxRows)
		if len(rows) < 2 {
			continue
		}

		header := rows[0]
		dateCol := headerIndex(header, "date", "time")
		magCol := headerIndex(header, "mag")
		if dateCol < 0 || magCol < 0 {
			continue // not the earthquake table
		}
		latCol := headerIndex(header, "lat")
		lonCol := headerIndex(header, "lon")
		depthCol := headerIndex(header, "depth")
		locCol := headerIndex(header, "location")

		var records []domain.Record
		for _, row := range rows[1:] {
			if len(records) >= phivolcsTopN {
				break
			}
			rec, ok := p.parseRow(row, dateCol, magCol, latCol, lonCol, depthCol, locCol)
			if ok {
				records = append(records, rec)
			}
		}

		records = validRecords(records)
		if len(records) == 0 {
			return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("earthquake table yielded no coercible rows")}
		}
		return records, nil
	}
	return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("no earthquake table in document")}
}

// parseRow coerces one table row. Rows missing any required field are dropped
// rather than emitted partially populated.
func (p *PHIVOLCS) parseRow(row []string, dateCol, magCol, latCol, lonCol, depthCol, locCol int) (domain.Record, bool) {
	observedAt, err := time.ParseInLocation(phivolcsTimeLayout, cellAt(row, dateCol), manilaTZ)
	if err != nil {
		return domain.Record{}, false
	}
	magnitude, err := strconv.ParseFloat(cellAt(row, magCol), 64)
	if err != nil || magnitude < 0 {
		return domain.Record{}, false
	}
	location := cleanLocation(cellAt(row, locCol))
	if location == "" {
		return domain.Record{}, false
	}

	// Coordinates and depth are best-effort; the bulletin sometimes omits them.
	lat, _ := strconv.ParseFloat(cellAt(row, latCol), 64)
	lon, _ := strconv.ParseFloat(cellAt(row, lonCol), 64)
	depth, _ := strconv.ParseFloat(strings.TrimSuffix(cellAt(row, depthCol), " km"), 64)

	return domain.Record{
		Kind:       domain.KindEarthquake,
		SourceID:   p.Name(),
		ObservedAt: observedAt,
		Earthquake: &domain.EarthquakeEvent{
			ID:        domain.EarthquakeID(p.Name(), observedAt, magnitude, location),
			Magnitude: magnitude,
			DepthKM:   depth,
			Epicenter: domain.Epicenter{Lat: lat, Lon: lon, Name: location},
		},
	}, true
}

// cleanLocation strips the mojibake the PHIVOLCS page embeds around degree
// signs ("Â°" for "°").
func cleanLocation(s string) string {
	s = strings.ReplaceAll(s, "Â°", "°")
	s = strings.ReplaceAll(s, "Â", "")
	return strings.TrimSpace(s)
}
