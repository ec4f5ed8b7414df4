package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const (
	iocBaseURL      = "http://www.ioc-sealevelmonitoring.org/bgraph.php"
	seaLevelMaxRows = 64
	seaLevelWindow  = 30 // readings kept for the rolling mean
)

// SeaLevel reads the IOC sea-level station table and derives the deviation of
// the latest detided reading from the window mean. Large deviations are the
// tsunami-activity signal.
type SeaLevel struct {
	client   *fetch.Client
	station  string
	url      string
	interval time.Duration
}

// NewSeaLevel builds the adapter for one IOC station code (e.g. "davo" for
// Davao).
func NewSeaLevel(client *fetch.Client, station string, interval time.Duration) *SeaLevel {
	return &SeaLevel{
		client:   client,
		station:  station,
		url:      fmt.Sprintf("%s?code=%s&output=tab&period=0.5", iocBaseURL, station),
		interval: interval,
	}
}

func (s *SeaLevel) Name() string            { return "ioc-sealevel" }
func (s *SeaLevel) Kind() domain.Kind       { return domain.KindSeaLevel }
func (s *SeaLevel) Interval() time.Duration { return s.interval }

func (s *SeaLevel) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, _, err := s.client.HTML(ctx, fetch.Request{
		URL:       s.url,
		Operation: "fetch_sea_level",
		SourceID:  s.Name(),
	})
	if err != nil {
		return nil, err
	}
	return s.parse(doc)
}

type seaLevelSample struct {
	at    time.Time
	level float64
}

func (s *SeaLevel) parse(doc *html.Node) ([]domain.Record, error) {
	for _, table := range findAll(doc, "table") {
		rows := tableCells(table, seaLevelMaxRows)
		if len(rows) < 2 {
			continue
		}

		header := rows[0]
		timeCol := headerIndex(header, "time")
		levelCol := headerIndex(header, "rad") // detided measurement
		if levelCol < 0 {
			levelCol = headerIndex(header, "level")
		}
		if timeCol < 0 || levelCol < 0 {
			continue
		}

		samples := s.parseSamples(rows[1:], timeCol, levelCol)
		if len(samples) == 0 {
			continue
		}
		return []domain.Record{s.toRecord(samples)}, nil
	}
	return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no station table in document")}
}

func (s *SeaLevel) parseSamples(rows [][]string, timeCol, levelCol int) []seaLevelSample {
	var samples []seaLevelSample
	for _, row := range rows {
		at, err := time.Parse("2006-01-02 15:04:05", cellAt(row, timeCol))
		if err != nil {
			continue
		}
		level, err := strconv.ParseFloat(cellAt(row, levelCol), 64)
		if err != nil {
			continue
		}
		samples = append(samples, seaLevelSample{at: at.UTC(), level: level})
	}
	if len(samples) > seaLevelWindow {
		samples = samples[len(samples)-seaLevelWindow:]
	}
	return samples
}

func (s *SeaLevel) toRecord(samples []seaLevelSample) domain.Record {
	var sum float64
	for _, sample := range samples {
		sum += sample.level
	}
	mean := sum / float64(len(samples))
	latest := samples[len(samples)-1]
	deviation := latest.level - mean

	return domain.Record{
		Kind:       domain.KindSeaLevel,
		SourceID:   s.Name(),
		ObservedAt: latest.at,
		SeaLevel: &domain.SeaLevelReading{
			Station:    s.station,
			LevelM:     latest.level,
			MeanM:      mean,
			DeviationM: deviation,
			Alert:      domain.SeaLevelAlert(deviation),
			Samples:    len(samples),
		},
	}
}
