package source

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const (
	tsunamiURL     = "https://tsunami.phivolcs.dost.gov.ph/"
	tsunamiMaxRows = 40
)

var (
	magnitudeCellRe = regexp.MustCompile(`^\d\.\d$`)
	numericCellRe   = regexp.MustCompile(`^\d+\.?\d*$`)

	monthNames = []string{
		"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	}
)

// Tsunami scrapes the PHIVOLCS tsunami bulletin board. The board's column
// layout drifts, so each cell is classified by shape (magnitude, date,
// location) instead of by position. Zero bulletins is the normal state.
type Tsunami struct {
	client   *fetch.Client
	url      string
	interval time.Duration
}

func NewTsunami(client *fetch.Client, interval time.Duration) *Tsunami {
	return &Tsunami{client: client, url: tsunamiURL, interval: interval}
}

func (t *Tsunami) Name() string            { return "phivolcs-tsunami" }
func (t *Tsunami) Kind() domain.Kind       { return domain.KindTsunami }
func (t *Tsunami) Interval() time.Duration { return t.interval }

func (t *Tsunami) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, _, err := t.client.HTML(ctx, fetch.Request{
		URL:       t.url,
		Operation: "fetch_tsunami_bulletins",
		SourceID:  t.Name(),
	})
	if err != nil {
		return nil, err
	}

	records := t.parse(doc)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	return records, nil
}

func (t *Tsunami) parse(doc *html.Node) []domain.Record {
	var records []domain.Record
	for _, table := range findAll(doc, "table") {
		for _, row := range tableCells(table, tsunamiMaxRows) {
			if rec, ok := t.parseRow(row); ok {
				records = append(records, rec)
			}
		}
	}
	return validRecords(records)
}

// parseRow classifies a row's cells by shape. A row qualifies only when it
// carries a plausible magnitude plus a dated bulletin entry.
func (t *Tsunami) parseRow(row []string) (domain.Record, bool) {
	if len(row) < 3 {
		return domain.Record{}, false
	}

	var magnitude float64
	var haveMag bool
	for _, cell := range row {
		if magnitudeCellRe.MatchString(cell) {
			if v, err := strconv.ParseFloat(cell, 64); err == nil && v >= 3.0 && v <= 9.9 {
				magnitude, haveMag = v, true
				break
			}
		}
	}
	if !haveMag {
		return domain.Record{}, false
	}

	var observedAt time.Time
	for _, cell := range row {
		if !containsMonth(cell) {
			continue
		}
		if at, err := time.ParseInLocation(phivolcsTimeLayout, cell, manilaTZ); err == nil {
			observedAt = at
			break
		}
	}
	if observedAt.IsZero() {
		return domain.Record{}, false
	}

	location := pickLocationCell(row, magnitude)
	if location == "" {
		return domain.Record{}, false
	}

	advisory := "No Advisory"
	for _, cell := range row {
		lower := strings.ToLower(cell)
		if strings.Contains(lower, "advisory") || strings.Contains(lower, "warning") {
			advisory = cell
			break
		}
	}

	return domain.Record{
		Kind:       domain.KindTsunami,
		SourceID:   t.Name(),
		ObservedAt: observedAt,
		Tsunami: &domain.TsunamiBulletin{
			Magnitude: magnitude,
			Location:  cleanLocation(location),
			Advisory:  advisory,
		},
	}, true
}

// pickLocationCell returns the first cell that looks like a place name:
// alphabetic, reasonably long, and not a date, coordinate or magnitude.
func pickLocationCell(row []string, magnitude float64) string {
	magStr := strconv.FormatFloat(magnitude, 'f', 1, 64)
	for _, cell := range row {
		switch {
		case cell == magStr,
			containsMonth(cell),
			strings.Contains(cell, "°"),
			strings.Contains(strings.ToLower(cell), "deg"),
			numericCellRe.MatchString(cell),
			len(cell) <= 5:
			continue
		}
		if strings.IndexFunc(cell, isLetter) >= 0 {
			return cell
		}
	}
	return ""
}

func containsMonth(s string) bool {
	for _, m := range monthNames {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
