package source

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/html"

	"github.com/misua/quake-monitor-web/internal/domain"
	"github.com/misua/quake-monitor-web/internal/fetch"
)

const (
	pagasaBulletinURL = "https://www.pagasa.dost.gov.ph/tropical-cyclone/severe-weather-bulletin"
	pagasaForecastURL = "https://www.pagasa.dost.gov.ph/weather"
)

var (
	errNoBulletinBody = errors.New("bulletin body not found")
	errNoCycloneName  = errors.New("no cyclone name in bulletin")
)

// PAGASA bulletins are free-form prose, so extraction is pattern matching
// over the page text rather than structural parsing.
var (
	typhoonNameRe = regexp.MustCompile(`(?:Super Typhoon|Typhoon|Severe Tropical Storm|Tropical Storm|Tropical Depression)\s+"?([A-Z][A-Z]+)"?`)
	locationRe    = regexp.MustCompile(`(?i)(?:located|estimated)\s+at\s+([^.]+)`)
	windRe        = regexp.MustCompile(`(\d+)\s*km/h`)
	movementRe    = regexp.MustCompile(`(?i)moving\s+([^.]+)`)
)

// PAGASATyphoon scrapes the severe weather bulletin for active tropical
// cyclones. "No tropical cyclone" is a legitimate empty state.
type PAGASATyphoon struct {
	client   *fetch.Client
	clock    clockwork.Clock
	url      string
	interval time.Duration
}

func NewPAGASATyphoon(client *fetch.Client, clock clockwork.Clock, interval time.Duration) *PAGASATyphoon {
	return &PAGASATyphoon{client: client, clock: clock, url: pagasaBulletinURL, interval: interval}
}

func (p *PAGASATyphoon) Name() string            { return "pagasa-typhoon" }
func (p *PAGASATyphoon) Kind() domain.Kind       { return domain.KindTyphoon }
func (p *PAGASATyphoon) Interval() time.Duration { return p.interval }

func (p *PAGASATyphoon) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, _, err := p.client.HTML(ctx, fetch.Request{
		URL:       p.url,
		Operation: "fetch_typhoon_bulletin",
		SourceID:  p.Name(),
	})
	if err != nil {
		return nil, err
	}
	return p.parse(doc)
}

func (p *PAGASATyphoon) parse(doc *html.Node) ([]domain.Record, error) {
	text := bulletinText(doc)
	if text == "" {
		return nil, &ParseError{Source: p.Name(), Err: errNoBulletinBody}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "no tropical cyclone") || strings.Contains(lower, "no active") {
		return nil, ErrEmptyResult
	}

	name := typhoonNameRe.FindStringSubmatch(text)
	if name == nil {
		// A bulletin page without a named cyclone and without the "no
		// cyclone" phrase means the layout changed under us.
		return nil, &ParseError{Source: p.Name(), Err: errNoCycloneName}
	}

	advisory := &domain.TyphoonAdvisory{
		Name:     name[1],
		Location: "Unknown location",
		Movement: "Unknown",
	}
	if m := locationRe.FindStringSubmatch(text); m != nil {
		advisory.Location = strings.TrimSpace(m[1])
	}
	if m := windRe.FindStringSubmatch(text); m != nil {
		if wind, err := strconv.Atoi(m[1]); err == nil {
			advisory.WindKPH = wind
		}
	}
	if m := movementRe.FindStringSubmatch(text); m != nil {
		advisory.Movement = strings.TrimSpace(m[1])
	}
	advisory.Category = domain.TyphoonCategory(advisory.WindKPH)

	records := validRecords([]domain.Record{{
		Kind:       domain.KindTyphoon,
		SourceID:   p.Name(),
		ObservedAt: p.clock.Now().UTC(),
		Typhoon:    advisory,
	}})
	if len(records) == 0 {
		return nil, &ParseError{Source: p.Name(), Err: errNoCycloneName}
	}
	return records, nil
}

// PAGASARainfall scans the public forecast page for rainfall and flood
// signals mentioning the configured region.
type PAGASARainfall struct {
	client   *fetch.Client
	clock    clockwork.Clock
	url      string
	region   string
	city     string
	interval time.Duration
}

func NewPAGASARainfall(client *fetch.Client, clock clockwork.Clock, region, city string, interval time.Duration) *PAGASARainfall {
	return &PAGASARainfall{client: client, clock: clock, url: pagasaForecastURL, region: region, city: city, interval: interval}
}

func (p *PAGASARainfall) Name() string            { return "pagasa-rainfall" }
func (p *PAGASARainfall) Kind() domain.Kind       { return domain.KindRainfall }
func (p *PAGASARainfall) Interval() time.Duration { return p.interval }

func (p *PAGASARainfall) Fetch(ctx context.Context) ([]domain.Record, error) {
	doc, _, err := p.client.HTML(ctx, fetch.Request{
		URL:       p.url,
		Operation: "fetch_rainfall_forecast",
		SourceID:  p.Name(),
	})
	if err != nil {
		return nil, err
	}

	advisory := p.classify(strings.ToLower(bulletinText(doc)))
	records := validRecords([]domain.Record{{
		Kind:       domain.KindRainfall,
		SourceID:   p.Name(),
		ObservedAt: p.clock.Now().UTC(),
		Rainfall:   advisory,
	}})
	if len(records) == 0 {
		return nil, &ParseError{Source: p.Name(), Err: errNoBulletinBody}
	}
	return records, nil
}

// classify maps forecast keywords near the configured region to an advisory
// level. Absence of any mention is a NONE advisory, not a failure.
func (p *PAGASARainfall) classify(text string) *domain.RainfallAdvisory {
	advisory := &domain.RainfallAdvisory{
		Status:    "NONE",
		Intensity: "None",
		FloodRisk: "Low",
		Region:    p.region,
		City:      p.city,
	}

	mentionsRegion := strings.Contains(text, strings.ToLower(p.region)) ||
		strings.Contains(text, strings.ToLower(p.city)) ||
		strings.Contains(text, "mindanao")
	if !mentionsRegion {
		return advisory
	}

	switch {
	case strings.Contains(text, "heavy rain") || strings.Contains(text, "intense rain"):
		advisory.Status = "WARNING"
		advisory.Intensity = "Heavy"
		advisory.FloodRisk = "High"
	case strings.Contains(text, "moderate rain") || strings.Contains(text, "scattered rainshowers"):
		advisory.Status = "ADVISORY"
		advisory.Intensity = "Moderate"
		advisory.FloodRisk = "Moderate"
	case strings.Contains(text, "light rain") || strings.Contains(text, "isolated rainshowers"):
		advisory.Intensity = "Light"
	}
	if strings.Contains(text, "flood") {
		advisory.Status = "WARNING"
		advisory.FloodRisk = "High"
	}
	return advisory
}

// bulletinText extracts the page's article body text, falling back to the
// whole body when no article container is present.
func bulletinText(doc *html.Node) string {
	for _, tag := range []string{"article", "main", "body"} {
		if nodes := findAll(doc, tag); len(nodes) > 0 {
			if text := nodeText(nodes[0]); text != "" {
				return text
			}
		}
	}
	return ""
}
