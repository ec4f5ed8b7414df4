// Package domain models the canonical telemetry records produced by the
// source adapters.
//
// # Data Sources
//
// Seismic events come from two independent feeds:
//
//	PHIVOLCS (https://earthquake.phivolcs.dost.gov.ph/) publishes the latest
//	earthquakes as a loosely structured HTML table. Column order is not
//	stable, so rows are decoded by header-name lookup. Epicenter labels
//	follow the form "10 km S 45° W of Manay (Davao Oriental)"; the trailing
//	parenthesized name is the normalized location label used as the
//	clustering grouping key. See [EpicenterLabel].
//
//	USGS (https://earthquake.usgs.gov/) publishes GeoJSON summary feeds at
//	several magnitude/period cutoffs. Events are filtered to the Philippines
//	bounding box (lat 4–21, lon 116–127).
//
// Weather, air quality and UV data come from Open-Meteo's forecast and
// air-quality APIs (JSON). Typhoon tracks and rainfall advisories are scraped
// from PAGASA bulletins, which are free-form prose; fields are extracted by
// pattern matching and a missing optional field never fails the whole record.
// Sea level readings come from the IOC station network's tabular output using
// the detided ("rad") column, which is the measurement best suited for
// tsunami anomaly detection. Tide extremes come from the Stormglass API when
// a key is configured.
//
// # Record Shape
//
// Every adapter emits [Record] values tagged by [Kind] with exactly one
// kind-specific payload populated. A row that cannot be coerced into its
// kind's full schema is dropped at parse time rather than emitted partially
// populated; [Record.Validate] enforces the pairing.
//
// # ID Generation
//
// Earthquake IDs are deterministic SHA-256 hashes of
// source|observed-at|magnitude|epicenter, so refetching an unchanged feed
// yields the same IDs and the rolling window can deduplicate repeated rows.
// See [EarthquakeID].
package domain
