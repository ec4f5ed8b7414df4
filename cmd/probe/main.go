// Command probe runs a single fetch against one upstream source and prints
// the parsed records as JSON. Useful for checking upstream markup drift
// without starting the full service.
//
// Usage:
//
//	go run ./cmd/probe -source phivolcs
//	go run ./cmd/probe -source openmeteo -lat 14.5995 -lon 120.9842
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/misua/quake-monitor-web/internal/fetch"
	"github.com/misua/quake-monitor-web/internal/source"
)

func main() {
	name := flag.String("source", "", "source to probe: phivolcs, usgs, openmeteo, tsunami, pagasa-typhoon, pagasa-rainfall, sealevel, stormglass")
	lat := flag.Float64("lat", 7.190708, "latitude for location-bound sources")
	lon := flag.Float64("lon", 125.455338, "longitude for location-bound sources")
	region := flag.String("region", "Davao Region", "region name for rainfall advisories")
	city := flag.String("city", "Davao", "city name for rainfall advisories")
	station := flag.String("station", "dava", "IOC sea-level station code")
	timeout := flag.Duration("timeout", 30*time.Second, "overall probe timeout")
	flag.Parse()

	if *name == "" {
		flag.Usage()
		os.Exit(1)
	}

	fetchCfg := fetch.Config{
		ConnectTimeout:   5 * time.Second,
		ReadTimeout:      10 * time.Second,
		MaxResponseBytes: 10 << 20,
		MaxRetries:       1,
	}
	client := fetch.NewClient(fetchCfg, nil)

	// PHIVOLCS and PAGASA serve incomplete certificate chains.
	govCfg := fetchCfg
	govCfg.InsecureTLS = true
	govClient := fetch.NewClient(govCfg, nil)

	clock := clockwork.NewRealClock()

	var adapter source.Adapter
	switch *name {
	case "phivolcs":
		adapter = source.NewPHIVOLCS(govClient, time.Minute)
	case "usgs":
		adapter = source.NewUSGS(client, time.Minute)
	case "openmeteo":
		adapter = source.NewOpenMeteo(client, *lat, *lon, time.Minute)
	case "tsunami":
		adapter = source.NewTsunami(govClient, time.Minute)
	case "pagasa-typhoon":
		adapter = source.NewPAGASATyphoon(govClient, clock, time.Minute)
	case "pagasa-rainfall":
		adapter = source.NewPAGASARainfall(govClient, clock, *region, *city, time.Minute)
	case "sealevel":
		adapter = source.NewSeaLevel(client, *station, time.Minute)
	case "stormglass":
		key := os.Getenv("STORMGLASS_API_KEY")
		if key == "" {
			fmt.Fprintln(os.Stderr, "STORMGLASS_API_KEY is required for the stormglass probe")
			os.Exit(1)
		}
		adapter = source.NewStormglass(client, clock, key, *lat, *lon, time.Minute)
	default:
		fmt.Fprintf(os.Stderr, "unknown source %q\n", *name)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	records, err := adapter.Fetch(ctx)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe %s failed after %s: %v\n", adapter.Name(), elapsed.Round(time.Millisecond), err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "probe %s: %d records in %s\n", adapter.Name(), len(records), elapsed.Round(time.Millisecond))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		fmt.Fprintf(os.Stderr, "encode records: %v\n", err)
		os.Exit(1)
	}
}
