// Command replay runs one poll cycle against saved feed files instead of the
// live agencies and prints the resulting snapshot as JSON. It is used to
// reproduce matching decisions offline.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -nws testdata/nws-active.json \
//	  -eccc testdata/eccc-cap.xml \
//	  -boundaries data/boundaries.geojson \
//	  -zones data/zones.db \
//	  -at 2025-01-15T12:00:00Z
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/zonedb"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/boundary"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/feed/eccc"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/feed/nws"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/pipeline"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resolver"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

type options struct {
	nwsPath        string
	ecccPath       string
	language       string
	boundariesPath string
	zonesPath      string
	at             string
}

func main() {
	var opts options
	flag.StringVar(&opts.nwsPath, "nws", "", "path to a saved NWS active alerts GeoJSON response")
	flag.StringVar(&opts.ecccPath, "eccc", "", "path to a saved ECCC CAP XML document")
	flag.StringVar(&opts.language, "lang", "en-CA", "preferred CAP info language")
	flag.StringVar(&opts.boundariesPath, "boundaries", "", "path to the boundary GeoJSON FeatureCollection")
	flag.StringVar(&opts.zonesPath, "zones", "", "optional zone SQLite database")
	flag.StringVar(&opts.at, "at", "", "evaluation time (RFC 3339); defaults to now")
	flag.Parse()

	if opts.boundariesPath == "" || (opts.nwsPath == "" && opts.ecccPath == "") {
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if code := run(context.Background(), opts, os.Stdout, logger); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, opts options, out io.Writer, logger *slog.Logger) int {
	if opts.at != "" {
		at, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -at: %v\n", err)
			return 1
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	boundaries, err := boundary.LoadFile(opts.boundariesPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load boundaries: %v\n", err)
		return 1
	}

	var zones resolver.ZoneTable
	if opts.zonesPath != "" {
		store, err := zonedb.Open(opts.zonesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: open zones: %v\n", err)
			return 1
		}
		mz, err := store.LoadAll(ctx, logger)
		store.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load zones: %v\n", err)
			return 1
		}
		zones = mz
	}

	var sources []pipeline.Source
	if opts.nwsPath != "" {
		sources = append(sources, fileSource("nws", domain.AgencyNWS, opts.nwsPath, func(data []byte) (safeparse.Batch[domain.Alert], error) {
			return nws.ParseFeed(data, domain.Now(), logger)
		}))
	}
	if opts.ecccPath != "" {
		sources = append(sources, fileSource("eccc", domain.AgencyECCC, opts.ecccPath, func(data []byte) (safeparse.Batch[domain.Alert], error) {
			return eccc.ParseFeed(data, opts.language, domain.Now(), logger)
		}))
	}

	metrics := observability.NewMetricsForTesting()
	transformer := pipeline.NewTransformer(resolver.New(zones), logger, metrics)
	p := pipeline.New(sources, transformer, match.NewMatcher(boundaries), nil, logger, metrics, pipeline.Options{})

	snap, err := p.Poll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: replay: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write snapshot: %v\n", err)
		return 1
	}
	return 0
}

func fileSource(name string, agency domain.Agency, path string, parse func([]byte) (safeparse.Batch[domain.Alert], error)) pipeline.FuncSource {
	return pipeline.FuncSource{
		SourceName:   name,
		SourceAgency: agency,
		FetchFunc: func(context.Context) (safeparse.Batch[domain.Alert], error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return safeparse.Batch[domain.Alert]{}, fmt.Errorf("read %s: %w", path, err)
			}
			return parse(data)
		},
	}
}
