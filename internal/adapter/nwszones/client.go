// Package nwszones looks up NWS zone outlines from the public zones API for
// alerts that reference zones missing from the local zone table.
package nwszones

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

// ErrUnknownZoneType is returned for ids that are not forecast or county UGC codes.
var ErrUnknownZoneType = errors.New("unknown zone type")

// Fetcher performs a GET against the upstream. *resilience.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Client fetches a single zone's geometry.
type Client struct {
	fetcher   Fetcher
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a zone client against baseURL, normally https://api.weather.gov.
func NewClient(fetcher Fetcher, baseURL, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		fetcher:   fetcher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		logger:    logger,
	}
}

// zonePath maps a UGC code (SSZNNN or SSCNNN) to its API path.
func zonePath(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) != 6 {
		return "", fmt.Errorf("%w: %q", ErrUnknownZoneType, id)
	}
	switch id[2] {
	case 'Z':
		return "/zones/forecast/" + url.PathEscape(id), nil
	case 'C':
		return "/zones/county/" + url.PathEscape(id), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownZoneType, id)
	}
}

// Lookup returns the zone's outline. A zone the API returns without
// geometry yields (nil, nil).
func (c *Client) Lookup(ctx context.Context, id string) (*geo.Geometry, error) {
	path, err := zonePath(id)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", "application/geo+json")
	header.Set("User-Agent", c.userAgent)

	body, err := c.fetcher.Get(ctx, c.baseURL+path, header)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", id, err)
	}

	feature := safeparse.DecodeJSON[zoneFeature](body)
	if feature == nil {
		return nil, fmt.Errorf("zone %s: response is not a JSON feature", id)
	}
	g, err := geo.ParseGeoJSON(feature.Geometry)
	if err != nil {
		return nil, fmt.Errorf("zone %s: %w", id, err)
	}
	if g == nil {
		c.logger.Debug("zone has no geometry", "zone", id)
	}
	return g, nil
}

type zoneFeature struct {
	Geometry json.RawMessage `json:"geometry"`
}
