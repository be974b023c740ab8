// Package nws fetches and parses active alerts from the US National Weather
// Service API (GeoJSON).
package nws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

// DefaultBaseURL is the public NWS API.
const DefaultBaseURL = "https://api.weather.gov"

// Fetcher performs a GET against the upstream. *resilience.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Client fetches active alerts for one area, or the whole country when area is
// empty.
type Client struct {
	fetcher   Fetcher
	baseURL   string
	area      string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a client. NWS rejects requests without a User-Agent.
func NewClient(fetcher Fetcher, baseURL, area, userAgent string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		fetcher:   fetcher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		area:      strings.ToUpper(strings.TrimSpace(area)),
		userAgent: userAgent,
		logger:    logger,
	}
}

// Name identifies the source in logs and snapshot status.
func (c *Client) Name() string {
	if c.area == "" {
		return "nws"
	}
	return "nws:" + c.area
}

// Agency implements pipeline.Source.
func (c *Client) Agency() domain.Agency { return domain.AgencyNWS }

// URL returns the request URL for the client's area.
func (c *Client) URL() string {
	params := url.Values{"status": {"actual"}}
	if c.area != "" {
		params.Set("area", c.area)
	}
	return c.baseURL + "/alerts/active?" + params.Encode()
}

// Fetch retrieves and parses the current alerts.
func (c *Client) Fetch(ctx context.Context) (safeparse.Batch[domain.Alert], error) {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	header.Set("Accept", "application/geo+json")

	body, err := c.fetcher.Get(ctx, c.URL(), header)
	if err != nil {
		return safeparse.Batch[domain.Alert]{}, err
	}
	return ParseFeed(body, domain.Now(), c.logger.With("source", c.Name()))
}

type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type featureGeometry struct {
	Geometry json.RawMessage `json:"geometry"`
}

// ParseFeed parses a FeatureCollection. Malformed features are dropped and
// counted; alerts that are not actual, are cancellations, or have expired by
// now are filtered out without counting as failures.
func ParseFeed(data []byte, now time.Time, logger *slog.Logger) (safeparse.Batch[domain.Alert], error) {
	if logger == nil {
		logger = slog.Default()
	}
	fc := safeparse.DecodeJSON[featureCollection](data)
	if fc == nil {
		return safeparse.Batch[domain.Alert]{}, errors.New("nws: malformed feature collection")
	}

	batch := safeparse.ProcessBatch(fc.Features, func(raw json.RawMessage) (domain.Alert, error) {
		return parseFeature(raw, logger)
	}, logger, "agency", domain.AgencyNWS)

	kept := batch.Items[:0]
	for _, a := range batch.Items {
		if !strings.EqualFold(a.Status, "Actual") || !a.Active(now) {
			continue
		}
		kept = append(kept, a)
	}
	batch.Items = kept
	return batch, nil
}

func parseFeature(raw json.RawMessage, logger *slog.Logger) (domain.Alert, error) {
	doc := safeparse.ParseJSON(raw)
	if doc == nil {
		return domain.Alert{}, errors.New("malformed feature")
	}

	id := safeparse.GetString(doc, "properties.id", safeparse.GetString(doc, "id", ""))
	if id == "" {
		return domain.Alert{}, errors.New("feature has no id")
	}
	event := safeparse.SanitizeText(safeparse.GetString(doc, "properties.event", ""))
	if event == "" {
		return domain.Alert{}, fmt.Errorf("alert %s has no event", id)
	}

	a := domain.Alert{
		ID:           id,
		Agency:       domain.AgencyNWS,
		Jurisdiction: domain.JurisdictionUS,
		Event:        event,
		Category:     safeparse.SanitizeText(safeparse.GetString(doc, "properties.category", "")),
		Headline:     safeparse.SanitizeText(safeparse.GetString(doc, "properties.headline", "")),
		Description:  safeparse.SanitizeMultiline(safeparse.GetString(doc, "properties.description", "")),
		Instruction:  safeparse.SanitizeMultiline(safeparse.GetString(doc, "properties.instruction", "")),
		AreaDesc:     safeparse.SanitizeText(safeparse.GetString(doc, "properties.areaDesc", "")),
		Status:       safeparse.GetString(doc, "properties.status", "Actual"),
		MessageType:  safeparse.GetString(doc, "properties.messageType", ""),
		Language:     "en-US",
		Severity:     safeparse.GetString(doc, "properties.severity", ""),
		Urgency:      safeparse.GetString(doc, "properties.urgency", ""),
		Certainty:    safeparse.GetString(doc, "properties.certainty", ""),
		ZoneIDs:      zoneIDs(doc),
		Effective:    safeparse.ParseTime(safeparse.GetString(doc, "properties.effective", "")),
		Onset:        safeparse.ParseTime(safeparse.GetString(doc, "properties.onset", "")),
		Expires:      safeparse.ParseTime(safeparse.GetString(doc, "properties.expires", "")),
	}
	if ends := safeparse.ParseTime(safeparse.GetString(doc, "properties.ends", "")); !ends.IsZero() {
		a.Expires = ends
	}
	if web, ok := safeparse.SanitizeURL(safeparse.GetString(doc, "properties.@id", "")); ok {
		a.Web = web
	}

	var fg featureGeometry
	if err := json.Unmarshal(raw, &fg); err == nil {
		g, err := geo.ParseGeoJSON(fg.Geometry)
		if err != nil {
			logger.Debug("discarding invalid feed geometry", "alert_id", id, "error", err)
		}
		a.Geometry = g
	}
	return a, nil
}

// zoneIDs collects UGC codes and the trailing segment of each affectedZones
// URL, without duplicates.
func zoneIDs(doc any) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, ugc := range safeparse.GetStrings(doc, "properties.geocode.UGC") {
		add(ugc)
	}
	for _, ref := range safeparse.GetStrings(doc, "properties.affectedZones") {
		add(ref[strings.LastIndex(ref, "/")+1:])
	}
	return ids
}
