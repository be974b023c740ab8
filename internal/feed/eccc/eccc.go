// Package eccc fetches and parses Common Alerting Protocol (CAP) XML alerts
// from Environment and Climate Change Canada.
package eccc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

// DefaultLanguage is the info block kept when an alert is bilingual.
const DefaultLanguage = "en-CA"

const alertTypeParam = "Alert_Type"

// Fetcher performs a GET against the upstream. *resilience.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Client fetches one CAP document or feed URL.
type Client struct {
	name     string
	fetcher  Fetcher
	url      string
	language string
	logger   *slog.Logger
}

// NewClient creates a client for url. An empty language selects en-CA.
func NewClient(name string, fetcher Fetcher, url, language string, logger *slog.Logger) *Client {
	if language == "" {
		language = DefaultLanguage
	}
	if name == "" {
		name = "eccc"
	}
	return &Client{name: name, fetcher: fetcher, url: url, language: language, logger: logger}
}

// Name identifies the source in logs and snapshot status.
func (c *Client) Name() string { return c.name }

// Agency implements pipeline.Source.
func (c *Client) Agency() domain.Agency { return domain.AgencyECCC }

// Fetch retrieves and parses the document.
func (c *Client) Fetch(ctx context.Context) (safeparse.Batch[domain.Alert], error) {
	header := http.Header{}
	header.Set("Accept", "application/xml, text/xml")

	body, err := c.fetcher.Get(ctx, c.url, header)
	if err != nil {
		return safeparse.Batch[domain.Alert]{}, err
	}
	return ParseFeed(body, c.language, domain.Now(), c.logger.With("source", c.name))
}

// ParseFeed parses a CAP alert or a wrapper of alerts. Alerts that cannot be
// converted are dropped and counted. Alerts that are not actual, are
// cancellations, have ended, or have expired by now are filtered out.
func ParseFeed(data []byte, language string, now time.Time, logger *slog.Logger) (safeparse.Batch[domain.Alert], error) {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = DefaultLanguage
	}
	alerts, err := decodeAlerts(data)
	if err != nil {
		return safeparse.Batch[domain.Alert]{}, fmt.Errorf("eccc: %w", err)
	}

	batch := safeparse.ProcessBatch(alerts, func(a capAlert) (domain.Alert, error) {
		return convert(a, language, logger)
	}, logger, "agency", domain.AgencyECCC)

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

func convert(ca capAlert, language string, logger *slog.Logger) (domain.Alert, error) {
	id := strings.TrimPrefix(strings.TrimSpace(ca.Identifier), "urn:oid:")
	if id == "" {
		return domain.Alert{}, errors.New("CAP alert has no identifier")
	}
	info, ok := selectInfo(ca.Infos, language)
	if !ok {
		return domain.Alert{}, fmt.Errorf("CAP alert %s has no info block", id)
	}

	a := domain.Alert{
		ID:           id,
		Agency:       domain.AgencyECCC,
		Jurisdiction: domain.JurisdictionCA,
		Event:        safeparse.SanitizeText(info.Event),
		Headline:     safeparse.SanitizeText(info.Headline),
		Description:  safeparse.SanitizeMultiline(info.Description),
		Instruction:  safeparse.SanitizeMultiline(info.Instruction),
		AreaDesc:     areaDesc(info.Areas),
		Status:       strings.TrimSpace(ca.Status),
		MessageType:  strings.TrimSpace(ca.MsgType),
		Language:     strings.TrimSpace(info.Language),
		Severity:     strings.TrimSpace(info.Severity),
		Urgency:      strings.TrimSpace(info.Urgency),
		Certainty:    strings.TrimSpace(info.Certainty),
		AlertType:    strings.ToLower(info.parameter(alertTypeParam)),
		ZoneIDs:      geocodes(info.Areas),
		Effective:    safeparse.ParseTime(info.Effective),
		Onset:        safeparse.ParseTime(info.Onset),
		Expires:      safeparse.ParseTime(info.Expires),
	}
	if len(info.Categories) > 0 {
		a.Category = safeparse.SanitizeText(info.Categories[0])
	}
	if a.Event == "" {
		a.Event = a.Headline
	}
	if a.Event == "" {
		return domain.Alert{}, fmt.Errorf("CAP alert %s has no event", id)
	}
	if web, ok := safeparse.SanitizeURL(info.Web); ok {
		a.Web = web
	}
	a.Ended = ended(a.AlertType, a.Headline)

	g, bad := areaGeometry(info.Areas)
	if bad > 0 {
		logger.Debug("discarding invalid CAP polygons", "alert_id", id, "count", bad)
	}
	a.Geometry = g
	return a, nil
}

// ended reports whether an alert announces the end of a hazard, either by its
// alert type or by an "ended"/"terminé" headline.
func ended(alertType, headline string) bool {
	if alertType == "ended" {
		return true
	}
	h := strings.TrimRight(safeparse.Fold(headline), " .!")
	return strings.HasSuffix(h, "ended") || strings.HasSuffix(h, "termine") || strings.HasSuffix(h, "terminee")
}

func areaDesc(areas []capArea) string {
	descs := make([]string, 0, len(areas))
	for _, a := range areas {
		if d := safeparse.SanitizeText(a.AreaDesc); d != "" {
			descs = append(descs, d)
		}
	}
	return strings.Join(descs, "; ")
}

func geocodes(areas []capArea) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, a := range areas {
		for _, gc := range a.Geocodes {
			v := strings.TrimSpace(gc.Value)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			ids = append(ids, v)
		}
	}
	return ids
}
