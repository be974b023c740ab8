package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

// GeometryResolver supplies geometry for alerts. *resolver.Resolver satisfies it.
type GeometryResolver interface {
	Resolve(ctx context.Context, a domain.Alert) (*geo.Geometry, domain.GeometrySource)
}

// Transformer normalizes severity and resolves geometry for one alert.
type Transformer struct {
	resolver GeometryResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a Transformer. A nil resolver keeps only valid feed
// geometry.
func NewTransformer(resolver GeometryResolver, logger *slog.Logger, metrics *observability.Metrics) *Transformer {
	return &Transformer{
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Transform returns a with Level, Geometry and GeometrySource filled in. ctx
// bounds any zone lookups the resolver makes.
func (t *Transformer) Transform(ctx context.Context, a domain.Alert) domain.Alert {
	in := a.SeverityInput()
	a.Level = severity.Normalize(in)
	if kw, ok := severity.Override(in); ok {
		t.logger.Debug("severity override applied", "alert_id", a.ID, "keyword", kw)
	}

	a.Geometry, a.GeometrySource = t.resolve(ctx, a)
	t.metrics.GeometryResolved.WithLabelValues(string(a.GeometrySource)).Inc()
	if a.GeometrySource == domain.GeometryNone {
		t.logger.Warn("no geometry for alert, it cannot be matched",
			"alert_id", a.ID,
			"agency", a.Agency,
			"event", a.Event,
		)
	}
	return a
}

func (t *Transformer) resolve(ctx context.Context, a domain.Alert) (*geo.Geometry, domain.GeometrySource) {
	if t.resolver != nil {
		return t.resolver.Resolve(ctx, a)
	}
	if a.Geometry != nil && a.Geometry.Validate() == nil {
		return a.Geometry, domain.GeometryFromFeed
	}
	return nil, domain.GeometryNone
}
