// Package domain models hazard alerts from the US National Weather Service
// (NWS) and Environment and Climate Change Canada (ECCC), and the tribal land
// boundaries they are matched against.
//
// # Sources
//
// NWS publishes active alerts as a GeoJSON FeatureCollection at
// https://api.weather.gov/alerts/active. Each feature carries the CAP
// severity triple (severity, urgency, certainty) and either a polygon or a
// list of forecast zone references (UGC codes such as "WAZ558").
//
// ECCC publishes CAP 1.2 XML. Each alert holds one info block per language
// (en-CA, fr-CA); only the configured language is kept. Polygons are encoded
// as space-separated "lat,lon" pairs and are converted to GeoJSON [lon, lat]
// order with the ring closed. The Canadian alert type (warning, watch,
// advisory, statement, ended) arrives as a CAP parameter.
//
// # Severity
//
// Both vocabularies map onto the five-level [severity.Level] scale. See the
// severity package for the tables.
//
// # Geometry
//
// Alerts without a polygon get one from the zone table, or failing that from
// a coarse named-region bounding box. [GeometrySource] records which path
// produced the geometry so consumers can de-emphasize coarse matches.
//
// # Lifetime
//
// Alerts live for one poll cycle. Their ID is only used to de-duplicate within
// a cycle; nothing is carried over between cycles.
package domain
