package eccc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

// CAP 1.2 elements used by the parser. Tags carry no namespace so documents
// with or without the CAP namespace decode alike.
type capAlert struct {
	Identifier string    `xml:"identifier"`
	Sender     string    `xml:"sender"`
	Sent       string    `xml:"sent"`
	Status     string    `xml:"status"`
	MsgType    string    `xml:"msgType"`
	Scope      string    `xml:"scope"`
	References string    `xml:"references"`
	Infos      []capInfo `xml:"info"`
}

type capInfo struct {
	Language    string     `xml:"language"`
	Categories  []string   `xml:"category"`
	Event       string     `xml:"event"`
	Urgency     string     `xml:"urgency"`
	Severity    string     `xml:"severity"`
	Certainty   string     `xml:"certainty"`
	Effective   string     `xml:"effective"`
	Onset       string     `xml:"onset"`
	Expires     string     `xml:"expires"`
	SenderName  string     `xml:"senderName"`
	Headline    string     `xml:"headline"`
	Description string     `xml:"description"`
	Instruction string     `xml:"instruction"`
	Web         string     `xml:"web"`
	Parameters  []capValue `xml:"parameter"`
	Areas       []capArea  `xml:"area"`
}

type capArea struct {
	AreaDesc string     `xml:"areaDesc"`
	Polygons []string   `xml:"polygon"`
	Geocodes []capValue `xml:"geocode"`
}

type capValue struct {
	Name  string `xml:"valueName"`
	Value string `xml:"value"`
}

// capFeed is any wrapper element holding several alerts.
type capFeed struct {
	Alerts []capAlert `xml:"alert"`
}

// decodeAlerts accepts a single <alert> document or a wrapper of alerts.
func decodeAlerts(data []byte) ([]capAlert, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	if root == "alert" {
		a := safeparse.DecodeXML[capAlert](data)
		if a == nil {
			return nil, errors.New("malformed CAP alert")
		}
		return []capAlert{*a}, nil
	}
	feed := safeparse.DecodeXML[capFeed](data)
	if feed == nil {
		return nil, fmt.Errorf("malformed CAP feed <%s>", root)
	}
	return feed.Alerts, nil
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("empty CAP document")
			}
			return "", fmt.Errorf("read CAP document: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// selectInfo returns the info block in the wanted language, or the first one.
func selectInfo(infos []capInfo, language string) (capInfo, bool) {
	if len(infos) == 0 {
		return capInfo{}, false
	}
	for _, info := range infos {
		if strings.EqualFold(strings.TrimSpace(info.Language), language) {
			return info, true
		}
	}
	return infos[0], true
}

// parameter returns the value of the first parameter whose name ends with suffix.
func (i capInfo) parameter(suffix string) string {
	for _, p := range i.Parameters {
		if strings.HasSuffix(strings.TrimSpace(p.Name), suffix) {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

// parsePolygon converts CAP "lat,lon lat,lon ..." text into a closed ring in
// [lon, lat] order.
func parsePolygon(text string) (geo.Ring, error) {
	pairs := strings.Fields(text)
	ring := make(geo.Ring, 0, len(pairs)+1)
	for _, pair := range pairs {
		latText, lonText, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("%w: bad coordinate pair %q", geo.ErrInvalidGeometry, pair)
		}
		lat, okLat := safeparse.ParseLatitude(latText)
		lon, okLon := safeparse.ParseLongitude(lonText)
		if !okLat || !okLon {
			return nil, fmt.Errorf("%w: coordinate out of range %q", geo.ErrInvalidGeometry, pair)
		}
		ring = append(ring, geo.Point{Lon: lon, Lat: lat})
	}
	ring = geo.CloseRing(ring)
	if err := ring.Validate(); err != nil {
		return nil, err
	}
	return ring, nil
}

// areaGeometry unions the valid polygons of every area. Invalid polygons are
// skipped and reported through the returned error count.
func areaGeometry(areas []capArea) (*geo.Geometry, int) {
	var polys []geo.Polygon
	bad := 0
	for _, area := range areas {
		for _, text := range area.Polygons {
			ring, err := parsePolygon(text)
			if err != nil {
				bad++
				continue
			}
			polys = append(polys, geo.Polygon{ring})
		}
	}
	if len(polys) == 0 {
		return nil, bad
	}
	g := geo.FromPolygons(polys)
	return &g, bad
}
