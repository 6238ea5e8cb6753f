// Package geo renders EVENT_RADARCAPE_POSITION payloads as standard
// geospatial types, for ground-station-location tooling downstream of the
// decode core.
package geo

import (
	"github.com/kpawlik/geojson"
	"github.com/paulmach/orb"

	"modescore/lib/modes"
)

// Point extracts the ground-station position carried by an
// EVENT_RADARCAPE_POSITION event as an orb.Point (lon, lat); ok is false for
// any other message or a not-yet-decorated position event.
func Point(msg *modes.Message) (pt orb.Point, ok bool) {
	if msg == nil || msg.DF != modes.EventRadarcapePosition || msg.EventData == nil {
		return orb.Point{}, false
	}
	lat, latOK := msg.EventData["lat"].(float32)
	lon, lonOK := msg.EventData["lon"].(float32)
	if !latOK || !lonOK {
		return orb.Point{}, false
	}
	return orb.Point{float64(lon), float64(lat)}, true
}

// Feature renders an EVENT_RADARCAPE_POSITION event as a GeoJSON Point
// Feature, carrying altitude and the receiver timestamp as properties.
func Feature(msg *modes.Message) (*geojson.Feature, bool) {
	pt, ok := Point(msg)
	if !ok {
		return nil, false
	}
	var alt float32
	if v, ok := msg.EventData["alt"].(float32); ok {
		alt = v
	}
	props := map[string]interface{}{
		"alt_m":     alt,
		"timestamp": msg.Timestamp,
	}
	geom := geojson.NewPoint(geojson.Coordinate{pt.Lon(), pt.Lat()})
	return geojson.NewFeature(geom, props, nil), true
}
