package geo

import (
	"github.com/mmcloughlin/geohash"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// bucketPrecision is the geohash length stored alongside each establishment.
// Seven characters is a ~150m cell, comfortably under the automatic-merge
// radius, so same-bucket rows are always worth a distance check.
const bucketPrecision = 7

// EncodePoint converts a lng/lat pair to EWKB bytes with SRID 4326.
func EncodePoint(lng, lat float64) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}

// DecodePoint converts EWKB bytes back to a lng/lat pair.
func DecodePoint(data []byte) (lng, lat float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geo: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("geo: expected point geometry, got %T", g)
	}
	coords := p.Coords()
	return coords[0], coords[1], nil
}

// Bucket returns the geohash cell for a point at the dedupe scan precision.
func Bucket(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, bucketPrecision)
}
