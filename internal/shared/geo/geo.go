package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

const earthRadiusM = 6371000.0

// Point is a bare WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceM returns the great-circle distance between two coordinates in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusM
}

// HaversineKm returns the great-circle distance between two coordinates in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceM(lat1, lng1, lat2, lng2) / 1000
}

// NearestOnPolyline finds the vertex of line closest to (lat, lng) by brute
// force and returns its index and distance in meters. An empty line yields
// (-1, +Inf).
func NearestOnPolyline(lat, lng float64, line []Point) (int, float64) {
	idx := -1
	best := math.Inf(1)
	for i, p := range line {
		if d := DistanceM(lat, lng, p.Lat, p.Lng); d < best {
			best = d
			idx = i
		}
	}
	return idx, best
}

// Bearing returns the initial bearing from the first to the second coordinate
// in degrees, normalized to [0, 360).
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lngDiff := (lng2 - lng1) * math.Pi / 180

	y := math.Sin(lngDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lngDiff)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// BearingDelta returns the absolute difference between two headings in
// degrees, normalized to [0, 180].
func BearingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
