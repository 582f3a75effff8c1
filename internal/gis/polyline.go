package gis

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// EarthRadius in meters
const EarthRadius = 6371000

// Degrees to radians conversion
const degToRad = math.Pi / 180

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// ValidateCoordinate checks that p is a finite (longitude, latitude) pair inside WGS84 bounds.
func ValidateCoordinate(p orb.Point) error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("%w: non-finite value in %v", ErrInvalidCoordinate, p)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinate, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinate, lat)
	}
	return nil
}

// ParseCoordinate turns a raw [lon, lat] array into a validated point.
func ParseCoordinate(raw []float64) (orb.Point, error) {
	if len(raw) != 2 {
		return orb.Point{}, fmt.Errorf("%w: expected 2 values, got %d", ErrInvalidCoordinate, len(raw))
	}
	p := orb.Point{raw[0], raw[1]}
	if err := ValidateCoordinate(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

// DistanceMeters is the haversine great-circle distance between two points.
func DistanceMeters(a, b orb.Point) float64 {
	dLat := (b.Lat() - a.Lat()) * degToRad
	dLon := (b.Lon() - a.Lon()) * degToRad

	lat1 := a.Lat() * degToRad
	lat2 := b.Lat() * degToRad

	sinDlat := math.Sin(dLat / 2)
	sinDlon := math.Sin(dLon / 2)

	aVal := sinDlat*sinDlat + sinDlon*sinDlon*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(aVal), math.Sqrt(1-aVal))
	return EarthRadius * c
}

// Bearing returns the initial course from a to b in degrees, normalized to [0, 360).
func Bearing(a, b orb.Point) float64 {
	return NormalizeDegrees(geo.Bearing(a, b))
}

// NormalizeDegrees folds any angle into [0, 360).
func NormalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// PolylineLength sums the distances between consecutive points.
func PolylineLength(line orb.LineString) float64 {
	var total float64
	for i := 1; i < len(line); i++ {
		total += DistanceMeters(line[i-1], line[i])
	}
	return total
}

// CumulativeDistances returns, for every index i, the along-line distance from line[0] to line[i].
func CumulativeDistances(line orb.LineString) []float64 {
	cum := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		cum[i] = cum[i-1] + DistanceMeters(line[i-1], line[i])
	}
	return cum
}

// ClosestIndex returns the index of the vertex nearest to p.
// Ties resolve to the lowest index, so a path passing the same spot twice
// reports the earlier pass. Returns -1 for an empty line.
func ClosestIndex(line orb.LineString, p orb.Point) int {
	idx := -1
	minDist := math.Inf(1)
	for i, v := range line {
		if d := DistanceMeters(p, v); d < minDist {
			minDist = d
			idx = i
		}
	}
	return idx
}

// DistanceToPolyline returns the distance (in meters) from p to the nearest segment of line.
func DistanceToPolyline(p orb.Point, line orb.LineString) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return DistanceMeters(p, line[0])
	}
	minDist := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		minDist = math.Min(minDist, distanceToSegment(p, line[i], line[i+1]))
	}
	return minDist
}

// IsPointInPolyline returns true if given point is within tolerance distance (in metres) from the polyline.
func IsPointInPolyline(p orb.Point, line orb.LineString, tolerance float64) bool {
	return DistanceToPolyline(p, line) <= tolerance
}

// distanceToSegment calculates the minimum distance (in metres) from point P to the segment [A, B].
func distanceToSegment(P, A, B orb.Point) float64 {
	lat1 := A.Lat() * degToRad
	lon1 := A.Lon() * degToRad
	lat2 := B.Lat() * degToRad
	lon2 := B.Lon() * degToRad
	latP := P.Lat() * degToRad
	lonP := P.Lon() * degToRad

	// Local equirectangular projection around the segment midpoint; fine at campus scale.
	latRef := (lat1 + lat2) / 2
	cosLatRef := math.Cos(latRef)

	xA, yA := lon1*EarthRadius*cosLatRef, lat1*EarthRadius
	xB, yB := lon2*EarthRadius*cosLatRef, lat2*EarthRadius
	xP, yP := lonP*EarthRadius*cosLatRef, latP*EarthRadius

	dx, dy := xB-xA, yB-yA

	// Degenerate segment (A == B)
	if dx == 0 && dy == 0 {
		return math.Hypot(xP-xA, yP-yA)
	}

	t := ((xP-xA)*dx + (yP-yA)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	xProj := xA + t*dx
	yProj := yA + t*dy

	return math.Hypot(xP-xProj, yP-yProj)
}
