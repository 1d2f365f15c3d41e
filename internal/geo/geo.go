package geo

import (
	"math"

	"routeplan/internal/model"
)

const (
	earthRadiusM = 6371000.0
	// RoadFactor inflates straight-line distance toward realistic road distance.
	RoadFactor = 1.3
	// DefaultSpeedMps is ~30 km/h urban driving.
	DefaultSpeedMps = 8.33
)

// HaversineM returns the great-circle distance in meters between two points.
func HaversineM(a, b model.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

// RoadDistanceM estimates road distance between two points.
func RoadDistanceM(a, b model.GeoPoint) float64 {
	return HaversineM(a, b) * RoadFactor
}

// PathDistanceM sums leg road distances along a polyline of points.
func PathDistanceM(points []model.GeoPoint) float64 {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		total += RoadDistanceM(points[i], points[i+1])
	}
	return total
}

// TravelSec converts a distance to travel time at the given speed multiplier.
// speedMult > 1 means faster than the urban baseline.
func TravelSec(distM, speedMult float64) float64 {
	if speedMult <= 0 {
		speedMult = 1
	}
	return distM / (DefaultSpeedMps * speedMult)
}

// SpeedMultiplier converts a 0-100 traffic factor into a speed multiplier.
// 0 = free flow (1.5x), 50 = normal (1.0x), 100 = heavy (0.5x).
func SpeedMultiplier(trafficFactor int) float64 {
	m := 1.5 - float64(trafficFactor)/100
	if m < 0.1 {
		m = 0.1
	}
	return m
}

// PointInPolygon reports whether p lies inside the polygon (ray casting).
// Points exactly on an edge may land on either side; zone polygons are
// expected not to share boundaries with order coordinates.
func PointInPolygon(p model.GeoPoint, poly []model.GeoPoint) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		pi, pj := poly[i], poly[j]
		if (pi.Lat > p.Lat) != (pj.Lat > p.Lat) {
			x := (pj.Lng-pi.Lng)*(p.Lat-pi.Lat)/(pj.Lat-pi.Lat) + pi.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
