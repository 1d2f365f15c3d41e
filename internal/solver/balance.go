package solver

import (
	"math"

	"routeplan/internal/geo"
	"routeplan/internal/model"
)

// BalanceScore rates workload evenness across routes, 0-100. Each axis (stop
// counts, weight utilization, volume utilization) scores the coefficient of
// variation as max(0, 1 - cv/2) * 100; the score is the mean over axes that
// apply. One route or fewer is trivially balanced.
func BalanceScore(routes []model.Route, vehicles map[string]model.Vehicle) float64 {
	if len(routes) <= 1 {
		return 100
	}
	var axes []float64

	stops := make([]float64, len(routes))
	for i, rt := range routes {
		stops[i] = float64(len(rt.Stops))
	}
	axes = append(axes, cvScore(stops))

	var wUtil, vUtil []float64
	for _, rt := range routes {
		v, ok := vehicles[rt.VehicleID]
		if !ok {
			continue
		}
		if v.MaxWeight > 0 {
			wUtil = append(wUtil, rt.TotalWeight/v.MaxWeight)
		}
		if v.MaxVolume > 0 {
			vUtil = append(vUtil, rt.TotalVolume/v.MaxVolume)
		}
	}
	if len(wUtil) == len(routes) {
		axes = append(axes, cvScore(wUtil))
	}
	if len(vUtil) == len(routes) {
		axes = append(axes, cvScore(vUtil))
	}

	total := 0.0
	for _, a := range axes {
		total += a
	}
	return math.Round(total/float64(len(axes))*10) / 10
}

func cvScore(vals []float64) float64 {
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if mean == 0 {
		return 100
	}
	variance := 0.0
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))
	cv := math.Sqrt(variance) / mean
	s := 1 - cv/2
	if s < 0 {
		s = 0
	}
	return s * 100
}

// Redistribute moves stops from the fullest route to the emptiest until stop
// counts differ by at most one. A move is skipped when the receiving vehicle
// cannot take the stop's order without exceeding its stop, weight or volume
// capacity; weight and volume totals travel with the stop, and distances and
// durations are recomputed from route geometry.
func Redistribute(routes []model.Route, vehicles map[string]model.Vehicle, orders map[string]model.Order, cfg model.Configuration) []model.Route {
	out := make([]model.Route, len(routes))
	for i, rt := range routes {
		out[i] = rt
		out[i].Stops = append([]model.Stop(nil), rt.Stops...)
	}

	for iter := 0; iter < len(out)*8; iter++ {
		hi, lo := 0, 0
		for i := range out {
			if len(out[i].Stops) > len(out[hi].Stops) {
				hi = i
			}
			if len(out[i].Stops) < len(out[lo].Stops) {
				lo = i
			}
		}
		if len(out[hi].Stops)-len(out[lo].Stops) <= 1 {
			break
		}
		moved := out[hi].Stops[len(out[hi].Stops)-1]
		o := orders[moved.OrderID]
		recv, ok := vehicles[out[lo].VehicleID]
		if ok && !canReceive(out[lo], o, recv) {
			break
		}
		out[hi].Stops = out[hi].Stops[:len(out[hi].Stops)-1]
		out[lo].Stops = append(out[lo].Stops, moved)
		out[hi].TotalWeight -= o.Weight
		out[hi].TotalVolume -= o.Volume
		out[lo].TotalWeight += o.Weight
		out[lo].TotalVolume += o.Volume

		recompute(&out[hi], cfg)
		recompute(&out[lo], cfg)
		if v, ok := vehicles[out[hi].VehicleID]; ok {
			out[hi].Utilization = utilization(out[hi], v)
		}
		if ok {
			out[lo].Utilization = utilization(out[lo], recv)
		}
	}
	return out
}

func canReceive(rt model.Route, o model.Order, v model.Vehicle) bool {
	if v.MaxStops > 0 && len(rt.Stops)+1 > v.MaxStops {
		return false
	}
	if v.MaxWeight > 0 && rt.TotalWeight+o.Weight > v.MaxWeight {
		return false
	}
	if v.MaxVolume > 0 && rt.TotalVolume+o.Volume > v.MaxVolume {
		return false
	}
	return true
}

// recompute resequences stops and rebuilds distance and duration from the
// route's leg geometry at the urban baseline speed.
func recompute(rt *model.Route, cfg model.Configuration) {
	if len(rt.Stops) == 0 {
		rt.DistanceM, rt.DurationSec, rt.TravelSec, rt.ServiceSec = 0, 0, 0, 0
		return
	}
	origin := cfg.Depot
	if rt.VehicleOrigin != nil {
		origin = *rt.VehicleOrigin
	}
	points := make([]model.GeoPoint, 0, len(rt.Stops)+2)
	points = append(points, origin)
	service := 0.0
	startClock, _ := parseTW(cfg.DepotWindow)
	if cfg.OpenStart {
		startClock = 0
	}
	clock := float64(startClock)
	speedMult := geo.SpeedMultiplier(cfg.TrafficFactor)
	prev := origin
	for i := range rt.Stops {
		rt.Stops[i].Sequence = i + 1
		leg := geo.RoadDistanceM(prev, rt.Stops[i].Location)
		clock += geo.TravelSec(leg, speedMult)
		rt.Stops[i].ArrivalSec = clock
		rt.Stops[i].WaitingSec = 0
		clock += rt.Stops[i].ServiceSec
		service += rt.Stops[i].ServiceSec
		points = append(points, rt.Stops[i].Location)
		prev = rt.Stops[i].Location
	}
	switch cfg.RouteEndMode {
	case model.RouteEndOpen:
	case model.RouteEndReturnToDepot:
		points = append(points, cfg.Depot)
	default:
		points = append(points, origin)
	}
	rt.DistanceM = geo.PathDistanceM(points)
	rt.ServiceSec = service
	rt.TravelSec = geo.TravelSec(rt.DistanceM, speedMult)
	rt.DurationSec = rt.TravelSec + service
}

// TrimToMaxDistance drops stops from the route end until the distance ceiling
// holds, scaling distance and duration by the surviving share of stops.
// Returns the trimmed route and the removed stops.
func TrimToMaxDistance(rt model.Route, maxKm float64) (model.Route, []model.Stop) {
	maxM := maxKm * 1000
	if rt.DistanceM <= maxM || len(rt.Stops) == 0 {
		return rt, nil
	}
	origStops := len(rt.Stops)
	origDist := rt.DistanceM
	origDur := rt.DurationSec
	origTravel := rt.TravelSec

	var removed []model.Stop
	for rt.DistanceM > maxM && len(rt.Stops) > 0 {
		last := rt.Stops[len(rt.Stops)-1]
		removed = append(removed, last)
		rt.Stops = rt.Stops[:len(rt.Stops)-1]
		rt.ServiceSec -= last.ServiceSec
		ratio := float64(len(rt.Stops)) / float64(origStops)
		rt.DistanceM = origDist * ratio
		rt.DurationSec = origDur * ratio
		rt.TravelSec = origTravel * ratio
	}
	for i := range rt.Stops {
		rt.Stops[i].Sequence = i + 1
	}
	// weight/volume shed proportionally; stop-level demand is not tracked
	ratio := float64(len(rt.Stops)) / float64(origStops)
	rt.TotalWeight *= ratio
	rt.TotalVolume *= ratio
	rt.Utilization *= ratio
	return rt, removed
}
