package solver

import (
	"math"
	"sort"

	"routeplan/internal/capacity"
	"routeplan/internal/geo"
	"routeplan/internal/model"
)

// NearestNeighbor is the deterministic fallback heuristic used when the
// external solver is unreachable. Vehicles are filled smallest-first
// (ascending max stops) so constrained vehicles get stops before unlimited
// ones soak up everything; within a vehicle, the closest feasible order is
// appended until nothing more fits.
func NearestNeighbor(orders []model.Order, vehicles []model.Vehicle, cfg model.Configuration, prof capacity.Profile) ([]model.Route, []model.UnassignedOrder) {
	sorted := append([]model.Vehicle(nil), vehicles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := effectiveMaxStops(sorted[i]), effectiveMaxStops(sorted[j])
		if a != b {
			return a < b
		}
		return sorted[i].ID < sorted[j].ID
	})

	remaining := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		remaining[o.ID] = o
	}

	balancedCap := 0
	if cfg.BalanceVisits && len(vehicles) > 0 {
		balancedCap = int(math.Ceil(float64(len(orders))/float64(len(vehicles)))) + 1
	}
	speedBase := geo.SpeedMultiplier(cfg.TrafficFactor)
	maxTravel := maxTravelSec(cfg)
	startClock, _ := parseTW(cfg.DepotWindow)
	if cfg.OpenStart {
		startClock = 0
	}

	var routes []model.Route
	for _, v := range sorted {
		if len(remaining) == 0 {
			break
		}
		rt := buildGreedyRoute(v, remaining, cfg, prof, balancedCap, speedBase, maxTravel, startClock)
		if len(rt.Stops) > 0 {
			routes = append(routes, rt)
		}
	}

	var unassigned []model.UnassignedOrder
	leftIDs := make([]string, 0, len(remaining))
	for id := range remaining {
		leftIDs = append(leftIDs, id)
	}
	sort.Strings(leftIDs)
	for _, id := range leftIDs {
		o := remaining[id]
		unassigned = append(unassigned, model.UnassignedOrder{
			OrderID:    o.ID,
			TrackingID: o.TrackingID,
			Reason:     "could not fit in any vehicle route (capacity/time constraints)",
		})
	}
	return routes, unassigned
}

func effectiveMaxStops(v model.Vehicle) int {
	if v.MaxStops <= 0 {
		return math.MaxInt32
	}
	return v.MaxStops
}

func buildGreedyRoute(v model.Vehicle, remaining map[string]model.Order, cfg model.Configuration, prof capacity.Profile, balancedCap int, speedBase float64, maxTravel int, startClock int) model.Route {
	origin := vehicleOrigin(v, cfg)
	speedMult := speedBase
	if v.SpeedFactor > 0 {
		speedMult *= v.SpeedFactor
	}
	limits := prof.Limits(v, balancedCap)
	used := prof.Zero()

	rt := model.Route{VehicleID: v.ID, VehiclePlate: v.Plate, VehicleOrigin: &origin}
	cur := origin
	clock := float64(startClock)
	travel := 0.0
	seq := 0

	for {
		var best *model.Order
		bestDist := math.MaxFloat64
		for _, o := range remaining {
			if len(o.Skills) > 0 && !hasAllSkills(v.Skills, o.Skills) {
				continue
			}
			if !capacity.Fits(used, prof.Demand(o), limits) {
				continue
			}
			d := geo.RoadDistanceM(cur, o.Location)
			if d < bestDist || (d == bestDist && best != nil && o.ID < best.ID) {
				oc := o
				best = &oc
				bestDist = d
			}
		}
		if best == nil {
			break
		}
		legSec := geo.TravelSec(bestDist, speedMult)
		if maxTravel > 0 && travel+legSec > float64(maxTravel) {
			break
		}

		o := *best
		twStart, twEnd := parseTW(o.TimeWindow)
		if cfg.FlexibleTW {
			twStart, twEnd = widen(twStart, twEnd)
		}
		arrival := clock + legSec
		waiting := 0.0
		if o.TimeWindow != nil && arrival < float64(twStart) {
			waiting = float64(twStart) - arrival
		}
		if o.TimeWindow != nil && arrival > float64(twEnd) {
			rt.TWViolations++
		}
		svc := float64(o.ServiceSec)
		if svc <= 0 {
			svc = defaultServiceSec
		}

		seq++
		rt.Stops = append(rt.Stops, model.Stop{
			OrderID:    o.ID,
			TrackingID: o.TrackingID,
			Location:   o.Location,
			Sequence:   seq,
			ArrivalSec: arrival,
			WaitingSec: waiting,
			ServiceSec: svc,
		})
		capacity.Add(used, prof.Demand(o))
		rt.DistanceM += bestDist
		rt.TotalWeight += o.Weight
		rt.TotalVolume += o.Volume
		rt.ServiceSec += svc
		travel += legSec
		clock = arrival + waiting + svc
		cur = o.Location
		delete(remaining, o.ID)
	}

	if len(rt.Stops) > 0 {
		var endPoint *model.GeoPoint
		switch cfg.RouteEndMode {
		case model.RouteEndOpen:
		case model.RouteEndReturnToDepot:
			d := cfg.Depot
			endPoint = &d
		default:
			endPoint = &origin
		}
		if endPoint != nil {
			d := geo.RoadDistanceM(cur, *endPoint)
			rt.DistanceM += d
			travel += geo.TravelSec(d, speedMult)
		}
		rt.TravelSec = travel
		rt.DurationSec = travel + rt.ServiceSec + sumWaiting(rt.Stops)
		rt.Utilization = utilization(rt, v)
	}
	return rt
}

func sumWaiting(stops []model.Stop) float64 {
	total := 0.0
	for _, s := range stops {
		total += s.WaitingSec
	}
	return total
}
