// Package solver translates domain orders and vehicles into external solve
// requests, parses responses into routes, and falls back to a deterministic
// nearest-neighbor heuristic when the solver is unreachable.
package solver

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"routeplan/internal/capacity"
	"routeplan/internal/metrics"
	"routeplan/internal/model"
)

const (
	// assumed average urban speed used to derive max travel time from a
	// distance ceiling
	assumedSpeedKmh  = 35.0
	travelTimeBuffer = 1.2

	balanceThreshold  = 80.0
	balanceMinGain    = 5.0
	defaultServiceSec = 300
)

// Adapter turns one batch into routes. Service may be nil; every solve then
// takes the fallback path.
type Adapter struct {
	Service Service
}

// BatchResult is the outcome of solving one batch.
type BatchResult struct {
	Routes     []model.Route
	Unassigned []model.UnassignedOrder
	SolverUsed bool
}

// SolveBatch builds the request, calls the solver (or the fallback), and
// post-processes routes: balance redistribution and max-distance trimming.
func (a *Adapter) SolveBatch(ctx context.Context, orders []model.Order, vehicles []model.Vehicle, cfg model.Configuration) (*BatchResult, error) {
	res := &BatchResult{}
	if len(orders) == 0 {
		return res, nil
	}
	if len(vehicles) == 0 {
		for _, o := range orders {
			res.Unassigned = append(res.Unassigned, model.UnassignedOrder{OrderID: o.ID, TrackingID: o.TrackingID, Reason: "no vehicles available"})
		}
		return res, nil
	}

	// Orders whose required skills no vehicle holds can never be placed.
	feasible, skillDrops := filterBySkills(orders, vehicles)
	res.Unassigned = append(res.Unassigned, skillDrops...)
	if len(feasible) == 0 {
		return res, nil
	}

	prof, err := profileFor(cfg, feasible)
	if err != nil {
		return nil, err
	}
	// The same profile builds both sides, so a mismatch here means corrupt
	// input, not a coding bug downstream.
	for _, v := range vehicles {
		if err := capacity.CheckAligned(prof.Demand(feasible[0]), prof.Limits(v, 0)); err != nil {
			return nil, err
		}
	}

	candidates := vehicles
	if cfg.MinimizeFleet {
		candidates = minimumFleet(feasible, vehicles)
	}

	if a.Service != nil && a.Service.Available(ctx) {
		req := a.buildRequest(feasible, candidates, cfg, prof)
		wire, err := a.Service.Solve(ctx, req)
		if err == nil {
			metrics.SolverRequests.WithLabelValues("ok").Inc()
			routes, unassigned := a.parseResponse(wire, feasible, candidates, cfg)
			res.Routes = routes
			res.Unassigned = append(res.Unassigned, unassigned...)
			res.SolverUsed = true
		} else {
			log.Printf("solver call failed, using fallback: %v", err)
			metrics.SolverRequests.WithLabelValues("error").Inc()
		}
	}
	if !res.SolverUsed {
		metrics.SolverFallbacks.Inc()
		routes, unassigned := NearestNeighbor(feasible, candidates, cfg, prof)
		res.Routes = routes
		res.Unassigned = append(res.Unassigned, unassigned...)
	}

	if cfg.BalanceVisits && len(res.Routes) > 1 {
		res.Routes = rebalanceIfUneven(res.Routes, candidates, feasible, cfg)
	}
	if cfg.MaxDistanceKm > 0 {
		res.Routes, res.Unassigned = trimRoutes(res.Routes, res.Unassigned, cfg.MaxDistanceKm)
	}
	return res, nil
}

func profileFor(cfg model.Configuration, orders []model.Order) (capacity.Profile, error) {
	if len(cfg.ActiveDims) > 0 {
		return capacity.New(cfg.ActiveDims)
	}
	return capacity.Detect(orders), nil
}

func filterBySkills(orders []model.Order, vehicles []model.Vehicle) ([]model.Order, []model.UnassignedOrder) {
	var feasible []model.Order
	var dropped []model.UnassignedOrder
	for _, o := range orders {
		if len(o.Skills) == 0 || anyVehicleHasSkills(o.Skills, vehicles) {
			feasible = append(feasible, o)
			continue
		}
		dropped = append(dropped, model.UnassignedOrder{
			OrderID:    o.ID,
			TrackingID: o.TrackingID,
			Reason:     "no vehicle has required skills: " + strings.Join(o.Skills, ", "),
		})
	}
	return feasible, dropped
}

func anyVehicleHasSkills(required []string, vehicles []model.Vehicle) bool {
	for _, v := range vehicles {
		if hasAllSkills(v.Skills, required) {
			return true
		}
	}
	return false
}

func hasAllSkills(have, required []string) bool {
	for _, r := range required {
		found := false
		for _, h := range have {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// minimumFleet estimates the fewest vehicles that can plausibly carry the
// batch: binding constraint among total weight / volume / order count over
// the average per-vehicle capacity, plus one safety vehicle. Heuristic by
// design; the solver still decides which vehicles actually drive.
func minimumFleet(orders []model.Order, vehicles []model.Vehicle) []model.Vehicle {
	var totW, totV float64
	for _, o := range orders {
		totW += o.Weight
		totV += o.Volume
	}
	var avgW, avgV, avgStops float64
	for _, v := range vehicles {
		avgW += v.MaxWeight
		avgV += v.MaxVolume
		if v.MaxStops > 0 {
			avgStops += float64(v.MaxStops)
		} else {
			avgStops += 999
		}
	}
	n := float64(len(vehicles))
	avgW, avgV, avgStops = avgW/n, avgV/n, avgStops/n

	need := 1.0
	if avgW > 0 {
		need = math.Max(need, math.Ceil(totW/avgW))
	}
	if avgV > 0 {
		need = math.Max(need, math.Ceil(totV/avgV))
	}
	if avgStops > 0 {
		need = math.Max(need, math.Ceil(float64(len(orders))/avgStops))
	}
	count := int(need) + 1 // safety vehicle
	if count >= len(vehicles) {
		return vehicles
	}
	// keep the largest vehicles
	sorted := append([]model.Vehicle(nil), vehicles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.MaxWeight != b.MaxWeight {
			return a.MaxWeight > b.MaxWeight
		}
		if a.MaxVolume != b.MaxVolume {
			return a.MaxVolume > b.MaxVolume
		}
		return a.ID < b.ID
	})
	return sorted[:count]
}

func (a *Adapter) buildRequest(orders []model.Order, vehicles []model.Vehicle, cfg model.Configuration, prof capacity.Profile) *SolveRequest {
	req := &SolveRequest{Geometry: true, Objectives: objectivesFor(cfg.Objective)}

	depotStart, depotEnd := parseTW(cfg.DepotWindow)
	maxTravel := maxTravelSec(cfg)

	balancedCap := 0
	if cfg.BalanceVisits && len(vehicles) > 0 {
		balancedCap = int(math.Ceil(float64(len(orders))/float64(len(vehicles)))) + 1
	}

	for _, o := range orders {
		start, end := parseTW(o.TimeWindow)
		if cfg.FlexibleTW {
			start, end = widen(start, end)
		}
		var tw *[2]int
		if o.TimeWindow != nil {
			tw = &[2]int{start, end}
		}
		svc := o.ServiceSec
		if svc <= 0 {
			svc = defaultServiceSec
		}
		req.Jobs = append(req.Jobs, JobSpec{
			ID:         o.ID,
			Location:   [2]float64{o.Location.Lat, o.Location.Lng},
			Demand:     capacity.Values(prof.Demand(o)),
			Skills:     o.Skills,
			Priority:   o.Priority,
			TimeWindow: tw,
			ServiceSec: svc,
		})
	}

	for _, v := range vehicles {
		origin := vehicleOrigin(v, cfg)
		start := [2]float64{origin.Lat, origin.Lng}
		spec := VehicleSpec{
			ID:           v.ID,
			Start:        &start,
			Capacity:     capacity.Values(prof.Limits(v, balancedCap)),
			Skills:       v.Skills,
			SpeedFactor:  v.SpeedFactor,
			MaxTasks:     maxTasksFor(v, balancedCap),
			MaxTravelSec: maxTravel,
		}
		switch cfg.RouteEndMode {
		case model.RouteEndOpen:
			spec.End = nil
		case model.RouteEndReturnToDepot:
			spec.End = &[2]float64{cfg.Depot.Lat, cfg.Depot.Lng}
		default: // DRIVER_ORIGIN
			spec.End = &start
		}
		twStart := depotStart
		if cfg.OpenStart {
			twStart = 0
		}
		spec.TimeWindow = &[2]int{twStart, depotEnd}
		req.Vehicles = append(req.Vehicles, spec)
	}
	return req
}

func objectivesFor(objective string) []Objective {
	switch objective {
	case model.ObjectiveDistance:
		return []Objective{{Type: ObjMinDistance, Weight: 1}}
	case model.ObjectiveTime:
		return []Objective{{Type: ObjMinDuration, Weight: 1}}
	default: // BALANCED
		return []Objective{{Type: ObjMinDistance, Weight: 1}, {Type: ObjMinDuration, Weight: 1}}
	}
}

// maxTravelSec derives the per-route travel ceiling: an explicit minutes
// value wins; otherwise estimate from the distance ceiling at the assumed
// urban speed with a 20% buffer.
func maxTravelSec(cfg model.Configuration) int {
	if cfg.MaxTravelMin > 0 {
		return int(cfg.MaxTravelMin * 60)
	}
	if cfg.MaxDistanceKm > 0 {
		hours := cfg.MaxDistanceKm / assumedSpeedKmh * travelTimeBuffer
		return int(hours * 3600)
	}
	return 0
}

func maxTasksFor(v model.Vehicle, balancedCap int) int {
	limit := v.MaxStops
	if balancedCap > 0 && (limit == 0 || balancedCap < limit) {
		limit = balancedCap
	}
	return limit
}

func vehicleOrigin(v model.Vehicle, cfg model.Configuration) model.GeoPoint {
	if v.Origin != nil {
		return *v.Origin
	}
	return cfg.Depot
}

func (a *Adapter) parseResponse(wire *SolveResponse, orders []model.Order, vehicles []model.Vehicle, cfg model.Configuration) ([]model.Route, []model.UnassignedOrder) {
	orderByID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		orderByID[o.ID] = o
	}
	vehicleByID := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		vehicleByID[v.ID] = v
	}

	assigned := map[string]bool{}
	var routes []model.Route
	for _, wr := range wire.Routes {
		v, ok := vehicleByID[wr.Vehicle]
		if !ok {
			continue
		}
		origin := vehicleOrigin(v, cfg)
		rt := model.Route{
			VehicleID:     v.ID,
			VehiclePlate:  v.Plate,
			VehicleOrigin: &origin,
			DistanceM:     wr.Distance,
			DurationSec:   wr.Duration,
			TravelSec:     wr.Duration - wr.Service - wr.WaitingTime,
			ServiceSec:    wr.Service,
			Geometry:      wr.Geometry,
		}
		seq := 0
		for _, st := range wr.Steps {
			if st.Type != "job" {
				continue
			}
			o, ok := orderByID[st.Job]
			// a malformed response can list the same job twice; the first
			// placement wins
			if !ok || assigned[o.ID] {
				continue
			}
			seq++
			assigned[o.ID] = true
			rt.Stops = append(rt.Stops, model.Stop{
				OrderID:    o.ID,
				TrackingID: o.TrackingID,
				Location:   o.Location,
				Sequence:   seq,
				ArrivalSec: st.Arrival,
				WaitingSec: st.WaitingTime,
				ServiceSec: st.Service,
			})
			rt.TotalWeight += o.Weight
			rt.TotalVolume += o.Volume
			_, twEnd := parseTW(o.TimeWindow)
			if o.TimeWindow != nil && st.Arrival > float64(twEnd) {
				rt.TWViolations++
			}
		}
		if len(rt.Stops) == 0 {
			continue
		}
		rt.Utilization = utilization(rt, v)
		routes = append(routes, rt)
	}

	var unassigned []model.UnassignedOrder
	reasons := map[string]string{}
	for _, u := range wire.Unassigned {
		reasons[u.ID] = u.Description
	}
	for _, o := range orders {
		if assigned[o.ID] {
			continue
		}
		reason := reasons[o.ID]
		if reason == "" {
			reason = "could not fit in any vehicle route (capacity/time constraints)"
		}
		unassigned = append(unassigned, model.UnassignedOrder{OrderID: o.ID, TrackingID: o.TrackingID, Reason: reason})
	}
	return routes, unassigned
}

// utilization is the percent usage of the binding capacity dimension.
func utilization(rt model.Route, v model.Vehicle) float64 {
	best := 0.0
	if v.MaxWeight > 0 {
		best = math.Max(best, rt.TotalWeight/v.MaxWeight*100)
	}
	if v.MaxVolume > 0 {
		best = math.Max(best, rt.TotalVolume/v.MaxVolume*100)
	}
	if v.MaxStops > 0 {
		best = math.Max(best, float64(len(rt.Stops))/float64(v.MaxStops)*100)
	}
	return math.Round(best*10) / 10
}

func rebalanceIfUneven(routes []model.Route, vehicles []model.Vehicle, orders []model.Order, cfg model.Configuration) []model.Route {
	vehicleByID := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		vehicleByID[v.ID] = v
	}
	score := BalanceScore(routes, vehicleByID)
	if score >= balanceThreshold {
		return routes
	}
	orderByID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		orderByID[o.ID] = o
	}
	rebalanced := Redistribute(routes, vehicleByID, orderByID, cfg)
	newScore := BalanceScore(rebalanced, vehicleByID)
	if newScore > score+balanceMinGain {
		log.Printf("rebalance accepted: score %.1f -> %.1f", score, newScore)
		return rebalanced
	}
	return routes
}

func trimRoutes(routes []model.Route, unassigned []model.UnassignedOrder, maxKm float64) ([]model.Route, []model.UnassignedOrder) {
	out := make([]model.Route, 0, len(routes))
	for _, rt := range routes {
		trimmed, removed := TrimToMaxDistance(rt, maxKm)
		for _, st := range removed {
			unassigned = append(unassigned, model.UnassignedOrder{
				OrderID:    st.OrderID,
				TrackingID: st.TrackingID,
				Reason:     fmt.Sprintf("route exceeds max distance (%.0f km ceiling)", maxKm),
			})
		}
		if len(trimmed.Stops) > 0 {
			out = append(out, trimmed)
		}
	}
	return out, unassigned
}
