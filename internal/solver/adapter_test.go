package solver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"routeplan/internal/model"
)

type fakeService struct {
	up   bool
	resp *SolveResponse
	err  error
	got  *SolveRequest
}

func (f *fakeService) Available(ctx context.Context) bool { return f.up }

func (f *fakeService) Solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestSolveBatchEmptyInputs(t *testing.T) {
	a := &Adapter{}
	res, err := a.SolveBatch(context.Background(), nil, []model.Vehicle{{ID: "v"}}, model.Configuration{})
	if err != nil || len(res.Routes) != 0 {
		t.Fatalf("empty orders: %+v, %v", res, err)
	}
	res, err = a.SolveBatch(context.Background(), []model.Order{{ID: "o"}}, nil, model.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unassigned) != 1 || res.Unassigned[0].Reason != "no vehicles available" {
		t.Fatalf("no vehicles: %+v", res.Unassigned)
	}
}

func TestSolveBatchSkillsPrefilter(t *testing.T) {
	orders := []model.Order{
		{ID: "hazmat", Location: depot, Skills: []string{"adr"}},
		{ID: "plain", Location: depot},
	}
	vehicles := []model.Vehicle{{ID: "v", MaxStops: 5}}
	a := &Adapter{}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, model.Configuration{Depot: depot})
	if err != nil {
		t.Fatal(err)
	}
	var reason string
	for _, u := range res.Unassigned {
		if u.OrderID == "hazmat" {
			reason = u.Reason
		}
	}
	if !strings.Contains(reason, "no vehicle has required skills: adr") {
		t.Fatalf("reason = %q", reason)
	}
}

func TestSolveBatchDimensionMismatchFatal(t *testing.T) {
	a := &Adapter{}
	cfg := model.Configuration{Depot: depot, ActiveDims: []string{"weight", "height"}}
	_, err := a.SolveBatch(context.Background(), []model.Order{{ID: "o", Location: depot}}, []model.Vehicle{{ID: "v"}}, cfg)
	if err == nil {
		t.Fatal("expected profile error")
	}
}

func TestSolveBatchUsesSolverResponse(t *testing.T) {
	orders := []model.Order{
		{ID: "o1", TrackingID: "T1", Location: model.GeoPoint{Lat: 40.42, Lng: -3.70}, Weight: 5},
		{ID: "o2", TrackingID: "T2", Location: model.GeoPoint{Lat: 40.43, Lng: -3.71}, Weight: 7},
	}
	vehicles := []model.Vehicle{{ID: "v1", Plate: "AB-123", MaxWeight: 100}}
	svc := &fakeService{up: true, resp: &SolveResponse{
		Routes: []WireRoute{{
			Vehicle:  "v1",
			Distance: 9000,
			Duration: 1800,
			Service:  600,
			Steps: []Step{
				{Type: "start", Arrival: 28800},
				{Type: "job", Job: "o1", Arrival: 29000, Service: 300},
				{Type: "job", Job: "o2", Arrival: 29600, Service: 300},
				{Type: "end", Arrival: 30200},
			},
		}},
	}}
	a := &Adapter{Service: svc}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, model.Configuration{Depot: depot})
	if err != nil {
		t.Fatal(err)
	}
	if !res.SolverUsed {
		t.Fatal("solver response should be used")
	}
	if len(res.Routes) != 1 {
		t.Fatalf("routes = %d", len(res.Routes))
	}
	rt := res.Routes[0]
	if rt.VehiclePlate != "AB-123" || rt.DistanceM != 9000 {
		t.Fatalf("route = %+v", rt)
	}
	if len(rt.Stops) != 2 || rt.Stops[0].OrderID != "o1" || rt.Stops[0].Sequence != 1 || rt.Stops[1].Sequence != 2 {
		t.Fatalf("stops = %+v", rt.Stops)
	}
	if rt.TotalWeight != 12 {
		t.Fatalf("weight = %f", rt.TotalWeight)
	}
	// demand and capacity vectors must be same width
	if len(svc.got.Jobs[0].Demand) != len(svc.got.Vehicles[0].Capacity) {
		t.Fatal("request vectors misaligned")
	}
}

func TestSolveBatchFallsBackOnSolverError(t *testing.T) {
	orders := []model.Order{{ID: "o", Location: depot}}
	vehicles := []model.Vehicle{{ID: "v"}}
	svc := &fakeService{up: true, err: errors.New("boom")}
	a := &Adapter{Service: svc}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, model.Configuration{Depot: depot})
	if err != nil {
		t.Fatal(err)
	}
	if res.SolverUsed {
		t.Fatal("should have fallen back")
	}
	if len(res.Routes) != 1 || len(res.Routes[0].Stops) != 1 {
		t.Fatalf("fallback routes = %+v", res.Routes)
	}
}

func TestSolveBatchDeduplicatesSolverSteps(t *testing.T) {
	orders := []model.Order{
		{ID: "o1", Location: depot, Weight: 5},
		{ID: "o2", Location: depot, Weight: 7},
	}
	vehicles := []model.Vehicle{{ID: "v1", MaxWeight: 100}, {ID: "v2", MaxWeight: 100}}
	// malformed response: o1 listed twice on v1 and again on v2
	svc := &fakeService{up: true, resp: &SolveResponse{
		Routes: []WireRoute{
			{Vehicle: "v1", Steps: []Step{
				{Type: "job", Job: "o1", Arrival: 29000},
				{Type: "job", Job: "o1", Arrival: 29500},
				{Type: "job", Job: "o2", Arrival: 30000},
			}},
			{Vehicle: "v2", Steps: []Step{{Type: "job", Job: "o1", Arrival: 31000}}},
		},
	}}
	a := &Adapter{Service: svc}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, model.Configuration{Depot: depot})
	if err != nil {
		t.Fatal(err)
	}
	placements := 0
	for _, rt := range res.Routes {
		for _, st := range rt.Stops {
			if st.OrderID == "o1" {
				placements++
			}
		}
	}
	if placements != 1 {
		t.Fatalf("o1 placed %d times", placements)
	}
	if res.Routes[0].TotalWeight != 12 {
		t.Fatalf("duplicate step counted into weight: %f", res.Routes[0].TotalWeight)
	}
	if len(res.Unassigned) != 0 {
		t.Fatalf("unassigned = %+v", res.Unassigned)
	}
}

func TestSolveBatchUnassignedFromSolver(t *testing.T) {
	orders := []model.Order{
		{ID: "o1", Location: depot},
		{ID: "o2", Location: depot},
	}
	vehicles := []model.Vehicle{{ID: "v1", MaxStops: 1}}
	svc := &fakeService{up: true, resp: &SolveResponse{
		Routes: []WireRoute{{
			Vehicle: "v1",
			Steps:   []Step{{Type: "job", Job: "o1", Arrival: 29000}},
		}},
		Unassigned: []WireUnassigned{{ID: "o2", Description: "max tasks reached"}},
	}}
	a := &Adapter{Service: svc}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, model.Configuration{Depot: depot})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Unassigned) != 1 || res.Unassigned[0].OrderID != "o2" || res.Unassigned[0].Reason != "max tasks reached" {
		t.Fatalf("unassigned = %+v", res.Unassigned)
	}
}

func TestObjectiveMapping(t *testing.T) {
	cases := []struct {
		objective string
		types     []string
	}{
		{model.ObjectiveDistance, []string{ObjMinDistance}},
		{model.ObjectiveTime, []string{ObjMinDuration}},
		{model.ObjectiveBalanced, []string{ObjMinDistance, ObjMinDuration}},
		{"", []string{ObjMinDistance, ObjMinDuration}},
	}
	for _, c := range cases {
		objs := objectivesFor(c.objective)
		if len(objs) != len(c.types) {
			t.Fatalf("%s: %d objectives", c.objective, len(objs))
		}
		for i, o := range objs {
			if o.Type != c.types[i] || o.Weight != 1 {
				t.Fatalf("%s: objective %+v", c.objective, o)
			}
		}
	}
}

func TestMaxTravelDerivation(t *testing.T) {
	// explicit minutes win
	if got := maxTravelSec(model.Configuration{MaxTravelMin: 90, MaxDistanceKm: 100}); got != 5400 {
		t.Fatalf("explicit minutes: %d", got)
	}
	// derived from distance at 35 km/h with 20% buffer: 70/35*1.2h = 2.4h
	if got := maxTravelSec(model.Configuration{MaxDistanceKm: 70}); got != 8640 {
		t.Fatalf("derived: %d", got)
	}
	if got := maxTravelSec(model.Configuration{}); got != 0 {
		t.Fatalf("unbounded: %d", got)
	}
}

func TestMinimumFleet(t *testing.T) {
	// 10 orders, 10kg each = 100kg total; avg capacity 40kg -> need 3 + 1 safety
	var orders []model.Order
	for i := 0; i < 10; i++ {
		orders = append(orders, model.Order{ID: string(rune('a' + i)), Weight: 10})
	}
	var vehicles []model.Vehicle
	for i := 0; i < 8; i++ {
		vehicles = append(vehicles, model.Vehicle{ID: string(rune('p' + i)), MaxWeight: 40})
	}
	got := minimumFleet(orders, vehicles)
	if len(got) != 4 {
		t.Fatalf("fleet size = %d, want 4", len(got))
	}
	// never more than available
	if got := minimumFleet(orders, vehicles[:2]); len(got) != 2 {
		t.Fatalf("capped fleet = %d", len(got))
	}
}

func TestRouteEndModes(t *testing.T) {
	orders := []model.Order{{ID: "o", Location: depot}}
	vehicles := []model.Vehicle{{ID: "v"}}
	a := &Adapter{}

	for _, c := range []struct {
		mode    string
		wantEnd bool
	}{
		{model.RouteEndOpen, false},
		{model.RouteEndReturnToDepot, true},
		{model.RouteEndDriverOrigin, true},
		{"", true},
	} {
		svc := &fakeService{up: true, resp: &SolveResponse{}}
		a.Service = svc
		cfg := model.Configuration{Depot: depot, RouteEndMode: c.mode}
		if _, err := a.SolveBatch(context.Background(), orders, vehicles, cfg); err != nil {
			t.Fatal(err)
		}
		hasEnd := svc.got.Vehicles[0].End != nil
		if hasEnd != c.wantEnd {
			t.Fatalf("mode %q: end set = %v", c.mode, hasEnd)
		}
	}
}
