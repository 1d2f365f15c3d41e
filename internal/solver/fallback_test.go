package solver

import (
	"fmt"
	"strings"
	"testing"

	"routeplan/internal/capacity"
	"routeplan/internal/model"
)

var depot = model.GeoPoint{Lat: 40.4168, Lng: -3.7038}

// clusterOrders spreads n orders in a tight grid near the depot.
func clusterOrders(n int, weight float64) []model.Order {
	out := make([]model.Order, n)
	for i := range out {
		out[i] = model.Order{
			ID:       fmt.Sprintf("o%02d", i),
			Location: model.GeoPoint{Lat: depot.Lat + float64(i%5)*0.002, Lng: depot.Lng + float64(i/5)*0.002},
			Weight:   weight,
		}
	}
	return out
}

func TestFallbackCapacityCeiling(t *testing.T) {
	// 50kg vehicle, five 20kg orders: exactly two fit
	orders := clusterOrders(5, 20)
	vehicles := []model.Vehicle{{ID: "v1", MaxWeight: 50}}
	cfg := model.Configuration{Depot: depot}
	prof := capacity.Detect(orders)

	routes, unassigned := NearestNeighbor(orders, vehicles, cfg, prof)
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	if got := len(routes[0].Stops); got != 2 {
		t.Fatalf("expected 2 stops, got %d", got)
	}
	if routes[0].TotalWeight != 40 {
		t.Fatalf("total weight = %f", routes[0].TotalWeight)
	}
	if len(unassigned) != 3 {
		t.Fatalf("expected 3 unassigned, got %d", len(unassigned))
	}
	for _, u := range unassigned {
		if !strings.Contains(u.Reason, "could not fit") {
			t.Fatalf("reason = %q", u.Reason)
		}
	}
}

func TestFallbackFillsConstrainedVehiclesFirst(t *testing.T) {
	orders := clusterOrders(5, 0)
	vehicles := []model.Vehicle{
		{ID: "big"},                 // unlimited stops
		{ID: "small", MaxStops: 2},  // must be filled first
	}
	cfg := model.Configuration{Depot: depot}
	prof := capacity.Detect(orders)

	routes, unassigned := NearestNeighbor(orders, vehicles, cfg, prof)
	if len(unassigned) != 0 {
		t.Fatalf("unexpected unassigned: %+v", unassigned)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].VehicleID != "small" || len(routes[0].Stops) != 2 {
		t.Fatalf("small vehicle should route first with 2 stops, got %s/%d", routes[0].VehicleID, len(routes[0].Stops))
	}
	if routes[1].VehicleID != "big" || len(routes[1].Stops) != 3 {
		t.Fatalf("big vehicle should take the remaining 3, got %s/%d", routes[1].VehicleID, len(routes[1].Stops))
	}
}

func TestFallbackBalanceVisitsCapsStops(t *testing.T) {
	// 25 orders over 3 vehicles: cap is ceil(25/3)+1 = 10 per route
	orders := clusterOrders(25, 0)
	vehicles := []model.Vehicle{{ID: "v1"}, {ID: "v2"}, {ID: "v3"}}
	cfg := model.Configuration{Depot: depot, BalanceVisits: true}
	prof := capacity.Detect(orders)

	routes, unassigned := NearestNeighbor(orders, vehicles, cfg, prof)
	if len(unassigned) != 0 {
		t.Fatalf("unexpected unassigned: %d", len(unassigned))
	}
	total := 0
	for _, rt := range routes {
		if len(rt.Stops) > 10 {
			t.Fatalf("route %s has %d stops, cap is 10", rt.VehicleID, len(rt.Stops))
		}
		total += len(rt.Stops)
	}
	if total != 25 {
		t.Fatalf("placed %d of 25", total)
	}
}

func TestFallbackSkillsRespected(t *testing.T) {
	orders := []model.Order{
		{ID: "frozen", Location: depot, Skills: []string{"refrigerated"}},
		{ID: "plain", Location: depot},
	}
	vehicles := []model.Vehicle{{ID: "dry", MaxStops: 5}}
	cfg := model.Configuration{Depot: depot}
	prof := capacity.Detect(orders)

	routes, unassigned := NearestNeighbor(orders, vehicles, cfg, prof)
	if len(routes) != 1 || len(routes[0].Stops) != 1 || routes[0].Stops[0].OrderID != "plain" {
		t.Fatalf("unexpected routes %+v", routes)
	}
	if len(unassigned) != 1 || unassigned[0].OrderID != "frozen" {
		t.Fatalf("unexpected unassigned %+v", unassigned)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	orders := clusterOrders(12, 1)
	vehicles := []model.Vehicle{{ID: "a", MaxStops: 6}, {ID: "b", MaxStops: 6}}
	cfg := model.Configuration{Depot: depot}
	prof := capacity.Detect(orders)

	first, _ := NearestNeighbor(orders, vehicles, cfg, prof)
	for i := 0; i < 3; i++ {
		again, _ := NearestNeighbor(orders, vehicles, cfg, prof)
		if len(again) != len(first) {
			t.Fatalf("run %d: route count changed", i)
		}
		for r := range again {
			if again[r].VehicleID != first[r].VehicleID {
				t.Fatalf("run %d: vehicle order changed", i)
			}
			for s := range again[r].Stops {
				if again[r].Stops[s].OrderID != first[r].Stops[s].OrderID {
					t.Fatalf("run %d: stop order changed", i)
				}
			}
		}
	}
}

func TestFallbackOpenEndSkipsReturnLeg(t *testing.T) {
	orders := clusterOrders(3, 0)
	vehicles := []model.Vehicle{{ID: "v"}}
	prof := capacity.Detect(orders)

	closed, _ := NearestNeighbor(orders, vehicles, model.Configuration{Depot: depot, RouteEndMode: model.RouteEndReturnToDepot}, prof)
	open, _ := NearestNeighbor(orders, vehicles, model.Configuration{Depot: depot, RouteEndMode: model.RouteEndOpen}, prof)
	if open[0].DistanceM >= closed[0].DistanceM {
		t.Fatalf("open-ended route should be shorter: %f vs %f", open[0].DistanceM, closed[0].DistanceM)
	}
}

func TestFallbackSequenceAndArrival(t *testing.T) {
	orders := clusterOrders(4, 0)
	vehicles := []model.Vehicle{{ID: "v"}}
	cfg := model.Configuration{Depot: depot, DepotWindow: &model.TimeWindow{Start: "08:00"}}
	prof := capacity.Detect(orders)

	routes, _ := NearestNeighbor(orders, vehicles, cfg, prof)
	stops := routes[0].Stops
	for i, st := range stops {
		if st.Sequence != i+1 {
			t.Fatalf("stop %d sequence = %d", i, st.Sequence)
		}
		if st.ArrivalSec < 8*3600 {
			t.Fatalf("arrival %f before depot opens", st.ArrivalSec)
		}
		if i > 0 && st.ArrivalSec <= stops[i-1].ArrivalSec {
			t.Fatalf("arrivals not increasing at stop %d", i)
		}
	}
}
