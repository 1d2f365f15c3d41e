package solver

import (
	"context"
	"strings"
	"testing"

	"routeplan/internal/model"
)

func TestBalanceScoreSingleRoute(t *testing.T) {
	routes := []model.Route{{VehicleID: "v", Stops: make([]model.Stop, 7)}}
	if got := BalanceScore(routes, nil); got != 100 {
		t.Fatalf("single route score = %f", got)
	}
	if got := BalanceScore(nil, nil); got != 100 {
		t.Fatalf("empty score = %f", got)
	}
}

func TestBalanceScoreEvenVsSkewed(t *testing.T) {
	even := []model.Route{
		{VehicleID: "a", Stops: make([]model.Stop, 10)},
		{VehicleID: "b", Stops: make([]model.Stop, 10)},
		{VehicleID: "c", Stops: make([]model.Stop, 10)},
	}
	if got := BalanceScore(even, nil); got != 100 {
		t.Fatalf("perfectly even should be 100, got %f", got)
	}

	skewed := []model.Route{
		{VehicleID: "a", Stops: make([]model.Stop, 28)},
		{VehicleID: "b", Stops: make([]model.Stop, 1)},
		{VehicleID: "c", Stops: make([]model.Stop, 1)},
	}
	if got := BalanceScore(skewed, nil); got >= 80 {
		t.Fatalf("skewed workload scored %f, expected < 80", got)
	}
}

func TestRedistributeEvensStopCounts(t *testing.T) {
	mk := func(vid string, n int) model.Route {
		rt := model.Route{VehicleID: vid, VehicleOrigin: &depot}
		for i := 0; i < n; i++ {
			rt.Stops = append(rt.Stops, model.Stop{
				OrderID:    vid + "-" + string(rune('a'+i)),
				Location:   model.GeoPoint{Lat: depot.Lat + float64(i)*0.001, Lng: depot.Lng},
				Sequence:   i + 1,
				ServiceSec: 300,
			})
		}
		return rt
	}
	routes := []model.Route{mk("heavy", 8), mk("light", 2)}
	vehicles := map[string]model.Vehicle{"heavy": {ID: "heavy"}, "light": {ID: "light"}}
	cfg := model.Configuration{Depot: depot}

	out := Redistribute(routes, vehicles, nil, cfg)
	if diff := len(out[0].Stops) - len(out[1].Stops); diff > 1 || diff < -1 {
		t.Fatalf("stop counts still uneven: %d vs %d", len(out[0].Stops), len(out[1].Stops))
	}
	for _, rt := range out {
		for i, st := range rt.Stops {
			if st.Sequence != i+1 {
				t.Fatalf("route %s stop %d sequence = %d", rt.VehicleID, i, st.Sequence)
			}
		}
		if len(rt.Stops) > 0 && rt.DistanceM <= 0 {
			t.Fatalf("route %s distance not recomputed", rt.VehicleID)
		}
	}
	// inputs untouched
	if len(routes[0].Stops) != 8 {
		t.Fatalf("input mutated: %d stops", len(routes[0].Stops))
	}
}

func TestRedistributeRespectsStopLimit(t *testing.T) {
	a := model.Route{VehicleID: "a", VehicleOrigin: &depot, Stops: make([]model.Stop, 6)}
	b := model.Route{VehicleID: "b", VehicleOrigin: &depot, Stops: make([]model.Stop, 1)}
	for i := range a.Stops {
		a.Stops[i] = model.Stop{OrderID: "x", Location: depot, Sequence: i + 1}
	}
	b.Stops[0] = model.Stop{OrderID: "y", Location: depot, Sequence: 1}
	vehicles := map[string]model.Vehicle{"a": {ID: "a"}, "b": {ID: "b", MaxStops: 1}}

	out := Redistribute([]model.Route{a, b}, vehicles, nil, model.Configuration{Depot: depot})
	if len(out[1].Stops) != 1 {
		t.Fatalf("receiver over its stop limit: %d", len(out[1].Stops))
	}
}

func TestRedistributeRespectsWeightCapacity(t *testing.T) {
	orders := map[string]model.Order{}
	mk := func(vid string, n int, kg float64) model.Route {
		rt := model.Route{VehicleID: vid, VehicleOrigin: &depot}
		for i := 0; i < n; i++ {
			id := vid + "-" + string(rune('a'+i))
			orders[id] = model.Order{ID: id, Weight: kg, Location: depot}
			rt.Stops = append(rt.Stops, model.Stop{OrderID: id, Location: depot, Sequence: i + 1})
			rt.TotalWeight += kg
		}
		return rt
	}
	big := mk("big", 6, 10)
	tiny := mk("tiny", 1, 10)
	vehicles := map[string]model.Vehicle{
		"big":  {ID: "big", MaxWeight: 100},
		"tiny": {ID: "tiny", MaxWeight: 10}, // already full
	}

	out := Redistribute([]model.Route{big, tiny}, vehicles, orders, model.Configuration{Depot: depot})
	if len(out[1].Stops) != 1 {
		t.Fatalf("stops moved onto a full vehicle: %d", len(out[1].Stops))
	}
	if out[0].TotalWeight != 60 || out[1].TotalWeight != 10 {
		t.Fatalf("weights = %f / %f", out[0].TotalWeight, out[1].TotalWeight)
	}
}

func TestRedistributeMovesWeightWithStop(t *testing.T) {
	orders := map[string]model.Order{}
	mk := func(vid string, n int) model.Route {
		rt := model.Route{VehicleID: vid, VehicleOrigin: &depot}
		for i := 0; i < n; i++ {
			id := vid + "-" + string(rune('a'+i))
			orders[id] = model.Order{ID: id, Weight: 10, Location: depot}
			rt.Stops = append(rt.Stops, model.Stop{OrderID: id, Location: depot, Sequence: i + 1})
			rt.TotalWeight += 10
		}
		return rt
	}
	vehicles := map[string]model.Vehicle{
		"heavy": {ID: "heavy", MaxWeight: 100},
		"light": {ID: "light", MaxWeight: 100},
	}

	out := Redistribute([]model.Route{mk("heavy", 4), mk("light", 1)}, vehicles, orders, model.Configuration{Depot: depot})
	if len(out[0].Stops) != 3 || len(out[1].Stops) != 2 {
		t.Fatalf("stops = %d / %d", len(out[0].Stops), len(out[1].Stops))
	}
	if out[0].TotalWeight != 30 || out[1].TotalWeight != 20 {
		t.Fatalf("weight did not travel with the stop: %f / %f", out[0].TotalWeight, out[1].TotalWeight)
	}
	if out[0].Utilization != 30 || out[1].Utilization != 20 {
		t.Fatalf("utilization stale: %f / %f", out[0].Utilization, out[1].Utilization)
	}
}

func TestTrimToMaxDistance(t *testing.T) {
	rt := model.Route{
		VehicleID:   "v",
		DistanceM:   12000,
		DurationSec: 3600,
		TravelSec:   2400,
		TotalWeight: 40,
	}
	for i := 0; i < 4; i++ {
		rt.Stops = append(rt.Stops, model.Stop{OrderID: string(rune('a' + i)), Sequence: i + 1, ServiceSec: 300})
	}
	trimmed, removed := TrimToMaxDistance(rt, 5) // 5 km ceiling over a 12 km route
	if len(removed) == 0 {
		t.Fatal("expected stops removed")
	}
	if trimmed.DistanceM > 5000 {
		t.Fatalf("still over ceiling: %f", trimmed.DistanceM)
	}
	// removal comes off the end
	if removed[0].OrderID != "d" {
		t.Fatalf("first removed = %s, want d", removed[0].OrderID)
	}
	for i, st := range trimmed.Stops {
		if st.Sequence != i+1 {
			t.Fatalf("sequence not rebuilt at %d", i)
		}
	}
	if trimmed.TotalWeight >= 40 {
		t.Fatalf("weight not reduced: %f", trimmed.TotalWeight)
	}
}

func TestTrimNoopUnderCeiling(t *testing.T) {
	rt := model.Route{DistanceM: 3000, Stops: []model.Stop{{OrderID: "a", Sequence: 1}}}
	trimmed, removed := TrimToMaxDistance(rt, 5)
	if len(removed) != 0 || trimmed.DistanceM != 3000 {
		t.Fatalf("route under ceiling was modified")
	}
}

func TestTrimReasonViaAdapter(t *testing.T) {
	// end-to-end through SolveBatch: a fallback route over the distance
	// ceiling is trimmed and the shed orders carry the km-ceiling reason
	var orders []model.Order
	for i := 1; i <= 5; i++ {
		orders = append(orders, model.Order{
			ID:       string(rune('a' + i - 1)),
			Location: model.GeoPoint{Lat: depot.Lat + float64(i)*0.01, Lng: depot.Lng},
		})
	}
	vehicles := []model.Vehicle{{ID: "v"}}
	cfg := model.Configuration{Depot: depot, MaxDistanceKm: 5}

	a := &Adapter{}
	res, err := a.SolveBatch(context.Background(), orders, vehicles, cfg)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, u := range res.Unassigned {
		if strings.Contains(u.Reason, "km ceiling") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected orders shed with km-ceiling reason, got %+v", res.Unassigned)
	}
	for _, rt := range res.Routes {
		if rt.DistanceM > 5000 {
			t.Fatalf("route still over ceiling: %f", rt.DistanceM)
		}
	}
}
