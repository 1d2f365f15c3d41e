// Package zone partitions orders and vehicles into independent sub-problems
// by geographic zone and day-of-week eligibility.
package zone

import (
	"fmt"
	"time"

	"routeplan/internal/geo"
	"routeplan/internal/model"
)

// UnzonedID labels the bucket for orders outside every configured polygon.
const UnzonedID = "unzoned"

// Batch is one solver-sized sub-problem: the orders in a zone and the
// vehicles eligible to serve it today.
type Batch struct {
	ZoneID   string
	ZoneName string
	Orders   []model.Order
	Vehicles []model.Vehicle
}

// Result is the batching output: solvable batches plus orders that no batch
// can serve, already carrying their reason.
type Result struct {
	Batches    []Batch
	Unassigned []model.UnassignedOrder
}

// Build partitions the problem. With no active zones the whole input is a
// single batch. Orders land in the first active zone whose polygon contains
// them; vehicles serve the zones they hold an active assignment for on the
// given weekday. Vehicles with no zone assignments serve the unzoned bucket.
func Build(orders []model.Order, vehicles []model.Vehicle, zones []model.Zone, day time.Weekday) Result {
	active := make([]model.Zone, 0, len(zones))
	for _, z := range zones {
		if z.Active && len(z.Polygon) >= 3 {
			active = append(active, z)
		}
	}
	if len(active) == 0 {
		return Result{Batches: []Batch{{ZoneID: "", ZoneName: "all", Orders: orders, Vehicles: vehicles}}}
	}

	activeIDs := make(map[string]bool, len(active))
	for _, z := range active {
		activeIDs[z.ID] = true
	}

	ordersByZone := map[string][]model.Order{}
	for _, o := range orders {
		zid := UnzonedID
		// An explicit zone id on the order wins over geometry, but only when
		// it names an active zone; unknown or inactive ids fall back to
		// geometry so the order still lands in an emitted bucket.
		if o.ZoneID != "" && activeIDs[o.ZoneID] {
			zid = o.ZoneID
		} else {
			for _, z := range active {
				if geo.PointInPolygon(o.Location, z.Polygon) {
					zid = z.ID
					break
				}
			}
		}
		ordersByZone[zid] = append(ordersByZone[zid], o)
	}

	vehiclesByZone := map[string][]model.Vehicle{}
	for _, v := range vehicles {
		if len(v.Zones) == 0 {
			vehiclesByZone[UnzonedID] = append(vehiclesByZone[UnzonedID], v)
			continue
		}
		for _, za := range v.Zones {
			if za.Active && dayMatches(za.Days, day) {
				vehiclesByZone[za.ZoneID] = append(vehiclesByZone[za.ZoneID], v)
			}
		}
	}

	var res Result
	emit := func(zid, name string) {
		zo := ordersByZone[zid]
		if len(zo) == 0 {
			return
		}
		zv := vehiclesByZone[zid]
		if len(zv) == 0 {
			for _, o := range zo {
				res.Unassigned = append(res.Unassigned, model.UnassignedOrder{
					OrderID:    o.ID,
					TrackingID: o.TrackingID,
					Reason:     fmt.Sprintf("no vehicle eligible for zone %s on %s", name, day),
				})
			}
			return
		}
		res.Batches = append(res.Batches, Batch{ZoneID: zid, ZoneName: name, Orders: zo, Vehicles: zv})
	}
	for _, z := range active {
		emit(z.ID, z.Name)
	}
	emit(UnzonedID, UnzonedID)
	return res
}

func dayMatches(days []int, day time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == int(day) {
			return true
		}
	}
	return false
}
