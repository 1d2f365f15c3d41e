package jobs

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"routeplan/internal/assign"
	"routeplan/internal/model"
	"routeplan/internal/solver"
	"routeplan/internal/store"
	"routeplan/internal/zone"
)

// Orchestrator runs one optimization end to end: load inputs, batch by zone,
// solve each batch, staff routes with drivers, roll up metrics. It checks ctx
// between phases and after every batch so cancellation lands quickly, and
// snapshots after each batch so cancelled jobs keep their finished routes.
type Orchestrator struct {
	Store    store.Store
	Adapter  *solver.Adapter
	Strategy string
	// Now is the clock anchor for day-of-week batching and license checks;
	// zero means wall clock.
	Now func() time.Time
}

func (o *Orchestrator) Run(ctx context.Context, job model.Job, cfg model.Configuration, req model.SubmitRequest, sink *Sink) (*model.OptimizationResult, error) {
	now := time.Now()
	if o.Now != nil {
		now = o.Now()
	}
	started := now

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sink.Progress(10, "loading inputs")

	orders, err := o.Store.ListPendingOrders(ctx, job.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	vehicles, err := o.Store.ListVehicles(ctx, job.TenantID, req.VehicleIDs)
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	drivers, err := o.Store.ListDrivers(ctx, job.TenantID, req.DriverIDs)
	if err != nil {
		return nil, fmt.Errorf("load drivers: %w", err)
	}
	zones, err := o.Store.ListZones(ctx, job.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	sink.Progress(20, fmt.Sprintf("%d orders, %d vehicles, %d drivers", len(orders), len(vehicles), len(drivers)))

	result := &model.OptimizationResult{Routes: []model.Route{}, UnassignedOrders: []model.UnassignedOrder{}}
	result.Summary.Objective = objective(cfg)
	if len(orders) == 0 {
		finalize(result, started, 0)
		sink.Progress(100, "no pending orders")
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batched := zone.Build(orders, vehicles, zones, now.Weekday())
	result.UnassignedOrders = append(result.UnassignedOrders, batched.Unassigned...)
	sink.Progress(30, fmt.Sprintf("%d batches", len(batched.Batches)))

	solverUsed := false
	for i, b := range batched.Batches {
		if err := ctx.Err(); err != nil {
			sink.Snapshot(result)
			return nil, err
		}
		br, err := o.Adapter.SolveBatch(ctx, b.Orders, b.Vehicles, cfg)
		if err != nil {
			return nil, fmt.Errorf("solve zone %s: %w", b.ZoneName, err)
		}
		result.Routes = append(result.Routes, br.Routes...)
		result.UnassignedOrders = append(result.UnassignedOrders, br.Unassigned...)
		solverUsed = solverUsed || br.SolverUsed
		result.Summary.BatchesSolved = i + 1
		result.Summary.SolverUsed = solverUsed

		snapshot := *result
		sink.Snapshot(&snapshot)
		pct := 30 + (i+1)*40/len(batched.Batches)
		sink.Progress(pct, fmt.Sprintf("zone %s solved", b.ZoneName))
	}

	if err := ctx.Err(); err != nil {
		sink.Snapshot(result)
		return nil, err
	}
	scorer := &assign.Scorer{Strategy: o.Strategy, Now: now}
	result.Routes = scorer.AssignAll(result.Routes, drivers, vehicleIndex(vehicles), orders)
	result.Assignment = assign.Rollup(result.Routes)
	sink.Progress(90, "drivers assigned")

	var assignedIDs []string
	for _, rt := range result.Routes {
		for _, st := range rt.Stops {
			assignedIDs = append(assignedIDs, st.OrderID)
		}
	}
	if err := o.Store.MarkOrdersAssigned(ctx, job.TenantID, assignedIDs); err != nil {
		log.Printf("job %s: mark orders assigned: %v", job.ID, err)
	}

	finalize(result, started, computeBalance(result.Routes, vehicles))
	sink.Snapshot(result)
	sink.Progress(100, "completed")
	return result, nil
}

func objective(cfg model.Configuration) string {
	if cfg.Objective == "" {
		return model.ObjectiveBalanced
	}
	return cfg.Objective
}

func vehicleIndex(vehicles []model.Vehicle) map[string]model.Vehicle {
	idx := make(map[string]model.Vehicle, len(vehicles))
	for _, v := range vehicles {
		idx[v.ID] = v
	}
	return idx
}

func computeBalance(routes []model.Route, vehicles []model.Vehicle) float64 {
	return solver.BalanceScore(routes, vehicleIndex(vehicles))
}

func finalize(result *model.OptimizationResult, started time.Time, balance float64) {
	m := &result.Metrics
	var util float64
	violations := 0
	for _, rt := range result.Routes {
		m.TotalDistanceM += rt.DistanceM
		m.TotalDurationSec += rt.DurationSec
		m.TotalStops += len(rt.Stops)
		util += rt.Utilization
		violations += rt.TWViolations
	}
	m.TotalRoutes = len(result.Routes)
	if m.TotalRoutes > 0 {
		m.UtilizationRate = math.Round(util/float64(m.TotalRoutes)*10) / 10
	}
	if m.TotalStops > 0 {
		m.TWCompliance = math.Round((1-float64(violations)/float64(m.TotalStops))*1000) / 10
	}
	m.BalanceScore = balance

	result.Summary.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	result.Summary.ProcessingMs = float64(time.Since(started).Milliseconds())
}
