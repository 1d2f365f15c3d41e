package model

import "time"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow bounds are RFC3339 datetimes or bare "HH:MM[:SS]" clock times.
type TimeWindow struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Order is a pending delivery to be placed on a route.
type Order struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenantId,omitempty"`
	TrackingID string      `json:"trackingId"`
	Address    string      `json:"address,omitempty"`
	Location   GeoPoint    `json:"location"`
	Weight     float64     `json:"weight,omitempty"`
	Volume     float64     `json:"volume,omitempty"`
	Value      float64     `json:"value,omitempty"`
	Units      int         `json:"units,omitempty"`
	Priority   int         `json:"priority,omitempty"`
	TimeWindow *TimeWindow `json:"timeWindow,omitempty"`
	ServiceSec int         `json:"serviceSec,omitempty"`
	Skills     []string    `json:"skills,omitempty"`
	ZoneID     string      `json:"zoneId,omitempty"`
	Status     string      `json:"status,omitempty"` // pending, assigned, delivered
}

// ZoneAssignment grants a vehicle a zone on specific days of week (0=Sunday).
type ZoneAssignment struct {
	ZoneID string `json:"zoneId"`
	Days   []int  `json:"days,omitempty"` // empty = every day
	Active bool   `json:"active"`
}

// Vehicle is a routable unit of capacity.
type Vehicle struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenantId,omitempty"`
	Plate       string           `json:"plate"`
	MaxWeight   float64          `json:"maxWeight,omitempty"`
	MaxVolume   float64          `json:"maxVolume,omitempty"`
	MaxValue    float64          `json:"maxValue,omitempty"`
	MaxUnits    int              `json:"maxUnits,omitempty"`
	MaxStops    int              `json:"maxStops,omitempty"` // 0 = unlimited
	Origin      *GeoPoint        `json:"origin,omitempty"`   // defaults to depot
	Skills      []string         `json:"skills,omitempty"`
	SpeedFactor float64          `json:"speedFactor,omitempty"`
	FleetID     string           `json:"fleetId,omitempty"`
	Zones       []ZoneAssignment `json:"zones,omitempty"`
}

// Driver is a candidate for staffing a route.
type Driver struct {
	ID             string   `json:"id"`
	TenantID       string   `json:"tenantId,omitempty"`
	Name           string   `json:"name"`
	Skills         []string `json:"skills,omitempty"`
	LicenseExpires string   `json:"licenseExpires,omitempty"` // RFC3339 date
	FleetID        string   `json:"fleetId,omitempty"`
	Status         string   `json:"status,omitempty"` // AVAILABLE, ON_ROUTE, OFF
}

// Zone is a named polygon used to partition the problem geographically.
type Zone struct {
	ID       string     `json:"id"`
	TenantID string     `json:"tenantId,omitempty"`
	Name     string     `json:"name"`
	Polygon  []GeoPoint `json:"polygon"`
	Active   bool       `json:"active"`
}

// Objectives select what the solver minimizes.
const (
	ObjectiveDistance = "DISTANCE"
	ObjectiveTime     = "TIME"
	ObjectiveBalanced = "BALANCED"
)

// Route end modes.
const (
	RouteEndDriverOrigin  = "DRIVER_ORIGIN"
	RouteEndReturnToDepot = "RETURN_TO_DEPOT"
	RouteEndOpen          = "OPEN_END"
)

// Configuration holds depot and solver tuning for a tenant's optimization runs.
type Configuration struct {
	ID              string      `json:"id"`
	TenantID        string      `json:"tenantId,omitempty"`
	Name            string      `json:"name,omitempty"`
	Preset          string      `json:"preset,omitempty"`
	Depot           GeoPoint    `json:"depot"`
	DepotWindow     *TimeWindow `json:"depotWindow,omitempty"`
	Objective       string      `json:"objective,omitempty"` // DISTANCE | TIME | BALANCED
	BalanceVisits   bool        `json:"balanceVisits,omitempty"`
	MaxDistanceKm   float64     `json:"maxDistanceKm,omitempty"`
	MaxTravelMin    float64     `json:"maxTravelMin,omitempty"`
	TrafficFactor   int         `json:"trafficFactor,omitempty"` // 0-100, 50 = normal
	RouteEndMode    string      `json:"routeEndMode,omitempty"`
	OpenStart       bool        `json:"openStart,omitempty"`
	MinimizeFleet   bool        `json:"minimizeFleet,omitempty"`
	FlexibleTW      bool        `json:"flexibleTimeWindows,omitempty"`
	ActiveDims      []string    `json:"activeDims,omitempty"` // capacity profile; empty = detect
	SolveTimeoutSec int         `json:"solveTimeoutSec,omitempty"`
}

// Job statuses.
const (
	JobPending   = "PENDING"
	JobRunning   = "RUNNING"
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
	JobCancelled = "CANCELLED"
)

// Job tracks one optimization run through its lifecycle.
type Job struct {
	ID              string              `json:"id"`
	TenantID        string              `json:"tenantId"`
	ConfigurationID string              `json:"configurationId"`
	Status          string              `json:"status"`
	Progress        int                 `json:"progress"`
	Fingerprint     string              `json:"fingerprint,omitempty"`
	TimeoutSec      int                 `json:"timeoutSec,omitempty"`
	Result          *OptimizationResult `json:"result,omitempty"`
	Error           string              `json:"error,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	StartedAt       *time.Time          `json:"startedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobCancelled
}

// Stop is one visit on a planned route.
type Stop struct {
	OrderID    string   `json:"orderId"`
	TrackingID string   `json:"trackingId,omitempty"`
	Location   GeoPoint `json:"location"`
	Sequence   int      `json:"sequence"`
	ArrivalSec float64  `json:"arrivalSec,omitempty"` // seconds from midnight
	WaitingSec float64  `json:"waitingSec,omitempty"`
	ServiceSec float64  `json:"serviceSec,omitempty"`
}

// AssignmentQuality records how the chosen driver scored for a route.
type AssignmentQuality struct {
	Score        float64  `json:"score"`
	SkillsMatch  bool     `json:"skillsMatch"`
	FleetMatch   bool     `json:"fleetMatch"`
	LicenseValid bool     `json:"licenseValid"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Route is one vehicle's planned stop sequence with aggregates.
type Route struct {
	VehicleID     string             `json:"vehicleId"`
	VehiclePlate  string             `json:"vehiclePlate,omitempty"`
	VehicleOrigin *GeoPoint          `json:"vehicleOrigin,omitempty"`
	Stops         []Stop             `json:"stops"`
	DistanceM     float64            `json:"distanceM"`
	DurationSec   float64            `json:"durationSec"`
	TravelSec     float64            `json:"travelSec,omitempty"`
	ServiceSec    float64            `json:"serviceSec,omitempty"`
	TotalWeight   float64            `json:"totalWeight,omitempty"`
	TotalVolume   float64            `json:"totalVolume,omitempty"`
	Utilization   float64            `json:"utilization,omitempty"` // percent of binding capacity
	TWViolations  int                `json:"twViolations,omitempty"`
	Geometry      string             `json:"geometry,omitempty"`
	DriverID      string             `json:"driverId,omitempty"`
	DriverName    string             `json:"driverName,omitempty"`
	Assignment    *AssignmentQuality `json:"assignment,omitempty"`
}

// UnassignedOrder is an order no route could take, with a reason.
type UnassignedOrder struct {
	OrderID    string `json:"orderId"`
	TrackingID string `json:"trackingId,omitempty"`
	Reason     string `json:"reason"`
}

// ResultMetrics aggregates route quality for a completed job.
type ResultMetrics struct {
	TotalDistanceM   float64 `json:"totalDistanceM"`
	TotalDurationSec float64 `json:"totalDurationSec"`
	TotalRoutes      int     `json:"totalRoutes"`
	TotalStops       int     `json:"totalStops"`
	UtilizationRate  float64 `json:"utilizationRate,omitempty"`
	TWCompliance     float64 `json:"twCompliance,omitempty"` // 0-100
	BalanceScore     float64 `json:"balanceScore,omitempty"` // 0-100
}

// AssignmentRollup summarizes driver-assignment quality across routes.
type AssignmentRollup struct {
	AverageScore    float64 `json:"averageScore"`
	SkillCoverage   float64 `json:"skillCoverage"`   // fraction of driven routes with full skill match
	LicenseCoverage float64 `json:"licenseCoverage"` // fraction with licenses valid beyond warning horizon
	FleetCoverage   float64 `json:"fleetCoverage"`
	DrivenRoutes    int     `json:"drivenRoutes"`
	UndrivenRoutes  int     `json:"undrivenRoutes"`
}

// ResultSummary describes how the result was produced.
type ResultSummary struct {
	CompletedAt   string  `json:"completedAt"`
	Objective     string  `json:"objective"`
	ProcessingMs  float64 `json:"processingMs"`
	SolverUsed    bool    `json:"solverUsed"`
	BatchesSolved int     `json:"batchesSolved"`
}

// OptimizationResult is the final (or partial) output of a job.
type OptimizationResult struct {
	Routes           []Route           `json:"routes"`
	UnassignedOrders []UnassignedOrder `json:"unassignedOrders"`
	Metrics          ResultMetrics     `json:"metrics"`
	Assignment       *AssignmentRollup `json:"assignment,omitempty"`
	Summary          ResultSummary     `json:"summary"`
	Partial          bool              `json:"isPartial,omitempty"`
}

// SubmitRequest is the optimize-job submission body.
type SubmitRequest struct {
	TenantID        string   `json:"tenantId,omitempty"`
	ConfigurationID string   `json:"configurationId"`
	VehicleIDs      []string `json:"vehicleIds,omitempty"` // empty = all tenant vehicles
	DriverIDs       []string `json:"driverIds,omitempty"`  // empty = all available drivers
	TimeoutSec      int      `json:"timeoutSec,omitempty"`
}

// SubscriptionRequest registers a webhook for job terminal events.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
