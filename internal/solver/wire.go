package solver

// Wire types for the external VRP service. Field names are snake_case as the
// service consumes and produces them.

// JobSpec is one delivery in a solve request.
type JobSpec struct {
	ID          string      `json:"id"`
	Location    [2]float64  `json:"location"` // [lat, lng]
	Demand      []float64   `json:"demand"`
	Skills      []string    `json:"skills,omitempty"`
	Priority    int         `json:"priority,omitempty"`
	TimeWindow  *[2]int     `json:"time_window,omitempty"` // seconds from midnight
	ServiceSec  int         `json:"service_duration,omitempty"`
}

// VehicleSpec is one vehicle in a solve request.
type VehicleSpec struct {
	ID           string      `json:"id"`
	Start        *[2]float64 `json:"start,omitempty"`
	End          *[2]float64 `json:"end,omitempty"` // nil = open-ended route
	Capacity     []float64   `json:"capacity"`
	Skills       []string    `json:"skills,omitempty"`
	TimeWindow   *[2]int     `json:"time_window,omitempty"`
	SpeedFactor  float64     `json:"speed_factor,omitempty"`
	MaxTasks     int         `json:"max_tasks,omitempty"`
	MaxTravelSec int         `json:"max_travel_time,omitempty"`
}

// Objective weights one minimization target.
type Objective struct {
	Type   string  `json:"type"` // min-distance | min-duration
	Weight float64 `json:"weight"`
}

const (
	ObjMinDistance = "min-distance"
	ObjMinDuration = "min-duration"
)

// SolveRequest is the full request body for POST /solve.
type SolveRequest struct {
	Jobs       []JobSpec     `json:"jobs"`
	Vehicles   []VehicleSpec `json:"vehicles"`
	Objectives []Objective   `json:"objectives"`
	Geometry   bool          `json:"geometry,omitempty"`
}

// Step is one event on a solved route. Type is "start", "job" or "end".
type Step struct {
	Type        string  `json:"type"`
	Job         string  `json:"job,omitempty"`
	Arrival     float64 `json:"arrival"`
	Service     float64 `json:"service,omitempty"`
	WaitingTime float64 `json:"waiting_time,omitempty"`
}

// WireRoute is one vehicle's solved route.
type WireRoute struct {
	Vehicle     string  `json:"vehicle"`
	Steps       []Step  `json:"steps"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Service     float64 `json:"service,omitempty"`
	WaitingTime float64 `json:"waiting_time,omitempty"`
	Geometry    string  `json:"geometry,omitempty"`
}

// WireUnassigned is a job the solver could not place.
type WireUnassigned struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// Summary aggregates a solve response.
type Summary struct {
	Distance        float64 `json:"distance"`
	Duration        float64 `json:"duration"`
	Routes          int     `json:"routes"`
	ComputingTimeMs float64 `json:"computing_time_ms,omitempty"`
}

// SolveResponse is the full response body from POST /solve.
type SolveResponse struct {
	Routes     []WireRoute      `json:"routes"`
	Unassigned []WireUnassigned `json:"unassigned"`
	Summary    Summary          `json:"summary"`
}
