// Package capacity maps a company's active capacity dimensions onto
// fixed-order numeric vectors shared by orders and vehicles.
package capacity

import (
	"errors"
	"fmt"

	"routeplan/internal/model"
)

// Dimension tags, in canonical order.
const (
	DimWeight = "weight"
	DimVolume = "volume"
	DimValue  = "value"
	DimUnits  = "units"
	DimOrders = "orders" // synthetic: each order counts as 1, caps max stops
)

// Unlimited placeholders for vehicles that do not declare a limit on an
// active dimension.
const (
	unlimitedValue = 100000
	unlimitedUnits = 1000
	unlimitedStops = 999
)

var ErrDimensionMismatch = errors.New("capacity dimension mismatch")

// Entry pairs a dimension tag with its value so callers can log or inspect
// vectors without positional knowledge.
type Entry struct {
	Dim   string  `json:"dim"`
	Value float64 `json:"value"`
}

// Profile is an ordered list of active capacity dimensions. The same profile
// must build every order and vehicle vector within one solve.
type Profile struct {
	dims []string
}

// New builds a profile from explicit dimension tags. Unknown tags are
// rejected; the "orders" dimension is always appended last.
func New(dims []string) (Profile, error) {
	out := make([]string, 0, len(dims)+1)
	for _, d := range dims {
		switch d {
		case DimWeight, DimVolume, DimValue, DimUnits:
			out = append(out, d)
		case DimOrders:
			// appended below
		default:
			return Profile{}, fmt.Errorf("unknown capacity dimension %q", d)
		}
	}
	out = append(out, DimOrders)
	return Profile{dims: out}, nil
}

// Detect derives the active dimensions from observed demand: a dimension is
// active when at least one order demands it.
func Detect(orders []model.Order) Profile {
	dims := []string{}
	add := func(d string, present bool) {
		if present {
			dims = append(dims, d)
		}
	}
	var w, v, val, u bool
	for _, o := range orders {
		w = w || o.Weight > 0
		v = v || o.Volume > 0
		val = val || o.Value > 0
		u = u || o.Units > 0
	}
	add(DimWeight, w)
	add(DimVolume, v)
	add(DimValue, val)
	add(DimUnits, u)
	p, _ := New(dims)
	return p
}

// Dims returns the ordered dimension tags.
func (p Profile) Dims() []string { return append([]string(nil), p.dims...) }

// Len is the vector width this profile produces.
func (p Profile) Len() int { return len(p.dims) }

// Demand builds the order's demand vector in profile order.
func (p Profile) Demand(o model.Order) []Entry {
	out := make([]Entry, 0, len(p.dims))
	for _, d := range p.dims {
		var v float64
		switch d {
		case DimWeight:
			v = o.Weight
		case DimVolume:
			v = o.Volume
		case DimValue:
			v = o.Value
		case DimUnits:
			v = float64(o.Units)
		case DimOrders:
			v = 1
		}
		out = append(out, Entry{Dim: d, Value: v})
	}
	return out
}

// Limits builds the vehicle's capacity vector in profile order.
// maxStopsOverride, when > 0, caps the orders dimension below the vehicle's
// own limit (used by balance-visits).
func (p Profile) Limits(v model.Vehicle, maxStopsOverride int) []Entry {
	out := make([]Entry, 0, len(p.dims))
	for _, d := range p.dims {
		var val float64
		switch d {
		case DimWeight:
			val = v.MaxWeight
		case DimVolume:
			val = v.MaxVolume
		case DimValue:
			val = v.MaxValue
			if val <= 0 {
				val = unlimitedValue
			}
		case DimUnits:
			val = float64(v.MaxUnits)
			if val <= 0 {
				val = unlimitedUnits
			}
		case DimOrders:
			limit := v.MaxStops
			if limit <= 0 {
				limit = unlimitedStops
			}
			if maxStopsOverride > 0 && maxStopsOverride < limit {
				limit = maxStopsOverride
			}
			val = float64(limit)
		}
		out = append(out, Entry{Dim: d, Value: val})
	}
	return out
}

// Values flattens a vector to its numbers, preserving profile order.
func Values(entries []Entry) []float64 {
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// CheckAligned verifies two vectors were produced by the same profile.
// A width or tag mismatch between any order and vehicle is a fatal input
// error for the solve.
func CheckAligned(demand, limits []Entry) error {
	if len(demand) != len(limits) {
		return fmt.Errorf("%w: demand has %d dimensions, capacity has %d", ErrDimensionMismatch, len(demand), len(limits))
	}
	for i := range demand {
		if demand[i].Dim != limits[i].Dim {
			return fmt.Errorf("%w: dimension %d is %q vs %q", ErrDimensionMismatch, i, demand[i].Dim, limits[i].Dim)
		}
	}
	return nil
}

// Fits reports whether adding demand to used stays within limits on every
// dimension. A limit of 0 on weight/volume means the dimension is inactive
// for that vehicle and never constrains.
func Fits(used, demand, limits []Entry) bool {
	for i := range limits {
		lim := limits[i].Value
		if lim <= 0 {
			continue
		}
		if used[i].Value+demand[i].Value > lim {
			return false
		}
	}
	return true
}

// Add accumulates demand into used in place.
func Add(used, demand []Entry) {
	for i := range used {
		used[i].Value += demand[i].Value
	}
}

// Zero returns an all-zero vector for the profile.
func (p Profile) Zero() []Entry {
	out := make([]Entry, len(p.dims))
	for i, d := range p.dims {
		out[i] = Entry{Dim: d}
	}
	return out
}
