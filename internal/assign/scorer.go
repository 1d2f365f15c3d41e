// Package assign staffs planned routes with drivers using weighted factor
// scoring. A route no driver qualifies for stays undriven; that is reported,
// never fatal.
package assign

import (
	"fmt"
	"math"
	"sort"
	"time"

	"routeplan/internal/model"
)

// Assignment strategies.
const (
	StrategyBalanced     = "BALANCED"
	StrategyAvailability = "AVAILABILITY"
	StrategySkillsFirst  = "SKILLS_FIRST"
	StrategyFleetMatch   = "FLEET_MATCH"
)

// licenses expiring within this horizon produce a warning but still qualify
const licenseWarnDays = 30

type weights struct {
	skills, availability, license, fleet float64
}

func weightsFor(strategy string) weights {
	switch strategy {
	case StrategySkillsFirst:
		return weights{skills: 0.55, availability: 0.15, license: 0.15, fleet: 0.15}
	case StrategyAvailability:
		return weights{skills: 0.15, availability: 0.55, license: 0.15, fleet: 0.15}
	case StrategyFleetMatch:
		return weights{skills: 0.15, availability: 0.15, license: 0.15, fleet: 0.55}
	default:
		return weights{skills: 0.25, availability: 0.25, license: 0.25, fleet: 0.25}
	}
}

// Scorer assigns drivers to routes. Now anchors license checks so tests can
// pin the clock.
type Scorer struct {
	Strategy string
	Now      time.Time
}

// AssignAll staffs routes in order. Only available drivers are candidates;
// each is used at most once, and ties on score break toward the lexically
// smaller driver id so runs are repeatable. The orders supply the per-route
// skill requirements (the union of skills the route's stops demand).
func (s *Scorer) AssignAll(routes []model.Route, drivers []model.Driver, vehicles map[string]model.Vehicle, orders []model.Order) []model.Route {
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	w := weightsFor(s.Strategy)
	taken := map[string]bool{}

	skillsByOrder := make(map[string][]string, len(orders))
	for _, o := range orders {
		if len(o.Skills) > 0 {
			skillsByOrder[o.ID] = o.Skills
		}
	}

	sorted := append([]model.Driver(nil), drivers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	out := append([]model.Route(nil), routes...)
	for i := range out {
		required := routeSkills(out[i], skillsByOrder)
		var best *model.Driver
		var bestQ model.AssignmentQuality
		bestScore := -1.0
		for di := range sorted {
			d := sorted[di]
			if taken[d.ID] || !eligible(d.Status) {
				continue
			}
			q, ok := s.score(d, vehicles[out[i].VehicleID], required, w, now)
			if !ok {
				continue
			}
			if q.Score > bestScore {
				best = &sorted[di]
				bestQ = q
				bestScore = q.Score
			}
		}
		if best == nil {
			continue
		}
		taken[best.ID] = true
		out[i].DriverID = best.ID
		out[i].DriverName = best.Name
		q := bestQ
		out[i].Assignment = &q
	}
	return out
}

// eligible admits drivers to the candidate pool; a blank status reads as
// available.
func eligible(status string) bool {
	return status == "" || status == "AVAILABLE"
}

// routeSkills is the union of skills the route's orders demand, in first-seen
// order.
func routeSkills(rt model.Route, skillsByOrder map[string][]string) []string {
	seen := map[string]bool{}
	var req []string
	for _, st := range rt.Stops {
		for _, sk := range skillsByOrder[st.OrderID] {
			if !seen[sk] {
				seen[sk] = true
				req = append(req, sk)
			}
		}
	}
	return req
}

// score rates one eligible driver for one route. An expired license
// disqualifies outright.
func (s *Scorer) score(d model.Driver, v model.Vehicle, required []string, w weights, now time.Time) (model.AssignmentQuality, bool) {
	q := model.AssignmentQuality{}

	licScore, valid, warning := licenseScore(d.LicenseExpires, now)
	if !valid {
		return q, false
	}
	q.LicenseValid = true
	if warning != "" {
		q.Warnings = append(q.Warnings, warning)
	}

	skillScore := 1.0
	if len(required) > 0 {
		matched := 0
		for _, r := range required {
			for _, h := range d.Skills {
				if h == r {
					matched++
					break
				}
			}
		}
		skillScore = float64(matched) / float64(len(required))
	}
	q.SkillsMatch = skillScore == 1

	// among eligible candidates an explicit AVAILABLE beats an unreported
	// status
	availScore := 0.8
	if d.Status == "AVAILABLE" {
		availScore = 1
	}

	fleetScore := 0.7
	switch {
	case d.FleetID != "" && d.FleetID == v.FleetID:
		fleetScore = 1
		q.FleetMatch = true
	case d.FleetID != "" && v.FleetID != "" && d.FleetID != v.FleetID:
		fleetScore = 0.3
	}

	total := w.skills*skillScore + w.availability*availScore + w.license*licScore + w.fleet*fleetScore
	q.Score = math.Round(total*1000) / 10 // percent, one decimal
	return q, true
}

// licenseScore parses the expiry ("2006-01-02" or RFC3339). Missing expiry is
// treated as valid with full score; unparseable gets a warning.
func licenseScore(expires string, now time.Time) (score float64, valid bool, warning string) {
	if expires == "" {
		return 1, true, ""
	}
	t, err := time.Parse("2006-01-02", expires)
	if err != nil {
		t, err = time.Parse(time.RFC3339, expires)
	}
	if err != nil {
		return 0.5, true, "license expiry unparseable: " + expires
	}
	if !t.After(now) {
		return 0, false, ""
	}
	if t.Before(now.AddDate(0, 0, licenseWarnDays)) {
		days := int(t.Sub(now).Hours() / 24)
		return 0.5, true, fmt.Sprintf("license expires in %d days", days)
	}
	return 1, true, ""
}

// Rollup aggregates assignment quality across routes.
func Rollup(routes []model.Route) *model.AssignmentRollup {
	r := &model.AssignmentRollup{}
	var total float64
	var skills, license, fleet int
	for _, rt := range routes {
		if rt.Assignment == nil {
			r.UndrivenRoutes++
			continue
		}
		r.DrivenRoutes++
		total += rt.Assignment.Score
		if rt.Assignment.SkillsMatch {
			skills++
		}
		if rt.Assignment.LicenseValid && len(rt.Assignment.Warnings) == 0 {
			license++
		}
		if rt.Assignment.FleetMatch {
			fleet++
		}
	}
	if r.DrivenRoutes > 0 {
		n := float64(r.DrivenRoutes)
		r.AverageScore = math.Round(total/n*10) / 10
		r.SkillCoverage = float64(skills) / n
		r.LicenseCoverage = float64(license) / n
		r.FleetCoverage = float64(fleet) / n
	}
	return r
}
