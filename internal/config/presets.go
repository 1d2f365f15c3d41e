// Package config loads named optimization presets from YAML and overlays
// them onto tenant configurations.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"routeplan/internal/model"
)

// Preset is a partial configuration overlay. Pointer fields distinguish
// "unset" from zero so a preset can force a flag off.
type Preset struct {
	Objective     string   `yaml:"objective"`
	BalanceVisits *bool    `yaml:"balanceVisits"`
	MaxDistanceKm *float64 `yaml:"maxDistanceKm"`
	MaxTravelMin  *float64 `yaml:"maxTravelMin"`
	TrafficFactor *int     `yaml:"trafficFactor"`
	RouteEndMode  string   `yaml:"routeEndMode"`
	OpenStart     *bool    `yaml:"openStart"`
	MinimizeFleet *bool    `yaml:"minimizeFleet"`
	FlexibleTW    *bool    `yaml:"flexibleTimeWindows"`
	ActiveDims    []string `yaml:"activeDims"`
}

type Presets map[string]Preset

// Load reads presets from path, or returns the built-in set when path is
// empty or missing.
func Load(path string) (Presets, error) {
	if path == "" {
		return builtin(), nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return builtin(), nil
	}
	if err != nil {
		return nil, err
	}
	var p Presets
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	return p, nil
}

// Apply overlays the named preset onto cfg. Unknown presets are an error so
// typos do not silently run with defaults.
func (ps Presets) Apply(cfg *model.Configuration) error {
	if cfg.Preset == "" {
		return nil
	}
	p, ok := ps[cfg.Preset]
	if !ok {
		return fmt.Errorf("unknown preset %q", cfg.Preset)
	}
	if p.Objective != "" {
		cfg.Objective = p.Objective
	}
	if p.BalanceVisits != nil {
		cfg.BalanceVisits = *p.BalanceVisits
	}
	if p.MaxDistanceKm != nil {
		cfg.MaxDistanceKm = *p.MaxDistanceKm
	}
	if p.MaxTravelMin != nil {
		cfg.MaxTravelMin = *p.MaxTravelMin
	}
	if p.TrafficFactor != nil {
		cfg.TrafficFactor = *p.TrafficFactor
	}
	if p.RouteEndMode != "" {
		cfg.RouteEndMode = p.RouteEndMode
	}
	if p.OpenStart != nil {
		cfg.OpenStart = *p.OpenStart
	}
	if p.MinimizeFleet != nil {
		cfg.MinimizeFleet = *p.MinimizeFleet
	}
	if p.FlexibleTW != nil {
		cfg.FlexibleTW = *p.FlexibleTW
	}
	if len(p.ActiveDims) > 0 {
		cfg.ActiveDims = p.ActiveDims
	}
	return nil
}

func bp(b bool) *bool       { return &b }
func fp(f float64) *float64 { return &f }
func ip(i int) *int         { return &i }

func builtin() Presets {
	return Presets{
		"urban_dense": {
			Objective:     model.ObjectiveTime,
			BalanceVisits: bp(true),
			MaxDistanceKm: fp(60),
			TrafficFactor: ip(70),
			FlexibleTW:    bp(true),
		},
		"long_haul": {
			Objective:     model.ObjectiveDistance,
			MaxTravelMin:  fp(540),
			MinimizeFleet: bp(true),
			RouteEndMode:  model.RouteEndReturnToDepot,
		},
		"balanced_fleet": {
			Objective:     model.ObjectiveBalanced,
			BalanceVisits: bp(true),
			MinimizeFleet: bp(false),
		},
	}
}
