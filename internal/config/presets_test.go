package config

import (
	"os"
	"path/filepath"
	"testing"

	"routeplan/internal/model"
)

func TestLoadBuiltinWhenMissing(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p["urban_dense"]; !ok {
		t.Fatal("builtin presets missing urban_dense")
	}
	p, err = Load("/nonexistent/presets.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(p) == 0 {
		t.Fatal("missing file should fall back to builtins")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	body := `
night_shift:
  objective: TIME
  openStart: true
  trafficFactor: 20
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := model.Configuration{Preset: "night_shift", Objective: model.ObjectiveDistance}
	if err := p.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Objective != model.ObjectiveTime || !cfg.OpenStart || cfg.TrafficFactor != 20 {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
}

func TestApplyLeavesUnsetFields(t *testing.T) {
	p := Presets{"min": {Objective: model.ObjectiveTime}}
	cfg := model.Configuration{Preset: "min", MaxDistanceKm: 42, BalanceVisits: true}
	if err := p.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MaxDistanceKm != 42 || !cfg.BalanceVisits {
		t.Fatalf("unset preset fields overwrote config: %+v", cfg)
	}
}

func TestApplyUnknownPreset(t *testing.T) {
	p := Presets{}
	cfg := model.Configuration{Preset: "typo"}
	if err := p.Apply(&cfg); err == nil {
		t.Fatal("expected error for unknown preset")
	}
	// no preset is a no-op
	cfg = model.Configuration{}
	if err := p.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
}

func TestPresetCanForceFlagOff(t *testing.T) {
	off := false
	p := Presets{"solo": {MinimizeFleet: &off}}
	cfg := model.Configuration{Preset: "solo", MinimizeFleet: true}
	if err := p.Apply(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MinimizeFleet {
		t.Fatal("pointer false should switch the flag off")
	}
}
