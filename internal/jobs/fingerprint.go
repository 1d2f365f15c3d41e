package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"routeplan/internal/model"
)

// Fingerprint hashes the inputs that determine a job's outcome: the
// configuration id plus the sorted ids of every vehicle, driver and pending
// order in scope. Two submissions with equal fingerprints would compute the
// same result, so the second can reuse the first.
func Fingerprint(configID string, vehicles []model.Vehicle, drivers []model.Driver, orders []model.Order) string {
	parts := make([]string, 0, len(vehicles)+len(drivers)+len(orders)+1)
	parts = append(parts, "cfg:"+configID)
	for _, v := range vehicles {
		parts = append(parts, "veh:"+v.ID)
	}
	for _, d := range drivers {
		parts = append(parts, "drv:"+d.ID)
	}
	for _, o := range orders {
		parts = append(parts, "ord:"+o.ID)
	}
	sort.Strings(parts[1:])
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
