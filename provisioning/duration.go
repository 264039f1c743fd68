package provisioning

import (
	"strings"
	"time"
)

var planDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// PlanDuration maps a plan duration token (1h, 1d, 7d, 30d) to the access
// time it grants. Unknown tokens grant nothing and report ok=false.
func PlanDuration(token string) (d time.Duration, ok bool) {
	d, ok = planDurations[strings.ToLower(strings.TrimSpace(token))]
	return d, ok
}
