package estimate

import "time"

// EstimateNumber formats the human-facing estimate number for one
// generation: YYYYMMDD-HHMM in UTC.
func EstimateNumber(t time.Time) string {
	return t.UTC().Format("20060102-1504")
}
