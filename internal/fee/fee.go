// Package fee computes parking charges. The garage bills a flat hourly
// rate prorated per started minute: 600 HUF per hour is 10 HUF per
// minute, and any fraction of a minute counts as a whole minute. A
// stay of zero duration is free.
package fee

import (
	"errors"
	"math"
	"time"
)

const (
	// RatePerHourHUF is the advertised hourly rate.
	RatePerHourHUF = 600
	// RatePerMinuteHUF is the per-minute rate actually billed.
	RatePerMinuteHUF = RatePerHourHUF / 60
)

// ErrInvalidInterval is returned when the end of a stay precedes its
// start. Callers decide whether to surface or repair the interval.
var ErrInvalidInterval = errors.New("fee: end time before start time")

// Compute returns the charge in HUF for the interval [start, end].
// Partial minutes round up, so 90m30s bills as 91 minutes.
func Compute(start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, ErrInvalidInterval
	}
	minutes := int64(math.Ceil(end.Sub(start).Minutes()))
	return minutes * RatePerMinuteHUF, nil
}
