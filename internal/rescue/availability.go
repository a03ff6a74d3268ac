package rescue

import "time"

// availabilityState persists the monitor's 1 Hz gate and hysteresis
// flags between calls.
type availabilityState struct {
	previousTime   time.Time
	secondsLowSats int
	lowSats        bool
	noFix          bool
}

// checkAvailability reports whether rescue preconditions currently
// hold, for advisory display only; it never gates the rescue itself and
// never mutates phase or failure. Loss of GPS health or home point is
// reported immediately on every call; fix and satellite hysteresis are
// evaluated at 1 Hz. The low-sats counter saturates at 2, flagging much
// faster than the sanity checker's 0..10 window, since a false warning
// here is cheap.
func (r *Rescue) checkAvailability() bool {
	if !r.deps.GPS.IsHealthy() || !r.deps.GPS.HasHomePoint() {
		return false
	}

	now := r.now()
	if now.Sub(r.avail.previousTime) < time.Second {
		// Between evaluations, keep reporting the last flagged state.
		return !r.avail.noFix && !r.avail.lowSats
	}
	r.avail.previousTime = now

	result := true

	if !r.deps.GPS.HasFix() {
		result = false
		r.avail.noFix = true
	} else {
		r.avail.noFix = false
	}

	delta := -1
	if r.deps.GPS.SatelliteCount() < r.cfg.MinSats {
		delta = 1
	}
	r.avail.secondsLowSats = clampInt(r.avail.secondsLowSats+delta, 0, 2)
	if r.avail.secondsLowSats == 2 {
		r.avail.lowSats = true
		result = false
	} else {
		r.avail.lowSats = false
	}

	return result
}
