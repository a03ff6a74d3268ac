package rescue

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// sanityState persists the checker's comparison baselines and bounded
// counters between ticks. Re-baselined on every Initialize tick.
type sanityState struct {
	previousTime             time.Time
	prevAltitudeCm           float64
	prevTargetAltitudeCm     float64
	previousDistanceToHomeCm float64
	secondsLowSats           int
	secondsDoingNothing      int
}

// runSanityChecks evaluates whether the rescue is progressing. Cheap
// checks run every tick; progress/satellite/altitude checks run at
// 1 Hz, gated on elapsed monotonic time so scheduling jitter does not
// skew the counters.
func (r *Rescue) runSanityChecks() {
	now := r.now()

	if r.state.Phase == PhaseIdle {
		r.state.Failure = FailureHealthy
		return
	} else if r.state.Phase == PhaseInitialize {
		// Baseline everything each time a rescue starts.
		r.sanity.previousTime = now
		r.sanity.prevAltitudeCm = r.state.Sensor.CurrentAltitudeCm
		r.sanity.prevTargetAltitudeCm = r.state.Intent.TargetAltitudeCm
		r.sanity.previousDistanceToHomeCm = r.state.Sensor.DistanceToHomeCm
		r.sanity.secondsLowSats = 0
		r.sanity.secondsDoingNothing = 0
	}

	// A failure classification itself never disarms; the response tier
	// depends on the sanity mode. Default is the bounded semi-controlled
	// descent with impact detection, giving transient switch-induced
	// faults time to recover.
	hardFailsafe := !r.deps.Receiver.IsReceivingSignal()

	if r.state.Failure != FailureHealthy {
		r.setPhase(PhaseDoNothing)

		switch r.cfg.SanityChecks {
		case SanityStrict:
			r.setPhase(PhaseAbort)
		case SanityFailsafeOnly:
			if hardFailsafe {
				r.setPhase(PhaseAbort)
			}
		default:
			// Even with sanity checks off, abort when arming without a
			// fix was allowed, there is no home point and no control link.
			if r.cfg.AllowArmingWithoutFix && !r.deps.GPS.HasHomePoint() && hardFailsafe {
				r.setPhase(PhaseAbort)
			}
		}
	}

	// crash-flip detection applies in every rescue; disarm immediately.
	if r.deps.Arming.CrashRecoveryActive() {
		r.deps.Arming.SetArmingDisabled()
		r.deps.Arming.Disarm(DisarmReasonCrashProtection)
		r.stop()
	}

	if !r.state.Sensor.Healthy {
		r.state.Failure = FailureGPSLost
	}

	if now.Sub(r.sanity.previousTime) < time.Second {
		return
	}
	r.sanity.previousTime = now

	r.checkProgressTowardHome()
	r.checkSatelliteCount()
	r.checkAltitudeProgress()

	r.record(DebugRTH, 2, int(r.state.Failure)*10+int(r.state.Phase))
	r.record(DebugRTH, 3, r.state.Intent.SecondsFailing*100+r.sanity.secondsLowSats)
}

// checkProgressTowardHome detects a stuck or flying-away craft on the
// return leg. The distance delta is used rather than the velocity
// snapshot because the snapshot holds its last good value when GPS
// packets stop.
func (r *Rescue) checkProgressTowardHome() {
	if r.state.Phase != PhaseFlyHome {
		return
	}
	intent := &r.state.Intent

	closingSpeedCmS := r.sanity.previousDistanceToHomeCm - r.state.Sensor.DistanceToHomeCm
	r.sanity.previousDistanceToHomeCm = r.state.Sensor.DistanceToHomeCm

	if closingSpeedCmS < 0.5*intent.TargetVelocityCmS {
		intent.SecondsFailing++
	} else {
		intent.SecondsFailing--
	}
	intent.SecondsFailing = clampInt(intent.SecondsFailing, 0, 15)

	if intent.SecondsFailing == 15 {
		if r.magAvailable() && r.cfg.UseMag && !r.magForceDisable {
			// The magnetometer may be feeding the attitude estimate a
			// bad heading. Try once more without it before giving up.
			r.logger.Warn("No progress to home, disabling magnetometer and retrying")
			r.magForceDisable = true
			intent.SecondsFailing = 0
		} else {
			r.state.Failure = FailureFlyaway
		}
	}
}

// checkSatelliteCount classifies a sustained low satellite count.
func (r *Rescue) checkSatelliteCount() {
	if !r.deps.GPS.HasFix() || r.deps.GPS.SatelliteCount() < r.cfg.MinSats {
		r.sanity.secondsLowSats++
	} else {
		r.sanity.secondsLowSats--
	}
	r.sanity.secondsLowSats = clampInt(r.sanity.secondsLowSats, 0, 10)

	if r.sanity.secondsLowSats == 10 {
		r.state.Failure = FailureLowSats
	}
}

// checkAltitudeProgress handles getting stuck in a climb or descent,
// and bounds the do-nothing grace period. These checks apply in every
// rescue regardless of the sanity mode.
func (r *Rescue) checkAltitudeProgress() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	actualAltitudeChange := sensor.CurrentAltitudeCm - r.sanity.prevAltitudeCm
	targetAltitudeChange := intent.TargetAltitudeCm - r.sanity.prevTargetAltitudeCm
	r.sanity.prevAltitudeCm = sensor.CurrentAltitudeCm
	r.sanity.prevTargetAltitudeCm = intent.TargetAltitudeCm

	// A flat target during a climb or positioning descent means the
	// craft was not asked to move, so the lack of altitude change is
	// not evidence of being stuck. While landing the target must keep
	// stepping down; a target that stops moving counts as no progress.
	flatTarget := math.Abs(targetAltitudeChange) < 1e-6
	ratio := 1.0
	if !flatTarget {
		ratio = actualAltitudeChange / targetAltitudeChange
	}

	switch r.state.Phase {
	case PhaseLanding:
		if flatTarget {
			ratio = 0
		}
		if ratio > 0.5 {
			intent.SecondsFailing--
		} else {
			intent.SecondsFailing++
		}
		intent.SecondsFailing = clampInt(intent.SecondsFailing, 0, 10)
		if intent.SecondsFailing == 10 {
			// Landing shouldn't take more than 10s of blocked descent.
			r.setPhase(PhaseAbort)
		}

	case PhaseAttainAltitude, PhaseDescend:
		if ratio > 0.5 {
			intent.SecondsFailing--
		} else {
			intent.SecondsFailing++
		}
		intent.SecondsFailing = clampInt(intent.SecondsFailing, 0, 10)
		if intent.SecondsFailing == 10 {
			// Can't climb, or descent is blocked: demote to landing
			// with impact detection armed.
			r.logger.WithFields(logrus.Fields{
				"phase": r.state.Phase.String(),
			}).Warn("Altitude not tracking target, entering landing")
			r.setPhase(PhaseLanding)
			intent.SecondsFailing = 0
		}

	case PhaseDoNothing:
		r.sanity.secondsDoingNothing = clampInt(r.sanity.secondsDoingNothing+1, 0, 20)
		if r.sanity.secondsDoingNothing == 20 {
			// End of the time-limited semi-controlled fall.
			r.setPhase(PhaseAbort)
		}
	}
}

// magAvailable resolves the magnetometer capability at runtime; absent
// hardware is a behavior branch, not a build-time condition.
func (r *Rescue) magAvailable() bool {
	return r.deps.Mag != nil && r.deps.Mag.Present()
}
