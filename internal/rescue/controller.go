package rescue

import (
	"math"

	"gorescue/internal/filter"
)

// Controller-local persistent state lives here, not in State: it is
// reset explicitly on the Initialize tick rather than on every tick,
// so the reset trigger is visible at the type level.

// altitudeController holds the throttle PID state.
type altitudeController struct {
	previousAltitudeError float64
	iTerm                 float64
	throttleAdjustment    float64
	dLpf                  *filter.PT2
}

// velocityController holds the pitch PID state. pitchAdjustment is only
// recomputed on ticks with fresh GPS data; other ticks re-smooth the
// previous value through the upsample filter.
type velocityController struct {
	previousVelocityError float64
	iTerm                 float64
	pitchAdjustment       float64
	dLpf                  *filter.PT1
	upsampleLpf           *filter.PT3
}

// initControllers creates the controller filters from the configured
// cutoffs. Called once at startup.
func (r *Rescue) initControllers() {
	taskInterval := r.cfg.TaskIntervalSeconds()

	r.altCtl.dLpf = filter.NewPT2(r.cfg.ThrottleDCutoffHz, taskInterval)

	r.state.Intent.VelocityPidCutoff = r.cfg.PitchCutoffHz
	r.state.Intent.VelocityPidCutoffModifier = 1.0
	r.velCtl.dLpf = filter.NewPT1(r.cfg.PitchCutoffHz, 1.0)

	// The upsample filter smooths pitch steps from the slow GPS rate up
	// to the task rate; its cutoff sits well above the D cutoff.
	r.velCtl.upsampleLpf = filter.NewPT3(r.cfg.PitchCutoffHz*4.0, taskInterval)
}

// updateControllers evaluates the three control loops and publishes the
// attitude and throttle commands. Runs every tick; the velocity loop
// only recomputes on fresh GPS data.
func (r *Rescue) updateControllers() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	switch r.state.Phase {
	case PhaseIdle:
		// Not in a rescue: pass the pilot's throttle through untouched.
		r.pitchAngle = 0
		r.rollAngle = 0
		r.yawRate = 0
		r.throttle = r.deps.Receiver.ThrottleCommand()
		return
	case PhaseInitialize:
		// Reset controller state each time a rescue starts.
		r.velCtl.previousVelocityError = 0
		r.velCtl.iTerm = 0
		r.velCtl.pitchAdjustment = 0
		r.altCtl.iTerm = 0
		r.altCtl.previousAltitudeError = 0
		r.altCtl.throttleAdjustment = 0
		intent.DisarmThreshold = r.cfg.DisarmThresholdG
		return
	case PhaseDoNothing:
		// Bounded slow descent while the sanity system decides.
		r.pitchAngle = 0
		r.rollAngle = 0
		r.throttle = r.cfg.ThrottleHover - 100
		return
	}

	r.updateAltitudeController(intent, sensor)
	r.updateYawController(intent, sensor)
	r.updateVelocityController(intent, sensor)
}

// updateAltitudeController runs the throttle PID on altitude error.
func (r *Rescue) updateAltitudeController(intent *Intent, sensor *SensorSnapshot) {
	// Height below target in metres; the target starts at current
	// altitude and steps toward the intended value, so the error stays
	// small while the craft keeps up.
	altitudeError := (intent.TargetAltitudeCm - sensor.CurrentAltitudeCm) * 0.01

	throttleP := r.cfg.ThrottleP * altitudeError

	r.altCtl.iTerm += 0.1 * r.cfg.ThrottleI * altitudeError * sensor.AltitudeDataIntervalSeconds
	r.altCtl.iTerm = clamp(r.altCtl.iTerm, -maxThrottleITerm, maxThrottleITerm)
	// up to 20% of throttle from I alone

	// D on the raw error delta: positive boost while climbing, negative
	// on descent, with extra authority when descending fast.
	verticalSpeed := (altitudeError - r.altCtl.previousAltitudeError) / sensor.AltitudeDataIntervalSeconds
	r.altCtl.previousAltitudeError = altitudeError
	verticalSpeed += intent.DescentRateModifier * verticalSpeed

	throttleD := r.cfg.ThrottleD * r.altCtl.dLpf.Apply(verticalSpeed)

	// Tilted craft needs more thrust to hold altitude; scale by the
	// hover margin. About 0.2 of the margin when correcting hard on a
	// windy day; more than that makes pitchy landings difficult.
	tiltAdjustment := (1.0 - r.deps.Attitude.CosTiltAngle()) * (r.cfg.ThrottleHover - 1000.0)

	r.altCtl.throttleAdjustment = throttleP + r.altCtl.iTerm + throttleD + tiltAdjustment

	r.throttle = clamp(r.cfg.ThrottleHover+r.altCtl.throttleAdjustment, r.cfg.ThrottleMin, r.cfg.ThrottleMax)

	r.record(DebugThrottlePID, 0, int(math.Round(throttleP)))
	r.record(DebugThrottlePID, 1, int(math.Round(throttleD)))
}

// updateYawController runs the proportional heading loop with roll mix.
// The heading estimate is GPS-corrected above ~2 m/s groundspeed, so
// slow returns degrade heading accuracy; the rescue should not fly home
// much below 5 m/s without a validated magnetometer.
func (r *Rescue) updateYawController(intent *Intent, sensor *SensorSnapshot) {
	yaw := sensor.ErrorAngle * r.cfg.YawP * intent.YawAttenuator * 0.1
	yaw = clamp(yaw, -maxYawRateDegS, maxYawRateDegS)
	// yaw is the rate in deg/s that corrects the heading error

	// Mix in roll: a sustained yaw rate means the craft has drifted
	// sideways. Roll and yaw trade off, with no roll at all once the
	// yaw rate reaches 1/slope (100 deg/s).
	rollMixAttenuator := clamp(1.0-math.Abs(yaw)*rollMixAttenuatorSlope, 0.0, 1.0)
	rollAdjustment := -yaw * r.cfg.RollMix * rollMixAttenuator
	// with RollMix=100 the roll:yaw ratio is 1:1 at small angles; the
	// roll element carries the opposite sign to yaw before the
	// direction flip below

	rollLimit := 100.0 * intent.RollAngleLimitDeg
	r.rollAngle = clamp(rollAdjustment, -rollLimit, rollLimit)

	if r.cfg.YawControlReversed {
		yaw = -yaw
	}
	r.yawRate = yaw
}

// updateVelocityController runs the pitch PID on velocity-to-home
// error. It recomputes only on fresh GPS data; every tick the result is
// passed through the upsample filter so the slower GPS rate does not
// step the pitch command.
func (r *Rescue) updateVelocityController(intent *Intent, sensor *SensorSnapshot) {
	if r.newGPSData {
		sampleIntervalNormaliseFactor := sensor.GPSDataIntervalSeconds * 10.0

		// Positive error means too slow. Positive pitch is nose down.
		velocityError := intent.TargetVelocityCmS - sensor.VelocityToHomeCmS

		velocityP := velocityError * r.cfg.VelP

		r.velCtl.iTerm += 0.01 * r.cfg.VelI * velocityError * sampleIntervalNormaliseFactor * intent.VelocityItermRelax
		r.velCtl.iTerm *= intent.ProximityToLandingArea
		// bleed the iTerm off sharply near home to minimise overshoot
		// during the deceleration

		pitchAngleLimit := intent.PitchAngleLimitDeg * 100.0
		velocityPILimit := 0.5 * pitchAngleLimit
		r.velCtl.iTerm = clamp(r.velCtl.iTerm, -velocityPILimit, velocityPILimit)
		// I alone cannot exceed half the max pitch angle

		velocityD := (velocityError - r.velCtl.previousVelocityError) / sampleIntervalNormaliseFactor
		r.velCtl.previousVelocityError = velocityError
		velocityD *= r.cfg.VelD

		// Smooth the D steps; the cutoff rises up to 2.5x approaching
		// the landing point.
		cutoffHz := intent.VelocityPidCutoff * intent.VelocityPidCutoffModifier
		r.velCtl.dLpf.SetCutoff(cutoffHz, sensor.GPSDataIntervalSeconds)
		velocityD = r.velCtl.dLpf.Apply(velocityD)

		r.velCtl.pitchAdjustment = clamp(velocityP+r.velCtl.iTerm+velocityD, -pitchAngleLimit, pitchAngleLimit)

		r.record(DebugVelocity, 0, int(math.Round(velocityP)))
		r.record(DebugVelocity, 1, int(math.Round(velocityD)))
	}

	// degrees * 100, added to the level-mode pitch command downstream
	r.pitchAngle = r.velCtl.upsampleLpf.Apply(r.velCtl.pitchAdjustment)

	r.record(DebugVelocity, 3, int(math.Round(intent.TargetVelocityCmS)))
	r.record(DebugTracking, 1, int(math.Round(intent.TargetVelocityCmS)))
}
