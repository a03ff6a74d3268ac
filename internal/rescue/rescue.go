// Package rescue implements the autonomous return-to-home control core:
// a phase state machine, three cascaded control loops (altitude/throttle,
// heading/yaw with roll mix, velocity/pitch) and the sanity checks that
// force safe termination when the rescue stops progressing.
package rescue

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxYawRateDegS caps the yaw rate command.
	maxYawRateDegS = 180.0
	// minDescentDistanceM is the floor for the descent distance.
	minDescentDistanceM = 5.0
	// maxThrottleITerm caps the altitude controller integral, roughly
	// a 20% throttle contribution.
	maxThrottleITerm = 200.0

	// rollMixAttenuatorSlope reduces the roll mix linearly with yaw
	// rate; no roll above 100 deg/s of yaw.
	rollMixAttenuatorSlope = 0.01

	// PWM-style throttle range used for the normalized output.
	pwmRangeMin = 1000.0
	pwmRangeMax = 2000.0
)

// Dependencies bundles the external collaborators the core reads from
// and pushes side effects to. Debug and Mag are optional.
type Dependencies struct {
	GPS       GPS
	Attitude  AttitudeEstimator
	Altimeter Altimeter
	Receiver  Receiver
	Arming    Arming
	Mag       MagSensor
	Debug     DebugSink
}

// Rescue owns the rescue lifecycle. All methods must be called from a
// single task goroutine, once per scheduling period.
type Rescue struct {
	cfg    Config
	deps   Dependencies
	logger *logrus.Logger

	state State

	altCtl altitudeController
	velCtl velocityController

	sanity  sanityState
	avail   availabilityState
	sensors sensorState

	newGPSData      bool
	magForceDisable bool

	// Crossing latches recorded on phase entry; the recorded side, not
	// a live comparison, decides when a target has been reached.
	initialAltitudeLow bool
	initialVelocityLow bool

	pitchAngle float64 // deg * 100, exported to the attitude controller
	rollAngle  float64 // deg * 100
	yawRate    float64 // deg/s
	throttle   float64 // internal throttle scale

	now func() time.Time
}

// New creates the rescue core in the Idle phase.
func New(cfg Config, deps Dependencies, logger *logrus.Logger) *Rescue {
	r := &Rescue{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
	r.state.Sensor.TaskIntervalSeconds = cfg.TaskIntervalSeconds()
	r.initControllers()
	return r
}

// SetClock replaces the time source used for the 1 Hz gated checks.
// Simulation and tests drive the core on synthetic time; the default
// is time.Now.
func (r *Rescue) SetClock(now func() time.Time) {
	r.now = now
}

// NotifyNewGPSData marks that a fresh GPS fix arrived since the last
// tick. GPS-derived sensor fields update only on ticks where this was
// called.
func (r *Rescue) NotifyNewGPSData() {
	r.newGPSData = true
}

// Update runs one rescue tick: sensor update, enter-phase setup,
// availability check, phase-specific intent update, sanity check, and
// control loop evaluation, in that order. Sensors come first so a
// rescue requested before the first tick ever runs still initializes
// from real readings rather than zero values.
func (r *Rescue) Update() {
	r.updateSensors()

	if !r.deps.Receiver.RescueRequested() {
		r.stop()
	} else if r.state.Phase == PhaseIdle {
		r.start()
		// Run one extra evaluation pass so controller state and sanity
		// baselines are valid before the next tick.
		r.updateControllers()
		r.runSanityChecks()
	}

	r.state.IsAvailable = r.checkAvailability()

	switch r.state.Phase {
	case PhaseIdle:
		// Not in a rescue. Keep the return altitude and descent
		// distance current so they are valid the moment they are needed.
		r.setReturnAltitude()

	case PhaseInitialize:
		r.initializePhase()

	case PhaseAttainAltitude:
		r.attainAltitudePhase()

	case PhaseRotate:
		r.rotatePhase()

	case PhaseFlyHome:
		r.flyHomePhase()

	case PhaseDescend:
		// Attenuate velocity and altitude targets while tracking home.
		if r.state.Sensor.CurrentAltitudeCm < r.state.Intent.TargetLandingAltitudeCm {
			r.setPhase(PhaseLanding)
			r.state.Intent.SecondsFailing = 0
		}
		r.descend()

	case PhaseLanding:
		// Reduce the altitude target steadily until impact, then disarm.
		r.descend()
		r.disarmOnImpact()

	case PhaseComplete:
		r.stop()

	case PhaseAbort:
		r.deps.Arming.SetArmingDisabled()
		r.deps.Arming.Disarm(DisarmReasonFailsafeAbort)
		r.state.Intent.SecondsFailing = 0 // allow re-arming later
		r.stop()

	case PhaseDoNothing:
		r.disarmOnImpact()
	}

	r.record(DebugTracking, 3, int(math.Round(r.state.Intent.TargetAltitudeCm)))
	r.record(DebugThrottlePID, 3, int(math.Round(r.state.Intent.TargetAltitudeCm)))
	r.record(DebugRTH, 0, int(math.Round(r.state.Intent.MaxAltitudeCm)))

	r.runSanityChecks()
	r.updateControllers()

	r.newGPSData = false
}

func (r *Rescue) start() {
	r.logger.WithFields(logrus.Fields{
		"distance_to_home_m": r.state.Sensor.DistanceToHomeM,
		"altitude_cm":        r.state.Sensor.CurrentAltitudeCm,
	}).Info("Rescue started")
	r.setPhase(PhaseInitialize)
}

func (r *Rescue) stop() {
	if r.state.Phase != PhaseIdle {
		r.logger.WithField("failure", r.state.Failure.String()).Info("Rescue stopped")
	}
	r.state.Phase = PhaseIdle
}

func (r *Rescue) setPhase(phase Phase) {
	if phase == r.state.Phase {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"from": r.state.Phase.String(),
		"to":   phase.String(),
	}).Debug("Rescue phase transition")
	r.state.Phase = phase
}

// initializePhase runs once on the tick the rescue starts and decides
// the first real phase.
func (r *Rescue) initializePhase() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	intent.TargetLandingAltitudeCm = 100.0 * r.cfg.TargetLandingAltitudeM

	switch {
	case !r.deps.GPS.HasHomePoint():
		// No home point was recorded on arming. Let the sanity check
		// system terminate the rescue; bouncing back to Idle here could
		// leave a flyaway uncontrolled.
		r.state.Failure = FailureNoHomePoint

	case sensor.DistanceToHomeM < r.cfg.MinRescueDistM:
		if sensor.DistanceToHomeM < 5.0 && sensor.CurrentAltitudeCm < intent.TargetLandingAltitudeCm {
			// Initiated within 5m of home and essentially on the
			// ground: instant disarm for safety.
			r.setPhase(PhaseAbort)
		} else {
			// Inside the minimum activation distance at any height:
			// land on the spot, no horizontal motion.
			intent.AltitudeStep = -sensor.AltitudeDataIntervalSeconds * r.cfg.DescendRate
			intent.TargetVelocityCmS = 0
			intent.PitchAngleLimitDeg = 0
			intent.RollAngleLimitDeg = 0
			intent.ProximityToLandingArea = 0 // force velocity iTerm to zero
			intent.TargetAltitudeCm = sensor.CurrentAltitudeCm + intent.AltitudeStep
			r.setPhase(PhaseLanding)
		}

	default:
		r.setPhase(PhaseAttainAltitude)
		intent.SecondsFailing = 0 // reset the sanity timer for the climb
		r.initialAltitudeLow = sensor.CurrentAltitudeCm < intent.ReturnAltitudeCm
		intent.YawAttenuator = 0
		intent.TargetVelocityCmS = sensor.VelocityToHomeCmS
		intent.PitchAngleLimitDeg = 0 // no pitch or roll until flying home
		intent.RollAngleLimitDeg = 0
		intent.AltitudeStep = 0
		intent.DescentRateModifier = 0
		intent.VelocityPidCutoffModifier = 1.0
		intent.ProximityToLandingArea = 0 // force velocity iTerm to zero
		intent.VelocityItermRelax = 0     // and don't accumulate any
	}
}

// attainAltitudePhase steps the target altitude toward the return
// altitude, from whichever side the climb started on.
func (r *Rescue) attainAltitudePhase() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	step := r.cfg.AscendRate
	if !r.initialAltitudeLow {
		step = -r.cfg.DescendRate
	}
	intent.AltitudeStep = step * sensor.TaskIntervalSeconds

	currentAltitudeLow := sensor.CurrentAltitudeCm < intent.ReturnAltitudeCm
	if r.initialAltitudeLow == currentAltitudeLow {
		// Started low and still low, or started high and still high:
		// keep stepping. The target can overshoot the return altitude
		// if the craft lags; the sanity check catches a blocked climb.
		intent.TargetAltitudeCm += intent.AltitudeStep
	} else {
		// Crossed the return altitude: hold it and start rotating.
		intent.TargetAltitudeCm = intent.ReturnAltitudeCm
		intent.AltitudeStep = 0
		r.setPhase(PhaseRotate)
	}

	// Track measured velocity so the velocity controller sees no error
	// from drift before the return leg starts.
	intent.TargetVelocityCmS = sensor.VelocityToHomeCmS
}

// rotatePhase ramps in yaw authority and waits for the nose to point
// roughly at home.
func (r *Rescue) rotatePhase() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	if intent.YawAttenuator < 1.0 {
		// Acquire yaw authority over one second.
		intent.YawAttenuator += sensor.TaskIntervalSeconds
	}

	if sensor.AbsErrorAngle < 30.0 {
		intent.PitchAngleLimitDeg = r.cfg.MaxRescueAngleDeg // allow pitch
		r.setPhase(PhaseFlyHome)
		intent.SecondsFailing = 0           // reset sanity timer for the return leg
		intent.ProximityToLandingArea = 1.0 // velocity iTerm active, full proximity
	}

	r.initialVelocityLow = sensor.VelocityToHomeCmS < r.cfg.Groundspeed
	intent.TargetVelocityCmS = sensor.VelocityToHomeCmS
}

// flyHomePhase ramps the velocity target toward cruise groundspeed and
// hands over to Descend inside the descent distance.
func (r *Rescue) flyHomePhase() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	if intent.YawAttenuator < 1.0 {
		intent.YawAttenuator += sensor.TaskIntervalSeconds
	}

	// Approach cruise groundspeed with a one second time constant,
	// latched to the starting side so the ramp stops at the crossing.
	targetVelocityError := r.cfg.Groundspeed - intent.TargetVelocityCmS
	velocityTargetStep := sensor.TaskIntervalSeconds * targetVelocityError
	targetVelocityIsLow := intent.TargetVelocityCmS < r.cfg.Groundspeed
	if r.initialVelocityLow == targetVelocityIsLow {
		intent.TargetVelocityCmS += velocityTargetStep
	}

	// Introduce velocity iTerm accumulation slowly; there is always a
	// lot of lag at the start of the return leg.
	intent.VelocityItermRelax += 0.5 * sensor.TaskIntervalSeconds * (1.0 - intent.VelocityItermRelax)

	// Higher velocity cutoff for the first seconds improves accuracy,
	// smoother later.
	intent.VelocityPidCutoffModifier = 2.0 - intent.VelocityItermRelax

	// Gain roll capability gradually, up to half the max pitch angle.
	intent.RollAngleLimitDeg = 0.5 * intent.VelocityItermRelax * r.cfg.MaxRescueAngleDeg

	if r.newGPSData && sensor.DistanceToHomeM <= intent.DescentDistanceM {
		r.setPhase(PhaseDescend)
		intent.SecondsFailing = 0 // reset sanity timer for the descent
	}
}

// setReturnAltitude runs while idle, keeping the return altitude and
// descent distance current so a rescue can start with valid targets.
func (r *Rescue) setReturnAltitude() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	// Hold max altitude at zero while disarmed; with set-home-once the
	// value survives until power cycle.
	if !r.deps.Arming.IsArmed() && !r.cfg.SetHomePointOnce {
		intent.MaxAltitudeCm = 0
		return
	}

	intent.MaxAltitudeCm = math.Max(sensor.CurrentAltitudeCm, intent.MaxAltitudeCm)

	if !r.newGPSData {
		return
	}

	// Target tracks current altitude so there is no D kick on entry.
	intent.TargetAltitudeCm = sensor.CurrentAltitudeCm

	intent.DescentDistanceM = clamp(sensor.DistanceToHomeM, minDescentDistanceM, r.cfg.DescentDistanceM)

	initialAltitudeCm := r.cfg.InitialAltitudeM * 100.0
	altitudeBufferCm := r.cfg.AltitudeBufferM * 100.0
	switch r.cfg.AltitudeMode {
	case AltitudeModeFixed:
		intent.ReturnAltitudeCm = initialAltitudeCm
	case AltitudeModeCurrent:
		intent.ReturnAltitudeCm = sensor.CurrentAltitudeCm + altitudeBufferCm
	default:
		intent.ReturnAltitudeCm = intent.MaxAltitudeCm + altitudeBufferCm
	}
}

// disarmOnImpact disarms when the landing acceleration magnitude
// exceeds the threshold. Terminal until the next arm cycle.
func (r *Rescue) disarmOnImpact() {
	if r.state.Sensor.AccMagnitude <= r.state.Intent.DisarmThreshold {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"acc_magnitude": r.state.Sensor.AccMagnitude,
		"threshold":     r.state.Intent.DisarmThreshold,
	}).Info("Impact detected, disarming")
	r.deps.Arming.SetArmingDisabled()
	r.deps.Arming.Disarm(DisarmReasonRescueImpact)
	r.stop()
}

// record emits a debug tap if a sink is attached.
func (r *Rescue) record(channel DebugChannel, index, value int) {
	if r.deps.Debug == nil {
		return
	}
	r.deps.Debug.Record(channel, index, value)
}

// Phase returns the current rescue phase.
func (r *Rescue) Phase() Phase {
	return r.state.Phase
}

// Failure returns the current failure classification.
func (r *Rescue) Failure() FailureState {
	return r.state.Failure
}

// PitchAngle returns the pitch trim in degrees * 100 to be added to the
// attitude controller's level-mode pitch command.
func (r *Rescue) PitchAngle() float64 {
	return r.pitchAngle
}

// RollAngle returns the roll trim in degrees * 100.
func (r *Rescue) RollAngle() float64 {
	return r.rollAngle
}

// YawRate returns the yaw rate command in deg/s.
func (r *Rescue) YawRate() float64 {
	return r.yawRate
}

// Throttle returns the throttle command on the internal scale.
func (r *Rescue) Throttle() float64 {
	return r.throttle
}

// ThrottleFraction returns the throttle command scaled to [0, 1] for
// the mixer, compensating for the stick-minimum threshold since the
// internal value is on the raw command scale.
func (r *Rescue) ThrottleFraction() float64 {
	lo := math.Max(r.deps.Receiver.MinCheck(), pwmRangeMin)
	fraction := (r.throttle - lo) / (pwmRangeMax - lo)
	return clamp(fraction, 0.0, 1.0)
}

// IsConfigured reports whether a rescue can be invoked at all: the
// failsafe procedure is rescue or a mode switch is assigned.
func (r *Rescue) IsConfigured() bool {
	return r.deps.Receiver.FailsafeUsesRescue() || r.deps.Receiver.RescueSwitchAssigned()
}

// IsAvailable reports the advisory availability check result.
func (r *Rescue) IsAvailable() bool {
	return r.state.IsAvailable
}

// IsDisabled reports whether the rescue is unusable because no home
// point was recorded.
func (r *Rescue) IsDisabled() bool {
	return !r.deps.GPS.HasHomePoint()
}

// DisableMag reports whether the attitude estimator should ignore the
// magnetometer for the duration of the rescue, either by configuration
// or because the flyaway check gave up on it.
func (r *Rescue) DisableMag() bool {
	return (!r.cfg.UseMag || r.magForceDisable) &&
		r.state.Phase >= PhaseInitialize && r.state.Phase <= PhaseLanding
}
