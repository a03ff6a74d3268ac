// Package sim provides a point-mass vehicle plant and collaborator
// fakes so the rescue core can be flown closed-loop from the CLI and
// in integration tests, without hardware.
package sim

import (
	"math"

	"gorescue/internal/rescue"
)

// Plant response constants. Crude but stable: vertical speed tracks
// throttle margin, ground speed tracks pitch angle, yaw tracks the
// commanded rate directly.
const (
	climbRateCmSPerThrottle = 3.0  // cm/s per throttle unit above hover
	speedCmSPerPitchDeg     = 40.0 // cm/s per degree of pitch
	impactAccG              = 6.0  // spike reported when the craft hits the ground
	gpsIntervalSeconds      = 0.1  // 10 Hz fix rate
)

// Options configures the starting condition of a simulated flight.
type Options struct {
	DistanceToHomeM  float64
	AltitudeM        float64
	HeadingOffsetDeg float64
	HoverThrottle    float64
	SatelliteCount   int
}

// World is the simulated vehicle plus all collaborator fakes. It
// implements rescue.GPS, rescue.AttitudeEstimator, rescue.Altimeter,
// rescue.Receiver, rescue.Arming and rescue.MagSensor.
type World struct {
	altitudeCm       float64
	distanceToHomeCm float64
	yawDeg           float64
	directionHomeDeg float64
	groundSpeedCmS   float64
	hoverThrottle    float64

	satCount int
	hasFix   bool
	hasHome  bool
	healthy  bool

	armed           bool
	disarmed        bool
	disarmReason    rescue.DisarmReason
	armingDisabled  bool
	rescueRequested bool
	linkAlive       bool

	onGround     bool
	sinceLastFix float64
}

// NewWorld creates a world with the craft armed, in the air and away
// from home.
func NewWorld(opts Options) *World {
	return &World{
		altitudeCm:       opts.AltitudeM * 100.0,
		distanceToHomeCm: opts.DistanceToHomeM * 100.0,
		yawDeg:           opts.HeadingOffsetDeg, // home bearing is 0, so yaw equals the heading error
		directionHomeDeg: 0,
		hoverThrottle:    opts.HoverThrottle,
		satCount:         opts.SatelliteCount,
		hasFix:           true,
		hasHome:          true,
		healthy:          true,
		armed:            true,
		rescueRequested:  false,
		linkAlive:        true,
		sinceLastFix:     gpsIntervalSeconds, // first tick carries a fix
	}
}

// Step advances the plant by dt seconds under the given commands and
// reports whether a fresh GPS fix is available this tick.
func (w *World) Step(dt, throttle, pitchAngle, yawRateDegS float64) (freshFix bool) {
	if w.disarmed {
		return false
	}

	// Yaw responds to the rate command, reducing the heading error.
	w.yawDeg = normalizeDeg(w.yawDeg - yawRateDegS*dt)

	// Vertical: the throttle margin over hover drives the climb rate.
	w.altitudeCm += (throttle - w.hoverThrottle) * climbRateCmSPerThrottle * dt
	if w.altitudeCm <= 0 {
		w.altitudeCm = 0
		w.onGround = true
	}

	// Horizontal: pitch drives speed along the heading; only the
	// component toward home closes the distance.
	speed := (pitchAngle / 100.0) * speedCmSPerPitchDeg
	w.groundSpeedCmS = math.Abs(speed)
	headingErrorRad := (w.yawDeg - w.directionHomeDeg) * math.Pi / 180.0
	w.distanceToHomeCm -= speed * math.Cos(headingErrorRad) * dt
	if w.distanceToHomeCm < 0 {
		w.distanceToHomeCm = 0
	}

	w.sinceLastFix += dt
	if w.sinceLastFix >= gpsIntervalSeconds {
		w.sinceLastFix = 0
		return true
	}
	return false
}

// normalizeDeg wraps an angle into (-180, 180].
func normalizeDeg(angle float64) float64 {
	angle = math.Mod(angle, 360.0)
	if angle <= -180.0 {
		angle += 360.0
	} else if angle > 180.0 {
		angle -= 360.0
	}
	return angle
}

// RequestRescue raises or clears the rescue flight mode.
func (w *World) RequestRescue(on bool) { w.rescueRequested = on }

// SetFix controls GPS fix and health together.
func (w *World) SetFix(ok bool) {
	w.hasFix = ok
	w.healthy = ok
}

// OnGround reports whether the craft has reached the ground.
func (w *World) OnGround() bool { return w.onGround }

// Disarmed reports whether a disarm side effect was produced, and why.
func (w *World) Disarmed() (bool, rescue.DisarmReason) { return w.disarmed, w.disarmReason }

// AltitudeM returns the current altitude in metres.
func (w *World) AltitudeM() float64 { return w.altitudeCm / 100.0 }

// DistanceToHomeM returns the current distance to home in metres.
func (w *World) DistanceToHomeM() float64 { return w.distanceToHomeCm / 100.0 }

// GPS collaborator.

func (w *World) HasFix() bool { return w.hasFix }
func (w *World) HasHomePoint() bool { return w.hasHome }
func (w *World) IsHealthy() bool { return w.healthy }
func (w *World) SatelliteCount() int { return w.satCount }
func (w *World) DistanceToHomeCm() float64 { return w.distanceToHomeCm }
func (w *World) DirectionToHomeDeg() float64 { return w.directionHomeDeg }
func (w *World) GroundSpeedCmS() float64 { return w.groundSpeedCmS }
func (w *World) DataIntervalSeconds() float64 {
	return gpsIntervalSeconds
}

// Attitude estimator collaborator.

func (w *World) YawDeg() float64 { return w.yawDeg }
func (w *World) CosTiltAngle() float64 { return 1.0 }
func (w *World) AccelerationG() (x, y, z float64) {
	if w.onGround {
		// Ground contact shows up as a large vertical spike.
		return 0, 0, impactAccG
	}
	return 0, 0, 1.0
}

// Altimeter collaborator.

func (w *World) AltitudeCm() float64 { return w.altitudeCm }

// Receiver collaborator.

func (w *World) IsReceivingSignal() bool { return w.linkAlive }
func (w *World) RescueRequested() bool { return w.rescueRequested }
func (w *World) FailsafeUsesRescue() bool { return true }
func (w *World) RescueSwitchAssigned() bool { return true }
func (w *World) ThrottleCommand() float64 { return w.hoverThrottle }
func (w *World) MinCheck() float64 { return 1050 }

// Arming collaborator.

func (w *World) IsArmed() bool { return w.armed && !w.disarmed }
func (w *World) CrashRecoveryActive() bool { return false }
func (w *World) SetArmingDisabled() { w.armingDisabled = true }
func (w *World) Disarm(reason rescue.DisarmReason) {
	w.disarmed = true
	w.disarmReason = reason
}

// Mag collaborator.

func (w *World) Present() bool { return false }
