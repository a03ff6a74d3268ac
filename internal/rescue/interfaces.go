package rescue

// The core never drives hardware directly; it pulls read-only snapshots
// from these collaborators and pushes side effects through Arming. Each
// getter must return an independently consistent value: the core reads
// them without locks from its single task goroutine.

// GPS exposes the receiver's fix, home point and derived home vector.
type GPS interface {
	// HasFix reports whether a 3D fix is currently held.
	HasFix() bool
	// HasHomePoint reports whether a home point was recorded on arming.
	HasHomePoint() bool
	// IsHealthy reports whether GPS data is arriving and plausible.
	IsHealthy() bool
	// SatelliteCount returns the number of satellites in the solution.
	SatelliteCount() int
	// DistanceToHomeCm returns the ground distance to the home point.
	DistanceToHomeCm() float64
	// DirectionToHomeDeg returns the bearing to home in degrees.
	DirectionToHomeDeg() float64
	// GroundSpeedCmS returns the current ground speed.
	GroundSpeedCmS() float64
	// DataIntervalSeconds returns the interval between the last two
	// fixes, bounded upstream to sane values.
	DataIntervalSeconds() float64
}

// AttitudeEstimator exposes the IMU-derived attitude.
type AttitudeEstimator interface {
	// YawDeg returns the estimated heading in degrees.
	YawDeg() float64
	// CosTiltAngle returns the cosine of the tilt angle (1 = flat).
	CosTiltAngle() float64
	// AccelerationG returns body-axis accelerations in g, gravity included.
	AccelerationG() (x, y, z float64)
}

// Altimeter exposes the estimated altitude above the arming point.
type Altimeter interface {
	AltitudeCm() float64
}

// Receiver exposes the RC link and failsafe state.
type Receiver interface {
	// IsReceivingSignal reports whether the control link is alive.
	IsReceivingSignal() bool
	// RescueRequested reports whether rescue flight mode is commanded,
	// by switch or by the failsafe stage.
	RescueRequested() bool
	// FailsafeUsesRescue reports whether the failsafe procedure is set
	// to rescue.
	FailsafeUsesRescue() bool
	// RescueSwitchAssigned reports whether a mode switch is assigned.
	RescueSwitchAssigned() bool
	// ThrottleCommand returns the raw pilot throttle command.
	ThrottleCommand() float64
	// MinCheck returns the stick-minimum threshold for throttle scaling.
	MinCheck() float64
}

// Arming exposes the arming state machine and its terminal side effects.
// Disarm and SetArmingDisabled are irreversible until the next arm cycle.
type Arming interface {
	IsArmed() bool
	// CrashRecoveryActive reports the independent crash-flip detection.
	CrashRecoveryActive() bool
	Disarm(reason DisarmReason)
	SetArmingDisabled()
}

// MagSensor reports whether a magnetometer capability is present.
type MagSensor interface {
	Present() bool
}

// DebugChannel names a numeric debug tap group.
type DebugChannel int

const (
	DebugThrottlePID DebugChannel = iota
	DebugVelocity
	DebugHeading
	DebugTracking
	DebugRTH
)

// String returns the channel name used by telemetry sinks.
func (c DebugChannel) String() string {
	switch c {
	case DebugThrottlePID:
		return "throttle_pid"
	case DebugVelocity:
		return "velocity"
	case DebugHeading:
		return "heading"
	case DebugTracking:
		return "tracking"
	case DebugRTH:
		return "rth"
	default:
		return "unknown"
	}
}

// DebugSink receives numeric debug taps. It is optional: the core
// treats a nil sink as a no-op and never depends on it functionally.
type DebugSink interface {
	Record(channel DebugChannel, index int, value int)
}
