package rescue

// SensorSnapshot holds the per-tick derived readings the control loops
// consume. GPS-derived fields (distance, ground speed, velocity to
// home) are refreshed only when a new fix has arrived since the last
// tick and otherwise hold their previous value; callers must not
// assume per-tick freshness.
type SensorSnapshot struct {
	CurrentAltitudeCm float64
	DistanceToHomeCm  float64
	DistanceToHomeM   float64
	GroundSpeedCmS    float64
	DirectionToHome   float64

	// AccMagnitude is the acceleration magnitude relative to 1g,
	// computed only while landing for impact detection.
	AccMagnitude float64

	// Healthy mirrors the GPS health flag.
	Healthy bool

	// ErrorAngle is the heading error in degrees, always in (-180, 180].
	ErrorAngle    float64
	AbsErrorAngle float64

	GPSDataIntervalSeconds      float64
	AltitudeDataIntervalSeconds float64
	TaskIntervalSeconds         float64

	// VelocityToHomeCmS is positive when approaching home.
	VelocityToHomeCmS float64
}

// Intent holds the control targets and limits computed by the phase
// logic and consumed by the control loops.
type Intent struct {
	MaxAltitudeCm           float64
	ReturnAltitudeCm        float64
	TargetAltitudeCm        float64
	TargetLandingAltitudeCm float64
	TargetVelocityCmS       float64

	// Angle limits are never negative.
	PitchAngleLimitDeg float64
	RollAngleLimitDeg  float64

	DescentDistanceM float64

	// SecondsFailing saturates at its bounds rather than wrapping.
	SecondsFailing int

	AltitudeStep        float64
	DescentRateModifier float64

	// YawAttenuator ramps 0 to 1 as yaw authority is phased in.
	YawAttenuator float64

	DisarmThreshold float64

	VelocityPidCutoff         float64
	VelocityPidCutoffModifier float64

	// ProximityToLandingArea ramps 1 to 0 approaching home, gating
	// velocity integral accumulation and roll/velocity targets.
	ProximityToLandingArea float64

	// VelocityItermRelax ramps 0 to 1 after the return leg starts, to
	// suppress windup during the initial acceleration.
	VelocityItermRelax float64
}

// State is the aggregate rescue state. It is created once at startup
// and lives for the firmware's uptime; the phase is overwritten every
// tick and fields are reset explicitly on phase entry.
type State struct {
	Phase       Phase
	Failure     FailureState
	Sensor      SensorSnapshot
	Intent      Intent
	IsAvailable bool
}

// clamp keeps value inside [lo, hi].
func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// clampInt keeps value inside [lo, hi].
func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
