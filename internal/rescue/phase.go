package rescue

// Phase labels the current stage of the rescue lifecycle. Exactly one
// phase is current at a time; it is re-evaluated every tick.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitialize
	PhaseAttainAltitude
	PhaseRotate
	PhaseFlyHome
	PhaseDescend
	PhaseLanding
	PhaseAbort
	PhaseComplete
	PhaseDoNothing
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseInitialize:
		return "INITIALIZE"
	case PhaseAttainAltitude:
		return "ATTAIN_ALT"
	case PhaseRotate:
		return "ROTATE"
	case PhaseFlyHome:
		return "FLY_HOME"
	case PhaseDescend:
		return "DESCEND"
	case PhaseLanding:
		return "LANDING"
	case PhaseAbort:
		return "ABORT"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseDoNothing:
		return "DO_NOTHING"
	default:
		return "UNKNOWN"
	}
}

// FailureState classifies what has gone wrong during a rescue. It is
// tracked independently of the phase; the phase state machine decides
// the consequence of a non-healthy failure.
type FailureState int

const (
	FailureHealthy FailureState = iota
	FailureFlyaway
	FailureGPSLost
	FailureLowSats
	FailureCrashFlipDetected
	FailureStalled
	FailureTooClose
	FailureNoHomePoint
)

// String returns a human-readable failure name.
func (f FailureState) String() string {
	switch f {
	case FailureHealthy:
		return "HEALTHY"
	case FailureFlyaway:
		return "FLYAWAY"
	case FailureGPSLost:
		return "GPS_LOST"
	case FailureLowSats:
		return "LOW_SATS"
	case FailureCrashFlipDetected:
		return "CRASH_FLIP"
	case FailureStalled:
		return "STALLED"
	case FailureTooClose:
		return "TOO_CLOSE"
	case FailureNoHomePoint:
		return "NO_HOME_POINT"
	default:
		return "UNKNOWN"
	}
}

// DisarmReason identifies why the core requested a disarm.
type DisarmReason int

const (
	DisarmReasonCrashProtection DisarmReason = iota
	DisarmReasonRescueImpact
	DisarmReasonFailsafeAbort
)

// String returns a human-readable disarm reason.
func (d DisarmReason) String() string {
	switch d {
	case DisarmReasonCrashProtection:
		return "CRASH_PROTECTION"
	case DisarmReasonRescueImpact:
		return "RESCUE_IMPACT"
	case DisarmReasonFailsafeAbort:
		return "FAILSAFE_ABORT"
	default:
		return "UNKNOWN"
	}
}
