package rescue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeadingErrorNormalization tests that any angle difference ends up
// in (-180, 180]
func TestHeadingErrorNormalization(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{name: "Zero", input: 0, expected: 0},
		{name: "Positive boundary", input: 180, expected: 180},
		{name: "Negative boundary", input: -180, expected: 180},
		{name: "Just over", input: 181, expected: -179},
		{name: "Just under", input: -181, expected: 179},
		{name: "Full turn", input: 360, expected: 0},
		{name: "Negative full turn", input: -360, expected: 0},
		{name: "Wrap and a half", input: 540, expected: 180},
		{name: "Negative wrap and a half", input: -540, expected: 180},
		{name: "Large positive", input: 350, expected: -10},
		{name: "Large negative", input: -350, expected: 10},
		{name: "Two full turns", input: 725, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeHeadingErrorDeg(tt.input)
			assert.InDelta(t, tt.expected, result, 1e-9)
			assert.Greater(t, result, -180.0)
			assert.LessOrEqual(t, result, 180.0)
		})
	}
}

// TestIdleIsIdempotent tests that ticking without a rescue request
// leaves the core idle, healthy and passing the pilot throttle through
func TestIdleIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	for i := 0; i < 50; i++ {
		h.tick(cfg)
		assert.Equal(t, PhaseIdle, h.core.Phase())
		assert.Equal(t, FailureHealthy, h.core.Failure())
	}

	assert.Equal(t, 0, h.arm.disarmCount)
	assert.Equal(t, h.rx.throttle, h.core.Throttle())
}

// TestInitializeCloseAndLowAborts tests the instant disarm path when a
// rescue starts within 5m of home and essentially on the ground
func TestInitializeCloseAndLowAborts(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	h.gps.distanceCm = 300 // 3m from home
	h.alt.altitudeCm = 100 // below the 4m landing altitude

	h.rx.rescueReq = true
	h.tick(cfg)
	assert.Equal(t, PhaseAbort, h.core.Phase())

	h.tick(cfg)
	assert.Equal(t, 1, h.arm.disarmCount)
	assert.Equal(t, DisarmReasonFailsafeAbort, h.arm.lastReason)
	assert.True(t, h.arm.armingDisabled)
	assert.Equal(t, PhaseIdle, h.core.Phase())
}

// TestInitializeInsideMinDistanceLands tests that a rescue started
// between 5m and the minimum activation distance lands on the spot
func TestInitializeInsideMinDistanceLands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRescueDistM = 10
	h := newHarness(cfg)
	h.gps.distanceCm = 800 // 8m, inside the activation distance
	h.alt.altitudeCm = 1000

	h.rx.rescueReq = true
	h.tick(cfg)

	intent := h.core.state.Intent
	assert.Equal(t, PhaseLanding, h.core.Phase())
	assert.Equal(t, 0.0, intent.TargetVelocityCmS, "no forward velocity")
	assert.Equal(t, 0.0, intent.PitchAngleLimitDeg, "flat on pitch")
	assert.Equal(t, 0.0, intent.RollAngleLimitDeg, "flat on roll")
	assert.Equal(t, 0.0, intent.ProximityToLandingArea, "velocity iTerm forced to zero")
}

// TestColdStartRescueUsesFreshSensorData tests that a rescue requested
// before the first update ever runs initializes from real sensor
// readings: stale zero-value health must not be classified as GPS loss
func TestColdStartRescueUsesFreshSensorData(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRescueDistM = 10
	h := newHarness(cfg)
	h.gps.distanceCm = 800
	h.alt.altitudeCm = 1000
	h.rx.rescueReq = true // requested before any tick has run

	h.tick(cfg)

	assert.Equal(t, PhaseLanding, h.core.Phase())
	assert.Equal(t, FailureHealthy, h.core.Failure())
	assert.Equal(t, 0, h.arm.disarmCount)
}

// TestNoHomePointAbortsViaSanity tests that a missing home point sets
// the failure classification and terminates through the sanity system
func TestNoHomePointAbortsViaSanity(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	h.gps.home = false

	assert.True(t, h.core.IsDisabled())

	h.rx.rescueReq = true
	h.tick(cfg)
	assert.Equal(t, FailureNoHomePoint, h.core.Failure())
	assert.Equal(t, PhaseAbort, h.core.Phase())

	h.tick(cfg)
	assert.Equal(t, 1, h.arm.disarmCount)
	assert.Equal(t, DisarmReasonFailsafeAbort, h.arm.lastReason)
}

// climbToAttainAltitude runs the harness through idle housekeeping and
// the rescue start so it ends up climbing, with a 33m return altitude.
func climbToAttainAltitude(t *testing.T, h *harness, cfg Config) {
	t.Helper()

	h.alt.altitudeCm = 1800
	h.gps.distanceCm = 10000 // 100m out
	for i := 0; i < 5; i++ {
		h.tick(cfg)
	}
	require.Equal(t, PhaseIdle, h.core.Phase())
	require.Equal(t, 3300.0, h.core.state.Intent.ReturnAltitudeCm)

	h.rx.rescueReq = true
	h.tick(cfg)
	require.Equal(t, PhaseAttainAltitude, h.core.Phase())
}

// TestAttainAltitudeClimbsThenRotates tests the stepwise altitude
// target and the crossing latch into Rotate
func TestAttainAltitudeClimbsThenRotates(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	climbToAttainAltitude(t, h, cfg)

	expectedStep := cfg.AscendRate * cfg.TaskIntervalSeconds()
	previous := h.core.state.Intent.TargetAltitudeCm
	for i := 0; i < 20; i++ {
		h.tick(cfg)
		target := h.core.state.Intent.TargetAltitudeCm
		assert.InDelta(t, expectedStep, target-previous, 1e-9, "target climbs one step per tick")
		previous = target
	}
	assert.Equal(t, PhaseAttainAltitude, h.core.Phase())

	// Crossing the return altitude snaps the target and moves on, using
	// the recorded starting side, not a live comparison.
	h.alt.altitudeCm = 3400
	h.tick(cfg)
	assert.Equal(t, PhaseRotate, h.core.Phase())
	assert.Equal(t, 3300.0, h.core.state.Intent.TargetAltitudeCm)
	assert.Equal(t, 0.0, h.core.state.Intent.AltitudeStep)
}

// TestRotateEntersFlyHomeBelow30Degrees tests the heading gate into the
// return leg
func TestRotateEntersFlyHomeBelow30Degrees(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	climbToAttainAltitude(t, h, cfg)

	h.alt.altitudeCm = 3400
	h.tick(cfg)
	require.Equal(t, PhaseRotate, h.core.Phase())

	h.att.yawDeg = 45
	h.tick(cfg)
	assert.Equal(t, PhaseRotate, h.core.Phase(), "45 degrees off is not enough")

	h.att.yawDeg = 20
	h.tick(cfg)
	assert.Equal(t, PhaseFlyHome, h.core.Phase(), "transition on the first tick below 30 degrees")
	assert.Equal(t, 1.0, h.core.state.Intent.ProximityToLandingArea)
	assert.Equal(t, cfg.MaxRescueAngleDeg, h.core.state.Intent.PitchAngleLimitDeg)

	h.att.yawDeg = 10
	h.tick(cfg)
	assert.Equal(t, PhaseFlyHome, h.core.Phase())
}

// TestFlyHomeVelocityRampBoundedByGroundspeed tests the cruise speed
// ramp on the return leg: the target approaches the configured
// groundspeed from the side it started on and never steps past it
func TestFlyHomeVelocityRampBoundedByGroundspeed(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	flyHome(t, h, cfg)

	previous := h.core.state.Intent.TargetVelocityCmS
	for i := 0; i < 500; i++ {
		h.tick(cfg)
		target := h.core.state.Intent.TargetVelocityCmS
		assert.GreaterOrEqual(t, target, previous, "ramp is monotonic")
		assert.LessOrEqual(t, target, cfg.Groundspeed)
		previous = target
	}
	// Within one second time constant, five seconds gets very close.
	assert.Greater(t, previous, 0.95*cfg.Groundspeed)
}

// TestImpactDisarmsDuringLanding tests the impact detection path
func TestImpactDisarmsDuringLanding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinRescueDistM = 10
	h := newHarness(cfg)
	h.gps.distanceCm = 800
	h.alt.altitudeCm = 1000

	h.rx.rescueReq = true
	h.tick(cfg)
	require.Equal(t, PhaseLanding, h.core.Phase())

	// 6g on the vertical axis reads as 5g over gravity, well past the
	// 3g disarm threshold.
	h.att.az = 6.0
	h.tick(cfg)

	assert.Equal(t, 1, h.arm.disarmCount, "exactly one disarm for the qualifying tick")
	assert.Equal(t, DisarmReasonRescueImpact, h.arm.lastReason)
	assert.True(t, h.arm.armingDisabled)
	assert.Equal(t, PhaseIdle, h.core.Phase())
}

// TestCrashRecoveryDisarmsImmediately tests the independent crash-flip
// signal, which disarms in any phase
func TestCrashRecoveryDisarmsImmediately(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	climbToAttainAltitude(t, h, cfg)

	h.arm.crash = true
	h.tick(cfg)

	assert.Equal(t, 1, h.arm.disarmCount)
	assert.Equal(t, DisarmReasonCrashProtection, h.arm.lastReason)
	assert.Equal(t, PhaseIdle, h.core.Phase())
}

// TestStaleGPSHoldsLastValues tests that GPS-derived fields keep their
// previous values between fixes
func TestStaleGPSHoldsLastValues(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	h.gps.distanceCm = 10000

	h.tick(cfg)
	assert.Equal(t, 10000.0, h.core.state.Sensor.DistanceToHomeCm)

	h.gps.distanceCm = 5000
	h.tickStale(cfg)
	assert.Equal(t, 10000.0, h.core.state.Sensor.DistanceToHomeCm, "held at last good value")

	h.tick(cfg)
	assert.Equal(t, 5000.0, h.core.state.Sensor.DistanceToHomeCm)
}

// TestAvailabilityRespondsInstantlyToFixLoss tests property 10: no
// waiting for the 1Hz evaluation boundary
func TestAvailabilityRespondsInstantlyToFixLoss(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	h.tick(cfg)
	require.True(t, h.core.IsAvailable())

	// Still well inside the 1Hz window.
	h.gps.healthy = false
	h.tickStale(cfg)
	assert.False(t, h.core.IsAvailable(), "must react immediately, not at the next evaluation")

	h.gps.healthy = true
	h.tickStale(cfg)
	assert.True(t, h.core.IsAvailable())
}

// TestAvailabilityLowSatsHysteresis tests the advisory 0..2 counter
func TestAvailabilityLowSatsHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	h.tick(cfg)
	require.True(t, h.core.IsAvailable())

	h.gps.sats = cfg.MinSats - 2
	h.tickAfter(1100 * time.Millisecond)
	assert.True(t, h.core.IsAvailable(), "one low second is not enough")
	h.tickAfter(1100 * time.Millisecond)
	assert.False(t, h.core.IsAvailable(), "flagged after two low seconds")

	h.gps.sats = cfg.MinSats + 4
	h.tickAfter(1100 * time.Millisecond)
	assert.True(t, h.core.IsAvailable(), "recovers once the count is healthy")
}

// TestIsConfigured tests the OSD queries
func TestIsConfigured(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	assert.True(t, h.core.IsConfigured())

	h.rx.fsRescue = false
	h.rx.switchPresent = false
	assert.False(t, h.core.IsConfigured())

	h.rx.switchPresent = true
	assert.True(t, h.core.IsConfigured())
}

// TestReturnAltitudeModes tests the idle-phase housekeeping for each
// altitude mode
func TestReturnAltitudeModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     AltitudeMode
		expected float64
	}{
		{name: "Fixed", mode: AltitudeModeFixed, expected: 3000},                  // 30m configured
		{name: "Current plus buffer", mode: AltitudeModeCurrent, expected: 2500}, // 10m + 15m
		{name: "Max plus buffer", mode: AltitudeModeMax, expected: 2500},         // max seen is 10m
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AltitudeMode = tt.mode
			h := newHarness(cfg)
			h.alt.altitudeCm = 1000

			h.tick(cfg)
			assert.Equal(t, tt.expected, h.core.state.Intent.ReturnAltitudeCm)
		})
	}
}

// TestMaxAltitudeTracksAndResets tests that the max altitude follows
// the highest point while armed and resets when disarmed
func TestMaxAltitudeTracksAndResets(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	h.alt.altitudeCm = 1000
	h.tick(cfg)
	h.alt.altitudeCm = 3000
	h.tick(cfg)
	h.alt.altitudeCm = 1200
	h.tick(cfg)
	assert.Equal(t, 3000.0, h.core.state.Intent.MaxAltitudeCm)
	assert.Equal(t, 4500.0, h.core.state.Intent.ReturnAltitudeCm)

	h.arm.armed = false
	h.tick(cfg)
	assert.Equal(t, 0.0, h.core.state.Intent.MaxAltitudeCm, "reset while disarmed")
}

// TestThrottleFraction tests the normalized throttle output with stick
// minimum compensation
func TestThrottleFraction(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)

	h.tick(cfg) // idle: throttle passes through at 1400

	expected := (1400.0 - 1050.0) / (2000.0 - 1050.0)
	assert.InDelta(t, expected, h.core.ThrottleFraction(), 1e-9)
}

// TestDebugTapsAreOptional tests that the core runs without a sink
func TestDebugTapsAreOptional(t *testing.T) {
	cfg := DefaultConfig()
	h := newHarness(cfg)
	h.core.deps.Debug = nil

	h.rx.rescueReq = true
	for i := 0; i < 20; i++ {
		h.tick(cfg)
	}
	// No panic means the sink really is optional.
	assert.NotEqual(t, PhaseIdle, h.core.Phase())
}
