package rescue

// Constants shaping the descent profile. Values are tuned, not derived;
// they match long-standing flight-tested behavior.
const (
	// velocityCutoffModifierBase sets the D-term cutoff multiplier to
	// 1.5 when the descent starts and 2.5 when almost landed.
	velocityCutoffModifierBase = 2.5
	// descentAttenuatorScaleCm makes descents from return altitudes
	// under 20m proportionally gentler.
	descentAttenuatorScaleCm = 2000.0
	// descentRateModifierScaleCm ramps the extra descent rate with
	// altitude, saturating at 50m.
	descentRateModifierScaleCm = 5000.0
)

// descend is shared by the Descend and Landing phases: it shrinks the
// velocity and roll targets with proximity to home and steps the
// altitude target down.
func (r *Rescue) descend() {
	intent := &r.state.Intent
	sensor := &r.state.Sensor

	if r.newGPSData {
		// Home is treated as a circle of half the landing height around
		// the home point, not a point, to avoid overshooting it.
		distanceToLandingAreaM := sensor.DistanceToHomeM - intent.TargetLandingAltitudeCm/200.0
		intent.ProximityToLandingArea = clamp(distanceToLandingAreaM/intent.DescentDistanceM, 0.0, 1.0)

		intent.VelocityPidCutoffModifier = velocityCutoffModifierBase - intent.ProximityToLandingArea

		// Slow down approaching home: zero forward velocity within the
		// landing area. If the craft drifts back out it has rotated
		// toward home by then, so pitch authority returns safely.
		intent.TargetVelocityCmS = r.cfg.Groundspeed * intent.ProximityToLandingArea

		// Likewise give up roll capability close to home.
		intent.RollAngleLimitDeg = r.cfg.MaxRescueAngleDeg * intent.ProximityToLandingArea
	}

	intent.AltitudeStep = -sensor.AltitudeDataIntervalSeconds * r.cfg.DescendRate

	// Gentler descent when the return altitude was low.
	descentAttenuator := intent.ReturnAltitudeCm / descentAttenuatorScaleCm
	if descentAttenuator < 1.0 {
		intent.AltitudeStep *= descentAttenuator
	}

	// Faster descent from high altitude: up to 3x the configured rate
	// above 50m, easing back to the configured rate near the ground.
	intent.DescentRateModifier = clamp(intent.TargetAltitudeCm/descentRateModifierScaleCm, 0.0, 1.0)
	intent.TargetAltitudeCm += intent.AltitudeStep * (1.0 + 2.0*intent.DescentRateModifier)
}
