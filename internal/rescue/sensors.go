package rescue

import (
	"math"
	"time"
)

// sensorState carries the aggregator's own persistence between ticks.
type sensorState struct {
	previousAltitudeTime time.Time
	prevDistanceToHomeCm float64
	haveDistanceBaseline bool
}

// updateSensors refreshes the sensor snapshot. Altitude, health and
// heading error update every tick at the task rate; GPS-derived fields
// update only when a fresh fix arrived and otherwise hold their last
// value.
func (r *Rescue) updateSensors() {
	now := r.now()
	sensor := &r.state.Sensor

	// Altitude loop timing is measured against this task's own previous
	// invocation, independent of the slower GPS cadence.
	if r.sensors.previousAltitudeTime.IsZero() {
		sensor.AltitudeDataIntervalSeconds = sensor.TaskIntervalSeconds
	} else {
		sensor.AltitudeDataIntervalSeconds = now.Sub(r.sensors.previousAltitudeTime).Seconds()
	}
	r.sensors.previousAltitudeTime = now

	sensor.CurrentAltitudeCm = r.deps.Altimeter.AltitudeCm()

	sensor.Healthy = r.deps.GPS.IsHealthy()

	if r.state.Phase == PhaseLanding {
		// Computed at the fast task rate, not the GPS rate, so the
		// impact disarm fires with minimum latency. Subtracting 1g from
		// Z assumes the craft is roughly level during the landing.
		ax, ay, az := r.deps.Attitude.AccelerationG()
		sensor.AccMagnitude = math.Sqrt((az-1.0)*(az-1.0) + ax*ax + ay*ay)
	}

	sensor.DirectionToHome = r.deps.GPS.DirectionToHomeDeg()
	sensor.ErrorAngle = normalizeHeadingErrorDeg(r.deps.Attitude.YawDeg() - sensor.DirectionToHome)
	sensor.AbsErrorAngle = math.Abs(sensor.ErrorAngle)

	r.record(DebugTracking, 2, int(math.Round(sensor.CurrentAltitudeCm)))
	r.record(DebugThrottlePID, 2, int(math.Round(sensor.CurrentAltitudeCm)))
	r.record(DebugHeading, 0, int(math.Round(sensor.GroundSpeedCmS)))
	r.record(DebugHeading, 2, int(math.Round(r.deps.Attitude.YawDeg()*10)))
	r.record(DebugHeading, 3, int(math.Round(sensor.DirectionToHome*10)))

	if !r.newGPSData {
		// Ground speed, velocity and distance to home hold their last
		// good values between GPS packets.
		return
	}

	sensor.DistanceToHomeCm = r.deps.GPS.DistanceToHomeCm()
	sensor.DistanceToHomeM = sensor.DistanceToHomeCm / 100.0
	sensor.GroundSpeedCmS = r.deps.GPS.GroundSpeedCmS()
	sensor.GPSDataIntervalSeconds = r.deps.GPS.DataIntervalSeconds()

	// The first derived velocity sample has no previous distance to
	// difference against; baseline it so the sample is 0, not a spike.
	if !r.sensors.haveDistanceBaseline {
		r.sensors.prevDistanceToHomeCm = sensor.DistanceToHomeCm
		r.sensors.haveDistanceBaseline = true
	}

	// Positive = approaching home.
	sensor.VelocityToHomeCmS = (r.sensors.prevDistanceToHomeCm - sensor.DistanceToHomeCm) / sensor.GPSDataIntervalSeconds
	r.sensors.prevDistanceToHomeCm = sensor.DistanceToHomeCm

	r.record(DebugVelocity, 2, int(math.Round(sensor.VelocityToHomeCmS)))
	r.record(DebugTracking, 0, int(math.Round(sensor.VelocityToHomeCmS)))
}

// normalizeHeadingErrorDeg wraps an angle difference into (-180, 180].
func normalizeHeadingErrorDeg(angle float64) float64 {
	angle = math.Mod(angle, 360.0)
	if angle <= -180.0 {
		angle += 360.0
	} else if angle > 180.0 {
		angle -= 360.0
	}
	return angle
}
