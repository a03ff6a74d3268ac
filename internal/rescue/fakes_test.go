package rescue

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Collaborator fakes for driving the core tick by tick.

type fakeGPS struct {
	fix        bool
	home       bool
	healthy    bool
	sats       int
	distanceCm float64
	dirDeg     float64
	speedCmS   float64
	intervalS  float64
}

func (g *fakeGPS) HasFix() bool                 { return g.fix }
func (g *fakeGPS) HasHomePoint() bool           { return g.home }
func (g *fakeGPS) IsHealthy() bool              { return g.healthy }
func (g *fakeGPS) SatelliteCount() int          { return g.sats }
func (g *fakeGPS) DistanceToHomeCm() float64    { return g.distanceCm }
func (g *fakeGPS) DirectionToHomeDeg() float64  { return g.dirDeg }
func (g *fakeGPS) GroundSpeedCmS() float64      { return g.speedCmS }
func (g *fakeGPS) DataIntervalSeconds() float64 { return g.intervalS }

type fakeAttitude struct {
	yawDeg     float64
	cosTilt    float64
	ax, ay, az float64
}

func (a *fakeAttitude) YawDeg() float64                  { return a.yawDeg }
func (a *fakeAttitude) CosTiltAngle() float64            { return a.cosTilt }
func (a *fakeAttitude) AccelerationG() (x, y, z float64) { return a.ax, a.ay, a.az }

type fakeAltimeter struct {
	altitudeCm float64
}

func (a *fakeAltimeter) AltitudeCm() float64 { return a.altitudeCm }

type fakeReceiver struct {
	signal        bool
	rescueReq     bool
	fsRescue      bool
	switchPresent bool
	throttle      float64
	minCheck      float64
}

func (r *fakeReceiver) IsReceivingSignal() bool    { return r.signal }
func (r *fakeReceiver) RescueRequested() bool      { return r.rescueReq }
func (r *fakeReceiver) FailsafeUsesRescue() bool   { return r.fsRescue }
func (r *fakeReceiver) RescueSwitchAssigned() bool { return r.switchPresent }
func (r *fakeReceiver) ThrottleCommand() float64   { return r.throttle }
func (r *fakeReceiver) MinCheck() float64          { return r.minCheck }

type fakeArming struct {
	armed          bool
	crash          bool
	disarmCount    int
	lastReason     DisarmReason
	armingDisabled bool
}

func (a *fakeArming) IsArmed() bool             { return a.armed }
func (a *fakeArming) CrashRecoveryActive() bool { return a.crash }
func (a *fakeArming) SetArmingDisabled()        { a.armingDisabled = true }
func (a *fakeArming) Disarm(reason DisarmReason) {
	a.disarmCount++
	a.lastReason = reason
}

type fakeMag struct {
	present bool
}

func (m *fakeMag) Present() bool { return m.present }

type recordedTap struct {
	channel DebugChannel
	index   int
	value   int
}

type fakeSink struct {
	taps []recordedTap
}

func (s *fakeSink) Record(channel DebugChannel, index, value int) {
	s.taps = append(s.taps, recordedTap{channel, index, value})
}

// harness bundles the core with its fakes and a controllable clock.
type harness struct {
	gps   *fakeGPS
	att   *fakeAttitude
	alt   *fakeAltimeter
	rx    *fakeReceiver
	arm   *fakeArming
	mag   *fakeMag
	sink  *fakeSink
	core  *Rescue
	clock time.Time
}

func newHarness(cfg Config) *harness {
	h := &harness{
		gps: &fakeGPS{
			fix:        true,
			home:       true,
			healthy:    true,
			sats:       cfg.MinSats + 4,
			distanceCm: 10000,
			intervalS:  0.1,
		},
		att:   &fakeAttitude{cosTilt: 1.0, az: 1.0},
		alt:   &fakeAltimeter{altitudeCm: 1000},
		rx:    &fakeReceiver{signal: true, fsRescue: true, throttle: 1400, minCheck: 1050},
		arm:   &fakeArming{armed: true},
		mag:   &fakeMag{},
		sink:  &fakeSink{},
		clock: time.Unix(1000, 0),
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	h.core = New(cfg, Dependencies{
		GPS:       h.gps,
		Attitude:  h.att,
		Altimeter: h.alt,
		Receiver:  h.rx,
		Arming:    h.arm,
		Mag:       h.mag,
		Debug:     h.sink,
	}, logger)
	h.core.SetClock(func() time.Time { return h.clock })

	return h
}

// tick advances the clock by one task interval and runs one update with
// fresh GPS data.
func (h *harness) tick(cfg Config) {
	h.tickAfter(time.Duration(cfg.TaskIntervalSeconds() * float64(time.Second)))
}

// tickAfter advances the clock by d and runs one update with fresh GPS
// data whose sample interval matches d.
func (h *harness) tickAfter(d time.Duration) {
	h.clock = h.clock.Add(d)
	h.gps.intervalS = d.Seconds()
	h.core.NotifyNewGPSData()
	h.core.Update()
}

// tickStale runs one update without fresh GPS data.
func (h *harness) tickStale(cfg Config) {
	h.clock = h.clock.Add(time.Duration(cfg.TaskIntervalSeconds() * float64(time.Second)))
	h.core.Update()
}
