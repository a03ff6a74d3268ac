// Package app wires the rescue core to the simulated vehicle and runs
// it as a fixed-rate task, the way the firmware scheduler would.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gorescue/internal/rescue"
	"gorescue/internal/sim"
	"gorescue/internal/telemetry"
)

// Application represents the main application
type Application struct {
	config Config
	logger *logrus.Logger

	rescueCfg  rescue.Config
	core       *rescue.Rescue
	world      *sim.World
	session    *telemetry.SessionWriter
	serialSink *telemetry.SerialSink

	// simTime is the synthetic clock driving the core's 1 Hz checks; it
	// advances one task interval per tick regardless of wall time.
	simTime time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start runs a simulated rescue to completion or until interrupted.
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}).Info("Starting return-to-home simulation")

	if err := app.initializeComponents(); err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	result := make(chan error, 1)
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		result <- app.run()
	}()

	var err error
	select {
	case err = <-result:
	case <-sigChan:
		app.logger.Info("Received shutdown signal")
		close(app.done)
		err = <-result
	}

	app.shutdown()
	return err
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	var err error

	app.rescueCfg = rescue.DefaultConfig()
	if app.config.ConfigFile != "" {
		app.rescueCfg, err = rescue.LoadConfig(app.config.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load rescue config: %w", err)
		}
		app.logger.WithField("path", app.config.ConfigFile).Info("Loaded rescue tuning")
	}

	// Telemetry sinks are optional; the core runs fine without any.
	var sinks []rescue.DebugSink
	if app.config.LogDir != "" {
		app.session, err = telemetry.NewSessionWriter(app.config.LogDir, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize session writer: %w", err)
		}
		sinks = append(sinks, app.session)
	}
	if app.config.SerialPort != "" {
		app.serialSink, err = telemetry.NewSerialSink(app.config.SerialPort, app.config.SerialBaud, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize serial sink: %w", err)
		}
		sinks = append(sinks, app.serialSink)
	}
	if app.config.Verbose {
		sinks = append(sinks, telemetry.NewLogSink(app.logger))
	}

	app.world = sim.NewWorld(sim.Options{
		DistanceToHomeM:  app.config.DistanceM,
		AltitudeM:        app.config.AltitudeM,
		HeadingOffsetDeg: app.config.HeadingOffsetDeg,
		HoverThrottle:    app.rescueCfg.ThrottleHover,
		SatelliteCount:   app.rescueCfg.MinSats + 4,
	})

	deps := rescue.Dependencies{
		GPS:       app.world,
		Attitude:  app.world,
		Altimeter: app.world,
		Receiver:  app.world,
		Arming:    app.world,
		Mag:       app.world,
	}
	if len(sinks) > 0 {
		deps.Debug = telemetry.NewMultiSink(sinks...)
	}

	app.core = rescue.New(app.rescueCfg, deps, app.logger)

	app.simTime = time.Now()
	app.core.SetClock(func() time.Time { return app.simTime })

	return nil
}

// run drives the plant and the rescue core tick by tick.
func (app *Application) run() error {
	taskInterval := app.rescueCfg.TaskIntervalSeconds()

	var ticker *time.Ticker
	if app.config.Realtime {
		ticker = time.NewTicker(time.Duration(taskInterval * float64(time.Second)))
		defer ticker.Stop()
	}

	// Fly idle for a moment first: the Idle phase housekeeping needs a
	// few GPS samples to record the return altitude and descent distance
	// before a rescue can start with valid targets.
	const warmupSeconds = 2.0
	rescueRequested := false

	lastStatus := 0.0
	for elapsed := 0.0; elapsed < app.config.MaxSimSeconds; elapsed += taskInterval {
		if !rescueRequested && elapsed >= warmupSeconds {
			app.world.RequestRescue(true)
			rescueRequested = true
		}
		select {
		case <-app.done:
			return nil
		default:
		}
		if ticker != nil {
			<-ticker.C
		}

		if app.world.Step(taskInterval, app.core.Throttle(), app.core.PitchAngle(), app.core.YawRate()) {
			app.core.NotifyNewGPSData()
		}
		app.simTime = app.simTime.Add(time.Duration(taskInterval * float64(time.Second)))
		app.core.Update()

		if elapsed-lastStatus >= 1.0 {
			lastStatus = elapsed
			app.logger.WithFields(logrus.Fields{
				"t":          fmt.Sprintf("%.0fs", elapsed),
				"phase":      app.core.Phase().String(),
				"failure":    app.core.Failure().String(),
				"distance_m": fmt.Sprintf("%.1f", app.world.DistanceToHomeM()),
				"altitude_m": fmt.Sprintf("%.1f", app.world.AltitudeM()),
				"throttle":   fmt.Sprintf("%.2f", app.core.ThrottleFraction()),
			}).Info("Rescue status")
		}

		if disarmed, reason := app.world.Disarmed(); disarmed {
			app.logger.WithFields(logrus.Fields{
				"reason":     reason.String(),
				"t":          fmt.Sprintf("%.1fs", elapsed),
				"distance_m": fmt.Sprintf("%.1f", app.world.DistanceToHomeM()),
			}).Info("Rescue finished")
			return nil
		}
	}

	return fmt.Errorf("simulation ended after %.0fs without landing", app.config.MaxSimSeconds)
}

// shutdown releases telemetry resources.
func (app *Application) shutdown() {
	app.wg.Wait()

	if app.session != nil {
		if err := app.session.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close session writer")
		}
	}
	if app.serialSink != nil {
		if err := app.serialSink.Close(); err != nil {
			app.logger.WithError(err).Warn("Failed to close serial sink")
		}
	}

	app.logger.Info("Shutdown completed")
}
