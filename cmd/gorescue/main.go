package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gorescue/internal/app"
)

func main() {
	var config app.Config

	rootCmd := &cobra.Command{
		Use:   "gorescue",
		Short: "Autonomous return-to-home control core simulator",
		Long: `Return-to-home ("rescue") flight control core with a closed-loop
vehicle simulation.

Runs the rescue phase state machine and its altitude/heading/velocity
control loops against a point-mass plant, from a configurable starting
distance, altitude and heading offset, until the craft lands and
disarms. Debug taps can be recorded to a session file or streamed over
a serial port.

Example usage:
  gorescue --distance 120 --altitude 18 --heading 135 --log-dir ./logs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.ShowVersion {
				app.ShowVersion()
				return nil
			}

			application := app.NewApplication(config)
			return application.Start()
		},
	}

	rootCmd.Flags().StringVarP(&config.ConfigFile, "config", "c", "", "Rescue tuning YAML file (defaults when empty)")
	rootCmd.Flags().StringVarP(&config.LogDir, "log-dir", "l", "", "Directory for telemetry session files (disabled when empty)")
	rootCmd.Flags().StringVar(&config.SerialPort, "serial-port", "", "Serial port for telemetry streaming (disabled when empty)")
	rootCmd.Flags().IntVar(&config.SerialBaud, "serial-baud", app.DefaultSerialBaud, "Serial telemetry baud rate")
	rootCmd.Flags().Float64VarP(&config.DistanceM, "distance", "d", app.DefaultDistanceM, "Starting distance to home (m)")
	rootCmd.Flags().Float64VarP(&config.AltitudeM, "altitude", "a", app.DefaultAltitudeM, "Starting altitude (m)")
	rootCmd.Flags().Float64Var(&config.HeadingOffsetDeg, "heading", app.DefaultHeadingDeg, "Starting heading error from home bearing (deg)")
	rootCmd.Flags().Float64Var(&config.MaxSimSeconds, "max-seconds", app.DefaultSimSeconds, "Simulation time limit (s)")
	rootCmd.Flags().BoolVar(&config.Realtime, "realtime", false, "Pace the simulation at real task rate")
	rootCmd.Flags().BoolVarP(&config.Verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.Flags().BoolVar(&config.ShowVersion, "version", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
