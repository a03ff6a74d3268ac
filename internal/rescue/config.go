package rescue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AltitudeMode selects how the return altitude is derived while idle.
type AltitudeMode int

const (
	// AltitudeModeMax returns at the maximum altitude seen this flight
	// plus the buffer.
	AltitudeModeMax AltitudeMode = iota
	// AltitudeModeFixed returns at the configured initial altitude.
	AltitudeModeFixed
	// AltitudeModeCurrent returns at the altitude when the rescue
	// started plus the buffer.
	AltitudeModeCurrent
)

// SanityCheckMode selects how strictly the sanity checker reacts to a
// failure classification.
type SanityCheckMode int

const (
	// SanityStrict aborts the rescue on any failure.
	SanityStrict SanityCheckMode = iota
	// SanityFailsafeOnly aborts only when the control link is also lost;
	// otherwise a failure leads to the bounded do-nothing descent.
	SanityFailsafeOnly
	// SanityOff never aborts on failure classification alone.
	SanityOff
)

// Config holds the rescue tuning parameters. All values are read-only
// to the core; they map one-to-one onto the recognized firmware options.
type Config struct {
	// Controller gains.
	ThrottleP float64 `yaml:"throttle_p"`
	ThrottleI float64 `yaml:"throttle_i"`
	ThrottleD float64 `yaml:"throttle_d"`
	VelP      float64 `yaml:"vel_p"`
	VelI      float64 `yaml:"vel_i"`
	VelD      float64 `yaml:"vel_d"`
	YawP      float64 `yaml:"yaw_p"`
	RollMix   float64 `yaml:"roll_mix"`

	// Rates, cm/s.
	AscendRate  float64 `yaml:"ascend_rate"`
	DescendRate float64 `yaml:"descend_rate"`
	Groundspeed float64 `yaml:"groundspeed"`

	// Limits.
	MaxRescueAngleDeg float64 `yaml:"max_rescue_angle_deg"`
	DisarmThresholdG  float64 `yaml:"disarm_threshold_g"`
	MinRescueDistM    float64 `yaml:"min_rescue_dist_m"`
	MinSats           int     `yaml:"min_sats"`

	// Altitude strategy, metres.
	AltitudeMode           AltitudeMode `yaml:"altitude_mode"`
	InitialAltitudeM       float64      `yaml:"initial_altitude_m"`
	AltitudeBufferM        float64      `yaml:"altitude_buffer_m"`
	TargetLandingAltitudeM float64      `yaml:"target_landing_altitude_m"`
	DescentDistanceM       float64      `yaml:"descent_distance_m"`

	// Throttle scale (PWM-style units).
	ThrottleMin   float64 `yaml:"throttle_min"`
	ThrottleMax   float64 `yaml:"throttle_max"`
	ThrottleHover float64 `yaml:"throttle_hover"`

	// Behavior switches.
	SanityChecks          SanityCheckMode `yaml:"sanity_checks"`
	UseMag                bool            `yaml:"use_mag"`
	AllowArmingWithoutFix bool            `yaml:"allow_arming_without_fix"`
	SetHomePointOnce      bool            `yaml:"set_home_point_once"`
	YawControlReversed    bool            `yaml:"yaw_control_reversed"`

	// Filter cutoffs, Hz.
	ThrottleDCutoffHz float64 `yaml:"throttle_d_cutoff_hz"`
	PitchCutoffHz     float64 `yaml:"pitch_cutoff_hz"`

	// Scheduling rate of the rescue task.
	TaskRateHz float64 `yaml:"task_rate_hz"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		ThrottleP: 15,
		ThrottleI: 15,
		ThrottleD: 20,
		VelP:      8,
		VelI:      30,
		VelD:      20,
		YawP:      20,
		RollMix:   150,

		AscendRate:  750,
		DescendRate: 150,
		Groundspeed: 750,

		MaxRescueAngleDeg: 32,
		DisarmThresholdG:  3.0,
		MinRescueDistM:    30,
		MinSats:           8,

		AltitudeMode:           AltitudeModeMax,
		InitialAltitudeM:       30,
		AltitudeBufferM:        15,
		TargetLandingAltitudeM: 4,
		DescentDistanceM:       20,

		ThrottleMin:   1100,
		ThrottleMax:   1600,
		ThrottleHover: 1275,

		SanityChecks:          SanityStrict,
		UseMag:                true,
		AllowArmingWithoutFix: false,
		SetHomePointOnce:      false,
		YawControlReversed:    false,

		ThrottleDCutoffHz: 1.0,
		PitchCutoffHz:     0.75,

		TaskRateHz: 100,
	}
}

// LoadConfig reads a YAML tuning file over the defaults. Fields not
// present in the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.TaskRateHz <= 0 {
		return cfg, fmt.Errorf("task_rate_hz must be positive, got %g", cfg.TaskRateHz)
	}

	return cfg, nil
}

// TaskIntervalSeconds returns the scheduling interval of the rescue task.
func (c Config) TaskIntervalSeconds() float64 {
	return 1.0 / c.TaskRateHz
}
