package app

// Default simulation parameters.
const (
	DefaultDistanceM  = 120.0
	DefaultAltitudeM  = 18.0
	DefaultHeadingDeg = 135.0
	DefaultSimSeconds = 300.0
	DefaultSerialBaud = 115200
)

// Config holds application configuration.
type Config struct {
	ConfigFile       string
	LogDir           string
	SerialPort       string
	SerialBaud       int
	DistanceM        float64
	AltitudeM        float64
	HeadingOffsetDeg float64
	MaxSimSeconds    float64
	Realtime         bool
	Verbose          bool
	ShowVersion      bool
}
