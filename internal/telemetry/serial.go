package telemetry

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"gorescue/internal/rescue"
)

// SerialSink streams debug taps over a UART as line-framed ASCII
// records, the way a bench setup taps the flight controller's debug
// port. Frame format: "$D,<channel>,<index>,<value>\n".
type SerialSink struct {
	port   serial.Port
	logger *logrus.Logger
}

// NewSerialSink opens the named serial port at the given baud rate.
func NewSerialSink(portName string, baudRate int, logger *logrus.Logger) (*SerialSink, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	logger.WithFields(logrus.Fields{
		"port": portName,
		"baud": baudRate,
	}).Info("Telemetry serial port opened")

	return &SerialSink{port: port, logger: logger}, nil
}

// Record implements rescue.DebugSink. Write errors are logged and
// dropped; the serial link is advisory only.
func (s *SerialSink) Record(channel rescue.DebugChannel, index, value int) {
	frame := fmt.Sprintf("$D,%s,%d,%d\n", channel.String(), index, value)
	if _, err := s.port.Write([]byte(frame)); err != nil {
		s.logger.WithError(err).Debug("Failed to write telemetry frame")
	}
}

// Close closes the serial port.
func (s *SerialSink) Close() error {
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
