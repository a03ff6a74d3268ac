// Package telemetry provides DebugSink implementations for the rescue
// core's numeric debug taps: structured log output, a per-session CSV
// file, and a serial stream for bench instrumentation.
package telemetry

import (
	"github.com/sirupsen/logrus"

	"gorescue/internal/rescue"
)

// LogSink emits debug taps as structured debug-level log entries.
type LogSink struct {
	logger *logrus.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements rescue.DebugSink.
func (s *LogSink) Record(channel rescue.DebugChannel, index, value int) {
	s.logger.WithFields(logrus.Fields{
		"channel": channel.String(),
		"index":   index,
		"value":   value,
	}).Debug("Debug tap")
}

// MultiSink fans taps out to several sinks.
type MultiSink struct {
	sinks []rescue.DebugSink
}

// NewMultiSink creates a fan-out sink. Nil entries are skipped.
func NewMultiSink(sinks ...rescue.DebugSink) *MultiSink {
	m := &MultiSink{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

// Record implements rescue.DebugSink.
func (m *MultiSink) Record(channel rescue.DebugChannel, index, value int) {
	for _, sink := range m.sinks {
		sink.Record(channel, index, value)
	}
}
