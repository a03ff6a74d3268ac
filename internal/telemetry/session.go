package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gorescue/internal/rescue"
)

// SessionWriter records debug taps to a per-run CSV file, one file per
// session named by its start time, for offline tuning analysis.
type SessionWriter struct {
	logDir  string
	logger  *logrus.Logger
	file    *os.File
	started time.Time
	mutex   sync.Mutex
}

// NewSessionWriter creates the log directory if needed and opens a new
// session file.
func NewSessionWriter(logDir string, logger *logrus.Logger) (*SessionWriter, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	started := time.Now()
	path := filepath.Join(logDir, fmt.Sprintf("rescue_%s.csv", started.Format("20060102_150405")))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	if _, err := file.WriteString("elapsed_ms,channel,index,value\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write session header: %w", err)
	}

	logger.WithField("path", path).Info("Telemetry session file opened")

	return &SessionWriter{
		logDir:  logDir,
		logger:  logger,
		file:    file,
		started: started,
	}, nil
}

// Record implements rescue.DebugSink. Write errors are logged, not
// returned: telemetry must never disturb the control path.
func (w *SessionWriter) Record(channel rescue.DebugChannel, index, value int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return
	}

	elapsedMs := time.Since(w.started).Milliseconds()
	line := fmt.Sprintf("%d,%s,%d,%d\n", elapsedMs, channel.String(), index, value)
	if _, err := w.file.WriteString(line); err != nil {
		w.logger.WithError(err).Debug("Failed to write telemetry line")
	}
}

// Close flushes and closes the session file.
func (w *SessionWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	return nil
}
