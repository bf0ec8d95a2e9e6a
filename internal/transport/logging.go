package transport

import (
	applog "wearaudio/internal/log"
)

// LoggingTransport implements Transport by logging frame summaries, for
// bring-up before a real consumer is attached.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Info("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the frame size at debug level. It never fails.
func (lt *LoggingTransport) Send(magnitudes []float64) error {
	applog.Debugf("Transport: frame with %d bins", len(magnitudes))
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
