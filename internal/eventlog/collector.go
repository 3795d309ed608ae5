// Package eventlog gives each transaction its own captured log history, so
// an audit trail or a test can replay exactly what was logged while a
// transaction ran, independent of whatever the process-wide logger is doing
// by the time anyone looks.
package eventlog

import (
	"log/slog"
	"os"

	"github.com/robbyt/go-loglater"
	"github.com/robbyt/go-loglater/storage"
)

// Collector wraps a loglater.LogCollector, providing a *slog.Logger whose
// records are retained in memory and can be replayed later.
type Collector struct {
	collector *loglater.LogCollector
	logger    *slog.Logger
}

// New creates a Collector that captures records destined for handler and
// also attaches the given fields to every record it produces.
func New(handler slog.Handler, args ...any) *Collector {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	collector := loglater.NewLogCollector(handler)
	logger := slog.New(collector)
	if len(args) > 0 {
		logger = logger.With(args...)
	}
	return &Collector{collector: collector, logger: logger}
}

// Logger returns the *slog.Logger that feeds this collector.
func (c *Collector) Logger() *slog.Logger {
	return c.logger
}

// PlaybackLogs re-emits every captured record to handler, in original order.
func (c *Collector) PlaybackLogs(handler slog.Handler) error {
	return c.collector.PlayLogs(handler)
}

// GetLogs returns the raw captured records.
func (c *Collector) GetLogs() []storage.Record {
	return c.collector.GetLogs()
}
