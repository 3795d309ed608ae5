package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/flowforge/txsaga/internal/logging"
	"github.com/flowforge/txsaga/internal/logging/writers"
)

// setupLogging configures the default logger based on the provided log
// level, format ("text" or "json"), and output destination ("stdout",
// "stderr", or a file path).
func setupLogging(logLevel, logFormat, logOutput string) error {
	writer, err := writers.CreateWriter(logOutput)
	if err != nil {
		return fmt.Errorf("failed to configure log output %q: %w", logOutput, err)
	}

	var handler slog.Handler
	if strings.EqualFold(logFormat, "json") {
		handler = logging.SetupHandlerJSON(logLevel, writer)
	} else {
		handler = logging.SetupHandlerText(logLevel, writer)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
