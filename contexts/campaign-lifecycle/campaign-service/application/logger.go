package application

import "log/slog"

// ResolveLogger falls back to the process-wide logger when none is injected.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
