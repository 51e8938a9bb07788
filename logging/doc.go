// Package logging defines the small Logger interface every docmesh component
// depends on, plus slog-backed adapters.
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "json"})
//	logger = logging.With(logger, "component", "dispatch")
//
// NoOpLogger is the default wherever a logger is optional.
package logging
