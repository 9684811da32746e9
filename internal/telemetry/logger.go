// Package telemetry centralizes structured logging setup shared by every daemon in
// this platform (execution agent, consumer, sandbox runner, watchdog, observer).
package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global zerolog logger. level is parsed case-insensitively
// and falls back to info on an unrecognized value; format "console" renders
// human-readable output, anything else (including "") renders JSON lines.
func InitLogger(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: false}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	log.Info().Str("level", logLevel.String()).Str("format", format).Msg("logger initialized")
}

// NewComponentLogger returns a logger tagged with the given component name, the
// generalized form of this codebase's per-role logger constructors.
func NewComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewAgentLogger tags a logger with an agent's identity, used by the execution agent,
// strategy sandboxes, and watchdog.
func NewAgentLogger(agentName, agentRole string) zerolog.Logger {
	return log.With().
		Str("component", "agent").
		Str("agent_name", agentName).
		Str("agent_role", agentRole).
		Logger()
}

// NewServerLogger tags a logger with a server's identity, used by the MCP observer
// server and the thin ops HTTP surface.
func NewServerLogger(serverName string) zerolog.Logger {
	return log.With().
		Str("component", "server").
		Str("server_name", serverName).
		Logger()
}
